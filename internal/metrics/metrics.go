package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// FiresTotal counts fire commands actually sent, partitioned by origin
	// ("manual" or "schedule").
	FiresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "laserctl_fires_total",
		Help: "Total number of fire commands sent to the laser",
	}, []string{"origin"})

	// FiresBlockedTotal counts fire attempts refused by the roof interlock.
	FiresBlockedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "laserctl_fires_blocked_total",
		Help: "Total number of fire attempts blocked by the safety interlock",
	})

	// BusySkipsTotal counts telemetry reads skipped because a control
	// command held the channel.
	BusySkipsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "laserctl_telemetry_busy_skips_total",
		Help: "Total number of telemetry reads skipped on a busy channel",
	})

	// RoofWarningsTotal counts rate-limited roof safety warnings.
	RoofWarningsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "laserctl_roof_warnings_total",
		Help: "Total number of roof safety warnings raised",
	})

	// CommandDuration tracks round-trip time of device commands in seconds.
	CommandDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "laserctl_command_duration_seconds",
		Help:    "Round-trip time of laser controller commands",
		Buckets: prometheus.DefBuckets,
	})
)

var registerOnce sync.Once

// Register installs the collectors on the default registry. Safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			FiresTotal,
			FiresBlockedTotal,
			BusySkipsTotal,
			RoofWarningsTotal,
			CommandDuration,
		)
	})
}
