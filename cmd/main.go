package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"laserctl/internal/device"
	"laserctl/internal/handlers"
	"laserctl/internal/logger"
	"laserctl/internal/metrics"
	"laserctl/internal/models"
	"laserctl/internal/repository"
	"laserctl/internal/repository/db"
	"laserctl/internal/roof"
	"laserctl/internal/safety"
	"laserctl/internal/scheduler"
	"laserctl/internal/server"
	"laserctl/internal/service"
	"laserctl/internal/telemetry"

	"github.com/spf13/viper"
)

func main() {
	// load config.yml first so the logger picks up the configured level
	if err := loadConfig(); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(viper.GetString("log.level"))

	metrics.Register()

	// open DB
	sqldb, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqldb.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	repos := repository.NewRepository(sqldb)

	// laser command channel
	dev := device.NewClient(
		viper.GetString("laser.host"),
		viper.GetInt("laser.port"),
		viper.GetDuration("laser.timeout"),
	)

	// roof clients feed a single cache; the cache is what safety reads
	cache := safety.NewRoofCache(safety.DefaultStaleAfter)
	door := roof.NewDoorClient(func() string { return viper.GetString("roof.door_api_base") }, 0)
	limit := roof.NewLimitClient(func() string { return viper.GetString("roof.limit_api_url") }, 0)
	roofCtrl := roof.NewController(door, cache)
	poller := roof.NewPoller(limit, cache, viper.GetDuration("roof.poll_interval"), log)

	// event recording is bound after the services are wired
	var recordEvent func(eventType, description string)
	interlock := safety.NewInterlock(cache, log.Named("safety"),
		func(state models.RoofState, reason string) {
			if recordEvent != nil {
				recordEvent(models.EventRoofWarning, reason+" (roof="+string(state)+")")
			}
		})

	maxTemp := viper.GetFloat64("laser.max_temp_c")
	tracker := service.NewStateTracker(cache, maxTemp)
	sampler := telemetry.New(dev, repos.Telemetry, tracker,
		viper.GetDuration("telemetry.interval"), log)

	loc := time.Local
	if tz := viper.GetString("schedule.timezone"); tz != "" {
		if l, lerr := time.LoadLocation(tz); lerr == nil {
			loc = l
		} else {
			log.Warnw("bad schedule.timezone, using local", "tz", tz, "err", lerr)
		}
	}

	services := service.NewService(service.Deps{
		Device:    dev,
		Roof:      roofCtrl,
		Cache:     cache,
		Interlock: interlock,
		Sampler:   sampler,
		Tracker:   tracker,
		Repos:     repos,
		Log:       log,
		LoginUser: viper.GetString("laser.user"),
		SchedulerOpt: scheduler.Options{
			PreOpenLead:      viper.GetDuration("schedule.prefire_open"),
			RoofWait:         viper.GetDuration("schedule.roof_wait"),
			PostClose:        viper.GetDuration("schedule.post_close"),
			CloseIfOpenDelay: viper.GetDuration("schedule.close_if_open_delay"),
			AutoRoof:         viper.GetBool("roof.auto_open"),
			AutoClose:        viper.GetBool("roof.auto_close"),
			Location:         loc,
		},
	})
	recordEvent = services.EventLog.Record

	if !viper.GetBool("laser.safety_fire_enabled") {
		interlock.SetEnabled(false)
		log.Warnw("roof safety interlock disabled by config")
	}

	apiHandler := handlers.NewHandler(services, roofCtrl, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go poller.Run(ctx)
	go services.Monitoring.Run(ctx)
	go services.Laser.RunTempWatchdog(ctx)
	go interlock.Monitor(ctx, tracker.IsFiring, func() {
		if err := services.Laser.Standby(context.Background()); err != nil {
			log.Errorw("forced standby failed", "err", err)
		}
	})

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, services, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "laserctl.db")
		dbPath = "laserctl.db"
	}
	return db.InitDB(dbPath)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, services *service.Service, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// halt schedules and put the laser in a safe state before exiting
	services.Programs.StopAll()
	if err := services.Laser.Disconnect(context.Background()); err != nil {
		log.Errorw("disconnect on shutdown failed", "err", err)
	}

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
