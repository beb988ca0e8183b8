package device

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"laserctl/internal/models"
)

// Wire commands understood by the laser controller. All are newline
// terminated ASCII; responses are newline terminated text.
const (
	CmdFire         = "$FIRE"
	CmdStandby      = "$STANDBY"
	CmdStop         = "$STOP"
	CmdStatusQuery  = "$STATUS ?"
	CmdDTEMFQuery   = "$DTEMF ?"
	CmdLTEMFQuery   = "$LTEMF ?"
	CmdQSDelayQuery = "$QSDELAY ?"
	CmdDFreqQuery   = "$DFREQ ?"
)

// Status bit flags: the low byte of the second response token.
const (
	statusBitFiring   = 0b10000000
	statusBitStandby  = 0b01000000
	statusBitNotReady = 0b00000001
)

var floatRe = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?(?:[eE][-+]?\d+)?`)

// LoginCmd builds the $LOGIN command sent right after connecting.
func LoginCmd(user string) string {
	return "$LOGIN " + strings.TrimSpace(user)
}

// QSDelayCmd builds a Q-switch delay set command (microseconds).
func QSDelayCmd(us int) string {
	return "$QSDELAY " + strconv.Itoa(us)
}

// DFreqCmd builds a pulse frequency set command (Hz).
func DFreqCmd(hz int) string {
	return "$DFREQ " + strconv.Itoa(hz)
}

// ParseStatus decodes a $STATUS response. The second whitespace token's two
// leading hex digits carry the flags: bit7 firing, bit6 standby, bit0
// not-ready.
func ParseStatus(resp string) (models.LaserStatus, bool) {
	parts := strings.Fields(resp)
	if len(parts) < 2 || len(parts[1]) < 2 {
		return models.LaserStatus{}, false
	}
	state, err := strconv.ParseUint(parts[1][:2], 16, 8)
	if err != nil {
		return models.LaserStatus{}, false
	}

	st := models.LaserStatus{Ready: state&statusBitNotReady == 0}
	switch {
	case state&statusBitFiring != 0:
		st.Mode = models.LaserModeFire
	case state&statusBitStandby != 0:
		st.Mode = models.LaserModeStandby
	default:
		st.Mode = models.LaserModeStop
	}
	return st, true
}

// ParseFloat extracts the first numeric value from a device response such as
// "$LTEMF=33.2C". Returns false when no number is present.
func ParseFloat(resp string) (float64, bool) {
	m := floatRe.FindString(resp)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// QueryFloat issues a non-blocking numeric query. The boolean is false when
// the channel was busy, the read timed out without data, or the response held
// no number; all of those mean "keep the last known value".
func (c *Client) QueryFloat(cmd string, timeout time.Duration) (float64, bool) {
	resp, err := c.TrySend(cmd, timeout)
	if err != nil || resp == "" {
		return 0, false
	}
	return ParseFloat(resp)
}

// QueryStatus issues a short non-blocking $STATUS read. ok is false on busy,
// timeout or an undecodable response.
func (c *Client) QueryStatus() (models.LaserStatus, bool) {
	resp, err := c.TrySend(CmdStatusQuery, 400*time.Millisecond)
	if err != nil || resp == "" {
		return models.LaserStatus{}, false
	}
	return ParseStatus(resp)
}
