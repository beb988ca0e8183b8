package device

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sentinel outcomes for command exchanges. ErrBusy is a normal control-flow
// result for TrySend, not a failure: it means another exchange holds the
// channel and the caller should skip this cycle.
var (
	ErrNotConnected = errors.New("device: not connected")
	ErrBusy         = errors.New("device: channel busy")
)

const (
	// DefaultTimeout bounds blocking control exchanges.
	DefaultTimeout = 3 * time.Second
	// TelemetryTimeout bounds opportunistic TrySend reads.
	TelemetryTimeout = 600 * time.Millisecond

	terminator = "\n"
	readChunk  = 1024
)

// Client owns the single TCP connection to the laser controller. Every
// command/response exchange is serialized through one mutex so at most one
// exchange is in flight at any instant. Send waits for the channel; TrySend
// gives up immediately when it is held.
type Client struct {
	host    string
	port    int
	timeout time.Duration

	mu   sync.Mutex // guards conn and the wire exchange
	conn net.Conn
}

// NewClient prepares a client for the given endpoint. No connection is opened
// until Connect.
func NewClient(host string, port int, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{host: host, port: port, timeout: timeout}
}

// Connect opens a fresh connection, replacing any prior one.
func (c *Client) Connect() error {
	c.Close()

	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))
	conn, err := net.DialTimeout("tcp", addr, c.timeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// Close releases the socket under the guard. Safe to call repeatedly and
// while disconnected.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Connected reports whether a channel is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Send performs a blocking command/response exchange. It waits for the
// channel guard, writes cmd plus the terminator and reads until the
// terminator or the client timeout. A read timeout is not an error: whatever
// partial bytes arrived are returned.
func (c *Client) Send(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exchange(cmd, c.timeout)
}

// TrySend behaves like Send but never waits for the guard: when another
// exchange is in flight it returns ErrBusy immediately. Used by telemetry so
// passive reads cannot delay control commands.
func (c *Client) TrySend(cmd string, timeout time.Duration) (string, error) {
	if !c.mu.TryLock() {
		return "", ErrBusy
	}
	defer c.mu.Unlock()
	if timeout <= 0 {
		timeout = TelemetryTimeout
	}
	return c.exchange(cmd, timeout)
}

// exchange runs one write/read round trip. Caller must hold c.mu.
func (c *Client) exchange(cmd string, timeout time.Duration) (string, error) {
	if c.conn == nil {
		return "", ErrNotConnected
	}

	deadline := time.Now().Add(timeout)
	if err := c.conn.SetDeadline(deadline); err != nil {
		return "", fmt.Errorf("set deadline: %w", err)
	}

	if _, err := c.conn.Write([]byte(strings.TrimSpace(cmd) + terminator)); err != nil {
		return "", fmt.Errorf("write %q: %w", cmd, err)
	}

	var resp []byte
	buf := make([]byte, readChunk)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			resp = append(resp, buf[:n]...)
			if resp[len(resp)-1] == '\n' {
				break
			}
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				// Partial data is acceptable; the caller decides what to
				// make of it.
				break
			}
			if len(resp) > 0 {
				break
			}
			return "", fmt.Errorf("read after %q: %w", cmd, err)
		}
	}
	return strings.TrimSpace(string(resp)), nil
}
