package device

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeController accepts one connection and answers line commands via the
// supplied handler. Return "" to withhold the response (read timeout path).
func fakeController(t *testing.T, handle func(cmd string) string) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				r := bufio.NewReader(c)
				for {
					line, err := r.ReadString('\n')
					if err != nil {
						return
					}
					resp := handle(strings.TrimSpace(line))
					if resp == "" {
						continue
					}
					if _, err := c.Write([]byte(resp + "\n")); err != nil {
						return
					}
				}
			}(conn)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func TestClient_SendNotConnected(t *testing.T) {
	c := NewClient("127.0.0.1", 1, time.Second)
	if _, err := c.Send("$STATUS ?"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestClient_SendRoundTrip(t *testing.T) {
	host, port := fakeController(t, func(cmd string) string {
		if cmd == "$STATUS ?" {
			return "$STATUS 41"
		}
		return "OK"
	})

	c := NewClient(host, port, time.Second)
	if err := c.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	resp, err := c.Send("$STATUS ?")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp != "$STATUS 41" {
		t.Fatalf("unexpected response %q", resp)
	}
}

func TestClient_SendTimeoutReturnsPartial(t *testing.T) {
	// Handler never responds; the read deadline must expire and the empty
	// partial result must not be an error.
	host, port := fakeController(t, func(string) string { return "" })

	c := NewClient(host, port, 150*time.Millisecond)
	if err := c.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	resp, err := c.Send("$LTEMF ?")
	if err != nil {
		t.Fatalf("timeout must yield partial data, got err=%v", err)
	}
	if resp != "" {
		t.Fatalf("expected empty partial, got %q", resp)
	}
}

func TestClient_TrySendBusyWhileExchangeInFlight(t *testing.T) {
	release := make(chan struct{})
	holding := make(chan struct{})
	host, port := fakeController(t, func(cmd string) string {
		if cmd == "$FIRE" {
			close(holding)
			<-release
			return "FIRED"
		}
		return "OK"
	})

	c := NewClient(host, port, 2*time.Second)
	if err := c.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := c.Send("$FIRE"); err != nil {
			t.Errorf("blocking send: %v", err)
		}
	}()

	<-holding
	if _, err := c.TrySend("$DTEMF ?", 100*time.Millisecond); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy while control command in flight, got %v", err)
	}
	close(release)
	wg.Wait()

	// After the exchange completes the channel is free again.
	if _, err := c.TrySend("$DTEMF ?", 300*time.Millisecond); err != nil {
		t.Fatalf("try send after release: %v", err)
	}
}

func TestClient_CloseIdempotentAndReconnect(t *testing.T) {
	host, port := fakeController(t, func(string) string { return "OK" })

	c := NewClient(host, port, time.Second)
	c.Close() // close before connect must be a no-op
	if err := c.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	c.Close()
	c.Close()
	if c.Connected() {
		t.Fatalf("expected disconnected after close")
	}
	if err := c.Connect(); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if !c.Connected() {
		t.Fatalf("expected connected after reconnect")
	}
	c.Close()
}
