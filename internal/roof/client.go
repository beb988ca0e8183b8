package roof

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"laserctl/internal/models"
)

// Result is the outcome of one door API call.
type Result struct {
	OK      bool
	State   models.RoofState
	RawText string
	Err     error
}

// DoorClient drives the sliding-roof door API: POST open/close, GET status.
// The base URL is read through a getter so configuration changes apply
// without rebuilding the client.
type DoorClient struct {
	baseURL func() string
	http    *http.Client
}

// NewDoorClient builds a door client with the given request timeout.
func NewDoorClient(baseURL func() string, timeout time.Duration) *DoorClient {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &DoorClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *DoorClient) base() string {
	b := strings.TrimSpace(c.baseURL())
	if b != "" && !strings.HasSuffix(b, "/") {
		b += "/"
	}
	return b
}

// Open requests the roof to open. The call is synchronous up to the client
// timeout; callers that must not block run it in a goroutine.
func (c *DoorClient) Open(ctx context.Context) Result {
	return c.post(ctx, c.base()+"open")
}

// Close requests the roof to close.
func (c *DoorClient) Close(ctx context.Context) Result {
	return c.post(ctx, c.base()+"close")
}

// Status reads the door controller's reported state.
func (c *DoorClient) Status(ctx context.Context) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+"status", nil)
	if err != nil {
		return Result{State: models.RoofUnknown, Err: err}
	}
	return c.do(req)
}

func (c *DoorClient) post(ctx context.Context, url string) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return Result{State: models.RoofUnknown, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *DoorClient) do(req *http.Request) Result {
	resp, err := c.http.Do(req)
	if err != nil {
		return Result{State: models.RoofUnknown, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if err != nil {
		return Result{State: models.RoofUnknown, Err: err}
	}
	text := strings.TrimSpace(string(body))
	if resp.StatusCode >= 300 {
		return Result{State: models.RoofUnknown, RawText: text,
			Err: fmt.Errorf("roof api: unexpected status %d", resp.StatusCode)}
	}
	return Result{OK: true, State: parseDoorState(text), RawText: text}
}

// parseDoorState reads {"message":"ON|OFF"}; anything else is UNKNOWN.
func parseDoorState(text string) models.RoofState {
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return models.RoofUnknown
	}
	switch strings.ToUpper(strings.TrimSpace(obj.Message)) {
	case "ON":
		return models.RoofOn
	case "OFF":
		return models.RoofOff
	default:
		return models.RoofUnknown
	}
}

// LimitClient polls the limit-sensor endpoint: GET returning
// {"limit":{"state":"ON|OFF"}}. Best effort: any failure reads as UNKNOWN.
type LimitClient struct {
	url  func() string
	http *http.Client
}

// NewLimitClient builds a limit-sensor client with the given default timeout.
func NewLimitClient(url func() string, timeout time.Duration) *LimitClient {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &LimitClient{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

// FetchState reads the limit sensor once.
func (c *LimitClient) FetchState(ctx context.Context) models.RoofState {
	url := strings.TrimSpace(c.url())
	if url == "" {
		return models.RoofUnknown
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.RoofUnknown
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return models.RoofUnknown
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if err != nil || resp.StatusCode >= 300 {
		return models.RoofUnknown
	}

	var obj struct {
		Limit struct {
			State string `json:"state"`
		} `json:"limit"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return models.RoofUnknown
	}
	switch strings.ToUpper(strings.TrimSpace(obj.Limit.State)) {
	case "ON":
		return models.RoofOn
	case "OFF":
		return models.RoofOff
	default:
		return models.RoofUnknown
	}
}
