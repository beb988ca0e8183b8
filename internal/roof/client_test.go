package roof

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"laserctl/internal/models"
)

func TestDoorClient_OpenParsesState(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		_, _ = w.Write([]byte(`{"message":"ON"}`))
	}))
	defer srv.Close()

	c := NewDoorClient(func() string { return srv.URL }, time.Second)
	res := c.Open(context.Background())
	if !res.OK || res.State != models.RoofOn {
		t.Fatalf("unexpected result %+v", res)
	}
	if gotPath != "/open" || gotMethod != http.MethodPost {
		t.Fatalf("expected POST /open, got %s %s", gotMethod, gotPath)
	}
}

func TestDoorClient_StatusUnknownOnGarbage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`door is ajar`))
	}))
	defer srv.Close()

	c := NewDoorClient(func() string { return srv.URL }, time.Second)
	res := c.Status(context.Background())
	if !res.OK || res.State != models.RoofUnknown {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDoorClient_ErrorResult(t *testing.T) {
	c := NewDoorClient(func() string { return "http://127.0.0.1:1" }, 200*time.Millisecond)
	res := c.Close(context.Background())
	if res.OK || res.Err == nil || res.State != models.RoofUnknown {
		t.Fatalf("expected failed result, got %+v", res)
	}
}

func TestLimitClient_FetchState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"limit":{"state":"off"}}`))
	}))
	defer srv.Close()

	c := NewLimitClient(func() string { return srv.URL }, time.Second)
	if st := c.FetchState(context.Background()); st != models.RoofOff {
		t.Fatalf("expected OFF, got %s", st)
	}
}

func TestLimitClient_UnknownOnEmptyURLAndFailure(t *testing.T) {
	c := NewLimitClient(func() string { return "" }, time.Second)
	if st := c.FetchState(context.Background()); st != models.RoofUnknown {
		t.Fatalf("expected UNKNOWN for empty url, got %s", st)
	}

	c = NewLimitClient(func() string { return "http://127.0.0.1:1" }, 200*time.Millisecond)
	if st := c.FetchState(context.Background()); st != models.RoofUnknown {
		t.Fatalf("expected UNKNOWN on connect failure, got %s", st)
	}
}
