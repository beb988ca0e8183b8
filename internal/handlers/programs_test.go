package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"laserctl/internal/models"
	"laserctl/internal/repository"
	"laserctl/internal/scheduler"
	"laserctl/internal/service"
)

func TestProgramHandlers_SaveAndList(t *testing.T) {
	saved := models.Program{ID: "p1", Name: "night run", Mode: models.ModeEveryday,
		Start: "22:00", End: "23:00", FireMs: 60000, RestMs: 60000}
	progs := &mockPrograms{saved: saved, list: []models.Program{saved}}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Programs: progs}
	r := newTestRouter(s)

	body := `{"name":"night run","mode":"everyday","start":"22:00","end":"23:00","fire_ms":60000,"rest_ms":60000}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, protectedRequest(http.MethodPost, "/api/v1/programs", body))
	if w.Code != http.StatusOK {
		t.Fatalf("save status=%d, body=%s", w.Code, w.Body.String())
	}
	if progs.lastSaveInput.Name != "night run" {
		t.Fatalf("save input not passed: %+v", progs.lastSaveInput)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, protectedRequest(http.MethodGet, "/api/v1/programs", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("list status=%d", w.Code)
	}
	var m map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	if int(m["count"].(float64)) != 1 {
		t.Fatalf("expected count=1, got %v", m["count"])
	}
}

func TestProgramHandlers_NotFound(t *testing.T) {
	progs := &mockPrograms{getErr: repository.ErrProgramNotFound}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Programs: progs}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, protectedRequest(http.MethodGet, "/api/v1/programs/nope", ""))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d; body=%s", w.Code, w.Body.String())
	}
}

func TestProgramHandlers_StartConflicts(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not connected", scheduler.ErrNotConnected, http.StatusConflict},
		{"disabled", scheduler.ErrDisabled, http.StatusConflict},
		{"storage failure", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			progs := &mockPrograms{startErr: tc.err}
			s := &service.Service{Authorization: &mockAuth{parseID: 1}, Programs: progs}
			r := newTestRouter(s)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, protectedRequest(http.MethodPost, "/api/v1/programs/p1/start", ""))
			if w.Code != tc.want {
				t.Fatalf("status: got %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestProgramHandlers_StopAlwaysOK(t *testing.T) {
	progs := &mockPrograms{}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Programs: progs}
	r := newTestRouter(s)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, protectedRequest(http.MethodPost, "/api/v1/programs/p1/stop", ""))
		if w.Code != http.StatusOK {
			t.Fatalf("stop status=%d", w.Code)
		}
	}
	if progs.stopCalls != 2 || progs.lastStopID != "p1" {
		t.Fatalf("stop calls=%d lastID=%q", progs.stopCalls, progs.lastStopID)
	}
}

func TestProgramHandlers_Preview(t *testing.T) {
	progs := &mockPrograms{status: models.ProgramStatus{Total: 10}}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Programs: progs}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, protectedRequest(http.MethodGet, "/api/v1/programs/p1/preview?max=5", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("preview status=%d, body=%s", w.Code, w.Body.String())
	}
	var m map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	if int(m["cycles"].(float64)) != 10 {
		t.Fatalf("expected cycles=10, got %v", m["cycles"])
	}
}
