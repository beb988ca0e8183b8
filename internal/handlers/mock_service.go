package handlers

import (
	"context"
	"net/http"
	"time"

	"laserctl/internal/models"
	"laserctl/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockLaser struct {
	connectErr error
	fireErr    error
	standbyErr error
	stopErr    error
	qsErr      error
	freqHz     int
	freqErr    error

	connects, disconnects, fires, standbys, stops int
	lastQSDelay                                   int
	lastFreqRaw                                   string
	lastMaxTemp                                   float64
	lastSafety                                    bool
}

func (m *mockLaser) Connect(ctx context.Context) error    { m.connects++; return m.connectErr }
func (m *mockLaser) Disconnect(ctx context.Context) error { m.disconnects++; return nil }
func (m *mockLaser) Fire(ctx context.Context) error       { m.fires++; return m.fireErr }
func (m *mockLaser) Standby(ctx context.Context) error    { m.standbys++; return m.standbyErr }
func (m *mockLaser) Stop(ctx context.Context) error       { m.stops++; return m.stopErr }
func (m *mockLaser) SetQSDelay(ctx context.Context, us int) error {
	m.lastQSDelay = us
	return m.qsErr
}
func (m *mockLaser) SetFrequency(ctx context.Context, raw string) (int, error) {
	m.lastFreqRaw = raw
	return m.freqHz, m.freqErr
}
func (m *mockLaser) SetMaxTemp(v float64)            { m.lastMaxTemp = v }
func (m *mockLaser) SetSafety(enabled bool)          { m.lastSafety = enabled }
func (m *mockLaser) RunTempWatchdog(context.Context) {}

type mockPrograms struct {
	saved    models.Program
	saveErr  error
	got      models.Program
	getErr   error
	list     []models.Program
	listErr  error
	startErr error
	status   models.ProgramStatus

	lastSaveInput models.Program
	lastStartID   string
	lastStopID    string
	stopCalls     int
}

func (m *mockPrograms) Save(ctx context.Context, p models.Program) (models.Program, error) {
	m.lastSaveInput = p
	return m.saved, m.saveErr
}
func (m *mockPrograms) Get(ctx context.Context, id string) (models.Program, error) {
	return m.got, m.getErr
}
func (m *mockPrograms) List(ctx context.Context) ([]models.Program, error) {
	return m.list, m.listErr
}
func (m *mockPrograms) Delete(ctx context.Context, id string) error { return m.getErr }
func (m *mockPrograms) Duplicate(ctx context.Context, id string) (models.Program, error) {
	return m.got, m.getErr
}
func (m *mockPrograms) RemoveAll(ctx context.Context) error { return nil }
func (m *mockPrograms) Start(ctx context.Context, id string) error {
	m.lastStartID = id
	return m.startErr
}
func (m *mockPrograms) Stop(id string)                     { m.lastStopID = id; m.stopCalls++ }
func (m *mockPrograms) StartAll(ctx context.Context) error { return m.startErr }
func (m *mockPrograms) StopAll()                           { m.stopCalls++ }
func (m *mockPrograms) Pause(id string) error              { return m.startErr }
func (m *mockPrograms) Resume(id string) error             { return m.startErr }
func (m *mockPrograms) Status(ctx context.Context, id string) (models.ProgramStatus, error) {
	return m.status, m.getErr
}
func (m *mockPrograms) StatusAll(ctx context.Context) ([]models.ProgramStatus, error) {
	return []models.ProgramStatus{m.status}, nil
}
func (m *mockPrograms) PreviewCycles(ctx context.Context, id string) (int, error) {
	return m.status.Total, m.getErr
}
func (m *mockPrograms) PreviewFireTimes(ctx context.Context, id string, max int) ([]time.Time, error) {
	return nil, m.getErr
}

type mockMonitoring struct {
	state models.LaserState
	err   error
}

func (m *mockMonitoring) GetState(ctx context.Context) (models.LaserState, error) {
	return m.state, m.err
}
func (m *mockMonitoring) Subscribe() (<-chan models.LaserState, func()) {
	ch := make(chan models.LaserState)
	return ch, func() {}
}
func (m *mockMonitoring) Run(ctx context.Context) {}

type mockEventLog struct {
	resp     []models.Event
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
	recorded []string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.Event, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}
func (m *mockEventLog) Record(eventType, description string) {
	m.recorded = append(m.recorded, eventType)
}

type mockTelemetry struct {
	resp     []models.TelemetryRecord
	err      error
	lastFltr service.TelemetryFilter
}

func (m *mockTelemetry) ListTelemetry(ctx context.Context, f service.TelemetryFilter) ([]models.TelemetryRecord, error) {
	m.lastFltr = f
	return m.resp, m.err
}

type mockRoof struct {
	openErr, closeErr error
	opens, closes     int
	state             models.RoofState
}

func (m *mockRoof) OpenRoof(ctx context.Context) error  { m.opens++; return m.openErr }
func (m *mockRoof) CloseRoof(ctx context.Context) error { m.closes++; return m.closeErr }
func (m *mockRoof) RoofState() models.RoofState         { return m.state }

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, &mockRoof{state: models.RoofOn}, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func newTestRouterWithRoof(s *service.Service, roof *mockRoof) *gin.Engine {
	h := NewHandler(s, roof, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
