package handlers

import (
	"context"
	"net/http"

	"dataglove"
	"dataglove/internal/ingest"
	"dataglove/internal/service"

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

type mockConnection struct {
	connectErr    error
	disconnectErr error
	sources       []string
	listErr       error
	status        []ingest.SourceStatus

	lastConnect     service.ConnectParams
	connectCalls    int
	disconnectCalls int
	events          []ingest.Event
}

func (m *mockConnection) Connect(ctx context.Context, p service.ConnectParams) error {
	m.connectCalls++
	m.lastConnect = p
	return m.connectErr
}
func (m *mockConnection) Disconnect(ctx context.Context) error {
	m.disconnectCalls++
	return m.disconnectErr
}
func (m *mockConnection) ListSources() ([]string, error)    { return m.sources, m.listErr }
func (m *mockConnection) Sources() []ingest.SourceStatus    { return m.status }
func (m *mockConnection) HandleIngestEvent(ev ingest.Event) { m.events = append(m.events, ev) }

type mockCalibration struct {
	minErr, maxErr, resetErr error
	view                     service.CalibrationView
	calls                    []string
}

func (m *mockCalibration) SetCalibrationMin(ctx context.Context) error {
	m.calls = append(m.calls, "min")
	return m.minErr
}
func (m *mockCalibration) SetCalibrationMax(ctx context.Context) error {
	m.calls = append(m.calls, "max")
	return m.maxErr
}
func (m *mockCalibration) ResetCalibration(ctx context.Context) error {
	m.calls = append(m.calls, "reset")
	return m.resetErr
}
func (m *mockCalibration) CalibrationState() service.CalibrationView { return m.view }
func (m *mockCalibration) RestoreCalibration(ctx context.Context) (bool, error) {
	return false, nil
}

type mockMonitoring struct {
	pose dataglove.HandPose
}

func (m *mockMonitoring) GetCurrentPose() dataglove.HandPose { return m.pose }

type mockDisplay struct {
	fps    int
	setErr error
}

func (m *mockDisplay) SetRefreshRate(ctx context.Context, fps int) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.fps = fps
	return nil
}
func (m *mockDisplay) RefreshRate() int { return m.fps }

type mockEventLog struct {
	resp []dataglove.GloveEvent
	err  error
	last service.LogFilter
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]dataglove.GloveEvent, error) {
	m.last = f
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service, opts Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(s, nil, opts, nil)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
