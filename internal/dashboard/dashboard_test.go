package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/zotero2craft/zotero2craft/internal/app"
	"github.com/zotero2craft/zotero2craft/internal/bridge"
	"github.com/zotero2craft/zotero2craft/internal/state"
	"github.com/zotero2craft/zotero2craft/internal/sync"
)

// fakeBackend replays a fixed run through its observer.
type fakeBackend struct {
	observer sync.Observer
	opts     sync.RunOptions
	gotOpts  sync.RunOptions
	gotCtx   context.Context
	syncErr  error
	colErr   error
	resetErr error
	resets   int
	running  bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{opts: sync.DefaultRunOptions()}
}

func (f *fakeBackend) RunOptions() sync.RunOptions { return f.opts }
func (f *fakeBackend) Running() bool               { return f.running }

func (f *fakeBackend) Sync(ctx context.Context, opts sync.RunOptions) (*sync.Report, error) {
	f.gotOpts = opts
	f.gotCtx = ctx
	if f.syncErr != nil {
		if f.observer != nil && !errors.Is(f.syncErr, sync.ErrRunInProgress) {
			f.observer.RunFailed("run-1", f.syncErr)
		}
		return nil, f.syncErr
	}

	report := &sync.Report{
		RunID: "run-1",
		Outcomes: []sync.Outcome{
			{Key: "K1", Title: "First", Status: sync.StatusCreated},
			{Key: "K2", Title: "Second", Status: sync.StatusSkipped, Details: sync.DetailsAlreadyProcessed},
		},
		Created: 1,
		Skipped: 1,
	}
	if f.observer != nil {
		f.observer.RunStarted(report.RunID, opts)
		for i, o := range report.Outcomes {
			f.observer.ItemProcessed(report.RunID, i, len(report.Outcomes), o)
		}
		f.observer.RunCompleted(report)
	}
	return report, nil
}

func (f *fakeBackend) TestConnections(context.Context) app.Connections {
	return app.Connections{Zotero: true, Craft: false, AI: true}
}

func (f *fakeBackend) SourceCollections(context.Context) ([]bridge.Collection, error) {
	if f.colErr != nil {
		return nil, f.colErr
	}
	return []bridge.Collection{{Key: "COL1", Name: "Reading"}}, nil
}

func (f *fakeBackend) SinkCollections(context.Context) ([]bridge.SinkCollection, error) {
	if f.colErr != nil {
		return nil, f.colErr
	}
	return []bridge.SinkCollection{{ID: "c1", Name: "Papers", ContainerID: "d1"}}, nil
}

func (f *fakeBackend) State(context.Context) (*state.Record, error) {
	return &state.Record{ProcessedKeys: []string{"K1"}}, nil
}

func (f *fakeBackend) ResetState(context.Context) error {
	if f.resetErr != nil {
		return f.resetErr
	}
	f.resets++
	return nil
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func startServer(t *testing.T, backend *fakeBackend) *Server {
	t.Helper()

	server := NewServer(backend, &Config{Port: 0, Logger: testLogger()})
	backend.observer = NewHandler(server, testLogger())
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })
	return server
}

func dial(t *testing.T, ctx context.Context, server *Server) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func do(t *testing.T, server *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(newFakeBackend(), &Config{Port: 0, Logger: testLogger()})

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if addr := server.GetAddr(); addr == "" || strings.HasSuffix(addr, ":0") {
		t.Fatalf("unexpected address %q", addr)
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	server := NewServer(newFakeBackend(), &Config{Logger: testLogger()})
	if err := server.Stop(); err != nil {
		t.Fatalf("Stop() = %v", err)
	}
}

func TestWebSocketStatusOnConnect(t *testing.T) {
	backend := newFakeBackend()
	backend.running = true
	server := startServer(t, backend)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, server)

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeStatus {
		t.Fatalf("Expected welcome message type %s, got %s", MessageTypeStatus, msg.Type)
	}
	var status StatusData
	if err := json.Unmarshal(msg.Data, &status); err != nil || !status.Running {
		t.Errorf("status = %+v, %v", status, err)
	}
	if count := server.ClientCount(); count != 1 {
		t.Errorf("Expected 1 client, got %d", count)
	}
}

func TestRunEventsBroadcast(t *testing.T) {
	backend := newFakeBackend()
	server := startServer(t, backend)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const numClients = 2
	conns := make([]*websocket.Conn, numClients)
	for i := range conns {
		conns[i] = dial(t, ctx, server)
		readMessage(t, ctx, conns[i])
	}

	resp, err := http.Post("http://"+server.GetAddr()+"/api/sync-now", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	want := []MessageType{
		MessageTypeRunStarted,
		MessageTypeItemProcessed,
		MessageTypeItemProcessed,
		MessageTypeRunCompleted,
	}
	for i, conn := range conns {
		for j, typ := range want {
			msg := readMessage(t, ctx, conn)
			if msg.Type != typ {
				t.Fatalf("client %d message %d: type %s, want %s", i, j, msg.Type, typ)
			}
			if j == 2 {
				var item ItemProcessedData
				if err := json.Unmarshal(msg.Data, &item); err != nil {
					t.Fatal(err)
				}
				if item.Index != 1 || item.Total != 2 || item.Outcome.Status != sync.StatusSkipped {
					t.Errorf("item = %+v", item)
				}
			}
		}
	}
}

func TestRunFailedBroadcast(t *testing.T) {
	backend := newFakeBackend()
	backend.syncErr = fmt.Errorf("fetch: %w", bridge.ErrSourceUnavailable)
	server := startServer(t, backend)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, server)
	readMessage(t, ctx, conn)

	rec := do(t, server, http.MethodPost, "/api/sync-now", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}

	msg := readMessage(t, ctx, conn)
	var data RunFailedData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatal(err)
	}
	if msg.Type != MessageTypeRunFailed || !strings.Contains(data.Error, "source unavailable") {
		t.Errorf("message = %s %+v", msg.Type, data)
	}
}

func TestSyncNow(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		syncErr    error
		wantStatus int
		wantBody   string
	}{
		{"default options", "", nil, http.StatusOK, `"logs":[`},
		{"invalid body", "{", nil, http.StatusBadRequest, "Invalid request body"},
		{"in progress", "", sync.ErrRunInProgress, http.StatusConflict, "already in progress"},
		{"config invalid", "", fmt.Errorf("zotero: missing: %w", bridge.ErrConfigInvalid), http.StatusBadRequest, "zotero: missing"},
		{"fatal", "", bridge.ErrSourceUnavailable, http.StatusInternalServerError, `{"error":"Sync process failed"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.syncErr = tt.syncErr
			server := NewServer(backend, &Config{Logger: testLogger()})

			rec := do(t, server, http.MethodPost, "/api/sync-now", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want %s", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestSyncNowOptions(t *testing.T) {
	backend := newFakeBackend()
	server := NewServer(backend, &Config{Logger: testLogger()})

	rec := do(t, server, http.MethodPost, "/api/sync-now", `{"maxItems": 3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if backend.gotOpts != (sync.RunOptions{MaxItems: 3, SkipProcessed: true}) {
		t.Errorf("options = %+v", backend.gotOpts)
	}

	do(t, server, http.MethodPost, "/api/sync-now", `{"skipProcessed": false}`)
	if backend.gotOpts != (sync.RunOptions{MaxItems: 10, SkipProcessed: false}) {
		t.Errorf("options = %+v", backend.gotOpts)
	}

	var report sync.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if len(report.Outcomes) != 2 || report.Outcomes[0].Title != "First" {
		t.Errorf("report = %+v", report)
	}
}

func TestSyncNowOutlivesClient(t *testing.T) {
	backend := newFakeBackend()
	server := NewServer(backend, &Config{Logger: testLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/sync-now", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if err := backend.gotCtx.Err(); err != nil {
		t.Errorf("run context inherited the client disconnect: %v", err)
	}
}

func TestTestConnections(t *testing.T) {
	server := NewServer(newFakeBackend(), &Config{Logger: testLogger()})

	rec := do(t, server, http.MethodPost, "/api/test-connections", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"zotero":true,"craft":false,"ai":true}` {
		t.Errorf("body = %s", got)
	}
}

func TestCollections(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"zotero", "/api/zotero/collections", nil, http.StatusOK, `"name":"Reading"`},
		{"craft", "/api/craft/collections", nil, http.StatusOK, `"containerId":"d1"`},
		{"zotero missing credentials", "/api/zotero/collections", bridge.ErrConfigInvalid, http.StatusBadRequest, "Missing Zotero credentials"},
		{"craft missing credentials", "/api/craft/collections", bridge.ErrConfigInvalid, http.StatusBadRequest, "Missing Craft credentials"},
		{"upstream failure", "/api/craft/collections", bridge.ErrSinkUnavailable, http.StatusInternalServerError, "Failed to fetch collections"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.colErr = tt.err
			server := NewServer(backend, &Config{Logger: testLogger()})

			rec := do(t, server, http.MethodGet, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want %s", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestStateRoutes(t *testing.T) {
	backend := newFakeBackend()
	server := NewServer(backend, &Config{Logger: testLogger()})

	rec := do(t, server, http.MethodGet, "/api/state", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"processedKeys":["K1"]`) {
		t.Errorf("GET /api/state = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, server, http.MethodDelete, "/api/state", "")
	if rec.Code != http.StatusNoContent || backend.resets != 1 {
		t.Errorf("DELETE /api/state = %d, resets %d", rec.Code, backend.resets)
	}

	backend.resetErr = sync.ErrRunInProgress
	rec = do(t, server, http.MethodDelete, "/api/state", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("DELETE during run = %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server := NewServer(newFakeBackend(), &Config{Logger: testLogger()})

	rec := do(t, server, http.MethodGet, "/api/sync-now", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/sync-now = %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	server := NewServer(newFakeBackend(), &Config{Logger: testLogger()})

	rec := do(t, server, http.MethodGet, "/health", "")
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["running"] != false {
		t.Errorf("health = %v", body)
	}
}
