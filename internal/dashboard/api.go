package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/zotero2craft/zotero2craft/internal/app"
	"github.com/zotero2craft/zotero2craft/internal/bridge"
	"github.com/zotero2craft/zotero2craft/internal/state"
	"github.com/zotero2craft/zotero2craft/internal/sync"
)

// Backend is the part of *app.App the API drives.
type Backend interface {
	Sync(ctx context.Context, opts sync.RunOptions) (*sync.Report, error)
	RunOptions() sync.RunOptions
	Running() bool
	TestConnections(ctx context.Context) app.Connections
	SourceCollections(ctx context.Context) ([]bridge.Collection, error)
	SinkCollections(ctx context.Context) ([]bridge.SinkCollection, error)
	State(ctx context.Context) (*state.Record, error)
	ResetState(ctx context.Context) error
}

var _ Backend = (*app.App)(nil)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// handleSyncNow runs once. The body may override maxItems and
// skipProcessed; omitted fields keep the configured values.
func (s *Server) handleSyncNow(w http.ResponseWriter, r *http.Request) {
	opts := s.backend.RunOptions()
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// A client that disconnects mid-run does not abort it; the outcome still
	// reaches /ws subscribers.
	report, err := s.backend.Sync(context.WithoutCancel(r.Context()), opts)
	switch {
	case errors.Is(err, sync.ErrRunInProgress):
		writeError(w, http.StatusConflict, "Sync already in progress")
	case app.IsConfigError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		s.logger.Printf("Sync error: %v", err)
		writeError(w, http.StatusInternalServerError, "Sync process failed")
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

func (s *Server) handleTestConnections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.TestConnections(r.Context()))
}

func (s *Server) handleZoteroCollections(w http.ResponseWriter, r *http.Request) {
	cols, err := s.backend.SourceCollections(r.Context())
	s.writeCollections(w, cols, err, "Missing Zotero credentials")
}

func (s *Server) handleCraftCollections(w http.ResponseWriter, r *http.Request) {
	cols, err := s.backend.SinkCollections(r.Context())
	s.writeCollections(w, cols, err, "Missing Craft credentials")
}

func (s *Server) writeCollections(w http.ResponseWriter, cols any, err error, missing string) {
	switch {
	case app.IsConfigError(err):
		writeError(w, http.StatusBadRequest, missing)
	case err != nil:
		s.logger.Printf("Collections fetch error: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch collections")
	default:
		writeJSON(w, http.StatusOK, cols)
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	rec, err := s.backend.State(r.Context())
	if err != nil {
		s.logger.Printf("State error: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to open dedup store")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleResetState(w http.ResponseWriter, r *http.Request) {
	err := s.backend.ResetState(r.Context())
	switch {
	case errors.Is(err, sync.ErrRunInProgress):
		writeError(w, http.StatusConflict, "Sync in progress, try again later")
	case err != nil:
		s.logger.Printf("Reset error: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to reset dedup store")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
