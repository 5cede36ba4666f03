package dashboard

import (
	"encoding/json"
	"log"
	"time"

	"github.com/zotero2craft/zotero2craft/internal/sync"
)

// StatusData is sent on connect.
type StatusData struct {
	Running bool `json:"running"`
}

// RunStartedData announces a run.
type RunStartedData struct {
	RunID   string          `json:"runId"`
	Options sync.RunOptions `json:"options"`
}

// ItemProcessedData carries one item outcome. Index is zero-based.
type ItemProcessedData struct {
	RunID   string       `json:"runId"`
	Index   int          `json:"index"`
	Total   int          `json:"total"`
	Outcome sync.Outcome `json:"outcome"`
}

// RunFailedData carries the fatal error of an aborted run.
type RunFailedData struct {
	RunID string `json:"runId"`
	Error string `json:"error"`
}

// Handler turns orchestrator events into dashboard messages. It implements
// sync.Observer and never blocks the run: a full broadcast queue drops
// messages.
type Handler struct {
	server *Server
	logger *log.Logger
}

var _ sync.Observer = (*Handler)(nil)

// NewHandler creates a new event handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{server: server, logger: logger}
}

// RunStarted handles run start events
func (h *Handler) RunStarted(runID string, opts sync.RunOptions) {
	h.send(MessageTypeRunStarted, RunStartedData{RunID: runID, Options: opts})
}

// ItemProcessed handles per-item events
func (h *Handler) ItemProcessed(runID string, index, total int, outcome sync.Outcome) {
	h.send(MessageTypeItemProcessed, ItemProcessedData{
		RunID:   runID,
		Index:   index,
		Total:   total,
		Outcome: outcome,
	})
}

// RunCompleted handles run completion events
func (h *Handler) RunCompleted(report *sync.Report) {
	h.logger.Printf("Run %s complete: created=%d skipped=%d failed=%d",
		report.RunID, report.Created, report.Skipped, report.Failed)
	h.send(MessageTypeRunCompleted, report)
}

// RunFailed handles aborted runs
func (h *Handler) RunFailed(runID string, err error) {
	h.send(MessageTypeRunFailed, RunFailedData{RunID: runID, Error: err.Error()})
}

func (h *Handler) send(typ MessageType, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}

	h.server.Broadcast(Message{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})
}
