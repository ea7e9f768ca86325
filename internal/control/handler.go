// Package control exposes the monitor's command surface over a local HTTP API.
package control

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Hara602/wheaSentry/internal/config"
	"github.com/Hara602/wheaSentry/internal/model"
	"github.com/Hara602/wheaSentry/internal/monitor"
	"go.uber.org/zap"
)

// Monitor is the part of the scheduler the API drives.
type Monitor interface {
	Start(seconds int) (monitor.Advisory, error)
	Stop() error
	Snapshot() monitor.Snapshot
}

// ReactionStore loads and saves the reaction settings.
type ReactionStore interface {
	Current() config.Reaction
	Save(cfg config.Reaction) error
}

// LogSource returns the recent log panel lines, oldest first.
type LogSource interface {
	Lines() []string
}

// Handler serves the control routes.
type Handler struct {
	mon   Monitor
	store ReactionStore
	panel LogSource
	log   *zap.Logger
}

func NewHandler(mon Monitor, store ReactionStore, panel LogSource, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{mon: mon, store: store, panel: panel, log: log}
}

// StartRequest is the body of POST /monitor/start. A missing body or
// interval uses the default.
type StartRequest struct {
	Interval *int `json:"interval"`
}

// StatusResponse describes the monitor state.
type StatusResponse struct {
	Status          string     `json:"status"`
	SessionID       string     `json:"session_id,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	IntervalSeconds int        `json:"interval_seconds,omitempty"`
	LastMatchCount  int        `json:"last_match_count"`
	LastPoll        *time.Time `json:"last_poll,omitempty"`
	Advisory        string     `json:"advisory,omitempty"`
}

// EventDescription is one watched WHEA identifier.
type EventDescription struct {
	ID          model.EventID `json:"id"`
	Description string        `json:"description"`
}

func statusResponse(s monitor.Snapshot) StatusResponse {
	resp := StatusResponse{
		Status:         s.Status.String(),
		LastMatchCount: s.LastMatchCount,
	}
	if s.Status == model.Running {
		resp.SessionID = s.SessionID
		resp.IntervalSeconds = int(s.Interval / time.Second)
		started := s.StartedAt
		resp.StartedAt = &started
	}
	if !s.LastPoll.IsZero() {
		last := s.LastPoll
		resp.LastPoll = &last
	}
	return resp
}

// StartMonitoring handles POST /monitor/start.
func (h *Handler) StartMonitoring(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(w, newBadRequest("invalid request body"))
		return
	}
	interval := monitor.DefaultInterval
	if req.Interval != nil {
		interval = *req.Interval
	}

	advisory, err := h.mon.Start(interval)
	if err != nil {
		h.writeMonitorError(w, err)
		return
	}
	resp := statusResponse(h.mon.Snapshot())
	resp.Advisory = string(advisory)
	ok(w, resp)
}

// StopMonitoring handles POST /monitor/stop.
func (h *Handler) StopMonitoring(w http.ResponseWriter, r *http.Request) {
	if err := h.mon.Stop(); err != nil {
		h.writeMonitorError(w, err)
		return
	}
	ok(w, statusResponse(h.mon.Snapshot()))
}

// GetStatus handles GET /monitor/status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ok(w, statusResponse(h.mon.Snapshot()))
}

func (h *Handler) writeMonitorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, monitor.ErrInvalidInterval):
		fail(w, newValidationError(err.Error()))
	case errors.Is(err, monitor.ErrClosed):
		fail(w, &Error{Code: ErrCodeUnavailable, Message: err.Error(), Status: http.StatusServiceUnavailable})
	default:
		h.log.Error("Monitor command failed", zap.Error(err))
		fail(w, &Error{Code: ErrCodeInternalError, Message: "Internal server error", Status: http.StatusInternalServerError})
	}
}

// GetReaction handles GET /reaction.
func (h *Handler) GetReaction(w http.ResponseWriter, r *http.Request) {
	ok(w, h.store.Current())
}

// PutReaction handles PUT /reaction. The live settings take the edit even
// when writing the file fails; that case answers 500.
func (h *Handler) PutReaction(w http.ResponseWriter, r *http.Request) {
	var cfg config.Reaction
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		fail(w, newBadRequest("invalid request body"))
		return
	}
	if err := h.store.Save(cfg); err != nil {
		fail(w, &Error{Code: ErrCodeSaveFailed, Message: err.Error(), Status: http.StatusInternalServerError})
		return
	}
	ok(w, h.store.Current())
}

// GetLog handles GET /log.
func (h *Handler) GetLog(w http.ResponseWriter, r *http.Request) {
	lines := []string{}
	if h.panel != nil {
		lines = append(lines, h.panel.Lines()...)
	}
	ok(w, map[string]any{"lines": lines})
}

// ListEvents handles GET /events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	ids := model.RecognizedList()
	events := make([]EventDescription, 0, len(ids))
	for _, id := range ids {
		events = append(events, EventDescription{ID: id, Description: model.Describe(id)})
	}
	ok(w, events)
}
