package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/LeventeLantos/bulk-messaging/internal/model"
	"github.com/LeventeLantos/bulk-messaging/internal/service"
)

const maxBodyBytes = 1 << 20

// Service is the part of service.Messenger the HTTP layer needs.
type Service interface {
	Schedule(ctx context.Context, req service.ScheduleRequest) (model.Job, error)
	Cancel(ctx context.Context, id string) error
	ListScheduled(ctx context.Context) ([]model.ScheduledView, error)
	SendNow(ctx context.Context, recipients []model.Recipient, template string) (service.SendReport, error)
	Logs() []model.ActivityEntry
	Status(ctx context.Context) (service.Status, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

type scheduleReq struct {
	Recipients      []model.Recipient `json:"recipients"`
	MessageTemplate string            `json:"messageTemplate"`
	ScheduledTime   string            `json:"scheduledTime"`
	Timezone        string            `json:"timezone"`
}

type sendReq struct {
	Recipients      []model.Recipient `json:"recipients"`
	MessageTemplate string            `json:"messageTemplate"`
}

type logEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleReq
	if !decodeBody(w, r, &req) {
		return
	}

	job, err := h.svc.Schedule(r.Context(), service.ScheduleRequest{
		Recipients:    req.Recipients,
		Template:      req.MessageTemplate,
		ScheduledTime: req.ScheduledTime,
		Timezone:      req.Timezone,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":       true,
		"jobId":         job.ID,
		"scheduledTime": job.ScheduledAt,
	})
}

func (h *Handler) ListScheduled(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.svc.ListScheduled(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "jobs": jobs})
}

func (h *Handler) CancelScheduled(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Cancel(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Scheduled job cancelled"})
}

func (h *Handler) SendNow(w http.ResponseWriter, r *http.Request) {
	var req sendReq
	if !decodeBody(w, r, &req) {
		return
	}

	report, err := h.svc.SendNow(r.Context(), req.Recipients, req.MessageTemplate)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"results": report.Results,
		"summary": report.Summary,
	})
}

func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	entries := h.svc.Logs()
	out := make([]logEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, logEntry{Timestamp: e.Timestamp, Message: e.Message})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "logs": out})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid JSON body"})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": ve.Msg, "field": ve.Field})
	case errors.Is(err, service.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Scheduled job not found"})
	case errors.Is(err, service.ErrTransportUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": "Messaging client not connected"})
	case errors.Is(err, service.ErrStopped):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": "Service is shutting down"})
	default:
		log.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
