package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/crewcrew/internal/apperror"
	"github.com/sakif/crewcrew/internal/service"
)

// SequenceHandler drives the scripted overlays: the daily report, the
// collaboration demo and the toasts. The page polls the GET endpoints to
// animate; the timers themselves run server-side.
type SequenceHandler struct {
	reports *service.ReportService
	demo    *service.DemoService
	toasts  *service.ToastService
	logger  *slog.Logger
}

func NewSequenceHandler(
	reports *service.ReportService,
	demo *service.DemoService,
	toasts *service.ToastService,
	logger *slog.Logger,
) *SequenceHandler {
	return &SequenceHandler{reports: reports, demo: demo, toasts: toasts, logger: logger}
}

// HandleStartReport fetches today's report and starts playing it.
//
// HTTP: POST /api/reports/daily
func (h *SequenceHandler) HandleStartReport(w http.ResponseWriter, r *http.Request) {
	view, err := h.reports.Start(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// HandleGetReport returns the current phase and the counter values.
//
// HTTP: GET /api/reports/daily
func (h *SequenceHandler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	view, ok := h.reports.View()
	if !ok {
		writeError(w, h.logger, apperror.NotFound("report", "daily"))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleDismissReport closes the overlay early.
//
// HTTP: DELETE /api/reports/daily
func (h *SequenceHandler) HandleDismissReport(w http.ResponseWriter, r *http.Request) {
	h.reports.Dismiss()
	w.WriteHeader(http.StatusNoContent)
}

type demoRequest struct {
	YouTubeURL string `json:"youtube_url"`
}

// HandleStartDemo runs the collaboration demo for a video.
//
// HTTP: POST /api/demo/collaboration
// REQUEST BODY: {"youtube_url": "https://www.youtube.com/watch?v=..."}
func (h *SequenceHandler) HandleStartDemo(w http.ResponseWriter, r *http.Request) {
	var req demoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	view, err := h.demo.Start(r.Context(), req.YouTubeURL)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// HandleGetDemo returns the steps revealed so far.
//
// HTTP: GET /api/demo/collaboration
func (h *SequenceHandler) HandleGetDemo(w http.ResponseWriter, r *http.Request) {
	view, ok := h.demo.View()
	if !ok {
		writeError(w, h.logger, apperror.NotFound("demo", "collaboration"))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HTTP: DELETE /api/demo/collaboration
func (h *SequenceHandler) HandleDismissDemo(w http.ResponseWriter, r *http.Request) {
	h.demo.Dismiss()
	w.WriteHeader(http.StatusNoContent)
}

// HandleListNotifications returns the visible toasts, oldest first.
//
// HTTP: GET /api/notifications
func (h *SequenceHandler) HandleListNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.toasts.List())
}

// HTTP: DELETE /api/notifications/{id}
func (h *SequenceHandler) HandleDismissNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.toasts.Dismiss(id) {
		writeError(w, h.logger, apperror.NotFound("notification", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
