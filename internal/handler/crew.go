package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/crewcrew/internal/service"
)

// CrewHandler manages the crew roster.
type CrewHandler struct {
	crews  *service.CrewService
	logger *slog.Logger
}

func NewCrewHandler(crews *service.CrewService, logger *slog.Logger) *CrewHandler {
	return &CrewHandler{crews: crews, logger: logger}
}

// HandleList returns the roster, oldest hire first.
//
// HTTP: GET /api/crews
func (h *CrewHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	crews, err := h.crews.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, crews)
}

type hireRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// HandleHire adds a crew member at level 1.
//
// HTTP: POST /api/crews
// REQUEST BODY: {"name": "Researcher", "role": "research"}
func (h *CrewHandler) HandleHire(w http.ResponseWriter, r *http.Request) {
	var req hireRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	crew, err := h.crews.Hire(r.Context(), req.Name, req.Role)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, crew)
}

// HTTP: DELETE /api/crews/{id}
func (h *CrewHandler) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	if err := h.crews.Dismiss(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type expRequest struct {
	Amount int `json:"amount"`
}

// HandleGrantExp adds experience to one crew member. A level-up is
// announced by a toast through the crew event bus.
//
// HTTP: POST /api/crews/{id}/exp
// REQUEST BODY: {"amount": 50}
func (h *CrewHandler) HandleGrantExp(w http.ResponseWriter, r *http.Request) {
	var req expRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	crew, err := h.crews.GrantExp(r.Context(), chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, crew)
}
