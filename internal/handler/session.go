package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/crewcrew/internal/apperror"
	"github.com/sakif/crewcrew/internal/model"
	"github.com/sakif/crewcrew/internal/progress"
	"github.com/sakif/crewcrew/internal/service"
)

// SessionHandler exposes the session store to the page scripts.
type SessionHandler struct {
	session *service.SessionStore
	toasts  *service.ToastService
	logger  *slog.Logger
}

func NewSessionHandler(session *service.SessionStore, toasts *service.ToastService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{session: session, toasts: toasts, logger: logger}
}

// sessionView is the JSON form of the session. Threshold is the exp needed
// to finish the current level, for drawing the progress bar.
type sessionView struct {
	Ready     bool                 `json:"ready"`
	LoggedIn  bool                 `json:"loggedIn"`
	User      *model.LocalProfile  `json:"user"`
	APIUser   *model.RemoteProfile `json:"apiUser"`
	Threshold int                  `json:"threshold,omitempty"`
}

func (h *SessionHandler) view() sessionView {
	local := h.session.Local()
	v := sessionView{
		Ready:    h.session.Ready(),
		LoggedIn: local != nil,
		User:     local,
		APIUser:  h.session.Remote(),
	}
	if local != nil {
		v.Threshold = progress.Threshold(local.Level)
	}
	return v
}

// HandleGet returns both profiles.
//
// HTTP: GET /api/session
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.view())
}

// HandleRefresh re-fetches the remote profile now instead of waiting for the
// next tick. A failed fetch keeps the previous profile and still returns 200.
//
// HTTP: POST /api/session/refresh
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	h.session.RefreshAPIUser(r.Context())
	writeJSON(w, http.StatusOK, h.view())
}

// HandlePatch merges a partial update into the local profile.
//
// HTTP: PATCH /api/session
// REQUEST BODY: {"name": "...", "level": 2, "exp": 10, "gold": 500} (all optional)
func (h *SessionHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	var patch model.ProfilePatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.session.UpdateUser(r.Context(), patch); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view())
}

type amountRequest struct {
	Amount int `json:"amount"`
}

// HandleAddExp adds experience to the local profile. A level-up also raises
// a toast.
//
// HTTP: POST /api/session/exp
// REQUEST BODY: {"amount": 120}
func (h *SessionHandler) HandleAddExp(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Amount <= 0 {
		writeError(w, h.logger, apperror.ValidationFailed("amount", "Experience amount must be positive."))
		return
	}

	leveledUp, err := h.session.AddExp(r.Context(), req.Amount)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	v := h.view()
	if leveledUp && v.User != nil {
		h.toasts.Push(service.ToastLevelUp, fmt.Sprintf("Level up! You are now level %d.", v.User.Level))
	}

	writeJSON(w, http.StatusOK, struct {
		sessionView
		LeveledUp bool `json:"leveledUp"`
	}{v, leveledUp})
}

// HandleAddGold adds to (or, with a negative amount, takes from) the local
// gold balance. The balance never goes below zero.
//
// HTTP: POST /api/session/gold
// REQUEST BODY: {"amount": -200}
func (h *SessionHandler) HandleAddGold(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.session.AddGold(r.Context(), req.Amount); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view())
}
