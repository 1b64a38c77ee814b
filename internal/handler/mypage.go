package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/crewcrew/internal/apperror"
	"github.com/sakif/crewcrew/internal/model"
	"github.com/sakif/crewcrew/internal/service"
)

// ProfileHandler reads and edits the backend profile.
type ProfileHandler struct {
	profile *service.ProfileService
	logger  *slog.Logger
}

func NewProfileHandler(profile *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profile: profile, logger: logger}
}

// HandleGet returns the mirrored remote profile. Guests have none.
//
// HTTP: GET /api/mypage
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p := h.profile.Current()
	if p == nil {
		writeError(w, h.logger, apperror.NotFound("profile", "me"))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleUpdate saves the profile form and returns the profile as the backend
// now has it.
//
// HTTP: PUT /api/mypage
// REQUEST BODY: {"company_name": "...", "user_name": "...", "job_title": "...", "avatar_data": "data:image/png;base64,..."}
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var u model.ProfileUpdate
	if err := decodeJSON(r, &u); err != nil {
		writeError(w, h.logger, err)
		return
	}
	p, err := h.profile.Update(r.Context(), u)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
