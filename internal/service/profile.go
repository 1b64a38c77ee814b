package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/crewcrew/internal/apperror"
	"github.com/sakif/crewcrew/internal/model"
)

const (
	MaxAvatarBytes = 2 << 20 // 2 MB, counted on the data URI as sent
	avatarPrefix   = "data:image/"
)

// ProfileAPI is the part of the backend the profile page uses.
type ProfileAPI interface {
	UpdateProfile(ctx context.Context, u model.ProfileUpdate) error
}

// ProfileService edits the remote profile from the my-page screen.
type ProfileService struct {
	api     ProfileAPI
	session *SessionStore
	logger  *slog.Logger
}

func NewProfileService(api ProfileAPI, session *SessionStore, logger *slog.Logger) *ProfileService {
	return &ProfileService{api: api, session: session, logger: logger}
}

// Current is the remote profile as last fetched; nil is a valid answer.
func (s *ProfileService) Current() *model.RemoteProfile {
	return s.session.Remote()
}

// Update validates the form, sends it, and re-fetches the remote profile so
// the page shows what the backend stored.
func (s *ProfileService) Update(ctx context.Context, u model.ProfileUpdate) (*model.RemoteProfile, error) {
	u.CompanyName = strings.TrimSpace(u.CompanyName)
	u.UserName = strings.TrimSpace(u.UserName)
	u.JobTitle = strings.TrimSpace(u.JobTitle)

	if u.CompanyName == "" {
		return nil, apperror.ValidationFailed("company_name", "Company name is required.")
	}
	if u.AvatarData != "" {
		if !strings.HasPrefix(u.AvatarData, avatarPrefix) {
			return nil, apperror.ValidationFailed("avatar_data", "Avatar must be an image.")
		}
		if len(u.AvatarData) > MaxAvatarBytes {
			return nil, apperror.ValidationFailed("avatar_data",
				fmt.Sprintf("Avatar must be %d MB or smaller.", MaxAvatarBytes>>20))
		}
	}

	if err := s.api.UpdateProfile(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("profile updated", slog.String("company", u.CompanyName))

	s.session.RefreshAPIUser(ctx)
	return s.session.Remote(), nil
}
