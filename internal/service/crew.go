package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/sakif/crewcrew/internal/apperror"
	"github.com/sakif/crewcrew/internal/events"
	"github.com/sakif/crewcrew/internal/model"
	"github.com/sakif/crewcrew/internal/progress"
	"github.com/sakif/crewcrew/internal/repository"
)

const MaxCrewNameLength = 40

// CrewService manages the roster and announces experience gains on the bus.
type CrewService struct {
	repo   repository.CrewRepository
	bus    *events.Bus[events.CrewExpChanged]
	logger *slog.Logger

	// grantMu serialises the read-modify-write in GrantExp. Grants arrive
	// from handlers and from the demo reward timer.
	grantMu sync.Mutex
}

func NewCrewService(repo repository.CrewRepository, bus *events.Bus[events.CrewExpChanged], logger *slog.Logger) *CrewService {
	return &CrewService{repo: repo, bus: bus, logger: logger}
}

func (s *CrewService) List(ctx context.Context) ([]model.Crew, error) {
	crews, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: listing crews: %w", err)
	}
	return crews, nil
}

// Hire adds a crew member at level 1 with no experience.
func (s *CrewService) Hire(ctx context.Context, name, role string) (*model.Crew, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "Crew name is required.")
	}
	if utf8.RuneCountInString(name) > MaxCrewNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("Crew name must be %d characters or fewer.", MaxCrewNameLength))
	}

	crew := &model.Crew{Name: name, Role: strings.TrimSpace(role), Level: 1}
	if err := s.repo.Create(ctx, crew); err != nil {
		return nil, fmt.Errorf("service: hiring crew: %w", err)
	}

	s.logger.Info("crew hired", slog.String("id", crew.ID), slog.String("name", crew.Name))
	return crew, nil
}

// Dismiss removes a crew member from the roster.
func (s *CrewService) Dismiss(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("crew dismissed", slog.String("id", id))
	return nil
}

// GrantExp adds experience to one crew member, persists the result, and
// publishes CrewExpChanged. Concurrent grants are applied one at a time.
// Subscribers run before GrantExp returns, outside the grant lock.
func (s *CrewService) GrantExp(ctx context.Context, id string, amount int) (*model.Crew, error) {
	if amount <= 0 {
		return nil, apperror.ValidationFailed("amount", "Experience amount must be positive.")
	}

	crew, leveledUp, err := s.applyExp(ctx, id, amount)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(events.CrewExpChanged{
		CrewID:    crew.ID,
		CrewName:  crew.Name,
		NewExp:    crew.Exp,
		NewLevel:  crew.Level,
		ExpGained: amount,
		LeveledUp: leveledUp,
	})
	return crew, nil
}

func (s *CrewService) applyExp(ctx context.Context, id string, amount int) (*model.Crew, bool, error) {
	s.grantMu.Lock()
	defer s.grantMu.Unlock()

	crew, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}

	var leveledUp bool
	crew.Level, crew.Exp, leveledUp = progress.Apply(crew.Level, crew.Exp, amount)
	if err := s.repo.Update(ctx, crew); err != nil {
		return nil, false, fmt.Errorf("service: saving crew exp: %w", err)
	}
	return crew, leveledUp, nil
}
