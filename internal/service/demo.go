package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/sakif/crewcrew/internal/apperror"
	"github.com/sakif/crewcrew/internal/backend"
	"github.com/sakif/crewcrew/internal/model"
	"github.com/sakif/crewcrew/internal/sequence"
)

// DemoRewardExp is granted to each of the first DemoRewardCrews crew
// members when a collaboration demo plays to the end.
const (
	DemoRewardExp   = 50
	DemoRewardCrews = 2
)

// DemoAPI is the part of the backend the collaboration demo uses.
type DemoAPI interface {
	CollaborationDemo(ctx context.Context, youtubeURL string) (backend.CollabResult, error)
}

// DemoView reveals the backend's steps a phase at a time.
type DemoView struct {
	Phase        sequence.Phase            `json:"phase"`
	State        sequence.State            `json:"state"`
	Progress     float64                   `json:"progress"`
	Steps        []model.CollaborationStep `json:"steps"`
	FinalArticle string                    `json:"finalArticle,omitempty"`
}

// DemoService runs the two-agent collaboration demo.
type DemoService struct {
	api    DemoAPI
	crews  *CrewService
	clock  sequence.Clock
	logger *slog.Logger

	mu     sync.Mutex
	result *model.Collaboration
	seq    *sequence.Sequencer
}

func NewDemoService(api DemoAPI, crews *CrewService, clock sequence.Clock, logger *slog.Logger) *DemoService {
	return &DemoService{api: api, crews: crews, clock: clock, logger: logger}
}

// Start asks the backend to run the demo for youtubeURL, then plays the
// result. A failed demo comes back as a validation error carrying the
// backend's message, and nothing is played.
func (s *DemoService) Start(ctx context.Context, youtubeURL string) (DemoView, error) {
	youtubeURL = strings.TrimSpace(youtubeURL)
	if youtubeURL == "" {
		return DemoView{}, apperror.ValidationFailed("youtube_url", "Please enter a YouTube URL.")
	}

	res, err := s.api.CollaborationDemo(ctx, youtubeURL)
	if err != nil {
		return DemoView{}, err
	}

	var collab model.Collaboration
	switch r := res.(type) {
	case backend.CollabCompleted:
		collab = r.Collaboration
	case backend.CollabFailed:
		return DemoView{}, apperror.ValidationFailed("youtube_url", r.Message)
	}

	seq, err := sequence.New(CollaborationScript, s.clock)
	if err != nil {
		return DemoView{}, err
	}
	seq.OnComplete(s.reward)

	s.mu.Lock()
	if s.seq != nil {
		s.seq.Dismiss()
	}
	s.result = &collab
	s.seq = seq
	s.mu.Unlock()

	if err := seq.Start(); err != nil {
		return DemoView{}, err
	}
	view, _ := s.View()
	return view, nil
}

// reward runs on a timer goroutine after the article is revealed, so it has
// no request context of its own.
func (s *DemoService) reward() {
	if s.crews == nil {
		return
	}
	ctx := context.Background()
	crews, err := s.crews.List(ctx)
	if err != nil {
		s.logger.Warn("demo reward: listing crews failed", slog.String("error", err.Error()))
		return
	}
	for i := 0; i < len(crews) && i < DemoRewardCrews; i++ {
		if _, err := s.crews.GrantExp(ctx, crews[i].ID, DemoRewardExp); err != nil {
			s.logger.Warn("demo reward failed",
				slog.String("crewID", crews[i].ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// View returns the current state; false when no demo has been started.
func (s *DemoService) View() (DemoView, bool) {
	s.mu.Lock()
	result, seq := s.result, s.seq
	s.mu.Unlock()
	if seq == nil {
		return DemoView{}, false
	}

	snap := seq.Snapshot()
	v := DemoView{
		Phase:    snap.Phase,
		State:    snap.State,
		Progress: snap.Progress(),
		Steps:    revealed(result.Steps, snap.Phase),
	}
	if snap.Phase == PhaseArticle {
		v.FinalArticle = result.FinalArticle
	}
	return v, true
}

// revealed returns the steps visible in a phase: none while analyzing, the
// researcher's turn, then the writer's, then everything from the handoff on.
func revealed(steps []model.CollaborationStep, p sequence.Phase) []model.CollaborationStep {
	n := 0
	switch p {
	case PhaseResearcher:
		n = 1
	case PhaseWriter:
		n = 2
	case PhaseHandoff, PhaseArticle:
		n = len(steps)
	}
	n = min(n, len(steps))
	out := make([]model.CollaborationStep, n)
	copy(out, steps[:n])
	return out
}

// Dismiss stops the demo. Crew rewards are only granted on completion.
func (s *DemoService) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq != nil {
		s.seq.Dismiss()
	}
	s.seq = nil
	s.result = nil
}
