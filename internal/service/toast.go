package service

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/rs/xid"

	"github.com/sakif/crewcrew/internal/events"
	"github.com/sakif/crewcrew/internal/sequence"
)

const ToastLevelUp = "level-up"

// Toast is one transient notification.
type Toast struct {
	ID      string         `json:"id"`
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Phase   sequence.Phase `json:"phase"`
}

type toastEntry struct {
	id      string
	kind    string
	message string
	seq     *sequence.Sequencer
}

// ToastService shows short-lived notifications, each running the toast
// script (enter, show, exit) and disappearing when it reaches closed.
//
// It listens on the crew bus and raises a level-up toast whenever a crew
// member levels up.
type ToastService struct {
	clock  sequence.Clock
	logger *slog.Logger

	mu          sync.Mutex
	toasts      []*toastEntry
	unsubscribe func()
}

func NewToastService(bus *events.Bus[events.CrewExpChanged], clock sequence.Clock, logger *slog.Logger) *ToastService {
	s := &ToastService{clock: clock, logger: logger}
	s.unsubscribe = bus.Subscribe(func(e events.CrewExpChanged) {
		if !e.LeveledUp {
			return
		}
		s.Push(ToastLevelUp, fmt.Sprintf("%s reached level %d!", e.CrewName, e.NewLevel))
	})
	return s
}

// Push queues a toast and starts its sequence.
func (s *ToastService) Push(kind, message string) Toast {
	seq, err := sequence.New(ToastScript, s.clock)
	if err != nil {
		// ToastScript is a fixed table; this only fires if someone breaks it.
		panic(err)
	}
	e := &toastEntry{id: xid.New().String(), kind: kind, message: message, seq: seq}
	seq.OnComplete(func() { s.remove(e.id) })

	s.mu.Lock()
	s.toasts = append(s.toasts, e)
	s.mu.Unlock()

	if err := seq.Start(); err != nil {
		s.logger.Warn("toast failed to start", slog.String("error", err.Error()))
	}
	s.logger.Debug("toast queued", slog.String("id", e.id), slog.String("kind", kind))
	return e.view()
}

func (e *toastEntry) view() Toast {
	return Toast{ID: e.id, Kind: e.kind, Message: e.message, Phase: e.seq.Phase()}
}

// List returns the visible toasts, oldest first.
func (s *ToastService) List() []Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Toast, 0, len(s.toasts))
	for _, e := range s.toasts {
		out = append(out, e.view())
	}
	return out
}

// Dismiss closes one toast early. It reports whether the id was found.
func (s *ToastService) Dismiss(id string) bool {
	e := s.remove(id)
	if e == nil {
		return false
	}
	e.seq.Dismiss()
	return true
}

func (s *ToastService) remove(id string) *toastEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.toasts {
		if e.id == id {
			s.toasts = append(s.toasts[:i], s.toasts[i+1:]...)
			return e
		}
	}
	return nil
}

// Close stops listening on the bus and cancels every pending toast timer.
func (s *ToastService) Close() {
	s.unsubscribe()

	s.mu.Lock()
	toasts := s.toasts
	s.toasts = nil
	s.mu.Unlock()

	for _, e := range toasts {
		e.seq.Dismiss()
	}
}
