// Package sequence runs scripted, timer-driven phase sequences: the daily
// report reveal, level-up toasts, and the collaboration demo.
//
// A Script is the transition table: an ordered list of phases, each with the
// time it dwells before the next one starts. A Sequencer walks that table.
// It only advances when its Clock fires, so phase order is monotonic and no
// phase is ever skipped. Dismiss stops the pending timer; a timer that fires
// after Dismiss is ignored.
//
// Sequencers know nothing about rendering. Callers observe them through
// Snapshot and through OnEnter hooks that fire once per phase.
package sequence

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Phase names one step of a script.
type Phase string

// Step is one row of a script's transition table.
// Dwell is how long the phase lasts before the next one starts; it is
// ignored for the last step, which is terminal.
type Step struct {
	Phase Phase
	Dwell time.Duration
}

// Script is a named, ordered list of steps.
type Script struct {
	Name  string
	Steps []Step
}

// Validate checks the script can be run: at least one step, unique phase
// names, and a positive dwell on every non-terminal step.
func (s Script) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("sequence: script %q has no steps", s.Name)
	}
	seen := make(map[Phase]bool, len(s.Steps))
	for i, st := range s.Steps {
		if st.Phase == "" {
			return fmt.Errorf("sequence: script %q step %d has no phase", s.Name, i)
		}
		if seen[st.Phase] {
			return fmt.Errorf("sequence: script %q repeats phase %q", s.Name, st.Phase)
		}
		seen[st.Phase] = true
		if i < len(s.Steps)-1 && st.Dwell <= 0 {
			return fmt.Errorf("sequence: script %q phase %q needs a positive dwell", s.Name, st.Phase)
		}
	}
	return nil
}

// Index returns the position of p in the script, or -1.
func (s Script) Index(p Phase) int {
	for i, st := range s.Steps {
		if st.Phase == p {
			return i
		}
	}
	return -1
}

// Terminal is the script's last phase.
func (s Script) Terminal() Phase {
	if len(s.Steps) == 0 {
		return ""
	}
	return s.Steps[len(s.Steps)-1].Phase
}

// State is the lifecycle of a Sequencer.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateFinished  State = "finished"
	StateDismissed State = "dismissed"
)

// ErrAlreadyStarted is returned by Start on a sequencer that is not idle.
var ErrAlreadyStarted = errors.New("sequence: already started")

// Snapshot is a point-in-time view of a Sequencer.
type Snapshot struct {
	Script  string        `json:"script"`
	Phase   Phase         `json:"phase"`
	Index   int           `json:"index"`
	State   State         `json:"state"`
	Elapsed time.Duration `json:"elapsed"` // time spent in the current phase
	Dwell   time.Duration `json:"dwell"`   // planned length of the current phase
}

// Progress is the fraction of the current phase already elapsed, in [0, 1].
// Terminal phases report 1.
func (s Snapshot) Progress() float64 {
	if s.Dwell <= 0 || s.State == StateFinished {
		return 1
	}
	p := float64(s.Elapsed) / float64(s.Dwell)
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}

// Sequencer walks a Script on a Clock.
type Sequencer struct {
	script Script
	clock  Clock

	mu        sync.Mutex
	state     State
	idx       int
	enteredAt time.Time
	timer     Timer
	hooks     map[Phase][]func()
	onDone    []func()
}

// New builds a sequencer. The script is validated here so a bad table fails
// at construction rather than halfway through a run.
func New(script Script, clock Clock) (*Sequencer, error) {
	if err := script.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Sequencer{
		script: script,
		clock:  clock,
		state:  StateIdle,
		idx:    -1,
		hooks:  make(map[Phase][]func()),
	}, nil
}

// OnEnter registers fn to run once when phase p starts. Register hooks
// before Start.
func (s *Sequencer) OnEnter(p Phase, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[p] = append(s.hooks[p], fn)
}

// OnComplete registers fn to run when the terminal phase is reached.
// It does not run if the sequence is dismissed first.
func (s *Sequencer) OnComplete(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDone = append(s.onDone, fn)
}

// Start enters the first phase.
func (s *Sequencer) Start() error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateRunning
	run := s.enterLocked(0)
	s.mu.Unlock()

	run()
	return nil
}

// Dismiss ends the sequence early and cancels the pending timer.
// Dismissing a finished or already dismissed sequence does nothing.
func (s *Sequencer) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateFinished || s.state == StateDismissed {
		return
	}
	s.state = StateDismissed
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Phase returns the current phase ("" before Start).
func (s *Sequencer) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx < 0 {
		return ""
	}
	return s.script.Steps[s.idx].Phase
}

// State returns the lifecycle state.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the current phase, state and timing.
func (s *Sequencer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Script: s.script.Name, Index: s.idx, State: s.state}
	if s.idx >= 0 {
		st := s.script.Steps[s.idx]
		snap.Phase = st.Phase
		if s.idx < len(s.script.Steps)-1 {
			snap.Dwell = st.Dwell
		}
		snap.Elapsed = s.clock.Now().Sub(s.enteredAt)
	}
	return snap
}

// enterLocked moves to step i and schedules the next transition. It returns
// the hooks to run; the caller runs them after releasing s.mu so hooks may
// call back into the sequencer.
func (s *Sequencer) enterLocked(i int) func() {
	s.idx = i
	s.enteredAt = s.clock.Now()
	step := s.script.Steps[i]

	hooks := append([]func(){}, s.hooks[step.Phase]...)
	last := i == len(s.script.Steps)-1
	if last {
		s.state = StateFinished
		s.timer = nil
		hooks = append(hooks, s.onDone...)
	} else {
		s.timer = s.clock.AfterFunc(step.Dwell, func() { s.advance(i) })
	}

	return func() {
		for _, h := range hooks {
			h()
		}
	}
}

// advance is the timer callback for leaving step from. Stale callbacks
// (after Dismiss, or racing a Stop) are dropped.
func (s *Sequencer) advance(from int) {
	s.mu.Lock()
	if s.state != StateRunning || s.idx != from {
		s.mu.Unlock()
		return
	}
	run := s.enterLocked(from + 1)
	s.mu.Unlock()

	run()
}
