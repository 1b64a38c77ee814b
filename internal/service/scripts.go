package service

import (
	"time"

	"github.com/sakif/crewcrew/internal/sequence"
)

// Phase tables for the scripted sequences. Each dwell is how long the phase
// is shown before the next one; the last phase of each script is terminal.

const (
	PhaseCounting sequence.Phase = "counting"
	PhaseStamp    sequence.Phase = "stamp"
	PhasePartner  sequence.Phase = "partner"
	PhaseComplete sequence.Phase = "complete"
)

var DailyReportScript = sequence.Script{
	Name: "daily-report",
	Steps: []sequence.Step{
		{Phase: PhaseCounting, Dwell: 2 * time.Second},
		{Phase: PhaseStamp, Dwell: 1200 * time.Millisecond},
		{Phase: PhasePartner, Dwell: 1500 * time.Millisecond},
		{Phase: PhaseComplete},
	},
}

const (
	PhaseEnter  sequence.Phase = "enter"
	PhaseShow   sequence.Phase = "show"
	PhaseExit   sequence.Phase = "exit"
	PhaseClosed sequence.Phase = "closed"
)

var ToastScript = sequence.Script{
	Name: "toast",
	Steps: []sequence.Step{
		{Phase: PhaseEnter, Dwell: 300 * time.Millisecond},
		{Phase: PhaseShow, Dwell: 3 * time.Second},
		{Phase: PhaseExit, Dwell: 400 * time.Millisecond},
		{Phase: PhaseClosed},
	},
}

const (
	PhaseAnalyzing  sequence.Phase = "analyzing"
	PhaseResearcher sequence.Phase = "researcher"
	PhaseWriter     sequence.Phase = "writer"
	PhaseHandoff    sequence.Phase = "handoff"
	PhaseArticle    sequence.Phase = "article"
)

var CollaborationScript = sequence.Script{
	Name: "collaboration",
	Steps: []sequence.Step{
		{Phase: PhaseAnalyzing, Dwell: 1500 * time.Millisecond},
		{Phase: PhaseResearcher, Dwell: 2 * time.Second},
		{Phase: PhaseWriter, Dwell: 2 * time.Second},
		{Phase: PhaseHandoff, Dwell: time.Second},
		{Phase: PhaseArticle},
	},
}
