package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sakif/crewcrew/internal/model"
	"github.com/sakif/crewcrew/internal/sequence"
)

// ReportAPI is the part of the backend the daily report uses.
type ReportAPI interface {
	DailyReport(ctx context.Context) (*model.DailyReport, error)
}

// ReportCounter is the animated tally. During the counting phase each value
// climbs from 0 toward its target; after it, the targets are shown as is.
type ReportCounter struct {
	CompletedTasks int `json:"completedTasks"`
	ExpGained      int `json:"expGained"`
	CoinEarned     int `json:"coinEarned"`
}

// ReportView is what the report overlay renders.
type ReportView struct {
	Report   *model.DailyReport `json:"report"`
	Phase    sequence.Phase     `json:"phase"`
	State    sequence.State     `json:"state"`
	Progress float64            `json:"progress"`
	Counter  ReportCounter      `json:"counter"`
}

// ReportService plays the daily report sequence. When it completes, the
// session's currency is refreshed, since the report may have paid out coin.
type ReportService struct {
	api     ReportAPI
	session *SessionStore
	clock   sequence.Clock
	logger  *slog.Logger

	mu     sync.Mutex
	report *model.DailyReport
	seq    *sequence.Sequencer
}

func NewReportService(api ReportAPI, session *SessionStore, clock sequence.Clock, logger *slog.Logger) *ReportService {
	return &ReportService{api: api, session: session, clock: clock, logger: logger}
}

// Start fetches today's report and plays it from the first phase. A report
// already playing is dismissed first.
func (s *ReportService) Start(ctx context.Context) (ReportView, error) {
	report, err := s.api.DailyReport(ctx)
	if err != nil {
		return ReportView{}, err
	}

	seq, err := sequence.New(DailyReportScript, s.clock)
	if err != nil {
		return ReportView{}, err
	}
	seq.OnComplete(func() {
		s.logger.Debug("daily report finished; refreshing currency")
		s.session.goRefresh()
	})

	s.mu.Lock()
	if s.seq != nil {
		s.seq.Dismiss()
	}
	s.report = report
	s.seq = seq
	s.mu.Unlock()

	if err := seq.Start(); err != nil {
		return ReportView{}, err
	}
	view, _ := s.View()
	return view, nil
}

// View returns the current state; false when no report has been started.
func (s *ReportService) View() (ReportView, bool) {
	s.mu.Lock()
	report, seq := s.report, s.seq
	s.mu.Unlock()
	if seq == nil {
		return ReportView{}, false
	}

	snap := seq.Snapshot()
	return ReportView{
		Report:   report,
		Phase:    snap.Phase,
		State:    snap.State,
		Progress: snap.Progress(),
		Counter:  counterAt(report, snap),
	}, true
}

func counterAt(r *model.DailyReport, snap sequence.Snapshot) ReportCounter {
	full := ReportCounter{CompletedTasks: r.CompletedTasks, ExpGained: r.ExpGained, CoinEarned: r.CoinEarned}
	if snap.Phase != PhaseCounting || snap.State != sequence.StateRunning {
		return full
	}
	p := snap.Progress()
	return ReportCounter{
		CompletedTasks: int(float64(full.CompletedTasks) * p),
		ExpGained:      int(float64(full.ExpGained) * p),
		CoinEarned:     int(float64(full.CoinEarned) * p),
	}
}

// Dismiss closes the overlay. Pending phase timers are cancelled, so the
// completion refresh does not happen.
func (s *ReportService) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq != nil {
		s.seq.Dismiss()
	}
	s.seq = nil
	s.report = nil
}
