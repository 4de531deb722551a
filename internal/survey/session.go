// Package survey runs the single confidence question shown after a scan
// result. A session offers the question after a delay, submits at most one
// acknowledged answer per scan id, thanks the user briefly and closes.
package survey

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vbonduro/foodiepass/internal/domain"
)

const (
	DefaultDelay       = 5 * time.Second
	DefaultAckDuration = 2 * time.Second
)

type State int

const (
	Pending State = iota
	Offered
	Submitting
	Completed
	Closed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Offered:
		return "offered"
	case Submitting:
		return "submitting"
	case Completed:
		return "completed"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrNotOffered is returned by Answer outside the Offered state, including
// for a second answer while the first is still being submitted.
var ErrNotOffered = errors.New("survey is not accepting an answer")

type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Submitter delivers an answer to the survey service.
type Submitter interface {
	SubmitSurvey(ctx context.Context, sub domain.SurveySubmission) error
}

// Ledger remembers which scans already have an acknowledged answer.
type Ledger interface {
	IsCompleted(ctx context.Context, scanID string) (bool, error)
	MarkCompleted(ctx context.Context, scanID string, hasConfidence bool) error
}

// View is what the UI draws for the session.
type View struct {
	ScanID          string
	State           State
	ControlsVisible bool
	ControlsEnabled bool
	ThankYou        bool
	Err             error
}

type Session struct {
	scanID      string
	submitter   Submitter
	ledger      Ledger
	scheduler   Scheduler
	delay       time.Duration
	ackDuration time.Duration
	logger      *slog.Logger
	onChange    func(from, to State)

	mu       sync.Mutex
	state    State
	lastErr  error
	mounted  bool
	tornDown bool
	timers   []Timer
}

type Option func(*Session)

func WithScheduler(s Scheduler) Option {
	return func(sess *Session) { sess.scheduler = s }
}

func WithDelay(d time.Duration) Option {
	return func(sess *Session) { sess.delay = d }
}

func WithAckDuration(d time.Duration) Option {
	return func(sess *Session) { sess.ackDuration = d }
}

func WithLedger(l Ledger) Option {
	return func(sess *Session) { sess.ledger = l }
}

func WithLogger(logger *slog.Logger) Option {
	return func(sess *Session) { sess.logger = logger }
}

// WithOnChange registers a callback for every state transition. It runs
// without the session lock held.
func WithOnChange(f func(from, to State)) Option {
	return func(sess *Session) { sess.onChange = f }
}

func NewSession(scanID string, submitter Submitter, opts ...Option) *Session {
	s := &Session{
		scanID:      scanID,
		submitter:   submitter,
		scheduler:   clockScheduler{},
		delay:       DefaultDelay,
		ackDuration: DefaultAckDuration,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ScanID() string {
	return s.scanID
}

// Mount starts the offer countdown. Only the first call has any effect, so
// re-rendering the results page never restarts the delay.
func (s *Session) Mount(ctx context.Context) {
	s.mu.Lock()
	if s.mounted || s.tornDown {
		s.mu.Unlock()
		return
	}
	s.mounted = true
	s.mu.Unlock()

	if s.ledger != nil {
		done, err := s.ledger.IsCompleted(ctx, s.scanID)
		if err != nil {
			s.logger.Warn("failed to check survey ledger", "scan_id", s.scanID, "error", err)
		}
		if done {
			s.transition(Pending, Closed)
			return
		}
	}

	s.schedule(s.delay, func() { s.transition(Pending, Offered) })
}

// Answer submits the user's choice. The controls are disabled before the
// submitter is called, so concurrent answers get ErrNotOffered. On failure
// the question is offered again with the error attached; nothing retries on
// its own.
func (s *Session) Answer(ctx context.Context, hasConfidence bool) error {
	s.mu.Lock()
	if s.tornDown || s.state != Offered {
		s.mu.Unlock()
		return ErrNotOffered
	}
	s.state = Submitting
	s.lastErr = nil
	s.mu.Unlock()
	s.changed(Offered, Submitting)

	err := s.submitter.SubmitSurvey(ctx, domain.SurveySubmission{ScanID: s.scanID, HasConfidence: hasConfidence})
	if err != nil {
		s.logger.Warn("survey submission failed", "scan_id", s.scanID, "error", err)
		s.mu.Lock()
		reoffer := !s.tornDown
		if reoffer {
			s.state = Offered
			s.lastErr = err
		}
		s.mu.Unlock()
		if reoffer {
			s.changed(Submitting, Offered)
		}
		return err
	}

	s.logger.Info("survey submitted", "scan_id", s.scanID, "has_confidence", hasConfidence)
	if s.ledger != nil {
		if err := s.ledger.MarkCompleted(context.WithoutCancel(ctx), s.scanID, hasConfidence); err != nil {
			s.logger.Error("failed to record survey in ledger", "scan_id", s.scanID, "error", err)
		}
	}

	if s.transition(Submitting, Completed) {
		s.schedule(s.ackDuration, func() { s.transition(Completed, Closed) })
	}
	return nil
}

// Teardown stops every pending timer. No transition happens afterwards.
func (s *Session) Teardown() {
	s.mu.Lock()
	s.tornDown = true
	timers := s.timers
	s.timers = nil
	s.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		ScanID:          s.scanID,
		State:           s.state,
		ControlsVisible: s.state == Offered || s.state == Submitting,
		ControlsEnabled: s.state == Offered,
		ThankYou:        s.state == Completed,
		Err:             s.lastErr,
	}
}

func (s *Session) schedule(d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tornDown {
		return
	}
	s.timers = append(s.timers, s.scheduler.AfterFunc(d, f))
}

// transition moves from -> to if the session is still in from and alive.
func (s *Session) transition(from, to State) bool {
	s.mu.Lock()
	if s.tornDown || s.state != from {
		s.mu.Unlock()
		return false
	}
	s.state = to
	s.mu.Unlock()
	s.changed(from, to)
	return true
}

func (s *Session) changed(from, to State) {
	if s.onChange != nil && from != to {
		s.onChange(from, to)
	}
}
