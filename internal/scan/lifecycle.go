// Package scan owns the lifecycle of the single remote menu scan call.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vbonduro/foodiepass/internal/apperr"
	"github.com/vbonduro/foodiepass/internal/domain"
)

// DefaultTimeout bounds one scan call. Recognition plus translation can take
// well over a minute on large menus.
const DefaultTimeout = 150 * time.Second

type Status int

const (
	Idle Status = iota
	Submitting
	Succeeded
	Failed
	TimedOut
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

var (
	ErrInFlight = errors.New("scan already in flight")
	ErrClosed   = errors.New("scan lifecycle closed")
)

// Scanner is the collaborator that performs the remote scan.
type Scanner interface {
	Scan(ctx context.Context, req domain.ScanRequest) (*domain.ScanResult, error)
}

// Observer is told about every status transition. It is called without the
// lifecycle lock held.
type Observer func(from, to Status, elapsed time.Duration)

// Snapshot is a point-in-time view of the lifecycle.
type Snapshot struct {
	Status  Status
	Err     error
	Elapsed time.Duration
}

type Lifecycle struct {
	scanner  Scanner
	timeout  time.Duration
	validate *validator.Validate
	logger   *slog.Logger
	observer Observer
	now      func() time.Time

	mu       sync.Mutex
	status   Status
	result   *domain.ScanResult
	err      error
	started  time.Time
	finished time.Time
	cancel   context.CancelFunc
	gen      uint64
	closed   bool
}

type Option func(*Lifecycle)

func WithTimeout(d time.Duration) Option {
	return func(l *Lifecycle) {
		if d > 0 {
			l.timeout = d
		}
	}
}

func WithObserver(o Observer) Option {
	return func(l *Lifecycle) { l.observer = o }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Lifecycle) { l.logger = logger }
}

func New(scanner Scanner, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		scanner:  scanner,
		timeout:  DefaultTimeout,
		validate: NewValidator(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewValidator returns a validator that also understands the notblank tag.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Submit runs one scan. It returns ErrInFlight without touching the scanner
// while another call is outstanding. On failure no partial result is kept.
func (l *Lifecycle) Submit(ctx context.Context, req domain.ScanRequest) (*domain.ScanResult, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrClosed
	}
	if l.status == Submitting {
		l.mu.Unlock()
		return nil, ErrInFlight
	}
	if err := l.validate.Struct(req); err != nil {
		l.mu.Unlock()
		return nil, apperr.New(apperr.KindValidation, fmt.Errorf("invalid scan request: %w", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	from := l.status
	l.status = Submitting
	l.result = nil
	l.err = nil
	l.started = l.now()
	l.finished = time.Time{}
	l.cancel = cancel
	l.gen++
	gen := l.gen
	l.mu.Unlock()
	l.notify(from, Submitting, 0)

	result, err := l.scanner.Scan(callCtx, req)
	deadlineHit := errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	cancel()

	l.mu.Lock()
	if l.gen != gen || l.closed {
		// Whatever came back is dropped, but observers still see the call end.
		l.cancel = nil
		l.finished = l.now()
		elapsed := l.finished.Sub(l.started)
		l.status = Idle
		l.mu.Unlock()
		l.notify(Submitting, Idle, elapsed)
		return nil, ErrClosed
	}
	l.cancel = nil
	l.finished = l.now()
	elapsed := l.finished.Sub(l.started)

	var to Status
	switch {
	case err == nil && result == nil:
		err = apperr.Newf(apperr.KindProtocol, "scan returned no result")
		to = Failed
	case err == nil:
		to = Succeeded
		l.result = result
	case deadlineHit || apperr.Is(err, apperr.KindTimeout):
		to = TimedOut
		if !apperr.Is(err, apperr.KindTimeout) {
			err = apperr.New(apperr.KindTimeout, err)
		}
	case ctx.Err() != nil:
		// The caller walked away; nothing to show.
		to = Idle
		err = ctx.Err()
	default:
		to = Failed
	}
	l.status = to
	l.err = err
	l.mu.Unlock()

	if err != nil {
		l.logger.Warn("scan failed", "status", to.String(), "kind", apperr.KindOf(err).String(), "http_status", apperr.StatusOf(err), "elapsed_ms", elapsed.Milliseconds(), "error", err)
	} else {
		l.logger.Info("scan complete", "scan_id", result.ScanID, "ab_group", string(result.ABGroup), "items", len(result.Items), "elapsed_ms", elapsed.Milliseconds())
	}
	l.notify(Submitting, to, elapsed)

	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reset returns a finished lifecycle to Idle, dropping any result or error.
func (l *Lifecycle) Reset() error {
	l.mu.Lock()
	if l.status == Submitting {
		l.mu.Unlock()
		return ErrInFlight
	}
	from := l.status
	l.status = Idle
	l.result = nil
	l.err = nil
	l.started = time.Time{}
	l.finished = time.Time{}
	l.mu.Unlock()

	if from != Idle {
		l.notify(from, Idle, 0)
	}
	return nil
}

// Close cancels any call in flight. That call returns ErrClosed with no
// result, and the lifecycle settles in Idle.
func (l *Lifecycle) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

// Result returns the last successful result, or nil.
func (l *Lifecycle) Result() *domain.ScanResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status != Succeeded {
		return nil
	}
	return l.result
}

func (l *Lifecycle) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Snapshot{Status: l.status, Err: l.err}
	switch {
	case l.started.IsZero():
	case l.finished.IsZero():
		s.Elapsed = l.now().Sub(l.started)
	default:
		s.Elapsed = l.finished.Sub(l.started)
	}
	return s
}

func (l *Lifecycle) notify(from, to Status, elapsed time.Duration) {
	if l.observer != nil {
		l.observer(from, to, elapsed)
	}
}
