package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vbonduro/foodiepass/internal/apperr"
	"github.com/vbonduro/foodiepass/internal/domain"
	"github.com/vbonduro/foodiepass/internal/imaging"
	"github.com/vbonduro/foodiepass/internal/metrics"
	"github.com/vbonduro/foodiepass/internal/scan"
	"github.com/vbonduro/foodiepass/internal/survey"
	"github.com/vbonduro/foodiepass/internal/upload"
	"github.com/vbonduro/foodiepass/internal/variant"
)

var (
	ErrNoFile       = errors.New("no image selected")
	ErrNotRetryable = errors.New("last failure cannot be retried with the same file")
)

// backendClient is the subset of apiclient.Client that ScanService requires.
type backendClient interface {
	Scan(ctx context.Context, req domain.ScanRequest) (*domain.ScanResult, error)
	SubmitSurvey(ctx context.Context, sub domain.SurveySubmission) error
	Languages(ctx context.Context) ([]domain.Language, error)
	Currencies(ctx context.Context) ([]domain.Currency, error)
}

// Selection is the user's target and origin language and currency.
type Selection struct {
	Language       string
	Currency       string
	OriginLanguage string
	OriginCurrency string
}

type Options struct {
	ScanTimeout    time.Duration
	CatalogTimeout time.Duration
	SurveyDelay    time.Duration
	SurveyAck      time.Duration
	// Scheduler drives survey timers; nil uses the wall clock.
	Scheduler survey.Scheduler
	Defaults  Selection
}

// ScanService runs one user's scan flow: select a file, scan it, render the
// result and run the survey for it.
type ScanService struct {
	client    backendClient
	slot      *imaging.Slot
	lifecycle *scan.Lifecycle
	ledger    survey.Ledger
	metrics   *metrics.Metrics
	logger    *slog.Logger
	opts      Options

	mu        sync.Mutex
	selection Selection
	file      *upload.File
	lastErr   error
	view      *variant.View
	session   *survey.Session
}

// NewScanService wires the flow. ledger and m may be nil.
func NewScanService(
	client backendClient,
	normalizer imaging.Normalizer,
	ledger survey.Ledger,
	m *metrics.Metrics,
	logger *slog.Logger,
	opts Options,
) *ScanService {
	if opts.CatalogTimeout <= 0 {
		opts.CatalogTimeout = 10 * time.Second
	}
	if opts.SurveyDelay == 0 {
		opts.SurveyDelay = survey.DefaultDelay
	}
	if opts.SurveyAck == 0 {
		opts.SurveyAck = survey.DefaultAckDuration
	}

	s := &ScanService{
		client:    client,
		slot:      imaging.NewSlot(normalizer),
		ledger:    ledger,
		metrics:   m,
		logger:    logger,
		opts:      opts,
		selection: opts.Defaults,
	}
	s.lifecycle = scan.New(client,
		scan.WithTimeout(opts.ScanTimeout),
		scan.WithLogger(logger),
		scan.WithObserver(s.observeScan),
	)
	return s
}

// SelectFile validates f and, if it is acceptable, starts normalizing it in
// the background. Any selection, accepted or not, discards the previous
// result, error and survey.
func (s *ScanService) SelectFile(f upload.File) error {
	err := upload.Validate(f)

	s.mu.Lock()
	s.view = nil
	s.lastErr = nil
	prevSession := s.session
	s.session = nil
	if err != nil {
		s.file = nil
		s.lastErr = err
	} else {
		s.file = &f
	}
	s.mu.Unlock()

	if prevSession != nil {
		prevSession.Teardown()
	}
	if rerr := s.lifecycle.Reset(); rerr != nil && !errors.Is(rerr, scan.ErrInFlight) {
		s.logger.Warn("failed to reset scan lifecycle", "error", rerr)
	}

	if err != nil {
		s.slot.Clear()
		if rej, ok := upload.RejectionOf(err); ok && s.metrics != nil {
			s.metrics.UploadRejected(rej.Reason.String())
		}
		s.logger.Info("upload rejected", "name", f.Name, "media_type", f.MediaType, "size", f.Size, "error", err)
		return err
	}

	s.slot.Start(f)
	s.logger.Debug("upload accepted", "name", f.Name, "media_type", f.MediaType, "size", f.Size)
	return nil
}

func (s *ScanService) SetSelection(sel Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = sel
}

func (s *ScanService) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// Scan submits the selected file. The normalized payload is used by this call
// only; a retry normalizes the preserved file again.
func (s *ScanService) Scan(ctx context.Context) (*variant.View, error) {
	job := s.slot.Current()
	if job == nil {
		return nil, s.fail(apperr.New(apperr.KindValidation, ErrNoFile))
	}

	payload, err := job.Wait(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			// Superseded by a newer selection.
			return nil, err
		}
		return nil, s.fail(err)
	}

	sel := s.Selection()
	req := domain.ScanRequest{
		Base64EncodedImage: payload.Base64,
		OriginLanguageName: sel.OriginLanguage,
		UserLanguageName:   sel.Language,
		OriginCurrencyName: sel.OriginCurrency,
		UserCurrencyName:   sel.Currency,
	}

	result, err := s.lifecycle.Submit(ctx, req)
	if errors.Is(err, scan.ErrInFlight) || errors.Is(err, scan.ErrClosed) {
		return nil, err
	}
	if apperr.Is(err, apperr.KindValidation) {
		return nil, s.fail(err)
	}
	if !s.slot.Consume(job) {
		// A newer selection replaced this file while it was being scanned;
		// its outcome belongs to nobody.
		s.logger.Info("dropping superseded scan outcome", "name", job.File.Name, "error", err)
		return nil, context.Canceled
	}
	if err != nil {
		return nil, s.fail(err)
	}

	view := variant.Render(result, s.logger)
	if s.metrics != nil {
		s.metrics.ResultRendered(groupLabel(result.ABGroup), view.Policy.String())
	}

	session := survey.NewSession(result.ScanID, s.client, s.surveyOptions()...)

	s.mu.Lock()
	s.view = &view
	s.lastErr = nil
	prev := s.session
	s.session = session
	s.mu.Unlock()

	if prev != nil {
		prev.Teardown()
	}
	return &view, nil
}

// Retry resubmits the preserved file after a timeout or network failure.
// Other failures need a new selection.
func (s *ScanService) Retry(ctx context.Context) (*variant.View, error) {
	s.mu.Lock()
	lastErr := s.lastErr
	file := s.file
	s.mu.Unlock()

	if !Retryable(lastErr) {
		return nil, ErrNotRetryable
	}
	if file == nil {
		return nil, ErrNoFile
	}
	if err := s.lifecycle.Reset(); err != nil {
		return nil, err
	}

	s.logger.Info("retrying scan", "name", file.Name, "previous_error", lastErr)
	s.slot.Start(*file)
	return s.Scan(ctx)
}

// groupLabel bounds the metrics label to the known experiment groups.
func groupLabel(g domain.ABGroup) string {
	if _, err := variant.Dispatch(g); err != nil {
		return "unknown"
	}
	return string(g)
}

// Retryable reports whether err can be retried without re-uploading.
func Retryable(err error) bool {
	kind := apperr.KindOf(err)
	return kind == apperr.KindTimeout || kind == apperr.KindNetwork
}

// View returns the rendered result of the last successful scan, or nil.
func (s *ScanService) View() *variant.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// LastError returns the failure the user should currently see, or nil.
func (s *ScanService) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *ScanService) HasFile() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file != nil
}

func (s *ScanService) Snapshot() scan.Snapshot {
	return s.lifecycle.Snapshot()
}

// Survey returns the survey for the current result, or nil.
func (s *ScanService) Survey() *survey.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// LeaveResults tears down the survey when the user navigates away from the
// result. The result itself is kept.
func (s *ScanService) LeaveResults() {
	s.mu.Lock()
	session := s.session
	s.session = nil
	s.mu.Unlock()
	if session != nil {
		session.Teardown()
	}
}

// Languages lists the language catalog. A failing catalog yields an empty
// list so the form still renders.
func (s *ScanService) Languages(ctx context.Context) []domain.Language {
	ctx, cancel := context.WithTimeout(ctx, s.opts.CatalogTimeout)
	defer cancel()

	langs, err := s.client.Languages(ctx)
	if err != nil {
		s.logger.Warn("failed to load language catalog", "error", err)
		return nil
	}
	return langs
}

func (s *ScanService) Currencies(ctx context.Context) []domain.Currency {
	ctx, cancel := context.WithTimeout(ctx, s.opts.CatalogTimeout)
	defer cancel()

	curs, err := s.client.Currencies(ctx)
	if err != nil {
		s.logger.Warn("failed to load currency catalog", "error", err)
		return nil
	}
	return curs
}

// Close cancels everything in flight and stops all timers.
func (s *ScanService) Close() {
	s.lifecycle.Close()
	s.slot.Clear()
	s.LeaveResults()
}

func (s *ScanService) fail(err error) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	return err
}

func (s *ScanService) surveyOptions() []survey.Option {
	opts := []survey.Option{
		survey.WithDelay(s.opts.SurveyDelay),
		survey.WithAckDuration(s.opts.SurveyAck),
		survey.WithLogger(s.logger),
		survey.WithOnChange(s.observeSurvey),
	}
	if s.opts.Scheduler != nil {
		opts = append(opts, survey.WithScheduler(s.opts.Scheduler))
	}
	if s.ledger != nil {
		opts = append(opts, survey.WithLedger(s.ledger))
	}
	return opts
}

func (s *ScanService) observeScan(from, to scan.Status, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	switch {
	case to == scan.Submitting:
		s.metrics.ScanStarted()
	case from == scan.Submitting:
		s.metrics.ScanFinished(to.String(), elapsed)
	}
}

func (s *ScanService) observeSurvey(from, to survey.State) {
	if s.metrics == nil || from != survey.Submitting {
		return
	}
	switch to {
	case survey.Completed:
		s.metrics.SurveySubmitted("acknowledged")
	case survey.Offered:
		s.metrics.SurveySubmitted("failed")
	}
}

