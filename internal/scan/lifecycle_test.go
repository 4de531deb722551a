package scan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/foodiepass/internal/apperr"
	"github.com/vbonduro/foodiepass/internal/domain"
)

type fakeScanner struct {
	calls   atomic.Int32
	release chan struct{}
	result  *domain.ScanResult
	err     error
}

func (f *fakeScanner) Scan(ctx context.Context, _ domain.ScanRequest) (*domain.ScanResult, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.result, f.err
}

func validRequest() domain.ScanRequest {
	return domain.ScanRequest{
		Base64EncodedImage: "aGVsbG8=",
		UserLanguageName:   "Korean",
		UserCurrencyName:   "South Korean won",
	}
}

type transition struct{ from, to Status }

type recorder struct {
	mu  sync.Mutex
	got []transition
}

func (r *recorder) observe(from, to Status, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, transition{from, to})
}

func (r *recorder) transitions() []transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transition(nil), r.got...)
}

func TestSubmitSuccess(t *testing.T) {
	want := &domain.ScanResult{ScanID: "scan-1", ABGroup: domain.GroupControl}
	rec := &recorder{}
	l := New(&fakeScanner{result: want}, WithObserver(rec.observe))

	got, err := l.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Same(t, want, l.Result())
	assert.Equal(t, Succeeded, l.Snapshot().Status)
	assert.Equal(t, []transition{{Idle, Submitting}, {Submitting, Succeeded}}, rec.transitions())
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.ScanRequest)
	}{
		{name: "no image", mutate: func(r *domain.ScanRequest) { r.Base64EncodedImage = "" }},
		{name: "no language", mutate: func(r *domain.ScanRequest) { r.UserLanguageName = "" }},
		{name: "blank currency", mutate: func(r *domain.ScanRequest) { r.UserCurrencyName = "   " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner := &fakeScanner{result: &domain.ScanResult{ScanID: "x"}}
			l := New(scanner)
			req := validRequest()
			tt.mutate(&req)

			_, err := l.Submit(context.Background(), req)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			assert.Equal(t, Idle, l.Snapshot().Status)
			assert.Zero(t, scanner.calls.Load())
		})
	}
}

func TestSubmitOriginFieldsAreOptional(t *testing.T) {
	l := New(&fakeScanner{result: &domain.ScanResult{ScanID: "x"}})
	req := validRequest()
	req.OriginLanguageName = ""
	req.OriginCurrencyName = ""

	_, err := l.Submit(context.Background(), req)
	assert.NoError(t, err)
}

func TestSubmitIsSingleFlight(t *testing.T) {
	scanner := &fakeScanner{release: make(chan struct{}), result: &domain.ScanResult{ScanID: "scan-1"}}
	l := New(scanner)

	done := make(chan error, 1)
	go func() {
		_, err := l.Submit(context.Background(), validRequest())
		done <- err
	}()

	require.Eventually(t, func() bool { return l.Snapshot().Status == Submitting }, time.Second, time.Millisecond)

	for i := 0; i < 5; i++ {
		_, err := l.Submit(context.Background(), validRequest())
		assert.ErrorIs(t, err, ErrInFlight)
	}
	assert.ErrorIs(t, l.Reset(), ErrInFlight)

	close(scanner.release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), scanner.calls.Load())
}

func TestSubmitFailureKeepsNoResult(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind apperr.Kind
	}{
		{name: "server", err: apperr.Server(500, errors.New("boom")), wantKind: apperr.KindServer},
		{name: "network", err: apperr.New(apperr.KindNetwork, errors.New("refused")), wantKind: apperr.KindNetwork},
		{name: "protocol", err: apperr.New(apperr.KindProtocol, errors.New("bad json")), wantKind: apperr.KindProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(&fakeScanner{result: &domain.ScanResult{ScanID: "partial"}, err: tt.err})

			got, err := l.Submit(context.Background(), validRequest())
			require.Error(t, err)
			assert.Nil(t, got)
			assert.Nil(t, l.Result())
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))

			snap := l.Snapshot()
			assert.Equal(t, Failed, snap.Status)
			assert.Equal(t, err, snap.Err)
		})
	}
}

func TestSubmitNilResultIsProtocolError(t *testing.T) {
	l := New(&fakeScanner{})
	_, err := l.Submit(context.Background(), validRequest())
	assert.True(t, apperr.Is(err, apperr.KindProtocol))
	assert.Equal(t, Failed, l.Snapshot().Status)
}

func TestSubmitTimeout(t *testing.T) {
	scanner := &fakeScanner{release: make(chan struct{})}
	defer close(scanner.release)
	l := New(scanner, WithTimeout(20*time.Millisecond))

	_, err := l.Submit(context.Background(), validRequest())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindTimeout))
	assert.Equal(t, TimedOut, l.Snapshot().Status)
}

func TestSubmitClassifiedTimeoutFromClient(t *testing.T) {
	l := New(&fakeScanner{err: apperr.New(apperr.KindTimeout, context.DeadlineExceeded)})
	_, err := l.Submit(context.Background(), validRequest())
	assert.True(t, apperr.Is(err, apperr.KindTimeout))
	assert.Equal(t, TimedOut, l.Snapshot().Status)
}

func TestSubmitCallerCancelReturnsToIdle(t *testing.T) {
	scanner := &fakeScanner{release: make(chan struct{})}
	defer close(scanner.release)
	l := New(scanner)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := l.Submit(ctx, validRequest())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Idle, l.Snapshot().Status)
}

func TestResetAfterFailureAllowsResubmit(t *testing.T) {
	scanner := &fakeScanner{err: apperr.Server(500, errors.New("boom"))}
	l := New(scanner)

	_, err := l.Submit(context.Background(), validRequest())
	require.Error(t, err)

	require.NoError(t, l.Reset())
	snap := l.Snapshot()
	assert.Equal(t, Idle, snap.Status)
	assert.NoError(t, snap.Err)
	assert.Zero(t, snap.Elapsed)

	scanner.err = nil
	scanner.result = &domain.ScanResult{ScanID: "scan-2"}
	got, err := l.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, "scan-2", got.ScanID)
}

func TestCloseCancelsInFlight(t *testing.T) {
	scanner := &fakeScanner{release: make(chan struct{})}
	rec := &recorder{}
	l := New(scanner, WithObserver(rec.observe))

	done := make(chan error, 1)
	go func() {
		_, err := l.Submit(context.Background(), validRequest())
		done <- err
	}()
	require.Eventually(t, func() bool { return l.Snapshot().Status == Submitting }, time.Second, time.Millisecond)

	l.Close()
	assert.ErrorIs(t, <-done, ErrClosed)
	assert.Equal(t, Idle, l.Snapshot().Status)
	assert.Nil(t, l.Result())
	// Every start is paired with an end, so in-flight gauges return to zero.
	assert.Equal(t, []transition{{Idle, Submitting}, {Submitting, Idle}}, rec.transitions())

	_, err := l.Submit(context.Background(), validRequest())
	assert.ErrorIs(t, err, ErrClosed)
	close(scanner.release)
}

func TestSnapshotElapsed(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	scanner := &fakeScanner{result: &domain.ScanResult{ScanID: "s"}}
	l := New(scanner)
	l.now = func() time.Time {
		clock = clock.Add(1500 * time.Millisecond)
		return clock
	}

	_, err := l.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, l.Snapshot().Elapsed)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "timed_out", TimedOut.String())
	assert.Equal(t, "unknown", Status(42).String())
}
