package imaging

import (
	"context"
	"sync"

	"github.com/vbonduro/foodiepass/internal/upload"
)

// Slot runs at most one normalization at a time for a single upload slot.
// Starting a new job cancels the previous one instead of queueing behind it.
type Slot struct {
	normalizer Normalizer

	mu      sync.Mutex
	current *Job
}

func NewSlot(n Normalizer) *Slot {
	return &Slot{normalizer: n}
}

// Job is one normalization in flight.
type Job struct {
	File upload.File

	cancel  context.CancelFunc
	done    chan struct{}
	payload *Payload
	err     error
}

// Start supersedes any in-flight job and begins normalizing f.
func (s *Slot) Start(f upload.File) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{File: f, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	prev := s.current
	s.current = job
	s.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}

	go func() {
		defer close(job.done)
		defer cancel()
		p, err := s.normalizer.Normalize(ctx, f)
		if err == nil && ctx.Err() != nil {
			p, err = nil, ctx.Err()
		}
		job.payload, job.err = p, err
	}()

	return job
}

// Current returns the latest job, or nil.
func (s *Slot) Current() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Clear cancels the current job and empties the slot.
func (s *Slot) Clear() {
	s.mu.Lock()
	prev := s.current
	s.current = nil
	s.mu.Unlock()
	if prev != nil {
		prev.cancel()
	}
}

// Consume empties the slot if job is still its current job, so a payload is
// handed to at most one scan. It reports whether the slot was emptied.
func (s *Slot) Consume(job *Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != job {
		return false
	}
	s.current = nil
	return true
}

// Wait blocks until the job finishes or ctx is done. A superseded job
// returns context.Canceled.
func (j *Job) Wait(ctx context.Context) (*Payload, error) {
	select {
	case <-j.done:
		return j.payload, j.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
