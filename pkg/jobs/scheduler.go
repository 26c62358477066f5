package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler enqueues a job of the given type on a fixed interval.
type Scheduler struct {
	queue    *Queue
	jobType  string
	interval time.Duration
	payload  func() interface{}
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	counter int
}

// NewScheduler builds a scheduler feeding queue. payload may be nil.
func NewScheduler(queue *Queue, jobType string, interval time.Duration, payload func() interface{}, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{queue: queue, jobType: jobType, interval: interval, payload: payload, logger: logger}
}

// Start runs the ticker until ctx is cancelled or Stop is called.
// A non-positive interval disables the scheduler.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("scheduler disabled", zap.String("job_type", s.jobType))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(runCtx)
	s.logger.Info("scheduler started", zap.String("job_type", s.jobType), zap.Duration("interval", s.interval))
}

// Stop halts the ticker and waits for the loop to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Trigger()
		}
	}
}

// Trigger enqueues one job immediately.
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	s.counter++
	id := fmt.Sprintf("%s-%d", s.jobType, s.counter)
	s.mu.Unlock()

	job := Job{ID: id, Type: s.jobType}
	if s.payload != nil {
		job.Payload = s.payload()
	}
	if err := s.queue.TryEnqueue(job); err != nil {
		s.logger.Warn("scheduler enqueue failed", zap.String("job_id", id), zap.Error(err))
	}
}
