package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"tickd/internal/eventbus"
	rtsup "tickd/internal/runtime/supervisor"
	logx "tickd/pkg/logx"
)

// Scheduler runs scheduled work on a single background worker.
// All methods are safe for concurrent use.
type Scheduler struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger
	bus eventbus.Bus

	q      *taskQueue
	lastID uint64

	// wake has capacity 1; a pending token makes the worker re-evaluate the queue.
	wake chan struct{}

	sup      *rtsup.Supervisor
	stopCh   chan struct{}
	stopDone chan struct{}

	executed  atomic.Uint64
	failed    atomic.Uint64
	panics    atomic.Uint64
	skipped   atomic.Uint64
	cancelled atomic.Uint64

	hmu     sync.Mutex
	history *queue.Queue // of HistoryItem, oldest first
}

// New returns a stopped scheduler. bus may be nil.
func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{
		cfg:  cfg.withDefaults(),
		log:  log,
		bus:  bus,
		q:    newTaskQueue(),
		wake: make(chan struct{}, 1),

		history: queue.New(),
	}
}

// Start starts the worker. It is a no-op if the scheduler is already running;
// if a Stop is still draining, Start waits for it (bounded by ctx) first.
// ctx is the parent of the context passed to work.
func (s *Scheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.stopCh != nil {
		done := s.stopDone
		s.mu.Unlock()
		if done == nil {
			return
		}
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
		if s.stopCh != nil {
			s.mu.Unlock()
			return
		}
	}
	s.startLocked(ctx)
	s.mu.Unlock()
}

// startLocked launches the worker. Call with s.mu held and s.stopCh nil.
func (s *Scheduler) startLocked(ctx context.Context) {
	stopCh := make(chan struct{})
	s.stopCh = stopCh
	s.stopDone = nil
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log.With(logx.String("comp", "scheduler.sup"))))
	s.sup.Go0("scheduler.worker", func(c context.Context) {
		s.run(c, stopCh)
	})
	s.log.Info("scheduler started", logx.Int("pending", s.q.live()))
}

// Stop stops the worker and discards every queued entry. It waits for an
// in-flight run to finish, bounded by ctx or, when ctx has no deadline, by
// Config.StopTimeout; on expiry it returns an error matching ErrStopTimeout
// and the worker keeps draining in the background.
//
// Stop is idempotent: stopping a stopped scheduler returns nil.
func (s *Scheduler) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok && s.cfg.StopTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.StopTimeout)
		defer cancel()
	}
	start := time.Now()
	done := s.signalStop()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out", logx.Duration("waited", time.Since(start)), logx.Err(ctx.Err()))
		return fmt.Errorf("%w: %v", ErrStopTimeout, ctx.Err())
	}
}

// StopNoWait requests a stop and returns immediately.
func (s *Scheduler) StopNoWait() {
	s.signalStop()
}

// signalStop begins (or joins) a stop and returns a channel closed once the
// worker has exited. It returns nil if the scheduler is not running.
func (s *Scheduler) signalStop() <-chan struct{} {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return nil
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		return done
	}
	done := make(chan struct{})
	s.stopDone = done
	close(s.stopCh)
	sup := s.sup
	discarded := s.q.clear()
	s.mu.Unlock()

	// Cooperative signal to in-flight work; the worker still finishes the run.
	sup.Cancel()
	s.log.Info("scheduler stop requested", logx.Int("discarded", discarded))

	go func() {
		<-sup.Done()
		s.mu.Lock()
		s.stopCh = nil
		s.stopDone = nil
		s.sup = nil
		s.mu.Unlock()
		close(done)
		s.log.Info("scheduler stopped")
	}()
	return done
}

// IsRunning reports whether the worker is running and not stopping.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningLocked()
}

func (s *Scheduler) runningLocked() bool {
	return s.stopCh != nil && s.stopDone == nil
}

// PendingCount returns the number of live entries waiting in the queue.
// An entry that is currently executing is not counted.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.live()
}

// signal wakes the worker without blocking.
func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) publish(typ string, ev TaskEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: ev})
}
