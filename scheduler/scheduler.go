package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFn is a host loop task. now is the tick time; ctx ends when the task is
// removed or the scheduler stops.
type TaskFn func(ctx context.Context, now time.Time)

// TaskStats counts how a task has behaved since it was registered.
type TaskStats struct {
	Interval     time.Duration
	Runs         int
	Panics       int
	Overruns     int // runs that took longer than Interval
	LastDuration time.Duration
}

// Scheduler drives named wall-clock tasks (world tick, autosave) on their
// own goroutines. Game timers owned by weapons run on TimerSet instead.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[string]*task
	logger *zap.Logger
	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
	stats  TaskStats
}

// New creates a Scheduler whose tasks end when ctx is done or Stop is called.
func New(ctx context.Context, logger *zap.Logger) *Scheduler {
	ctx, stop := context.WithCancel(ctx)
	return &Scheduler{
		tasks:  make(map[string]*task),
		logger: logger.Named("scheduler"),
		ctx:    ctx,
		stop:   stop,
	}
}

// AddTicker registers a task to run on a fixed interval. A task with the
// same name is stopped and replaced. Ticks missed while fn runs are dropped.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.tasks[name]; ok {
		old.cancel()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	t := &task{cancel: cancel, done: make(chan struct{}), stats: TaskStats{Interval: interval}}
	s.tasks[name] = t

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				s.run(ctx, name, t, now, fn)
			case <-ctx.Done():
				return
			}
		}
	}()
	s.logger.Info("task registered", zap.String("name", name), zap.Duration("interval", interval))
}

func (s *Scheduler) run(ctx context.Context, name string, t *task, now time.Time, fn TaskFn) {
	start := time.Now()
	panicked := false
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			s.logger.Error("task panicked", zap.String("task", name), zap.Any("recover", r))
		}
		elapsed := time.Since(start)
		s.mu.Lock()
		t.stats.Runs++
		t.stats.LastDuration = elapsed
		if panicked {
			t.stats.Panics++
		}
		overran := elapsed > t.stats.Interval
		if overran {
			t.stats.Overruns++
		}
		s.mu.Unlock()
		if overran {
			s.logger.Warn("task overran its interval", zap.String("task", name), zap.Duration("elapsed", elapsed))
		}
	}()
	fn(ctx, now)
}

// Remove stops a task by name and waits for an in-flight run to finish.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	t, ok := s.tasks[name]
	delete(s.tasks, name)
	s.mu.Unlock()
	if ok {
		t.cancel()
		<-t.done
	}
}

// Stop stops all tasks and waits for in-flight runs. It is safe to call twice.
func (s *Scheduler) Stop() {
	s.stop()
	s.wg.Wait()
}

// ListTickers returns the names of all registered tasks, sorted.
func (s *Scheduler) ListTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns a copy of a task's counters.
func (s *Scheduler) Stats(name string) (TaskStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[name]
	if !ok {
		return TaskStats{}, false
	}
	return t.stats, true
}
