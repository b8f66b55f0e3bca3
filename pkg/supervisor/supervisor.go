// Package supervisor implements the resilient background-task primitive
// spec §4.4 describes: named tasks that run in a loop, survive panics
// and errors, and are restarted if they stall. It is the only
// sanctioned way either the registry or a member starts long-lived
// background work.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/netring-io/netring/pkg/apierrors"
)

const (
	defaultBackoff             = 5 * time.Second
	defaultHealthCheckInterval = 60 * time.Second
	defaultTaskTimeout         = 300 * time.Second
)

// TaskFunc is a single iteration of a supervised task's work. It should
// return promptly when ctx is cancelled. tick should be called once per
// successful iteration to record a liveness heartbeat.
type TaskFunc func(ctx context.Context, tick func()) error

// TaskStatus is a point-in-time health snapshot for one supervised task.
type TaskStatus struct {
	Alive        bool      `json:"alive"`
	LastTick     time.Time `json:"last_tick"`
	RestartCount int       `json:"restart_count"`
}

type task struct {
	name string
	fn   TaskFunc

	mu           sync.Mutex
	lastTick     time.Time
	restartCount int
	alive        bool
	cancel       context.CancelFunc
}

// Supervisor owns a set of named background tasks and a monitor loop
// that detects and replaces stalled ones.
type Supervisor struct {
	logger *zap.Logger

	backoff             time.Duration
	healthCheckInterval time.Duration
	taskTimeout         time.Duration

	mu    sync.Mutex
	tasks map[string]*task
	wg    sync.WaitGroup

	rootCtx context.Context
	stop    context.CancelFunc
}

// Option customizes a Supervisor's timing.
type Option func(*Supervisor)

// WithBackoff overrides the delay after a task returns an error or panics.
func WithBackoff(d time.Duration) Option { return func(s *Supervisor) { s.backoff = d } }

// WithHealthCheckInterval overrides how often the monitor loop scans for stalled tasks.
func WithHealthCheckInterval(d time.Duration) Option {
	return func(s *Supervisor) { s.healthCheckInterval = d }
}

// WithTaskTimeout overrides how stale a task's last tick must be before it's considered stalled.
func WithTaskTimeout(d time.Duration) Option { return func(s *Supervisor) { s.taskTimeout = d } }

// New builds a Supervisor bound to parent's lifetime. Call Stop to
// cancel every task and the monitor loop.
func New(parent context.Context, logger *zap.Logger, opts ...Option) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{
		logger:              logger,
		backoff:             defaultBackoff,
		healthCheckInterval: defaultHealthCheckInterval,
		taskTimeout:         defaultTaskTimeout,
		tasks:               make(map[string]*task),
		rootCtx:             ctx,
		stop:                cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.wg.Add(1)
	go s.monitorLoop()
	return s
}

// Go starts a named supervised task. Starting a task under a name that
// already exists is a programming error and panics, mirroring the
// teacher's "fire-and-forget tasks are forbidden" stance on background
// work having exactly one owner.
func (s *Supervisor) Go(name string, fn TaskFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; exists {
		panic(fmt.Sprintf("supervisor: task %q already registered", name))
	}
	t := &task{name: name, fn: fn}
	s.tasks[name] = t
	s.spawn(t)
}

func (s *Supervisor) spawn(t *task) {
	ctx, cancel := context.WithCancel(s.rootCtx)
	t.mu.Lock()
	t.cancel = cancel
	t.alive = true
	t.lastTick = time.Now()
	t.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx, t)
}

func (s *Supervisor) run(ctx context.Context, t *task) {
	defer s.wg.Done()

	tick := func() {
		t.mu.Lock()
		t.lastTick = time.Now()
		t.mu.Unlock()
	}

	for {
		select {
		case <-ctx.Done():
			t.mu.Lock()
			t.alive = false
			t.mu.Unlock()
			s.logger.Info("task stopped", zap.String("task", t.name))
			return
		default:
		}

		err := s.runOnce(ctx, t, tick)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			t.mu.Lock()
			t.alive = false
			t.mu.Unlock()
			return
		}

		bug := apierrors.NewBugCaught(t.name, err)
		s.logger.Error("supervised task error",
			zap.String("task", t.name),
			zap.Error(bug),
			zap.String("stack", bug.StackTrace()))

		select {
		case <-time.After(s.backoff):
		case <-ctx.Done():
			t.mu.Lock()
			t.alive = false
			t.mu.Unlock()
			return
		}
	}
}

// runOnce invokes the task body, converting a panic into an error so a
// single bad iteration can't take the whole supervisor down.
func (s *Supervisor) runOnce(ctx context.Context, t *task, tick func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.fn(ctx, tick)
}

func (s *Supervisor) monitorLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.rootCtx.Done():
			return
		case <-ticker.C:
			s.checkStalled()
		}
	}
}

func (s *Supervisor) checkStalled() {
	s.mu.Lock()
	tasks := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	now := time.Now()
	for _, t := range tasks {
		t.mu.Lock()
		stalled := t.alive && now.Sub(t.lastTick) > s.taskTimeout
		oldCancel := t.cancel
		t.mu.Unlock()

		if !stalled {
			continue
		}

		s.logger.Warn("task stalled, restarting",
			zap.String("task", t.name),
			zap.Duration("since_last_tick", now.Sub(t.lastTick)))

		oldCancel()

		t.mu.Lock()
		t.restartCount++
		t.mu.Unlock()

		s.spawn(t)
	}
}

// Snapshot returns a health-check view of every registered task.
func (s *Supervisor) Snapshot() map[string]TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]TaskStatus, len(s.tasks))
	for name, t := range s.tasks {
		t.mu.Lock()
		out[name] = TaskStatus{
			Alive:        t.alive,
			LastTick:     t.lastTick,
			RestartCount: t.restartCount,
		}
		t.mu.Unlock()
	}
	return out
}

// Stop cancels every supervised task and the monitor loop, then waits
// for them to return.
func (s *Supervisor) Stop() {
	s.stop()
	s.wg.Wait()
}
