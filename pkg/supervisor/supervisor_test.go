package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestGoRunsTaskUntilStopped(t *testing.T) {
	s := New(context.Background(), zap.NewNop(), WithHealthCheckInterval(time.Hour))
	defer s.Stop()

	var runs int32
	s.Go("counter", func(ctx context.Context, tick func()) error {
		atomic.AddInt32(&runs, 1)
		tick()
		time.Sleep(time.Millisecond)
		return nil
	})

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&runs) < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if atomic.LoadInt32(&runs) < 3 {
		t.Fatalf("task ran %d times, want at least 3", runs)
	}

	status := s.Snapshot()["counter"]
	if !status.Alive {
		t.Fatalf("Snapshot: counter task not alive")
	}
}

func TestGoRecoversFromError(t *testing.T) {
	s := New(context.Background(), zap.NewNop(), WithBackoff(time.Millisecond), WithHealthCheckInterval(time.Hour))
	defer s.Stop()

	var calls int32
	s.Go("flaky", func(ctx context.Context, tick func()) error {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return errors.New("boom")
		}
		tick()
		time.Sleep(10 * time.Millisecond)
		return nil
	})

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&calls) < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if atomic.LoadInt32(&calls) < 2 {
		t.Fatalf("task did not resume after error, calls=%d", calls)
	}
}

func TestGoRecoversFromPanic(t *testing.T) {
	s := New(context.Background(), zap.NewNop(), WithBackoff(time.Millisecond), WithHealthCheckInterval(time.Hour))
	defer s.Stop()

	var calls int32
	s.Go("panicky", func(ctx context.Context, tick func()) error {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			panic("unexpected nil pointer")
		}
		tick()
		time.Sleep(10 * time.Millisecond)
		return nil
	})

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&calls) < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if atomic.LoadInt32(&calls) < 2 {
		t.Fatalf("task did not resume after panic, calls=%d", calls)
	}
}

func TestGoPanicsOnDuplicateName(t *testing.T) {
	s := New(context.Background(), zap.NewNop(), WithHealthCheckInterval(time.Hour))
	defer s.Stop()

	s.Go("dup", func(ctx context.Context, tick func()) error {
		<-ctx.Done()
		return nil
	})

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate task name")
		}
	}()
	s.Go("dup", func(ctx context.Context, tick func()) error { return nil })
}

func TestCheckStalledRestartsTask(t *testing.T) {
	s := New(context.Background(), zap.NewNop(), WithTaskTimeout(time.Millisecond))
	defer s.Stop()

	var starts int32
	s.Go("stuck", func(ctx context.Context, tick func()) error {
		atomic.AddInt32(&starts, 1)
		tick()
		<-ctx.Done()
		return nil
	})

	time.Sleep(5 * time.Millisecond)
	s.checkStalled()

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&starts) < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if atomic.LoadInt32(&starts) < 2 {
		t.Fatalf("stalled task was not restarted, starts=%d", starts)
	}

	status := s.Snapshot()["stuck"]
	if status.RestartCount < 1 {
		t.Fatalf("RestartCount = %d, want >= 1", status.RestartCount)
	}
}

func TestStopCancelsAllTasks(t *testing.T) {
	s := New(context.Background(), zap.NewNop(), WithHealthCheckInterval(time.Hour))

	done := make(chan struct{})
	s.Go("blocking", func(ctx context.Context, tick func()) error {
		tick()
		<-ctx.Done()
		close(done)
		return nil
	})

	time.Sleep(5 * time.Millisecond)
	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("task did not observe cancellation after Stop")
	}
}
