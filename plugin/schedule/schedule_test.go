package schedule

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/secmc/blockparty/plugin/ports"
)

func TestManualRunsInTimeOrder(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	var order []int
	m.After(3*time.Second, func() { order = append(order, 3) })
	m.After(time.Second, func() { order = append(order, 1) })
	m.After(2*time.Second, func() { order = append(order, 2) })

	m.Advance(2 * time.Second)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("unexpected order after 2s: %v", order)
	}
	m.Advance(time.Second)
	if len(order) != 3 || order[2] != 3 {
		t.Fatalf("unexpected order after 3s: %v", order)
	}
	if got := m.Now(); !got.Equal(time.Unix(3, 0)) {
		t.Fatalf("clock = %v, want 3s", got)
	}
}

func TestManualCancelPreventsFiring(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	fired := false
	task := m.After(time.Second, func() { fired = true })
	task.Cancel()
	m.Advance(time.Minute)
	if fired {
		t.Fatalf("cancelled task fired")
	}
	if m.Pending() != 0 {
		t.Fatalf("expected no pending tasks, got %d", m.Pending())
	}
}

func TestManualEverySelfCancels(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	runs := 0
	m.Every(time.Second, time.Second, func(task ports.Task) {
		runs++
		if runs == 3 {
			task.Cancel()
		}
	})
	m.Advance(10 * time.Second)
	if runs != 3 {
		t.Fatalf("expected 3 runs, got %d", runs)
	}
	if m.Pending() != 0 {
		t.Fatalf("expected no pending tasks, got %d", m.Pending())
	}
}

func TestManualClockVisibleInsideCallback(t *testing.T) {
	m := NewManual(time.Unix(100, 0))
	var seen time.Time
	m.After(5*time.Second, func() { seen = m.Now() })
	m.Advance(time.Minute)
	if !seen.Equal(time.Unix(105, 0)) {
		t.Fatalf("callback saw %v, want 105s", seen)
	}
}

func TestLoopRunsCallbacksSerially(t *testing.T) {
	l := NewLoop(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer l.Close()

	var (
		running atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		l.After(time.Duration(i%5)*time.Millisecond, func() {
			defer wg.Done()
			if running.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(100 * time.Microsecond)
			running.Add(-1)
		})
	}
	waitTimeout(t, &wg, 2*time.Second)
	if overlap.Load() {
		t.Fatalf("callbacks overlapped")
	}
}

func TestLoopCancelAndPanicRecovery(t *testing.T) {
	l := NewLoop(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer l.Close()

	var fired atomic.Bool
	task := l.After(20*time.Millisecond, func() { fired.Store(true) })
	task.Cancel()

	l.After(0, func() { panic("boom") })

	done := make(chan struct{})
	l.After(40*time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("loop stopped after a panicking callback")
	}
	if fired.Load() {
		t.Fatalf("cancelled task fired")
	}
}

func TestLoopEveryStopsOnCancel(t *testing.T) {
	l := NewLoop(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer l.Close()

	var runs atomic.Int32
	done := make(chan struct{})
	l.Every(0, time.Millisecond, func(task ports.Task) {
		if runs.Add(1) == 3 {
			task.Cancel()
			close(done)
		}
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("recurring task did not run three times")
	}
	time.Sleep(20 * time.Millisecond)
	if got := runs.Load(); got != 3 {
		t.Fatalf("expected 3 runs, got %d", got)
	}
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
	case <-time.After(d):
		t.Fatalf("timed out waiting for callbacks")
	}
}
