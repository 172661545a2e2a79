package schedule

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/secmc/blockparty/plugin/ports"
)

// Loop is a wall-clock scheduler. Timers only enqueue work: every callback
// runs on the single dispatch goroutine started by NewLoop, so callbacks never
// run concurrently with each other.
type Loop struct {
	log *slog.Logger

	mu    sync.Mutex
	queue []func()

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup

	closed    atomic.Bool
	closeOnce sync.Once
}

var _ ports.Scheduler = (*Loop)(nil)
var _ ports.Clock = (*Loop)(nil)

func NewLoop(log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	l := &Loop{
		log:  log.With("component", "scheduler"),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	l.wg.Add(1)
	go l.run()
	return l
}

func (l *Loop) Now() time.Time {
	return time.Now()
}

func (l *Loop) After(d time.Duration, fn func()) ports.Task {
	t := &task{}
	if d <= 0 {
		l.enqueue(t, fn)
		return t
	}
	t.setTimer(time.AfterFunc(d, func() { l.enqueue(t, fn) }))
	return t
}

func (l *Loop) Every(initial, interval time.Duration, fn func(ports.Task)) ports.Task {
	if interval <= 0 {
		interval = time.Millisecond * 50
	}
	t := &task{}
	var tick func()
	tick = func() {
		fn(t)
		if t.Cancelled() || l.closed.Load() {
			return
		}
		t.setTimer(time.AfterFunc(interval, func() { l.enqueue(t, tick) }))
	}
	if initial <= 0 {
		l.enqueue(t, tick)
		return t
	}
	t.setTimer(time.AfterFunc(initial, func() { l.enqueue(t, tick) }))
	return t
}

// Close stops accepting work and waits for the dispatch goroutine to exit.
// Callbacks still queued are dropped.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.done)
	})
	l.wg.Wait()
}

func (l *Loop) enqueue(t *task, fn func()) {
	if t.Cancelled() || l.closed.Load() {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, func() {
		if t.Cancelled() {
			return
		}
		fn()
	})
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) run() {
	defer l.wg.Done()
	for {
		select {
		case <-l.done:
			return
		case <-l.wake:
		}
		for {
			l.mu.Lock()
			batch := l.queue
			l.queue = nil
			l.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, fn := range batch {
				if l.closed.Load() {
					return
				}
				l.call(fn)
			}
		}
	}
}

func (l *Loop) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("scheduled task panicked", "error", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()
	fn()
}

type task struct {
	cancelled atomic.Bool

	mu    sync.Mutex
	timer *time.Timer
}

func (t *task) setTimer(timer *time.Timer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled.Load() {
		timer.Stop()
		return
	}
	t.timer = timer
}

func (t *task) Cancel() {
	t.cancelled.Store(true)
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.mu.Unlock()
}

func (t *task) Cancelled() bool {
	return t.cancelled.Load()
}
