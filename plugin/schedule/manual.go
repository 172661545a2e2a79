package schedule

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/secmc/blockparty/plugin/ports"
)

// Manual is a scheduler driven by a virtual clock. Nothing runs until Advance
// is called, which makes it usable as a deterministic spy in tests and for
// replaying time in tools.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	seq   uint64
	tasks []*manualTask

	scheduled atomic.Int64
	fired     atomic.Int64
}

var _ ports.Scheduler = (*Manual)(nil)
var _ ports.Clock = (*Manual)(nil)

type manualTask struct {
	at        time.Time
	seq       uint64
	interval  time.Duration
	once      func()
	every     func(ports.Task)
	cancelled atomic.Bool
}

func (t *manualTask) Cancel()         { t.cancelled.Store(true) }
func (t *manualTask) Cancelled() bool { return t.cancelled.Load() }

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) After(d time.Duration, fn func()) ports.Task {
	if d < 0 {
		d = 0
	}
	t := &manualTask{once: fn}
	m.add(t, d)
	return t
}

func (m *Manual) Every(initial, interval time.Duration, fn func(ports.Task)) ports.Task {
	if initial < 0 {
		initial = 0
	}
	if interval <= 0 {
		interval = time.Millisecond * 50
	}
	t := &manualTask{every: fn, interval: interval}
	m.add(t, initial)
	return t
}

func (m *Manual) add(t *manualTask, d time.Duration) {
	m.mu.Lock()
	m.seq++
	t.seq = m.seq
	t.at = m.now.Add(d)
	m.tasks = append(m.tasks, t)
	m.mu.Unlock()
	m.scheduled.Add(1)
}

// Advance moves the clock forward by d, running every callback that becomes
// due in time order. Callbacks may schedule further callbacks; those run too
// if they fall inside the window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		t := m.next(target)
		if t == nil {
			return
		}
		m.fired.Add(1)
		if t.once != nil {
			t.once()
			continue
		}
		t.every(t)
		if t.Cancelled() {
			continue
		}
		m.mu.Lock()
		m.seq++
		t.seq = m.seq
		t.at = t.at.Add(t.interval)
		m.tasks = append(m.tasks, t)
		m.mu.Unlock()
	}
}

// next removes and returns the earliest live task due at or before target, or
// sets the clock to target and returns nil when none is due.
func (m *Manual) next(target time.Time) *manualTask {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	live := m.tasks[:0]
	for _, t := range m.tasks {
		if !t.Cancelled() {
			live = append(live, t)
		}
	}
	m.tasks = live
	for i, t := range m.tasks {
		if t.at.After(target) {
			continue
		}
		if idx < 0 || t.at.Before(m.tasks[idx].at) || (t.at.Equal(m.tasks[idx].at) && t.seq < m.tasks[idx].seq) {
			idx = i
		}
	}
	if idx < 0 {
		m.now = target
		return nil
	}
	t := m.tasks[idx]
	m.tasks = append(m.tasks[:idx], m.tasks[idx+1:]...)
	if t.at.After(m.now) {
		m.now = t.at
	}
	return t
}

// Pending returns the number of callbacks that are scheduled and not cancelled.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if !t.Cancelled() {
			n++
		}
	}
	return n
}

// Scheduled returns how many callbacks were ever registered.
func (m *Manual) Scheduled() int { return int(m.scheduled.Load()) }

// Fired returns how many callback invocations ran.
func (m *Manual) Fired() int { return int(m.fired.Load()) }
