// Package session tracks time-boxed mining sessions per player.
package session

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/secmc/blockparty/plugin/ports"
)

// Reason tells End why a session finished.
type Reason uint8

const (
	// Expired sessions ran out of time. The access grant is revoked.
	Expired Reason = iota
	// Cancelled sessions were ended early by a quit, reload or shutdown.
	Cancelled
)

func (r Reason) String() string {
	if r == Expired {
		return "expired"
	}
	return "cancelled"
}

type Config struct {
	Duration time.Duration
	// Warnings are offsets before expiry at which a warning is sent.
	Warnings      []time.Duration
	ShowTimer     bool
	TimerInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Duration:      5 * time.Minute,
		Warnings:      []time.Duration{60 * time.Second, 30 * time.Second, 10 * time.Second},
		ShowTimer:     true,
		TimerInterval: time.Second,
	}
}

type Deps struct {
	Scheduler ports.Scheduler
	Clock     ports.Clock
	Notifier  ports.Notifier
	Effects   ports.Effects
	Revoker   ports.AccessRevoker
}

type Tracker struct {
	log *slog.Logger
	Deps

	cfg      atomic.Pointer[Config]
	sessions sync.Map // uuid.UUID -> *record
}

// record is the live state of one session. Tasks registered for it only act
// while the record is still the one stored for its actor.
type record struct {
	expiry time.Time

	mu    sync.Mutex
	ended bool
	tasks []ports.Task
}

func (r *record) hold(t ports.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		t.Cancel()
		return
	}
	r.tasks = append(r.tasks, t)
}

func (r *record) stop() {
	r.mu.Lock()
	r.ended = true
	tasks := r.tasks
	r.tasks = nil
	r.mu.Unlock()
	for _, t := range tasks {
		t.Cancel()
	}
}

func NewTracker(log *slog.Logger, cfg Config, deps Deps) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	t := &Tracker{log: log.With("component", "session"), Deps: deps}
	t.Reload(cfg)
	return t
}

// Reload swaps the configuration. Running sessions keep their expiry.
func (t *Tracker) Reload(cfg Config) {
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultConfig().Duration
	}
	if cfg.TimerInterval <= 0 {
		cfg.TimerInterval = DefaultConfig().TimerInterval
	}
	t.cfg.Store(&cfg)
}

// Start opens a session for id. It returns false if id already has a live
// session. A stale session that expired without being reaped is ended first.
func (t *Tracker) Start(id uuid.UUID) bool {
	cfg := t.cfg.Load()
	now := t.Clock.Now()
	rec := &record{expiry: now.Add(cfg.Duration)}
	for {
		actual, loaded := t.sessions.LoadOrStore(id, rec)
		if !loaded {
			break
		}
		existing := actual.(*record)
		if now.Before(existing.expiry) {
			return false
		}
		t.end(id, existing, Expired)
	}

	rec.hold(t.Scheduler.After(cfg.Duration, func() { t.expire(id, rec) }))
	for _, w := range cfg.Warnings {
		if w <= 0 || w >= cfg.Duration {
			continue
		}
		rec.hold(t.Scheduler.After(cfg.Duration-w, func() { t.warn(id, rec, w) }))
	}
	if cfg.ShowTimer {
		rec.hold(t.Scheduler.Every(0, cfg.TimerInterval, func(task ports.Task) { t.progress(id, rec, task) }))
	}

	t.Notifier.Message(id, "timer.started", map[string]string{"time": FormatClock(cfg.Duration)})
	t.Effects.PlayerCue(id, ports.Cue{Kind: ports.CueSessionStart, Sound: true, Particles: true})
	t.log.Debug("session started", "player", id, "expiry", rec.expiry)
	return true
}

// Active reports whether id has a live session. A session past its expiry is
// torn down here exactly as if its timer had fired.
func (t *Tracker) Active(id uuid.UUID) bool {
	v, ok := t.sessions.Load(id)
	if !ok {
		return false
	}
	rec := v.(*record)
	if !t.Clock.Now().Before(rec.expiry) {
		t.end(id, rec, Expired)
		return false
	}
	return true
}

// End removes the session of id, if any. Only Expired revokes access.
func (t *Tracker) End(id uuid.UUID, reason Reason) {
	v, ok := t.sessions.Load(id)
	if !ok {
		return
	}
	t.end(id, v.(*record), reason)
}

// Remaining returns the time left in the session of id, floored at zero.
func (t *Tracker) Remaining(id uuid.UUID) time.Duration {
	v, ok := t.sessions.Load(id)
	if !ok {
		return 0
	}
	left := v.(*record).expiry.Sub(t.Clock.Now())
	if left < 0 {
		return 0
	}
	return left
}

// CancelAll ends every session with reason Cancelled.
func (t *Tracker) CancelAll() {
	t.sessions.Range(func(k, v any) bool {
		t.end(k.(uuid.UUID), v.(*record), Cancelled)
		return true
	})
}

// Len returns the number of tracked sessions, including unreaped stale ones.
func (t *Tracker) Len() int {
	n := 0
	t.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (t *Tracker) end(id uuid.UUID, rec *record, reason Reason) {
	if !t.sessions.CompareAndDelete(id, rec) {
		return
	}
	rec.stop()
	t.log.Debug("session ended", "player", id, "reason", reason)

	switch reason {
	case Expired:
		t.Revoker.Revoke(id)
		t.Notifier.Message(id, "timer.ended-item-removed", nil)
		t.Effects.PlayerCue(id, ports.Cue{Kind: ports.CueSessionEnd, Sound: true})
	case Cancelled:
		t.Notifier.Message(id, "timer.ended", nil)
	}
}

func (t *Tracker) current(id uuid.UUID, rec *record) bool {
	v, ok := t.sessions.Load(id)
	return ok && v.(*record) == rec
}

func (t *Tracker) expire(id uuid.UUID, rec *record) {
	if !t.current(id, rec) {
		return
	}
	// Timers may fire slightly ahead of the clock. The clock decides.
	if left := rec.expiry.Sub(t.Clock.Now()); left > 0 {
		rec.hold(t.Scheduler.After(left, func() { t.expire(id, rec) }))
		return
	}
	t.end(id, rec, Expired)
}

func (t *Tracker) warn(id uuid.UUID, rec *record, before time.Duration) {
	if !t.current(id, rec) || !t.Active(id) {
		return
	}
	t.Notifier.Message(id, "timer.warning", map[string]string{"time": formatSeconds(before)})
	t.Effects.PlayerCue(id, ports.Cue{Kind: ports.CueTimerWarning, Sound: true})
}

func (t *Tracker) progress(id uuid.UUID, rec *record, task ports.Task) {
	if !t.current(id, rec) || !t.Active(id) {
		task.Cancel()
		return
	}
	secs := int(math.Ceil(t.Remaining(id).Seconds()))
	t.Notifier.ActionBar(id, "timer.action-bar-enhanced", map[string]string{"time": FormatClock(time.Duration(secs) * time.Second)})
	if secs > 0 && secs <= 30 && secs%5 == 0 {
		t.Effects.PlayerCue(id, ports.Cue{Kind: ports.CueTimerTick, Sound: true})
	}
}

// FormatClock renders d as m:ss.
func FormatClock(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func formatSeconds(d time.Duration) string {
	secs := int(d / time.Second)
	if secs == 1 {
		return "1 second"
	}
	return fmt.Sprintf("%d seconds", secs)
}
