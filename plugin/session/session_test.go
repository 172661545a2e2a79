package session

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/secmc/blockparty/plugin/ports"
	"github.com/secmc/blockparty/plugin/ports/portstest"
	"github.com/secmc/blockparty/plugin/schedule"
)

func newTestTracker(cfg Config) (*Tracker, *schedule.Manual, *portstest.Recorder) {
	sched := schedule.NewManual(time.Unix(1_700_000_000, 0))
	rec := portstest.NewRecorder()
	tr := NewTracker(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg, Deps{
		Scheduler: sched,
		Clock:     sched,
		Notifier:  rec,
		Effects:   rec,
		Revoker:   rec,
	})
	return tr, sched, rec
}

func TestStartTwiceRejectsSecond(t *testing.T) {
	tr, _, rec := newTestTracker(DefaultConfig())
	id := uuid.New()

	if tr.Active(id) {
		t.Fatalf("session active before start")
	}
	if !tr.Start(id) {
		t.Fatalf("first start rejected")
	}
	if !tr.Active(id) {
		t.Fatalf("session not active after start")
	}
	if tr.Start(id) {
		t.Fatalf("second start accepted")
	}
	if got := rec.Count(id, "timer.started"); got != 1 {
		t.Fatalf("expected one start message, got %d", got)
	}
}

func TestSessionExpiresOnTimer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Duration = 90 * time.Second
	tr, sched, rec := newTestTracker(cfg)
	id := uuid.New()
	tr.Start(id)

	sched.Advance(89 * time.Second)
	if !tr.Active(id) {
		t.Fatalf("session ended early")
	}
	sched.Advance(time.Second)
	if tr.Len() != 0 {
		t.Fatalf("expected session to be removed by the timer")
	}
	if rec.Revoked(id) != 1 {
		t.Fatalf("expected access to be revoked once, got %d", rec.Revoked(id))
	}
	if rec.Count(id, "timer.ended-item-removed") != 1 {
		t.Fatalf("expected expiry message")
	}
	if sched.Pending() != 0 {
		t.Fatalf("expected no pending callbacks after expiry, got %d", sched.Pending())
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestLazyExpiryOnRead(t *testing.T) {
	sched := schedule.NewManual(time.Unix(0, 0))
	clock := &fakeClock{now: time.Unix(0, 0)}
	rec := portstest.NewRecorder()
	tr := NewTracker(slog.New(slog.NewTextHandler(io.Discard, nil)), DefaultConfig(), Deps{
		Scheduler: sched, Clock: clock, Notifier: rec, Effects: rec, Revoker: rec,
	})
	id := uuid.New()
	tr.Start(id)

	// The clock passes expiry but the scheduler never fires.
	clock.advance(5*time.Minute + time.Millisecond)
	if tr.Active(id) {
		t.Fatalf("expired session still reported active")
	}
	if rec.Revoked(id) != 1 {
		t.Fatalf("lazy expiry must revoke like natural expiry")
	}
	if tr.Active(id) {
		t.Fatalf("second read reported active")
	}
	if rec.Revoked(id) != 1 {
		t.Fatalf("teardown must be idempotent, revoked %d times", rec.Revoked(id))
	}
	if sched.Pending() != 0 {
		t.Fatalf("expected lazy expiry to cancel callbacks, %d pending", sched.Pending())
	}

	// The timer that already fired late must agree and do nothing.
	sched.Advance(10 * time.Minute)
	if rec.Revoked(id) != 1 {
		t.Fatalf("late timer revoked again")
	}
}

func TestCancelledDoesNotRevoke(t *testing.T) {
	tr, sched, rec := newTestTracker(DefaultConfig())
	id := uuid.New()
	tr.Start(id)
	tr.End(id, Cancelled)
	tr.End(id, Cancelled)

	if tr.Active(id) {
		t.Fatalf("session still active after cancel")
	}
	if rec.Revoked(id) != 0 {
		t.Fatalf("cancel must not revoke access")
	}
	if rec.Count(id, "timer.ended") != 1 {
		t.Fatalf("expected a single end message")
	}
	sched.Advance(time.Hour)
	if rec.Revoked(id) != 0 {
		t.Fatalf("timer fired after cancel")
	}
}

func TestWarningsFireAtOffsets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Duration = 45 * time.Second
	cfg.ShowTimer = false
	tr, sched, rec := newTestTracker(cfg)
	id := uuid.New()
	tr.Start(id)

	// 60s warning is longer than the session and is skipped.
	sched.Advance(15 * time.Second)
	last, ok := rec.Last("timer.warning")
	if !ok || last.Placeholders["time"] != "30 seconds" {
		t.Fatalf("expected 30 second warning, got %+v", last)
	}
	sched.Advance(20 * time.Second)
	last, _ = rec.Last("timer.warning")
	if last.Placeholders["time"] != "10 seconds" {
		t.Fatalf("expected 10 second warning, got %+v", last)
	}
	if got := rec.Count(id, "timer.warning"); got != 2 {
		t.Fatalf("expected 2 warnings, got %d", got)
	}
}

func TestWarningSkippedAfterEnd(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ShowTimer = false
	tr, sched, rec := newTestTracker(cfg)
	id := uuid.New()
	tr.Start(id)
	tr.End(id, Cancelled)
	sched.Advance(10 * time.Minute)
	if rec.Count(id, "timer.warning") != 0 {
		t.Fatalf("warning sent for ended session")
	}
}

func TestProgressSelfCancels(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Duration = 10 * time.Second
	cfg.Warnings = nil
	tr, sched, rec := newTestTracker(cfg)
	id := uuid.New()
	tr.Start(id)

	sched.Advance(5 * time.Second)
	last, ok := rec.Last("timer.action-bar-enhanced")
	if !ok || last.Placeholders["time"] != "0:05" {
		t.Fatalf("expected 0:05 on the action bar, got %+v", last)
	}
	ticks := 0
	for _, c := range rec.Cues() {
		if c.Kind == ports.CueTimerTick {
			ticks++
		}
	}
	if ticks != 2 {
		t.Fatalf("expected tick cues at 10s and 5s, got %d", ticks)
	}
	sched.Advance(time.Minute)
	if sched.Pending() != 0 {
		t.Fatalf("progress callback kept running after expiry")
	}
}

func TestRemainingFlooredAtZero(t *testing.T) {
	tr, sched, _ := newTestTracker(DefaultConfig())
	id := uuid.New()
	if tr.Remaining(id) != 0 {
		t.Fatalf("expected zero for unknown actor")
	}
	tr.Start(id)
	sched.Advance(time.Minute)
	if got := tr.Remaining(id); got != 4*time.Minute {
		t.Fatalf("remaining = %v, want 4m", got)
	}
	sched.Advance(time.Hour)
	if got := tr.Remaining(id); got != 0 {
		t.Fatalf("remaining = %v after expiry, want 0", got)
	}
}

func TestCancelAll(t *testing.T) {
	tr, sched, rec := newTestTracker(DefaultConfig())
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		tr.Start(id)
	}
	tr.CancelAll()
	if tr.Len() != 0 {
		t.Fatalf("expected no sessions after CancelAll, got %d", tr.Len())
	}
	if sched.Pending() != 0 {
		t.Fatalf("expected no pending callbacks after CancelAll, got %d", sched.Pending())
	}
	sched.Advance(time.Hour)
	for _, id := range ids {
		if rec.Revoked(id) != 0 {
			t.Fatalf("CancelAll must not revoke")
		}
	}
}

func TestRestartAfterExpiry(t *testing.T) {
	tr, sched, _ := newTestTracker(DefaultConfig())
	id := uuid.New()
	tr.Start(id)
	sched.Advance(5 * time.Minute)
	if !tr.Start(id) {
		t.Fatalf("start after expiry rejected")
	}
}
