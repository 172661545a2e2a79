package combo

import (
	"io"
	"log/slog"
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
	})
	return tr, sched, rec
}

func TestRecordActionCountsWithinWindow(t *testing.T) {
	tr, sched, _ := newTestTracker(DefaultConfig())
	id := uuid.New()
	for i := 1; i <= 12; i++ {
		if got := tr.RecordAction(id); got != i {
			t.Fatalf("action %d returned %d", i, got)
		}
		sched.Advance(2 * time.Second)
	}
	if tr.Count(id) != 12 {
		t.Fatalf("count = %d, want 12", tr.Count(id))
	}
}

func TestIdleExpiryResets(t *testing.T) {
	tr, sched, rec := newTestTracker(DefaultConfig())
	id := uuid.New()
	tr.RecordAction(id)
	tr.RecordAction(id)
	tr.RecordAction(id)

	sched.Advance(4 * time.Second)
	if tr.Count(id) != 3 {
		t.Fatalf("combo reset before expiry")
	}
	if rec.Count(id, "combo.warning") == 0 {
		t.Fatalf("expected a warning inside the warning window")
	}
	sched.Advance(time.Second)
	if tr.Count(id) != 0 {
		t.Fatalf("combo survived idle expiry")
	}
	if rec.Count(id, "combo.expired") != 1 {
		t.Fatalf("expected one expired message")
	}
	if sched.Pending() != 0 {
		t.Fatalf("watcher still scheduled after reset")
	}
}

func TestSingleActionExpiresSilently(t *testing.T) {
	tr, sched, rec := newTestTracker(DefaultConfig())
	id := uuid.New()
	tr.RecordAction(id)
	sched.Advance(10 * time.Second)
	if tr.Count(id) != 0 {
		t.Fatalf("combo not reset")
	}
	if rec.Count(id, "combo.expired") != 0 || rec.Count(id, "combo.warning") != 0 {
		t.Fatalf("count 1 combo must not warn or announce expiry")
	}
}

func TestMultiplier(t *testing.T) {
	tr, _, _ := newTestTracker(DefaultConfig())
	id := uuid.New()
	if got := tr.Multiplier(id); got != 1 {
		t.Fatalf("multiplier for absent combo = %v", got)
	}
	tr.RecordAction(id)
	if got := tr.Multiplier(id); got != 1 {
		t.Fatalf("multiplier for count 1 = %v", got)
	}
	prev := 1.0
	for i := 2; i <= 20; i++ {
		tr.RecordAction(id)
		got := tr.Multiplier(id)
		if got < prev {
			t.Fatalf("multiplier decreased at count %d: %v < %v", i, got, prev)
		}
		want := 1 + 0.1*float64(i-1)
		if diff := got - want; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("multiplier at %d = %v, want %v", i, got, want)
		}
		prev = got
	}
}

func TestDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	tr, sched, _ := newTestTracker(cfg)
	id := uuid.New()
	if got := tr.RecordAction(id); got != 0 {
		t.Fatalf("disabled combo recorded %d", got)
	}
	if tr.Multiplier(id) != 1 {
		t.Fatalf("disabled combo must have multiplier 1")
	}
	if sched.Pending() != 0 {
		t.Fatalf("disabled combo scheduled a watcher")
	}
}

func TestMilestoneEveryThreshold(t *testing.T) {
	tr, _, rec := newTestTracker(DefaultConfig())
	id := uuid.New()
	for i := 0; i < 10; i++ {
		tr.RecordAction(id)
	}
	if got := rec.Count(id, "combo.milestone"); got != 2 {
		t.Fatalf("expected 2 milestones, got %d", got)
	}
	if got := rec.Count(id, "combo.increment"); got != 8 {
		t.Fatalf("expected 8 increments, got %d", got)
	}
	last, _ := rec.Last("combo.milestone")
	if last.Placeholders["multiplier"] != "1.9x" {
		t.Fatalf("milestone multiplier = %q", last.Placeholders["multiplier"])
	}
	var levels []int
	for _, c := range rec.Cues() {
		if c.Kind == ports.CueCombo {
			levels = append(levels, c.Level)
		}
	}
	if levels[0] != 1 || levels[4] != 2 || levels[9] != 3 {
		t.Fatalf("unexpected levels %v", levels)
	}
}

func TestResetAndCancelAll(t *testing.T) {
	tr, sched, rec := newTestTracker(DefaultConfig())
	a, b := uuid.New(), uuid.New()
	tr.RecordAction(a)
	tr.RecordAction(a)
	tr.RecordAction(b)

	tr.Reset(a)
	if tr.Count(a) != 0 || rec.Count(a, "combo.expired") != 1 {
		t.Fatalf("reset did not clear combo or notify")
	}
	tr.CancelAll()
	if tr.Len() != 0 {
		t.Fatalf("expected no combos after CancelAll")
	}
	if sched.Pending() != 0 {
		t.Fatalf("expected no watchers after CancelAll, got %d", sched.Pending())
	}
	if rec.Count(b, "combo.expired") != 0 {
		t.Fatalf("CancelAll must not notify")
	}
}
