// Package combo keeps a decaying mining streak per player and derives the
// reward multiplier from it.
package combo

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/secmc/blockparty/plugin/ports"
)

type Config struct {
	Enabled        bool
	Expiry         time.Duration
	Warning        time.Duration
	BaseMultiplier float64
	LevelThreshold int
	MaxLevel       int
	UseSound       bool
	UseParticles   bool
	// CheckInterval is how often the idle watcher runs.
	CheckInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		Expiry:         5 * time.Second,
		Warning:        3 * time.Second,
		BaseMultiplier: 0.1,
		LevelThreshold: 5,
		MaxLevel:       5,
		UseSound:       true,
		UseParticles:   true,
		CheckInterval:  time.Second,
	}
}

type Deps struct {
	Scheduler ports.Scheduler
	Clock     ports.Clock
	Notifier  ports.Notifier
	Effects   ports.Effects
}

type Tracker struct {
	log *slog.Logger
	Deps

	cfg    atomic.Pointer[Config]
	combos sync.Map // uuid.UUID -> *state
}

type state struct {
	mu      sync.Mutex
	count   int
	last    time.Time
	watcher ports.Task
	// dead is set once the state has been removed from the map. A dead state
	// is never mutated again; writers retry with a fresh one.
	dead bool
}

func NewTracker(log *slog.Logger, cfg Config, deps Deps) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	t := &Tracker{log: log.With("component", "combo"), Deps: deps}
	t.Reload(cfg)
	return t
}

func (t *Tracker) Reload(cfg Config) {
	def := DefaultConfig()
	if cfg.LevelThreshold <= 0 {
		cfg.LevelThreshold = def.LevelThreshold
	}
	if cfg.MaxLevel <= 0 {
		cfg.MaxLevel = def.MaxLevel
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = def.Expiry
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = def.CheckInterval
	}
	t.cfg.Store(&cfg)
}

// RecordAction bumps the combo of id and returns the new count. It returns 0
// when combos are disabled.
func (t *Tracker) RecordAction(id uuid.UUID) int {
	cfg := t.cfg.Load()
	if !cfg.Enabled {
		return 0
	}
	var count int
	for {
		v, _ := t.combos.LoadOrStore(id, &state{})
		st := v.(*state)
		st.mu.Lock()
		if st.dead {
			st.mu.Unlock()
			continue
		}
		st.count++
		st.last = t.Clock.Now()
		if st.watcher != nil {
			st.watcher.Cancel()
		}
		st.watcher = t.Scheduler.Every(cfg.CheckInterval, cfg.CheckInterval, func(task ports.Task) {
			t.watch(id, st, task)
		})
		count = st.count
		st.mu.Unlock()
		break
	}
	t.feedback(id, count, cfg)
	return count
}

// Count returns the current combo of id, or 0.
func (t *Tracker) Count(id uuid.UUID) int {
	v, ok := t.combos.Load(id)
	if !ok {
		return 0
	}
	st := v.(*state)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.dead {
		return 0
	}
	return st.count
}

// Multiplier returns 1 + base*(count-1), or exactly 1 when combos are
// disabled or the count is at most 1.
func (t *Tracker) Multiplier(id uuid.UUID) float64 {
	cfg := t.cfg.Load()
	if !cfg.Enabled {
		return 1
	}
	return multiplier(t.Count(id), cfg.BaseMultiplier)
}

func multiplier(count int, base float64) float64 {
	if count <= 1 || base <= 0 {
		return 1
	}
	return 1 + base*float64(count-1)
}

// Reset removes the combo of id. Players are told only if they lost a streak.
func (t *Tracker) Reset(id uuid.UUID) {
	v, ok := t.combos.Load(id)
	if !ok {
		return
	}
	t.remove(id, v.(*state), true)
}

// CancelAll drops every combo and watcher without notifying anyone.
func (t *Tracker) CancelAll() {
	t.combos.Range(func(k, v any) bool {
		t.remove(k.(uuid.UUID), v.(*state), false)
		return true
	})
}

// Len returns the number of tracked combos.
func (t *Tracker) Len() int {
	n := 0
	t.combos.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (t *Tracker) remove(id uuid.UUID, st *state, notify bool) {
	st.mu.Lock()
	if st.dead {
		st.mu.Unlock()
		return
	}
	st.dead = true
	count := st.count
	if st.watcher != nil {
		st.watcher.Cancel()
	}
	st.mu.Unlock()
	t.combos.CompareAndDelete(id, st)

	if notify && count > 1 {
		t.Notifier.Message(id, "combo.expired", map[string]string{"combo": strconv.Itoa(count)})
	}
}

func (t *Tracker) watch(id uuid.UUID, st *state, task ports.Task) {
	cfg := t.cfg.Load()
	st.mu.Lock()
	if st.dead || st.watcher != task {
		st.mu.Unlock()
		task.Cancel()
		return
	}
	idle := t.Clock.Now().Sub(st.last)
	count := st.count
	st.mu.Unlock()

	if idle >= cfg.Expiry {
		t.remove(id, st, true)
		return
	}
	if left := cfg.Expiry - idle; left <= cfg.Warning && count > 1 {
		secs := int(math.Ceil(left.Seconds()))
		t.Notifier.ActionBar(id, "combo.warning", map[string]string{"time": strconv.Itoa(secs)})
	}
}

func (t *Tracker) feedback(id uuid.UUID, count int, cfg *Config) {
	level := min(cfg.MaxLevel, count/cfg.LevelThreshold+1)
	if cfg.UseSound || cfg.UseParticles {
		t.Effects.PlayerCue(id, ports.Cue{
			Kind:      ports.CueCombo,
			Level:     level,
			Amount:    min(30, 5+count/2),
			Sound:     cfg.UseSound,
			Particles: cfg.UseParticles,
		})
	}
	if count%cfg.LevelThreshold == 0 {
		t.Notifier.Message(id, "combo.milestone", map[string]string{
			"combo":      strconv.Itoa(count),
			"multiplier": fmt.Sprintf("%.1fx", multiplier(count, cfg.BaseMultiplier)),
		})
		t.Effects.PlayerCue(id, ports.Cue{Kind: ports.CueComboMilestone, Level: level, Sound: cfg.UseSound})
		return
	}
	t.Notifier.ActionBar(id, "combo.increment", map[string]string{"combo": strconv.Itoa(count)})
}
