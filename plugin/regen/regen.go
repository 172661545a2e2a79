// Package regen restores broken blocks after a delay.
package regen

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/secmc/blockparty/plugin/ports"
)

// Rand is the randomness used to draw delays. *rand.Rand from math/rand/v2
// satisfies it.
type Rand interface {
	IntN(n int) int
}

type Deps struct {
	Scheduler ports.Scheduler
	Clock     ports.Clock
	World     ports.WorldSurface
	Effects   ports.Effects
	Rand      Rand
}

// Scheduler keeps at most one pending restoration per location.
type Scheduler struct {
	log *slog.Logger
	Deps

	randMu sync.Mutex

	cfg     atomic.Pointer[Config]
	pending sync.Map // ports.Location -> *pending
}

type pending struct {
	material    ports.Material
	scheduledAt time.Time
	policy      Policy

	mu   sync.Mutex
	task ports.Task
	done bool
}

func (p *pending) set(t ports.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		t.Cancel()
		return
	}
	p.task = t
}

func (p *pending) stop() {
	p.mu.Lock()
	p.done = true
	t := p.task
	p.mu.Unlock()
	if t != nil {
		t.Cancel()
	}
}

func NewScheduler(log *slog.Logger, cfg Config, deps Deps) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{log: log.With("component", "regen"), Deps: deps}
	s.Reload(cfg)
	return s
}

// Reload swaps the configuration. Pending restorations keep the policy they
// were scheduled with.
func (s *Scheduler) Reload(cfg Config) {
	def := DefaultConfig()
	if cfg.MaxVeinSize <= 0 {
		cfg.MaxVeinSize = def.MaxVeinSize
	}
	if cfg.AnimationSteps <= 0 {
		cfg.AnimationSteps = def.AnimationSteps
	}
	if cfg.AnimationInterval <= 0 {
		cfg.AnimationInterval = def.AnimationInterval
	}
	s.cfg.Store(&cfg)
}

// Schedule arranges for material to be written back at loc. It is a no-op if
// loc is already pending. Vein-eligible materials also schedule the connected
// cells of the same material, up to the configured vein size.
func (s *Scheduler) Schedule(loc ports.Location, material ports.Material) {
	cfg := s.cfg.Load()
	if !s.schedule(loc, material, cfg) {
		return
	}
	if cfg.Vein && cfg.veinEligible(material) {
		s.walk(loc, material, cfg)
	}
}

// Pending reports whether loc has a restoration outstanding.
func (s *Scheduler) Pending(loc ports.Location) bool {
	_, ok := s.pending.Load(loc)
	return ok
}

// Len returns the number of outstanding restorations.
func (s *Scheduler) Len() int {
	n := 0
	s.pending.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// CancelAllTasks drops every outstanding restoration. Blocks broken and not
// yet restored stay broken.
func (s *Scheduler) CancelAllTasks() {
	n := 0
	s.pending.Range(func(k, v any) bool {
		if s.pending.CompareAndDelete(k, v) {
			v.(*pending).stop()
			n++
		}
		return true
	})
	if n > 0 {
		s.log.Info("cancelled pending regenerations", "count", n)
	}
}

func (s *Scheduler) schedule(loc ports.Location, material ports.Material, cfg *Config) bool {
	policy := cfg.policy(material)
	p := &pending{material: material, scheduledAt: s.Clock.Now(), policy: policy}
	if _, loaded := s.pending.LoadOrStore(loc, p); loaded {
		return false
	}

	switch policy.Mode {
	case Instant:
		p.set(s.Scheduler.After(tick, func() { s.restore(loc, p) }))
	case Animated:
		p.set(s.Scheduler.After(s.delay(policy), func() { s.animate(loc, p, cfg.AnimationSteps, cfg.AnimationInterval) }))
	default:
		p.set(s.Scheduler.After(s.delay(policy), func() { s.restore(loc, p) }))
	}
	return true
}

// delay draws uniformly from [MinDelay, MaxDelay] in milliseconds, inclusive.
func (s *Scheduler) delay(p Policy) time.Duration {
	lo, hi := p.MinDelay, p.MaxDelay
	if hi <= lo {
		return lo
	}
	span := int((hi - lo) / time.Millisecond)
	s.randMu.Lock()
	n := s.Rand.IntN(span + 1)
	s.randMu.Unlock()
	return lo + time.Duration(n)*time.Millisecond
}

// walk visits face-adjacent cells breadth first. The origin counts towards
// MaxVeinSize. Only cells that were newly scheduled are expanded further.
func (s *Scheduler) walk(origin ports.Location, material ports.Material, cfg *Config) {
	visited := map[ports.Location]struct{}{origin: {}}
	queue := []ports.Location{origin}
	count := 1
	for len(queue) > 0 && count < cfg.MaxVeinSize {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range cur.Neighbours() {
			if count >= cfg.MaxVeinSize {
				break
			}
			if _, ok := visited[n]; ok {
				continue
			}
			visited[n] = struct{}{}
			m, ok := s.World.Material(n)
			if !ok || m != material {
				continue
			}
			if !s.schedule(n, material, cfg) {
				continue
			}
			count++
			if cfg.VeinClear {
				s.clear(n, material)
			}
			queue = append(queue, n)
		}
	}
	if count > 1 {
		s.log.Debug("vein scheduled", "origin", origin, "material", material, "size", count)
	}
}

func (s *Scheduler) clear(loc ports.Location, material ports.Material) {
	if err := s.World.SetMaterial(loc, "minecraft:air"); err != nil {
		s.log.Warn("clear vein block", "location", loc, "error", err)
		return
	}
	s.Effects.LocationCue(loc, ports.Cue{Kind: ports.CueVeinBreak, Material: material, Particles: true})
}

func (s *Scheduler) current(loc ports.Location, p *pending) bool {
	v, ok := s.pending.Load(loc)
	return ok && v.(*pending) == p
}

func (s *Scheduler) animate(loc ports.Location, p *pending, steps int, interval time.Duration) {
	if !s.current(loc, p) {
		return
	}
	step := 0
	p.set(s.Scheduler.Every(interval, interval, func(task ports.Task) {
		if !s.current(loc, p) {
			task.Cancel()
			return
		}
		step++
		if p.policy.UseEffects {
			s.Effects.LocationCue(loc, ports.Cue{Kind: ports.CueRegenStep, Amount: step, Material: p.material, Particles: true})
		}
		if p.policy.UseSound && step%3 == 0 {
			s.Effects.LocationCue(loc, ports.Cue{Kind: ports.CueRegenStepSound, Sound: true})
		}
		if step >= steps {
			task.Cancel()
			s.restore(loc, p)
		}
	}))
}

// restore writes the material back. Failures are logged and the record is
// dropped either way.
func (s *Scheduler) restore(loc ports.Location, p *pending) {
	if !s.pending.CompareAndDelete(loc, p) {
		return
	}
	p.stop()
	if err := s.World.SetMaterial(loc, p.material); err != nil {
		s.log.Warn("restore block", "location", loc, "material", p.material, "error", err)
		return
	}
	if p.policy.UseEffects {
		s.Effects.LocationCue(loc, ports.Cue{Kind: ports.CueRegenDone, Material: p.material, Particles: true})
	}
	if p.policy.UseSound {
		s.Effects.LocationCue(loc, ports.Cue{Kind: ports.CueRegenSound, Sound: true})
	}
}
