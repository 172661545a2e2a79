// Package mining is the BlockParty service: it reacts to player events and
// drives the session, combo, reward and regeneration components.
package mining

import (
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/secmc/blockparty/plugin/combo"
	"github.com/secmc/blockparty/plugin/event"
	"github.com/secmc/blockparty/plugin/ports"
	"github.com/secmc/blockparty/plugin/region"
	"github.com/secmc/blockparty/plugin/regen"
	"github.com/secmc/blockparty/plugin/reward"
	"github.com/secmc/blockparty/plugin/session"
	"github.com/secmc/blockparty/plugin/stats"
)

// Block is the configuration of one minable block type.
type Block struct {
	Enabled      bool
	RewardChance float64
	DropVanilla  bool
}

// Blocks maps block names such as "minecraft:diamond_ore" to their settings.
type Blocks map[string]Block

func (b Blocks) lookup(m ports.Material) (Block, bool) {
	blk, ok := b[strings.ToLower(m.Name())]
	return blk, ok && blk.Enabled
}

// Settings is everything the service needs from configuration.
type Settings struct {
	Session session.Config
	Combo   combo.Config
	Regen   regen.Config
	Rewards reward.Table
	Blocks  Blocks
	Regions region.Validator
}

const regenMessageCooldown = 3 * time.Second

type Deps struct {
	Scheduler ports.Scheduler
	Clock     ports.Clock
	Notifier  ports.Notifier
	Effects   ports.Effects
	World     ports.WorldSurface
	Inventory ports.Inventory
	Revoker   ports.AccessRevoker
	Commands  ports.Commands
	Stats     *stats.Store

	// RegenRand and RewardRand default to freshly seeded PCG sources.
	RegenRand  regen.Rand
	RewardRand reward.Rand
}

type Service struct {
	log  *slog.Logger
	deps Deps

	sessions *session.Tracker
	combos   *combo.Tracker
	regen    *regen.Scheduler
	selector *reward.Selector
	rewards  *reward.Granter

	blocks    atomic.Pointer[Blocks]
	validator atomic.Pointer[region.Validator]

	lastRegenMessage sync.Map // uuid.UUID -> time.Time

	// Regenerations are handed to the scheduler from inside world
	// transactions. stopMu and generation keep a handoff queued before Close
	// or Reload from scheduling anything afterwards.
	stopMu     sync.RWMutex
	generation atomic.Uint64
	handoffs   sync.Map // *handoff -> struct{}
}

type handoff struct {
	task  ports.Task
	fired atomic.Bool
}

func NewService(log *slog.Logger, settings Settings, deps Deps) *Service {
	if log == nil {
		log = slog.Default()
	}
	if deps.RegenRand == nil {
		deps.RegenRand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if deps.RewardRand == nil {
		deps.RewardRand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s := &Service{log: log.With("component", "mining"), deps: deps}
	s.sessions = session.NewTracker(log, settings.Session, session.Deps{
		Scheduler: deps.Scheduler,
		Clock:     deps.Clock,
		Notifier:  deps.Notifier,
		Effects:   deps.Effects,
		Revoker:   deps.Revoker,
	})
	s.combos = combo.NewTracker(log, settings.Combo, combo.Deps{
		Scheduler: deps.Scheduler,
		Clock:     deps.Clock,
		Notifier:  deps.Notifier,
		Effects:   deps.Effects,
	})
	s.regen = regen.NewScheduler(log, settings.Regen, regen.Deps{
		Scheduler: deps.Scheduler,
		Clock:     deps.Clock,
		World:     deps.World,
		Effects:   deps.Effects,
		Rand:      deps.RegenRand,
	})
	s.selector = reward.NewSelector(deps.RewardRand)
	s.rewards = reward.NewGranter(log, s.selector, settings.Rewards, reward.Deps{
		Inventory: deps.Inventory,
		Commands:  deps.Commands,
		Notifier:  deps.Notifier,
		Effects:   deps.Effects,
	})
	s.store(settings)
	return s
}

func (s *Service) store(settings Settings) {
	blocks := settings.Blocks
	if blocks == nil {
		blocks = Blocks{}
	}
	validator := settings.Regions
	s.blocks.Store(&blocks)
	s.validator.Store(&validator)
}

// Register subscribes the service to the events it handles.
func (s *Service) Register(bus *event.Bus) {
	event.On(bus, s.handleJoin)
	event.On(bus, s.handleQuit)
	event.On(bus, s.handleActivate)
	event.On(bus, s.handleMine)
	event.On(bus, s.handleDrop)
	event.On(bus, s.handleTransfer)
}

func (s *Service) Sessions() *session.Tracker { return s.sessions }
func (s *Service) Combos() *combo.Tracker     { return s.combos }
func (s *Service) Regen() *regen.Scheduler    { return s.regen }

// Reload ends every session and pending regeneration, then applies the new
// settings.
func (s *Service) Reload(settings Settings) {
	s.stopHandoffs()
	s.sessions.CancelAll()
	s.combos.CancelAll()
	s.regen.CancelAllTasks()

	s.sessions.Reload(settings.Session)
	s.combos.Reload(settings.Combo)
	s.regen.Reload(settings.Regen)
	s.rewards.Reload(settings.Rewards)
	s.store(settings)
	s.log.Info("settings reloaded", "blocks", len(settings.Blocks))
}

// Close cancels all timers and flushes statistics.
func (s *Service) Close() {
	s.stopHandoffs()
	s.sessions.CancelAll()
	s.combos.CancelAll()
	s.regen.CancelAllTasks()
	if s.deps.Stats != nil {
		if err := s.deps.Stats.SaveAll(); err != nil {
			s.log.Error("save player stats", "error", err)
		}
	}
}

func (s *Service) handleJoin(e event.Join) event.Outcome {
	if s.deps.Stats != nil {
		if err := s.deps.Stats.Load(e.Player, e.Name); err != nil {
			s.log.Error("load player stats", "player", e.Name, "error", err)
		}
	}
	return event.Outcome{}
}

func (s *Service) handleQuit(e event.Quit) event.Outcome {
	s.sessions.End(e.Player, session.Cancelled)
	s.combos.Reset(e.Player)
	s.lastRegenMessage.Delete(e.Player)
	if s.deps.Stats != nil {
		if err := s.deps.Stats.Save(e.Player); err != nil {
			s.log.Error("save player stats", "player", e.Name, "error", err)
		}
	}
	return event.Outcome{}
}

func (s *Service) handleActivate(e event.Activate) event.Outcome {
	if s.sessions.Active(e.Player) {
		s.deps.Notifier.Message(e.Player, "access.already-active", nil)
		return event.Outcome{}
	}
	if !s.validator.Load().Allowed(e.Player, e.Location) {
		s.deps.Notifier.Message(e.Player, "access.denied", nil)
		return event.Outcome{}
	}
	if !s.sessions.Start(e.Player) {
		s.deps.Notifier.Message(e.Player, "access.already-active", nil)
		return event.Outcome{}
	}
	left := s.sessions.Remaining(e.Player)
	s.deps.Notifier.Title(e.Player, "title.session-started", "title.session-started-sub", map[string]string{
		"time": session.FormatClock(left),
	})
	s.deps.Notifier.Message(e.Player, "access.granted", nil)
	s.log.Info("mining session started", "player", e.Name, "duration", left)
	return event.Outcome{}
}

// handleMine checks regions first, then the session, then the block type.
func (s *Service) handleMine(e event.Mine) event.Outcome {
	validator := s.validator.Load()
	block, minable := s.blocks.Load().lookup(e.Material)

	if validator.Enabled() && !validator.InRegion(e.Location) {
		return event.Outcome{}
	}
	if !s.sessions.Active(e.Player) {
		if validator.Enabled() || minable {
			s.deps.Notifier.Message(e.Player, "mining.no-active-session", nil)
			return event.Outcome{Cancel: true}
		}
		return event.Outcome{}
	}
	if !minable {
		return event.Outcome{Cancel: validator.Enabled()}
	}
	if !validator.Allowed(e.Player, e.Location) {
		s.deps.Notifier.Message(e.Player, "access.denied", nil)
		return event.Outcome{Cancel: true}
	}

	s.combos.RecordAction(e.Player)
	s.count(e.Player, stats.BlocksMined)
	chance := min(1, block.RewardChance*s.combos.Multiplier(e.Player))
	if s.selector.Roll(chance) {
		if cat, ok := s.rewards.Grant(e.Player, e.Name); ok {
			s.count(e.Player, stats.RewardsFound)
			switch cat {
			case reward.CategoryTiered:
				s.count(e.Player, stats.TieredItemsFound)
			case reward.CategoryKey:
				s.count(e.Player, stats.KeysFound)
			}
		}
	}

	// The vein walk reads neighbouring blocks, which must not happen inside
	// the world transaction this event is dispatched from.
	s.handOff(e.Location, e.Material)
	s.regenerateMessage(e.Player)

	return event.Outcome{ClearDrops: !block.DropVanilla}
}

// handOff schedules the regeneration of loc on the scheduler goroutine.
func (s *Service) handOff(loc ports.Location, material ports.Material) {
	gen := s.generation.Load()
	h := &handoff{}
	h.task = s.deps.Scheduler.After(0, func() {
		h.fired.Store(true)
		s.handoffs.Delete(h)
		s.stopMu.RLock()
		defer s.stopMu.RUnlock()
		if s.generation.Load() != gen {
			return
		}
		s.regen.Schedule(loc, material)
	})
	s.handoffs.Store(h, struct{}{})
	if h.fired.Load() {
		s.handoffs.Delete(h)
	}
}

// stopHandoffs cancels queued handoffs and waits for one that is running.
func (s *Service) stopHandoffs() {
	s.stopMu.Lock()
	s.generation.Add(1)
	s.stopMu.Unlock()
	s.handoffs.Range(func(k, _ any) bool {
		k.(*handoff).task.Cancel()
		s.handoffs.Delete(k)
		return true
	})
}

func (s *Service) handleDrop(e event.Drop) event.Outcome {
	if e.Access && s.sessions.Active(e.Player) {
		s.deps.Notifier.Message(e.Player, "access.cannot-drop", nil)
		return event.Outcome{Cancel: true}
	}
	return event.Outcome{}
}

func (s *Service) count(id uuid.UUID, c stats.Counter) {
	if s.deps.Stats != nil {
		s.deps.Stats.Increment(id, c)
	}
}

func (s *Service) regenerateMessage(id uuid.UUID) {
	now := s.deps.Clock.Now()
	if v, ok := s.lastRegenMessage.Load(id); ok && now.Sub(v.(time.Time)) < regenMessageCooldown {
		return
	}
	s.lastRegenMessage.Store(id, now)
	s.deps.Notifier.Message(id, "mining.block-regenerate", nil)
}

// handleTransfer keeps access items out of containers, with or without a
// session.
func (s *Service) handleTransfer(e event.Transfer) event.Outcome {
	if !e.Access {
		return event.Outcome{}
	}
	s.deps.Notifier.Message(e.Player, "access.cannot-transfer", nil)
	return event.Outcome{Cancel: true}
}
