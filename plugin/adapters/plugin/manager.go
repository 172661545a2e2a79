package plugin

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/df-mc/dragonfly/server"
	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/google/uuid"

	"github.com/secmc/blockparty/plugin/access"
	"github.com/secmc/blockparty/plugin/adapters/grpc"
	"github.com/secmc/blockparty/plugin/config"
	"github.com/secmc/blockparty/plugin/event"
	"github.com/secmc/blockparty/plugin/message"
	"github.com/secmc/blockparty/plugin/mining"
	"github.com/secmc/blockparty/plugin/ports"
	"github.com/secmc/blockparty/plugin/schedule"
	"github.com/secmc/blockparty/plugin/stats"
)

// Manager wires BlockParty into a dragonfly server. It owns the scheduler, the
// event bus and the mining service, and implements the ports the service uses
// to reach players and worlds.
type Manager struct {
	srv *server.Server
	log *slog.Logger

	sched   *schedule.Loop
	bus     *event.Bus
	store   *config.Store
	stats   *stats.Store
	service *mining.Service

	feed        *grpc.FeedServer
	stopForward func()

	mu      sync.RWMutex
	players map[uuid.UUID]string

	worldMu sync.RWMutex
	worlds  map[string]*world.World

	playerHandlerFactory ports.PlayerHandlerFactory
	worldHandlerFactory  ports.WorldHandlerFactory
}

var (
	_ ports.Notifier      = (*Manager)(nil)
	_ ports.Effects       = (*Manager)(nil)
	_ ports.WorldSurface  = (*Manager)(nil)
	_ ports.Inventory     = (*Manager)(nil)
	_ ports.AccessRevoker = (*Manager)(nil)
	_ ports.Commands      = (*Manager)(nil)
)

// NewManager prepares a manager for srv. srv may be nil in tests, in which
// case player-bound operations are dropped.
func NewManager(srv *server.Server, log *slog.Logger, playerHandlerFactory ports.PlayerHandlerFactory, worldHandlerFactory ports.WorldHandlerFactory) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		srv:                  srv,
		log:                  log.With("component", "blockparty"),
		sched:                schedule.NewLoop(log),
		bus:                  event.NewBus(log),
		players:              make(map[uuid.UUID]string),
		worlds:               make(map[string]*world.World),
		playerHandlerFactory: playerHandlerFactory,
		worldHandlerFactory:  worldHandlerFactory,
	}
	event.On(m.bus, func(e event.Quit) event.Outcome {
		m.detachPlayer(e.Player)
		return event.Outcome{}
	})
	event.On(m.bus, func(e event.WorldClose) event.Outcome {
		m.unregisterWorld(e.World)
		return event.Outcome{}
	})
	return m
}

// Start loads the configuration from env.DataDir, starts the mining service
// and, if env.FeedAddress is set, the event feed.
func (m *Manager) Start(env config.Env) error {
	store, err := config.NewStore(env.DataDir, m.log)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	m.store = store
	m.stats = stats.NewStore(m.log, filepath.Join(env.DataDir, "playerdata"))

	m.service = mining.NewService(m.log, store.Load().Settings(), mining.Deps{
		Scheduler: m.sched,
		Clock:     m.sched,
		Notifier:  m,
		Effects:   m,
		World:     m,
		Inventory: m,
		Revoker:   m,
		Commands:  m,
		Stats:     m.stats,
	})
	m.service.Register(m.bus)

	if env.FeedAddress != "" {
		if err := m.startFeed(env.FeedAddress); err != nil {
			return err
		}
	}
	m.log.Info("blockparty started", "data_dir", env.DataDir)
	return nil
}

// Reload rereads the configuration files. Active sessions, combos and
// pending regenerations are cancelled. On error the old configuration stays.
func (m *Manager) Reload() error {
	if m.store == nil {
		return errors.New("manager not started")
	}
	snap, err := m.store.Reload()
	if err != nil {
		return fmt.Errorf("reload configuration: %w", err)
	}
	m.service.Reload(snap.Settings())
	return nil
}

// Close stops the service, the feed and the scheduler, in that order.
func (m *Manager) Close() {
	if m.service != nil {
		m.service.Close()
	}
	if m.stopForward != nil {
		m.stopForward()
	}
	if m.feed != nil {
		m.feed.Stop()
	}
	m.sched.Close()
}

// Bus exposes the event bus, mainly for observers.
func (m *Manager) Bus() *event.Bus { return m.bus }

func (m *Manager) Service() *mining.Service { return m.service }

func (m *Manager) AttachWorld(w *world.World) {
	if w == nil {
		return
	}
	if m.worldHandlerFactory != nil {
		handler := m.worldHandlerFactory(m.bus)
		w.Handle(handler)
	}
	m.registerWorld(w)
}

func (m *Manager) AttachPlayer(p *player.Player) {
	if p == nil {
		return
	}
	if m.playerHandlerFactory != nil {
		handler := m.playerHandlerFactory(m.bus)
		p.Handle(handler)
	}
	m.mu.Lock()
	m.players[p.UUID()] = p.Name()
	m.mu.Unlock()
	m.bus.Dispatch(event.Join{Player: p.UUID(), Name: p.Name()})
}

// GiveAccessItem hands count access items, built from the current
// configuration, to an online player.
func (m *Manager) GiveAccessItem(id uuid.UUID, count int) error {
	if m.store == nil {
		return errors.New("manager not started")
	}
	s, err := access.New(m.store.Load().Access)
	if err != nil {
		return err
	}
	s = s.Grow(count - 1)
	m.withPlayer(id, func(_ *world.Tx, p *player.Player) {
		if _, err := p.Inventory().AddItem(s); err != nil {
			m.log.Warn("give access item", "player", p.Name(), "error", err)
		}
	})
	return nil
}

func (m *Manager) detachPlayer(id uuid.UUID) {
	m.mu.Lock()
	delete(m.players, id)
	m.mu.Unlock()
}

func (m *Manager) playerName(id uuid.UUID) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.players[id]
}

func (m *Manager) messages() *message.Catalog {
	if m.store == nil {
		return message.NewCatalog(m.log, "", nil)
	}
	return m.store.Load().Messages
}

func (m *Manager) registerWorld(w *world.World) {
	name := strings.ToLower(w.Name())
	m.worldMu.Lock()
	m.worlds[name] = w
	m.worldMu.Unlock()
}

func (m *Manager) unregisterWorld(name string) {
	m.worldMu.Lock()
	delete(m.worlds, strings.ToLower(name))
	m.worldMu.Unlock()
}

func (m *Manager) worldByName(name string) *world.World {
	m.worldMu.RLock()
	defer m.worldMu.RUnlock()
	if w := m.worlds[strings.ToLower(name)]; w != nil {
		return w
	}
	for _, candidate := range m.worlds {
		if strings.EqualFold(candidate.Name(), name) {
			return candidate
		}
	}
	return nil
}

// withPlayer runs method in the player's world transaction. The call is
// posted through the scheduler so it never waits on a world from inside one of
// its own transactions.
func (m *Manager) withPlayer(id uuid.UUID, method func(tx *world.Tx, pl *player.Player)) {
	m.sched.After(0, func() { m.execPlayer(id, method) })
}

func (m *Manager) execPlayer(id uuid.UUID, method func(tx *world.Tx, pl *player.Player)) {
	if m.srv == nil {
		return
	}
	if handle, ok := m.srv.Player(id); ok {
		handle.ExecWorld(func(tx *world.Tx, e world.Entity) {
			if pl, ok := e.(*player.Player); ok {
				method(tx, pl)
			}
		})
	}
}
