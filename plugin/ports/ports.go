package ports

import (
	"time"

	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/google/uuid"
)

// Task is a handle on a scheduled callback. Cancel prevents future runs but
// does not interrupt a run already in progress.
type Task interface {
	Cancel()
	Cancelled() bool
}

// Scheduler runs callbacks on a single logical thread. A delay of zero or less
// runs the callback on the next dispatch.
type Scheduler interface {
	After(d time.Duration, fn func()) Task
	Every(initial, interval time.Duration, fn func(t Task)) Task
}

type Clock interface {
	Now() time.Time
}

// Notifier delivers rendered feedback to a player by message key.
type Notifier interface {
	Message(id uuid.UUID, key string, placeholders map[string]string)
	ActionBar(id uuid.UUID, key string, placeholders map[string]string)
	Title(id uuid.UUID, titleKey, subtitleKey string, placeholders map[string]string)
}

// Effects plays visual and audio cues.
type Effects interface {
	PlayerCue(id uuid.UUID, cue Cue)
	LocationCue(loc Location, cue Cue)
}

// WorldSurface reads and writes block materials by location. Material must not
// be called from inside a world transaction.
type WorldSurface interface {
	Material(loc Location) (Material, bool)
	SetMaterial(loc Location, m Material) error
}

// Inventory hands items to online players.
type Inventory interface {
	Give(id uuid.UUID, stacks ...Stack)
}

// AccessRevoker takes away the grant that started a session.
type AccessRevoker interface {
	Revoke(id uuid.UUID)
}

// AccessValidator decides whether an actor may use BlockParty at a location.
type AccessValidator interface {
	Allowed(id uuid.UUID, loc Location) bool
}

type Commands interface {
	Run(id uuid.UUID, commandLine string)
}

// Stack describes an item to give without tying callers to dragonfly item types.
type Stack struct {
	Item       string
	Meta       int16
	Count      int
	CustomName string
	Lore       []string
	// Tag is stored as an item value under TagKey when non-empty.
	TagKey string
	Tag    string
}

// Event is implemented by the immutable event records of package event.
type Event interface {
	Kind() string
}

type EventDispatcher interface {
	Dispatch(e Event) Outcome
}

// Outcome is the merged answer of all handlers for one event.
type Outcome struct {
	Cancel     bool
	ClearDrops bool
}

type PlayerHandlerFactory func(dispatcher EventDispatcher) player.Handler

type WorldHandlerFactory func(dispatcher EventDispatcher) world.Handler
