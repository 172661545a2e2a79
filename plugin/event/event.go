// Package event defines the records passed from host callbacks to the plugin
// and the bus that routes them.
package event

import (
	"github.com/google/uuid"
	"github.com/secmc/blockparty/plugin/ports"
)

const (
	KindJoin       = "join"
	KindQuit       = "quit"
	KindActivate   = "activate"
	KindMine       = "mine"
	KindDrop       = "drop"
	KindTransfer   = "transfer"
	KindWorldClose = "world_close"
)

// Outcome is what handlers ask the host to do with an event.
type Outcome = ports.Outcome

type Join struct {
	Player uuid.UUID
	Name   string
}

type Quit struct {
	Player uuid.UUID
	Name   string
}

// Activate is sent when a player uses an access item.
type Activate struct {
	Player   uuid.UUID
	Name     string
	Location ports.Location
}

// Mine is sent before a block is broken. Material is the block as it was.
type Mine struct {
	Player   uuid.UUID
	Name     string
	Location ports.Location
	Material ports.Material
}

type Drop struct {
	Player uuid.UUID
	Access bool
}

// Transfer is sent before an item is placed into an inventory that does not
// belong to the player, such as a chest.
type Transfer struct {
	Player uuid.UUID
	Access bool
}

type WorldClose struct {
	World string
}

func (Join) Kind() string       { return KindJoin }
func (Quit) Kind() string       { return KindQuit }
func (Activate) Kind() string   { return KindActivate }
func (Mine) Kind() string       { return KindMine }
func (Drop) Kind() string       { return KindDrop }
func (Transfer) Kind() string   { return KindTransfer }
func (WorldClose) Kind() string { return KindWorldClose }
