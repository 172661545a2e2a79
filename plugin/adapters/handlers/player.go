package handlers

import (
	"github.com/df-mc/dragonfly/server/block"
	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/item"
	"github.com/df-mc/dragonfly/server/player"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/secmc/blockparty/plugin/access"
	"github.com/secmc/blockparty/plugin/event"
	"github.com/secmc/blockparty/plugin/ports"
)

// PlayerHandler turns player callbacks into events and applies the merged
// outcome. It runs inside the player's world transaction.
type PlayerHandler struct {
	player.NopHandler
	dispatcher ports.EventDispatcher
}

func NewPlayerHandler(dispatcher ports.EventDispatcher) player.Handler {
	return &PlayerHandler{dispatcher: dispatcher}
}

func (h *PlayerHandler) HandleItemUse(ctx *player.Context) {
	if h.dispatcher == nil {
		return
	}
	p := ctx.Val()
	held, _ := p.HeldItems()
	if !access.Is(held) {
		return
	}
	h.dispatcher.Dispatch(event.Activate{
		Player:   p.UUID(),
		Name:     p.Name(),
		Location: location(p, cube.PosFromVec3(p.Position())),
	})
	// The access item is a tool; using it should not do anything else.
	ctx.Cancel()
}

// HandleItemUseOnBlock guards the inventory of a container before the player
// opens it.
func (h *PlayerHandler) HandleItemUseOnBlock(ctx *player.Context, pos cube.Pos, _ cube.Face, _ mgl64.Vec3) {
	if h.dispatcher == nil {
		return
	}
	p := ctx.Val()
	tx := p.Tx()
	if c, ok := tx.Block(pos).(block.Container); ok {
		c.Inventory(tx, pos).Handle(NewContainerHandler(h.dispatcher, p.UUID()))
	}
}

func (h *PlayerHandler) HandleBlockBreak(ctx *player.Context, pos cube.Pos, drops *[]item.Stack, xp *int) {
	if h.dispatcher == nil {
		return
	}
	p := ctx.Val()
	name, props := p.Tx().Block(pos).EncodeBlock()
	h.breakBlock(ctx, event.Mine{
		Player:   p.UUID(),
		Name:     p.Name(),
		Location: location(p, pos),
		Material: ports.NewMaterial(name, props),
	}, drops, xp)
}

// canceller is the part of a dragonfly event context the handlers use.
type canceller interface {
	Cancel()
}

func (h *PlayerHandler) breakBlock(ctx canceller, e event.Mine, drops *[]item.Stack, xp *int) {
	out := h.dispatcher.Dispatch(e)
	if out.Cancel {
		ctx.Cancel()
		return
	}
	if out.ClearDrops {
		*drops = nil
		*xp = 0
	}
}

func (h *PlayerHandler) HandleItemDrop(ctx *player.Context, s item.Stack) {
	if h.dispatcher == nil {
		return
	}
	p := ctx.Val()
	out := h.dispatcher.Dispatch(event.Drop{Player: p.UUID(), Access: access.Is(s)})
	if out.Cancel {
		ctx.Cancel()
	}
}

func (h *PlayerHandler) HandleQuit(p *player.Player) {
	if h.dispatcher == nil {
		return
	}
	h.dispatcher.Dispatch(event.Quit{Player: p.UUID(), Name: p.Name()})
}

func location(p *player.Player, pos cube.Pos) ports.Location {
	return ports.Location{World: p.Tx().World().Name(), X: pos.X(), Y: pos.Y(), Z: pos.Z()}
}
