package handlers

import (
	"github.com/df-mc/dragonfly/server/item"
	"github.com/df-mc/dragonfly/server/item/inventory"
	"github.com/df-mc/dragonfly/server/player"
	"github.com/google/uuid"

	"github.com/secmc/blockparty/plugin/access"
	"github.com/secmc/blockparty/plugin/event"
	"github.com/secmc/blockparty/plugin/ports"
)

var _ inventory.Handler = (*ContainerHandler)(nil)

// ContainerHandler guards a container inventory opened by a player. Items
// placed into it are reported as transfers.
type ContainerHandler struct {
	inventory.NopHandler
	dispatcher ports.EventDispatcher
	opener     uuid.UUID
}

func NewContainerHandler(dispatcher ports.EventDispatcher, opener uuid.UUID) *ContainerHandler {
	return &ContainerHandler{dispatcher: dispatcher, opener: opener}
}

func (h *ContainerHandler) HandlePlace(ctx *inventory.Context, _ int, it item.Stack) {
	if h.dispatcher == nil || !access.Is(it) {
		return
	}
	actor := h.opener
	if p, ok := ctx.Val().(*player.Player); ok {
		actor = p.UUID()
	}
	h.place(ctx, actor)
}

func (h *ContainerHandler) place(ctx canceller, actor uuid.UUID) {
	if h.dispatcher.Dispatch(event.Transfer{Player: actor, Access: true}).Cancel {
		ctx.Cancel()
	}
}
