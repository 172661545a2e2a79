package handlers

import (
	"github.com/df-mc/dragonfly/server/world"

	"github.com/secmc/blockparty/plugin/event"
	"github.com/secmc/blockparty/plugin/ports"
)

var _ world.Handler = (*WorldHandler)(nil)

type WorldHandler struct {
	world.NopHandler
	dispatcher ports.EventDispatcher
}

func NewWorldHandler(dispatcher ports.EventDispatcher) world.Handler {
	return &WorldHandler{dispatcher: dispatcher}
}

func (h *WorldHandler) HandleClose(tx *world.Tx) {
	if h.dispatcher == nil || tx == nil {
		return
	}
	h.dispatcher.Dispatch(event.WorldClose{World: tx.World().Name()})
}
