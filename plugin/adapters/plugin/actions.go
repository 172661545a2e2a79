package plugin

import (
	"strings"

	"github.com/df-mc/dragonfly/server/item"
	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/player/title"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/google/uuid"
	"github.com/sandertv/gophertunnel/minecraft/text"

	"github.com/secmc/blockparty/plugin/access"
	"github.com/secmc/blockparty/plugin/ports"
)

func (m *Manager) Message(id uuid.UUID, key string, placeholders map[string]string) {
	msg := m.messages().Chat(key, placeholders)
	m.withPlayer(id, func(_ *world.Tx, pl *player.Player) {
		pl.Message(msg)
	})
}

func (m *Manager) ActionBar(id uuid.UUID, key string, placeholders map[string]string) {
	msg := m.messages().Plain(key, placeholders)
	m.withPlayer(id, func(_ *world.Tx, pl *player.Player) {
		pl.SendTip(msg)
	})
}

func (m *Manager) Title(id uuid.UUID, titleKey, subtitleKey string, placeholders map[string]string) {
	t := m.title(titleKey, subtitleKey, placeholders)
	m.withPlayer(id, func(_ *world.Tx, pl *player.Player) {
		pl.SendTitle(t)
	})
}

func (m *Manager) title(titleKey, subtitleKey string, placeholders map[string]string) title.Title {
	catalog := m.messages()
	t := title.New(catalog.Plain(titleKey, placeholders))
	if subtitleKey != "" {
		t = t.WithSubtitle(catalog.Plain(subtitleKey, placeholders))
	}
	return t
}

// Give adds stacks to the player's inventory. Stacks naming unknown items are
// skipped; whatever does not fit is lost.
func (m *Manager) Give(id uuid.UUID, stacks ...ports.Stack) {
	converted := make([]item.Stack, 0, len(stacks))
	for _, s := range stacks {
		st, ok := convertStack(s)
		if !ok {
			m.log.Warn("unknown reward item", "item", s.Item)
			continue
		}
		converted = append(converted, st)
	}
	if len(converted) == 0 {
		return
	}
	m.withPlayer(id, func(_ *world.Tx, pl *player.Player) {
		for _, st := range converted {
			if _, err := pl.Inventory().AddItem(st); err != nil {
				m.log.Debug("inventory full", "player", pl.Name(), "item", itemName(st))
			}
		}
	})
}

func (m *Manager) Revoke(id uuid.UUID) {
	m.withPlayer(id, func(_ *world.Tx, pl *player.Player) {
		if !access.RemoveOne(pl) {
			m.log.Debug("no access item to revoke", "player", pl.Name())
		}
	})
}

// Run executes commandLine as the player. A leading slash is added when
// missing.
func (m *Manager) Run(id uuid.UUID, commandLine string) {
	cmd := commandLine
	if cmd != "" && !strings.HasPrefix(cmd, "/") {
		cmd = "/" + cmd
	}
	if cmd == "" {
		return
	}
	m.withPlayer(id, func(_ *world.Tx, pl *player.Player) {
		pl.ExecuteCommand(cmd)
	})
}

func convertStack(s ports.Stack) (item.Stack, bool) {
	if s.Item == "" || s.Count <= 0 {
		return item.Stack{}, false
	}
	it, ok := world.ItemByName(s.Item, s.Meta)
	if !ok {
		return item.Stack{}, false
	}
	st := item.NewStack(it, s.Count)
	if s.CustomName != "" {
		st = st.WithCustomName(text.Colourf("%s", s.CustomName))
	}
	if len(s.Lore) > 0 {
		lore := make([]string, len(s.Lore))
		for i, l := range s.Lore {
			lore[i] = text.Colourf("%s", l)
		}
		st = st.WithLore(lore...)
	}
	if s.TagKey != "" && s.Tag != "" {
		st = st.WithValue(s.TagKey, s.Tag)
	}
	return st, true
}

func itemName(st item.Stack) string {
	name, _ := st.Item().EncodeItem()
	return name
}
