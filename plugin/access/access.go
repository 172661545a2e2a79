// Package access builds and recognises the item that starts a mining session.
package access

import (
	"fmt"

	"github.com/df-mc/dragonfly/server/item"
	"github.com/df-mc/dragonfly/server/item/inventory"
	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/sandertv/gophertunnel/minecraft/text"
)

// Key is the item value that marks an access item.
const Key = "blockparty_access"

type Config struct {
	Item string
	Name string
	Lore []string
}

func DefaultConfig() Config {
	return Config{
		Item: "minecraft:diamond_pickaxe",
		Name: "<gold>BlockParty Pickaxe</gold>",
		Lore: []string{
			"<grey>Use to start a mining session.</grey>",
			"<grey>Consumed when the session runs out.</grey>",
		},
	}
}

// New builds one access item.
func New(cfg Config) (item.Stack, error) {
	it, ok := world.ItemByName(cfg.Item, 0)
	if !ok {
		return item.Stack{}, fmt.Errorf("unknown access item %q", cfg.Item)
	}
	lore := make([]string, len(cfg.Lore))
	for i, l := range cfg.Lore {
		lore[i] = text.Colourf("%s", l)
	}
	return item.NewStack(it, 1).
		WithCustomName(text.Colourf("%s", cfg.Name)).
		WithLore(lore...).
		WithValue(Key, true), nil
}

// Is reports whether s is an access item.
func Is(s item.Stack) bool {
	if s.Empty() {
		return false
	}
	v, ok := s.Value(Key)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// RemoveOne takes a single access item from the player, checking the
// inventory first and the off hand last. It reports whether one was found.
func RemoveOne(p *player.Player) bool {
	if removeFromInventory(p.Inventory()) {
		return true
	}
	main, off := p.HeldItems()
	if Is(off) {
		p.SetHeldItems(main, off.Grow(-1))
		return true
	}
	return false
}

func removeFromInventory(inv *inventory.Inventory) bool {
	for slot, s := range inv.Slots() {
		if !Is(s) {
			continue
		}
		if err := inv.SetItem(slot, s.Grow(-1)); err != nil {
			return false
		}
		return true
	}
	return false
}
