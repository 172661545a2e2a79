package reward

import (
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/secmc/blockparty/plugin/ports"
)

type TieredItem struct {
	Type string
	ID   string
	// Item is the base item the reward is built on.
	Item string
}

type CurrencyKey struct {
	Name string
	// Command is run for the player with %player% replaced by their name. When
	// empty, a key item is given instead.
	Command string
	Message string
}

type PlainItem struct {
	Item string
	Min  int
	Max  int
}

// Table is the full reward configuration.
type Table struct {
	Weights []Weight
	Tiered  []Candidate[TieredItem]
	Keys    []Candidate[CurrencyKey]
	Plain   []Candidate[PlainItem]
}

func DefaultTable() Table {
	return Table{
		Weights: []Weight{
			{Category: CategoryTiered, Enabled: true, Chance: 0.3},
			{Category: CategoryKey, Enabled: true, Chance: 0.2},
			{Category: CategoryPlain, Enabled: true, Chance: 0.5},
		},
		Tiered: []Candidate[TieredItem]{
			{Weight: 1, Payload: TieredItem{Type: "SWORD", ID: "PARTY_BLADE", Item: "minecraft:iron_sword"}},
		},
		Keys: []Candidate[CurrencyKey]{
			{Weight: 1, Payload: CurrencyKey{Name: "common"}},
		},
		Plain: []Candidate[PlainItem]{
			{Weight: 0.5, Payload: PlainItem{Item: "minecraft:diamond", Min: 1, Max: 3}},
			{Weight: 1, Payload: PlainItem{Item: "minecraft:iron_ingot", Min: 2, Max: 5}},
			{Weight: 1, Payload: PlainItem{Item: "minecraft:gold_ingot", Min: 1, Max: 4}},
		},
	}
}

const (
	RewardTag = "blockparty_reward"
	KeyTag    = "blockparty_key"
)

type Deps struct {
	Inventory ports.Inventory
	Commands  ports.Commands
	Notifier  ports.Notifier
	// Effects is optional.
	Effects ports.Effects
}

// Granter selects rewards from the current table and delivers them.
type Granter struct {
	log *slog.Logger
	sel *Selector
	Deps

	table atomic.Pointer[Table]
}

func NewGranter(log *slog.Logger, sel *Selector, table Table, deps Deps) *Granter {
	if log == nil {
		log = slog.Default()
	}
	g := &Granter{log: log.With("component", "reward"), sel: sel, Deps: deps}
	g.Reload(table)
	return g
}

func (g *Granter) Reload(table Table) {
	g.table.Store(&table)
}

// Grant hands a random reward to the player and returns its category. It
// returns false if nothing could be selected.
func (g *Granter) Grant(id uuid.UUID, playerName string) (Category, bool) {
	table := g.table.Load()
	cat, ok := g.sel.SelectCategory(table.Weights)
	if !ok {
		return 0, false
	}

	var label string
	switch cat {
	case CategoryTiered:
		c, ok := Pick(g.sel, table.Tiered)
		if !ok {
			return 0, false
		}
		label = g.giveTiered(id, c)
	case CategoryKey:
		c, ok := Pick(g.sel, table.Keys)
		if !ok {
			return 0, false
		}
		label = g.giveKey(id, playerName, c)
	case CategoryPlain:
		c, ok := Pick(g.sel, table.Plain)
		if !ok {
			return 0, false
		}
		label = g.givePlain(id, c)
	default:
		return 0, false
	}

	g.Notifier.Message(id, "reward.received", map[string]string{"reward": label})
	if g.Effects != nil {
		g.Effects.PlayerCue(id, ports.Cue{Kind: ports.CueReward, Sound: true, Particles: true})
	}
	g.log.Debug("reward granted", "player", id, "category", cat, "reward", label)
	return cat, true
}

func (g *Granter) giveTiered(id uuid.UUID, c TieredItem) string {
	item := c.Item
	if item == "" {
		item = "minecraft:iron_sword"
	}
	name := prettify(c.ID)
	g.Inventory.Give(id, ports.Stack{
		Item:       item,
		Count:      1,
		CustomName: "<aqua>" + name + "</aqua>",
		Lore:       []string{"<grey>Tier: " + c.Type + "</grey>"},
		TagKey:     RewardTag,
		Tag:        c.Type + ":" + c.ID,
	})
	return name
}

func (g *Granter) giveKey(id uuid.UUID, playerName string, c CurrencyKey) string {
	label := prettify(c.Name) + " Key"
	if c.Command != "" {
		g.Commands.Run(id, strings.ReplaceAll(c.Command, "%player%", playerName))
	} else {
		g.Inventory.Give(id, ports.Stack{
			Item:       "minecraft:tripwire_hook",
			Count:      1,
			CustomName: "<gold>" + label + "</gold>",
			TagKey:     KeyTag,
			Tag:        c.Name,
		})
	}
	if c.Message != "" {
		g.Notifier.Message(id, "reward.key-message", map[string]string{"message": c.Message, "key": c.Name})
	}
	return label
}

func (g *Granter) givePlain(id uuid.UUID, c PlainItem) string {
	count := g.sel.Between(max(1, c.Min), max(1, c.Max))
	g.Inventory.Give(id, ports.Stack{Item: c.Item, Count: count})
	return strconv.Itoa(count) + "x " + prettify(strings.TrimPrefix(c.Item, "minecraft:"))
}

// prettify turns "iron_ingot" or "PARTY_BLADE" into "Iron Ingot" / "Party Blade".
func prettify(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == ' ' })
	for i, w := range words {
		w = strings.ToLower(w)
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
