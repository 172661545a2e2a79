// Package config reads the BlockParty YAML files from the data directory and
// turns them into the settings the mining service runs on.
package config

// File names inside the data directory.
const (
	MainFile     = "config.yml"
	BlocksFile   = "blocks.yml"
	MessagesFile = "messages.yml"
	RegionsFile  = "regions.yml"
)

// DefaultDir is used when BLOCKPARTY_DATA_DIR is not set.
const DefaultDir = "plugins/blockparty"

// Durations in these files are whole seconds unless the key says otherwise.
// Keys ending in frequency or interval are server ticks of 50ms.

type mainFile struct {
	Settings     settingsSection `yaml:"settings"`
	AccessItem   accessSection   `yaml:"access-item"`
	Combo        comboSection    `yaml:"combo"`
	Regeneration regenSection    `yaml:"regeneration"`
	Regions      regionsSwitch   `yaml:"regions"`
}

type settingsSection struct {
	SessionDuration      int   `yaml:"mining-session-duration"`
	ShowTimer            bool  `yaml:"show-timer"`
	TimerUpdateFrequency int   `yaml:"timer-update-frequency"`
	Warnings             []int `yaml:"warnings"`
}

type accessSection struct {
	Material string   `yaml:"material"`
	Name     string   `yaml:"name"`
	Lore     []string `yaml:"lore"`
}

type comboSection struct {
	Enabled        bool    `yaml:"enabled"`
	ExpiryTime     int     `yaml:"expiry-time"`
	WarningTime    int     `yaml:"warning-time"`
	BaseMultiplier float64 `yaml:"base-multiplier"`
	LevelThreshold int     `yaml:"level-threshold"`
	MaxLevel       int     `yaml:"max-level"`
	UseSound       bool    `yaml:"use-sound"`
	UseParticles   bool    `yaml:"use-particles"`
}

type regenSection struct {
	MinTime           int                         `yaml:"min-time"`
	MaxTime           int                         `yaml:"max-time"`
	UseEffects        bool                        `yaml:"use-effects"`
	UseSound          bool                        `yaml:"use-sound"`
	DefaultType       string                      `yaml:"default-type"`
	VeinMining        bool                        `yaml:"vein-mining"`
	MaxVeinSize       int                         `yaml:"max-vein-size"`
	VeinMaterials     []string                    `yaml:"vein-materials"`
	VeinClear         bool                        `yaml:"vein-clear"`
	AnimationSteps    int                         `yaml:"animation-steps"`
	AnimationInterval int                         `yaml:"animation-interval"`
	Materials         map[string]materialOverride `yaml:"materials,omitempty"`
}

// materialOverride inherits every unset field from the regeneration section.
type materialOverride struct {
	MinTime    *int    `yaml:"min-time,omitempty"`
	MaxTime    *int    `yaml:"max-time,omitempty"`
	UseEffects *bool   `yaml:"use-effects,omitempty"`
	UseSound   *bool   `yaml:"use-sound,omitempty"`
	Type       *string `yaml:"type,omitempty"`
}

type regionsSwitch struct {
	Enabled bool     `yaml:"enabled"`
	Allowed []string `yaml:"allowed-regions"`
	Denied  []string `yaml:"denied-regions"`
}

type blocksFile struct {
	MinableBlocks map[string]blockEntry `yaml:"minable-blocks"`
	Rewards       rewardsSection        `yaml:"rewards"`
}

type blockEntry struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	RewardChance *float64 `yaml:"reward-chance,omitempty"`
	DropVanilla  bool     `yaml:"drop-vanilla"`
}

type rewardsSection struct {
	TieredItems  tieredSection  `yaml:"tiered-items"`
	CrateKeys    keysSection    `yaml:"crate-keys"`
	VanillaItems vanillaSection `yaml:"vanilla-items"`
}

type tieredSection struct {
	Enabled bool          `yaml:"enabled"`
	Chance  float64       `yaml:"chance"`
	Items   []tieredEntry `yaml:"items"`
}

type tieredEntry struct {
	Type   string  `yaml:"type"`
	ID     string  `yaml:"id"`
	Item   string  `yaml:"item"`
	Chance float64 `yaml:"chance"`
}

type keysSection struct {
	Enabled bool       `yaml:"enabled"`
	Chance  float64    `yaml:"chance"`
	Keys    []keyEntry `yaml:"keys"`
}

type keyEntry struct {
	Name    string  `yaml:"name"`
	Command string  `yaml:"command"`
	Message string  `yaml:"message"`
	Chance  float64 `yaml:"chance"`
}

type vanillaSection struct {
	Enabled bool           `yaml:"enabled"`
	Chance  float64        `yaml:"chance"`
	Items   []vanillaEntry `yaml:"items"`
}

type vanillaEntry struct {
	Material  string  `yaml:"material"`
	MinAmount int     `yaml:"min-amount"`
	MaxAmount int     `yaml:"max-amount"`
	Chance    float64 `yaml:"chance"`
}

type regionsFile struct {
	Regions map[string]regionEntry `yaml:"regions"`
}

type regionEntry struct {
	World string `yaml:"world"`
	Min   point  `yaml:"min"`
	Max   point  `yaml:"max"`
}

type point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	Z int `yaml:"z"`
}

func defaultMain() mainFile {
	return mainFile{
		Settings: settingsSection{
			SessionDuration:      300,
			ShowTimer:            true,
			TimerUpdateFrequency: 20,
			Warnings:             []int{60, 30, 10},
		},
		AccessItem: accessSection{
			Material: "minecraft:diamond_pickaxe",
			Name:     "<gold>BlockParty Pickaxe</gold>",
			Lore: []string{
				"<grey>Use to start a mining session.</grey>",
				"<grey>Consumed when the session runs out.</grey>",
			},
		},
		Combo: comboSection{
			Enabled:        true,
			ExpiryTime:     5,
			WarningTime:    3,
			BaseMultiplier: 0.1,
			LevelThreshold: 5,
			MaxLevel:       5,
			UseSound:       true,
			UseParticles:   true,
		},
		Regeneration: regenSection{
			MinTime:           5,
			MaxTime:           30,
			UseEffects:        true,
			UseSound:          true,
			DefaultType:       "DELAYED_RANDOM",
			VeinMining:        true,
			MaxVeinSize:       8,
			VeinMaterials:     []string{"minecraft:ancient_debris"},
			AnimationSteps:    10,
			AnimationInterval: 2,
		},
	}
}

func defaultBlocks() blocksFile {
	return blocksFile{
		MinableBlocks: map[string]blockEntry{
			"minecraft:coal_ore":       {RewardChance: ptr(0.3)},
			"minecraft:iron_ore":       {RewardChance: ptr(0.4)},
			"minecraft:gold_ore":       {RewardChance: ptr(0.5)},
			"minecraft:diamond_ore":    {RewardChance: ptr(0.8)},
			"minecraft:emerald_ore":    {RewardChance: ptr(0.8)},
			"minecraft:ancient_debris": {RewardChance: ptr(1.0)},
		},
		Rewards: defaultRewards(),
	}
}

func defaultRewards() rewardsSection {
	return rewardsSection{
		TieredItems: tieredSection{
			Enabled: true,
			Chance:  0.3,
			Items: []tieredEntry{
				{Type: "SWORD", ID: "PARTY_BLADE", Item: "minecraft:iron_sword", Chance: 1},
			},
		},
		CrateKeys: keysSection{
			Enabled: true,
			Chance:  0.2,
			Keys: []keyEntry{
				{Name: "common", Chance: 1},
			},
		},
		VanillaItems: vanillaSection{
			Enabled: true,
			Chance:  0.5,
			Items: []vanillaEntry{
				{Material: "minecraft:diamond", MinAmount: 1, MaxAmount: 3, Chance: 0.5},
				{Material: "minecraft:iron_ingot", MinAmount: 2, MaxAmount: 5, Chance: 1},
				{Material: "minecraft:gold_ingot", MinAmount: 1, MaxAmount: 4, Chance: 1},
			},
		},
	}
}

func ptr[T any](v T) *T { return &v }
