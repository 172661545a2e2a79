package regen

import (
	"slices"
	"strings"
	"time"

	"github.com/secmc/blockparty/plugin/ports"
)

// Mode selects how a broken block comes back.
type Mode uint8

const (
	Instant Mode = iota
	FixedDelay
	RandomDelay
	Animated
)

var modeNames = map[Mode]string{
	Instant:     "INSTANT",
	FixedDelay:  "DELAYED_FIXED",
	RandomDelay: "DELAYED_RANDOM",
	Animated:    "ANIMATED",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "UNKNOWN"
}

// ParseMode accepts the configuration names of the modes, case-insensitively.
func ParseMode(s string) (Mode, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == s {
			return m, true
		}
	}
	return RandomDelay, false
}

// Policy is the regeneration behaviour for one material.
type Policy struct {
	MinDelay   time.Duration
	MaxDelay   time.Duration
	UseEffects bool
	UseSound   bool
	Mode       Mode
}

type Config struct {
	Default Policy
	// Materials overrides Default by block name, e.g. "minecraft:diamond_ore".
	Materials map[string]Policy

	Vein        bool
	MaxVeinSize int
	// VeinMaterials are vein-eligible in addition to every "_ore" block.
	VeinMaterials []string
	// VeinClear breaks the discovered neighbours as well as scheduling them.
	VeinClear bool

	AnimationSteps    int
	AnimationInterval time.Duration
}

const tick = 50 * time.Millisecond

func DefaultConfig() Config {
	return Config{
		Default: Policy{
			MinDelay:   5 * time.Second,
			MaxDelay:   30 * time.Second,
			UseEffects: true,
			UseSound:   true,
			Mode:       RandomDelay,
		},
		Materials:         map[string]Policy{},
		Vein:              true,
		MaxVeinSize:       8,
		VeinMaterials:     []string{"minecraft:ancient_debris"},
		AnimationSteps:    10,
		AnimationInterval: 2 * tick,
	}
}

func (c *Config) policy(m ports.Material) Policy {
	if p, ok := c.Materials[m.Name()]; ok {
		return p
	}
	return c.Default
}

func (c *Config) veinEligible(m ports.Material) bool {
	name := m.Name()
	return strings.Contains(name, "_ore") || slices.Contains(c.VeinMaterials, name)
}
