package ports

import (
	"fmt"
	"sort"
	"strings"
)

// Location identifies a block cell by world name and integer coordinates. It is
// comparable and safe to use as a map key.
type Location struct {
	World   string
	X, Y, Z int
}

func (l Location) String() string {
	return fmt.Sprintf("%s(%d, %d, %d)", l.World, l.X, l.Y, l.Z)
}

// Neighbours returns the six face-adjacent cells.
func (l Location) Neighbours() [6]Location {
	return [6]Location{
		{l.World, l.X + 1, l.Y, l.Z},
		{l.World, l.X - 1, l.Y, l.Z},
		{l.World, l.X, l.Y + 1, l.Z},
		{l.World, l.X, l.Y - 1, l.Z},
		{l.World, l.X, l.Y, l.Z + 1},
		{l.World, l.X, l.Y, l.Z - 1},
	}
}

// Material is a block name with its encoded properties, e.g.
// "minecraft:oak_log[axis=y]". Equal materials restore to equal block states.
type Material string

// NewMaterial encodes a block name and its properties. Properties are sorted so
// the result is stable.
func NewMaterial(name string, props map[string]any) Material {
	if len(props) == 0 {
		return Material(name)
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('[')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%v", k, props[k])
	}
	b.WriteByte(']')
	return Material(b.String())
}

// Name returns the block name without properties.
func (m Material) Name() string {
	s := string(m)
	if i := strings.IndexByte(s, '['); i >= 0 {
		return s[:i]
	}
	return s
}

// Properties returns the raw key=value pairs of the material.
func (m Material) Properties() map[string]string {
	s := string(m)
	i := strings.IndexByte(s, '[')
	if i < 0 || !strings.HasSuffix(s, "]") {
		return nil
	}
	props := make(map[string]string)
	for _, pair := range strings.Split(s[i+1:len(s)-1], ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		props[k] = v
	}
	return props
}

// CueKind names a visual/audio cue.
type CueKind uint8

const (
	CueSessionStart CueKind = iota
	CueTimerWarning
	CueTimerTick
	CueSessionEnd
	CueCombo
	CueComboMilestone
	CueRegenStep
	CueRegenStepSound
	CueRegenDone
	CueRegenSound
	CueVeinBreak
	CueReward
)

// Cue is a request to play feedback. Level and Amount are only meaningful for
// combo cues.
type Cue struct {
	Kind      CueKind
	Level     int
	Amount    int
	Sound     bool
	Particles bool
	// Material is set for cues tied to a block, such as break particles.
	Material Material
}
