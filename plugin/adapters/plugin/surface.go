package plugin

import (
	"fmt"
	"strconv"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/world"

	"github.com/secmc/blockparty/plugin/ports"
)

// Material reads the block at loc. It waits for the world, so it must not be
// called from inside a world transaction.
func (m *Manager) Material(loc ports.Location) (ports.Material, bool) {
	w := m.worldByName(loc.World)
	if w == nil {
		return "", false
	}
	var material ports.Material
	<-w.Exec(func(tx *world.Tx) {
		name, props := tx.Block(cubePos(loc)).EncodeBlock()
		material = ports.NewMaterial(name, props)
	})
	return material, true
}

// SetMaterial places m at loc. The write is queued on the world and not
// waited for.
func (m *Manager) SetMaterial(loc ports.Location, material ports.Material) error {
	w := m.worldByName(loc.World)
	if w == nil {
		return fmt.Errorf("world %q is not loaded", loc.World)
	}
	b, ok := blockFromMaterial(material)
	if !ok {
		return fmt.Errorf("unknown block %q", material)
	}
	pos := cubePos(loc)
	w.Exec(func(tx *world.Tx) {
		tx.SetBlock(pos, b, nil)
	})
	return nil
}

func cubePos(loc ports.Location) cube.Pos {
	return cube.Pos{loc.X, loc.Y, loc.Z}
}

// blockFromMaterial resolves a material back to a registered block state. A
// state that does not match exactly falls back to the block's default state.
func blockFromMaterial(material ports.Material) (world.Block, bool) {
	name := material.Name()
	if name == "" {
		return nil, false
	}
	raw := material.Properties()
	if len(raw) > 0 {
		properties := make(map[string]any, len(raw))
		for k, v := range raw {
			properties[k] = parsePropertyValue(v)
		}
		if b, ok := world.BlockByName(name, properties); ok {
			return b, true
		}
	}
	return world.BlockByName(name, nil)
}

// parsePropertyValue undoes the %v formatting of block properties. Block
// states only hold bools, int32s and strings.
func parsePropertyValue(v string) any {
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(v, 10, 32); err == nil {
		return int32(i)
	}
	return v
}
