package plugin

import (
	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/df-mc/dragonfly/server/world/particle"
	"github.com/df-mc/dragonfly/server/world/sound"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/secmc/blockparty/plugin/ports"
)

func (m *Manager) PlayerCue(id uuid.UUID, cue ports.Cue) {
	snd, part := cueSound(cue), cueParticle(cue)
	if snd == nil && part == nil {
		return
	}
	m.withPlayer(id, func(tx *world.Tx, pl *player.Player) {
		if snd != nil {
			pl.PlaySound(snd)
		}
		if part != nil {
			tx.AddParticle(pl.Position().Add(mgl64.Vec3{0, 1, 0}), part)
		}
	})
}

func (m *Manager) LocationCue(loc ports.Location, cue ports.Cue) {
	snd, part := cueSound(cue), cueParticle(cue)
	if snd == nil && part == nil {
		return
	}
	m.sched.After(0, func() {
		w := m.worldByName(loc.World)
		if w == nil {
			return
		}
		pos := blockCentre(loc)
		// Effects are fire and forget; the scheduler does not wait on the world.
		w.Exec(func(tx *world.Tx) {
			if snd != nil {
				tx.PlaySound(pos, snd)
			}
			if part != nil {
				tx.AddParticle(pos, part)
			}
		})
	})
}

func blockCentre(loc ports.Location) mgl64.Vec3 {
	return mgl64.Vec3{float64(loc.X) + 0.5, float64(loc.Y) + 0.5, float64(loc.Z) + 0.5}
}

func cueSound(cue ports.Cue) world.Sound {
	if !cue.Sound {
		return nil
	}
	switch cue.Kind {
	case ports.CueSessionStart, ports.CueComboMilestone:
		return sound.LevelUp{}
	case ports.CueTimerWarning, ports.CueTimerTick, ports.CueRegenStepSound:
		return sound.Click{}
	case ports.CueSessionEnd:
		return sound.ItemBreak{}
	case ports.CueCombo:
		return sound.Experience{}
	case ports.CueRegenSound, ports.CueVeinBreak:
		return sound.Pop{}
	case ports.CueReward:
		return sound.FireworkTwinkle{}
	}
	return nil
}

func cueParticle(cue ports.Cue) world.Particle {
	if !cue.Particles {
		return nil
	}
	switch cue.Kind {
	case ports.CueRegenStep, ports.CueRegenDone, ports.CueVeinBreak:
		if b, ok := blockFromMaterial(cue.Material); ok {
			return particle.BlockBreak{Block: b}
		}
		return nil
	case ports.CueSessionStart, ports.CueCombo, ports.CueComboMilestone, ports.CueReward:
		return particle.Flame{}
	}
	return nil
}
