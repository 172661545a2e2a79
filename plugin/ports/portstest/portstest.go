// Package portstest provides in-memory implementations of the ports for tests.
package portstest

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/secmc/blockparty/plugin/ports"
)

// Sent is one notification captured by Recorder.
type Sent struct {
	Player       uuid.UUID
	Channel      string
	Key          string
	Placeholders map[string]string
}

// Recorder implements Notifier, Effects, AccessRevoker, Inventory and Commands
// by recording every call.
type Recorder struct {
	mu       sync.Mutex
	sent     []Sent
	cues     []ports.Cue
	locCues  map[ports.Location][]ports.Cue
	revoked  map[uuid.UUID]int
	given    map[uuid.UUID][]ports.Stack
	commands []string
}

func NewRecorder() *Recorder {
	return &Recorder{
		locCues: make(map[ports.Location][]ports.Cue),
		revoked: make(map[uuid.UUID]int),
		given:   make(map[uuid.UUID][]ports.Stack),
	}
}

func (r *Recorder) record(id uuid.UUID, channel, key string, placeholders map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{Player: id, Channel: channel, Key: key, Placeholders: placeholders})
}

func (r *Recorder) Message(id uuid.UUID, key string, placeholders map[string]string) {
	r.record(id, "chat", key, placeholders)
}

func (r *Recorder) ActionBar(id uuid.UUID, key string, placeholders map[string]string) {
	r.record(id, "actionbar", key, placeholders)
}

func (r *Recorder) Title(id uuid.UUID, titleKey, _ string, placeholders map[string]string) {
	r.record(id, "title", titleKey, placeholders)
}

func (r *Recorder) PlayerCue(_ uuid.UUID, cue ports.Cue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cues = append(r.cues, cue)
}

func (r *Recorder) LocationCue(loc ports.Location, cue ports.Cue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locCues[loc] = append(r.locCues[loc], cue)
}

func (r *Recorder) Revoke(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[id]++
}

func (r *Recorder) Give(id uuid.UUID, stacks ...ports.Stack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.given[id] = append(r.given[id], stacks...)
}

func (r *Recorder) Run(_ uuid.UUID, commandLine string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, commandLine)
}

// Keys returns the message keys sent to id, in order.
func (r *Recorder) Keys(id uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keys []string
	for _, s := range r.sent {
		if s.Player == id {
			keys = append(keys, s.Key)
		}
	}
	return keys
}

// Count returns how many times key was sent to id.
func (r *Recorder) Count(id uuid.UUID, key string) int {
	n := 0
	for _, k := range r.Keys(id) {
		if k == key {
			n++
		}
	}
	return n
}

// Last returns the last notification sent with key.
func (r *Recorder) Last(key string) (Sent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].Key == key {
			return r.sent[i], true
		}
	}
	return Sent{}, false
}

func (r *Recorder) Cues() []ports.Cue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ports.Cue(nil), r.cues...)
}

func (r *Recorder) LocationCues(loc ports.Location) []ports.Cue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ports.Cue(nil), r.locCues[loc]...)
}

func (r *Recorder) Revoked(id uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revoked[id]
}

func (r *Recorder) Given(id uuid.UUID) []ports.Stack {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ports.Stack(nil), r.given[id]...)
}

func (r *Recorder) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}

// ErrUnknownWorld is returned by World for locations in worlds it does not hold.
var ErrUnknownWorld = errors.New("unknown world")

// World is a map-backed WorldSurface.
type World struct {
	mu     sync.Mutex
	worlds map[string]bool
	blocks map[ports.Location]ports.Material
	writes int
}

func NewWorld(names ...string) *World {
	w := &World{worlds: make(map[string]bool), blocks: make(map[ports.Location]ports.Material)}
	for _, n := range names {
		w.worlds[n] = true
	}
	return w
}

func (w *World) Set(loc ports.Location, m ports.Material) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.worlds[loc.World] = true
	w.blocks[loc] = m
}

// Remove forgets a world, as if it was closed.
func (w *World) Remove(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.worlds, name)
}

func (w *World) Material(loc ports.Location) (ports.Material, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.worlds[loc.World] {
		return "", false
	}
	m, ok := w.blocks[loc]
	if !ok {
		return "minecraft:air", true
	}
	return m, true
}

func (w *World) SetMaterial(loc ports.Location, m ports.Material) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.worlds[loc.World] {
		return ErrUnknownWorld
	}
	w.blocks[loc] = m
	w.writes++
	return nil
}

func (w *World) Writes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes
}
