package plugin

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/secmc/blockparty/plugin/adapters/grpc"
	"github.com/secmc/blockparty/plugin/config"
	"github.com/secmc/blockparty/plugin/event"
	"github.com/secmc/blockparty/plugin/ports"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func startManager(t testing.TB, feedAddress string) *Manager {
	t.Helper()
	m := NewManager(nil, quiet(), nil, nil)
	if err := m.Start(config.Env{DataDir: t.TempDir(), FeedAddress: feedAddress}); err != nil {
		t.Fatalf("start manager: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func waitObservers(t testing.TB, m *Manager, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for m.feed.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d feed observers, have %d", n, m.feed.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestManagerStreamsOutcomes(t *testing.T) {
	m := startManager(t, "127.0.0.1:0")
	conn, err := grpc.Dial(m.FeedAddress())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	feed, err := grpc.OpenFeed(ctx, conn, event.KindMine)
	if err != nil {
		t.Fatalf("open feed: %v", err)
	}
	waitObservers(t, m, 1)

	id := uuid.New()
	m.bus.Dispatch(event.Join{Player: id, Name: "Alex"})
	out := m.bus.Dispatch(event.Mine{
		Player:   id,
		Name:     "Alex",
		Location: ports.Location{World: "overworld", X: 4, Y: 12, Z: -9},
		Material: "minecraft:diamond_ore",
	})
	if !out.Cancel {
		t.Fatalf("mining a configured block without a session should be cancelled")
	}

	got, err := feed.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	fields := got.AsMap()
	if fields["kind"] != event.KindMine || fields["cancelled"] != true {
		t.Fatalf("unexpected feed event %v", fields)
	}
	if fields["material"] != "minecraft:diamond_ore" || fields["actor"] != id.String() {
		t.Fatalf("unexpected feed payload %v", fields)
	}
}

func TestManagerMineOutsideConfiguredBlocks(t *testing.T) {
	m := startManager(t, "")
	if m.FeedAddress() != "" {
		t.Fatalf("feed should be disabled without an address")
	}
	out := m.bus.Dispatch(event.Mine{
		Player:   uuid.New(),
		Location: ports.Location{World: "overworld"},
		Material: "minecraft:stone",
	})
	if out.Cancel || out.ClearDrops {
		t.Fatalf("ordinary blocks should be left alone, got %+v", out)
	}
}

func TestManagerActivateStartsSession(t *testing.T) {
	m := startManager(t, "")
	id := uuid.New()
	m.bus.Dispatch(event.Join{Player: id, Name: "Alex"})
	m.bus.Dispatch(event.Activate{Player: id, Name: "Alex", Location: ports.Location{World: "overworld"}})
	if !m.Service().Sessions().Active(id) {
		t.Fatalf("expected an active session after activation")
	}
	m.bus.Dispatch(event.Quit{Player: id, Name: "Alex"})
	if m.Service().Sessions().Active(id) {
		t.Fatalf("quitting should end the session")
	}
	if m.playerName(id) != "" {
		t.Fatalf("quit should forget the player")
	}
}

func TestManagerReload(t *testing.T) {
	m := startManager(t, "")
	id := uuid.New()
	m.bus.Dispatch(event.Activate{Player: id, Location: ports.Location{World: "overworld"}})

	path := filepath.Join(m.store.Dir(), config.MainFile)
	if err := os.WriteFile(path, []byte("settings:\n  mining-session-duration: 42\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := m.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if m.Service().Sessions().Active(id) {
		t.Fatalf("reload should end active sessions")
	}
	if got := m.store.Load().Session.Duration; got != 42*time.Second {
		t.Fatalf("session duration %v, want 42s", got)
	}

	if err := os.WriteFile(path, []byte("settings: ["), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := m.Reload(); err == nil {
		t.Fatalf("expected reload to fail on malformed yaml")
	}
	if got := m.store.Load().Session.Duration; got != 42*time.Second {
		t.Fatalf("failed reload replaced the configuration: %v", got)
	}
}

func TestManagerWithoutStart(t *testing.T) {
	m := NewManager(nil, quiet(), nil, nil)
	defer m.Close()
	if err := m.Reload(); err == nil {
		t.Fatalf("reload before start should fail")
	}
	if err := m.GiveAccessItem(uuid.New(), 1); err == nil {
		t.Fatalf("giving before start should fail")
	}
	if _, ok := m.Material(ports.Location{World: "nowhere"}); ok {
		t.Fatalf("unknown worlds have no material")
	}
	if err := m.SetMaterial(ports.Location{World: "nowhere"}, "minecraft:stone"); err == nil {
		t.Fatalf("expected error for unknown world")
	}
}

func TestParsePropertyValue(t *testing.T) {
	cases := map[string]any{
		"true":  true,
		"false": false,
		"3":     int32(3),
		"-1":    int32(-1),
		"1":     int32(1),
		"north": "north",
		"1.5":   "1.5",
	}
	for in, want := range cases {
		if got := parsePropertyValue(in); got != want {
			t.Errorf("parsePropertyValue(%q) = %#v, want %#v", in, got, want)
		}
	}
}

func TestCueMapping(t *testing.T) {
	if cueSound(ports.Cue{Kind: ports.CueSessionEnd}) != nil {
		t.Fatalf("cues without sound should stay silent")
	}
	for _, kind := range []ports.CueKind{
		ports.CueSessionStart, ports.CueTimerWarning, ports.CueTimerTick, ports.CueSessionEnd,
		ports.CueCombo, ports.CueComboMilestone, ports.CueRegenStepSound, ports.CueRegenSound,
	} {
		if cueSound(ports.Cue{Kind: kind, Sound: true}) == nil {
			t.Errorf("cue %d has no sound", kind)
		}
	}
	if cueParticle(ports.Cue{Kind: ports.CueSessionStart, Particles: true}) == nil {
		t.Fatalf("session start should show particles")
	}
	if cueParticle(ports.Cue{Kind: ports.CueRegenDone, Particles: true}) != nil {
		t.Fatalf("block particles need a material")
	}
}

func TestConvertStackRejectsEmpty(t *testing.T) {
	if _, ok := convertStack(ports.Stack{Count: 1}); ok {
		t.Fatalf("stack without item should be rejected")
	}
	if _, ok := convertStack(ports.Stack{Item: "minecraft:diamond", Count: 0}); ok {
		t.Fatalf("empty stack should be rejected")
	}
}

func TestBlockCentre(t *testing.T) {
	got := blockCentre(ports.Location{X: 1, Y: -2, Z: 0})
	if got[0] != 1.5 || got[1] != -1.5 || got[2] != 0.5 {
		t.Fatalf("unexpected centre %v", got)
	}
}

func BenchmarkDispatchMine(b *testing.B) {
	m := startManager(b, "127.0.0.1:0")
	id := uuid.New()
	m.bus.Dispatch(event.Join{Player: id, Name: "Alex"})
	e := event.Mine{
		Player:   id,
		Name:     "Alex",
		Location: ports.Location{World: "overworld", X: 1, Y: 2, Z: 3},
		Material: "minecraft:stone",
	}
	b.ReportAllocs()
	b.ResetTimer()
	for range b.N {
		m.bus.Dispatch(e)
	}
}
