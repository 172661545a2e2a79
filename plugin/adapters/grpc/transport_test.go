package grpc

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/secmc/blockparty/plugin/event"
	"github.com/secmc/blockparty/plugin/ports"
)

func startFeed(t *testing.T) *FeedServer {
	t.Helper()
	s, err := NewFeedServer("127.0.0.1:0", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new feed server: %v", err)
	}
	go func() {
		if err := s.Serve(); err != nil {
			t.Errorf("serve: %v", err)
		}
	}()
	t.Cleanup(s.Stop)
	return s
}

func waitClients(t *testing.T, s *FeedServer, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for s.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d observers, have %d", n, s.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFeedStreamsFilteredEvents(t *testing.T) {
	s := startFeed(t)
	conn, err := Dial(s.Address())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	feed, err := OpenFeed(ctx, conn, event.KindMine)
	if err != nil {
		t.Fatalf("open feed: %v", err)
	}
	waitClients(t, s, 1)

	id := uuid.New()
	join, err := EncodeEvent(1, event.Join{Player: id, Name: "Steve"}, ports.Outcome{})
	if err != nil {
		t.Fatalf("encode join: %v", err)
	}
	mine, err := EncodeEvent(2, event.Mine{
		Player:   id,
		Name:     "Steve",
		Location: ports.Location{World: "overworld", X: 1, Y: -2, Z: 3},
		Material: "minecraft:diamond_ore",
	}, ports.Outcome{ClearDrops: true})
	if err != nil {
		t.Fatalf("encode mine: %v", err)
	}
	s.Publish(event.KindJoin, join)
	s.Publish(event.KindMine, mine)

	got, err := feed.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	fields := got.AsMap()
	if fields["kind"] != event.KindMine || fields["id"] != "2" {
		t.Fatalf("filter let through %v", fields)
	}
	if fields["actor"] != id.String() || fields["material"] != "minecraft:diamond_ore" || fields["clear_drops"] != true {
		t.Fatalf("unexpected payload %v", fields)
	}
	loc, ok := fields["location"].(map[string]any)
	if !ok || loc["world"] != "overworld" || loc["y"] != float64(-2) {
		t.Fatalf("unexpected location %v", fields["location"])
	}

	cancel()
	waitClients(t, s, 0)
}

func TestFeedDropsForSlowObservers(t *testing.T) {
	s := startFeed(t)
	_, c := s.subscribe(nil)
	for range feedBuffer + 10 {
		s.Publish(event.KindQuit, []byte{1})
	}
	if len(c.ch) != feedBuffer {
		t.Fatalf("buffer holds %d events, want %d", len(c.ch), feedBuffer)
	}
	if s.Dropped() != 10 {
		t.Fatalf("dropped %d events, want 10", s.Dropped())
	}
}

func TestSplitAddress(t *testing.T) {
	cases := []struct {
		in, network, addr string
		wantErr           bool
	}{
		{in: "127.0.0.1:50070", network: "tcp", addr: "127.0.0.1:50070"},
		{in: "tcp://localhost:1", network: "tcp", addr: "localhost:1"},
		{in: "/tmp/feed.sock", network: "unix", addr: "/tmp/feed.sock"},
		{in: "unix:///tmp/feed.sock", network: "unix", addr: "/tmp/feed.sock"},
		{in: "udp://localhost:1", wantErr: true},
	}
	for _, c := range cases {
		network, addr, err := splitAddress(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("splitAddress(%q): expected error", c.in)
			}
			continue
		}
		if err != nil || network != c.network || addr != c.addr {
			t.Errorf("splitAddress(%q) = %q, %q, %v", c.in, network, addr, err)
		}
	}
}
