package plugin

import (
	"fmt"

	"github.com/secmc/blockparty/plugin/adapters/grpc"
	"github.com/secmc/blockparty/plugin/ports"
)

// startFeed serves the event feed on address and forwards every dispatched
// event to it.
func (m *Manager) startFeed(address string) error {
	feed, err := grpc.NewFeedServer(address, m.log)
	if err != nil {
		return fmt.Errorf("start event feed: %w", err)
	}
	m.feed = feed
	go func() {
		if err := feed.Serve(); err != nil {
			m.log.Error("event feed stopped", "error", err)
		}
	}()
	m.stopForward = m.bus.Subscribe(func(id uint64, e ports.Event, out ports.Outcome) {
		data, err := grpc.EncodeEvent(id, e, out)
		if err != nil {
			m.log.Warn("encode feed event", "event_id", id, "kind", e.Kind(), "error", err)
			return
		}
		feed.Publish(e.Kind(), data)
	})
	m.log.Info("event feed listening", "address", feed.Address())
	return nil
}

// FeedAddress returns the address the event feed listens on, or "" when the
// feed is disabled.
func (m *Manager) FeedAddress() string {
	if m.feed == nil {
		return ""
	}
	return m.feed.Address()
}
