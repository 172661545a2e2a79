package grpc

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	// ServiceName and EventsMethod identify the feed on the wire.
	ServiceName  = "blockparty.Feed"
	EventsMethod = "/" + ServiceName + "/Events"

	// feedBuffer is how many events a slow observer may lag behind before
	// events are dropped for it.
	feedBuffer = 64
)

// FeedServer streams encoded events to every connected observer.
type FeedServer struct {
	server   *grpc.Server
	listener net.Listener
	log      *slog.Logger

	mu      sync.Mutex
	clients map[uint64]*client
	nextID  uint64

	dropped  atomic.Uint64
	done     chan struct{}
	stopOnce sync.Once
}

type client struct {
	kinds []string
	ch    chan []byte
}

func (c *client) wants(kind string) bool {
	return len(c.kinds) == 0 || slices.Contains(c.kinds, kind)
}

type rawProtoCodec struct{}

func (rawProtoCodec) Name() string { return "proto" }

func (rawProtoCodec) Marshal(v any) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case *[]byte:
		return *t, nil
	default:
		return nil, fmt.Errorf("rawProtoCodec: unsupported marshal type %T", v)
	}
}

func (rawProtoCodec) Unmarshal(data []byte, v any) error {
	switch t := v.(type) {
	case *[]byte:
		*t = append((*t)[:0], data...)
		return nil
	default:
		return fmt.Errorf("rawProtoCodec: unsupported unmarshal target %T (need *[]byte)", v)
	}
}

// NewFeedServer listens on address. Addresses starting with "/" or using the
// unix:// scheme listen on a unix socket; anything else is TCP.
func NewFeedServer(address string, log *slog.Logger) (*FeedServer, error) {
	if log == nil {
		log = slog.Default()
	}
	network, addr, err := splitAddress(address)
	if err != nil {
		return nil, err
	}
	if network == "unix" {
		// Clean up old socket file
		_ = os.Remove(addr)
	}

	listener, err := net.Listen(network, addr)
	if err != nil {
		return nil, fmt.Errorf("listen failed: %w", err)
	}
	if network == "unix" && runtime.GOOS != "windows" {
		_ = os.Chmod(addr, 0666)
	}

	s := &FeedServer{
		listener: listener,
		log:      log.With("component", "feed"),
		clients:  make(map[uint64]*client),
		done:     make(chan struct{}),
	}
	s.server = grpc.NewServer(
		grpc.ForceServerCodec(rawProtoCodec{}),
		grpc.Creds(insecure.NewCredentials()),
	)

	// Register the service manually
	s.server.RegisterService(&grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*any)(nil),
		Streams: []grpc.StreamDesc{{
			StreamName: "Events",
			Handler: func(srv any, stream grpc.ServerStream) error {
				return srv.(*FeedServer).events(stream)
			},
			ServerStreams: true,
		}},
	}, s)
	return s, nil
}

func splitAddress(address string) (network, addr string, err error) {
	if strings.Contains(address, "://") {
		u, err := url.Parse(address)
		if err != nil {
			return "", "", fmt.Errorf("invalid feed address %q: %w", address, err)
		}
		switch u.Scheme {
		case "unix":
			return "unix", u.Path, nil
		case "tcp":
			return "tcp", u.Host, nil
		default:
			return "", "", fmt.Errorf("unsupported address scheme %q", u.Scheme)
		}
	}
	if strings.HasPrefix(address, "/") {
		return "unix", address, nil
	}
	return "tcp", address, nil
}

// Serve accepts observers until Stop is called.
func (s *FeedServer) Serve() error {
	err := s.server.Serve(s.listener)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Stop disconnects every observer and stops the server.
func (s *FeedServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.server.GracefulStop()

		// Remove Unix socket file if it was used
		if addr := s.listener.Addr(); addr.Network() == "unix" {
			_ = os.Remove(addr.String())
		}
		if n := s.dropped.Load(); n > 0 {
			s.log.Info("feed stopped", "dropped_events", n)
		}
	})
}

// Address returns the address the server is listening on.
func (s *FeedServer) Address() string {
	return s.listener.Addr().String()
}

// Clients returns the number of connected observers.
func (s *FeedServer) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Dropped returns how many events were discarded for slow observers.
func (s *FeedServer) Dropped() uint64 { return s.dropped.Load() }

// Publish queues data for every observer interested in kind. It never blocks.
func (s *FeedServer) Publish(kind string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.clients {
		if !c.wants(kind) {
			continue
		}
		select {
		case c.ch <- data:
		default:
			s.dropped.Add(1)
			s.log.Debug("observer lagging, event dropped", "observer", id, "kind", kind)
		}
	}
}

func (s *FeedServer) subscribe(kinds []string) (uint64, *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c := &client{kinds: kinds, ch: make(chan []byte, feedBuffer)}
	s.clients[s.nextID] = c
	return s.nextID, c
}

func (s *FeedServer) unsubscribe(id uint64) {
	s.mu.Lock()
	delete(s.clients, id)
	s.mu.Unlock()
}

// events serves one observer. The request carries an optional kind filter.
func (s *FeedServer) events(stream grpc.ServerStream) error {
	var req []byte
	if err := stream.RecvMsg(&req); err != nil {
		return fmt.Errorf("receive feed request: %w", err)
	}
	kinds, err := decodeRequest(req)
	if err != nil {
		return err
	}
	id, c := s.subscribe(kinds)
	defer s.unsubscribe(id)
	s.log.Debug("observer connected", "observer", id, "kinds", kinds)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		case data := <-c.ch:
			if err := stream.SendMsg(&data); err != nil {
				return err
			}
		}
	}
}
