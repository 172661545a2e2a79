package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

var feedStreamDesc = &grpc.StreamDesc{
	StreamName:    "Events",
	ServerStreams: true,
}

// Dial connects to a feed server using the raw codec.
func Dial(address string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rawProtoCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("dial feed: %w", err)
	}
	return conn, nil
}

// FeedStream receives events from a feed server.
type FeedStream struct {
	stream grpc.ClientStream
}

// OpenFeed subscribes to the events of the given kinds, or all events when
// none are given. The stream ends when ctx is cancelled.
func OpenFeed(ctx context.Context, conn grpc.ClientConnInterface, kinds ...string) (*FeedStream, error) {
	cs, err := conn.NewStream(ctx, feedStreamDesc, EventsMethod)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	req, err := encodeRequest(kinds)
	if err != nil {
		return nil, err
	}
	if err := cs.SendMsg(&req); err != nil {
		return nil, fmt.Errorf("send feed request: %w", err)
	}
	if err := cs.CloseSend(); err != nil {
		return nil, fmt.Errorf("close feed request: %w", err)
	}
	return &FeedStream{stream: cs}, nil
}

// Recv blocks for the next event.
func (f *FeedStream) Recv() (*structpb.Struct, error) {
	var data []byte
	if err := f.stream.RecvMsg(&data); err != nil {
		return nil, err
	}
	return DecodeEvent(data)
}
