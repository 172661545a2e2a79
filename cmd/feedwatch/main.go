// Command feedwatch prints the BlockParty event feed as JSON lines.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/secmc/blockparty/plugin/adapters/grpc"
	"github.com/secmc/blockparty/plugin/config"
)

func main() {
	address := flag.String("address", "", "feed address, defaults to BLOCKPARTY_FEED_ADDRESS")
	kinds := flag.String("kinds", "", "comma separated event kinds to watch, empty for all")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if *address == "" {
		env, err := config.LoadEnv()
		if err != nil {
			log.Error("load env", "error", err)
			os.Exit(1)
		}
		*address = env.FeedAddress
	}
	if *address == "" {
		log.Error("no feed address given")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := watch(ctx, *address, splitKinds(*kinds), os.Stdout); err != nil {
		log.Error("watch feed", "address", *address, "error", err)
		os.Exit(1)
	}
}

func watch(ctx context.Context, address string, kinds []string, w io.Writer) error {
	conn, err := grpc.Dial(address)
	if err != nil {
		return err
	}
	defer conn.Close()

	feed, err := grpc.OpenFeed(ctx, conn, kinds...)
	if err != nil {
		return err
	}
	for {
		e, err := feed.Recv()
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), status.Code(err) == codes.Canceled:
			return nil
		default:
			return fmt.Errorf("receive event: %w", err)
		}
		line, err := protojson.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", line); err != nil {
			return err
		}
	}
}

func splitKinds(s string) []string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, strings.ToLower(k))
		}
	}
	return out
}
