package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/df-mc/dragonfly/server"
	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/player/chat"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/pelletier/go-toml"

	"github.com/secmc/blockparty/plugin/adapters/handlers"
	"github.com/secmc/blockparty/plugin/adapters/plugin"
	"github.com/secmc/blockparty/plugin/config"
	"github.com/secmc/blockparty/plugin/ports"
)

func main() {
	serverConfig := flag.String("server-config", "configs/config.toml", "path to the dragonfly server config")
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	env, err := config.LoadEnv(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: env.Level()}))
	slog.SetDefault(log)
	chat.Global.Subscribe(chat.StdoutSubscriber{})

	conf, err := readConfig(*serverConfig, log)
	if err != nil {
		log.Error("read server config", "error", err)
		os.Exit(1)
	}

	srv := conf.New()
	srv.CloseOnProgramEnd()

	manager := plugin.NewManager(
		srv,
		log,
		func(d ports.EventDispatcher) player.Handler {
			return handlers.NewPlayerHandler(d)
		},
		func(d ports.EventDispatcher) world.Handler {
			return handlers.NewWorldHandler(d)
		},
	)
	if err := manager.Start(env); err != nil {
		log.Error("start blockparty", "error", err)
		os.Exit(1)
	}
	manager.AttachWorld(srv.World())
	manager.AttachWorld(srv.Nether())
	manager.AttachWorld(srv.End())
	defer manager.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go reloadOnSignal(ctx, hup, manager.Reload, log)

	srv.Listen()
	for p := range srv.Accept() {
		manager.AttachPlayer(p)
		if env.JoinAccessItems > 0 {
			if err := manager.GiveAccessItem(p.UUID(), env.JoinAccessItems); err != nil {
				log.Warn("give access item", "player", p.Name(), "error", err)
			}
		}
	}
}

// reloadOnSignal reloads the configuration for every signal received on sig
// until ctx is done. A failed reload keeps the previous configuration.
func reloadOnSignal(ctx context.Context, sig <-chan os.Signal, reload func() error, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			if err := reload(); err != nil {
				log.Error("reload blockparty", "error", err)
				continue
			}
			log.Info("blockparty configuration reloaded")
		}
	}
}

// readConfig reads the server configuration from path, or creates the file
// with defaults if it does not yet exist.
func readConfig(path string, log *slog.Logger) (server.Config, error) {
	c := server.DefaultConfig()
	var zero server.Config
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return zero, fmt.Errorf("stat config: %w", err)
		}
		data, err := toml.Marshal(c)
		if err != nil {
			return zero, fmt.Errorf("encode default config: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return zero, fmt.Errorf("create config dir: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return zero, fmt.Errorf("create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return zero, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, &c); err != nil {
			return zero, fmt.Errorf("decode config: %w", err)
		}
	}
	return c.Config(log)
}
