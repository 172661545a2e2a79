package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Env is the process environment BlockParty reads at startup.
type Env struct {
	DataDir string `env:"BLOCKPARTY_DATA_DIR" envDefault:"plugins/blockparty"`
	// FeedAddress enables the gRPC event feed when set, e.g. "127.0.0.1:50070".
	FeedAddress string `env:"BLOCKPARTY_FEED_ADDRESS"`
	LogLevel    string `env:"BLOCKPARTY_LOG_LEVEL" envDefault:"info"`
	// JoinAccessItems is the number of access items handed to each joining
	// player. Zero disables it.
	JoinAccessItems int `env:"BLOCKPARTY_JOIN_ACCESS_ITEMS" envDefault:"0"`
}

// ParseEnv parses environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadEnv reads the given dotenv files, if they exist, and then the
// environment. Variables already set in the environment win.
func LoadEnv(files ...string) (Env, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Env{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var e Env
	if err := ParseEnv(&e); err != nil {
		return Env{}, err
	}
	return e, nil
}

// Level maps LogLevel to a slog level. Unknown values mean info.
func (e Env) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(e.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
