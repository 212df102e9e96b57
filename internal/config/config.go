// Package config loads the server configuration from yaml.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/paulrobello/par-shape-2d/internal/core/flight"
	"github.com/paulrobello/par-shape-2d/internal/core/game"
	"github.com/paulrobello/par-shape-2d/internal/core/observability/log"
	"github.com/paulrobello/par-shape-2d/internal/core/slots"
	"github.com/paulrobello/par-shape-2d/internal/server"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

type LevelConfig struct {
	// Path of a level file; empty selects the built-in demo level.
	Path string `json:"path" yaml:"path"`
}

type StorageConfig struct {
	// Dir holds snapshot files; empty keeps snapshots in memory.
	Dir string `json:"dir" yaml:"dir"`
}

type Config struct {
	Log     LogConfig        `json:"log" yaml:"log"`
	Board   game.BoardConfig `json:"board" yaml:"board"`
	Slots   slots.Config     `json:"slots" yaml:"slots"`
	Flight  flight.Config    `json:"flight" yaml:"flight"`
	Server  server.Config    `json:"server" yaml:"server"`
	Level   LevelConfig      `json:"level" yaml:"level"`
	Storage StorageConfig    `json:"storage" yaml:"storage"`
}

func Default() Config {
	g := game.DefaultConfig()
	return Config{
		Log:    LogConfig{Level: "info"},
		Board:  g.Board,
		Slots:  g.Slots,
		Flight: flight.DefaultConfig(),
		Server: server.DefaultConfig(),
	}
}

// Load decodes yaml over the defaults, so a file only names what it changes.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return Load(f)
}

func (c Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}
	check(slices.Contains([]string{"debug", "info", "warn", "warning", "error", "fatal"}, strings.ToLower(c.Log.Level)),
		"log.level %q", c.Log.Level)
	check(c.Board.PinRadius > 0, "board.pin_radius must be positive")
	check(c.Board.BlockingMargin >= 0, "board.blocking_margin must not be negative")
	check(c.Board.FallbackWidth > 0 && c.Board.FallbackHeight > 0, "board fallback size must be positive")
	check(c.Board.Workers > 0, "board.workers must be positive")
	check(c.Slots.Containers > 0, "slots.containers must be positive")
	check(c.Slots.Capacity > 0, "slots.capacity must be positive")
	check(c.Slots.HoldingSlots > 0, "slots.holding_slots must be positive")
	check(c.Slots.FadeDuration >= 0, "slots.fade_duration must not be negative")
	check(c.Slots.HoldingCountdown > 0, "slots.holding_countdown must be positive")
	check(c.Flight.Speed >= 0, "flight.speed must not be negative")
	check(c.Server.ListenAddr != "", "server.listen_addr is required")
	check(c.Server.TickInterval > 0, "server.tick_interval must be positive")
	check(c.Server.MaxClients > 0, "server.max_clients must be positive")
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Game is the session's share of the configuration.
func (c Config) Game() game.Config {
	return game.Config{Board: c.Board, Slots: c.Slots}
}

func (c Config) LogLevel() log.Level { return log.ParseLevel(strings.ToLower(c.Log.Level)) }
