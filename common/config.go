package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Floors int `toml:"floors" yaml:"floors" env:"ELEV_FLOORS"`
	Cars   int `toml:"cars" yaml:"cars" env:"ELEV_CARS"`

	TickMs          int `toml:"tick_ms" yaml:"tick_ms" env:"ELEV_TICK_MS"`
	InboxPollMs     int `toml:"inbox_poll_ms" yaml:"inbox_poll_ms" env:"ELEV_INBOX_POLL_MS"`
	DoorOpenMs      int `toml:"door_open_ms" yaml:"door_open_ms" env:"ELEV_DOOR_OPEN_MS"`
	LoadingMs       int `toml:"loading_ms" yaml:"loading_ms" env:"ELEV_LOADING_MS"`
	DoorCloseMs     int `toml:"door_close_ms" yaml:"door_close_ms" env:"ELEV_DOOR_CLOSE_MS"`
	DispatchPollMs  int `toml:"dispatch_poll_ms" yaml:"dispatch_poll_ms" env:"ELEV_DISPATCH_POLL_MS"`
	AssignTimeoutMs int `toml:"assign_timeout_ms" yaml:"assign_timeout_ms" env:"ELEV_ASSIGN_TIMEOUT_MS"`
	ShutdownMs      int `toml:"shutdown_ms" yaml:"shutdown_ms" env:"ELEV_SHUTDOWN_MS"`
	InboxCapacity   int `toml:"inbox_capacity" yaml:"inbox_capacity" env:"ELEV_INBOX_CAPACITY"`

	// Empty disables the QUIC control server.
	ControlAddr string `toml:"control_addr" yaml:"control_addr" env:"ELEV_CONTROL_ADDR"`
	LogLevel    string `toml:"log_level" yaml:"log_level" env:"ELEV_LOG_LEVEL"`
}

// DefaultConfig returns the timings of the reference building: 15 floors,
// 3 cars, one floor per 500ms tick.
func DefaultConfig() Config {
	return Config{
		Floors:          15,
		Cars:            3,
		TickMs:          500,
		InboxPollMs:     100,
		DoorOpenMs:      1000,
		LoadingMs:       1500,
		DoorCloseMs:     1000,
		DispatchPollMs:  200,
		AssignTimeoutMs: 100,
		ShutdownMs:      2000,
		InboxCapacity:   32,
		LogLevel:        "info",
	}
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func (c Config) Tick() time.Duration          { return ms(c.TickMs) }
func (c Config) InboxPoll() time.Duration     { return ms(c.InboxPollMs) }
func (c Config) DoorOpen() time.Duration      { return ms(c.DoorOpenMs) }
func (c Config) Loading() time.Duration       { return ms(c.LoadingMs) }
func (c Config) DoorClose() time.Duration     { return ms(c.DoorCloseMs) }
func (c Config) DispatchPoll() time.Duration  { return ms(c.DispatchPollMs) }
func (c Config) AssignTimeout() time.Duration { return ms(c.AssignTimeoutMs) }
func (c Config) ShutdownTimeout() time.Duration {
	return ms(c.ShutdownMs)
}

// StartFloor is the floor car id is parked on at startup.
func (c Config) StartFloor(id int) int {
	return id%c.Floors + 1
}

func (c Config) Validate() error {
	switch {
	case c.Floors < 2:
		return fmt.Errorf("%w: floors must be >= 2, got %d", ErrInvalidConfig, c.Floors)
	case c.Cars < 1:
		return fmt.Errorf("%w: cars must be >= 1, got %d", ErrInvalidConfig, c.Cars)
	case c.InboxCapacity < 1:
		return fmt.Errorf("%w: inbox_capacity must be >= 1, got %d", ErrInvalidConfig, c.InboxCapacity)
	case c.TickMs <= 0 || c.InboxPollMs <= 0 || c.DispatchPollMs <= 0:
		return fmt.Errorf("%w: tick, inbox poll and dispatch poll must be positive", ErrInvalidConfig)
	case c.DoorOpenMs < 0 || c.LoadingMs < 0 || c.DoorCloseMs < 0:
		return fmt.Errorf("%w: door timings must not be negative", ErrInvalidConfig)
	case c.AssignTimeoutMs < 0 || c.ShutdownMs < 0:
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig decodes a .toml, .yaml or .yml file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("%w: unsupported config format %q", ErrInvalidConfig, filepath.Ext(path))
	}
	return cfg, nil
}

// ApplyEnvFile overrides fields from ELEV_* keys in a dotenv file. The
// process environment is not consulted.
func (c *Config) ApplyEnvFile(path string) error {
	vars, err := godotenv.Read(path)
	if err != nil {
		return fmt.Errorf("read env file %s: %w", path, err)
	}
	return c.applyEnv(env.Options{Environment: vars})
}

// ApplyEnv overrides fields from ELEV_* process environment variables.
// Unset or empty variables leave the field alone.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(env.Options{})
}

func (c *Config) applyEnv(opts env.Options) error {
	if err := env.ParseWithOptions(c, opts); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
