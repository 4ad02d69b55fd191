package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is the config file looked up in the working directory when no
// path is given
const DefaultPath = "gembooth.toml"

// Server contains HTTP settings.
type Server struct {
	Addr      string `toml:"addr"`
	StaticDir string `toml:"static_dir"`
	// MaxSessions caps open browser sessions; 0 means unlimited
	MaxSessions int `toml:"max_sessions"`
	// IdleTimeoutMinutes closes sessions without activity; 0 disables expiry
	IdleTimeoutMinutes int `toml:"idle_timeout_minutes"`
}

// Provider contains settings for the generative image model.
type Provider struct {
	Name           string `toml:"name"`
	Model          string `toml:"model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxInFlight    int    `toml:"max_in_flight"`
}

// Logging contains log settings.
type Logging struct {
	Level string `toml:"level"`
}

// Config encapsulates all configuration values for GemBooth.
type Config struct {
	Server   Server   `toml:"server"`
	Provider Provider `toml:"provider"`
	Logging  Logging  `toml:"logging"`
}

// Default returns a Config populated with defaults.
func Default() Config {
	return Config{
		Server: Server{
			Addr:               ":8888",
			StaticDir:          "static",
			MaxSessions:        64,
			IdleTimeoutMinutes: 60,
		},
		Provider: Provider{
			Name:           "gemini",
			TimeoutSeconds: 90,
			MaxInFlight:    4,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Load reads the TOML file at path, applies environment overrides and
// validates the result. An empty path means DefaultPath, which may be
// absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		slog.Debug("Loaded config file", "path", path)
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("open config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("GEMBOOTH_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("GEMBOOTH_PROVIDER"); v != "" {
		c.Provider.Name = v
	}
	if v := os.Getenv("GEMBOOTH_MODEL"); v != "" {
		c.Provider.Model = v
	}
	if v := os.Getenv("GEMBOOTH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	for name, dst := range map[string]*int{
		"GEMBOOTH_MAX_SESSIONS":         &c.Server.MaxSessions,
		"GEMBOOTH_IDLE_TIMEOUT_MINUTES": &c.Server.IdleTimeoutMinutes,
	} {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = n
		}
	}
	if v := os.Getenv("GEMBOOTH_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GEMBOOTH_TIMEOUT_SECONDS: %w", err)
		}
		c.Provider.TimeoutSeconds = n
	}
	if v := os.Getenv("GEMBOOTH_MAX_IN_FLIGHT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GEMBOOTH_MAX_IN_FLIGHT: %w", err)
		}
		c.Provider.MaxInFlight = n
	}
	return nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	c.Provider.Name = strings.ToLower(strings.TrimSpace(c.Provider.Name))
	switch c.Provider.Name {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unsupported provider: %q (supported: gemini, openai)", c.Provider.Name)
	}
	if c.Provider.TimeoutSeconds < 0 {
		return fmt.Errorf("provider.timeout_seconds must be >= 0, got %d", c.Provider.TimeoutSeconds)
	}
	if c.Provider.MaxInFlight < 0 {
		return fmt.Errorf("provider.max_in_flight must be >= 0, got %d", c.Provider.MaxInFlight)
	}
	if c.Server.MaxSessions < 0 {
		return fmt.Errorf("server.max_sessions must be >= 0, got %d", c.Server.MaxSessions)
	}
	if c.Server.IdleTimeoutMinutes < 0 {
		return fmt.Errorf("server.idle_timeout_minutes must be >= 0, got %d", c.Server.IdleTimeoutMinutes)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	return nil
}

// Timeout is the per-call transformation timeout; zero disables it.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}

// IdleTimeout is how long a session may go unused before it is closed; zero
// disables expiry.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Server.IdleTimeoutMinutes) * time.Minute
}

// LogLevel parses Logging.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return 0, fmt.Errorf("invalid logging.level %q: %w", c.Logging.Level, err)
	}
	return level, nil
}
