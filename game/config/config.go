package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/wricardo/mcp-training/merge2048/game/animation"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidConfig   = errors.New("invalid configuration")
)

// Phase duration bounds accepted from configuration.
const (
	MinSlide  = 120 * time.Millisecond
	MaxSlide  = 150 * time.Millisecond
	MinSettle = 150 * time.Millisecond
	MaxSettle = 200 * time.Millisecond
)

type Config struct {
	LogLevel  string    `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat string    `yaml:"log-format" env:"LOG_FORMAT" env-default:"text"`
	Engine    Engine    `yaml:"engine"`
	Animation Animation `yaml:"animation"`
	Server    Server    `yaml:"server"`
	Sessions  Sessions  `yaml:"sessions"`
	Ngrok     Ngrok     `yaml:"ngrok"`
}

// Engine locates the remote rules engine.
type Engine struct {
	BaseURL string `yaml:"base-url" env:"ENGINE_URL" env-default:"http://localhost:8080"`
	// RequestTimeout of 0 leaves requests unbounded.
	RequestTimeout time.Duration `yaml:"request-timeout" env:"ENGINE_TIMEOUT" env-default:"0s"`
}

type Animation struct {
	Slide     time.Duration `yaml:"slide" env:"ANIMATION_SLIDE" env-default:"120ms"`
	Settle    time.Duration `yaml:"settle" env:"ANIMATION_SETTLE" env-default:"160ms"`
	NoticeTTL time.Duration `yaml:"notice-ttl" env:"NOTICE_TTL" env-default:"3s"`
}

type Server struct {
	Host string `yaml:"host" env:"HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"PORT" env-default:"9090"`
}

type Sessions struct {
	MaxAge          time.Duration `yaml:"max-age" env:"SESSION_MAX_AGE" env-default:"24h"`
	CleanupInterval time.Duration `yaml:"cleanup-interval" env:"SESSION_CLEANUP_INTERVAL" env-default:"1h"`
}

type Ngrok struct {
	Enabled   bool   `yaml:"enabled" env:"NGROK_ENABLED" env-default:"false"`
	AuthToken string `yaml:"auth-token" env:"NGROK_AUTHTOKEN"`
	Domain    string `yaml:"domain" env:"NGROK_DOMAIN"`
}

// Timings converts the animation section for the scheduler.
func (that *Config) Timings() animation.Timings {
	return animation.Timings{Slide: that.Animation.Slide, Settle: that.Animation.Settle}
}

// Addr returns the host:port the control server listens on.
func (that *Server) Addr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}

// Level maps LogLevel to a slog level.
func (that *Config) Level() slog.Level {
	switch strings.ToLower(that.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate checks the loaded values.
func (that *Config) Validate() error {
	var errs []error

	if that.Engine.BaseURL == "" {
		errs = append(errs, errors.New("engine base-url is required"))
	}
	if that.Engine.RequestTimeout < 0 {
		errs = append(errs, errors.New("engine request-timeout must not be negative"))
	}
	if that.Animation.Slide < MinSlide || that.Animation.Slide > MaxSlide {
		errs = append(errs, fmt.Errorf("animation slide %v outside [%v, %v]", that.Animation.Slide, MinSlide, MaxSlide))
	}
	if that.Animation.Settle < MinSettle || that.Animation.Settle > MaxSettle {
		errs = append(errs, fmt.Errorf("animation settle %v outside [%v, %v]", that.Animation.Settle, MinSettle, MaxSettle))
	}
	if that.Animation.NoticeTTL <= 0 {
		errs = append(errs, errors.New("animation notice-ttl must be positive"))
	}
	switch strings.ToLower(that.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log-format %q must be text or json", that.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Load reads a YAML file with env overrides. An empty path reads env only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
		return cfg, nil
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}
	return cfg, nil
}

// MustLoad is Load that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Manager loads named profiles from a directory and caches them.
type Manager struct {
	dir      string
	profiles map[string]*Config
	mu       sync.RWMutex
}

// NewManager creates a profile manager. A missing directory is not an error;
// every lookup then falls back to the environment defaults.
func NewManager(dir string) (*Manager, error) {
	if dir != "" {
		info, err := os.Stat(dir)
		if err == nil && !info.IsDir() {
			return nil, fmt.Errorf("config path is not a directory: %s", dir)
		}
	}
	return &Manager{dir: dir, profiles: make(map[string]*Config)}, nil
}

// Load returns the named profile. The name "default" falls back to the
// environment when no default.yml exists.
func (m *Manager) Load(name string) (*Config, error) {
	if name == "" {
		name = "default"
	}

	m.mu.RLock()
	if cfg, ok := m.profiles[name]; ok {
		m.mu.RUnlock()
		return cfg, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg, ok := m.profiles[name]; ok {
		return cfg, nil
	}

	path := m.path(name)
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat profile %s: %w", name, err)
		}
		if name != "default" {
			return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
		}
		path = ""
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m.profiles[name] = cfg
	return cfg, nil
}

// List returns the profile names found in the directory.
func (m *Manager) List() ([]string, error) {
	if m.dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yml" || ext == ".yaml" {
			names = append(names, strings.TrimSuffix(e.Name(), ext))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *Manager) path(name string) string {
	for _, ext := range []string{".yml", ".yaml"} {
		p := filepath.Join(m.dir, name+ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(m.dir, name+".yml")
}
