// Package config loads yai settings from a TOML file and YAI_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// FileName is looked up under the root when no --config path is given.
const FileName = "config.toml"

// Config is the merged view of defaults, config file and environment.
type Config struct {
	Root      string        `toml:"root"`
	Workspace string        `toml:"workspace"`
	Graph     GraphConfig   `toml:"graph"`
	Log       LogConfig     `toml:"log"`
	Events    EventsConfig  `toml:"events"`
	Export    ExportConfig  `toml:"export"`
	Analyze   AnalyzeConfig `toml:"analyze"`
}

type GraphConfig struct {
	// Backend is "local" (own SQLite files) or "remote" (a peer over the socket).
	Backend    string   `toml:"backend"`
	Socket     string   `toml:"socket"`
	RPCTimeout Duration `toml:"rpc_timeout"`
}

type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

type EventsConfig struct {
	// NATSURL enables mutation events; empty disables them.
	NATSURL string `toml:"nats_url"`
}

type ExportConfig struct {
	S3Region   string `toml:"s3_region"`
	S3Endpoint string `toml:"s3_endpoint"`
}

type AnalyzeConfig struct {
	HubThreshold int      `toml:"hub_threshold"`
	TopN         int      `toml:"top_n"`
	StaleDays    int64    `toml:"stale_days"`
	RecentDays   int64    `toml:"recent_days"`
	DerivedRels  []string `toml:"derived_rels"`
}

// Duration decodes TOML strings such as "5s" or "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in settings for root. An empty root means ~/.yai.
func Default(root string) Config {
	return Config{
		Root:      root,
		Workspace: "default",
		Graph: GraphConfig{
			Backend:    BackendLocal,
			RPCTimeout: Duration{Duration: 5 * time.Second},
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Analyze: AnalyzeConfig{
			HubThreshold: 10,
			TopN:         50,
			StaleDays:    30,
			RecentDays:   7,
			DerivedRels:  []string{"summarizes", "derived_from"},
		},
	}
}

// Load reads path, or <root>/config.toml when path is empty, and applies the
// environment on top. A missing default file is fine; a missing explicit one is not.
func Load(path string) (*Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (*Config, error) {
	root := getenv("YAI_ROOT")
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating home directory: %w", err)
		}
		root = filepath.Join(home, ".yai")
	}
	cfg := Default(root)

	explicit := path != ""
	if !explicit {
		path = filepath.Join(root, FileName)
	}
	md, err := toml.DecodeFile(path, &cfg)
	switch {
	case err == nil:
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config %s: unknown keys %v", path, undecoded)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return nil, err
	}
	cfg.finish()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	strs := map[string]*string{
		"YAI_ROOT":          &cfg.Root,
		"YAI_WORKSPACE":     &cfg.Workspace,
		"YAI_GRAPH_BACKEND": &cfg.Graph.Backend,
		"YAI_GRAPH_SOCKET":  &cfg.Graph.Socket,
		"YAI_LOG_LEVEL":     &cfg.Log.Level,
		"YAI_LOG_FORMAT":    &cfg.Log.Format,
		"YAI_LOG_FILE":      &cfg.Log.File,
		"YAI_NATS_URL":      &cfg.Events.NATSURL,
		"YAI_S3_REGION":     &cfg.Export.S3Region,
		"YAI_S3_ENDPOINT":   &cfg.Export.S3Endpoint,
	}
	for key, dst := range strs {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	if v := strings.TrimSpace(getenv("YAI_RPC_TIMEOUT")); v != "" {
		if err := cfg.Graph.RPCTimeout.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("YAI_RPC_TIMEOUT: %w", err)
		}
	}
	return nil
}

func (c *Config) finish() {
	c.Root = expandHome(c.Root)
	c.Graph.Backend = strings.ToLower(c.Graph.Backend)
	c.Log.Format = strings.ToLower(c.Log.Format)
	if c.Graph.Socket == "" {
		c.Graph.Socket = filepath.Join(c.Root, "run", "graph.sock")
	}
	c.Graph.Socket = expandHome(c.Graph.Socket)
	c.Log.File = expandHome(c.Log.File)
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	switch c.Graph.Backend {
	case BackendLocal, BackendRemote:
	default:
		return fmt.Errorf("graph.backend must be %q or %q, got %q", BackendLocal, BackendRemote, c.Graph.Backend)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	if c.Graph.RPCTimeout.Duration <= 0 {
		return fmt.Errorf("graph.rpc_timeout must be positive, got %s", c.Graph.RPCTimeout.Duration)
	}
	if c.Root == "" {
		return errors.New("root must not be empty")
	}
	return nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
