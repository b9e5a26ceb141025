package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Version    int        `toml:"version"`
	Watch      Watch      `toml:"watch"`
	Exclude    Exclude    `toml:"exclude"`
	Analysis   Analysis   `toml:"analysis"`
	Enrichment Enrichment `toml:"enrichment"`
	Server     Server     `toml:"server"`
	DB         Database   `toml:"db"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
	Roots    []string      `toml:"roots"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Analysis struct {
	MaxFileSize        int64   `toml:"max_file_size"`
	ComplexityWarn     int     `toml:"complexity_warn"`
	ComplexityCritical int     `toml:"complexity_critical"`
	Weights            Weights `toml:"weights"`
}

// Weights are the per-severity score deductions. Heuristic constants
// kept for behavioral compatibility; configurable, not derived.
type Weights struct {
	Critical int `toml:"critical"`
	High     int `toml:"high"`
	Medium   int `toml:"medium"`
	Low      int `toml:"low"`
}

type Enrichment struct {
	Enabled           bool          `toml:"enabled"`
	Model             string        `toml:"model"`
	Timeout           time.Duration `toml:"timeout"`
	RequestsPerMinute float64       `toml:"requests_per_minute"`
}

type Server struct {
	Addr string `toml:"addr"`
}

type Database struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validateVersion(&cfg); err != nil {
		return nil, err
	}
	if err := validateAnalysis(&cfg); err != nil {
		return nil, err
	}
	if err := validateWatch(&cfg); err != nil {
		return nil, err
	}
	if err := validateServer(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a configuration usable without any config file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 2 * time.Second
	}

	if cfg.Analysis.MaxFileSize <= 0 {
		cfg.Analysis.MaxFileSize = 1 << 20
	}
	if cfg.Analysis.ComplexityWarn == 0 {
		cfg.Analysis.ComplexityWarn = 10
	}
	if cfg.Analysis.ComplexityCritical == 0 {
		cfg.Analysis.ComplexityCritical = 15
	}
	if cfg.Analysis.Weights == (Weights{}) {
		cfg.Analysis.Weights = Weights{Critical: 20, High: 10, Medium: 5, Low: 2}
	}

	if strings.TrimSpace(cfg.Enrichment.Model) == "" {
		cfg.Enrichment.Model = "gpt-4o-mini"
	}
	if cfg.Enrichment.Timeout <= 0 {
		cfg.Enrichment.Timeout = 10 * time.Second
	}
	if cfg.Enrichment.RequestsPerMinute <= 0 {
		cfg.Enrichment.RequestsPerMinute = 6
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = ":8085"
	}

	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = "data/state/history.db"
	}
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d", cfg.Version)
	}
	return nil
}

func validateAnalysis(cfg *Config) error {
	if cfg.Analysis.ComplexityCritical < cfg.Analysis.ComplexityWarn {
		return fmt.Errorf("complexity_critical (%d) must be >= complexity_warn (%d)",
			cfg.Analysis.ComplexityCritical, cfg.Analysis.ComplexityWarn)
	}
	w := cfg.Analysis.Weights
	if w.Critical < 0 || w.High < 0 || w.Medium < 0 || w.Low < 0 {
		return fmt.Errorf("severity weights must not be negative")
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 10*time.Millisecond {
		return fmt.Errorf("watch debounce %s is below the 10ms minimum", cfg.Watch.Debounce)
	}
	for _, root := range cfg.Watch.Roots {
		if strings.TrimSpace(root) == "" {
			return fmt.Errorf("watch roots must not contain empty entries")
		}
	}
	return nil
}

func validateServer(cfg *Config) error {
	if !strings.Contains(cfg.Server.Addr, ":") {
		return fmt.Errorf("server addr %q must contain a port", cfg.Server.Addr)
	}
	return nil
}
