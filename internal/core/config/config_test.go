package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vigil.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `version = 1`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Watch.Debounce != 2*time.Second {
		t.Fatalf("expected 2s debounce default, got %s", cfg.Watch.Debounce)
	}
	if cfg.Analysis.MaxFileSize != 1<<20 {
		t.Fatalf("expected 1MiB size limit, got %d", cfg.Analysis.MaxFileSize)
	}
	if cfg.Analysis.Weights != (Weights{Critical: 20, High: 10, Medium: 5, Low: 2}) {
		t.Fatalf("unexpected default weights %#v", cfg.Analysis.Weights)
	}
	if cfg.Analysis.ComplexityWarn != 10 || cfg.Analysis.ComplexityCritical != 15 {
		t.Fatalf("unexpected complexity defaults %d/%d", cfg.Analysis.ComplexityWarn, cfg.Analysis.ComplexityCritical)
	}
	if cfg.Server.Addr != ":8085" {
		t.Fatalf("expected default addr, got %q", cfg.Server.Addr)
	}
	if cfg.Enrichment.Enabled {
		t.Fatal("enrichment must be opt-in")
	}
}

func TestLoad_FullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
version = 1

[watch]
debounce = "500ms"
roots = ["/srv/app", "/srv/lib"]

[exclude]
dirs = ["generated"]
files = ["*.snap"]

[analysis]
max_file_size = 2048
complexity_warn = 8
complexity_critical = 12

[analysis.weights]
critical = 25
high = 12
medium = 6
low = 3

[server]
addr = "127.0.0.1:9090"

[db]
enabled = true
path = "/tmp/history.db"
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Fatalf("expected 500ms debounce, got %s", cfg.Watch.Debounce)
	}
	if len(cfg.Watch.Roots) != 2 || cfg.Watch.Roots[0] != "/srv/app" {
		t.Fatalf("unexpected roots %v", cfg.Watch.Roots)
	}
	if cfg.Analysis.Weights.Critical != 25 || cfg.Analysis.Weights.Low != 3 {
		t.Fatalf("unexpected weights %#v", cfg.Analysis.Weights)
	}
	if !cfg.DB.Enabled || cfg.DB.Path != "/tmp/history.db" {
		t.Fatalf("unexpected db config %#v", cfg.DB)
	}
}

func TestLoad_RejectsUnknownVersion(t *testing.T) {
	if _, err := Load(writeConfig(t, `version = 7`)); err == nil {
		t.Fatal("expected version error")
	}
}

func TestLoad_RejectsInvertedComplexityThresholds(t *testing.T) {
	_, err := Load(writeConfig(t, `
version = 1
[analysis]
complexity_warn = 20
complexity_critical = 12
`))
	if err == nil {
		t.Fatal("expected threshold validation error")
	}
}

func TestLoad_RejectsNegativeWeights(t *testing.T) {
	_, err := Load(writeConfig(t, `
version = 1
[analysis.weights]
critical = -5
high = 10
medium = 5
low = 2
`))
	if err == nil {
		t.Fatal("expected weight validation error")
	}
}

func TestLoad_RejectsTinyDebounce(t *testing.T) {
	_, err := Load(writeConfig(t, `
version = 1
[watch]
debounce = "1ms"
`))
	if err == nil {
		t.Fatal("expected debounce validation error")
	}
}

func TestLoad_RejectsEmptyRoot(t *testing.T) {
	_, err := Load(writeConfig(t, `
version = 1
[watch]
roots = ["/srv/app", " "]
`))
	if err == nil {
		t.Fatal("expected empty root validation error")
	}
}

func TestLoad_RejectsAddrWithoutPort(t *testing.T) {
	_, err := Load(writeConfig(t, `
version = 1
[server]
addr = "localhost"
`))
	if err == nil {
		t.Fatal("expected addr validation error")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := validateVersion(cfg); err != nil {
		t.Fatal(err)
	}
	if err := validateAnalysis(cfg); err != nil {
		t.Fatal(err)
	}
	if err := validateWatch(cfg); err != nil {
		t.Fatal(err)
	}
	if err := validateServer(cfg); err != nil {
		t.Fatal(err)
	}
}
