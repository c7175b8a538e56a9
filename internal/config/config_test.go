package config

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/signalsfoundry/dotted-globe/raster"
	"github.com/signalsfoundry/dotted-globe/timectrl"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate(): %v", err)
	}
	if cfg.Step != 0.6 || cfg.Radius != 2.03 || cfg.LandThreshold != 200 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ClassificationMode() != raster.ModeLand || cfg.AnimationMode() != timectrl.RealTime {
		t.Fatalf("unexpected default modes")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"zero step":          func(c *Config) { c.Step = 0 },
		"huge step":          func(c *Config) { c.Step = 200 },
		"negative radius":    func(c *Config) { c.Radius = -1 },
		"unknown mode":       func(c *Config) { c.Mode = "ocean" },
		"country sans table": func(c *Config) { c.Mode = "country" },
		"negative tick":      func(c *Config) { c.Animation.Tick = -time.Second },
		"negative marker":    func(c *Config) { c.MarkerRadius = -0.1 },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: err = %v, want ErrInvalidConfig", name, err)
		}
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "globe.yaml")
	yml := `
image: from-file.png
mode: country
color_table: shades.csv
step: 2
animation:
  tick: 40ms
  accelerated: true
tracing:
  enabled: true
  exporter: otlp
  sample_ratio: 0.5
satellites:
  - name: ISS
    line1: "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990"
    line2: "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("GLOBE_STEP", "3")
	t.Setenv("GLOBE_RADIUS", "5")

	cfg, err := Load(newFlagSet(), []string{"-config", path, "-radius", "7"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ImagePath != "from-file.png" || cfg.ColorTablePath != "shades.csv" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Step != 3 {
		t.Fatalf("Step = %v, want env override 3", cfg.Step)
	}
	if cfg.Radius != 7 {
		t.Fatalf("Radius = %v, want flag override 7", cfg.Radius)
	}
	if cfg.Animation.Tick != 40*time.Millisecond || cfg.AnimationMode() != timectrl.Accelerated {
		t.Fatalf("animation = %+v", cfg.Animation)
	}
	if cfg.ClassificationMode() != raster.ModeCountry {
		t.Fatalf("mode = %q", cfg.Mode)
	}
	if len(cfg.Satellites) != 1 || cfg.Satellites[0].Name != "ISS" {
		t.Fatalf("satellites = %+v", cfg.Satellites)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.Exporter != "otlp" || cfg.Tracing.SampleRatio != 0.5 {
		t.Fatalf("tracing = %+v", cfg.Tracing)
	}
	if cfg.Tracing.ServiceName != "dotted-globe" {
		t.Fatalf("tracing service name = %q, want default", cfg.Tracing.ServiceName)
	}
	// untouched default survives
	if cfg.LandThreshold != raster.DefaultLandThreshold {
		t.Fatalf("LandThreshold = %v", cfg.LandThreshold)
	}
}

func TestLoadInvalidEnv(t *testing.T) {
	t.Setenv("GLOBE_WORKERS", "many")
	if _, err := Load(newFlagSet(), nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadInvalidTracingEnv(t *testing.T) {
	t.Setenv("GLOBE_TRACING_ENABLED", "true")
	t.Setenv("GLOBE_TRACING_EXPORTER", "carrier-pigeon")
	if _, err := Load(newFlagSet(), nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("step: [1, 2"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := Default()
	if err := LoadFile(path, &cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}
