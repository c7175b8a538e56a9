// Package config assembles the sampler configuration from defaults, an
// optional YAML file, environment variables and command-line flags, in
// that order of precedence (flags win).
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/dotted-globe/globe"
	"github.com/signalsfoundry/dotted-globe/internal/observability"
	"github.com/signalsfoundry/dotted-globe/overlay"
	"github.com/signalsfoundry/dotted-globe/raster"
	"github.com/signalsfoundry/dotted-globe/timectrl"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full runtime configuration.
type Config struct {
	ImagePath      string  `yaml:"image"`
	ColorTablePath string  `yaml:"color_table"`
	Mode           string  `yaml:"mode"` // land | country
	LandThreshold  float64 `yaml:"land_threshold"`
	Step           float64 `yaml:"step"`
	Radius         float64 `yaml:"radius"`
	MarkerRadius   float64 `yaml:"marker_radius"`
	Workers        int     `yaml:"workers"`

	Animation  AnimationConfig             `yaml:"animation"`
	Server     ServerConfig                `yaml:"server"`
	Log        LogConfig                   `yaml:"log"`
	Tracing    observability.TracingConfig `yaml:"tracing"`
	Satellites []overlay.TLE               `yaml:"satellites"`
}

// AnimationConfig controls the rotating scene.
type AnimationConfig struct {
	Tick             time.Duration `yaml:"tick"`
	RotationPerFrame float64       `yaml:"rotation_per_frame"`
	Accelerated      bool          `yaml:"accelerated"`
}

// ServerConfig holds listener addresses for cmd/globe-server. An empty
// address disables that listener.
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr"`
	HTTPAddr string `yaml:"http_addr"`
}

// LogConfig mirrors logging.Config.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		ImagePath:     "world_map.png",
		Mode:          string(raster.ModeLand),
		LandThreshold: raster.DefaultLandThreshold,
		Step:          globe.DefaultStep,
		Radius:        globe.DefaultRadius,
		MarkerRadius:  0.01,
		Workers:       1,
		Animation: AnimationConfig{
			Tick:             timectrl.DefaultTick,
			RotationPerFrame: globe.DefaultRotationPerFrame,
		},
		Server: ServerConfig{
			GRPCAddr: ":50051",
			HTTPAddr: ":9090",
		},
		Log:     LogConfig{Level: "info", Format: "text"},
		Tracing: observability.DefaultTracingConfig(),
	}
}

// LoadFile overlays the YAML file at path onto cfg.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: parse %q: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

// ApplyEnv overlays GLOBE_* and LOG_* environment variables onto cfg.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *float64) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, v, err)
		}
		*dst = f
		return nil
	}

	str("GLOBE_IMAGE", &cfg.ImagePath)
	str("GLOBE_COLOR_TABLE", &cfg.ColorTablePath)
	str("GLOBE_MODE", &cfg.Mode)
	str("GLOBE_GRPC_ADDR", &cfg.Server.GRPCAddr)
	str("GLOBE_HTTP_ADDR", &cfg.Server.HTTPAddr)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	for key, dst := range map[string]*float64{
		"GLOBE_STEP":           &cfg.Step,
		"GLOBE_RADIUS":         &cfg.Radius,
		"GLOBE_LAND_THRESHOLD": &cfg.LandThreshold,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	if v := getenv("GLOBE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: GLOBE_WORKERS=%q: %v", ErrInvalidConfig, v, err)
		}
		cfg.Workers = n
	}
	if err := observability.ApplyTracingEnv(&cfg.Tracing, getenv); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Validate checks ranges and cross-field requirements.
func (c Config) Validate() error {
	var errs []string
	mode, err := raster.ParseMode(c.Mode)
	if err != nil {
		errs = append(errs, err.Error())
	}
	if err := (globe.GridConfig{Step: c.Step}).Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if !(c.Radius > 0) {
		errs = append(errs, fmt.Sprintf("radius must be positive, got %v", c.Radius))
	}
	if c.MarkerRadius < 0 {
		errs = append(errs, fmt.Sprintf("marker_radius must not be negative, got %v", c.MarkerRadius))
	}
	if mode == raster.ModeCountry && strings.TrimSpace(c.ColorTablePath) == "" {
		errs = append(errs, "country mode requires color_table")
	}
	if c.Animation.Tick < 0 {
		errs = append(errs, "animation.tick must not be negative")
	}
	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	for _, s := range c.Satellites {
		if err := s.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// ClassificationMode returns the parsed mode. Call after Validate.
func (c Config) ClassificationMode() raster.Mode {
	m, _ := raster.ParseMode(c.Mode)
	return m
}

// AnimationMode maps the accelerated flag onto a timectrl.Mode.
func (c Config) AnimationMode() timectrl.Mode {
	if c.Animation.Accelerated {
		return timectrl.Accelerated
	}
	return timectrl.RealTime
}

// Load parses args with fs and resolves the final configuration:
// defaults, then the file named by -config, then the environment, then the
// flags that were explicitly set.
func Load(fs *flag.FlagSet, args []string) (Config, error) {
	flags := Default()
	var path string
	fs.StringVar(&path, "config", "", "path to a YAML config file")
	fs.StringVar(&flags.ImagePath, "image", flags.ImagePath, "equirectangular world map (png, jpeg, gif, bmp, tiff, webp)")
	fs.StringVar(&flags.ColorTablePath, "color-table", flags.ColorTablePath, "CSV mapping green channel values to country names")
	fs.StringVar(&flags.Mode, "mode", flags.Mode, "classification mode: land or country")
	fs.Float64Var(&flags.LandThreshold, "land-threshold", flags.LandThreshold, "brightness below which a pixel is land")
	fs.Float64Var(&flags.Step, "step", flags.Step, "grid spacing in degrees, in (0, 180]")
	fs.Float64Var(&flags.Radius, "radius", flags.Radius, "sphere radius markers are placed on")
	fs.IntVar(&flags.Workers, "workers", flags.Workers, "goroutines sampling grid rows")
	fs.DurationVar(&flags.Animation.Tick, "tick", flags.Animation.Tick, "animation frame interval")
	fs.Float64Var(&flags.Animation.RotationPerFrame, "rotation", flags.Animation.RotationPerFrame, "rotation about +Y per frame, radians")
	fs.BoolVar(&flags.Animation.Accelerated, "accelerated", flags.Animation.Accelerated, "emit frames without waiting for wall-clock ticks")
	fs.StringVar(&flags.Server.GRPCAddr, "grpc-addr", flags.Server.GRPCAddr, "gRPC listen address (empty disables)")
	fs.StringVar(&flags.Server.HTTPAddr, "http-addr", flags.Server.HTTPAddr, "HTTP listen address for /points and /metrics (empty disables)")
	fs.StringVar(&flags.Log.Level, "log-level", flags.Log.Level, "debug, info, warn or error")
	fs.StringVar(&flags.Log.Format, "log-format", flags.Log.Format, "text or json")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg, nil); err != nil {
		return Config{}, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "image":
			cfg.ImagePath = flags.ImagePath
		case "color-table":
			cfg.ColorTablePath = flags.ColorTablePath
		case "mode":
			cfg.Mode = flags.Mode
		case "land-threshold":
			cfg.LandThreshold = flags.LandThreshold
		case "step":
			cfg.Step = flags.Step
		case "radius":
			cfg.Radius = flags.Radius
		case "workers":
			cfg.Workers = flags.Workers
		case "tick":
			cfg.Animation.Tick = flags.Animation.Tick
		case "rotation":
			cfg.Animation.RotationPerFrame = flags.Animation.RotationPerFrame
		case "accelerated":
			cfg.Animation.Accelerated = flags.Animation.Accelerated
		case "grpc-addr":
			cfg.Server.GRPCAddr = flags.Server.GRPCAddr
		case "http-addr":
			cfg.Server.HTTPAddr = flags.Server.HTTPAddr
		case "log-level":
			cfg.Log.Level = flags.Log.Level
		case "log-format":
			cfg.Log.Format = flags.Log.Format
		}
	})

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
