// Command globe samples a world map onto a sphere and exports the markers.
//
//	globe [sample] [flags]     write projected points as JSON
//	globe palette [flags]      write a green-shade color table for a country list
//	globe animate [flags]      run the rotating scene and log frame summaries
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/signalsfoundry/dotted-globe/globe"
	"github.com/signalsfoundry/dotted-globe/internal/app"
	"github.com/signalsfoundry/dotted-globe/internal/config"
	"github.com/signalsfoundry/dotted-globe/internal/logging"
	"github.com/signalsfoundry/dotted-globe/internal/observability"
	"github.com/signalsfoundry/dotted-globe/raster"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "globe: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := "sample"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "sample":
		return runSample(ctx, args, stdout, stderr)
	case "palette":
		return runPalette(ctx, args, stdin, stdout, stderr)
	case "animate":
		return runAnimate(ctx, args, stderr)
	default:
		return fmt.Errorf("unknown command %q (want sample, palette or animate)", cmd)
	}
}

// export is the JSON document written by "globe sample".
type export struct {
	Mode         string            `json:"mode"`
	Step         float64           `json:"step"`
	Radius       float64           `json:"radius"`
	MarkerRadius float64           `json:"marker_radius"`
	Points       []globe.PointJSON `json:"points"`
}

func runSample(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("sample", flag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.String("out", "", "write points here instead of stdout")
	cfg, err := config.Load(fs, args)
	if err != nil {
		return err
	}
	log := newLogger(cfg, stderr)

	shutdown, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	g, err := app.Build(ctx, cfg, log, nil)
	if err != nil {
		return err
	}

	w := stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	info := g.Info()
	doc := export{
		Mode:         info.Mode,
		Step:         info.Step,
		Radius:       info.Radius,
		MarkerRadius: info.MarkerRadius,
		Points:       globe.PointsJSON(g.Scene.Points()),
	}
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		return fmt.Errorf("write points: %w", err)
	}
	log.Info(ctx, "exported points",
		logging.Int("points", len(doc.Points)),
		logging.Int("hidden", g.Stats.Hidden),
		logging.String("out", *out))
	return nil
}

func runPalette(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("palette", flag.ContinueOnError)
	fs.SetOutput(stderr)
	countriesPath := fs.String("countries", "-", "newline-separated country names (- reads stdin)")
	out := fs.String("out", "", "write the CSV here instead of stdout")
	logLevel := fs.String("log-level", "info", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return err
	}
	log := logging.New(logging.Config{Level: *logLevel, Output: stderr})

	in := stdin
	if *countriesPath != "-" {
		f, err := os.Open(*countriesPath)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	countries, err := readLines(in)
	if err != nil {
		return fmt.Errorf("read countries: %w", err)
	}

	table, err := raster.BuildPalette(countries)
	if err != nil {
		return err
	}

	w := stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := table.WriteCSV(w); err != nil {
		return fmt.Errorf("write color table: %w", err)
	}
	log.Info(ctx, "wrote color table", logging.Int("countries", table.Len()), logging.String("out", *out))
	return nil
}

func runAnimate(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("animate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	duration := fs.Duration("duration", 10*time.Second, "animation time to run (0 runs until interrupted)")
	every := fs.Uint64("log-every", 60, "log a summary every N frames")
	cfg, err := config.Load(fs, args)
	if err != nil {
		return err
	}
	log := newLogger(cfg, stderr)

	g, err := app.Build(ctx, cfg, log, nil)
	if err != nil {
		return err
	}

	done := g.Animate(ctx, time.Now().UTC(), *duration, nil, func(frame uint64, t time.Time) {
		if *every == 0 || frame%*every != 0 {
			return
		}
		points, overlay := g.Scene.Counts()
		log.Info(ctx, "frame",
			logging.Any("frame", frame),
			logging.String("time", t.Format(time.RFC3339Nano)),
			logging.Float64("rotation", g.Scene.Rotation()),
			logging.Int("points", points),
			logging.Int("overlay", overlay))
	})
	<-done

	log.Info(ctx, "animation finished",
		logging.Any("frames", g.Scene.Frames()),
		logging.Float64("rotation", g.Scene.Rotation()))
	return nil
}

func newLogger(cfg config.Config, out io.Writer) logging.Logger {
	return logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: out})
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}
