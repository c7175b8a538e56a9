package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.With(String("component", "sampler")).Info(context.Background(), "pass complete",
		Int("points", 42),
		Float64("step", 0.6),
		Bool("parallel", true),
		Err(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal log line %q: %v", buf.String(), err)
	}
	if rec["msg"] != "pass complete" || rec["component"] != "sampler" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if rec["points"] != float64(42) || rec["step"] != 0.6 || rec["parallel"] != true || rec["error"] != "boom" {
		t.Fatalf("unexpected fields: %v", rec)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("level filtering failed: %q", out)
	}
}

func TestRunIDHelpers(t *testing.T) {
	ctx, id := EnsureRunID(context.Background())
	if id == "" {
		t.Fatalf("EnsureRunID returned empty id")
	}
	if _, again := EnsureRunID(ctx); again != id {
		t.Fatalf("EnsureRunID replaced existing id %q with %q", id, again)
	}

	var buf bytes.Buffer
	ctx, log := WithRunLogger(ContextWithRunID(context.Background(), "abc"), New(Config{Format: "json", Output: &buf}))
	log.Info(ctx, "hello")
	if !strings.Contains(buf.String(), `"run_id":"abc"`) {
		t.Fatalf("run_id missing from %q", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	if _, ok := FromContext(context.Background(), nil).(noopLogger); !ok {
		t.Fatalf("FromContext without logger should fall back to Noop")
	}
	l := New(Config{})
	ctx := ContextWithLogger(context.Background(), l)
	if FromContext(ctx, nil) != l {
		t.Fatalf("FromContext did not return stored logger")
	}
}
