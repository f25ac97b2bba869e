package cmd

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"strings"
	"testing"
)

type testConfig struct {
	EventsPath string `env:"CMD_TEST_EVENTS_PATH" envDefault:"data/events.db"`
	Mode       string `env:"CMD_TEST_MODE" envDefault:"rebuild"`
}

func TestParseConfigFromArgsReadsEnvThenFlags(t *testing.T) {
	t.Setenv("CMD_TEST_EVENTS_PATH", "env/events.db")
	t.Setenv("CMD_TEST_MODE", "env-mode")

	cfg := testConfig{}
	fs := flag.NewFlagSet("configargs", flag.ContinueOnError)
	fs.StringVar(&cfg.EventsPath, "events-db-path", "", "events path")
	fs.StringVar(&cfg.Mode, "mode", "", "mode")
	if err := ParseConfigFromArgs(&cfg, fs, []string{"-events-db-path", "flag/events.db"}); err != nil {
		t.Fatalf("parse config and args: %v", err)
	}
	if cfg.EventsPath != "flag/events.db" {
		t.Fatalf("expected flag events path, got %q", cfg.EventsPath)
	}
	if cfg.Mode != "env-mode" {
		t.Fatalf("expected env mode, got %q", cfg.Mode)
	}
}

func TestParseConfigRejectsNilTarget(t *testing.T) {
	var cfg *testConfig
	if err := ParseConfig(cfg); err == nil {
		t.Fatal("expected nil target error")
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, []string{}); err == nil {
		t.Fatal("expected parse args to reject nil parser")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn", true)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("expected JSON warn line, got %s", out)
	}

	if _, err := NewLogger(&buf, "loud", false); err == nil {
		t.Fatal("expected unknown level error")
	}
}

func TestRunWithTelemetry(t *testing.T) {
	t.Setenv("MEETING_LEDGER_OTEL_ENDPOINT", "")

	if err := RunWithTelemetry(context.Background(), "", nil, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(context.Background(), ServiceMaintenance, nil, nil); err == nil {
		t.Fatal("expected missing run function error")
	}

	want := errors.New("boom")
	err := RunWithTelemetry(context.Background(), ServiceMaintenance, nil, func(context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("expected run error to propagate, got %v", err)
	}
}
