package config

import (
	"log/slog"
	"strings"
	"testing"
)

type envTestConfig struct {
	Workers int `env:"MEETING_LEDGER_TEST_WORKERS" envDefault:"8"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Workers != 8 {
		t.Fatalf("expected default workers 8, got %d", cfg.Workers)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("MEETING_LEDGER_TEST_WORKERS", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		raw     string
		want    slog.Level
		wantErr bool
	}{
		{raw: "", want: slog.LevelInfo},
		{raw: "DEBUG", want: slog.LevelDebug},
		{raw: " warn ", want: slog.LevelWarn},
		{raw: "error", want: slog.LevelError},
		{raw: "verbose", want: slog.LevelInfo, wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseLogLevel(tc.raw)
		if tc.wantErr != (err != nil) {
			t.Fatalf("ParseLogLevel(%q) err = %v, wantErr %v", tc.raw, err, tc.wantErr)
		}
		if got != tc.want {
			t.Fatalf("ParseLogLevel(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
