package app

import (
	"fmt"
	"path/filepath"

	"github.com/louisbranch/meeting.ledger/internal/services/ledger/duplicates"
)

// Config holds ledger storage and runtime settings. Commands load it from
// MEETING_LEDGER_* env before applying flags.
type Config struct {
	EventsDBPath       string  `env:"MEETING_LEDGER_EVENTS_DB_PATH"`
	ProjectionsDBPath  string  `env:"MEETING_LEDGER_PROJECTIONS_DB_PATH"`
	DuplicateThreshold float64 `env:"MEETING_LEDGER_DUPLICATE_THRESHOLD" envDefault:"0.85"`
	HandlerWorkers     int     `env:"MEETING_LEDGER_HANDLER_WORKERS" envDefault:"8"`
	LogLevel           string  `env:"MEETING_LEDGER_LOG_LEVEL" envDefault:"info"`
}

// WithDefaults fills unset paths and tuning values.
func (c Config) WithDefaults() Config {
	if c.EventsDBPath == "" {
		c.EventsDBPath = filepath.Join("data", "ledger-events.db")
	}
	if c.ProjectionsDBPath == "" {
		c.ProjectionsDBPath = filepath.Join("data", "ledger-projections.db")
	}
	if c.DuplicateThreshold == 0 {
		c.DuplicateThreshold = duplicates.DefaultThreshold
	}
	if c.HandlerWorkers <= 0 {
		c.HandlerWorkers = 8
	}
	return c
}

// Validate rejects settings the services cannot run with.
func (c Config) Validate() error {
	if c.DuplicateThreshold < 0 || c.DuplicateThreshold > 1 {
		return fmt.Errorf("duplicate threshold must be within [0, 1], got %v", c.DuplicateThreshold)
	}
	return nil
}
