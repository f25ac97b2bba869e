// Package timeouts defines shared timeout constants used across the ledger.
package timeouts

import "time"

// SQLiteBusy bounds how long a connection waits on a locked database before
// failing with SQLITE_BUSY. Appends serialize on this lock.
const SQLiteBusy = 5 * time.Second

// TelemetryShutdown limits how long span export may block process exit.
const TelemetryShutdown = 5 * time.Second

// Maintenance is the default overall budget for one maintenance run.
const Maintenance = 10 * time.Minute
