// Package storage defines persistence interfaces for the meeting ledger.
//
// It covers the append-only event journal, the meeting, RAID item, and
// transcript projections, the full-text search indexes over them, and the
// duplicate-rejection memory. Implementations (e.g., SQLite) live in
// subpackages.
//
// Common error types:
//   - ErrNotFound: requested record is missing
package storage
