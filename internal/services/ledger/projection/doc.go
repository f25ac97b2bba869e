// Package projection applies journal events to the ledger read models.
//
// A static table routes each known event type to one store mutation; unknown
// types are skipped so older readers tolerate newer producers. The same
// Applier serves live bus delivery and full rebuilds, which is what keeps a
// rebuilt projection identical to one built incrementally.
package projection
