// Package sqlite implements the ledger storage interfaces on SQLite.
//
// Two database files are used: an append-only event journal and a projections
// database holding the meeting, RAID item, and transcript read models together
// with their FTS5 indexes and the duplicate-rejection table. The projections
// database can be deleted and rebuilt from the journal at any time, except for
// transcripts and rejections which are not event-derived.
package sqlite
