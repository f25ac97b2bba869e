// Package app composes the ledger services.
//
// It opens the event and projection stores, wires the bus to the projection
// builder, and hands the same stores to search, duplicate detection, and the
// open item view.
package app
