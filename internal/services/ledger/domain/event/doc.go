// Package event defines the immutable event envelope for meeting-derived
// artifacts, the closed set of event types producers may publish, and the
// typed payload shapes for each type.
//
// Events are created once by producers and never mutated. Persistence assigns
// a global sequence and, for events addressed to an aggregate, a contiguous
// per-aggregate version starting at 1; both live on Record rather than Event
// so an Event stays the producer's value.
package event
