// Package snapshot persists the resting orders of every market so startup
// can load the latest snapshot and replay only the journal tail after it.
//
// A snapshot is taken while the caller holds every market still, so the
// captured books correspond exactly to journal sequence Seq.
package snapshot
