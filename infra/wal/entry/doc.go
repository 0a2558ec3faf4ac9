// Package entry is the command journal: every accepted command is appended
// here, with a strictly increasing sequence number, before it touches a book.
// Replaying the journal on startup rebuilds the engine.
package entry
