// Package service is the only write entry point into the matching engine.
//
// OrderService serializes commands per market, assigns order ids, journals
// each command before it touches a book, records fill events in the outbox
// and publishes top-of-book updates. Transports (gRPC, HTTP) sit on top of
// it; Recover rebuilds its state from the latest snapshot and the journal.
package service
