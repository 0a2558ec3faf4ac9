// Package orderbook implements the in-memory limit order book for a single
// instrument: fixed-point prices, FIFO price levels kept in one red-black
// tree per side, and the two matching algorithms (market sweep and limit
// cross-and-rest) under price/time priority.
//
// The book is single-writer and performs no locking or I/O; hosts serialize
// mutations per book.
package orderbook
