package orderbook

import "errors"

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrInvalidSize      = errors.New("invalid size")
	ErrInvalidSide      = errors.New("invalid side")
	ErrPriceOutOfScale  = errors.New("price out of scale")
	ErrDuplicateOrder   = errors.New("duplicate order id")
	ErrInvalidOrderType = errors.New("invalid order type")
	// ErrCrossedInsert is returned by AddOrderAt when resting the order would
	// leave the best bid at or above the best ask.
	ErrCrossedInsert = errors.New("insert would cross the book")
)
