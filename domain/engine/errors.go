package engine

import "errors"

var (
	ErrMarketNotFound      = errors.New("market not found")
	ErrMarketAlreadyExists = errors.New("market already exists")
	ErrInvalidPair         = errors.New("invalid trading pair")
)
