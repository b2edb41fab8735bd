package match

import "errors"

var (
	ErrInvalidParam   = errors.New("the param is invalid")
	ErrTimeout        = errors.New("timeout")
	ErrShutdown       = errors.New("order book is shutting down")
	ErrNotFound       = errors.New("not found")
	ErrDuplicateOrder = errors.New("order is already registered")
	ErrTradeGap       = errors.New("trade id gap detected")
	ErrTradeIDReused  = errors.New("trade id is not after the last recorded trade")
)
