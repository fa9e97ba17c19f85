package core

import "errors"

var (
	ErrDrawingNotFound  = errors.New("drawing not found")
	ErrInvalidInterval  = errors.New("invalid interval")
	ErrInvalidSymbol    = errors.New("invalid symbol")
	ErrInsufficientData = errors.New("insufficient data")
)
