package domain

import "errors"

var (
	ErrNotFound          = errors.New("order_not_found")
	ErrEmptyOrder        = errors.New("empty_order")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrInvalidPrice      = errors.New("invalid_unit_price")
	ErrInvalidChannel    = errors.New("invalid_channel")
	ErrInvalidStatus     = errors.New("invalid_payment_status")
	ErrInvalidTransition = errors.New("invalid_status_transition")
	ErrInvalidReference  = errors.New("invalid_payment_reference")
)
