package domain

import "errors"

var (
	ErrNotFound          = errors.New("commission_not_found")
	ErrInvalidTransition = errors.New("invalid_commission_transition")
	ErrInvalidStatus     = errors.New("invalid_commission_status")
	ErrInvalidPeriod     = errors.New("invalid_reference_period")
)
