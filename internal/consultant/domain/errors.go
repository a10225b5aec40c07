package domain

import "errors"

var (
	ErrNotFound       = errors.New("consultant_not_found")
	ErrInvalidCode    = errors.New("invalid_consultant_code")
	ErrInvalidName    = errors.New("invalid_consultant_name")
	ErrInvalidStatus  = errors.New("invalid_consultant_status")
	ErrInvalidPercent = errors.New("invalid_commission_percentage")
)
