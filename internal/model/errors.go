package model

import "errors"

// Error taxonomy. Callers wrap these with context and match with errors.Is.
var (
	ErrConfigMissing = errors.New("config file not found")
	ErrConfigInvalid = errors.New("invalid config")

	ErrServiceUnavailable = errors.New("service unavailable")
	ErrMalformedResponse  = errors.New("malformed response")

	ErrInvalidDateArgument = errors.New("invalid date argument")
	ErrTicketNotFound      = errors.New("ticket not found")
)
