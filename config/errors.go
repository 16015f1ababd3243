package config

import "errors"

var (
	// ErrMissingVariable is returned when a required environment variable
	// is unset or empty.
	ErrMissingVariable = errors.New("required environment variable missing")

	// ErrInvalidVariable is returned when an environment variable does
	// not parse as a positive integer.
	ErrInvalidVariable = errors.New("invalid environment variable")
)
