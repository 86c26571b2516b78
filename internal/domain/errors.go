package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks text or metrics the engine cannot score.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDivisionByZero marks a dimension whose denominator is zero.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrUndefinedAggregate is returned when there is nothing to average.
	ErrUndefinedAggregate = errors.New("undefined aggregate")
	ErrRecordNotFound     = errors.New("record not found")
	// ErrUpstreamFailure wraps LLM and knowledge-base call failures.
	ErrUpstreamFailure = errors.New("upstream service failure")
)

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// InvalidInput builds an error matching ErrInvalidInput.
func InvalidInput(format string, args ...any) error {
	return invalidInput(format, args...)
}
