package tts

import (
	"errors"
	"fmt"
)

// InvalidInputError rejects a conversion request before any work is
// done, e.g. empty input text.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

// IsInvalidInput checks whether an error is an input validation failure.
func IsInvalidInput(err error) bool {
	var e *InvalidInputError
	return errors.As(err, &e)
}

// ConfigurationError signals a mismatch between the request and the
// engine it was routed to, e.g. a Config naming a different provider.
// It is never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// NewConfigurationError creates a ConfigurationError with a formatted reason.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// IsConfigurationError checks whether an error is a configuration mismatch.
func IsConfigurationError(err error) bool {
	var e *ConfigurationError
	return errors.As(err, &e)
}

// NoSuccessfulChunksError is the terminal failure of a conversion in
// which not a single chunk produced audio.
type NoSuccessfulChunksError struct {
	Total int
}

func (e *NoSuccessfulChunksError) Error() string {
	return fmt.Sprintf("no successful chunks: all %d chunk(s) failed", e.Total)
}

// IsNoSuccessfulChunks checks whether an error is a total conversion failure.
func IsNoSuccessfulChunks(err error) bool {
	var e *NoSuccessfulChunksError
	return errors.As(err, &e)
}
