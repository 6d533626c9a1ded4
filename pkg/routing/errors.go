package routing

import (
	"errors"
	"fmt"
	"strings"
)

// Common routing errors that can be checked with errors.Is().
var (
	// ErrNoProvidersAvailable is returned by Select when no provider is
	// active, has a closed circuit and spare rate-limit capacity.
	ErrNoProvidersAvailable = errors.New("no providers available")

	// ErrInvalidStrategy is returned when an unknown strategy is requested.
	ErrInvalidStrategy = errors.New("invalid optimization strategy")

	// ErrInvalidRequest is returned for malformed selection inputs or
	// outcomes.
	ErrInvalidRequest = errors.New("invalid routing request")

	// ErrNotFound is returned when an outcome or query names an unknown
	// provider.
	ErrNotFound = errors.New("provider not found")
)

// NoProvidersAvailableError is returned when the candidate set of a
// selection is empty.
type NoProvidersAvailableError struct {
	// ContentType is the requested content type.
	ContentType string

	// Considered lists the providers that were checked.
	Considered []string
}

// Error implements the error interface.
func (e *NoProvidersAvailableError) Error() string {
	if len(e.Considered) == 0 {
		return fmt.Sprintf("no providers available for content type %q", e.ContentType)
	}
	return fmt.Sprintf("no providers available for content type %q (considered: %s)",
		e.ContentType, strings.Join(e.Considered, ", "))
}

// Is implements error matching for errors.Is().
func (e *NoProvidersAvailableError) Is(target error) bool {
	return target == ErrNoProvidersAvailable
}

// InvalidStrategyError is returned when a strategy name is not recognized.
type InvalidStrategyError struct {
	Strategy string
	Valid    []string
}

// Error implements the error interface.
func (e *InvalidStrategyError) Error() string {
	return fmt.Sprintf("invalid optimization strategy %q (valid strategies: %s)",
		e.Strategy, strings.Join(e.Valid, ", "))
}

// Is implements error matching for errors.Is().
func (e *InvalidStrategyError) Is(target error) bool {
	return target == ErrInvalidStrategy
}
