package monitor

import (
	"errors"
	"fmt"
)

// ErrProbeFailure matches every error produced by a failed liveness probe.
var ErrProbeFailure = errors.New("provider probe failed")

// ProbeError is returned by probers when a provider fails its liveness probe.
type ProbeError struct {
	// ProviderID is the provider that failed.
	ProviderID string

	// StatusCode is the HTTP status returned by the probe, when there was one.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("probe of provider %q failed with status %d", e.ProviderID, e.StatusCode)
	}
	return fmt.Sprintf("probe of provider %q failed: %v", e.ProviderID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ProbeError) Unwrap() error {
	return e.Err
}

// Is implements error matching for errors.Is().
func (e *ProbeError) Is(target error) bool {
	return target == ErrProbeFailure
}
