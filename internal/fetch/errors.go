package fetch

import (
	"fmt"
)

// Kind classifies why a fetch failed.
type Kind string

const (
	// KindTooLarge means the source exceeded the configured byte cap.
	KindTooLarge Kind = "too_large"

	// KindTimeout means the fetch did not finish within the deadline.
	KindTimeout Kind = "timeout"

	// KindUpstreamStatus means the source answered with a non-2xx status.
	KindUpstreamStatus Kind = "upstream_status"

	// KindNetwork covers DNS, connection, TLS and malformed URL failures.
	KindNetwork Kind = "network"
)

// Error is returned by Fetch for every failure.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Kind == KindUpstreamStatus:
		return fmt.Sprintf("upstream returned status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}
