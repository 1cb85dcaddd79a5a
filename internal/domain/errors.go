package domain

import "fmt"

// FetchError wraps an adapter failure. It is contained at the coordinator
// boundary and reported in the cycle report, never raised to digest requests.
type FetchError struct {
	SourceID string
	Cause    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.SourceID, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// UnknownViewError reports a digest request for a view that does not exist.
type UnknownViewError struct {
	Name string
}

func (e *UnknownViewError) Error() string {
	return fmt.Sprintf("unknown digest view %q", e.Name)
}

// StoreCorruptionError flags an invariant violation inside the window store.
// It is surfaced loudly, never silently repaired.
type StoreCorruptionError struct {
	Fingerprint string
	Reason      string
}

func (e *StoreCorruptionError) Error() string {
	return fmt.Sprintf("window store corruption (%s): %s", e.Fingerprint, e.Reason)
}
