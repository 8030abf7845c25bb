package platform

import "fmt"

// RemoteError is a non-2xx response from the controller. The remote
// status and body are surfaced verbatim rather than swallowed.
type RemoteError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, truncate(e.Body, 200))
}

// TransportError is a request that failed before any response arrived,
// after the applicable retry policy was exhausted.
type TransportError struct {
	Method   string
	Path     string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: transport failure after %d attempt(s): %v", e.Method, e.Path, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NotFoundError: a get that matched zero records.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s matched the given criteria", e.Resource)
}

// MultipleResultsError: a get that expected exactly one record.
type MultipleResultsError struct {
	Resource string
	Count    int
}

func (e *MultipleResultsError) Error() string {
	return fmt.Sprintf("expected one %s, got %d; tighten your criteria or use list", e.Resource, e.Count)
}

// PaginationError: the pagination chain looped or exceeded the page cap.
type PaginationError struct {
	Link   string
	Pages  int
	Reason string
}

func (e *PaginationError) Error() string {
	return fmt.Sprintf("pagination aborted after %d page(s) at %q: %s", e.Pages, e.Link, e.Reason)
}
