package mist

import "fmt"

// FailureKind classifies why a Mist API call failed.
type FailureKind int

const (
	// TransportFailure covers connection, TLS and timeout errors.
	TransportFailure FailureKind = iota
	// StatusFailure is a non-2xx response.
	StatusFailure
	// DecodeFailure is a body that is not JSON or not the expected shape.
	DecodeFailure
)

func (k FailureKind) String() string {
	switch k {
	case TransportFailure:
		return "transport"
	case StatusFailure:
		return "status"
	case DecodeFailure:
		return "decode"
	}
	return "unknown"
}

// FetchError is returned by every Client call that did not yield usable records.
type FetchError struct {
	Kind FailureKind
	URL  string
	// Code is the HTTP status, zero for transport failures.
	Code int
	Err  error
}

func (e *FetchError) Error() string {
	switch {
	case e.Kind == StatusFailure:
		return fmt.Sprintf("GET %s: unexpected HTTP status %d", e.URL, e.Code)
	case e.Err != nil:
		return fmt.Sprintf("GET %s: %s error: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("GET %s: %s error", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
