package models

import "fmt"

// FailureKind classifies why a source outcome is not OK. It is used for
// logging and diagnostics only and never changes fallback order.
type FailureKind string

const (
	KindNone        FailureKind = ""
	KindFetchFailed FailureKind = "fetch_failed" // transport error or non-2xx status
	KindNotFound    FailureKind = "not_found"    // page fetched, expected markers absent
	KindEmpty       FailureKind = "empty"        // 200 with nothing usable (rate-limit guard)
	KindConfig      FailureKind = "config"       // missing credential or similar
)

// Outcome is the uniform result of one adapter call for one symbol.
// OK=false means the source could not be consulted or parsed this time;
// it never means the underlying value is known to be null.
type Outcome[T any] struct {
	OK        bool        `json:"ok"`
	Value     T           `json:"value,omitempty"`
	Error     string      `json:"error,omitempty"`
	SourceURL string      `json:"sourceUrl,omitempty"`
	Kind      FailureKind `json:"kind,omitempty"`

	// Transient marks failures that happened before an upstream response was
	// received (transport error, cancelled context). Transient outcomes are
	// never written to a cache.
	Transient bool `json:"-"`
}

// Success returns an OK outcome carrying v.
func Success[T any](v T, sourceURL string) Outcome[T] {
	return Outcome[T]{OK: true, Value: v, SourceURL: sourceURL}
}

// Failure returns a non-OK outcome with a formatted error message.
func Failure[T any](kind FailureKind, sourceURL, format string, args ...any) Outcome[T] {
	return Outcome[T]{
		Kind:      kind,
		SourceURL: sourceURL,
		Error:     fmt.Sprintf(format, args...),
	}
}

// TransientFailure returns a non-OK outcome that must not be cached.
func TransientFailure[T any](sourceURL string, err error) Outcome[T] {
	return Outcome[T]{
		Kind:      KindFetchFailed,
		SourceURL: sourceURL,
		Error:     err.Error(),
		Transient: true,
	}
}

// Cacheable reports whether the outcome may be memoized.
func (o Outcome[T]) Cacheable() bool {
	return !o.Transient
}

// ProfileOutcome is the outcome of a profile-style adapter.
type ProfileOutcome = Outcome[Fields]
