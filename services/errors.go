package services

import (
	"errors"
	"fmt"
)

type LoadErrorKind string

const (
	LoadNetwork         LoadErrorKind = "network"
	LoadParse           LoadErrorKind = "parse"
	LoadUnsupportedKind LoadErrorKind = "unsupported-kind"
)

// LoadError reports a failure turning raw input into documents.
type LoadError struct {
	Kind  LoadErrorKind
	Input string // short summary of the payload, never the full body
	Err   error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("load %s (%s)", e.Kind, e.Input)
	}
	return fmt.Sprintf("load %s (%s): %v", e.Kind, e.Input, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

type IndexErrorKind string

const (
	IndexEmpty         IndexErrorKind = "empty"
	IndexRebuildFailed IndexErrorKind = "rebuild-failed"
)

// IndexError reports a failure building or querying a vector index.
type IndexError struct {
	Kind       IndexErrorKind
	Collection string
	Err        error
}

func (e *IndexError) Error() string {
	msg := fmt.Sprintf("index %s", e.Kind)
	if e.Collection != "" {
		msg += " [" + e.Collection + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IndexError) Unwrap() error { return e.Err }

type BackendErrorKind string

const (
	BackendNetwork           BackendErrorKind = "network"
	BackendMalformedResponse BackendErrorKind = "malformed-response"
	BackendEmptyCompletion   BackendErrorKind = "empty-completion"
)

// BackendError reports a failed completion call. The synthesizer converts it
// into the fallback answer; it never reaches the caller of Answer.
type BackendError struct {
	Kind    BackendErrorKind
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s backend: %s", e.Backend, e.Kind)
	}
	return fmt.Sprintf("%s backend: %s: %v", e.Backend, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// IsEmptyIndex reports whether err is an IndexError of kind empty.
func IsEmptyIndex(err error) bool {
	var ie *IndexError
	return errors.As(err, &ie) && ie.Kind == IndexEmpty
}

func errEmptyIndex(collection string) error {
	return &IndexError{Kind: IndexEmpty, Collection: collection}
}

// summarize trims payloads for log lines and error context.
func summarize(s string) string {
	const limit = 80
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
