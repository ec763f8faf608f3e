// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

// Package kernelerr classifies errors by Kind so that a caller can tell
// failures apart without string-matching error messages. The wire codec
// tags its frame errors with Protocol.
package kernelerr

import "errors"

// Kind classifies why a handler failed.
type Kind int

const (
	// Internal covers bugs and unexpected conditions. Zero value so an
	// un-annotated error defaults to the most conservative classification.
	Internal Kind = iota
	Protocol
	Parse
	Permission
	NotFound
	Conflict
	Resource
	Timeout
)

func (k Kind) String() string {
	switch k {
	case Protocol:
		return "protocol"
	case Parse:
		return "parse"
	case Permission:
		return "permission"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Resource:
		return "resource"
	case Timeout:
		return "timeout"
	default:
		return "internal"
	}
}

// kindError pairs an error with its Kind for classification by errors.As.
type kindError struct {
	kind Kind
	err error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// New wraps err with the given Kind. Recover it with KindOf.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

// KindOf returns the classified Kind of err, or Internal if err was never
// classified with New.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return Internal
}
