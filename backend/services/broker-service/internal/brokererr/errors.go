// Package brokererr holds the error kinds surfaced by the broker. Every error
// returned across a package boundary wraps exactly one of them.
package brokererr

import "errors"

var (
	// ErrAccessDenied is returned when an admission policy refuses access.
	ErrAccessDenied = errors.New("access denied")
	// ErrConfiguration marks a missing or malformed required setting.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransport marks a failure opening or closing the tunnel connection.
	ErrTransport = errors.New("transport error")
	// ErrPersistence marks a failure writing or reading broker tables.
	ErrPersistence = errors.New("persistence error")
	// ErrUnsupported is returned by extension points with no implementation.
	ErrUnsupported = errors.New("unsupported operation")
)
