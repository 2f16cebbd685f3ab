package jsbridge

import "errors"

var (
	// ErrNilHost is returned by New when no host is given.
	ErrNilHost = errors.New("jsbridge: host is nil")
	// ErrUnsupportedHost is returned by New when the host offers neither a
	// script message channel nor navigation interception.
	ErrUnsupportedHost = errors.New("jsbridge: host has no notification channel")
	// ErrClosed is returned by Call once the bridge is torn down.
	ErrClosed = errors.New("jsbridge: bridge closed")
)
