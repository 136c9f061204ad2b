// Package rawinput captures unbounded relative pointer motion from the
// platform, bypassing cursor acceleration and screen edges.
package rawinput

import "errors"

var (
	// ErrUnsupported is returned when the platform offers no raw capture.
	ErrUnsupported = errors.New("rawinput: raw pointer capture not supported on this platform")
	// ErrNoDevice is returned when no input device is configured.
	ErrNoDevice = errors.New("rawinput: no input device configured")
)

// Event is one batch of motion from the pointer device.
type Event struct {
	DX, DY   int32
	LeftDown bool
	LeftUp   bool
}

// Source delivers raw pointer events while started. emit runs on the
// source's own goroutine and must not block.
type Source interface {
	Start(emit func(Event)) error
	Stop() error
}
