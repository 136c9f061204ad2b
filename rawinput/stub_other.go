//go:build !linux

package rawinput

import "log/slog"

// unsupported is the source on platforms without evdev.
type unsupported struct{}

// New returns a source whose Start always fails with ErrUnsupported.
func New(path string, logger *slog.Logger) Source {
	return unsupported{}
}

func (unsupported) Start(func(Event)) error { return ErrUnsupported }

func (unsupported) Stop() error { return nil }
