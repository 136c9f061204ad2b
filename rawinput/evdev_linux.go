//go:build linux

package rawinput

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// eviocgrab is _IOW('E', 0x90, int).
const eviocgrab = 0x40044590

// Evdev reads a Linux evdev node with exclusive capture, so the local cursor
// stops moving while relative look is active.
type Evdev struct {
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	file *os.File
	wg   sync.WaitGroup
}

// New returns the evdev source for path (for example
// /dev/input/by-id/usb-...-event-mouse).
func New(path string, logger *slog.Logger) Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evdev{path: path, logger: logger}
}

// Start opens and grabs the device. A refused grab is returned as an error
// and the device is closed again.
func (e *Evdev) Start(emit func(Event)) error {
	if e.path == "" {
		return ErrNoDevice
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.file != nil {
		return nil
	}

	f, err := os.OpenFile(e.path, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("rawinput: open %s: %w", e.path, err)
	}
	if err := grab(f, true); err != nil {
		_ = f.Close()
		return fmt.Errorf("rawinput: grab %s: %w", e.path, err)
	}

	var timeval unix.Timeval
	parser, err := NewParser(int(unsafe.Sizeof(timeval)) + 8)
	if err != nil {
		_ = grab(f, false)
		_ = f.Close()
		return err
	}

	e.file = f
	e.wg.Add(1)
	go e.read(f, parser, emit)
	e.logger.Info("raw pointer capture started", "device", e.path)
	return nil
}

// Stop releases the grab and closes the device.
func (e *Evdev) Stop() error {
	e.mu.Lock()
	f := e.file
	e.file = nil
	e.mu.Unlock()
	if f == nil {
		return nil
	}
	_ = grab(f, false)
	err := f.Close()
	e.wg.Wait()
	e.logger.Info("raw pointer capture stopped", "device", e.path)
	return err
}

func (e *Evdev) read(f *os.File, p *Parser, emit func(Event)) {
	defer e.wg.Done()
	buf := make([]byte, p.RecordSize()*64)
	for {
		n, err := f.Read(buf)
		if err != nil {
			if !errors.Is(err, os.ErrClosed) {
				e.logger.Warn("raw pointer read failed", "device", e.path, "error", err)
			}
			return
		}
		p.Feed(buf[:n], emit)
	}
}

// grab goes through SyscallConn so the descriptor stays non-blocking and
// Close can interrupt the reader.
func grab(f *os.File, on bool) error {
	rc, err := f.SyscallConn()
	if err != nil {
		return err
	}
	value := 0
	if on {
		value = 1
	}
	var ioctlErr error
	if err := rc.Control(func(fd uintptr) {
		ioctlErr = unix.IoctlSetInt(int(fd), eviocgrab, value)
	}); err != nil {
		return err
	}
	return ioctlErr
}
