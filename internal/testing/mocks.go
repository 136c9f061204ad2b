package testing

import (
	"context"
	"sync"
	"testing"

	"github.com/mirrorctl/relook/control"
	"github.com/mirrorctl/relook/geom"
	"github.com/mirrorctl/relook/orientation"
	"github.com/mirrorctl/relook/rawinput"
)

// MouseCall is one recorded MouseEvent call.
type MouseCall struct {
	Event     control.MouseEvent
	FrameSize geom.Size
	ShowSize  geom.Size
}

// MockDevice records every event forwarded to it.
type MockDevice struct {
	mu           sync.Mutex
	serial       string
	customKeymap bool

	Mouse []MouseCall
	Wheel []control.WheelEvent
	Keys  []control.KeyEvent
	Home  int
	Back  int
}

func CreateMockDevice(t *testing.T, serial string) *MockDevice {
	t.Helper()
	return &MockDevice{serial: serial}
}

func (m *MockDevice) Serial() string { return m.serial }

func (m *MockDevice) SetCustomKeymap(on bool) {
	m.mu.Lock()
	m.customKeymap = on
	m.mu.Unlock()
}

func (m *MockDevice) IsCurrentCustomKeymap() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.customKeymap
}

func (m *MockDevice) MouseEvent(ev control.MouseEvent, frameSize, showSize geom.Size) {
	m.mu.Lock()
	m.Mouse = append(m.Mouse, MouseCall{Event: ev, FrameSize: frameSize, ShowSize: showSize})
	m.mu.Unlock()
}

func (m *MockDevice) WheelEvent(ev control.WheelEvent, _, _ geom.Size) {
	m.mu.Lock()
	m.Wheel = append(m.Wheel, ev)
	m.mu.Unlock()
}

func (m *MockDevice) KeyEvent(ev control.KeyEvent, _, _ geom.Size) {
	m.mu.Lock()
	m.Keys = append(m.Keys, ev)
	m.mu.Unlock()
}

func (m *MockDevice) PostGoHome() {
	m.mu.Lock()
	m.Home++
	m.mu.Unlock()
}

func (m *MockDevice) PostGoBack() {
	m.mu.Lock()
	m.Back++
	m.mu.Unlock()
}

// MouseCalls returns a copy of the recorded pointer events.
func (m *MockDevice) MouseCalls() []MouseCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MouseCall(nil), m.Mouse...)
}

// Counts returns how many home and back requests were posted.
func (m *MockDevice) Counts() (home, back int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Home, m.Back
}

// MockSurface is a fixed-geometry rendering surface.
type MockSurface struct {
	mu       sync.Mutex
	frame    geom.Size
	geometry geom.Rect
	centered int
}

func CreateMockSurface(t *testing.T, frame geom.Size, geometry geom.Rect) *MockSurface {
	t.Helper()
	return &MockSurface{frame: frame, geometry: geometry}
}

func (s *MockSurface) FrameSize() geom.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

func (s *MockSurface) SetFrameSize(size geom.Size) {
	s.mu.Lock()
	s.frame = size
	s.mu.Unlock()
}

func (s *MockSurface) Size() geom.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.geometry.Size()
}

func (s *MockSurface) Geometry() geom.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.geometry
}

func (s *MockSurface) CenterCursor() {
	s.mu.Lock()
	s.centered++
	s.mu.Unlock()
}

// Centered returns how often the cursor was recentred.
func (s *MockSurface) Centered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.centered
}

// MockSource is a raw pointer source driven by the test.
type MockSource struct {
	mu       sync.Mutex
	startErr error
	emit     func(rawinput.Event)
	starts   int
	stops    int
}

func CreateMockSource(t *testing.T, startErr error) *MockSource {
	t.Helper()
	return &MockSource{startErr: startErr}
}

func (s *MockSource) Start(emit func(rawinput.Event)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	if s.startErr != nil {
		return s.startErr
	}
	s.emit = emit
	return nil
}

func (s *MockSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	s.emit = nil
	return nil
}

// Emit delivers ev as if it came from the platform. It is dropped while the
// source is stopped.
func (s *MockSource) Emit(ev rawinput.Event) {
	s.mu.Lock()
	emit := s.emit
	s.mu.Unlock()
	if emit != nil {
		emit(ev)
	}
}

// Active reports whether the source is started.
func (s *MockSource) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emit != nil
}

// Calls returns how often Start and Stop were called.
func (s *MockSource) Calls() (starts, stops int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts, s.stops
}

// MockProber blocks every probe until the test answers it with Reply.
type MockProber struct {
	requests chan string
	replies  chan orientation.Result

	mu        sync.Mutex
	cancelled int
}

func CreateMockProber(t *testing.T) *MockProber {
	t.Helper()
	return &MockProber{
		requests: make(chan string, 16),
		replies:  make(chan orientation.Result),
	}
}

func (p *MockProber) Probe(ctx context.Context, serial string) orientation.Result {
	p.requests <- serial
	select {
	case r := <-p.replies:
		return r
	case <-ctx.Done():
		p.mu.Lock()
		p.cancelled++
		p.mu.Unlock()
		return orientation.Result{ExitCode: -1, Err: ctx.Err()}
	}
}

// Requests delivers the serial of every probe started.
func (p *MockProber) Requests() <-chan string { return p.requests }

// Reply completes the outstanding probe.
func (p *MockProber) Reply(r orientation.Result) { p.replies <- r }

// Cancelled returns how many probes were terminated before replying.
func (p *MockProber) Cancelled() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelled
}
