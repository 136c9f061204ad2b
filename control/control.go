// Package control defines the contracts between the input pipeline and its
// borrowed collaborators: the device transport that forwards input intent to
// the controlled device, and the rendering surface that shows its video.
package control

import "github.com/mirrorctl/relook/geom"

// SyntheticGlobal is the global position carried by synthesized pointer
// moves, so downstream consumers can tell them apart from real events.
var SyntheticGlobal = geom.PointF{X: -1000000, Y: -1000000}

// EventType identifies a pointer event.
type EventType uint8

const (
	MouseMove EventType = iota
	MousePress
	MouseRelease
	MouseDoubleClick
)

func (t EventType) String() string {
	switch t {
	case MouseMove:
		return "move"
	case MousePress:
		return "press"
	case MouseRelease:
		return "release"
	case MouseDoubleClick:
		return "double-click"
	default:
		return "unknown"
	}
}

// Button is a single pointer button.
type Button uint8

const (
	NoButton Button = 0
	Left     Button = 1 << 0
	Right    Button = 1 << 1
	Middle   Button = 1 << 2
)

// MouseEvent is a pointer event in video-surface local coordinates.
type MouseEvent struct {
	Type   EventType
	Local  geom.PointF
	Global geom.PointF
	// Button that changed state (press/release), NoButton for moves.
	Button Button
	// Buttons held after the event.
	Buttons Button
}

// Synthetic reports whether the event was produced by the relative-look
// dispatcher rather than by a real pointer.
func (e MouseEvent) Synthetic() bool { return e.Global == SyntheticGlobal }

// WheelEvent is a scroll event; deltas are in wheel notches (positive is
// away from the user / to the right).
type WheelEvent struct {
	Local  geom.PointF
	Global geom.PointF
	DeltaX float64
	DeltaY float64
}

// KeyEvent is an Android keycode press or release.
type KeyEvent struct {
	Code      uint32
	Pressed   bool
	Repeat    uint32
	MetaState uint32
}

// Device is the transport handle of the controlled device. All event
// methods receive the frame size and show size the position is relative to.
type Device interface {
	Serial() string
	MouseEvent(ev MouseEvent, frameSize, showSize geom.Size)
	WheelEvent(ev WheelEvent, frameSize, showSize geom.Size)
	KeyEvent(ev KeyEvent, frameSize, showSize geom.Size)
	// IsCurrentCustomKeymap reports whether the custom key-mapping mode is
	// active on the device.
	IsCurrentCustomKeymap() bool
	PostGoHome()
	PostGoBack()
}

// LookReleaser is implemented by devices that hold state for synthetic
// moves. ReleaseLook is called when relative look is disarmed.
type LookReleaser interface {
	ReleaseLook()
}

// Surface is the rendering collaborator that shows the decoded video.
type Surface interface {
	// FrameSize is the decoded stream frame size.
	FrameSize() geom.Size
	// Size is the current on-screen rendering size.
	Size() geom.Size
	// Geometry is the surface rectangle inside the window.
	Geometry() geom.Rect
}

// FrameSizer is implemented by surfaces that follow the frame size chosen by
// the session, for example after a rotation.
type FrameSizer interface {
	SetFrameSize(geom.Size)
}

// CursorCenterer is implemented by surfaces that can move the local cursor
// over themselves.
type CursorCenterer interface {
	CenterCursor()
}
