package transport

import (
	"encoding"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/mirrorctl/relook/control"
	"github.com/mirrorctl/relook/geom"
	"github.com/mirrorctl/relook/internal/log"
)

// Pointer ids used on the device.
const (
	MousePointerID uint64 = 0xFFFFFFFFFFFFFFFF
	LookPointerID  uint64 = 0xFFFFFFFFFFFFFFFD
)

// Device implements control.Device by writing control messages to w.
//
// Synthetic moves drive a dedicated look pointer: it touches down at the
// frame centre, follows the virtual cursor and re-centres when it would
// leave the frame.
type Device struct {
	serial string
	w      io.Writer
	logger *slog.Logger
	raw    log.RawLogger

	customKeymap atomic.Bool

	mu         sync.Mutex
	buttons    uint32
	lookActive bool
	lookPos    geom.PointF
	lookCursor geom.PointF
	lookFrame  geom.Size
}

var _ control.Device = (*Device)(nil)
var _ control.LookReleaser = (*Device)(nil)

// NewDevice creates a device writing to w.
func NewDevice(serial string, w io.Writer, logger *slog.Logger, raw log.RawLogger) *Device {
	if logger == nil {
		logger = slog.Default()
	}
	if raw == nil {
		raw = log.NewRaw(nil)
	}
	return &Device{serial: serial, w: w, logger: logger, raw: raw}
}

func (d *Device) Serial() string { return d.serial }

// SetCustomKeymap switches between plain forwarding and the custom key-mapping
// mode.
func (d *Device) SetCustomKeymap(on bool) { d.customKeymap.Store(on) }

func (d *Device) IsCurrentCustomKeymap() bool { return d.customKeymap.Load() }

func (d *Device) MouseEvent(ev control.MouseEvent, frameSize, showSize geom.Size) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ev.Synthetic() {
		d.look(ev.Local, frameSize, showSize)
		return
	}

	pos := framePosition(ev.Local, frameSize, showSize)
	button := androidButtons(ev.Button)
	switch ev.Type {
	case control.MousePress, control.MouseDoubleClick:
		d.buttons |= button
		d.send(InjectTouch{Action: ActionDown, PointerID: MousePointerID, Position: pos, Pressure: 1, ActionButton: button, Buttons: d.buttons})
	case control.MouseRelease:
		d.buttons &^= button
		d.send(InjectTouch{Action: ActionUp, PointerID: MousePointerID, Position: pos, ActionButton: button, Buttons: d.buttons})
	case control.MouseMove:
		d.buttons = androidButtons(ev.Buttons)
		if d.buttons == 0 {
			return
		}
		d.send(InjectTouch{Action: ActionMove, PointerID: MousePointerID, Position: pos, Pressure: 1, Buttons: d.buttons})
	}
}

func (d *Device) WheelEvent(ev control.WheelEvent, frameSize, showSize geom.Size) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.send(InjectScroll{
		Position: framePosition(ev.Local, frameSize, showSize),
		HScroll:  ev.DeltaX,
		VScroll:  ev.DeltaY,
		Buttons:  d.buttons,
	})
}

func (d *Device) KeyEvent(ev control.KeyEvent, _, _ geom.Size) {
	action := ActionUp
	if ev.Pressed {
		action = ActionDown
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.send(InjectKeycode{Action: action, Keycode: ev.Code, Repeat: ev.Repeat, MetaState: ev.MetaState})
}

func (d *Device) PostGoHome() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.send(InjectKeycode{Action: ActionDown, Keycode: KeycodeHome})
	d.send(InjectKeycode{Action: ActionUp, Keycode: KeycodeHome})
}

func (d *Device) PostGoBack() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.send(BackOrScreenOn{Action: ActionDown})
	d.send(BackOrScreenOn{Action: ActionUp})
}

// ReleaseLook lifts the look pointer. The next synthetic move touches down
// at the centre again.
func (d *Device) ReleaseLook() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.lookActive {
		return
	}
	d.lookActive = false
	d.send(InjectTouch{Action: ActionUp, PointerID: LookPointerID, Position: d.lookPosition(d.lookFrame)})
}

func (d *Device) look(cursor geom.PointF, frame, show geom.Size) {
	if !frame.Valid() {
		return
	}
	center := geom.Rect{W: frame.W, H: frame.H}.Center()
	if d.lookActive && frame != d.lookFrame {
		d.send(InjectTouch{Action: ActionUp, PointerID: LookPointerID, Position: d.lookPosition(d.lookFrame)})
		d.lookActive = false
	}
	d.lookFrame = frame
	if !d.lookActive {
		d.lookActive = true
		d.lookPos = center
		d.lookCursor = cursor
		d.send(InjectTouch{Action: ActionDown, PointerID: LookPointerID, Position: d.lookPosition(frame), Pressure: 1})
		return
	}

	delta := cursor.Sub(d.lookCursor)
	d.lookCursor = cursor
	if delta.IsZero() {
		return
	}
	if show.Valid() {
		delta.X *= float64(frame.W) / float64(show.W)
		delta.Y *= float64(frame.H) / float64(show.H)
	}

	next := d.lookPos.Add(delta)
	bounds := geom.Rect{W: frame.W, H: frame.H}
	if !bounds.Contains(next) {
		d.send(InjectTouch{Action: ActionUp, PointerID: LookPointerID, Position: d.lookPosition(frame)})
		d.lookPos = center
		d.send(InjectTouch{Action: ActionDown, PointerID: LookPointerID, Position: d.lookPosition(frame), Pressure: 1})
		return
	}
	d.lookPos = next
	d.send(InjectTouch{Action: ActionMove, PointerID: LookPointerID, Position: d.lookPosition(frame), Pressure: 1})
}

func (d *Device) lookPosition(frame geom.Size) Position {
	return Position{
		X: int32(math.Round(d.lookPos.X)),
		Y: int32(math.Round(d.lookPos.Y)),
		W: clampU16(frame.W),
		H: clampU16(frame.H),
	}
}

func (d *Device) send(m encoding.BinaryMarshaler) {
	b, err := m.MarshalBinary()
	if err != nil {
		d.logger.Error("encode control message", "error", err)
		return
	}
	d.raw.Log("control", false, b)
	if _, err := d.w.Write(b); err != nil {
		d.logger.Warn("control write failed", "serial", d.serial, "error", err)
	}
}

// framePosition maps a point in show space to the frame, clamped inside it.
func framePosition(p geom.PointF, frame, show geom.Size) Position {
	x, y := p.X, p.Y
	if show.Valid() && frame.Valid() {
		x = x * float64(frame.W) / float64(show.W)
		y = y * float64(frame.H) / float64(show.H)
	}
	if frame.Valid() {
		x = min(max(x, 0), float64(frame.W-1))
		y = min(max(y, 0), float64(frame.H-1))
	}
	return Position{
		X: int32(math.Round(x)),
		Y: int32(math.Round(y)),
		W: clampU16(frame.W),
		H: clampU16(frame.H),
	}
}

func androidButtons(b control.Button) uint32 {
	var out uint32
	if b&control.Left != 0 {
		out |= ButtonPrimary
	}
	if b&control.Right != 0 {
		out |= ButtonSecondary
	}
	if b&control.Middle != 0 {
		out |= ButtonTertiary
	}
	return out
}

func clampU16(v int) uint16 {
	return uint16(min(max(v, 0), math.MaxUint16))
}
