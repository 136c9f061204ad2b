// Package transport is the control link to the device: scrcpy-style
// control messages, a control.Device that writes them, and optional
// password protection of the link.
package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Message types.
const (
	TypeInjectKeycode  uint8 = 0
	TypeInjectTouch    uint8 = 2
	TypeInjectScroll   uint8 = 3
	TypeBackOrScreenOn uint8 = 4
)

// Android key and motion actions.
const (
	ActionDown uint8 = 0
	ActionUp   uint8 = 1
	ActionMove uint8 = 2
)

// Android keycodes posted by the session.
const (
	KeycodeHome uint32 = 3
	KeycodeBack uint32 = 4
)

// Android motion buttons.
const (
	ButtonPrimary   uint32 = 1 << 0
	ButtonSecondary uint32 = 1 << 1
	ButtonTertiary  uint32 = 1 << 2
)

// Encoded sizes including the type byte.
const (
	InjectKeycodeSize  = 14
	InjectTouchSize    = 32
	InjectScrollSize   = 21
	BackOrScreenOnSize = 2
)

// Message is one control message.
type Message interface {
	Type() uint8
	MarshalBinary() ([]byte, error)
}

// Position is a point in a frame of the given size.
type Position struct {
	X, Y int32
	W, H uint16
}

func (p Position) put(b []byte) {
	binary.BigEndian.PutUint32(b[0:4], uint32(p.X))
	binary.BigEndian.PutUint32(b[4:8], uint32(p.Y))
	binary.BigEndian.PutUint16(b[8:10], p.W)
	binary.BigEndian.PutUint16(b[10:12], p.H)
}

func readPosition(b []byte) Position {
	return Position{
		X: int32(binary.BigEndian.Uint32(b[0:4])),
		Y: int32(binary.BigEndian.Uint32(b[4:8])),
		W: binary.BigEndian.Uint16(b[8:10]),
		H: binary.BigEndian.Uint16(b[10:12]),
	}
}

// InjectKeycode presses or releases an Android key.
type InjectKeycode struct {
	Action    uint8
	Keycode   uint32
	Repeat    uint32
	MetaState uint32
}

func (InjectKeycode) Type() uint8 { return TypeInjectKeycode }

func (m InjectKeycode) MarshalBinary() ([]byte, error) {
	b := make([]byte, InjectKeycodeSize)
	b[0] = TypeInjectKeycode
	b[1] = m.Action
	binary.BigEndian.PutUint32(b[2:6], m.Keycode)
	binary.BigEndian.PutUint32(b[6:10], m.Repeat)
	binary.BigEndian.PutUint32(b[10:14], m.MetaState)
	return b, nil
}

func (m InjectKeycode) String() string {
	return fmt.Sprintf("key action=%d code=%d repeat=%d meta=%#x", m.Action, m.Keycode, m.Repeat, m.MetaState)
}

// InjectTouch moves one pointer. Pressure is 0..1.
type InjectTouch struct {
	Action       uint8
	PointerID    uint64
	Position     Position
	Pressure     float64
	ActionButton uint32
	Buttons      uint32
}

func (InjectTouch) Type() uint8 { return TypeInjectTouch }

func (m InjectTouch) MarshalBinary() ([]byte, error) {
	b := make([]byte, InjectTouchSize)
	b[0] = TypeInjectTouch
	b[1] = m.Action
	binary.BigEndian.PutUint64(b[2:10], m.PointerID)
	m.Position.put(b[10:22])
	binary.BigEndian.PutUint16(b[22:24], u16fp(m.Pressure))
	binary.BigEndian.PutUint32(b[24:28], m.ActionButton)
	binary.BigEndian.PutUint32(b[28:32], m.Buttons)
	return b, nil
}

func (m InjectTouch) String() string {
	return fmt.Sprintf("touch action=%d pointer=%#x at %d,%d in %dx%d pressure=%.2f buttons=%#x",
		m.Action, m.PointerID, m.Position.X, m.Position.Y, m.Position.W, m.Position.H, m.Pressure, m.Buttons)
}

// InjectScroll scrolls at a position. Scroll amounts are in notches and are
// clamped to [-16, 16] on the wire.
type InjectScroll struct {
	Position Position
	HScroll  float64
	VScroll  float64
	Buttons  uint32
}

func (InjectScroll) Type() uint8 { return TypeInjectScroll }

func (m InjectScroll) MarshalBinary() ([]byte, error) {
	b := make([]byte, InjectScrollSize)
	b[0] = TypeInjectScroll
	m.Position.put(b[1:13])
	binary.BigEndian.PutUint16(b[13:15], uint16(i16fp(m.HScroll/16)))
	binary.BigEndian.PutUint16(b[15:17], uint16(i16fp(m.VScroll/16)))
	binary.BigEndian.PutUint32(b[17:21], m.Buttons)
	return b, nil
}

func (m InjectScroll) String() string {
	return fmt.Sprintf("scroll at %d,%d h=%.2f v=%.2f", m.Position.X, m.Position.Y, m.HScroll, m.VScroll)
}

// BackOrScreenOn presses back, or turns the screen on if it is off.
type BackOrScreenOn struct {
	Action uint8
}

func (BackOrScreenOn) Type() uint8 { return TypeBackOrScreenOn }

func (m BackOrScreenOn) MarshalBinary() ([]byte, error) {
	return []byte{TypeBackOrScreenOn, m.Action}, nil
}

func (m BackOrScreenOn) String() string { return fmt.Sprintf("back-or-screen-on action=%d", m.Action) }

// Decode reads one message from r.
func Decode(r io.Reader) (Message, error) {
	var typ [1]byte
	if _, err := io.ReadFull(r, typ[:]); err != nil {
		return nil, err
	}
	var size int
	switch typ[0] {
	case TypeInjectKeycode:
		size = InjectKeycodeSize
	case TypeInjectTouch:
		size = InjectTouchSize
	case TypeInjectScroll:
		size = InjectScrollSize
	case TypeBackOrScreenOn:
		size = BackOrScreenOnSize
	default:
		return nil, fmt.Errorf("transport: unknown message type %d", typ[0])
	}

	b := make([]byte, size)
	b[0] = typ[0]
	if _, err := io.ReadFull(r, b[1:]); err != nil {
		return nil, fmt.Errorf("transport: truncated message type %d: %w", typ[0], err)
	}

	switch typ[0] {
	case TypeInjectKeycode:
		return InjectKeycode{
			Action:    b[1],
			Keycode:   binary.BigEndian.Uint32(b[2:6]),
			Repeat:    binary.BigEndian.Uint32(b[6:10]),
			MetaState: binary.BigEndian.Uint32(b[10:14]),
		}, nil
	case TypeInjectTouch:
		return InjectTouch{
			Action:       b[1],
			PointerID:    binary.BigEndian.Uint64(b[2:10]),
			Position:     readPosition(b[10:22]),
			Pressure:     float64(binary.BigEndian.Uint16(b[22:24])) / 0xffff,
			ActionButton: binary.BigEndian.Uint32(b[24:28]),
			Buttons:      binary.BigEndian.Uint32(b[28:32]),
		}, nil
	case TypeInjectScroll:
		return InjectScroll{
			Position: readPosition(b[1:13]),
			HScroll:  float64(int16(binary.BigEndian.Uint16(b[13:15]))) / 0x7fff * 16,
			VScroll:  float64(int16(binary.BigEndian.Uint16(b[15:17]))) / 0x7fff * 16,
			Buttons:  binary.BigEndian.Uint32(b[17:21]),
		}, nil
	default:
		return BackOrScreenOn{Action: b[1]}, nil
	}
}

// u16fp encodes v in [0,1] as an unsigned 16-bit fixed point number.
func u16fp(v float64) uint16 {
	v = min(max(v, 0), 1)
	return uint16(math.Round(v * 0xffff))
}

// i16fp encodes v in [-1,1] as a signed 16-bit fixed point number.
func i16fp(v float64) int16 {
	if math.IsNaN(v) {
		return 0
	}
	v = min(max(v, -1), 1)
	return int16(math.Round(v * 0x7fff))
}
