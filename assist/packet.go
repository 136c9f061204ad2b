// Package assist implements the assistive-motion channel: a fixed 20-byte
// little-endian UDP record carrying extra pointer delta from a local helper
// process, merged into the same motion stream as raw pointer input.
package assist

import (
	"encoding/binary"
	"errors"
	"math"
)

const (
	// Magic is "AID1" read as a little-endian uint32.
	Magic uint32 = 0x31444941
	// Version is the only accepted record version.
	Version uint16 = 1
	// PacketSize is the fixed wire size of a record.
	PacketSize = 20
	// DefaultPort is the well-known loopback port of the channel.
	DefaultPort = 12345

	// FlagHasTarget is set by senders when the frame contained a target.
	// Receivers ignore all flags.
	FlagHasTarget uint16 = 0x0001
)

var (
	ErrShortPacket = errors.New("assist: packet too short")
	ErrBadMagic    = errors.New("assist: magic mismatch")
	ErrBadVersion  = errors.New("assist: unsupported version")
	ErrNonFinite   = errors.New("assist: non-finite delta")
)

// Packet is one assistive-motion record.
//
// Wire layout (20 bytes, little-endian, no padding):
//
//	Bytes 0-3:   magic   (u32, must equal Magic)
//	Bytes 4-5:   version (u16, must equal Version)
//	Bytes 6-7:   flags   (u16, reserved)
//	Bytes 8-11:  frameId (u32, opaque)
//	Bytes 12-15: dx      (f32)
//	Bytes 16-19: dy      (f32)
type Packet struct {
	Flags   uint16
	FrameID uint32
	DX, DY  float32
}

// Decode validates and decodes one datagram. Bytes past PacketSize are
// ignored. Any failure rejects the whole datagram.
func Decode(data []byte) (Packet, error) {
	var p Packet
	if err := p.UnmarshalBinary(data); err != nil {
		return Packet{}, err
	}
	return p, nil
}

// Encode returns the wire form of p with the current magic and version.
func Encode(p Packet) []byte {
	b, _ := p.MarshalBinary()
	return b
}

// MarshalBinary encodes p to PacketSize bytes.
func (p *Packet) MarshalBinary() ([]byte, error) {
	b := make([]byte, PacketSize)
	binary.LittleEndian.PutUint32(b[0:4], Magic)
	binary.LittleEndian.PutUint16(b[4:6], Version)
	binary.LittleEndian.PutUint16(b[6:8], p.Flags)
	binary.LittleEndian.PutUint32(b[8:12], p.FrameID)
	binary.LittleEndian.PutUint32(b[12:16], math.Float32bits(p.DX))
	binary.LittleEndian.PutUint32(b[16:20], math.Float32bits(p.DY))
	return b, nil
}

// UnmarshalBinary decodes a record. p is left untouched on error.
func (p *Packet) UnmarshalBinary(data []byte) error {
	if len(data) < PacketSize {
		return ErrShortPacket
	}
	if binary.LittleEndian.Uint32(data[0:4]) != Magic {
		return ErrBadMagic
	}
	if binary.LittleEndian.Uint16(data[4:6]) != Version {
		return ErrBadVersion
	}
	dx := math.Float32frombits(binary.LittleEndian.Uint32(data[12:16]))
	dy := math.Float32frombits(binary.LittleEndian.Uint32(data[16:20]))
	if !finite(dx) || !finite(dy) {
		return ErrNonFinite
	}

	p.Flags = binary.LittleEndian.Uint16(data[6:8])
	p.FrameID = binary.LittleEndian.Uint32(data[8:12])
	p.DX = dx
	p.DY = dy
	return nil
}

func finite(f float32) bool {
	v := float64(f)
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
