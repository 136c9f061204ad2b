package rawinput

import (
	"encoding/binary"
	"fmt"
)

// Linux input event codes used by the parser.
const (
	evSyn = 0x00
	evKey = 0x01
	evRel = 0x02

	synReport = 0x00
	relX      = 0x00
	relY      = 0x01
	btnLeft   = 0x110

	keyRelease = 0
	keyPress   = 1
)

// Record sizes of struct input_event: a timeval of two 32-bit or two 64-bit
// words followed by type, code and value.
const (
	RecordSize32 = 16
	RecordSize64 = 24
)

// Parser folds input_event records into Events, one per SYN_REPORT.
type Parser struct {
	recordSize int
	pending    Event
	dirty      bool
}

// NewParser creates a parser for records of the given size.
func NewParser(recordSize int) (*Parser, error) {
	if recordSize != RecordSize32 && recordSize != RecordSize64 {
		return nil, fmt.Errorf("rawinput: unsupported input_event size %d", recordSize)
	}
	return &Parser{recordSize: recordSize}, nil
}

// RecordSize returns the size of one record.
func (p *Parser) RecordSize() int { return p.recordSize }

// Feed parses whole records from buf and calls emit for every completed
// report. A trailing partial record is ignored; callers read in multiples
// of RecordSize.
func (p *Parser) Feed(buf []byte, emit func(Event)) {
	head := p.recordSize - 8
	for off := 0; off+p.recordSize <= len(buf); off += p.recordSize {
		rec := buf[off : off+p.recordSize]
		typ := binary.LittleEndian.Uint16(rec[head:])
		code := binary.LittleEndian.Uint16(rec[head+2:])
		value := int32(binary.LittleEndian.Uint32(rec[head+4:]))
		p.apply(typ, code, value, emit)
	}
}

func (p *Parser) apply(typ, code uint16, value int32, emit func(Event)) {
	switch typ {
	case evRel:
		switch code {
		case relX:
			p.pending.DX += value
			p.dirty = true
		case relY:
			p.pending.DY += value
			p.dirty = true
		}
	case evKey:
		if code != btnLeft {
			return
		}
		switch value {
		case keyPress:
			p.pending.LeftDown = true
			p.dirty = true
		case keyRelease:
			p.pending.LeftUp = true
			p.dirty = true
		}
	case evSyn:
		if code != synReport || !p.dirty {
			return
		}
		ev := p.pending
		p.pending = Event{}
		p.dirty = false
		if emit != nil {
			emit(ev)
		}
	}
}
