package log

import (
	"io"
	"strconv"
	"sync"
	"time"
)

// RawLogger traces wire traffic of the assist channel and the control link.
// in is true for bytes received by relook.
type RawLogger interface {
	Log(channel string, in bool, data []byte)
}

type discard struct{}

func (discard) Log(string, bool, []byte) {}

// hexLogger writes one line per chunk:
//
//	2026/01/02 15:04:05.000 assist in  20 bytes: 41 49 44 31 ...
type hexLogger struct {
	mu  sync.Mutex
	w   io.Writer
	buf []byte
}

// NewRaw returns a RawLogger writing hex dumps to w. A nil w discards.
func NewRaw(w io.Writer) RawLogger {
	if w == nil {
		return discard{}
	}
	return &hexLogger{w: w}
}

func (l *hexLogger) Log(channel string, in bool, data []byte) {
	if len(data) == 0 {
		return
	}
	dir := "out"
	if in {
		dir = "in "
	}
	const digits = "0123456789abcdef"

	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.buf[:0]
	b = time.Now().AppendFormat(b, "2006/01/02 15:04:05.000")
	b = append(b, ' ')
	b = append(b, channel...)
	b = append(b, ' ')
	b = append(b, dir...)
	b = append(b, ' ')
	b = strconv.AppendInt(b, int64(len(data)), 10)
	b = append(b, " bytes:"...)
	for _, c := range data {
		b = append(b, ' ', digits[c>>4], digits[c&0x0f])
	}
	b = append(b, '\n')
	_, _ = l.w.Write(b)
	l.buf = b
}
