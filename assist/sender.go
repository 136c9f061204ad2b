package assist

import (
	"fmt"
	"net"
	"sync"
)

// Sender emits assist records to a receiver address, numbering frames
// sequentially.
type Sender struct {
	conn net.Conn

	mu    sync.Mutex
	frame uint32
}

// Dial connects a sender to addr (host:port); empty addr is DefaultAddr.
func Dial(addr string) (*Sender, error) {
	if addr == "" {
		addr = DefaultAddr()
	}
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("assist: dial %s: %w", addr, err)
	}
	return &Sender{conn: conn}, nil
}

// Send writes one record and returns the frame id it used.
func (s *Sender) Send(dx, dy float32, hasTarget bool) (uint32, error) {
	s.mu.Lock()
	id := s.frame
	s.frame++
	s.mu.Unlock()

	p := Packet{FrameID: id, DX: dx, DY: dy}
	if hasTarget {
		p.Flags |= FlagHasTarget
	}
	if _, err := s.conn.Write(Encode(p)); err != nil {
		return id, fmt.Errorf("assist: send: %w", err)
	}
	return id, nil
}

// Close releases the socket.
func (s *Sender) Close() error { return s.conn.Close() }
