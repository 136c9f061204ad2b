package assist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/mirrorctl/relook/internal/log"
)

// Sink receives the delta of every accepted record.
type Sink interface {
	AddAssist(dx, dy float64)
}

// DefaultAddr is the loopback address the channel listens on.
func DefaultAddr() string {
	return fmt.Sprintf("127.0.0.1:%d", DefaultPort)
}

// Listen binds a UDP socket with address reuse enabled, so several local
// processes can share the well-known port.
func Listen(ctx context.Context, addr string) (net.PacketConn, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var serr error
			err := c.Control(func(fd uintptr) {
				serr = setReuse(fd)
			})
			if err != nil {
				return err
			}
			return serr
		},
	}
	conn, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("assist: listen %s: %w", addr, err)
	}
	return conn, nil
}

// Receiver reads datagrams from a packet connection and forwards accepted
// records to a Sink. Rejected datagrams have no effect on the sink.
type Receiver struct {
	conn   net.PacketConn
	sink   Sink
	logger *slog.Logger
	raw    log.RawLogger

	accepted atomic.Uint64
	rejected atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewReceiver creates a receiver on an already bound connection.
func NewReceiver(conn net.PacketConn, sink Sink, logger *slog.Logger, raw log.RawLogger) *Receiver {
	if logger == nil {
		logger = slog.Default()
	}
	if raw == nil {
		raw = log.NewRaw(nil)
	}
	return &Receiver{
		conn:   conn,
		sink:   sink,
		logger: logger,
		raw:    raw,
		done:   make(chan struct{}),
	}
}

// Start launches the read loop.
func (r *Receiver) Start() {
	r.wg.Add(1)
	go r.readLoop()
}

// Stats returns the number of accepted and rejected datagrams.
func (r *Receiver) Stats() (accepted, rejected uint64) {
	return r.accepted.Load(), r.rejected.Load()
}

// Addr returns the local address of the receiver.
func (r *Receiver) Addr() net.Addr { return r.conn.LocalAddr() }

// Close stops the read loop and closes the connection.
func (r *Receiver) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		err = r.conn.Close()
		r.wg.Wait()
	})
	return err
}

func (r *Receiver) readLoop() {
	defer r.wg.Done()
	buf := make([]byte, 2048)
	for {
		n, _, err := r.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-r.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			r.logger.Debug("assist read failed", "error", err)
			continue
		}
		r.raw.Log("assist", true, buf[:n])
		r.handle(buf[:n])
	}
}

func (r *Receiver) handle(datagram []byte) {
	p, err := Decode(datagram)
	if err != nil {
		r.rejected.Add(1)
		log.Trace(r.logger, "assist datagram dropped", "bytes", len(datagram), "reason", err)
		return
	}
	r.accepted.Add(1)
	r.sink.AddAssist(float64(p.DX), float64(p.DY))
}
