package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mirrorctl/relook/internal/log"
	"github.com/mirrorctl/relook/transport"

	"github.com/google/uuid"
)

type Sink struct {
	Addr     string `help:"Listen address" default:"127.0.0.1:27183" env:"RELOOK_SINK_ADDR"`
	Password string `help:"Require this control link password" env:"RELOOK_PASSWORD"`
}

// Run is called by Kong when the sink command is executed.
func (s *Sink) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx, logger, rawLogger)
}

// Serve accepts control links until ctx is done.
func (s *Sink) Serve(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.Addr, err)
	}
	logger.Info("control sink listening", "addr", ln.Addr().String(), "secure", s.Password != "")

	var wg sync.WaitGroup
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			wg.Wait()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handle(ctx, conn, logger, rawLogger)
		}()
	}
}

func (s *Sink) handle(ctx context.Context, conn net.Conn, logger *slog.Logger, rawLogger log.RawLogger) {
	remote := conn.RemoteAddr().String()
	connLogger := logger.With("link", uuid.New().String(), "remote", remote)
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	var r io.Reader = conn
	if s.Password != "" {
		secured, err := transport.Secure(conn, s.Password, false)
		if err != nil {
			connLogger.Warn("control link rejected", "error", err)
			return
		}
		r = secured
	}
	connLogger.Info("control link accepted")

	var count int
	for {
		msg, err := transport.Decode(r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				connLogger.Info("control link closed", "messages", count)
			} else {
				connLogger.Warn("control link read failed", "messages", count, "error", err)
			}
			return
		}
		count++
		if b, err := msg.MarshalBinary(); err == nil {
			rawLogger.Log("control", true, b)
		}
		connLogger.Info("control message", "msg", fmt.Sprint(msg))
	}
}
