package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mirrorctl/relook/assist"
	"github.com/mirrorctl/relook/internal/log"
)

type Send struct {
	Addr     string        `help:"Assist channel address" default:"127.0.0.1:12345" env:"RELOOK_ASSIST_ADDR"`
	DX       float32       `name:"dx" help:"Horizontal delta per packet" default:"0"`
	DY       float32       `name:"dy" help:"Vertical delta per packet" default:"0"`
	Count    int           `help:"Number of packets to send; 0 sends until interrupted" default:"1"`
	Interval time.Duration `help:"Delay between packets" default:"16ms"`
	Target   bool          `help:"Set the has-target flag"`
}

// Run is called by Kong when the send command is executed.
func (s *Send) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sender, err := assist.Dial(s.Addr)
	if err != nil {
		return err
	}
	defer sender.Close()

	logger.Info("sending assist packets", "addr", s.Addr, "dx", s.DX, "dy", s.DY, "count", s.Count)
	t := time.NewTicker(max(s.Interval, time.Millisecond))
	defer t.Stop()

	sent := 0
	for s.Count <= 0 || sent < s.Count {
		id, err := sender.Send(s.DX, s.DY, s.Target)
		if err != nil {
			return err
		}
		log.Trace(logger, "assist packet sent", "frameId", id)
		sent++
		if s.Count > 0 && sent == s.Count {
			break
		}
		select {
		case <-ctx.Done():
			logger.Info("interrupted", "sent", sent)
			return nil
		case <-t.C:
		}
	}
	logger.Info("assist packets sent", "sent", sent)
	return nil
}
