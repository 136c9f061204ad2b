package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mirrorctl/relook/orientation"
)

type Probe struct {
	Serial  string        `arg:"" optional:"" help:"Device serial (default: the only connected device)"`
	Adb     AdbConfig     `embed:"" prefix:"adb."`
	Timeout time.Duration `help:"Give up after this long" default:"5s"`
}

// Run is called by Kong when the probe command is executed.
func (p *Probe) Run(logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	defer cancel()

	prober := orientation.ExecProber{Path: p.Adb.Path}
	logger.Debug("probing orientation", "adb", prober.AdbPath(), "args", strings.Join(orientation.Args(p.Serial), " "))

	res := prober.Probe(ctx, p.Serial)
	if !res.OK() {
		if res.Err != nil {
			return fmt.Errorf("orientation probe failed: %w", res.Err)
		}
		return fmt.Errorf("orientation probe exited with status %d: %s", res.ExitCode, strings.TrimSpace(res.Output))
	}
	value, ok := orientation.ParseOrientation(res.Output)
	if !ok {
		return fmt.Errorf("no orientation in dumpsys output")
	}
	logger.Info("orientation", "serial", p.Serial, "value", value, "degrees", value*90)
	fmt.Println(value)
	return nil
}
