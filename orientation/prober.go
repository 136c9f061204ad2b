package orientation

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	// AdbPathEnv overrides the adb executable.
	AdbPathEnv = "RELOOK_ADB_PATH"
	// TerminateGrace is how long a cancelled probe may take to exit after
	// the interrupt before it is killed.
	TerminateGrace = 200 * time.Millisecond
)

// Result is the outcome of one probe. Output is stdout followed by stderr.
type Result struct {
	Output   string
	ExitCode int
	Err      error
}

// OK reports whether the probe ran and exited with status 0.
func (r Result) OK() bool { return r.Err == nil && r.ExitCode == 0 }

// Prober inspects the device. Probe must return soon after ctx is done.
type Prober interface {
	Probe(ctx context.Context, serial string) Result
}

// ExecProber runs `adb -s <serial> shell dumpsys input`.
type ExecProber struct {
	// Path is the adb executable; empty means $RELOOK_ADB_PATH, then "adb"
	// from PATH.
	Path string
}

// AdbPath resolves the executable the probe runs.
func (p ExecProber) AdbPath() string {
	if s := strings.TrimSpace(p.Path); s != "" {
		return s
	}
	if s := strings.TrimSpace(os.Getenv(AdbPathEnv)); s != "" {
		return s
	}
	return "adb"
}

// Args returns the probe arguments for serial.
func Args(serial string) []string {
	var args []string
	if s := strings.TrimSpace(serial); s != "" {
		args = append(args, "-s", s)
	}
	return append(args, "shell", "dumpsys", "input")
}

// Probe runs the command. Cancelling ctx interrupts the process and kills
// it if it is still running after TerminateGrace.
func (p ExecProber) Probe(ctx context.Context, serial string) Result {
	cmd := exec.CommandContext(ctx, p.AdbPath(), Args(serial)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Cancel = func() error {
		if err := cmd.Process.Signal(os.Interrupt); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
	cmd.WaitDelay = TerminateGrace

	err := cmd.Run()
	res := Result{Output: stdout.String() + stderr.String(), ExitCode: -1}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || ctx.Err() != nil {
			res.Err = err
		}
	}
	return res
}
