package orientation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mirrorctl/relook/geom"
	"github.com/mirrorctl/relook/internal/log"
)

const (
	// PollInterval is the period between probes while polling.
	PollInterval = 2 * time.Second
	// StopTimeout bounds how long Stop waits for an outstanding probe.
	StopTimeout = 2*TerminateGrace + 100*time.Millisecond
)

// Anchor is the calibration captured on the first successful probe after a
// reset. Later readings are interpreted relative to it.
type Anchor struct {
	Ready     bool
	Value     int
	FrameSize geom.Size
}

// State is what the tracker needs to know about its owner on every poll.
type State struct {
	Serial      string
	FrameSize   geom.Size
	MapToScreen bool
}

// CanPoll reports whether the polling entry condition holds.
func (s State) CanPoll() bool {
	return s.MapToScreen && s.FrameSize.Valid() && strings.TrimSpace(s.Serial) != ""
}

// Config wires a Tracker to its owner.
type Config struct {
	Prober Prober
	// State is read on every poll and completion.
	State func() State
	// Resize applies a new frame size after a rotation.
	Resize func(geom.Size)
	// Post schedules fn on the owner's cooperative context.
	Post func(fn func())
	// Interval defaults to PollInterval.
	Interval time.Duration
	Logger   *slog.Logger
}

type probe struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Tracker polls the device orientation while map-to-screen is active. At
// most one probe is outstanding; a poll while one runs is skipped.
//
// Start, Stop, Poll and the completions scheduled through Config.Post all
// run on the owner's context.
type Tracker struct {
	cfg Config

	anchor      Anchor
	stopTicker  chan struct{}
	outstanding *probe
}

// NewTracker creates a stopped tracker.
func NewTracker(cfg Config) *Tracker {
	if cfg.Interval <= 0 {
		cfg.Interval = PollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Post == nil {
		cfg.Post = func(fn func()) { fn() }
	}
	return &Tracker{cfg: cfg}
}

// Anchor returns the current calibration.
func (t *Tracker) Anchor() Anchor { return t.anchor }

// Polling reports whether the poll timer runs.
func (t *Tracker) Polling() bool { return t.stopTicker != nil }

// Outstanding reports whether a probe is in flight.
func (t *Tracker) Outstanding() bool { return t.outstanding != nil }

// Start begins polling if the entry condition holds, probing immediately
// unless a probe is already in flight. Calling Start while polling only
// issues that probe.
func (t *Tracker) Start() {
	if !t.cfg.State().CanPoll() {
		return
	}
	if t.stopTicker == nil {
		t.startTicker()
	}
	if t.outstanding == nil {
		t.Poll()
	}
}

// Stop halts polling, clears the anchor and terminates an outstanding probe.
// It blocks for at most StopTimeout.
func (t *Tracker) Stop() {
	if t.stopTicker != nil {
		close(t.stopTicker)
		t.stopTicker = nil
	}
	t.anchor = Anchor{}

	p := t.outstanding
	if p == nil {
		return
	}
	t.outstanding = nil
	p.cancel()
	select {
	case <-p.done:
	case <-time.After(StopTimeout):
		t.cfg.Logger.Warn("orientation probe did not exit")
	}
}

// Poll issues one probe unless one is outstanding or the entry condition
// does not hold.
func (t *Tracker) Poll() {
	st := t.cfg.State()
	if !st.CanPoll() {
		return
	}
	if t.outstanding != nil {
		log.Trace(t.cfg.Logger, "orientation probe still running, skipping poll")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &probe{cancel: cancel, done: make(chan struct{})}
	t.outstanding = p
	serial := strings.TrimSpace(st.Serial)

	go func() {
		res := t.cfg.Prober.Probe(ctx, serial)
		cancel()
		// done is closed before posting so Stop never waits on the owner.
		close(p.done)
		t.cfg.Post(func() { t.complete(p, res) })
	}()
}

func (t *Tracker) complete(p *probe, res Result) {
	if t.outstanding != p {
		return
	}
	// Still outstanding while handled, so a Start from Resize does not
	// probe again.
	t.handle(res)
	if t.outstanding == p {
		t.outstanding = nil
	}
}

func (t *Tracker) handle(res Result) {
	if !res.OK() {
		t.cfg.Logger.Debug("orientation probe failed", "exitCode", res.ExitCode, "error", res.Err)
		return
	}
	value, ok := ParseOrientation(res.Output)
	if !ok {
		t.cfg.Logger.Debug("orientation not found in probe output")
		return
	}

	current := t.cfg.State().FrameSize
	if !t.anchor.Ready {
		t.anchor = Anchor{Ready: true, Value: value, FrameSize: current}
		t.cfg.Logger.Debug("orientation anchored", "value", value, "frame", current)
		return
	}

	delta := (value - t.anchor.Value + 4) % 4
	target := t.anchor.FrameSize
	if delta%2 == 1 {
		target = target.Transposed()
	}
	if target.Valid() && target != current {
		t.cfg.Logger.Info("device rotated", "orientation", value, "delta", delta, "frame", target)
		if t.cfg.Resize != nil {
			t.cfg.Resize(target)
		}
	}
}

func (t *Tracker) startTicker() {
	stop := make(chan struct{})
	t.stopTicker = stop
	ticker := time.NewTicker(t.cfg.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				t.cfg.Post(func() {
					if t.stopTicker != stop {
						return
					}
					t.Poll()
				})
			}
		}
	}()
}
