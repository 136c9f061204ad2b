package motion

import (
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/mirrorctl/relook/control"
	"github.com/mirrorctl/relook/geom"
	"github.com/mirrorctl/relook/internal/log"
)

// Tuning holds the parameters the dispatcher applies on every tick.
type Tuning struct {
	SendHz         int
	Scale          float64
	RecoilStrength float64
}

// Period returns the tick interval for a send rate: round(1000/hz)
// milliseconds, never less than one millisecond.
func Period(hz int) time.Duration {
	if hz <= 0 {
		hz = 1
	}
	ms := int64(math.Round(1000 / float64(hz)))
	if ms < 1 {
		ms = 1
	}
	return time.Duration(ms) * time.Millisecond
}

// SizesFunc returns the frame size and show size the synthetic events are
// expressed in.
type SizesFunc func() (frame, show geom.Size)

// PostFunc schedules fn on the cooperative context that owns the dispatcher.
type PostFunc func(fn func())

// Dispatcher drains an Accumulator on a fixed period and emits one synthetic
// pointer move per tick to the device.
//
// Arm, Disarm, SetTuning and Dispatch must be called from the single context
// the PostFunc schedules onto. SetLeftButton may be called from anywhere.
type Dispatcher struct {
	acc    *Accumulator
	dev    control.Device
	sizes  SizesFunc
	post   PostFunc
	logger *slog.Logger

	tuning Tuning
	armed  bool
	cursor geom.PointF

	ticker    *time.Ticker
	stop      chan struct{}
	gen       uint64
	scheduled atomic.Bool
	leftDown  atomic.Bool
}

// NewDispatcher creates an idle dispatcher.
func NewDispatcher(acc *Accumulator, dev control.Device, sizes SizesFunc, post PostFunc, tuning Tuning, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if post == nil {
		post = func(fn func()) { fn() }
	}
	return &Dispatcher{
		acc:    acc,
		dev:    dev,
		sizes:  sizes,
		post:   post,
		tuning: tuning,
		logger: logger,
	}
}

// Armed reports whether the dispatcher is ticking.
func (d *Dispatcher) Armed() bool { return d.armed }

// Cursor returns the virtual cursor: the sum of all dispatched deltas since
// the last Arm.
func (d *Dispatcher) Cursor() geom.PointF { return d.cursor }

// Tuning returns the parameters currently applied.
func (d *Dispatcher) Tuning() Tuning { return d.tuning }

// SetLeftButton records the left-button state reported by the raw source.
func (d *Dispatcher) SetLeftButton(down bool) { d.leftDown.Store(down) }

// LeftButton reports the tracked left-button state.
func (d *Dispatcher) LeftButton() bool { return d.leftDown.Load() }

// Arm resets the accumulator and virtual cursor, performs one forced
// dispatch, then starts the periodic timer. Arming an armed dispatcher is a
// no-op.
func (d *Dispatcher) Arm() {
	if d.armed {
		return
	}
	d.acc.Reset()
	d.cursor = geom.PointF{}
	d.armed = true
	d.Dispatch(true)
	d.startTimer()
	d.logger.Debug("relative look armed", "sendHz", d.tuning.SendHz, "period", Period(d.tuning.SendHz))
}

// Disarm stops the timer, discards pending motion and clears the button
// latch.
func (d *Dispatcher) Disarm() {
	if !d.armed {
		return
	}
	d.armed = false
	d.stopTimer()
	d.acc.Reset()
	d.leftDown.Store(false)
	d.logger.Debug("relative look disarmed")
}

// SetTuning replaces the parameters. While armed the timer period follows
// the new send rate; pending motion is kept for the next tick.
func (d *Dispatcher) SetTuning(t Tuning) {
	old := d.tuning
	d.tuning = t
	if d.armed && d.ticker != nil && Period(old.SendHz) != Period(t.SendHz) {
		d.ticker.Reset(Period(t.SendHz))
		log.Trace(d.logger, "dispatch period changed", "period", Period(t.SendHz))
	}
}

// Dispatch drains pending motion, applies scale and recoil, and emits one
// synthetic move. Without force a zero delta is coalesced. It returns
// whether an event was emitted.
func (d *Dispatcher) Dispatch(force bool) bool {
	if !d.armed {
		return false
	}
	pending := d.acc.Drain()
	step := geom.PointF{
		X: pending.DX * d.tuning.Scale,
		Y: pending.DY * d.tuning.Scale,
	}
	if d.tuning.RecoilStrength > 0 && d.leftDown.Load() && d.dev != nil && d.dev.IsCurrentCustomKeymap() {
		step.Y += d.tuning.RecoilStrength
	}
	if !force && step.IsZero() {
		return false
	}
	d.cursor = d.cursor.Add(step)
	if d.dev == nil {
		return false
	}

	ev := control.MouseEvent{
		Type:   control.MouseMove,
		Local:  d.cursor,
		Global: control.SyntheticGlobal,
		Button: control.NoButton,
	}
	if d.leftDown.Load() {
		ev.Buttons = control.Left
	}
	var frame, show geom.Size
	if d.sizes != nil {
		frame, show = d.sizes()
	}
	d.dev.MouseEvent(ev, frame, show)
	return true
}

func (d *Dispatcher) startTimer() {
	d.stopTimer()
	d.gen++
	gen := d.gen
	t := time.NewTicker(Period(d.tuning.SendHz))
	stop := make(chan struct{})
	d.ticker, d.stop = t, stop

	go func() {
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				// At most one tick waits on the loop at a time.
				if !d.scheduled.CompareAndSwap(false, true) {
					continue
				}
				d.post(func() {
					d.scheduled.Store(false)
					if d.gen != gen {
						return
					}
					d.Dispatch(false)
				})
			}
		}
	}()
}

func (d *Dispatcher) stopTimer() {
	if d.ticker == nil {
		return
	}
	d.ticker.Stop()
	close(d.stop)
	d.ticker, d.stop = nil, nil
	d.gen++
	d.scheduled.Store(false)
}
