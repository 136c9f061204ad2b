// Package session wires the relative-look pipeline, the tuning store and
// the orientation tracker to a device and a video surface, and forwards
// ordinary pointer and key input.
//
// Everything a Session owns runs on one goroutine: dispatch ticks, tuning
// reloads, orientation polls and probe completions are executed strictly
// one after another. Public methods hand their work to that goroutine and
// wait for it.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mirrorctl/relook/assist"
	"github.com/mirrorctl/relook/control"
	"github.com/mirrorctl/relook/geom"
	"github.com/mirrorctl/relook/internal/configpaths"
	"github.com/mirrorctl/relook/internal/log"
	"github.com/mirrorctl/relook/motion"
	"github.com/mirrorctl/relook/orientation"
	"github.com/mirrorctl/relook/rawinput"
	"github.com/mirrorctl/relook/tuning"
)

// Options configures a Session. Device and Surface are required.
type Options struct {
	Device  control.Device
	Surface control.Surface

	// Store defaults to the resolved userdata.ini location.
	Store *tuning.Store
	// Source captures raw pointer motion. Without one relative look never
	// arms.
	Source rawinput.Source
	// Prober defaults to orientation.ExecProber.
	Prober orientation.Prober
	// Assist is an optional bound socket for the assist channel.
	Assist net.PacketConn

	Logger *slog.Logger
	Raw    log.RawLogger

	// OnResize is called on the session goroutine when the frame size
	// changes. It must not call Session methods.
	OnResize func(geom.Size)

	PollInterval  time.Duration
	WatchDebounce time.Duration
	// DisableWatch turns hot reload off; the store is still read on grab
	// and serial changes.
	DisableWatch bool
}

// Status is a point-in-time view of the session.
type Status struct {
	Serial       string
	Grabbed      bool
	RawActive    bool
	RawAvailable bool
	MapToScreen  bool
	Polling      bool
	StreamSize   geom.Size
	FrameSize    geom.Size
	Cursor       geom.PointF
	Tuning       tuning.InputTuning
	Anchor       orientation.Anchor
}

// Session is the input subsystem of one mirrored device.
type Session struct {
	opts   Options
	logger *slog.Logger
	loop   *loop

	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once

	device  control.Device
	surface control.Surface
	store   *tuning.Store
	source  rawinput.Source
	acc     *motion.Accumulator
	disp    *motion.Dispatcher
	tracker *orientation.Tracker

	watcher  *tuning.Watcher
	receiver *assist.Receiver

	serial       string
	grabbed      bool
	rawActive    bool
	rawAvailable bool
	streamSize   geom.Size
	frameSize    geom.Size
}

// New creates a session. Nothing runs until Run is called, and the
// methods block until then.
func New(opts Options) (*Session, error) {
	if opts.Device == nil {
		return nil, errors.New("session: device is required")
	}
	if opts.Surface == nil {
		return nil, errors.New("session: surface is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Raw == nil {
		opts.Raw = log.NewRaw(nil)
	}
	if opts.Store == nil {
		opts.Store = tuning.NewStore(configpaths.DefaultTuningPath, logger)
	}
	if opts.Prober == nil {
		opts.Prober = orientation.ExecProber{}
	}

	s := &Session{
		opts:         opts,
		logger:       logger,
		loop:         newLoop(),
		stop:         make(chan struct{}),
		device:       opts.Device,
		surface:      opts.Surface,
		store:        opts.Store,
		source:       opts.Source,
		acc:          motion.NewAccumulator(),
		serial:       strings.TrimSpace(opts.Device.Serial()),
		rawAvailable: opts.Source != nil,
	}
	s.disp = motion.NewDispatcher(s.acc, s.device, s.eventSizes, s.loop.post, s.store.Tuning().Motion(), logger)
	s.tracker = orientation.NewTracker(orientation.Config{
		Prober:   opts.Prober,
		State:    s.trackerState,
		Resize:   s.updateShowSize,
		Post:     s.loop.post,
		Interval: opts.PollInterval,
		Logger:   logger,
	})
	return s, nil
}

// Run executes the session until ctx is done or Close is called. It tears
// everything down before returning.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("session: already running")
	}
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.stop:
		}
	}()

	s.start()
	s.loop.run(s.stop, s.teardown)
	return nil
}

// Close stops a running session. It is safe to call more than once.
func (s *Session) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Done is closed once the session has torn down.
func (s *Session) Done() <-chan struct{} { return s.loop.done }

func (s *Session) start() {
	s.store.SetSerial(s.serial)
	s.reloadTuning()

	if !s.opts.DisableWatch {
		w, err := tuning.NewWatcher(s.store.Path, func() { s.loop.post(s.reloadTuning) }, s.opts.WatchDebounce, s.logger)
		if err != nil {
			s.logger.Warn("tuning hot reload unavailable", "error", err)
		} else {
			s.watcher = w
		}
	}

	if s.opts.Assist != nil {
		s.receiver = assist.NewReceiver(s.opts.Assist, s.acc, s.logger, s.opts.Raw)
		s.receiver.Start()
		s.logger.Info("assist channel listening", "addr", s.receiver.Addr())
		if s.source == nil {
			s.logger.Warn("no raw pointer source, assist motion is not dispatched")
		}
	}
	s.logger.Debug("session started", "serial", s.serial)
}

func (s *Session) teardown() {
	s.setRawActive(false)
	s.tracker.Stop()
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			s.logger.Debug("close tuning watcher", "error", err)
		}
		s.watcher = nil
	}
	if s.receiver != nil {
		if err := s.receiver.Close(); err != nil {
			s.logger.Debug("close assist receiver", "error", err)
		}
		s.receiver = nil
	}
	s.logger.Debug("session stopped", "serial", s.serial)
}

// GrabCursor enters or leaves the grabbed state. Relative look follows
// grab && RelativeLookRawInput; leaving recentres the local cursor.
func (s *Session) GrabCursor(grab bool) {
	s.loop.do(func() {
		s.grabbed = grab
		s.reloadTuning()
		if !grab {
			if c, ok := s.surface.(control.CursorCenterer); ok {
				c.CenterCursor()
			}
		}
	})
}

// SetSerial selects the device whose overrides apply. A different serial
// resets the orientation calibration.
func (s *Session) SetSerial(serial string) {
	serial = strings.TrimSpace(serial)
	s.loop.do(func() {
		if serial != s.serial {
			s.tracker.Stop()
			s.serial = serial
		}
		s.store.SetSerial(serial)
		s.reloadTuning()
		s.applyView()
	})
}

// OnFrame records the size of a decoded frame. It becomes the frame size
// unless map-to-screen already owns a valid one.
func (s *Session) OnFrame(w, h int) {
	s.loop.do(func() {
		s.streamSize = geom.Size{W: w, H: h}
		if !s.mapToScreen() || !s.frameSize.Valid() {
			s.updateShowSize(s.streamSize)
		}
	})
}

// UpdateShowSize sets the frame size input positions are expressed in.
func (s *Session) UpdateShowSize(size geom.Size) {
	s.loop.do(func() { s.updateShowSize(size) })
}

// HandleMouse forwards a pointer event whose Local position is in window
// space.
func (s *Session) HandleMouse(ev control.MouseEvent) {
	s.loop.do(func() { s.handleMouse(ev) })
}

// HandleWheel forwards a wheel event over the surface.
func (s *Session) HandleWheel(ev control.WheelEvent) {
	s.loop.do(func() {
		geo := s.surface.Geometry()
		if !geo.Contains(ev.Local) {
			return
		}
		ev.Local = s.viewportPoint(ev.Local, geo)
		frame, show := s.eventSizes()
		s.device.WheelEvent(ev, frame, show)
	})
}

// HandleKey forwards a key event.
func (s *Session) HandleKey(ev control.KeyEvent) {
	s.loop.do(func() {
		frame, show := s.eventSizes()
		s.device.KeyEvent(ev, frame, show)
	})
}

// Reload re-reads the tuning store now.
func (s *Session) Reload() {
	s.loop.do(s.reloadTuning)
}

// Status returns the current state. After teardown it returns the zero
// Status.
func (s *Session) Status() Status {
	var st Status
	s.loop.do(func() {
		st = Status{
			Serial:       s.serial,
			Grabbed:      s.grabbed,
			RawActive:    s.rawActive,
			RawAvailable: s.rawAvailable,
			MapToScreen:  s.mapToScreen(),
			Polling:      s.tracker.Polling(),
			StreamSize:   s.streamSize,
			FrameSize:    s.frameSize,
			Cursor:       s.disp.Cursor(),
			Tuning:       s.store.Tuning(),
			Anchor:       s.tracker.Anchor(),
		}
	})
	return st
}

// reloadTuning re-reads the store and brings the armed state in line with
// grab && enabled. A reload that parsed the file also re-applies the view
// settings.
func (s *Session) reloadTuning() {
	t, parsed := s.store.Reload()
	if parsed {
		s.applyView()
	}
	s.disp.SetTuning(t.Motion())
	s.setRawActive(s.grabbed && t.Enabled)
}

func (s *Session) applyView() {
	if !s.mapToScreen() {
		s.tracker.Stop()
		return
	}
	s.tracker.Start()
}

func (s *Session) setRawActive(on bool) {
	if on == s.rawActive {
		return
	}
	if on {
		if !s.rawAvailable {
			return
		}
		if err := s.source.Start(s.onRaw); err != nil {
			s.rawAvailable = false
			s.logger.Warn("raw pointer capture unavailable, relative look disabled", "error", err)
			return
		}
		s.rawActive = true
		s.disp.SetLeftButton(false)
		s.disp.Arm()
		return
	}

	s.rawActive = false
	if err := s.source.Stop(); err != nil {
		s.logger.Debug("stop raw pointer capture", "error", err)
	}
	s.disp.Disarm()
	if r, ok := s.device.(control.LookReleaser); ok {
		r.ReleaseLook()
	}
}

// onRaw runs on the source's goroutine.
func (s *Session) onRaw(ev rawinput.Event) {
	if ev.DX != 0 || ev.DY != 0 {
		s.acc.AddRaw(float64(ev.DX), float64(ev.DY))
	}
	if ev.LeftDown {
		s.disp.SetLeftButton(true)
	}
	if ev.LeftUp {
		s.disp.SetLeftButton(false)
	}
}

func (s *Session) updateShowSize(size geom.Size) {
	if s.frameSize != size {
		s.frameSize = size
		if fs, ok := s.surface.(control.FrameSizer); ok {
			fs.SetFrameSize(size)
		}
		if s.opts.OnResize != nil {
			s.opts.OnResize(size)
		}
		s.logger.Debug("frame size changed", "frame", size)
	}
	s.tracker.Start()
}

func (s *Session) handleMouse(ev control.MouseEvent) {
	geo := s.surface.Geometry()
	inside := geo.Contains(ev.Local)
	custom := s.device.IsCurrentCustomKeymap()

	switch ev.Type {
	case control.MousePress:
		if !custom && ev.Button == control.Middle {
			s.device.PostGoHome()
			return
		}
		if !custom && ev.Button == control.Right {
			s.device.PostGoBack()
			return
		}
		if !inside {
			return
		}
	case control.MouseRelease:
		// Forwarded from anywhere so the device sees every press end.
	case control.MouseMove:
		if !inside || (s.rawActive && s.grabbed) {
			return
		}
	case control.MouseDoubleClick:
		if !custom && ev.Button == control.Right {
			s.device.PostGoBack()
		}
		if !inside {
			return
		}
	}

	ev.Local = s.viewportPoint(ev.Local, geo)
	frame, show := s.eventSizes()
	s.device.MouseEvent(ev, frame, show)
}

// viewportPoint maps a window point into surface space and clamps it into
// the letterbox viewport the frame is drawn in.
func (s *Session) viewportPoint(p geom.PointF, geo geom.Rect) geom.PointF {
	return geom.ClampToViewport(geom.ToDeviceSpace(p, geo), s.surface.Size(), s.currentFrame())
}

func (s *Session) mapToScreen() bool {
	return s.store.View().MapToScreenActive()
}

func (s *Session) currentFrame() geom.Size {
	if s.frameSize.Valid() {
		return s.frameSize
	}
	return s.surface.FrameSize()
}

// eventSizes returns the frame and show size that accompany every
// forwarded event. While the surface has no area the frame size stands in
// for the show size.
func (s *Session) eventSizes() (frame, show geom.Size) {
	current := s.currentFrame()
	return geom.EventFrameSize(s.mapToScreen(), current), geom.EventShowSize(s.surface.Size(), current)
}

func (s *Session) trackerState() orientation.State {
	return orientation.State{
		Serial:      s.serial,
		FrameSize:   s.frameSize,
		MapToScreen: s.mapToScreen(),
	}
}
