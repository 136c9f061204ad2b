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
	"time"

	"github.com/mirrorctl/relook/assist"
	"github.com/mirrorctl/relook/geom"
	"github.com/mirrorctl/relook/internal/configpaths"
	"github.com/mirrorctl/relook/internal/log"
	"github.com/mirrorctl/relook/orientation"
	"github.com/mirrorctl/relook/rawinput"
	"github.com/mirrorctl/relook/session"
	"github.com/mirrorctl/relook/transport"
	"github.com/mirrorctl/relook/tuning"
)

// RawConfig selects the raw pointer source.
type RawConfig struct {
	Device string `help:"evdev node to capture relative motion from, e.g. /dev/input/event5" env:"RELOOK_RAW_DEVICE"`
}

// AssistConfig configures the assist channel receiver.
type AssistConfig struct {
	Addr string `help:"Assist channel listen address; empty disables the channel" default:"127.0.0.1:12345" env:"RELOOK_ASSIST_ADDR"`
}

// AdbConfig locates adb.
type AdbConfig struct {
	Path string `help:"adb executable (default: adb from PATH)" env:"RELOOK_ADB_PATH"`
}

// TuningConfig locates the tuning store.
type TuningConfig struct {
	Path  string `help:"Tuning store (default: config/userdata.ini next to the executable, or in $RELOOK_CONFIG_PATH)" env:"RELOOK_TUNING_PATH"`
	Watch bool   `help:"Reload the tuning store when it changes" default:"true" negatable:"" env:"RELOOK_TUNING_WATCH"`
}

func (c TuningConfig) resolver() tuning.PathFunc {
	if c.Path != "" {
		return tuning.StaticPath(c.Path)
	}
	return configpaths.DefaultTuningPath
}

type Run struct {
	Serial         string        `help:"Device serial used for adb and per-device tuning" env:"RELOOK_SERIAL"`
	Connect        string        `help:"Control link address (host:port); empty discards control messages" env:"RELOOK_CONNECT"`
	Password       string        `help:"Control link password" env:"RELOOK_PASSWORD"`
	DialTimeout    time.Duration `help:"Control link dial timeout" default:"5s" env:"RELOOK_DIAL_TIMEOUT"`
	Frame          string        `help:"Decoded frame size WxH" default:"1080x1920" env:"RELOOK_FRAME"`
	Show           string        `help:"On-screen surface size WxH (default: the frame size)" env:"RELOOK_SHOW"`
	Grab           bool          `help:"Grab the cursor at start" env:"RELOOK_GRAB"`
	CustomKeymap   bool          `help:"Start in custom key-mapping mode" env:"RELOOK_CUSTOM_KEYMAP"`
	StatusInterval time.Duration `help:"Log the session status at this interval; 0 to disable" default:"0s" env:"RELOOK_STATUS_INTERVAL"`

	Raw    RawConfig    `embed:"" prefix:"raw."`
	Assist AssistConfig `embed:"" prefix:"assist."`
	Adb    AdbConfig    `embed:"" prefix:"adb."`
	Tuning TuningConfig `embed:"" prefix:"tuning."`
}

// Run is called by Kong when the run command is executed.
func (r *Run) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return r.Start(ctx, logger, rawLogger)
}

// Start runs a session until ctx is done or the control link closes.
func (r *Run) Start(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	frame, err := geom.ParseSize(r.Frame)
	if err != nil {
		return err
	}
	show, err := geom.ParseSize(r.Show)
	if err != nil {
		return err
	}
	if show.Empty() {
		show = frame
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var link io.Writer = io.Discard
	if r.Connect != "" {
		conn, err := r.dial(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()
		link = conn
		go func() {
			// The device side may send clipboard and ack messages; they are not used.
			_, _ = io.Copy(io.Discard, conn)
			logger.Info("control link closed", "addr", r.Connect)
			cancel()
		}()
		logger.Info("control link connected", "addr", r.Connect, "secure", r.Password != "")
	} else {
		logger.Warn("no control link configured, control messages are discarded")
	}

	dev := transport.NewDevice(r.Serial, link, logger, rawLogger)
	dev.SetCustomKeymap(r.CustomKeymap)

	opts := session.Options{
		Device:       dev,
		Surface:      newHeadlessSurface(frame, show),
		Store:        tuning.NewStore(r.Tuning.resolver(), logger),
		Prober:       orientation.ExecProber{Path: r.Adb.Path},
		Logger:       logger,
		Raw:          rawLogger,
		DisableWatch: !r.Tuning.Watch,
	}
	if r.Raw.Device != "" {
		opts.Source = rawinput.New(r.Raw.Device, logger)
	}
	if r.Assist.Addr != "" {
		pc, err := assist.Listen(ctx, r.Assist.Addr)
		if err != nil {
			logger.Warn("assist channel unavailable", "addr", r.Assist.Addr, "error", err)
		} else {
			opts.Assist = pc
		}
	}

	sess, err := session.New(opts)
	if err != nil {
		if opts.Assist != nil {
			_ = opts.Assist.Close()
		}
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- sess.Run(ctx) }()

	sess.OnFrame(frame.W, frame.H)
	if r.Grab {
		sess.GrabCursor(true)
	}
	logger.Info("session running", "serial", r.Serial, "frame", frame, "show", show, "grab", r.Grab)

	if r.StatusInterval > 0 {
		go r.logStatus(ctx, sess, logger)
	}

	select {
	case <-ctx.Done():
	case <-sess.Done():
	}
	sess.Close()
	return <-errCh
}

func (r *Run) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: r.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", r.Connect)
	if err != nil {
		return nil, fmt.Errorf("dial control link %s: %w", r.Connect, err)
	}
	if r.Password == "" {
		return conn, nil
	}
	secured, err := transport.Secure(conn, r.Password, true)
	if err != nil {
		_ = conn.Close()
		if errors.Is(err, transport.ErrUnauthorized) {
			return nil, fmt.Errorf("control link %s rejected the password", r.Connect)
		}
		return nil, fmt.Errorf("secure control link: %w", err)
	}
	return secured, nil
}

func (r *Run) logStatus(ctx context.Context, sess *session.Session, logger *slog.Logger) {
	t := time.NewTicker(r.StatusInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.Done():
			return
		case <-t.C:
			st := sess.Status()
			logger.Info("session status",
				"grabbed", st.Grabbed,
				"rawActive", st.RawActive,
				"cursor", fmt.Sprintf("%.1f,%.1f", st.Cursor.X, st.Cursor.Y),
				"frame", st.FrameSize,
				"mapToScreen", st.MapToScreen,
				"polling", st.Polling,
				"orientation", st.Anchor.Value)
		}
	}
}

// headlessSurface stands in for the video widget when relook runs without
// a window: the surface fills a window of the show size.
type headlessSurface struct {
	mu    sync.Mutex
	frame geom.Size
	show  geom.Size
}

func newHeadlessSurface(frame, show geom.Size) *headlessSurface {
	return &headlessSurface{frame: frame, show: show}
}

func (s *headlessSurface) FrameSize() geom.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

func (s *headlessSurface) SetFrameSize(size geom.Size) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A rotation keeps the window area and swaps its orientation.
	if (size.W > size.H) != (s.show.W > s.show.H) {
		s.show = s.show.Transposed()
	}
	s.frame = size
}

func (s *headlessSurface) Size() geom.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.show
}

func (s *headlessSurface) Geometry() geom.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return geom.Rect{W: s.show.W, H: s.show.H}
}
