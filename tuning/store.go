package tuning

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/ini.v1"
)

// PathFunc resolves the current location of the store.
type PathFunc func() string

// StaticPath always resolves to p.
func StaticPath(p string) PathFunc { return func() string { return p } }

// Store reads InputTuning and ViewSettings with per-device override over
// [common] over the built-in defaults.
//
// Store is not safe for concurrent use; it is owned by the session loop.
type Store struct {
	resolve PathFunc
	logger  *slog.Logger
	serial  string

	loaded bool
	snap   Snapshot
	tuning InputTuning
	view   ViewSettings
	parses int
}

// NewStore creates a store that resolves its file through resolve.
func NewStore(resolve PathFunc, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		resolve: resolve,
		logger:  logger,
		tuning:  Defaults(),
		view:    DefaultView(),
	}
}

// SetSerial selects the device section used for overrides. The next Reload
// re-parses even if the file is unchanged.
func (s *Store) SetSerial(serial string) {
	serial = strings.TrimSpace(serial)
	if serial == s.serial {
		return
	}
	s.serial = serial
	s.Invalidate()
}

// Serial returns the device section currently used for overrides.
func (s *Store) Serial() string { return s.serial }

// Invalidate forgets the loaded snapshot.
func (s *Store) Invalidate() { s.loaded = false }

// Tuning returns the last loaded tuning.
func (s *Store) Tuning() InputTuning { return s.tuning }

// View returns the last loaded view settings.
func (s *Store) View() ViewSettings { return s.view }

// Snapshot returns the identity of the last loaded file version.
func (s *Store) Snapshot() Snapshot { return s.snap }

// Parses counts how often the file was actually parsed.
func (s *Store) Parses() int { return s.parses }

// Path resolves the store location now.
func (s *Store) Path() string { return s.resolve() }

// Reload re-reads the store unless the resolved path and its modification
// time match the previous load. It reports whether a parse happened.
// Unreadable files and values never fail: they resolve to defaults.
func (s *Store) Reload() (InputTuning, bool) {
	path := s.resolve()
	snap := Snapshot{Path: path, ModifiedMs: modifiedMs(path)}
	if s.loaded && snap == s.snap {
		return s.tuning, false
	}

	cfg, err := load(path)
	if err != nil {
		s.logger.Warn("tuning store unreadable, using defaults", "path", path, "error", err)
		cfg = ini.Empty()
	}
	s.parses++

	r := resolver{cfg: cfg, serial: s.serial}
	s.view = r.view()
	s.tuning = r.tuning()
	s.snap = snap
	s.loaded = true

	source := CommonSection
	if s.serial != "" {
		source = s.serial
	}
	s.logger.Info("relative look config loaded",
		"rawInput", s.tuning.Enabled,
		"sendHz", s.tuning.SendHz,
		"rawScale", s.tuning.Scale,
		"recoil", s.tuning.RecoilStrength,
		"mapToScreen", s.view.MapToScreenActive(),
		"source", source)
	return s.tuning, true
}

func modifiedMs(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return -1
	}
	return fi.ModTime().UnixMilli()
}

func load(path string) (*ini.File, error) {
	if path == "" {
		return ini.Empty(), nil
	}
	cfg, err := ini.LoadSources(ini.LoadOptions{
		Loose:                   true,
		SkipUnrecognizableLines: true,
	}, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ini.Empty(), nil
		}
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

type resolver struct {
	cfg    *ini.File
	serial string
}

// deviceKey returns the per-device key if the device section carries it.
func (r resolver) deviceKey(name string) *ini.Key {
	if r.serial == "" {
		return nil
	}
	sec, err := r.cfg.GetSection(r.serial)
	if err != nil || !sec.HasKey(name) {
		return nil
	}
	return sec.Key(name)
}

func (r resolver) commonKey(name string) *ini.Key {
	sec, err := r.cfg.GetSection(CommonSection)
	if err != nil || !sec.HasKey(name) {
		return nil
	}
	return sec.Key(name)
}

// pick returns the key of the highest tier that carries name.
func (r resolver) pick(name string) *ini.Key {
	if k := r.deviceKey(name); k != nil {
		return k
	}
	return r.commonKey(name)
}

func (r resolver) boolValue(name string, def bool) bool {
	k := r.pick(name)
	if k == nil {
		return def
	}
	v, err := k.Bool()
	if err != nil {
		return def
	}
	return v
}

func (r resolver) intValue(name string, def int) int {
	k := r.pick(name)
	if k == nil {
		return def
	}
	v, err := k.Int()
	if err != nil {
		return def
	}
	return v
}

func (r resolver) floatValue(name string, def float64) float64 {
	k := r.pick(name)
	if k == nil {
		return def
	}
	v, err := k.Float64()
	if err != nil {
		return def
	}
	return v
}

func (r resolver) tuning() InputTuning {
	return InputTuning{
		Enabled:        r.boolValue(KeyRawInput, DefaultEnabled),
		SendHz:         ClampSendHz(r.intValue(KeySendHz, DefaultSendHz)),
		Scale:          ClampScale(r.floatValue(KeyRawScale, DefaultScale)),
		RecoilStrength: ClampRecoil(r.floatValue(KeyRecoilStrength, DefaultRecoilStrength)),
	}
}

func (r resolver) view() ViewSettings {
	v := DefaultView()
	// VideoEnabled is only read from [common].
	if k := r.commonKey(KeyVideoEnabled); k != nil {
		if b, err := k.Bool(); err == nil {
			v.VideoEnabled = b
		}
	}
	v.CenterCropSize = r.cropSize()
	v.MapToScreen = r.boolValue(KeyMapToScreen, false)
	return v
}

// cropSize falls back to [common] when the device value does not parse.
func (r resolver) cropSize() int {
	if k := r.deviceKey(KeyCenterCropSize); k != nil {
		if v, err := k.Int(); err == nil {
			return v
		}
	}
	if k := r.commonKey(KeyCenterCropSize); k != nil {
		if v, err := k.Int(); err == nil {
			return v
		}
	}
	return 0
}
