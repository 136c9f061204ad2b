// Package tuning loads the relative-look parameters and view settings from
// the live-edited userdata.ini store and watches it for changes.
package tuning

import (
	"math"

	"github.com/mirrorctl/relook/motion"
)

// Keys read from the store. Each may appear in the [common] section or in
// a section named after the device serial.
const (
	CommonSection = "common"

	KeyVideoEnabled   = "VideoEnabled"
	KeyCenterCropSize = "VideoCenterCropSize"
	KeyMapToScreen    = "VideoCenterCropMapToScreen"
	KeyRawInput       = "RelativeLookRawInput"
	KeySendHz         = "RelativeLookSendHz"
	KeyRawScale       = "RelativeLookRawScale"
	KeyRecoilStrength = "RelativeLookRecoilStrength"
)

// Bounds and defaults of the relative-look parameters.
const (
	DefaultEnabled        = true
	DefaultSendHz         = 240
	MinSendHz             = 60
	MaxSendHz             = 1000
	DefaultScale          = 12.0
	MinScale              = 0.1
	MaxScale              = 50.0
	DefaultRecoilStrength = 0.0
)

// InputTuning is the relative-look configuration. Every field is always
// within its bounds.
type InputTuning struct {
	Enabled        bool
	SendHz         int
	Scale          float64
	RecoilStrength float64
}

// Defaults returns the tuning used when nothing is configured.
func Defaults() InputTuning {
	return InputTuning{
		Enabled:        DefaultEnabled,
		SendHz:         DefaultSendHz,
		Scale:          DefaultScale,
		RecoilStrength: DefaultRecoilStrength,
	}
}

// Motion returns the dispatcher parameters.
func (t InputTuning) Motion() motion.Tuning {
	return motion.Tuning{SendHz: t.SendHz, Scale: t.Scale, RecoilStrength: t.RecoilStrength}
}

// ClampSendHz bounds a send rate to [MinSendHz, MaxSendHz].
func ClampSendHz(hz int) int {
	return min(max(hz, MinSendHz), MaxSendHz)
}

// ClampScale bounds a scale to [MinScale, MaxScale]; non-finite values
// become the default.
func ClampScale(s float64) float64 {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return DefaultScale
	}
	return min(max(s, MinScale), MaxScale)
}

// ClampRecoil makes a recoil strength non-negative; non-finite values
// become the default.
func ClampRecoil(r float64) float64 {
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return DefaultRecoilStrength
	}
	return max(r, 0)
}

// ViewSettings controls how the mirrored view maps onto the device.
type ViewSettings struct {
	VideoEnabled   bool
	CenterCropSize int
	MapToScreen    bool
}

// DefaultView returns the view settings used when nothing is configured.
func DefaultView() ViewSettings {
	return ViewSettings{VideoEnabled: true}
}

// MapToScreenActive reports whether forwarded input is expressed in the
// remote-scaled logical frame rather than the stream frame.
func (v ViewSettings) MapToScreenActive() bool {
	return v.VideoEnabled && v.CenterCropSize > 0 && v.MapToScreen
}

// Snapshot identifies a loaded file version. ModifiedMs is -1 when the file
// did not exist.
type Snapshot struct {
	Path       string
	ModifiedMs int64
}
