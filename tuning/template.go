package tuning

import (
	"fmt"
	"strconv"

	"gopkg.in/ini.v1"
)

// Template builds a store with the [common] defaults and, if serial is not
// empty, a device section overriding the relative-look keys with the same
// values.
func Template(serial string) (*ini.File, error) {
	cfg := ini.Empty()
	def := Defaults()
	view := DefaultView()

	common, err := cfg.NewSection(CommonSection)
	if err != nil {
		return nil, err
	}
	pairs := []struct{ key, value string }{
		{KeyVideoEnabled, strconv.FormatBool(view.VideoEnabled)},
		{KeyCenterCropSize, strconv.Itoa(view.CenterCropSize)},
		{KeyMapToScreen, strconv.FormatBool(view.MapToScreen)},
		{KeyRawInput, strconv.FormatBool(def.Enabled)},
		{KeySendHz, strconv.Itoa(def.SendHz)},
		{KeyRawScale, strconv.FormatFloat(def.Scale, 'f', -1, 64)},
		{KeyRecoilStrength, strconv.FormatFloat(def.RecoilStrength, 'f', -1, 64)},
	}
	for _, p := range pairs {
		if _, err := common.NewKey(p.key, p.value); err != nil {
			return nil, fmt.Errorf("key %s: %w", p.key, err)
		}
	}
	common.Key(KeySendHz).Comment = fmt.Sprintf("; %d..%d", MinSendHz, MaxSendHz)
	common.Key(KeyRawScale).Comment = fmt.Sprintf("; %g..%g", MinScale, MaxScale)

	if serial == "" {
		return cfg, nil
	}
	dev, err := cfg.NewSection(serial)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs[3:] {
		if _, err := dev.NewKey(p.key, p.value); err != nil {
			return nil, fmt.Errorf("key %s: %w", p.key, err)
		}
	}
	return cfg, nil
}

// WriteTemplate saves Template(serial) to path.
func WriteTemplate(path, serial string) error {
	cfg, err := Template(serial)
	if err != nil {
		return err
	}
	if err := cfg.SaveTo(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
