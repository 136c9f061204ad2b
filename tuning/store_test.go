package tuning_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mirrorctl/relook/tuning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/ini.v1"
)

func writeStore(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReloadResolvesValues(t *testing.T) {
	type testCase struct {
		name     string
		serial   string
		content  string
		expected tuning.InputTuning
	}
	testCases := []testCase{
		{
			name:     "missing keys use defaults",
			content:  "[common]\n",
			expected: tuning.Defaults(),
		},
		{
			name: "common values",
			content: `[common]
RelativeLookRawInput=false
RelativeLookSendHz=500
RelativeLookRawScale=3.5
RelativeLookRecoilStrength=0.75
`,
			expected: tuning.InputTuning{Enabled: false, SendHz: 500, Scale: 3.5, RecoilStrength: 0.75},
		},
		{
			name:   "device overrides common",
			serial: "R58M12345",
			content: `[common]
RelativeLookSendHz=500
RelativeLookRawScale=3.5
[R58M12345]
RelativeLookSendHz=120
`,
			expected: tuning.InputTuning{Enabled: true, SendHz: 120, Scale: 3.5, RecoilStrength: 0},
		},
		{
			name:   "other device section ignored",
			serial: "emulator-5554",
			content: `[common]
RelativeLookSendHz=500
[R58M12345]
RelativeLookSendHz=120
`,
			expected: tuning.InputTuning{Enabled: true, SendHz: 500, Scale: 12, RecoilStrength: 0},
		},
		{
			name: "out of range values clamp",
			content: `[common]
RelativeLookSendHz=5000
RelativeLookRawScale=0.01
RelativeLookRecoilStrength=-3
`,
			expected: tuning.InputTuning{Enabled: true, SendHz: 1000, Scale: 0.1, RecoilStrength: 0},
		},
		{
			name: "low send rate clamps",
			content: `[common]
RelativeLookSendHz=10
RelativeLookRawScale=80
`,
			expected: tuning.InputTuning{Enabled: true, SendHz: 60, Scale: 50, RecoilStrength: 0},
		},
		{
			name: "unparsable values use defaults",
			content: `[common]
RelativeLookRawInput=maybe
RelativeLookSendHz=fast
RelativeLookRawScale=big
RelativeLookRecoilStrength=NaN
`,
			expected: tuning.Defaults(),
		},
		{
			name:   "unparsable device value uses default, not common",
			serial: "dev",
			content: `[common]
RelativeLookRawScale=3
[dev]
RelativeLookRawScale=abc
`,
			expected: tuning.InputTuning{Enabled: true, SendHz: 240, Scale: 12, RecoilStrength: 0},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "userdata.ini")
			writeStore(t, path, tc.content)

			s := tuning.NewStore(tuning.StaticPath(path), nil)
			s.SetSerial(tc.serial)
			got, parsed := s.Reload()
			assert.True(t, parsed)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestReloadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.ini")
	s := tuning.NewStore(tuning.StaticPath(path), nil)

	got, parsed := s.Reload()
	assert.True(t, parsed)
	assert.Equal(t, tuning.Defaults(), got)
	assert.Equal(t, tuning.Snapshot{Path: path, ModifiedMs: -1}, s.Snapshot())

	_, parsed = s.Reload()
	assert.False(t, parsed, "a still-missing file is an unchanged snapshot")
}

func TestReloadIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "userdata.ini")
	writeStore(t, path, "[common]\nRelativeLookSendHz=300\n")
	mtime := time.Now().Add(-time.Minute).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	s := tuning.NewStore(tuning.StaticPath(path), nil)
	first, parsed := s.Reload()
	require.True(t, parsed)
	require.Equal(t, 1, s.Parses())

	second, parsed := s.Reload()
	assert.False(t, parsed)
	assert.Equal(t, 1, s.Parses(), "unchanged file must not be parsed again")
	assert.Equal(t, first, second)

	writeStore(t, path, "[common]\nRelativeLookSendHz=400\n")
	later := mtime.Add(10 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	third, parsed := s.Reload()
	assert.True(t, parsed)
	assert.Equal(t, 2, s.Parses())
	assert.Equal(t, 400, third.SendHz)
}

func TestSetSerialInvalidatesSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "userdata.ini")
	writeStore(t, path, "[common]\nRelativeLookSendHz=300\n[phone]\nRelativeLookSendHz=90\n")

	s := tuning.NewStore(tuning.StaticPath(path), nil)
	got, _ := s.Reload()
	assert.Equal(t, 300, got.SendHz)

	s.SetSerial("phone")
	got, parsed := s.Reload()
	assert.True(t, parsed)
	assert.Equal(t, 90, got.SendHz)

	s.SetSerial("phone")
	_, parsed = s.Reload()
	assert.False(t, parsed, "same serial keeps the snapshot")
}

func TestViewSettings(t *testing.T) {
	type testCase struct {
		name     string
		serial   string
		content  string
		expected bool
	}
	testCases := []testCase{
		{name: "defaults", content: "", expected: false},
		{
			name:     "all enabled in common",
			content:  "[common]\nVideoCenterCropSize=720\nVideoCenterCropMapToScreen=true\n",
			expected: true,
		},
		{
			name:     "video disabled",
			content:  "[common]\nVideoEnabled=false\nVideoCenterCropSize=720\nVideoCenterCropMapToScreen=true\n",
			expected: false,
		},
		{
			name:     "video enabled is not a device key",
			serial:   "d1",
			content:  "[common]\nVideoEnabled=false\nVideoCenterCropSize=720\nVideoCenterCropMapToScreen=true\n[d1]\nVideoEnabled=true\n",
			expected: false,
		},
		{
			name:     "device enables map to screen",
			serial:   "d1",
			content:  "[common]\nVideoCenterCropSize=720\n[d1]\nVideoCenterCropMapToScreen=true\n",
			expected: true,
		},
		{
			name:     "device crop size falls back to common when unparsable",
			serial:   "d1",
			content:  "[common]\nVideoCenterCropSize=720\nVideoCenterCropMapToScreen=true\n[d1]\nVideoCenterCropSize=wide\n",
			expected: true,
		},
		{
			name:     "device disables crop",
			serial:   "d1",
			content:  "[common]\nVideoCenterCropSize=720\nVideoCenterCropMapToScreen=true\n[d1]\nVideoCenterCropSize=0\n",
			expected: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "userdata.ini")
			writeStore(t, path, tc.content)
			s := tuning.NewStore(tuning.StaticPath(path), nil)
			s.SetSerial(tc.serial)
			s.Reload()
			assert.Equal(t, tc.expected, s.View().MapToScreenActive())
		})
	}
}

func TestTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "userdata.ini")
	require.NoError(t, tuning.WriteTemplate(path, "R58M"))

	cfg, err := ini.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "240", cfg.Section("common").Key(tuning.KeySendHz).String())
	assert.True(t, cfg.Section("R58M").HasKey(tuning.KeyRawScale))
	assert.False(t, cfg.Section("R58M").HasKey(tuning.KeyVideoEnabled))

	s := tuning.NewStore(tuning.StaticPath(path), nil)
	s.SetSerial("R58M")
	got, _ := s.Reload()
	assert.Equal(t, tuning.Defaults(), got)
}
