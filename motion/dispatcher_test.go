package motion_test

import (
	"testing"
	"time"

	"github.com/mirrorctl/relook/control"
	"github.com/mirrorctl/relook/geom"
	th "github.com/mirrorctl/relook/internal/testing"
	"github.com/mirrorctl/relook/motion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testFrame = geom.Size{W: 1080, H: 1920}
	testShow  = geom.Size{W: 540, H: 960}
)

func newDispatcher(t *testing.T, tuning motion.Tuning) (*motion.Dispatcher, *motion.Accumulator, *th.MockDevice) {
	t.Helper()
	acc := motion.NewAccumulator()
	dev := th.CreateMockDevice(t, "emulator-5554")
	sizes := func() (geom.Size, geom.Size) { return testFrame, testShow }
	// Timer ticks are dropped; tests drive Dispatch directly.
	d := motion.NewDispatcher(acc, dev, sizes, func(func()) {}, tuning, nil)
	t.Cleanup(d.Disarm)
	return d, acc, dev
}

func TestPeriod(t *testing.T) {
	type testCase struct {
		hz       int
		expected time.Duration
	}
	testCases := []testCase{
		{hz: 240, expected: 4 * time.Millisecond},
		{hz: 60, expected: 17 * time.Millisecond},
		{hz: 144, expected: 7 * time.Millisecond},
		{hz: 1000, expected: time.Millisecond},
		{hz: 5000, expected: time.Millisecond},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, motion.Period(tc.hz), "hz=%d", tc.hz)
	}
}

func TestArmForcesDispatch(t *testing.T) {
	d, _, dev := newDispatcher(t, motion.Tuning{SendHz: 240, Scale: 12})

	d.Arm()
	require.True(t, d.Armed())

	calls := dev.MouseCalls()
	require.Len(t, calls, 1, "arming emits one event even without motion")
	assert.Equal(t, control.MouseMove, calls[0].Event.Type)
	assert.True(t, calls[0].Event.Synthetic())
	assert.Equal(t, geom.PointF{}, calls[0].Event.Local)
	assert.Equal(t, testFrame, calls[0].FrameSize)
	assert.Equal(t, testShow, calls[0].ShowSize)
}

func TestDispatchCoalescesZeroMotion(t *testing.T) {
	d, acc, dev := newDispatcher(t, motion.Tuning{SendHz: 240, Scale: 12})
	d.Arm()

	assert.False(t, d.Dispatch(false))
	acc.AddRaw(2, -2)
	acc.AddAssist(-2, 2)
	assert.False(t, d.Dispatch(false), "motion that cancels out is not sent")
	assert.Len(t, dev.MouseCalls(), 1)
}

func TestDispatchIntegratesCursor(t *testing.T) {
	d, acc, dev := newDispatcher(t, motion.Tuning{SendHz: 240, Scale: 2})
	d.Arm()

	acc.AddRaw(1, 1)
	acc.AddAssist(0.5, 0)
	require.True(t, d.Dispatch(false))
	assert.Equal(t, geom.PointF{X: 3, Y: 2}, d.Cursor())

	acc.AddRaw(-4, 0)
	require.True(t, d.Dispatch(false))
	assert.Equal(t, geom.PointF{X: -5, Y: 2}, d.Cursor(), "the virtual cursor is not clamped")

	calls := dev.MouseCalls()
	require.Len(t, calls, 3)
	assert.Equal(t, geom.PointF{X: -5, Y: 2}, calls[2].Event.Local)
	assert.Equal(t, control.SyntheticGlobal, calls[2].Event.Global)
}

func TestDispatchRecoil(t *testing.T) {
	type testCase struct {
		name         string
		recoil       float64
		leftDown     bool
		customKeymap bool
		expectedY    float64
	}
	testCases := []testCase{
		{name: "all conditions", recoil: 1.5, leftDown: true, customKeymap: true, expectedY: 7.5},
		{name: "no recoil", recoil: 0, leftDown: true, customKeymap: true, expectedY: 6},
		{name: "button up", recoil: 1.5, leftDown: false, customKeymap: true, expectedY: 6},
		{name: "plain mode", recoil: 1.5, leftDown: true, customKeymap: false, expectedY: 6},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d, acc, dev := newDispatcher(t, motion.Tuning{SendHz: 240, Scale: 2, RecoilStrength: tc.recoil})
			dev.SetCustomKeymap(tc.customKeymap)
			d.Arm()
			d.SetLeftButton(tc.leftDown)

			acc.AddRaw(0, 3)
			require.True(t, d.Dispatch(false))
			assert.Equal(t, tc.expectedY, d.Cursor().Y)
			assert.Equal(t, 0.0, d.Cursor().X)
		})
	}
}

func TestRecoilAloneEmits(t *testing.T) {
	d, _, dev := newDispatcher(t, motion.Tuning{SendHz: 240, Scale: 2, RecoilStrength: 1})
	dev.SetCustomKeymap(true)
	d.Arm()
	d.SetLeftButton(true)

	assert.True(t, d.Dispatch(false))
	calls := dev.MouseCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, geom.PointF{Y: 1}, calls[1].Event.Local)
	assert.Equal(t, control.Left, calls[1].Event.Buttons)
}

func TestRearmResetsState(t *testing.T) {
	d, acc, dev := newDispatcher(t, motion.Tuning{SendHz: 240, Scale: 1})
	d.Arm()
	d.SetLeftButton(true)
	acc.AddRaw(10, 10)
	require.True(t, d.Dispatch(false))

	d.Disarm()
	assert.False(t, d.Armed())
	assert.False(t, d.LeftButton(), "disarm clears the button latch")
	assert.False(t, d.Dispatch(true), "no dispatch while idle")

	acc.AddRaw(5, 5)
	acc.AddAssist(1, 1)
	d.Arm()
	assert.Equal(t, geom.PointF{}, d.Cursor())
	assert.True(t, acc.Drain().IsZero())

	calls := dev.MouseCalls()
	assert.Equal(t, geom.PointF{}, calls[len(calls)-1].Event.Local)
}

func TestSetTuningKeepsPendingMotion(t *testing.T) {
	d, acc, _ := newDispatcher(t, motion.Tuning{SendHz: 240, Scale: 1})
	d.Arm()

	acc.AddRaw(1, 0)
	d.SetTuning(motion.Tuning{SendHz: 120, Scale: 3})
	require.True(t, d.Dispatch(false))
	assert.Equal(t, geom.PointF{X: 3}, d.Cursor())
	assert.Equal(t, 120, d.Tuning().SendHz)
}

func TestTimerPostsTicks(t *testing.T) {
	acc := motion.NewAccumulator()
	dev := th.CreateMockDevice(t, "serial")
	ticks := make(chan func(), 1)
	post := func(fn func()) { ticks <- fn }
	sizes := func() (geom.Size, geom.Size) { return testFrame, testShow }
	d := motion.NewDispatcher(acc, dev, sizes, post, motion.Tuning{SendHz: 1000, Scale: 1}, nil)

	d.Arm()
	acc.AddRaw(4, 0)

	select {
	case fn := <-ticks:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("no tick posted")
	}
	assert.Equal(t, geom.PointF{X: 4}, d.Cursor())
	require.Len(t, dev.MouseCalls(), 2)

	d.Disarm()
	acc.AddRaw(1, 1)
	// A tick posted before disarm must not dispatch.
	select {
	case fn := <-ticks:
		fn()
	case <-time.After(20 * time.Millisecond):
	}
	assert.Len(t, dev.MouseCalls(), 2)
}
