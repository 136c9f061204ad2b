package motion_test

import (
	"sync"
	"testing"

	"github.com/mirrorctl/relook/motion"
	"github.com/stretchr/testify/assert"
)

func TestAccumulatorDrain(t *testing.T) {
	type add struct {
		assist bool
		dx, dy float64
	}
	type testCase struct {
		name     string
		adds     []add
		expected motion.Delta
	}

	testCases := []testCase{
		{
			name:     "nothing pending",
			expected: motion.Delta{},
		},
		{
			name:     "raw only",
			adds:     []add{{dx: 1, dy: 2}, {dx: 3, dy: -4}},
			expected: motion.Delta{DX: 4, DY: -2},
		},
		{
			name:     "assist only",
			adds:     []add{{assist: true, dx: 1.5, dy: -2.5}},
			expected: motion.Delta{DX: 1.5, DY: -2.5},
		},
		{
			name: "interleaved producers",
			adds: []add{
				{dx: 1, dy: 1},
				{assist: true, dx: 0.25, dy: 0.5},
				{dx: -3, dy: 2},
				{assist: true, dx: 0.75, dy: -0.5},
			},
			expected: motion.Delta{DX: -1, DY: 3},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			acc := motion.NewAccumulator()
			for _, a := range tc.adds {
				if a.assist {
					acc.AddAssist(a.dx, a.dy)
				} else {
					acc.AddRaw(a.dx, a.dy)
				}
			}
			assert.Equal(t, tc.expected, acc.Drain())
			assert.Equal(t, motion.Delta{}, acc.Drain(), "second drain must be empty")
		})
	}
}

func TestAccumulatorReset(t *testing.T) {
	acc := motion.NewAccumulator()
	acc.AddRaw(5, 5)
	acc.AddAssist(1, 1)
	assert.Equal(t, motion.Delta{DX: 6, DY: 6}, acc.Pending())

	acc.Reset()
	assert.True(t, acc.Drain().IsZero())
}

func TestAccumulatorConcurrentProducers(t *testing.T) {
	acc := motion.NewAccumulator()

	const perProducer = 5000
	var wg sync.WaitGroup
	var drained motion.Delta
	var mu sync.Mutex
	stop := make(chan struct{})

	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		for {
			d := acc.Drain()
			mu.Lock()
			drained.DX += d.DX
			drained.DY += d.DY
			mu.Unlock()
			select {
			case <-stop:
				return
			default:
			}
		}
	}()

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < perProducer; i++ {
			acc.AddRaw(1, -1)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < perProducer; i++ {
			acc.AddAssist(2, 0.5)
		}
	}()
	wg.Wait()
	close(stop)
	<-drainDone

	final := acc.Drain()
	mu.Lock()
	defer mu.Unlock()
	// Integer-valued and binary-fraction deltas sum exactly in float64.
	assert.Equal(t, float64(3*perProducer), drained.DX+final.DX)
	assert.Equal(t, float64(-0.5*perProducer), drained.DY+final.DY)
}

func TestAccumulatorDrainKeepsPairs(t *testing.T) {
	acc := motion.NewAccumulator()

	const producers, perProducer = 4, 20000
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := range producers {
		go func() {
			defer wg.Done()
			for range perProducer {
				if p%2 == 0 {
					acc.AddRaw(1, 1)
				} else {
					acc.AddAssist(1, 1)
				}
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var split int
	var total float64
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		d := acc.Drain()
		if d.DX != d.DY {
			split++
		}
		total += d.DX
	}
	total += acc.Drain().DX

	assert.Zero(t, split, "an add is never split across drains")
	assert.Equal(t, float64(producers*perProducer), total)
}
