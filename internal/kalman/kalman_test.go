package kalman

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("non-positive sample period is rejected", func(t *testing.T) {
		t.Parallel()
		_, err := New(Config{Dt: 0})
		assert.Error(t, err)
		_, err = New(Config{Dt: -0.1})
		assert.Error(t, err)
	})

	t.Run("reset requires a positive period", func(t *testing.T) {
		t.Parallel()
		_, err := New(Config{Dt: 0.1, Reset: true})
		assert.Error(t, err)
		_, err = New(Config{Dt: 0.1, Reset: true, TimePeriod: 1})
		assert.NoError(t, err)
	})
}

func TestStepZeroNoise(t *testing.T) {
	t.Parallel()

	t.Run("zero acceleration does not drift", func(t *testing.T) {
		t.Parallel()
		k, err := New(Config{Dt: 0.1})
		require.NoError(t, err)
		for i := 1; i <= 100; i++ {
			state, err := k.Step(float64(i)*0.1, [3]float64{}, [3]float64{})
			require.NoError(t, err)
			assert.Equal(t, [6]float64{}, state)
		}
	})

	t.Run("constant acceleration double-integrates", func(t *testing.T) {
		t.Parallel()
		dt := 0.1
		k, err := New(Config{Dt: dt})
		require.NoError(t, err)

		// With zero noise the gain is zero: the estimate is the pure
		// prediction x += v dt + a dt^2/2, v += a dt.
		var state [6]float64
		for i := 1; i <= 10; i++ {
			state, err = k.Step(float64(i)*dt, [3]float64{1, 0, 0}, [3]float64{})
			require.NoError(t, err)
		}
		assert.InDelta(t, 1.0, state[3], 1e-12)  // vx after 10 steps
		assert.InDelta(t, 0.5, state[0], 1e-12)  // x after 10 steps
		assert.InDelta(t, 0, state[1], 1e-12)
		assert.InDelta(t, 0, state[4], 1e-12)
	})
}

func TestStepMeasurementPull(t *testing.T) {
	t.Parallel()

	// With nonzero measurement noise the position pseudo-measurement (zero)
	// pulls the estimate below the pure prediction.
	withR, err := New(Config{
		Dt:               0.1,
		ProcessNoise:     [6]float64{1, 1, 1, 1, 1, 1},
		MeasurementNoise: [6]float64{1, 1, 1, 1, 1, 1},
	})
	require.NoError(t, err)
	pure, err := New(Config{Dt: 0.1})
	require.NoError(t, err)

	var filtered, predicted [6]float64
	for i := 1; i <= 20; i++ {
		ts := float64(i) * 0.1
		filtered, err = withR.Step(ts, [3]float64{1, 0, 0}, [3]float64{})
		require.NoError(t, err)
		predicted, err = pure.Step(ts, [3]float64{1, 0, 0}, [3]float64{})
		require.NoError(t, err)
	}
	assert.Less(t, filtered[0], predicted[0])
	assert.Greater(t, filtered[3], 0.0)
}

func TestPeriodicZeroing(t *testing.T) {
	t.Parallel()

	dt := 0.1
	k, err := New(Config{Dt: dt, Reset: true, TimePeriod: 1.0})
	require.NoError(t, err)

	var state [6]float64
	for i := 1; i <= 10; i++ {
		state, err = k.Step(float64(i)*dt, [3]float64{1, 0, 0}, [3]float64{})
		require.NoError(t, err)
	}
	// t=1.0 is not beyond the boundary yet.
	assert.Greater(t, state[0], 0.0)
	assert.Greater(t, state[3], 0.0)

	// The first sample past the boundary is zeroed after its update.
	state, err = k.Step(1.1, [3]float64{1, 0, 0}, [3]float64{})
	require.NoError(t, err)
	assert.Equal(t, [6]float64{}, state)

	// Accumulation restarts until the next boundary.
	state, err = k.Step(1.2, [3]float64{1, 0, 0}, [3]float64{})
	require.NoError(t, err)
	assert.Greater(t, state[3], 0.0)
}

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("length mismatch is rejected", func(t *testing.T) {
		t.Parallel()
		k, err := New(Config{Dt: 0.1})
		require.NoError(t, err)
		err = k.Run([]float64{0, 0.1}, make([][3]float64, 3), nil, make([][6]float64, 2))
		assert.Error(t, err)
	})

	t.Run("first entry keeps the initial state", func(t *testing.T) {
		t.Parallel()
		k, err := New(Config{Dt: 0.1})
		require.NoError(t, err)
		n := 5
		ts := make([]float64, n)
		acc := make([][3]float64, n)
		out := make([][6]float64, n)
		for i := range ts {
			ts[i] = float64(i) * 0.1
			acc[i] = [3]float64{0, 1, 0}
		}
		require.NoError(t, k.Run(ts, acc, nil, out))
		assert.Equal(t, [6]float64{}, out[0])
		assert.Greater(t, out[n-1][4], 0.0)
	})
}
