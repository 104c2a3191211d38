package calib

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/imu_fusion/internal/ahrs"
)

func TestParamsValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Default.Validate())
	assert.NoError(t, Identity.Validate())
	assert.NoError(t, Params{1, 1, 1, 0, 0, 0}.Validate())

	assert.Error(t, Params{1, 2, 3}.Validate())
	assert.Error(t, Params{1, 1, 1, 0, 0, math.NaN()}.Validate())
	assert.Error(t, Params(nil).Validate())
}

func TestParamsOrientation(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ahrs.Identity, Params{1, 1, 1, 0, 0, 0}.Orientation())
	assert.Equal(t, ahrs.Quaternion{0.5, 0.5, 0.5, 0.5},
		Params{1, 1, 1, 0, 0, 0, 0.5, 0.5, 0.5, 0.5}.Orientation())
}

func TestApply(t *testing.T) {
	t.Parallel()

	data := [][3]float64{{1, 2, 3}, {-4, 0, 9.8}}

	t.Run("nil parameters pass data through", func(t *testing.T) {
		t.Parallel()
		out, err := Apply(data, nil)
		require.NoError(t, err)
		assert.Same(t, &data[0], &out[0])
	})

	t.Run("identity parameters leave values unchanged", func(t *testing.T) {
		t.Parallel()
		out, err := Apply(data, Identity)
		require.NoError(t, err)
		assert.Equal(t, data, out)
	})

	t.Run("scale and bias per axis", func(t *testing.T) {
		t.Parallel()
		out, err := Apply([][3]float64{{1, 1, 1}}, Params{2, 3, 4, 0.1, 0.2, 0.3})
		require.NoError(t, err)
		assert.InDelta(t, 2.1, out[0][0], 1e-12)
		assert.InDelta(t, 3.2, out[0][1], 1e-12)
		assert.InDelta(t, 4.3, out[0][2], 1e-12)
	})

	t.Run("invalid parameters are rejected", func(t *testing.T) {
		t.Parallel()
		_, err := Apply(data, Params{1, 2})
		assert.Error(t, err)
	})
}

func TestResultRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "calibration.json")
	want := Result{
		SchemaVersion: 1,
		Timestamp:     time.Now().UTC(),
		Params:        append(Params(nil), Default...),
		Fitness:       0.0016,
	}
	require.NoError(t, want.Save(path))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want.Params, got)
}

func TestLoadFileErrors(t *testing.T) {
	t.Parallel()

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, Result{Params: Params{1, 2}}.Save(bad))
	_, err = LoadFile(bad)
	assert.Error(t, err)
}

func stationaryEvaluator(n int) *Evaluator {
	e := &Evaluator{
		Intervals: [][2]float64{{0.05, float64(n)*0.01 - 0.05}},
		Gyro:      make([][3]float64, n),
		Acc:       make([][3]float64, n),
		Mag:       make([][3]float64, n),
		TS:        make([]float64, n),
		Gravity:   [3]float64{0, 0, 9.799},
	}
	for i := 0; i < n; i++ {
		e.Acc[i] = [3]float64{0, 0, 9.799}
		e.TS[i] = float64(i) * 0.01
	}
	return e
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	t.Run("identity calibration of stationary data scores near zero", func(t *testing.T) {
		t.Parallel()
		e := stationaryEvaluator(100)
		score, err := e.Evaluate(Identity)
		require.NoError(t, err)
		assert.InDelta(t, 0, score, 1e-9)
	})

	t.Run("a bias error raises the score", func(t *testing.T) {
		t.Parallel()
		e := stationaryEvaluator(100)
		biased := Params{1, 1, 1, 0, 0, 1, 1, 0, 0, 0}
		score, err := e.Evaluate(biased)
		require.NoError(t, err)
		assert.InDelta(t, 1, score, 1e-6)
	})

	t.Run("invalid parameters are rejected", func(t *testing.T) {
		t.Parallel()
		e := stationaryEvaluator(100)
		_, err := e.Evaluate(Params{1})
		assert.Error(t, err)
	})

	t.Run("missing quiet intervals are rejected", func(t *testing.T) {
		t.Parallel()
		e := stationaryEvaluator(100)
		e.Intervals = nil
		_, err := e.Evaluate(Identity)
		assert.Error(t, err)
	})

	t.Run("intervals outside the recording are rejected", func(t *testing.T) {
		t.Parallel()
		e := stationaryEvaluator(100)
		e.Intervals = [][2]float64{{100, 200}}
		_, err := e.Evaluate(Identity)
		assert.Error(t, err)
	})
}
