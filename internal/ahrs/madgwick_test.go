package ahrs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuaternionNormalized(t *testing.T) {
	t.Parallel()

	t.Run("scales to unit norm", func(t *testing.T) {
		t.Parallel()
		q, err := Quaternion{2, 0, 0, 0}.Normalized()
		require.NoError(t, err)
		assert.Equal(t, Identity, q)
	})

	t.Run("zero quaternion is rejected", func(t *testing.T) {
		t.Parallel()
		_, err := Quaternion{}.Normalized()
		assert.Error(t, err)
	})

	t.Run("non-finite components are rejected", func(t *testing.T) {
		t.Parallel()
		_, err := Quaternion{math.NaN(), 0, 0, 0}.Normalized()
		assert.Error(t, err)
		_, err = Quaternion{1, math.Inf(1), 0, 0}.Normalized()
		assert.Error(t, err)
	})
}

func TestQuaternionRotate(t *testing.T) {
	t.Parallel()

	t.Run("identity leaves vectors alone", func(t *testing.T) {
		t.Parallel()
		v := Identity.Rotate([3]float64{1, -2, 3})
		assert.Equal(t, [3]float64{1, -2, 3}, v)
	})

	t.Run("quarter turn about z maps x to y", func(t *testing.T) {
		t.Parallel()
		h := math.Sqrt(0.5)
		q := Quaternion{h, 0, 0, h}
		v := q.Rotate([3]float64{1, 0, 0})
		assert.InDelta(t, 0, v[0], 1e-12)
		assert.InDelta(t, 1, v[1], 1e-12)
		assert.InDelta(t, 0, v[2], 1e-12)
	})
}

func TestUpdateIMU(t *testing.T) {
	t.Parallel()

	t.Run("stationary aligned state is a fixed point", func(t *testing.T) {
		t.Parallel()
		step := Madgwick{Beta: 0.1, Freq: 100}
		q := Identity
		for i := 0; i < 50; i++ {
			q = step.UpdateIMU(q, [3]float64{}, [3]float64{0, 0, 9.799})
		}
		assert.InDelta(t, 1, q[0], 1e-12)
		assert.InDelta(t, 0, q[1], 1e-12)
		assert.InDelta(t, 0, q[2], 1e-12)
		assert.InDelta(t, 0, q[3], 1e-12)
	})

	t.Run("keeps unit norm under arbitrary input", func(t *testing.T) {
		t.Parallel()
		step := Madgwick{Beta: 0.1, Freq: 100}
		q := Identity
		for i := 0; i < 200; i++ {
			q = step.UpdateIMU(q,
				[3]float64{0.3, -0.1, 0.25},
				[3]float64{0.2, -0.4, 9.7})
			assert.InDelta(t, 1, q.Norm(), 1e-9)
		}
	})

	t.Run("converges onto the measured gravity direction", func(t *testing.T) {
		t.Parallel()
		step := Madgwick{Beta: 0.1, Freq: 100}

		// Sensor tilted 30 degrees about x: gravity reads on y and z.
		acc := [3]float64{0, 9.799 * math.Sin(math.Pi / 6), 9.799 * math.Cos(math.Pi / 6)}
		q := Identity
		for i := 0; i < 5000; i++ {
			q = step.UpdateIMU(q, [3]float64{}, acc)
		}

		lab := q.Rotate(acc)
		assert.InDelta(t, 0, lab[0], 0.05)
		assert.InDelta(t, 0, lab[1], 0.05)
		assert.InDelta(t, 9.799, lab[2], 0.05)
	})

	t.Run("zero accelerometer integrates rate only", func(t *testing.T) {
		t.Parallel()
		step := Madgwick{Beta: 0.5, Freq: 100}
		// One step of pure z rotation at 1 rad/s: half-angle dt/2.
		q := step.UpdateIMU(Identity, [3]float64{0, 0, 1}, [3]float64{})
		assert.InDelta(t, math.Cos(0.005), q[0], 1e-6)
		assert.InDelta(t, math.Sin(0.005), q[3], 1e-6)
	})
}

func TestUpdateMARG(t *testing.T) {
	t.Parallel()

	t.Run("zero magnetometer degrades to the IMU update", func(t *testing.T) {
		t.Parallel()
		step := Madgwick{Beta: 0.1, Freq: 100}
		gyro := [3]float64{0.1, 0.2, -0.3}
		acc := [3]float64{0.5, 0.1, 9.7}
		imu := step.UpdateIMU(Identity, gyro, acc)
		marg := step.UpdateMARG(Identity, gyro, acc, [3]float64{})
		assert.Equal(t, imu, marg)
	})

	t.Run("aligned stationary state is a fixed point", func(t *testing.T) {
		t.Parallel()
		step := Madgwick{Beta: 0.1, Freq: 100}
		q := Identity
		// Field in the xz half-plane already matches the reference.
		mag := [3]float64{0.4, 0, -0.3}
		for i := 0; i < 50; i++ {
			q = step.UpdateMARG(q, [3]float64{}, [3]float64{0, 0, 9.799}, mag)
		}
		assert.InDelta(t, 1, q[0], 1e-12)
		assert.InDelta(t, 0, q[1], 1e-12)
		assert.InDelta(t, 0, q[2], 1e-12)
		assert.InDelta(t, 0, q[3], 1e-12)
	})

	t.Run("keeps unit norm under arbitrary input", func(t *testing.T) {
		t.Parallel()
		step := Madgwick{Beta: 0.1, Freq: 100}
		q := Identity
		for i := 0; i < 200; i++ {
			q = step.UpdateMARG(q,
				[3]float64{0.3, -0.1, 0.25},
				[3]float64{0.2, -0.4, 9.7},
				[3]float64{0.3, -0.1, -0.4})
			assert.InDelta(t, 1, q.Norm(), 1e-9)
		}
	})
}

func TestModeString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "IMU", IMU.String())
	assert.Equal(t, "MARG", MARG.String())
	assert.Equal(t, "unknown", Mode(42).String())
}
