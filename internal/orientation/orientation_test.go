package orientation

import (
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/imu_fusion/internal/ahrs"
)

func TestFromQuaternion(t *testing.T) {
	t.Parallel()

	h := math.Sqrt(0.5)

	t.Run("identity is zero pose", func(t *testing.T) {
		t.Parallel()
		p := FromQuaternion(ahrs.Identity)
		assert.InDelta(t, 0, p.Roll, 1e-12)
		assert.InDelta(t, 0, p.Pitch, 1e-12)
		assert.InDelta(t, 0, p.Yaw, 1e-12)
	})

	t.Run("quarter turn about x is 90 degrees roll", func(t *testing.T) {
		t.Parallel()
		p := FromQuaternion(ahrs.Quaternion{h, h, 0, 0})
		assert.InDelta(t, 90, p.Roll, 1e-9)
		assert.InDelta(t, 0, p.Yaw, 1e-9)
	})

	t.Run("quarter turn about z is 90 degrees yaw", func(t *testing.T) {
		t.Parallel()
		p := FromQuaternion(ahrs.Quaternion{h, 0, 0, h})
		assert.InDelta(t, 90, p.Yaw, 1e-9)
		assert.InDelta(t, 0, p.Roll, 1e-9)
	})

	t.Run("gimbal pitch is clamped", func(t *testing.T) {
		t.Parallel()
		p := FromQuaternion(ahrs.Quaternion{h, 0, h, 0})
		assert.InDelta(t, 90, p.Pitch, 1e-9)
		assert.False(t, math.IsNaN(p.Roll))
		assert.False(t, math.IsNaN(p.Yaw))
	})
}

func TestHistorySource(t *testing.T) {
	t.Parallel()

	h := math.Sqrt(0.5)
	src := NewHistorySource([]ahrs.Quaternion{
		ahrs.Identity,
		{h, 0, 0, h},
	})

	p, err := src.Next()
	require.NoError(t, err)
	assert.InDelta(t, 0, p.Yaw, 1e-9)

	p, err = src.Next()
	require.NoError(t, err)
	assert.InDelta(t, 90, p.Yaw, 1e-9)

	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestMockSource(t *testing.T) {
	t.Parallel()

	src := NewMockSource()
	p, err := src.Next()
	require.NoError(t, err)
	assert.LessOrEqual(t, math.Abs(p.Roll), 20.0)
	assert.LessOrEqual(t, math.Abs(p.Pitch), 15.0)
	assert.GreaterOrEqual(t, p.Yaw, 0.0)
	assert.Less(t, p.Yaw, 360.0)
}
