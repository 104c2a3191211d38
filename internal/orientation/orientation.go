package orientation

import (
	"math"

	"github.com/relabs-tech/imu_fusion/internal/ahrs"
)

// Pose is the canonical representation of orientation for consumers
// (console, MQTT, web view).
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Source is anything that can provide poses over time: a replayed fusion
// history, a mock source, etc.
type Source interface {
	Next() (Pose, error)
}

// FromQuaternion converts a fused orientation quaternion to ZYX Euler
// angles in degrees.
func FromQuaternion(q ahrs.Quaternion) Pose {
	w, x, y, z := q[0], q[1], q[2], q[3]

	rollRad := math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))

	// Clamp against rounding at the poles.
	sinp := 2 * (w*y - z*x)
	if sinp > 1 {
		sinp = 1
	} else if sinp < -1 {
		sinp = -1
	}
	pitchRad := math.Asin(sinp)

	yawRad := math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))

	const deg = 180 / math.Pi
	return Pose{
		Roll:  rollRad * deg,
		Pitch: pitchRad * deg,
		Yaw:   yawRad * deg,
	}
}
