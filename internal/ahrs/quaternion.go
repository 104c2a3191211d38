package ahrs

import (
	"fmt"
	"math"
)

// Quaternion is a rotation quaternion in (w, x, y, z) order representing the
// sensor-frame-to-lab-frame rotation. Filter output quaternions are kept
// unit-norm after every update.
type Quaternion [4]float64

// Identity is the no-rotation quaternion.
var Identity = Quaternion{1, 0, 0, 0}

func (q Quaternion) Norm() float64 {
	return math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
}

// Normalized coerces q to unit norm. A degenerate (zero or non-finite)
// quaternion cannot represent an orientation and is rejected.
func (q Quaternion) Normalized() (Quaternion, error) {
	for i, c := range q {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return Quaternion{}, fmt.Errorf("ahrs: quaternion component %d is not finite", i)
		}
	}
	n := q.Norm()
	if n == 0 {
		return Quaternion{}, fmt.Errorf("ahrs: zero-norm quaternion")
	}
	return Quaternion{q[0] / n, q[1] / n, q[2] / n, q[3] / n}, nil
}

// Rotate applies the rotation encoded by q to a sensor-frame vector,
// yielding its lab-frame image.
func (q Quaternion) Rotate(v [3]float64) [3]float64 {
	w, x, y, z := q[0], q[1], q[2], q[3]
	return [3]float64{
		(1-2*(y*y+z*z))*v[0] + 2*(x*y-w*z)*v[1] + 2*(x*z+w*y)*v[2],
		2*(x*y+w*z)*v[0] + (1-2*(x*x+z*z))*v[1] + 2*(y*z-w*x)*v[2],
		2*(x*z-w*y)*v[0] + 2*(y*z+w*x)*v[1] + (1-2*(x*x+y*y))*v[2],
	}
}
