package ahrs

import "math"

// Mode selects which sensors the orientation filter consumes.
type Mode int

const (
	// IMU fuses gyroscope and accelerometer only.
	IMU Mode = iota
	// MARG additionally fuses the magnetometer for heading.
	MARG
)

func (m Mode) String() string {
	switch m {
	case IMU:
		return "IMU"
	case MARG:
		return "MARG"
	default:
		return "unknown"
	}
}

// Madgwick is the gradient-descent orientation step.
//
// Each update integrates the angular rate into a quaternion derivative and
// subtracts Beta times the normalized gradient of the gravity (and, in MARG
// mode, magnetic field) alignment objective. The returned quaternion is
// renormalized, so repeated application keeps the estimate on the unit
// sphere.
type Madgwick struct {
	Beta float64 // gradient step gain
	Freq float64 // sample frequency, Hz
}

// UpdateIMU advances the quaternion one step from a gyro (rad/s) and
// accelerometer (m/s^2) reading. An all-zero accelerometer sample carries no
// gravity direction and only the rate integration is applied.
func (m Madgwick) UpdateIMU(q Quaternion, gyro, acc [3]float64) Quaternion {
	qw, qx, qy, qz := q[0], q[1], q[2], q[3]
	gx, gy, gz := gyro[0], gyro[1], gyro[2]

	// Rate of change of quaternion from the angular rate: 0.5 * q x (0, g).
	qDotW := 0.5 * (-qx*gx - qy*gy - qz*gz)
	qDotX := 0.5 * (qw*gx + qy*gz - qz*gy)
	qDotY := 0.5 * (qw*gy - qx*gz + qz*gx)
	qDotZ := 0.5 * (qw*gz + qx*gy - qy*gx)

	ax, ay, az := acc[0], acc[1], acc[2]
	if n := math.Sqrt(ax*ax + ay*ay + az*az); n > 0 {
		ax, ay, az = ax/n, ay/n, az/n

		// Gravity alignment objective and its Jacobian-transpose product.
		f1 := 2*(qx*qz-qw*qy) - ax
		f2 := 2*(qw*qx+qy*qz) - ay
		f3 := 2*(0.5-qx*qx-qy*qy) - az

		sw := -2*qy*f1 + 2*qx*f2
		sx := 2*qz*f1 + 2*qw*f2 - 4*qx*f3
		sy := -2*qw*f1 + 2*qz*f2 - 4*qy*f3
		sz := 2*qx*f1 + 2*qy*f2

		// At the exact fixed point the gradient vanishes; skip the step
		// rather than normalize a zero vector.
		if sn := math.Sqrt(sw*sw + sx*sx + sy*sy + sz*sz); sn > 0 {
			qDotW -= m.Beta * sw / sn
			qDotX -= m.Beta * sx / sn
			qDotY -= m.Beta * sy / sn
			qDotZ -= m.Beta * sz / sn
		}
	}

	dt := 1 / m.Freq
	out := Quaternion{qw + qDotW*dt, qx + qDotX*dt, qy + qDotY*dt, qz + qDotZ*dt}
	n := out.Norm()
	return Quaternion{out[0] / n, out[1] / n, out[2] / n, out[3] / n}
}

// UpdateMARG advances the quaternion one step from gyro, accelerometer and
// magnetometer readings. A zero magnetometer sample degrades to the IMU
// update.
func (m Madgwick) UpdateMARG(q Quaternion, gyro, acc, mag [3]float64) Quaternion {
	mx, my, mz := mag[0], mag[1], mag[2]
	mn := math.Sqrt(mx*mx + my*my + mz*mz)
	if mn == 0 {
		return m.UpdateIMU(q, gyro, acc)
	}
	mx, my, mz = mx/mn, my/mn, mz/mn

	qw, qx, qy, qz := q[0], q[1], q[2], q[3]
	gx, gy, gz := gyro[0], gyro[1], gyro[2]

	qDotW := 0.5 * (-qx*gx - qy*gy - qz*gz)
	qDotX := 0.5 * (qw*gx + qy*gz - qz*gy)
	qDotY := 0.5 * (qw*gy - qx*gz + qz*gx)
	qDotZ := 0.5 * (qw*gz + qx*gy - qy*gx)

	ax, ay, az := acc[0], acc[1], acc[2]
	if n := math.Sqrt(ax*ax + ay*ay + az*az); n > 0 {
		ax, ay, az = ax/n, ay/n, az/n

		// Reference direction of the magnetic field: rotate the reading
		// into the lab frame and collapse it to the xz half-plane.
		hx := mx*(qw*qw+qx*qx-qy*qy-qz*qz) + 2*my*(qx*qy-qw*qz) + 2*mz*(qx*qz+qw*qy)
		hy := 2*mx*(qx*qy+qw*qz) + my*(qw*qw-qx*qx+qy*qy-qz*qz) + 2*mz*(qy*qz-qw*qx)
		bx := math.Sqrt(hx*hx + hy*hy)
		bz := 2*mx*(qx*qz-qw*qy) + 2*my*(qy*qz+qw*qx) + mz*(qw*qw-qx*qx-qy*qy+qz*qz)

		f1 := 2*(qx*qz-qw*qy) - ax
		f2 := 2*(qw*qx+qy*qz) - ay
		f3 := 2*(0.5-qx*qx-qy*qy) - az
		f4 := 2*bx*(0.5-qy*qy-qz*qz) + 2*bz*(qx*qz-qw*qy) - mx
		f5 := 2*bx*(qx*qy-qw*qz) + 2*bz*(qw*qx+qy*qz) - my
		f6 := 2*bx*(qw*qy+qx*qz) + 2*bz*(0.5-qx*qx-qy*qy) - mz

		sw := -2*qy*f1 + 2*qx*f2 +
			-2*bz*qy*f4 + (-2*bx*qz+2*bz*qx)*f5 + 2*bx*qy*f6
		sx := 2*qz*f1 + 2*qw*f2 - 4*qx*f3 +
			2*bz*qz*f4 + (2*bx*qy+2*bz*qw)*f5 + (2*bx*qz-4*bz*qx)*f6
		sy := -2*qw*f1 + 2*qz*f2 - 4*qy*f3 +
			(-4*bx*qy-2*bz*qw)*f4 + (2*bx*qx+2*bz*qz)*f5 + (2*bx*qw-4*bz*qy)*f6
		sz := 2*qx*f1 + 2*qy*f2 +
			(-4*bx*qz+2*bz*qx)*f4 + (-2*bx*qw+2*bz*qy)*f5 + 2*bx*qx*f6

		if sn := math.Sqrt(sw*sw + sx*sx + sy*sy + sz*sz); sn > 0 {
			qDotW -= m.Beta * sw / sn
			qDotX -= m.Beta * sx / sn
			qDotY -= m.Beta * sy / sn
			qDotZ -= m.Beta * sz / sn
		}
	}

	dt := 1 / m.Freq
	out := Quaternion{qw + qDotW*dt, qx + qDotX*dt, qy + qDotY*dt, qz + qDotZ*dt}
	n := out.Norm()
	return Quaternion{out[0] / n, out[1] / n, out[2] / n, out[3] / n}
}
