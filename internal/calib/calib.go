// Package calib applies and evaluates the scale/bias/mounting calibration
// of an accelerometer payload.
package calib

import (
	"fmt"
	"math"

	"github.com/relabs-tech/imu_fusion/internal/ahrs"
)

// Params is the flat calibration vector
// [scale_x, scale_y, scale_z, bias_x, bias_y, bias_z, q_w, q_i, q_j, q_k].
// The 6-element scale+bias prefix is valid on its own; the quaternion tail
// seeds the orientation filter during evaluation.
type Params []float64

// Default is the last known-good calibration for the payload, produced by
// the optimizer run of 2020-05-12 with a reported mean-square error of
// 0.0016.
var Default = Params{
	1.00019457, 1.00488652, 0.98081785,
	0.00157861, 0.03279509, 0.19761574,
	0.99666972, 0.00134338, 0.0370082, -0.02798724,
}

// Identity leaves data unchanged: unit scale, zero bias, no rotation.
var Identity = Params{1, 1, 1, 0, 0, 0, 1, 0, 0, 0}

// Validate checks the vector has a usable shape and finite entries.
func (p Params) Validate() error {
	if len(p) != 6 && len(p) != 10 {
		return fmt.Errorf("calib: want 6 or 10 parameters, got %d", len(p))
	}
	for i, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("calib: parameter %d is not finite", i)
		}
	}
	return nil
}

func (p Params) Scale() [3]float64 { return [3]float64{p[0], p[1], p[2]} }
func (p Params) Bias() [3]float64  { return [3]float64{p[3], p[4], p[5]} }

// Orientation returns the initial-orientation quaternion, or identity for
// the 6-element form.
func (p Params) Orientation() ahrs.Quaternion {
	if len(p) < 10 {
		return ahrs.Identity
	}
	return ahrs.Quaternion{p[6], p[7], p[8], p[9]}
}

// Apply performs the per-axis scale-bias correction on an Nx3 sample slice,
// returning a new slice. A nil parameter vector is a documented no-op that
// returns the input unchanged.
func Apply(data [][3]float64, p Params) ([][3]float64, error) {
	if p == nil {
		return data, nil
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	scale, bias := p.Scale(), p.Bias()
	out := make([][3]float64, len(data))
	for i, v := range data {
		out[i] = [3]float64{
			v[0]*scale[0] + bias[0],
			v[1]*scale[1] + bias[1],
			v[2]*scale[2] + bias[2],
		}
	}
	return out, nil
}
