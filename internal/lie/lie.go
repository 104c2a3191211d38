// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package lie parametrizes 3D rotations by their Lie-algebra generator and
// provides the misalignment cost functions used by the calibration search.
//
// A generator vector points along the rotation axis; its magnitude divided
// by two is the rotation angle in radians. The factor of two comes from the
// SU(2) double cover of SO(3): the unit quaternion tracing the full rotation
// group covers each physical rotation twice.
package lie

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrZeroNorm is returned when an angle is requested between vectors of
// which at least one has zero length.
var ErrZeroNorm = errors.New("lie: zero-norm vector has no direction")

// Exp computes the 3x3 rotation matrix for the generator v.
//
// The exponential map is singular at the origin, so the zero generator is
// special-cased to the identity. The result is always a proper rotation
// (orthogonal with determinant +1) to within floating-point tolerance.
func Exp(v [3]float64) *mat.Dense {
	norm := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if norm == 0 {
		return mat.NewDense(3, 3, []float64{
			1, 0, 0,
			0, 1, 0,
			0, 0, 1,
		})
	}

	// Axis-angle parameters, halved per the double cover.
	angle := norm / 2
	x, y, z := v[0]/norm, v[1]/norm, v[2]/norm

	c, s := math.Cos(angle), math.Sin(angle)
	t := 1 - c
	return mat.NewDense(3, 3, []float64{
		c + x*x*t, x*y*t - z*s, x*z*t + y*s,
		y*x*t + z*s, c + y*y*t, y*z*t - x*s,
		z*x*t - y*s, z*y*t + x*s, c + z*z*t,
	})
}

// Angle returns the rotation angle in radians encoded by the generator v.
func Angle(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0]+v[1]*v[1]+v[2]*v[2]) / 2
}

// AngleDeg returns the rotation angle in degrees encoded by the generator v.
func AngleDeg(v [3]float64) float64 {
	return Angle(v) * 180 / math.Pi
}

// AngleBetween computes the angle subtended between two vectors.
func AngleBetween(u, v [3]float64) (float64, error) {
	nu := math.Sqrt(u[0]*u[0] + u[1]*u[1] + u[2]*u[2])
	nv := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if nu == 0 || nv == 0 {
		return 0, ErrZeroNorm
	}
	dot := u[0]*v[0] + u[1]*v[1] + u[2]*v[2]
	// Clamp against rounding before the arccos.
	cos := dot / (nu * nv)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos), nil
}

// MisalignmentCost sums |a_i x b_i|^2 over corresponding columns of two 3xN
// series. Column pairs that are perfectly co-linear contribute zero, making
// this a rotation-only residual. Symmetric in its two arguments.
func MisalignmentCost(a, b *mat.Dense) (float64, error) {
	per, err := MisalignmentPerSample(a, b)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, c := range per {
		sum += c
	}
	return sum, nil
}

// MisalignmentPerSample returns the squared cross-product norm for each
// column pair of two 3xN series.
func MisalignmentPerSample(a, b *mat.Dense) ([]float64, error) {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ra != 3 || rb != 3 {
		return nil, fmt.Errorf("lie: series must be 3xN, got %dx%d and %dx%d", ra, ca, rb, cb)
	}
	if ca != cb {
		return nil, fmt.Errorf("lie: series length mismatch: %d vs %d columns", ca, cb)
	}

	out := make([]float64, ca)
	for i := 0; i < ca; i++ {
		ax, ay, az := a.At(0, i), a.At(1, i), a.At(2, i)
		bx, by, bz := b.At(0, i), b.At(1, i), b.At(2, i)
		cx := ay*bz - az*by
		cy := az*bx - ax*bz
		cz := ax*by - ay*bx
		out[i] = cx*cx + cy*cy + cz*cz
	}
	return out, nil
}

// SeriesFromSamples converts an N-sample slice of 3-vectors into the 3xN
// column layout the cost functions operate on.
func SeriesFromSamples(samples [][3]float64) *mat.Dense {
	n := len(samples)
	s := mat.NewDense(3, n, nil)
	for i, v := range samples {
		s.Set(0, i, v[0])
		s.Set(1, i, v[1])
		s.Set(2, i, v[2])
	}
	return s
}

// AlignmentObjective bundles two observed 3xN series and evaluates the
// rotation-only misalignment residual as a function of the generator. The
// value can be handed to any unconstrained minimizer.
type AlignmentObjective struct {
	a, b *mat.Dense
}

// NewAlignmentObjective validates the two series once so Cost can run
// allocation-light inside an optimizer loop.
func NewAlignmentObjective(a, b *mat.Dense) (*AlignmentObjective, error) {
	if _, err := MisalignmentPerSample(a, b); err != nil {
		return nil, err
	}
	return &AlignmentObjective{a: a, b: b}, nil
}

// Cost evaluates MisalignmentCost(a, Exp(v)*b) for the generator v.
func (o *AlignmentObjective) Cost(v []float64) float64 {
	var rb mat.Dense
	rb.Mul(Exp([3]float64{v[0], v[1], v[2]}), o.b)
	cost, _ := MisalignmentCost(o.a, &rb)
	return cost
}

// CalibrationMatrix builds Exp(params[3:6]) * diag(params[0:3]), the joint
// scale-and-mounting-rotation correction applied to a raw sensor series.
func CalibrationMatrix(params []float64) (*mat.Dense, error) {
	if len(params) < 6 {
		return nil, fmt.Errorf("lie: calibration wants 6 parameters, got %d", len(params))
	}
	r := Exp([3]float64{params[3], params[4], params[5]})
	var m mat.Dense
	m.Mul(r, mat.NewDiagDense(3, params[0:3]))
	return &m, nil
}

// CalibrationObjective bundles a reference series a and a raw series b and
// evaluates the least-squares residual |a - Exp(l)*diag(s)*b|^2 as a
// function of the six-vector [s, l].
type CalibrationObjective struct {
	a, b *mat.Dense
}

func NewCalibrationObjective(a, b *mat.Dense) (*CalibrationObjective, error) {
	if _, err := MisalignmentPerSample(a, b); err != nil {
		return nil, err
	}
	return &CalibrationObjective{a: a, b: b}, nil
}

// Cost evaluates the summed squared residual for the six calibration
// parameters [scale_x, scale_y, scale_z, l_x, l_y, l_z].
func (o *CalibrationObjective) Cost(params []float64) float64 {
	m, err := CalibrationMatrix(params)
	if err != nil {
		return math.Inf(1)
	}
	var cb mat.Dense
	cb.Mul(m, o.b)

	var diff mat.Dense
	diff.Sub(o.a, &cb)
	var sum float64
	_, n := diff.Dims()
	for i := 0; i < 3; i++ {
		for j := 0; j < n; j++ {
			d := diff.At(i, j)
			sum += d * d
		}
	}
	return sum
}
