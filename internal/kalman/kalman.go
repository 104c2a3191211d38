// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package kalman estimates position and velocity from lab-frame
// acceleration with a linear constant-acceleration-model Kalman filter.
//
// The state is [x y z vx vy vz]. There is no independent velocity sensor:
// the velocity components of each pseudo-measurement are carried over from
// the previous state estimate, and only the position components come from
// outside (zero when no reference is available). To bound the drift of
// double-integrating noisy acceleration the state and covariance can be
// forced to zero at a fixed period; this assumes the platform returns to
// rest periodically and is a deliberate bias-correction heuristic.
package kalman

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

const stateDim = 6

// Config holds the per-run filter settings.
type Config struct {
	Dt               float64    // sample period, seconds
	ProcessNoise     [6]float64 // Q diagonal
	MeasurementNoise [6]float64 // R diagonal

	// Reset enables the periodic zeroing of state and covariance every
	// TimePeriod seconds.
	Reset      bool
	TimePeriod float64
}

// Filter is a single sequential estimation run. It is not safe for
// concurrent use; concurrent runs must each construct their own Filter.
type Filter struct {
	f, b *mat.Dense // transition and control matrices
	q, r *mat.Dense // process and measurement noise covariances

	state *mat.VecDense
	p     *mat.Dense

	reset    bool
	period   float64
	nextZero float64
	step     int
}

// New builds a filter for a fixed sample period.
func New(cfg Config) (*Filter, error) {
	if cfg.Dt <= 0 {
		return nil, fmt.Errorf("kalman: sample period must be positive, got %v", cfg.Dt)
	}
	if cfg.Reset && cfg.TimePeriod <= 0 {
		return nil, fmt.Errorf("kalman: reset enabled with non-positive period %v", cfg.TimePeriod)
	}
	dt := cfg.Dt

	// x_t = x_{t-1} + v_{t-1} dt
	f := mat.NewDense(stateDim, stateDim, []float64{
		1, 0, 0, dt, 0, 0,
		0, 1, 0, 0, dt, 0,
		0, 0, 1, 0, 0, dt,
		0, 0, 0, 1, 0, 0,
		0, 0, 0, 0, 1, 0,
		0, 0, 0, 0, 0, 1,
	})
	// Acceleration contributes dt^2/2 to position and dt to velocity.
	h := dt * dt / 2
	b := mat.NewDense(stateDim, 3, []float64{
		h, 0, 0,
		0, h, 0,
		0, 0, h,
		dt, 0, 0,
		0, dt, 0,
		0, 0, dt,
	})

	q := mat.NewDense(stateDim, stateDim, nil)
	r := mat.NewDense(stateDim, stateDim, nil)
	for i := 0; i < stateDim; i++ {
		q.Set(i, i, cfg.ProcessNoise[i])
		r.Set(i, i, cfg.MeasurementNoise[i])
	}

	return &Filter{
		f:        f,
		b:        b,
		q:        q,
		r:        r,
		state:    mat.NewVecDense(stateDim, nil),
		p:        mat.NewDense(stateDim, stateDim, nil),
		reset:    cfg.Reset,
		period:   cfg.TimePeriod,
		nextZero: cfg.TimePeriod,
	}, nil
}

// State returns the current estimate.
func (k *Filter) State() [6]float64 {
	var out [6]float64
	for i := 0; i < stateDim; i++ {
		out[i] = k.state.AtVec(i)
	}
	return out
}

// Step advances the filter one sample.
//
// t is the sample timestamp (seconds), accLab the lab-frame acceleration
// driving the prediction, and zPos the external position measurement (zero
// when none exists). The velocity components of the measurement are taken
// from the previous state estimate, except on the very first step where no
// previous estimate exists.
func (k *Filter) Step(t float64, accLab [3]float64, zPos [3]float64) ([6]float64, error) {
	// Predict.
	acc := mat.NewVecDense(3, []float64{accLab[0], accLab[1], accLab[2]})
	naive := mat.NewVecDense(stateDim, nil)
	naive.MulVec(k.f, k.state)
	var ba mat.VecDense
	ba.MulVec(k.b, acc)
	naive.AddVec(naive, &ba)

	var pNaive mat.Dense
	pNaive.Mul(k.f, k.p)
	pNaive.Mul(&pNaive, k.f.T())
	pNaive.Add(&pNaive, k.q)

	// Assemble the pseudo-measurement.
	z := mat.NewVecDense(stateDim, nil)
	for i := 0; i < 3; i++ {
		z.SetVec(i, zPos[i])
	}
	if k.step > 0 {
		for i := 3; i < stateDim; i++ {
			z.SetVec(i, k.state.AtVec(i))
		}
	}

	// Update. K = P (P+R)^-1; a singular sum that is not identically zero
	// is a fatal condition rather than a NaN factory. The all-zero sum is
	// the zero-noise fixed point: no information either way, so the
	// prediction is kept as-is.
	var s mat.Dense
	s.Add(&pNaive, k.r)
	if mat.Norm(&s, 1) == 0 {
		k.state.CopyVec(naive)
		k.p.Copy(&pNaive)
	} else {
		var sInv mat.Dense
		if err := sInv.Inverse(&s); err != nil {
			return [6]float64{}, fmt.Errorf("kalman: singular innovation covariance at t=%v: %w", t, err)
		}
		var gain mat.Dense
		gain.Mul(&pNaive, &sInv)

		var innov mat.VecDense
		innov.SubVec(z, naive)
		var corr mat.VecDense
		corr.MulVec(&gain, &innov)
		k.state.AddVec(naive, &corr)

		eye := mat.NewDense(stateDim, stateDim, nil)
		for i := 0; i < stateDim; i++ {
			eye.Set(i, i, 1)
		}
		var ik mat.Dense
		ik.Sub(eye, &gain)
		k.p.Mul(&ik, &pNaive)
	}
	k.step++

	if k.reset && t > k.nextZero {
		k.state.Zero()
		k.p.Zero()
		k.nextZero += k.period
	}
	return k.State(), nil
}

// Run drives the filter over a full sample sequence, writing each step's
// estimate into out. Timestamps, accelerations, measurements and the output
// must share one length. The first entry stays at the initial state, as the
// recursion starts at the second sample.
func (k *Filter) Run(ts []float64, accLab [][3]float64, zPos [][3]float64, out [][6]float64) error {
	n := len(ts)
	if len(accLab) != n || len(out) != n || (zPos != nil && len(zPos) != n) {
		return fmt.Errorf("kalman: sequence length mismatch: ts=%d acc=%d z=%d out=%d",
			n, len(accLab), len(zPos), len(out))
	}
	if n == 0 {
		return nil
	}
	out[0] = k.State()
	for i := 1; i < n; i++ {
		var z [3]float64
		if zPos != nil {
			z = zPos[i]
		}
		state, err := k.Step(ts[i], accLab[i], z)
		if err != nil {
			return err
		}
		out[i] = state
	}
	return nil
}
