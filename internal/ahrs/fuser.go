// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package ahrs turns time-synchronized gyro/accelerometer(/magnetometer)
// sample streams into a quaternion orientation history and the
// gravity-compensated lab-frame acceleration derived from it.
package ahrs

import (
	"fmt"
	"math"

	"github.com/relabs-tech/imu_fusion/internal/kalman"
)

// GravityMagnitude is the measured local gravity in m/s^2.
const GravityMagnitude = 9.799

// DefaultGravity is the lab-frame gravity vector assumed when the caller
// does not supply one.
var DefaultGravity = [3]float64{0, 0, GravityMagnitude}

// Config holds the per-run filter settings.
type Config struct {
	Mode    Mode       // sensor set to fuse
	Beta    float64    // Madgwick gradient gain
	Gravity [3]float64 // local gravity, lab frame
	Q0      Quaternion // initial orientation; normalized on entry

	// Position enables the kinematic sub-step: the lab-frame acceleration
	// of each sample is fed into a position/velocity estimator whose state
	// history is recorded alongside the quaternion history.
	Position         bool
	ZeroPeriod       float64    // seconds between state zeroings, 0 disables
	ProcessNoise     [6]float64 // estimator Q diagonal
	MeasurementNoise [6]float64 // estimator R diagonal
}

// Workspace holds the per-run output histories. It is exclusively owned by
// one fusion run; reuse across sequential calls avoids reallocation, but a
// workspace must never be shared by concurrent runs.
type Workspace struct {
	Quat   []Quaternion
	AccLab [][3]float64
	State  [][6]float64
}

// NewWorkspace allocates a workspace for n samples.
func NewWorkspace(n int, position bool) *Workspace {
	w := &Workspace{}
	w.Reset(n, position)
	return w
}

// Reset sizes the workspace for n samples, reusing capacity where possible,
// and zeroes all histories.
func (w *Workspace) Reset(n int, position bool) {
	if cap(w.Quat) < n {
		w.Quat = make([]Quaternion, n)
		w.AccLab = make([][3]float64, n)
	}
	w.Quat = w.Quat[:n]
	w.AccLab = w.AccLab[:n]
	for i := range w.Quat {
		w.Quat[i] = Quaternion{}
		w.AccLab[i] = [3]float64{}
	}
	if !position {
		w.State = nil
		return
	}
	if cap(w.State) < n {
		w.State = make([][6]float64, n)
	}
	w.State = w.State[:n]
	for i := range w.State {
		w.State[i] = [6]float64{}
	}
}

// Fuser runs the orientation filter over a full sample stream.
type Fuser struct {
	cfg Config
}

// New validates the configuration. A non-unit initial quaternion is
// normalized; one that cannot be coerced to a finite unit quaternion is a
// fatal input error. The gravity vector must be finite.
func New(cfg Config) (*Fuser, error) {
	if cfg.Q0 == (Quaternion{}) {
		cfg.Q0 = Identity
	}
	q0, err := cfg.Q0.Normalized()
	if err != nil {
		return nil, fmt.Errorf("ahrs: initial orientation: %w", err)
	}
	cfg.Q0 = q0

	if cfg.Gravity == ([3]float64{}) {
		cfg.Gravity = DefaultGravity
	}
	for i, g := range cfg.Gravity {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			return nil, fmt.Errorf("ahrs: gravity component %d is not finite", i)
		}
	}
	if cfg.Beta == 0 {
		cfg.Beta = 0.1
	}
	if cfg.Beta < 0 {
		return nil, fmt.Errorf("ahrs: negative filter gain %v", cfg.Beta)
	}
	return &Fuser{cfg: cfg}, nil
}

// Run processes the stream sequentially, filling the workspace histories.
//
// All input slices must have equal length; a mismatch is reported before any
// filter step runs. There is no per-sample recovery: a malformed sample
// propagates forward through the remaining steps.
func (f *Fuser) Run(ws *Workspace, gyro, acc, mag [][3]float64, ts []float64) error {
	n := len(ts)
	if len(gyro) != n || len(acc) != n || len(mag) != n {
		return fmt.Errorf("ahrs: stream length mismatch: gyro=%d acc=%d mag=%d ts=%d",
			len(gyro), len(acc), len(mag), n)
	}
	if n < 2 {
		return fmt.Errorf("ahrs: need at least 2 samples, got %d", n)
	}
	if ws == nil {
		return fmt.Errorf("ahrs: nil workspace")
	}

	dt := meanDelta(ts)
	if dt <= 0 || math.IsNaN(dt) {
		return fmt.Errorf("ahrs: non-increasing timestamps (mean delta %v)", dt)
	}

	ws.Reset(n, f.cfg.Position)
	ws.Quat[0] = f.cfg.Q0

	var est *kalman.Filter
	if f.cfg.Position {
		var err error
		est, err = kalman.New(kalman.Config{
			Dt:               dt,
			ProcessNoise:     f.cfg.ProcessNoise,
			MeasurementNoise: f.cfg.MeasurementNoise,
			Reset:            f.cfg.ZeroPeriod > 0,
			TimePeriod:       f.cfg.ZeroPeriod,
		})
		if err != nil {
			return fmt.Errorf("ahrs: position estimator: %w", err)
		}
	}

	step := Madgwick{Beta: f.cfg.Beta, Freq: 1 / dt}
	g := f.cfg.Gravity
	for t := 1; t < n; t++ {
		switch f.cfg.Mode {
		case MARG:
			ws.Quat[t] = step.UpdateMARG(ws.Quat[t-1], gyro[t], acc[t], mag[t])
		default:
			ws.Quat[t] = step.UpdateIMU(ws.Quat[t-1], gyro[t], acc[t])
		}

		lab := ws.Quat[t].Rotate(acc[t])
		ws.AccLab[t] = [3]float64{lab[0] - g[0], lab[1] - g[1], lab[2] - g[2]}

		if est != nil {
			state, err := est.Step(ts[t], ws.AccLab[t], [3]float64{})
			if err != nil {
				return fmt.Errorf("ahrs: position estimator at t=%v: %w", ts[t], err)
			}
			ws.State[t] = state
		}
	}
	return nil
}

func meanDelta(ts []float64) float64 {
	// Equivalent to (ts[n-1]-ts[0])/(n-1) but written as the mean of the
	// per-step deltas to match how the sample frequency is defined.
	var sum float64
	for i := 1; i < len(ts); i++ {
		sum += ts[i] - ts[i-1]
	}
	return sum / float64(len(ts)-1)
}
