package calib

import (
	"fmt"

	"github.com/relabs-tech/imu_fusion/internal/ahrs"
	"github.com/relabs-tech/imu_fusion/internal/endaq"
)

// Evaluator scores a candidate calibration vector against logged data.
//
// During the quiet intervals the payload is known to be stationary, so the
// true lab-frame acceleration there is zero; whatever residual the fusion
// produces is attributable to calibration error. The score is three times
// the mean of the squared residual components, a scalar an external
// minimizer can drive down.
//
// Evaluate allocates a private workspace per call, so one Evaluator may
// score many candidate vectors concurrently.
type Evaluator struct {
	Intervals [][2]float64 // known-stationary (start, end) windows
	Gyro      [][3]float64
	Acc       [][3]float64
	Mag       [][3]float64
	TS        []float64
	Gravity   [3]float64
	Mode      ahrs.Mode
	Beta      float64
}

// Evaluate runs the calibrate-then-fuse pipeline for one parameter vector
// and returns its mean-square quiet-interval error.
func (e *Evaluator) Evaluate(p Params) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	if len(e.Intervals) == 0 {
		return 0, fmt.Errorf("calib: no quiet intervals configured")
	}

	calibrated, err := Apply(e.Acc, p)
	if err != nil {
		return 0, err
	}

	fuser, err := ahrs.New(ahrs.Config{
		Mode:    e.Mode,
		Beta:    e.Beta,
		Gravity: e.Gravity,
		Q0:      p.Orientation(),
	})
	if err != nil {
		return 0, err
	}
	ws := ahrs.NewWorkspace(len(e.TS), false)
	if err := fuser.Run(ws, e.Gyro, calibrated, e.Mag, e.TS); err != nil {
		return 0, err
	}

	_, quiet := endaq.FilterIntervals(e.TS, ws.AccLab, e.Intervals)
	if len(quiet) == 0 {
		return 0, fmt.Errorf("calib: no samples fall inside the quiet intervals")
	}

	var sum float64
	for _, v := range quiet {
		sum += v[0]*v[0] + v[1]*v[1] + v[2]*v[2]
	}
	// 3 * mean over all components = sum / sample count.
	return sum / float64(len(quiet)), nil
}
