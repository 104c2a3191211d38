// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


// ./cmd/calibrate/main.go
//
// Offline calibration search for the accelerometer payload.
//
// Loads a recorded log, then minimizes the quiet-interval residual of the
// fused lab-frame acceleration over the calibration vector
// [scale x3, bias x3, q0 x4] with Nelder-Mead. The quiet intervals are the
// windows of the recording where the payload is known to be stationary,
// configured via QUIET_INTERVALS.
//
// Output:
//
//	Writes a JSON file including the optimized vector and its fitness.
//
// Run:
//
//	go run ./cmd/calibrate -config fusion_config.txt -out calibration.json
package main

import (
	"flag"
	"log"
	"math"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/relabs-tech/imu_fusion/internal/app"
	"github.com/relabs-tech/imu_fusion/internal/calib"
	"github.com/relabs-tech/imu_fusion/internal/config"
)

func main() {
	configPath := flag.String("config", "./fusion_config.txt", "path to configuration file")
	outPath := flag.String("out", "calibration.json", "path for the calibration result JSON")
	six := flag.Bool("six", false, "optimize scale and bias only, keep the initial orientation fixed")
	maxIters := flag.Int("max-iters", 2000, "maximum optimizer iterations")
	flag.Parse()

	log.Println("starting imu-fusion calibration search")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	if len(cfg.QuietIntervals) == 0 {
		log.Fatal("QUIET_INTERVALS must be configured for calibration")
	}

	streams, err := app.LoadStreams()
	if err != nil {
		log.Fatalf("failed to load recording: %v", err)
	}

	eval := &calib.Evaluator{
		Intervals: cfg.QuietIntervals,
		Gyro:      streams.Gyro,
		Acc:       streams.Acc,
		Mag:       streams.Mag,
		TS:        streams.TS,
		Gravity:   [3]float64{0, 0, cfg.Gravity},
		Mode:      streams.Mode,
		Beta:      cfg.Beta,
	}

	initial := append(calib.Params(nil), calib.Default...)
	if *six {
		initial = initial[:6]
	}

	start, err := eval.Evaluate(initial)
	if err != nil {
		log.Fatalf("initial evaluation failed: %v", err)
	}
	log.Printf("calibrate: initial fitness %.6g over %d parameters", start, len(initial))

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			v, err := eval.Evaluate(calib.Params(x))
			if err != nil {
				// Off-manifold candidates are rejected, not fatal.
				return math.Inf(1)
			}
			return v
		},
	}
	settings := &optimize.Settings{
		MajorIterations: *maxIters,
	}

	opt, err := optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
	if err != nil {
		log.Fatalf("optimization failed: %v", err)
	}
	log.Printf("calibrate: converged after %d evaluations (status %v)", opt.FuncEvaluations, opt.Status)
	log.Printf("calibrate: fitness %.6g → %.6g", start, opt.F)

	result := calib.Result{
		SchemaVersion: 1,
		Timestamp:     time.Now(),
		Params:        calib.Params(opt.X),
		Fitness:       opt.F,
	}
	if err := result.Save(*outPath); err != nil {
		log.Fatalf("failed to save result: %v", err)
	}
	log.Printf("calibrate: wrote %s", *outPath)
}
