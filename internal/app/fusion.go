// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


package app

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/relabs-tech/imu_fusion/internal/ahrs"
	"github.com/relabs-tech/imu_fusion/internal/calib"
	"github.com/relabs-tech/imu_fusion/internal/config"
	"github.com/relabs-tech/imu_fusion/internal/endaq"
)

// FusionResult bundles the outputs of one batch fusion run.
type FusionResult struct {
	TS        []float64
	Workspace *ahrs.Workspace
	Position  bool
}

// Streams holds the recording's channels resampled onto the accelerometer
// timestamp axis, uncalibrated.
type Streams struct {
	TS   []float64
	Gyro [][3]float64
	Acc  [][3]float64
	Mag  [][3]float64
	Mode ahrs.Mode
}

// LoadStreams reads the configured recording and synchronizes the gyro and
// magnetometer channels onto the accelerometer timestamp axis. A missing
// magnetometer channel yields zero magnetometer samples unless the filter
// mode requires it.
func LoadStreams() (*Streams, error) {
	cfg := config.Get()

	log.Printf("fusion: loading log %s (window %g..%g)", cfg.LogPrefix, cfg.TMin, cfg.TMax)
	raw, chErrs := endaq.LoadLog(cfg.LogPrefix, cfg.TMin, cfg.TMax, cfg.Gravity)
	for _, e := range chErrs {
		log.Printf("fusion: %v", e)
	}

	acc, ok := raw[cfg.AccChannel]
	if !ok {
		return nil, fmt.Errorf("fusion: required channel %q failed to load", cfg.AccChannel)
	}
	gyroRaw, ok := raw["gyro"]
	if !ok {
		return nil, fmt.Errorf("fusion: required channel \"gyro\" failed to load")
	}

	gyro, err := endaq.Synchronize(gyroRaw, acc.TS)
	if err != nil {
		return nil, fmt.Errorf("fusion: synchronize gyro: %w", err)
	}

	mode := ahrs.IMU
	if cfg.FilterMode == "marg" {
		mode = ahrs.MARG
	}

	magData := make([][3]float64, len(acc.TS))
	if magRaw, ok := raw["mag"]; ok {
		mag, err := endaq.Synchronize(magRaw, acc.TS)
		if err != nil {
			return nil, fmt.Errorf("fusion: synchronize mag: %w", err)
		}
		magData = mag.Data
	} else if mode == ahrs.MARG {
		return nil, fmt.Errorf("fusion: FILTER_MODE=marg requires the magnetometer channel")
	}

	return &Streams{TS: acc.TS, Gyro: gyro.Data, Acc: acc.Data, Mag: magData, Mode: mode}, nil
}

// Fuse loads the configured recording, synchronizes the channels onto the
// accelerometer timestamp axis, applies the calibration and runs the
// orientation filter over the whole stream.
func Fuse() (*FusionResult, error) {
	cfg := config.Get()

	streams, err := LoadStreams()
	if err != nil {
		return nil, err
	}

	params := calib.Default
	if cfg.CalibrationFile != "" {
		params, err = calib.LoadFile(cfg.CalibrationFile)
		if err != nil {
			return nil, err
		}
		log.Printf("fusion: loaded calibration from %s", cfg.CalibrationFile)
	}

	calibrated, err := calib.Apply(streams.Acc, params)
	if err != nil {
		return nil, err
	}

	fuser, err := ahrs.New(ahrs.Config{
		Mode:             streams.Mode,
		Beta:             cfg.Beta,
		Gravity:          [3]float64{0, 0, cfg.Gravity},
		Q0:               params.Orientation(),
		Position:         cfg.Position,
		ZeroPeriod:       cfg.ZeroPeriod,
		ProcessNoise:     cfg.KalmanQ,
		MeasurementNoise: cfg.KalmanR,
	})
	if err != nil {
		return nil, err
	}

	ws := ahrs.NewWorkspace(len(streams.TS), cfg.Position)
	if err := fuser.Run(ws, streams.Gyro, calibrated, streams.Mag, streams.TS); err != nil {
		return nil, err
	}

	log.Printf("fusion: processed %d samples in mode %s", len(streams.TS), streams.Mode)
	return &FusionResult{TS: streams.TS, Workspace: ws, Position: cfg.Position}, nil
}

// RunFusion runs the batch pipeline and writes the quaternion, lab-frame
// acceleration and (when enabled) kinematic state histories as CSV files
// under OUTPUT_DIR.
func RunFusion() error {
	cfg := config.Get()

	result, err := Fuse()
	if err != nil {
		return err
	}

	outDir := cfg.OutputDir
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("fusion: create output dir: %w", err)
	}

	ws := result.Workspace
	n := len(result.TS)

	quatRows := make([][]float64, n)
	accRows := make([][]float64, n)
	for i := 0; i < n; i++ {
		q := ws.Quat[i]
		quatRows[i] = []float64{result.TS[i], q[0], q[1], q[2], q[3]}
		a := ws.AccLab[i]
		accRows[i] = []float64{result.TS[i], a[0], a[1], a[2]}
	}

	if err := writeCSV(filepath.Join(outDir, "quaternion.csv"),
		[]string{"t", "qw", "qx", "qy", "qz"}, quatRows); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(outDir, "acc_lab.csv"),
		[]string{"t", "ax", "ay", "az"}, accRows); err != nil {
		return err
	}

	if result.Position {
		stateRows := make([][]float64, n)
		for i := 0; i < n; i++ {
			s := ws.State[i]
			stateRows[i] = []float64{result.TS[i], s[0], s[1], s[2], s[3], s[4], s[5]}
		}
		if err := writeCSV(filepath.Join(outDir, "state.csv"),
			[]string{"t", "x", "y", "z", "vx", "vy", "vz"}, stateRows); err != nil {
			return err
		}
	}

	log.Printf("fusion: wrote results to %s", outDir)
	return nil
}

func writeCSV(path string, header []string, rows [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("fusion: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("fusion: write %s: %w", path, err)
	}
	record := make([]string, len(header))
	for _, row := range rows {
		for i, v := range row {
			record[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("fusion: write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("fusion: flush %s: %w", path, err)
	}
	return nil
}
