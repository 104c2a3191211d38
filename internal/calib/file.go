package calib

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Result is the JSON document produced by a calibration search.
type Result struct {
	SchemaVersion int       `json:"schema_version"`
	Timestamp     time.Time `json:"timestamp"`
	Params        Params    `json:"params"`
	Fitness       float64   `json:"fitness"`
}

// Save writes the result as indented JSON.
func (r Result) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("calib: marshal result: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("calib: write result: %w", err)
	}
	return nil
}

// LoadFile reads a saved calibration result and returns its parameter
// vector.
func LoadFile(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("calib: read calibration file: %w", err)
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("calib: parse calibration file: %w", err)
	}
	if err := r.Params.Validate(); err != nil {
		return nil, fmt.Errorf("calib: %s: %w", path, err)
	}
	return r.Params, nil
}
