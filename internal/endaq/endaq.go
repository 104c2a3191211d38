// Package endaq reads the CSV channel clusters exported by the endaq
// analysis program and shapes them for fusion: time-window filtering,
// g-to-m/s^2 conversion for acceleration channels, resampling onto a common
// timestamp axis, and quiet-interval masking.
//
// Channel failures are reported individually: a missing or malformed file
// produces a ChannelError for that channel and leaves the others loadable.
package endaq

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
)

// Channel export file names are fixed by the endaq exporter and keyed here
// by the short names used throughout the pipeline.
var ChannelFiles = map[string]string{
	"acc8":   "Ch80_8g_DC_Acceleration.csv",
	"acc16":  "Ch32_16g_DC_Acceleration.csv",
	"accIMU": "Ch43_IMU_Acceleration.csv",
	"gyro":   "Ch47_Rotation.csv",
	"mag":    "Ch51_IMU_Magnetic_Field.csv",
}

// accChannels are exported in units of g and converted to m/s^2 on load.
var accChannels = map[string]bool{"acc8": true, "acc16": true, "accIMU": true}

// Series is one channel's samples on its own timestamp axis.
type Series struct {
	TS   []float64
	Data [][3]float64
}

// Log maps channel keys to loaded series.
type Log map[string]*Series

// ChannelError reports a failure loading one channel.
type ChannelError struct {
	Channel string
	File    string
	Err     error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("endaq: channel %s (%s): %v", e.Channel, e.File, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// LoadLog reads every known channel file under prefix, keeping samples with
// timestamps in [tMin, tMax] and converting acceleration channels from g to
// m/s^2 using the local gravity g. Channels that fail to load are reported
// in the returned error list; the Log contains whatever loaded cleanly.
func LoadLog(prefix string, tMin, tMax, g float64) (Log, []*ChannelError) {
	log := Log{}
	var errs []*ChannelError
	for key, file := range ChannelFiles {
		s, err := ReadChannel(prefix+file, tMin, tMax)
		if err != nil {
			errs = append(errs, &ChannelError{Channel: key, File: file, Err: err})
			continue
		}
		if accChannels[key] {
			for i := range s.Data {
				s.Data[i][0] *= g
				s.Data[i][1] *= g
				s.Data[i][2] *= g
			}
		}
		log[key] = s
	}
	return log, errs
}

// ReadChannel parses one t,x,y,z CSV file, keeping rows inside [tMin, tMax].
func ReadChannel(path string, tMin, tMax float64) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 4
	s := &Series{}
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		vals := [4]float64{}
		for i, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d field %d: %w", line, i, err)
			}
			vals[i] = v
		}
		if vals[0] < tMin || vals[0] > tMax {
			continue
		}
		s.TS = append(s.TS, vals[0])
		s.Data = append(s.Data, [3]float64{vals[1], vals[2], vals[3]})
	}
	if len(s.TS) == 0 {
		return nil, fmt.Errorf("no samples in window [%v, %v]", tMin, tMax)
	}
	return s, nil
}

// Synchronize resamples a series onto the reference timestamp axis by
// linear interpolation. Reference points outside the series' time span take
// the nearest endpoint value.
func Synchronize(s *Series, ref []float64) (*Series, error) {
	if len(s.TS) == 0 {
		return nil, fmt.Errorf("endaq: cannot synchronize an empty series")
	}
	out := &Series{
		TS:   append([]float64(nil), ref...),
		Data: make([][3]float64, len(ref)),
	}
	for i, t := range ref {
		out.Data[i] = interpolate(s, t)
	}
	return out, nil
}

func interpolate(s *Series, t float64) [3]float64 {
	n := len(s.TS)
	if t <= s.TS[0] {
		return s.Data[0]
	}
	if t >= s.TS[n-1] {
		return s.Data[n-1]
	}
	// First index with TS >= t.
	j := sort.SearchFloat64s(s.TS, t)
	if s.TS[j] == t {
		return s.Data[j]
	}
	i := j - 1
	w := (t - s.TS[i]) / (s.TS[j] - s.TS[i])
	var out [3]float64
	for k := 0; k < 3; k++ {
		out[k] = s.Data[i][k] + w*(s.Data[j][k]-s.Data[i][k])
	}
	return out
}

// FilterIntervals keeps the samples whose timestamps fall strictly inside
// any of the (start, end) intervals.
func FilterIntervals(ts []float64, data [][3]float64, intervals [][2]float64) ([]float64, [][3]float64) {
	var outTS []float64
	var outData [][3]float64
	for i, t := range ts {
		for _, iv := range intervals {
			if t > iv[0] && t < iv[1] {
				outTS = append(outTS, t)
				outData = append(outData, data[i])
				break
			}
		}
	}
	return outTS, outData
}
