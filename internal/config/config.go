package config

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// Recording
	LogPrefix  string
	AccChannel string
	TMin       float64
	TMax       float64

	// Filter
	FilterMode string // "imu" or "marg"
	Beta       float64
	Gravity    float64

	// Position estimation
	Position   bool
	ZeroPeriod float64
	KalmanQ    [6]float64
	KalmanR    [6]float64

	// Calibration
	CalibrationFile string
	QuietIntervals  [][2]float64

	// Output
	OutputDir string

	// MQTT
	MQTTBroker          string
	MQTTClientIDReplay  string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string

	// Topics
	TopicPose  string
	TopicState string

	// Timing
	ReplayInterval int // milliseconds

	// Web Server
	WebServerPort int
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported (lowercase) so other packages cannot access it directly.
//     This enforces encapsulation and prevents external code from modifying config without proper locking.
//     Has package-level scope (visible to all functions in this package, persists for program lifetime).
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access. Write lock (Lock) for initialization,
//     read lock (RLock) for Get() allows multiple concurrent readers without blocking each other.
//
// External code must use InitGlobal() to set and Get() to read, ensuring thread safety.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := &Config{
		AccChannel: "accIMU",
		FilterMode: "imu",
		Beta:       0.1,
		Gravity:    9.799,
		TMax:       math.Inf(1),
	}
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Recording
	case "LOG_PREFIX":
		c.LogPrefix = value
	case "ACC_CHANNEL":
		switch value {
		case "acc8", "acc16", "accIMU":
			c.AccChannel = value
		default:
			return fmt.Errorf("ACC_CHANNEL must be acc8, acc16 or accIMU, got %q", value)
		}
	case "T_MIN":
		t, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid T_MIN %q: %w", value, err)
		}
		c.TMin = t
	case "T_MAX":
		t, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid T_MAX %q: %w", value, err)
		}
		c.TMax = t

	// Filter
	case "FILTER_MODE":
		switch value {
		case "imu", "marg":
			c.FilterMode = value
		default:
			return fmt.Errorf("FILTER_MODE must be imu or marg, got %q", value)
		}
	case "BETA":
		beta, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid BETA %q: %w", value, err)
		}
		if beta < 0 {
			return fmt.Errorf("BETA must be non-negative, got %g", beta)
		}
		c.Beta = beta
	case "GRAVITY":
		g, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid GRAVITY %q: %w", value, err)
		}
		if g <= 0 {
			return fmt.Errorf("GRAVITY must be positive, got %g", g)
		}
		c.Gravity = g

	// Position estimation
	case "POSITION":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid POSITION %q: %w", value, err)
		}
		c.Position = enabled
	case "ZERO_PERIOD":
		period, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid ZERO_PERIOD %q: %w", value, err)
		}
		if period < 0 {
			return fmt.Errorf("ZERO_PERIOD must be non-negative, got %g", period)
		}
		c.ZeroPeriod = period
	case "KALMAN_Q":
		diag, err := parseDiagonal(value)
		if err != nil {
			return fmt.Errorf("invalid KALMAN_Q %q: %w", value, err)
		}
		c.KalmanQ = diag
	case "KALMAN_R":
		diag, err := parseDiagonal(value)
		if err != nil {
			return fmt.Errorf("invalid KALMAN_R %q: %w", value, err)
		}
		c.KalmanR = diag

	// Calibration
	case "CALIBRATION_FILE":
		c.CalibrationFile = value
	case "QUIET_INTERVALS":
		intervals, err := parseIntervals(value)
		if err != nil {
			return fmt.Errorf("invalid QUIET_INTERVALS %q: %w", value, err)
		}
		c.QuietIntervals = intervals

	// Output
	case "OUTPUT_DIR":
		c.OutputDir = value

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_REPLAY":
		c.MQTTClientIDReplay = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_POSE":
		c.TopicPose = value
	case "TOPIC_STATE":
		c.TopicState = value

	// Timing
	case "REPLAY_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid REPLAY_INTERVAL %q: %w", value, err)
		}
		if interval <= 0 {
			return fmt.Errorf("REPLAY_INTERVAL must be positive, got %d", interval)
		}
		c.ReplayInterval = interval

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// parseDiagonal parses a comma-separated list of six floats.
func parseDiagonal(value string) ([6]float64, error) {
	var diag [6]float64
	fields := strings.Split(value, ",")
	if len(fields) != 6 {
		return diag, fmt.Errorf("expected 6 comma-separated values, got %d", len(fields))
	}
	for i, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return diag, fmt.Errorf("value %d: %w", i, err)
		}
		if v < 0 {
			return diag, fmt.Errorf("value %d must be non-negative, got %g", i, v)
		}
		diag[i] = v
	}
	return diag, nil
}

// parseIntervals parses "start:end" pairs separated by commas,
// e.g. "12:31,60:84".
func parseIntervals(value string) ([][2]float64, error) {
	var intervals [][2]float64
	for _, field := range strings.Split(value, ",") {
		bounds := strings.SplitN(strings.TrimSpace(field), ":", 2)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("interval %q must be start:end", field)
		}
		start, err := strconv.ParseFloat(strings.TrimSpace(bounds[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("interval %q: %w", field, err)
		}
		end, err := strconv.ParseFloat(strings.TrimSpace(bounds[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("interval %q: %w", field, err)
		}
		if end <= start {
			return nil, fmt.Errorf("interval %q: end must be greater than start", field)
		}
		intervals = append(intervals, [2]float64{start, end})
	}
	return intervals, nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.LogPrefix == "" {
		return fmt.Errorf("LOG_PREFIX is required")
	}
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicPose == "" {
		return fmt.Errorf("TOPIC_POSE is required")
	}
	if c.TopicState == "" {
		return fmt.Errorf("TOPIC_STATE is required")
	}
	if c.TMax <= c.TMin {
		return fmt.Errorf("T_MAX must be greater than T_MIN")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
// Acquires write lock (configMu.Lock) during initialization to prevent concurrent access.
// This is the only function that can set globalConfig.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
// Uses read lock (configMu.RLock) to allow multiple concurrent readers without blocking.
// This is thread-safe and efficient for concurrent access across goroutines.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
