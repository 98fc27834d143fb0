package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	DB      DBConfig      `yaml:"db"`
	Server  ServerConfig  `yaml:"server"`
	GPS     GPSConfig     `yaml:"gps"`
	Tracker TrackerConfig `yaml:"tracker"`
	Fields  FieldsConfig  `yaml:"fields"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server LogSettings `yaml:"server"`
	Events LogSettings `yaml:"events"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// GPSConfig holds settings for the location source.
type GPSConfig struct {
	Provider string          `yaml:"provider"` // "sim", "replay"
	Interval Duration        `yaml:"interval"`
	Sim      SimGPSConfig    `yaml:"sim"`
	Replay   ReplayGPSConfig `yaml:"replay"`
}

// SimGPSConfig holds settings for the simulated location source.
type SimGPSConfig struct {
	StartLat     float64 `yaml:"start_lat"`
	StartLon     float64 `yaml:"start_lon"`
	StartHeading float64 `yaml:"start_heading"`
	SpeedMPS     float64 `yaml:"speed_mps"`
	NoiseM       float64 `yaml:"noise_m"`
}

// ReplayGPSConfig holds settings for the NDJSON replay source.
type ReplayGPSConfig struct {
	Path string `yaml:"path"`
}

// TrackerConfig holds tracking policy settings.
type TrackerConfig struct {
	MaxAccuracy              Distance `yaml:"max_accuracy"`
	MaxSpeedMPS              float64  `yaml:"max_speed_mps"`
	MaxConsecutiveRejections int      `yaml:"max_consecutive_rejections"`
	MinRecordInterval        Duration `yaml:"min_record_interval"`
	MinRecordDistance        Distance `yaml:"min_record_distance"`
	DefaultWidthFeet         float64  `yaml:"default_width_ft"`
}

// FieldsConfig holds field boundary settings.
type FieldsConfig struct {
	Path         string `yaml:"path"`
	H3Resolution int    `yaml:"h3_resolution"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Events: LogSettings{
				Path: "./logs/events.log",
			},
		},
		DB: DBConfig{
			Path: "./data/swathtrack.db",
		},
		Server: ServerConfig{
			Address: "localhost:1930",
		},
		GPS: GPSConfig{
			Provider: "sim",
			Interval: Duration(1 * time.Second),
			Sim: SimGPSConfig{
				StartLat:     44.977,
				StartLon:     -93.265,
				StartHeading: 0,
				SpeedMPS:     4.5,
				NoiseM:       3,
			},
		},
		Tracker: TrackerConfig{
			MaxAccuracy:              Distance(80),
			MaxSpeedMPS:              15,
			MaxConsecutiveRejections: 5,
			MinRecordInterval:        Duration(3 * time.Second),
			MinRecordDistance:        Distance(5),
			DefaultWidthFeet:         50,
		},
		Fields: FieldsConfig{
			Path:         "./data/fields.geojson",
			H3Resolution: 7,
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT
// save back to disk (to preserve user formatting and comments).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		return cfg, nil
	}

	if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# SwathTrack Configuration
# ------------------------
# Supported units:
#   Duration: ns, us, ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km, ft, nm

`)
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return Save(path, DefaultConfig())
}
