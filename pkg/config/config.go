package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itohio/golevel/pkg/level"
)

// NumSensors is the length of the per-sensor lists.
const NumSensors = level.NumSensors

// Config represents the application configuration.
type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	Sensor  SensorConfig  `yaml:"sensor"`
	Level   LevelConfig   `yaml:"level"`
	Loop    LoopConfig    `yaml:"loop"`
	Output  OutputConfig  `yaml:"output"`
	Storage StorageConfig `yaml:"storage"`
	Mock    MockConfig    `yaml:"mock"`
	Monitor MonitorConfig `yaml:"monitor"`
}

// SerialConfig is the console port the control loop talks on.
type SerialConfig struct {
	Port     string `yaml:"port"` // Empty means stdin/stdout
	BaudRate int    `yaml:"baud_rate"`
}

// SensorConfig selects where raw counts come from.
type SensorConfig struct {
	Source   string `yaml:"source"` // "mock" or "serial"
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// LevelConfig tunes the level pipeline.
type LevelConfig struct {
	MaxHeightMm int32   `yaml:"max_height_mm"`
	Scales      []int16 `yaml:"scales"`     // 8.8 fixed point, 256 = 1.0
	Thresholds  []int32 `yaml:"thresholds"` // Submerged when processed > threshold/2
}

// LoopConfig controls the pace of the control loop.
type LoopConfig struct {
	Delay        time.Duration `yaml:"delay"`         // Pause between iterations
	PollInterval time.Duration `yaml:"poll_interval"` // Busy-check period while a scan runs
}

// OutputConfig selects the console output at boot.
type OutputConfig struct {
	Mode string `yaml:"mode"` // none, basic or csv
}

// StorageConfig locates the calibration partition image.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// MockConfig contains simulated tank configuration.
type MockConfig struct {
	MaxHeightMm  int32         `yaml:"max_height_mm"` // Height of the simulated array
	Baseline     int32         `yaml:"baseline"`      // Empty count of sensor 0
	BaselineStep int32         `yaml:"baseline_step"` // Extra empty counts per sensor position
	Span         int32         `yaml:"span"`          // Counts added by a fully covered segment
	Noise        int32         `yaml:"noise"`         // Noise amplitude in counts
	FillPeriod   time.Duration `yaml:"fill_period"`   // Empty to full and back
	ScanTime     time.Duration `yaml:"scan_time"`     // Simulated scan duration
}

// MonitorConfig contains the host monitor's settings.
type MonitorConfig struct {
	Port           string `yaml:"port"`
	BaudRate       int    `yaml:"baud_rate"`
	AverageSamples int    `yaml:"average_samples"` // Rows to average for display (0 = disabled)
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	cfg := &Config{
		Serial: SerialConfig{
			Port:     "",
			BaudRate: 115200,
		},
		Sensor: SensorConfig{
			Source:   "mock",
			Port:     "/dev/ttyUSB0",
			BaudRate: 115200,
		},
		Level: LevelConfig{
			MaxHeightMm: 153,
			Scales:      make([]int16, NumSensors),
			Thresholds:  make([]int32, NumSensors),
		},
		Loop: LoopConfig{
			Delay:        100 * time.Millisecond,
			PollInterval: time.Millisecond,
		},
		Output: OutputConfig{
			Mode: "basic",
		},
		Storage: StorageConfig{
			Path: "eeprom.bin",
		},
		Mock: MockConfig{
			MaxHeightMm:  153,
			Baseline:     800,
			BaselineStep: 7,
			Span:         400,
			Noise:        3,
			FillPeriod:   60 * time.Second,
			ScanTime:     5 * time.Millisecond,
		},
		Monitor: MonitorConfig{
			Port:           "COM3", // Default for Windows, should be "/dev/ttyACM0" on Linux/Mac
			BaudRate:       115200,
			AverageSamples: 0,
		},
	}

	for i := range NumSensors {
		cfg.Level.Scales[i] = 0x0100
		cfg.Level.Thresholds[i] = 142
	}
	// Edge segments are half height.
	cfg.Level.Scales[0] = 0x01D0
	cfg.Level.Scales[NumSensors-1] = 0x01C0

	return cfg
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// The simulated array follows level.max_height_mm unless the file sizes
	// it separately.
	cfg.Mock.MaxHeightMm = 0

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Ensure minimum required fields are set (use defaults if missing)
	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if len(c.Level.Scales) != NumSensors {
		return fmt.Errorf("level.scales: expected %d values, got %d", NumSensors, len(c.Level.Scales))
	}
	if len(c.Level.Thresholds) != NumSensors {
		return fmt.Errorf("level.thresholds: expected %d values, got %d", NumSensors, len(c.Level.Thresholds))
	}
	switch c.Sensor.Source {
	case "mock", "serial":
	default:
		return fmt.Errorf("sensor.source: unknown source %q", c.Sensor.Source)
	}
	switch c.Output.Mode {
	case "none", "stop", "basic", "csv", "csvinit":
	default:
		return fmt.Errorf("output.mode: unknown mode %q", c.Output.Mode)
	}
	return nil
}

// LevelParams converts the level section into pipeline parameters.
func (c *Config) LevelParams() (level.Params, error) {
	if err := c.Validate(); err != nil {
		return level.Params{}, err
	}
	p := level.Params{MaxHeightMm: c.Level.MaxHeightMm}
	copy(p.Scales[:], c.Level.Scales)
	copy(p.Thresholds[:], c.Level.Thresholds)
	if err := p.Validate(); err != nil {
		return level.Params{}, err
	}
	return p, nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Sensor.Source == "" {
		c.Sensor.Source = def.Sensor.Source
	}
	if c.Sensor.BaudRate == 0 {
		c.Sensor.BaudRate = def.Sensor.BaudRate
	}

	if c.Level.MaxHeightMm == 0 {
		c.Level.MaxHeightMm = def.Level.MaxHeightMm
	}
	if len(c.Level.Scales) == 0 {
		c.Level.Scales = def.Level.Scales
	}
	if len(c.Level.Thresholds) == 0 {
		c.Level.Thresholds = def.Level.Thresholds
	}

	if c.Loop.Delay == 0 {
		c.Loop.Delay = def.Loop.Delay
	}
	if c.Loop.PollInterval == 0 {
		c.Loop.PollInterval = def.Loop.PollInterval
	}

	if c.Output.Mode == "" {
		c.Output.Mode = def.Output.Mode
	}

	if c.Storage.Path == "" {
		c.Storage.Path = def.Storage.Path
	}

	if c.Mock.MaxHeightMm == 0 {
		c.Mock.MaxHeightMm = c.Level.MaxHeightMm
	}
	if c.Mock.Baseline == 0 {
		c.Mock.Baseline = def.Mock.Baseline
	}
	if c.Mock.Span == 0 {
		c.Mock.Span = def.Mock.Span
	}
	if c.Mock.ScanTime == 0 {
		c.Mock.ScanTime = def.Mock.ScanTime
	}

	if c.Monitor.Port == "" {
		c.Monitor.Port = def.Monitor.Port
	}
	if c.Monitor.BaudRate == 0 {
		c.Monitor.BaudRate = def.Monitor.BaudRate
	}
}
