package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MotorConfig holds the pin assignment and positioning knobs for the
// motor.
type MotorConfig struct {
	EnablePin   int `yaml:"enable_pin"`
	DirPin      int `yaml:"dir_pin"`
	PwmPin      int `yaml:"pwm_pin"` // must be PWM-capable (BCM 12/13/18/19 on a Pi)
	EncoderAPin int `yaml:"encoder_a_pin"`
	EncoderBPin int `yaml:"encoder_b_pin"`

	Epsilon          int64 `yaml:"epsilon"`           // "close enough" band in ticks
	OutputMultiplier int64 `yaml:"output_multiplier"` // gearing: output rotations per motor rotation
}

// PIDConfig holds the control loop tunings.
type PIDConfig struct {
	Kp           float64 `yaml:"kp"`
	Ki           float64 `yaml:"ki"`
	Kd           float64 `yaml:"kd"`
	SampleTimeMs int     `yaml:"sample_time_ms"` // minimum interval between PID computations
	Direction    string  `yaml:"direction"`      // "reverse" (NXT wiring, default) or "forward"
}

// GPIOConfig selects how pins are reached.
type GPIOConfig struct {
	Driver  string `yaml:"driver"`   // "mock" (default), "rpio" or "mcp23017"
	I2CBus  string `yaml:"i2c_bus"`  // mcp23017 only; "" = first bus
	I2CAddr uint16 `yaml:"i2c_addr"` // mcp23017 only; 0 = 0x20
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel    int `yaml:"debug_level"`     // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	EncoderPollUs int `yaml:"encoder_poll_us"` // background quadrature poll interval (microseconds)
}

// SequenceStep is one scripted move. Exactly one of angle/position.
type SequenceStep struct {
	Angle     *int64 `yaml:"angle,omitempty"`
	Position  *int64 `yaml:"position,omitempty"`
	TimeoutMs int    `yaml:"timeout_ms"` // 0 = wait without a deadline
	PauseMs   int    `yaml:"pause_ms"`
}

// Config aggregates all application configuration.
type Config struct {
	Motor    MotorConfig    `yaml:"motor"`
	PID      PIDConfig      `yaml:"pid"`
	GPIO     GPIOConfig     `yaml:"gpio"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Sequence []SequenceStep `yaml:"sequence,omitempty"`
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Basic validation
	if cfg.Motor.EnablePin <= 0 {
		return nil, fmt.Errorf("motor.enable_pin is required")
	}
	if cfg.Motor.DirPin <= 0 {
		return nil, fmt.Errorf("motor.dir_pin is required")
	}
	if cfg.Motor.PwmPin <= 0 {
		return nil, fmt.Errorf("motor.pwm_pin is required")
	}
	if cfg.Motor.EncoderAPin <= 0 || cfg.Motor.EncoderBPin <= 0 {
		return nil, fmt.Errorf("motor.encoder_a_pin and motor.encoder_b_pin are required")
	}

	switch cfg.GPIO.Driver {
	case "", "mock", "rpio", "mcp23017":
	default:
		return nil, fmt.Errorf("gpio.driver must be mock, rpio or mcp23017, got %q", cfg.GPIO.Driver)
	}

	switch cfg.PID.Direction {
	case "", "reverse", "forward":
	default:
		return nil, fmt.Errorf("pid.direction must be forward or reverse, got %q", cfg.PID.Direction)
	}

	if cfg.Defaults.DebugLevel < 0 || cfg.Defaults.DebugLevel > 4 {
		return nil, fmt.Errorf("debug_level must be between 0 and 4, got %d", cfg.Defaults.DebugLevel)
	}

	for i, step := range cfg.Sequence {
		if step.Angle == nil && step.Position == nil {
			return nil, fmt.Errorf("sequence step %d: needs an angle or a position", i+1)
		}
		if step.Angle != nil && step.Position != nil {
			return nil, fmt.Errorf("sequence step %d: angle and position are mutually exclusive", i+1)
		}
		if step.TimeoutMs < 0 || step.PauseMs < 0 {
			return nil, fmt.Errorf("sequence step %d: negative durations are not allowed", i+1)
		}
	}

	// Default values
	if cfg.PID.SampleTimeMs <= 0 {
		cfg.PID.SampleTimeMs = 50
	}
	if cfg.Motor.Epsilon == 0 {
		cfg.Motor.Epsilon = 5
	}
	if cfg.Motor.OutputMultiplier == 0 {
		cfg.Motor.OutputMultiplier = 1
	}
	if cfg.Defaults.EncoderPollUs <= 0 {
		cfg.Defaults.EncoderPollUs = 200
	}

	return &cfg, nil
}

// SampleTime returns the minimum interval between PID computations.
func (c *Config) SampleTime() time.Duration {
	return time.Duration(c.PID.SampleTimeMs) * time.Millisecond
}

// Reverse reports whether the PID engine runs reversed. The NXT wiring
// needs a reversed loop, so that is the default.
func (c *Config) Reverse() bool {
	return c.PID.Direction != "forward"
}

// EncoderPollInterval returns the background quadrature poll interval.
func (c *Config) EncoderPollInterval() time.Duration {
	return time.Duration(c.Defaults.EncoderPollUs) * time.Microsecond
}
