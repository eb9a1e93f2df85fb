package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
motor:
  enable_pin: 22
  dir_pin: 23
  pwm_pin: 18
  encoder_a_pin: 17
  encoder_b_pin: 27
pid:
  kp: 2.64
  ki: 14.432
  kd: 0.1207317073
gpio:
  driver: mock
defaults:
  debug_level: 2
`

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Motor.EnablePin != 22 || cfg.Motor.DirPin != 23 || cfg.Motor.PwmPin != 18 {
		t.Errorf("motor pins = %+v", cfg.Motor)
	}
	if cfg.Motor.EncoderAPin != 17 || cfg.Motor.EncoderBPin != 27 {
		t.Errorf("encoder pins = %d/%d", cfg.Motor.EncoderAPin, cfg.Motor.EncoderBPin)
	}
	if cfg.PID.Kp != 2.64 {
		t.Errorf("kp = %v, want 2.64", cfg.PID.Kp)
	}
	if cfg.Defaults.DebugLevel != 2 {
		t.Errorf("debug level = %d, want 2", cfg.Defaults.DebugLevel)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.PID.SampleTimeMs != 50 {
		t.Errorf("sample_time_ms default = %d, want 50", cfg.PID.SampleTimeMs)
	}
	if cfg.SampleTime() != 50*time.Millisecond {
		t.Errorf("SampleTime() = %v, want 50ms", cfg.SampleTime())
	}
	if cfg.Motor.Epsilon != 5 {
		t.Errorf("epsilon default = %d, want 5", cfg.Motor.Epsilon)
	}
	if cfg.Motor.OutputMultiplier != 1 {
		t.Errorf("output_multiplier default = %d, want 1", cfg.Motor.OutputMultiplier)
	}
	if cfg.EncoderPollInterval() != 200*time.Microsecond {
		t.Errorf("EncoderPollInterval() = %v, want 200µs", cfg.EncoderPollInterval())
	}
	if !cfg.Reverse() {
		t.Error("the PID loop should default to reversed")
	}
}

func TestLoad_ForwardDirection(t *testing.T) {
	content := strings.Replace(validConfig, "kd: 0.1207317073", "kd: 0.1207317073\n  direction: forward", 1)
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Reverse() {
		t.Error("direction: forward should not report reversed")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, ": not yaml [")); err == nil {
		t.Error("malformed yaml should fail")
	}
}

func TestLoad_RequiredPins(t *testing.T) {
	tests := []struct {
		name   string
		drop   string
		expect string
	}{
		{"enable", "  enable_pin: 22\n", "enable_pin"},
		{"dir", "  dir_pin: 23\n", "dir_pin"},
		{"pwm", "  pwm_pin: 18\n", "pwm_pin"},
		{"encoder a", "  encoder_a_pin: 17\n", "encoder_a_pin"},
		{"encoder b", "  encoder_b_pin: 27\n", "encoder_a_pin"},
	}
	for _, tt := range tests {
		content := strings.Replace(validConfig, tt.drop, "", 1)
		_, err := Load(writeConfig(t, content))
		if err == nil {
			t.Errorf("%s: missing pin should fail", tt.name)
			continue
		}
		if !strings.Contains(err.Error(), tt.expect) {
			t.Errorf("%s: error = %v, want mention of %s", tt.name, err, tt.expect)
		}
	}
}

func TestLoad_BadDriver(t *testing.T) {
	content := strings.Replace(validConfig, "driver: mock", "driver: banana", 1)
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Error("unknown gpio driver should fail")
	}
}

func TestLoad_BadDirection(t *testing.T) {
	content := strings.Replace(validConfig, "kp: 2.64", "kp: 2.64\n  direction: sideways", 1)
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Error("unknown pid direction should fail")
	}
}

func TestLoad_BadDebugLevel(t *testing.T) {
	content := strings.Replace(validConfig, "debug_level: 2", "debug_level: 9", 1)
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Error("debug level above 4 should fail")
	}
}

func TestLoad_Sequence(t *testing.T) {
	content := validConfig + `
sequence:
  - angle: 90
    timeout_ms: 2000
    pause_ms: 500
  - position: -720
  - angle: 0
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Sequence) != 3 {
		t.Fatalf("sequence length = %d, want 3", len(cfg.Sequence))
	}
	if cfg.Sequence[0].Angle == nil || *cfg.Sequence[0].Angle != 90 {
		t.Errorf("step 1 = %+v, want angle 90", cfg.Sequence[0])
	}
	if cfg.Sequence[0].TimeoutMs != 2000 || cfg.Sequence[0].PauseMs != 500 {
		t.Errorf("step 1 durations = %+v", cfg.Sequence[0])
	}
	if cfg.Sequence[1].Position == nil || *cfg.Sequence[1].Position != -720 {
		t.Errorf("step 2 = %+v, want position -720", cfg.Sequence[1])
	}
}

func TestLoad_SequenceValidation(t *testing.T) {
	empty := validConfig + "\nsequence:\n  - timeout_ms: 100\n"
	if _, err := Load(writeConfig(t, empty)); err == nil {
		t.Error("a step with no target should fail")
	}

	both := validConfig + "\nsequence:\n  - angle: 1\n    position: 2\n"
	if _, err := Load(writeConfig(t, both)); err == nil {
		t.Error("a step with both targets should fail")
	}

	negative := validConfig + "\nsequence:\n  - angle: 1\n    timeout_ms: -5\n"
	if _, err := Load(writeConfig(t, negative)); err == nil {
		t.Error("negative durations should fail")
	}
}

func TestLoad_ZeroAngleStepIsValid(t *testing.T) {
	// angle: 0 must parse as a present target, not a missing one.
	content := validConfig + "\nsequence:\n  - angle: 0\n"
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sequence[0].Angle == nil || *cfg.Sequence[0].Angle != 0 {
		t.Errorf("step = %+v, want angle 0", cfg.Sequence[0])
	}
}
