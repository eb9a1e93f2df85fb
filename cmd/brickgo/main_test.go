package main

import (
	"testing"
	"time"

	"github.com/cjeanneret/BrickGo/internal/config"
)

// ---------- webPortFlag ----------

func TestWebPortFlag_EmptyString(t *testing.T) {
	w := &webPortFlag{defaultPort: 8080}
	if err := w.Set(""); err != nil {
		t.Fatalf("Set(\"\") error: %v", err)
	}
	if w.port() != 8080 {
		t.Errorf("expected default port 8080, got %d", w.port())
	}
}

func TestWebPortFlag_ValidPorts(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{"8080", 8080},
		{"1", 1},
		{"65535", 65535},
		{"3000", 3000},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(tc.input); err != nil {
				t.Fatalf("Set(%q) error: %v", tc.input, err)
			}
			if w.port() != tc.want {
				t.Errorf("port() = %d, want %d", w.port(), tc.want)
			}
		})
	}
}

func TestWebPortFlag_InvalidPorts(t *testing.T) {
	cases := []string{"0", "65536", "-1", "abc", "8080.5"}
	for _, input := range cases {
		t.Run(input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(input); err == nil {
				t.Errorf("Set(%q) should fail, got nil", input)
			}
		})
	}
}

func TestWebPortFlag_String(t *testing.T) {
	w := &webPortFlag{val: 0}
	if s := w.String(); s != "0" {
		t.Errorf("String() = %q, want \"0\"", s)
	}
	w.val = 9090
	if s := w.String(); s != "9090" {
		t.Errorf("String() = %q, want \"9090\"", s)
	}
}

// ---------- stepsFromConfig ----------

func i64(v int64) *int64 { return &v }

func TestStepsFromConfig(t *testing.T) {
	in := []config.SequenceStep{
		{Angle: i64(90), TimeoutMs: 2000, PauseMs: 500},
		{Position: i64(-720)},
		{Angle: i64(0)},
	}
	out := stepsFromConfig(in)

	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	if out[0].Angle == nil || *out[0].Angle != 90 {
		t.Errorf("step 1 = %+v, want angle 90", out[0])
	}
	if out[0].Timeout != 2*time.Second || out[0].Pause != 500*time.Millisecond {
		t.Errorf("step 1 durations = %+v", out[0])
	}
	if out[1].Position == nil || *out[1].Position != -720 {
		t.Errorf("step 2 = %+v, want position -720", out[1])
	}
	if out[1].Timeout != 0 || out[1].Pause != 0 {
		t.Errorf("step 2 should carry no durations, got %+v", out[1])
	}
	if out[2].Angle == nil || *out[2].Angle != 0 {
		t.Errorf("step 3 = %+v, want angle 0", out[2])
	}
}

func TestStepsFromConfig_Empty(t *testing.T) {
	if out := stepsFromConfig(nil); len(out) != 0 {
		t.Errorf("expected no steps, got %v", out)
	}
}
