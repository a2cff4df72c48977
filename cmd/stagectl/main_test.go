package main

import (
	"testing"

	"github.com/cjeanneret/stagectl/internal/config"
	"github.com/cjeanneret/stagectl/internal/hw/gpio"
)

func TestParseArgs_Valid(t *testing.T) {
	cases := []struct {
		arg  string
		want gpio.Level
	}{
		{"on", gpio.High},
		{"off", gpio.Low},
	}
	for _, tc := range cases {
		t.Run(tc.arg, func(t *testing.T) {
			got, err := parseArgs([]string{tc.arg})
			if err != nil {
				t.Fatalf("parseArgs(%q): %v", tc.arg, err)
			}
			if got != tc.want {
				t.Errorf("parseArgs(%q) = %v, want %v", tc.arg, got, tc.want)
			}
		})
	}
}

func TestParseArgs_Invalid(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"none", nil},
		{"two", []string{"on", "off"}},
		{"uppercase", []string{"ON"}},
		{"other", []string{"1"}},
		{"empty", []string{""}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseArgs(tc.args); err == nil {
				t.Errorf("parseArgs(%q) should fail", tc.args)
			}
		})
	}
}

func TestSetupEStop(t *testing.T) {
	drv := gpio.NewMockDriver()
	e := config.Default().EStop
	if err := setupEStop(drv, e); err != nil {
		t.Fatalf("setupEStop: %v", err)
	}
	if m, ok := drv.Mode(e.InputPin); !ok || m != gpio.Input {
		t.Errorf("input pin mode = %v, %v, want input", m, ok)
	}
	if m, ok := drv.Mode(e.SignalPin); !ok || m != gpio.Output {
		t.Errorf("signal pin mode = %v, %v, want output", m, ok)
	}
}

func TestNewAxis_FromConfig(t *testing.T) {
	drv := gpio.NewMockDriver()
	cfg := config.Default()
	if _, err := newAxis(drv, "Y", cfg.YAxis, cfg); err != nil {
		t.Fatalf("newAxis: %v", err)
	}
	for _, pin := range []int{48, 49, 115, 112} {
		if m, ok := drv.Mode(pin); !ok || m != gpio.Output {
			t.Errorf("pin %d mode = %v, %v, want output", pin, m, ok)
		}
	}
}
