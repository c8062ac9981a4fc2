package main

import (
	"flag"
	"io"
	"testing"

	"github.com/teslashibe/camtools/internal/config"
)

func TestParseFlags(t *testing.T) {
	env := config.Env{CameraID: 0, LogLevel: "info", CalibFile: "calibration_params.yaml"}

	tests := []struct {
		name        string
		args        []string
		showCorners bool
		refine      bool
		squaresX    int
		output      string
	}{
		{"defaults", nil, true, false, 8, "calibration_params.yaml"},
		{"review off", []string{"-sc=false"}, false, false, 8, "calibration_params.yaml"},
		{"board and output", []string{"-w", "5", "-rs", "-o", "cam.xml"}, true, true, 5, "cam.xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("calib-charuco", flag.ContinueOnError)
			fs.SetOutput(io.Discard)
			o, err := parseFlags(fs, env, tt.args)
			if err != nil {
				t.Fatalf("parseFlags(%v): %v", tt.args, err)
			}
			if o.showCorners != tt.showCorners {
				t.Errorf("showCorners = %v, want %v", o.showCorners, tt.showCorners)
			}
			if o.refine != tt.refine {
				t.Errorf("refine = %v, want %v", o.refine, tt.refine)
			}
			if o.board.SquaresX != tt.squaresX {
				t.Errorf("squaresX = %d, want %d", o.board.SquaresX, tt.squaresX)
			}
			if o.output != tt.output {
				t.Errorf("output = %q, want %q", o.output, tt.output)
			}
		})
	}
}

func TestCalibOptions_Minimum(t *testing.T) {
	opts := calibOptions(true, 1.0, true, "s")
	if opts.MinSamples != 4 {
		t.Errorf("MinSamples = %d, want 4", opts.MinSamples)
	}
	if opts.AspectRatio != 1.0 || opts.SessionID != "s" {
		t.Errorf("options = %+v", opts)
	}
}
