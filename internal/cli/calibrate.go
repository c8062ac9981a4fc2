package cli

import (
	"fmt"
	"image"

	"github.com/teslashibe/camtools/internal/log"
	"github.com/teslashibe/camtools/pkg/calib"
	"github.com/teslashibe/camtools/pkg/capture"
)

// NewCalibrationSession creates a session that cannot calibrate with fewer
// than min samples. stopAt ends capture once reached and is refused below
// min; zero leaves capture open until escape.
func NewCalibrationSession(tool string, min, stopAt int) (*capture.Session, error) {
	if stopAt != 0 && stopAt < min {
		return nil, fmt.Errorf("capture limit %d is below the %d samples calibration needs", stopAt, min)
	}
	return capture.NewSession(tool, calib.NewAccumulator(min), stopAt), nil
}

// Calibrator runs the one-shot calibration at the end of a capture session
// and writes the parameter file.
type Calibrator struct {
	Output  string
	Options calib.Options

	// Result is set after a successful Run.
	Result *calib.Intrinsics
}

// Run calibrates from samples and saves the result. Its signature matches
// capture.Session.Finish.
func (c *Calibrator) Run(samples []calib.Sample, size image.Point) error {
	fmt.Println("Performing camera calibration...")

	in, err := calib.Calibrate(samples, size, c.Options)
	if err != nil {
		return fmt.Errorf("calibrate: %w", err)
	}
	if err := calib.Save(c.Output, in); err != nil {
		return fmt.Errorf("cannot save output file: %w", err)
	}
	c.Result = in

	fmt.Printf("Calibration successful. RMS reprojection error: %g\n", in.RMS)
	fmt.Printf("Calibration saved to %s\n", c.Output)
	log.Info("calibration saved",
		"file", c.Output,
		"samples", len(samples),
		"rms", in.RMS,
		"fx", in.Fx(),
		"fy", in.Fy())
	return nil
}
