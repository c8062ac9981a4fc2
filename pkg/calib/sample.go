// Package calib accumulates calibration samples, runs camera calibration
// through OpenCV and persists the resulting intrinsics.
package calib

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// Minimum accepted samples before calibration may run.
const (
	MinChessboardSamples = 20
	MinCharucoSamples    = 4
)

var (
	// ErrEmptySample is returned when a sample carries no correspondences.
	ErrEmptySample = errors.New("sample has no point correspondences")

	// ErrInsufficientSamples is returned when calibration is requested
	// before enough samples were accumulated.
	ErrInsufficientSamples = errors.New("insufficient calibration samples")
)

// Sample pairs the image points observed in one accepted frame with the
// board-local reference points they correspond to.
type Sample struct {
	ImagePoints  []gocv.Point2f
	ObjectPoints []gocv.Point3f

	// IDs holds ChArUco corner ids when the sample came from a ChArUco
	// board. Empty for chessboard samples.
	IDs []int
}

// Len returns the number of correspondences.
func (s Sample) Len() int {
	return len(s.ImagePoints)
}

// Validate checks the sample is usable for calibration.
func (s Sample) Validate() error {
	if len(s.ImagePoints) == 0 || len(s.ObjectPoints) == 0 {
		return ErrEmptySample
	}
	if len(s.ImagePoints) != len(s.ObjectPoints) {
		return fmt.Errorf("sample point count mismatch: %d image vs %d object",
			len(s.ImagePoints), len(s.ObjectPoints))
	}
	if len(s.IDs) > 0 && len(s.IDs) != len(s.ImagePoints) {
		return fmt.Errorf("sample id count mismatch: %d ids vs %d points",
			len(s.IDs), len(s.ImagePoints))
	}
	return nil
}

// Accumulator is the append-only list of accepted samples for one session.
// It never shrinks or reorders.
type Accumulator struct {
	samples []Sample
	min     int
}

// NewAccumulator creates an accumulator that is ready for calibration once
// it holds min samples.
func NewAccumulator(min int) *Accumulator {
	return &Accumulator{
		samples: make([]Sample, 0, min),
		min:     min,
	}
}

// Add appends s. Invalid samples are rejected and leave the accumulator
// unchanged.
func (a *Accumulator) Add(s Sample) error {
	if err := s.Validate(); err != nil {
		return err
	}
	a.samples = append(a.samples, s)
	return nil
}

// Len returns the number of accepted samples.
func (a *Accumulator) Len() int {
	return len(a.samples)
}

// Min returns the number of samples required before calibration.
func (a *Accumulator) Min() int {
	return a.min
}

// Ready reports whether enough samples were accepted.
func (a *Accumulator) Ready() bool {
	return len(a.samples) >= a.min
}

// Samples returns a copy of the accepted samples in insertion order.
func (a *Accumulator) Samples() []Sample {
	out := make([]Sample, len(a.samples))
	copy(out, a.samples)
	return out
}

// At returns the i-th accepted sample.
func (a *Accumulator) At(i int) Sample {
	return a.samples[i]
}
