package calib

import (
	"fmt"
	"image"
	"math"
	"strings"
	"time"

	"github.com/teslashibe/camtools/internal/log"
	"gocv.io/x/gocv"
)

// Flag is an OpenCV calibrateCamera flag (cv::CALIB_*).
type Flag int

// Values from opencv2/calib3d.hpp. gocv only exports the fisheye set.
const (
	UseIntrinsicGuess Flag = 1 << 0
	FixAspectRatio    Flag = 1 << 1
	FixPrincipalPoint Flag = 1 << 2
	ZeroTangentDist   Flag = 1 << 3
)

// String lists the set flags, e.g. "fix_aspect_ratio+zero_tangent_dist".
func (f Flag) String() string {
	var parts []string
	if f&UseIntrinsicGuess != 0 {
		parts = append(parts, "use_intrinsic_guess")
	}
	if f&FixAspectRatio != 0 {
		parts = append(parts, "fix_aspect_ratio")
	}
	if f&FixPrincipalPoint != 0 {
		parts = append(parts, "fix_principal_point")
	}
	if f&ZeroTangentDist != 0 {
		parts = append(parts, "zero_tangent_dist")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// Options controls a calibration run.
type Options struct {
	MinSamples  int
	Flags       Flag
	AspectRatio float64 // fx/fy, used with FixAspectRatio
	SessionID   string
}

// Calibrate runs one blocking cv::calibrateCamera over all samples.
// It refuses to run with fewer than opts.MinSamples samples.
func Calibrate(samples []Sample, size image.Point, opts Options) (*Intrinsics, error) {
	if len(samples) < opts.MinSamples {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientSamples, len(samples), opts.MinSamples)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrInsufficientSamples)
	}
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", size.X, size.Y)
	}

	objPts := make([][]gocv.Point3f, 0, len(samples))
	imgPts := make([][]gocv.Point2f, 0, len(samples))
	for i, s := range samples {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		objPts = append(objPts, s.ObjectPoints)
		imgPts = append(imgPts, s.ImagePoints)
	}

	objVec := gocv.NewPoints3fVectorFromPoints(objPts)
	defer objVec.Close()
	imgVec := gocv.NewPoints2fVectorFromPoints(imgPts)
	defer imgVec.Close()

	cameraMatrix := gocv.NewMat()
	if opts.Flags&FixAspectRatio != 0 {
		cameraMatrix.Close()
		cameraMatrix = gocv.Eye(3, 3, gocv.MatTypeCV64F)
		aspect := opts.AspectRatio
		if aspect <= 0 {
			aspect = 1
		}
		cameraMatrix.SetDoubleAt(0, 0, aspect)
	}
	defer cameraMatrix.Close()

	distCoeffs := gocv.NewMat()
	defer distCoeffs.Close()
	rvecs := gocv.NewMat()
	defer rvecs.Close()
	tvecs := gocv.NewMat()
	defer tvecs.Close()

	log.Debug("calibrating", "samples", len(samples), "width", size.X, "height", size.Y, "flags", opts.Flags.String())

	start := time.Now()
	rms := gocv.CalibrateCamera(objVec, imgVec, size, &cameraMatrix, &distCoeffs, &rvecs, &tvecs, gocv.CalibFlag(opts.Flags))

	if math.IsNaN(rms) || math.IsInf(rms, 0) || rms <= 0 {
		return nil, fmt.Errorf("calibration failed: reprojection error %v", rms)
	}
	if cameraMatrix.Rows() != 3 || cameraMatrix.Cols() != 3 {
		return nil, fmt.Errorf("calibration failed: camera matrix is %dx%d", cameraMatrix.Rows(), cameraMatrix.Cols())
	}

	in := intrinsicsFromMats(cameraMatrix, distCoeffs)
	in.ImageSize = size
	in.RMS = rms
	in.Flags = opts.Flags
	in.AspectRatio = opts.AspectRatio
	in.CalibratedAt = time.Now()
	in.SessionID = opts.SessionID

	log.Info("calibration finished",
		"rms", rms,
		"fx", in.Fx(), "fy", in.Fy(),
		"cx", in.Cx(), "cy", in.Cy(),
		"elapsed", time.Since(start).Round(time.Millisecond))

	return in, nil
}
