package calib

import (
	"errors"
	"image"
	"math"
	"testing"

	"gocv.io/x/gocv"
)

// syntheticViews projects a 7x10 board with 25mm squares through an ideal
// pinhole camera from n different poses.
func syntheticViews(n int, fx, fy, cx, cy float64) []Sample {
	const (
		cols   = 7
		rows   = 10
		square = 0.025
	)

	var board []gocv.Point3f
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			board = append(board, gocv.Point3f{X: float32(j) * square, Y: float32(i) * square})
		}
	}

	samples := make([]Sample, 0, n)
	for v := 0; v < n; v++ {
		ax := (float64(v%5) - 2) * 0.15 // about +-17 degrees
		ay := (float64(v%4) - 1.5) * 0.2
		tx := -0.09 + 0.01*float64(v%3)
		ty := -0.12 + 0.01*float64(v%2)
		tz := 0.55 + 0.02*float64(v%6)

		sx, cxr := math.Sin(ax), math.Cos(ax)
		sy, cyr := math.Sin(ay), math.Cos(ay)

		s := Sample{ObjectPoints: board}
		for k, p := range board {
			x, y, z := float64(p.X), float64(p.Y), float64(p.Z)
			// rotate about x then y
			y, z = y*cxr-z*sx, y*sx+z*cxr
			x, z = x*cyr+z*sy, -x*sy+z*cyr
			x, y, z = x+tx, y+ty, z+tz

			// deterministic sub-pixel jitter
			jitter := 0.05 * math.Sin(float64(v*131+k*17))
			u := fx*x/z + cx + jitter
			w := fy*y/z + cy - jitter
			s.ImagePoints = append(s.ImagePoints, gocv.Point2f{X: float32(u), Y: float32(w)})
		}
		samples = append(samples, s)
	}
	return samples
}

func TestCalibrate_RefusesBelowThreshold(t *testing.T) {
	samples := syntheticViews(MinChessboardSamples-1, 800, 800, 320, 240)

	_, err := Calibrate(samples, image.Pt(640, 480), Options{MinSamples: MinChessboardSamples})
	if !errors.Is(err, ErrInsufficientSamples) {
		t.Errorf("Calibrate = %v, want ErrInsufficientSamples", err)
	}

	_, err = Calibrate(nil, image.Pt(640, 480), Options{})
	if !errors.Is(err, ErrInsufficientSamples) {
		t.Errorf("Calibrate(nil) = %v, want ErrInsufficientSamples", err)
	}
}

func TestCalibrate_InvalidSize(t *testing.T) {
	samples := syntheticViews(MinCharucoSamples, 800, 800, 320, 240)
	if _, err := Calibrate(samples, image.Point{}, Options{MinSamples: MinCharucoSamples}); err == nil {
		t.Error("expected error for zero image size")
	}
}

func TestCalibrate_RecoversIntrinsics(t *testing.T) {
	const fx, fy, cx, cy = 800.0, 790.0, 320.0, 240.0
	samples := syntheticViews(MinChessboardSamples, fx, fy, cx, cy)

	in, err := Calibrate(samples, image.Pt(640, 480), Options{
		MinSamples: MinChessboardSamples,
		SessionID:  "test-session",
	})
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}

	if in.RMS <= 0 || in.RMS > 1 {
		t.Errorf("RMS = %v, want small positive", in.RMS)
	}
	if math.Abs(in.Fx()-fx)/fx > 0.05 {
		t.Errorf("fx = %.1f, want about %.1f", in.Fx(), fx)
	}
	if math.Abs(in.Fy()-fy)/fy > 0.05 {
		t.Errorf("fy = %.1f, want about %.1f", in.Fy(), fy)
	}
	if len(in.DistCoeffs) != 5 {
		t.Errorf("len(DistCoeffs) = %d, want 5", len(in.DistCoeffs))
	}
	if in.CameraMatrix[2][2] != 1 {
		t.Errorf("camera_matrix[2][2] = %v, want 1", in.CameraMatrix[2][2])
	}
	if in.SessionID != "test-session" || in.ImageSize != image.Pt(640, 480) {
		t.Errorf("metadata not carried: %+v", in)
	}
}

func TestIntrinsics_Mats(t *testing.T) {
	in := sampleIntrinsics()

	cm := in.CameraMat()
	defer cm.Close()
	if cm.Rows() != 3 || cm.Cols() != 3 {
		t.Fatalf("camera mat is %dx%d", cm.Rows(), cm.Cols())
	}
	if cm.GetDoubleAt(0, 2) != in.Cx() {
		t.Errorf("cx = %v, want %v", cm.GetDoubleAt(0, 2), in.Cx())
	}

	dm := in.DistMat()
	defer dm.Close()
	if dm.Cols() != len(in.DistCoeffs) || dm.GetDoubleAt(0, 4) != in.DistCoeffs[4] {
		t.Errorf("dist mat mismatch")
	}

	empty := (&Intrinsics{}).DistMat()
	defer empty.Close()
	if !empty.Empty() {
		t.Error("no coefficients should give an empty Mat")
	}
}

func TestIntrinsics_Project(t *testing.T) {
	in := &Intrinsics{CameraMatrix: [3][3]float64{{500, 0, 320}, {0, 500, 240}, {0, 0, 1}}}

	p, ok := in.Project(0, 0, 1)
	if !ok || p != image.Pt(320, 240) {
		t.Errorf("Project(optical axis) = %v, %v", p, ok)
	}
	p, ok = in.Project(0.1, -0.1, 1)
	if !ok || p != image.Pt(370, 190) {
		t.Errorf("Project = %v, want (370,190)", p)
	}
	if _, ok := in.Project(0, 0, -1); ok {
		t.Error("point behind camera should not project")
	}
}
