package calib

import (
	"image"
	"time"

	"gocv.io/x/gocv"
)

// Intrinsics is the optical model of one camera: the 3x3 camera matrix and
// the lens distortion coefficients, plus how they were obtained.
type Intrinsics struct {
	CameraMatrix [3][3]float64
	DistCoeffs   []float64

	ImageSize    image.Point
	RMS          float64 // RMS reprojection error in pixels
	Flags        Flag
	AspectRatio  float64 // only meaningful with FixAspectRatio
	CalibratedAt time.Time
	SessionID    string
}

// Fx returns the horizontal focal length in pixels.
func (in *Intrinsics) Fx() float64 { return in.CameraMatrix[0][0] }

// Fy returns the vertical focal length in pixels.
func (in *Intrinsics) Fy() float64 { return in.CameraMatrix[1][1] }

// Cx returns the principal point x coordinate.
func (in *Intrinsics) Cx() float64 { return in.CameraMatrix[0][2] }

// Cy returns the principal point y coordinate.
func (in *Intrinsics) Cy() float64 { return in.CameraMatrix[1][2] }

// CameraMat copies the camera matrix into a new CV_64F Mat.
// The caller must Close it.
func (in *Intrinsics) CameraMat() gocv.Mat {
	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.SetDoubleAt(r, c, in.CameraMatrix[r][c])
		}
	}
	return m
}

// DistMat copies the distortion coefficients into a new 1xN CV_64F Mat.
// An empty Mat is returned when no coefficients are known, which OpenCV
// treats as zero distortion. The caller must Close it.
func (in *Intrinsics) DistMat() gocv.Mat {
	if len(in.DistCoeffs) == 0 {
		return gocv.NewMat()
	}
	m := gocv.NewMatWithSize(1, len(in.DistCoeffs), gocv.MatTypeCV64F)
	for i, v := range in.DistCoeffs {
		m.SetDoubleAt(0, i, v)
	}
	return m
}

// Project maps a camera-frame point onto the image using the pinhole model
// without distortion. ok is false for points behind the camera.
func (in *Intrinsics) Project(x, y, z float64) (p image.Point, ok bool) {
	if z <= 0 {
		return image.Point{}, false
	}
	u := in.Fx()*x/z + in.CameraMatrix[0][1]*y/z + in.Cx()
	v := in.Fy()*y/z + in.Cy()
	return image.Pt(int(u+0.5), int(v+0.5)), true
}

func intrinsicsFromMats(cm, dist gocv.Mat) *Intrinsics {
	in := &Intrinsics{}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			in.CameraMatrix[r][c] = cm.GetDoubleAt(r, c)
		}
	}

	n := dist.Rows() * dist.Cols()
	in.DistCoeffs = make([]float64, n)
	for i := 0; i < n; i++ {
		if dist.Rows() == 1 {
			in.DistCoeffs[i] = dist.GetDoubleAt(0, i)
		} else {
			in.DistCoeffs[i] = dist.GetDoubleAt(i, 0)
		}
	}
	return in
}
