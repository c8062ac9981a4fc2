package aruco

import (
	"errors"
	"fmt"

	"github.com/teslashibe/camtools/pkg/calib"
	"gocv.io/x/gocv"
)

// ErrDegenerate is returned when the corner geometry cannot determine a
// transform.
var ErrDegenerate = errors.New("degenerate point configuration")

// Homography fits the plane-to-image transform taking src onto dst over
// all points with gocv.FindHomography. The caller must Close the result.
func Homography(src, dst []gocv.Point2f) (gocv.Mat, error) {
	if len(src) != len(dst) {
		return gocv.Mat{}, fmt.Errorf("homography: %d source but %d destination points", len(src), len(dst))
	}
	if len(src) < 4 {
		return gocv.Mat{}, fmt.Errorf("homography needs 4 points, got %d: %w", len(src), ErrDegenerate)
	}

	s := calib.PointsMat(src)
	defer s.Close()
	d := calib.PointsMat(dst)
	defer d.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	h := gocv.FindHomography(s, d, gocv.HomographyMethodAllPoints, 3, &mask, 2000, 0.995)
	if h.Empty() {
		h.Close()
		return gocv.Mat{}, fmt.Errorf("homography: %w", ErrDegenerate)
	}
	return h, nil
}

// Project maps pts through the 3x3 transform h with gocv.PerspectiveTransform.
func Project(h gocv.Mat, pts []gocv.Point2f) []gocv.Point2f {
	if len(pts) == 0 {
		return nil
	}
	src := calib.PointsMat(pts)
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()

	gocv.PerspectiveTransform(src, &dst, h)
	return calib.MatPoints(dst)
}
