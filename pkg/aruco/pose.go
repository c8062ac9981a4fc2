package aruco

import (
	"fmt"
	"math"

	"github.com/teslashibe/camtools/pkg/calib"
	"gocv.io/x/gocv"
)

// cv::SOLVEPNP_IPPE_SQUARE, the solver estimatePoseSingleMarkers uses.
// gocv does not export the SolvePnP method constants.
const solvePnPIPPESquare = 7

// Pose locates a marker in the camera frame. Rvec is a Rodrigues rotation
// vector, Tvec a translation in the marker length's unit.
type Pose struct {
	Rvec [3]float64
	Tvec [3]float64
	R    [3][3]float64
}

// Transform maps a marker-frame point into the camera frame.
func (p Pose) Transform(x, y, z float64) (cx, cy, cz float64) {
	cx = p.R[0][0]*x + p.R[0][1]*y + p.R[0][2]*z + p.Tvec[0]
	cy = p.R[1][0]*x + p.R[1][1]*y + p.R[1][2]*z + p.Tvec[1]
	cz = p.R[2][0]*x + p.R[2][1]*y + p.R[2][2]*z + p.Tvec[2]
	return
}

// MarkerObjectPoints returns the corners of a marker of side length in
// its own frame, in detection order: top-left, top-right, bottom-right,
// bottom-left, with z pointing out of the marker. IPPE_SQUARE requires
// exactly this layout.
func MarkerObjectPoints(length float64) [4]gocv.Point3f {
	h := float32(length / 2)
	return [4]gocv.Point3f{{X: -h, Y: h}, {X: h, Y: h}, {X: h, Y: -h}, {X: -h, Y: -h}}
}

// EstimatePose recovers the pose of one square marker of side length from
// its four image corners with gocv.SolvePnP. The corners must come from an
// undistorted frame; only the camera matrix is applied.
func EstimatePose(corners [4]gocv.Point2f, length float64, in *calib.Intrinsics) (Pose, error) {
	if length <= 0 {
		return Pose{}, fmt.Errorf("marker length must be positive, got %g", length)
	}
	if in == nil || in.Fx() == 0 || in.Fy() == 0 {
		return Pose{}, fmt.Errorf("camera matrix has zero focal length")
	}
	if quadArea(corners) < 1 {
		return Pose{}, fmt.Errorf("pose: marker area below one pixel: %w", ErrDegenerate)
	}

	model := MarkerObjectPoints(length)
	obj := gocv.NewPoint3fVectorFromPoints(model[:])
	defer obj.Close()
	img := gocv.NewPoint2fVectorFromPoints(corners[:])
	defer img.Close()

	cm := in.CameraMat()
	defer cm.Close()
	noDist := gocv.NewMat()
	defer noDist.Close()

	rvec := gocv.NewMat()
	defer rvec.Close()
	tvec := gocv.NewMat()
	defer tvec.Close()

	if !gocv.SolvePnP(obj, img, cm, noDist, &rvec, &tvec, false, solvePnPIPPESquare) ||
		rvec.Total() != 3 || tvec.Total() != 3 {
		return Pose{}, fmt.Errorf("pose: solvePnP failed: %w", ErrDegenerate)
	}

	var p Pose
	for i := 0; i < 3; i++ {
		p.Rvec[i] = rvec.GetDoubleAt(i, 0)
		p.Tvec[i] = tvec.GetDoubleAt(i, 0)
	}
	for _, v := range append(p.Rvec[:], p.Tvec[:]...) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Pose{}, fmt.Errorf("pose: non-finite solution: %w", ErrDegenerate)
		}
	}
	p.R = RotationMatrix(p.Rvec)
	return p, nil
}

// RotationMatrix converts an axis-angle vector to a rotation matrix with
// gocv.Rodrigues.
func RotationMatrix(rvec [3]float64) [3][3]float64 {
	src := gocv.NewMatWithSize(3, 1, gocv.MatTypeCV64F)
	defer src.Close()
	for i, v := range rvec {
		src.SetDoubleAt(i, 0, v)
	}
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Rodrigues(src, &dst)

	var r [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = dst.GetDoubleAt(i, j)
		}
	}
	return r
}

// Rodrigues converts a rotation matrix to an axis-angle vector with
// gocv.Rodrigues.
func Rodrigues(r [3][3]float64) [3]float64 {
	src := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	defer src.Close()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			src.SetDoubleAt(i, j, r[i][j])
		}
	}
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Rodrigues(src, &dst)

	var v [3]float64
	for i := range v {
		v[i] = dst.GetDoubleAt(i, 0)
	}
	return v
}

// quadArea is the shoelace area of the corner quad in pixels.
func quadArea(c [4]gocv.Point2f) float64 {
	var a float64
	for i := 0; i < 4; i++ {
		p, q := c[i], c[(i+1)%4]
		a += float64(p.X)*float64(q.Y) - float64(q.X)*float64(p.Y)
	}
	return math.Abs(a) / 2
}
