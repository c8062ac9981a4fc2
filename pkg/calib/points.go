package calib

import "gocv.io/x/gocv"

// PointsMat packs points into an Nx1 CV_32FC2 Mat, the layout OpenCV uses
// for corner lists. The caller must Close it.
func PointsMat(pts []gocv.Point2f) gocv.Mat {
	m := gocv.NewMatWithSize(len(pts), 1, gocv.MatTypeCV32FC2)
	for i, p := range pts {
		m.SetFloatAt(i, 0, p.X)
		m.SetFloatAt(i, 1, p.Y)
	}
	return m
}

// MatPoints unpacks an Nx1 CV_32FC2 Mat.
func MatPoints(m gocv.Mat) []gocv.Point2f {
	pts := make([]gocv.Point2f, m.Rows())
	for i := range pts {
		v := m.GetVecfAt(i, 0)
		pts[i] = gocv.Point2f{X: v[0], Y: v[1]}
	}
	return pts
}
