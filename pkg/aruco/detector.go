package aruco

import (
	"image"
	"image/color"

	"github.com/teslashibe/camtools/pkg/calib"
	"gocv.io/x/gocv"
)

// Marker is one detected marker. It lives for a single frame.
type Marker struct {
	ID      int
	Corners [4]gocv.Point2f
	Pose    *Pose
}

// Center returns the mean of the four corners.
func (m Marker) Center() image.Point {
	var x, y float32
	for _, c := range m.Corners {
		x += c.X
		y += c.Y
	}
	return image.Pt(int(x/4+0.5), int(y/4+0.5))
}

// Detector wraps a gocv ArUco detector for one dictionary.
type Detector struct {
	det  gocv.ArucoDetector
	dict gocv.ArucoDictionaryCode
}

// NewDetector creates a detector with default parameters. Close it when
// done.
func NewDetector(dict gocv.ArucoDictionaryCode) *Detector {
	d := gocv.GetPredefinedDictionary(dict)
	params := gocv.NewArucoDetectorParameters()
	return &Detector{
		det:  gocv.NewArucoDetectorWithParams(d, params),
		dict: dict,
	}
}

// Dictionary returns the dictionary the detector decodes.
func (d *Detector) Dictionary() gocv.ArucoDictionaryCode { return d.dict }

// Detect finds markers in img. Rejected candidates are quads that looked
// like markers but did not decode.
func (d *Detector) Detect(img gocv.Mat) (markers []Marker, rejected [][4]gocv.Point2f) {
	corners, ids, rej := d.det.DetectMarkers(img)
	markers = make([]Marker, 0, len(ids))
	for i, id := range ids {
		if i >= len(corners) || len(corners[i]) != 4 {
			continue
		}
		m := Marker{ID: id}
		copy(m.Corners[:], corners[i])
		markers = append(markers, m)
	}
	for _, r := range rej {
		if len(r) != 4 {
			continue
		}
		var q [4]gocv.Point2f
		copy(q[:], r)
		rejected = append(rejected, q)
	}
	return markers, rejected
}

// Close releases the detector.
func (d *Detector) Close() {
	d.det.Close()
}

// EstimatePoses fills Pose for every marker that yields one.
func EstimatePoses(markers []Marker, length float64, in *calib.Intrinsics) []error {
	var errs []error
	for i := range markers {
		p, err := EstimatePose(markers[i].Corners, length, in)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		markers[i].Pose = &p
	}
	return errs
}

// DrawMarkers outlines the markers and labels their ids.
func DrawMarkers(img *gocv.Mat, markers []Marker) {
	if len(markers) == 0 {
		return
	}
	corners := make([][]gocv.Point2f, len(markers))
	ids := make([]int, len(markers))
	for i, m := range markers {
		corners[i] = m.Corners[:]
		ids[i] = m.ID
	}
	gocv.ArucoDrawDetectedMarkers(*img, corners, ids, gocv.NewScalar(0, 255, 0, 0))
}

// DrawOutline draws a quad without ids, used for markers recovered by
// board refinement.
func DrawOutline(img *gocv.Mat, corners [4]gocv.Point2f, c color.RGBA) {
	for i := 0; i < 4; i++ {
		a, b := corners[i], corners[(i+1)%4]
		gocv.Line(img,
			image.Pt(int(a.X+0.5), int(a.Y+0.5)),
			image.Pt(int(b.X+0.5), int(b.Y+0.5)),
			c, 1)
	}
}

var (
	axisX = color.RGBA{255, 0, 0, 0}
	axisY = color.RGBA{0, 255, 0, 0}
	axisZ = color.RGBA{0, 0, 255, 0}
)

// DrawAxes draws the marker frame axes of the given length: x red, y green,
// z blue. Axes that project behind the camera are skipped.
func DrawAxes(img *gocv.Mat, in *calib.Intrinsics, p Pose, length float64) {
	origin, ok := in.Project(p.Transform(0, 0, 0))
	if !ok {
		return
	}
	ends := []struct {
		x, y, z float64
		c       color.RGBA
	}{
		{length, 0, 0, axisX},
		{0, length, 0, axisY},
		{0, 0, length, axisZ},
	}
	for _, e := range ends {
		tip, ok := in.Project(p.Transform(e.x, e.y, e.z))
		if !ok {
			continue
		}
		gocv.Line(img, origin, tip, e.c, 2)
	}
}
