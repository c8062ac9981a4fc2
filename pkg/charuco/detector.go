package charuco

import (
	"image"
	"math"

	"github.com/teslashibe/camtools/pkg/aruco"
	"github.com/teslashibe/camtools/pkg/calib"
	"github.com/teslashibe/camtools/internal/log"
	"gocv.io/x/gocv"
)

// MinCorners is the number of ChArUco corners a frame needs beyond which
// it may be added to the calibration.
const MinCorners = 3

// Detection is the result of one frame.
type Detection struct {
	// Markers are the board markers found by the marker detector.
	Markers []aruco.Marker
	// Recovered are markers matched from rejected candidates when refinement
	// is enabled.
	Recovered []aruco.Marker

	Corners []gocv.Point2f
	IDs     []int
}

// Usable reports whether the frame has enough corners to be captured.
func (d Detection) Usable() bool {
	return len(d.Corners) > MinCorners
}

// Detector finds the board in frames.
type Detector struct {
	board   *Board
	markers *aruco.Detector

	// Refine matches rejected marker candidates against the expected
	// positions of board markers that were not decoded.
	Refine bool
	// MinRepDistance is the largest mean corner distance in pixels for a
	// rejected candidate to be taken as an expected marker.
	MinRepDistance float64
}

// NewDetector creates a detector for board. Close it when done.
func NewDetector(board *Board) *Detector {
	return &Detector{
		board:          board,
		markers:        aruco.NewDetector(board.Config().Dictionary),
		MinRepDistance: 10,
	}
}

// Board returns the board being detected.
func (d *Detector) Board() *Board { return d.board }

// Close releases the marker detector.
func (d *Detector) Close() {
	d.markers.Close()
}

var charucoSubPixCriteria = gocv.NewTermCriteria(gocv.Count|gocv.EPS, 100, 0.01)

// Detect finds board markers in a BGR frame and interpolates the chessboard
// corners next to them through the board-to-image homography.
func (d *Detector) Detect(frame gocv.Mat) Detection {
	found, rejected := d.markers.Detect(frame)

	var det Detection
	for _, m := range found {
		if d.board.HasMarker(m.ID) {
			det.Markers = append(det.Markers, m)
		}
	}
	if len(det.Markers) == 0 {
		return det
	}

	h, err := d.fit(det.Markers)
	if err != nil {
		log.Debug("charuco homography", "markers", len(det.Markers), "error", err)
		return det
	}
	defer func() { h.Close() }()

	if d.Refine && len(rejected) > 0 {
		det.Recovered = d.refine(h, det.Markers, rejected)
		if len(det.Recovered) > 0 {
			all := append(append([]aruco.Marker{}, det.Markers...), det.Recovered...)
			if h2, err := d.fit(all); err == nil {
				h.Close()
				h = h2
			}
		}
	}

	seen := make(map[int]bool)
	for _, m := range det.Markers {
		seen[m.ID] = true
	}
	for _, m := range det.Recovered {
		seen[m.ID] = true
	}

	var model []gocv.Point2f
	var candidates []int
	for id := 0; id < d.board.CornerCount(); id++ {
		for _, m := range d.board.AdjacentMarkers(id) {
			if seen[m] {
				c, _ := d.board.Corner(id)
				model = append(model, c.f32())
				candidates = append(candidates, id)
				break
			}
		}
	}

	inner := image.Rect(0, 0, frame.Cols(), frame.Rows()).Inset(2)
	var pts []gocv.Point2f
	var ids []int
	for i, q := range aruco.Project(h, model) {
		if !image.Pt(int(q.X), int(q.Y)).In(inner) {
			continue
		}
		pts = append(pts, q)
		ids = append(ids, candidates[i])
	}
	if len(pts) == 0 {
		return det
	}

	det.Corners = d.subPix(frame, pts, d.window(det.Markers))
	det.IDs = ids
	return det
}

// fit estimates the board-plane to image homography from marker corners.
// The caller must Close the result.
func (d *Detector) fit(markers []aruco.Marker) (gocv.Mat, error) {
	var src, dst []gocv.Point2f
	for _, m := range markers {
		model, ok := d.board.MarkerCorners(m.ID)
		if !ok {
			continue
		}
		for i := 0; i < 4; i++ {
			src = append(src, model[i].f32())
			dst = append(dst, m.Corners[i])
		}
	}
	return aruco.Homography(src, dst)
}

// refine projects every board marker that was not decoded and takes the
// closest rejected candidate within MinRepDistance, trying all four
// rotations of its corners.
func (d *Detector) refine(h gocv.Mat, found []aruco.Marker, rejected [][4]gocv.Point2f) []aruco.Marker {
	have := make(map[int]bool, len(found))
	for _, m := range found {
		have[m.ID] = true
	}
	used := make([]bool, len(rejected))

	var out []aruco.Marker
	for _, id := range d.board.MarkerIDs() {
		if have[id] {
			continue
		}
		model, _ := d.board.MarkerCorners(id)
		expected := aruco.Project(h, []gocv.Point2f{
			model[0].f32(), model[1].f32(), model[2].f32(), model[3].f32(),
		})
		if len(expected) != 4 {
			continue
		}

		best, bestRot, bestDist := -1, 0, d.MinRepDistance
		for ci, cand := range rejected {
			if used[ci] {
				continue
			}
			for rot := 0; rot < 4; rot++ {
				var sum float64
				for i := 0; i < 4; i++ {
					p := cand[(i+rot)%4]
					sum += math.Hypot(float64(p.X-expected[i].X), float64(p.Y-expected[i].Y))
				}
				if mean := sum / 4; mean < bestDist {
					best, bestRot, bestDist = ci, rot, mean
				}
			}
		}
		if best < 0 {
			continue
		}
		used[best] = true
		m := aruco.Marker{ID: id}
		for i := 0; i < 4; i++ {
			m.Corners[i] = rejected[best][(i+bestRot)%4]
		}
		out = append(out, m)
	}
	return out
}

// window picks a CornerSubPix half-window from the apparent marker size so
// the search stays inside one square.
func (d *Detector) window(markers []aruco.Marker) image.Point {
	var side float64
	for _, m := range markers {
		for i := 0; i < 4; i++ {
			a, b := m.Corners[i], m.Corners[(i+1)%4]
			side += math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
		}
	}
	side /= float64(4 * len(markers))
	cfg := d.board.Config()
	square := side * cfg.SquareLength / cfg.MarkerLength

	half := int(square / 4)
	if half < 2 {
		half = 2
	}
	if half > 11 {
		half = 11
	}
	return image.Pt(half, half)
}

// subPix refines pts in place of the projected guesses. When OpenCV
// refuses, the projected positions are kept.
func (d *Detector) subPix(frame gocv.Mat, pts []gocv.Point2f, win image.Point) []gocv.Point2f {
	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray); err != nil {
		log.Debug("charuco grayscale", "error", err)
		return pts
	}

	m := calib.PointsMat(pts)
	defer m.Close()
	if err := gocv.CornerSubPix(gray, &m, win, image.Pt(-1, -1), charucoSubPixCriteria); err != nil {
		log.Debug("charuco corner refinement", "error", err)
		return pts
	}
	return calib.MatPoints(m)
}
