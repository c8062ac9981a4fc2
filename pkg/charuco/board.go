// Package charuco calibrates against a ChArUco board: a chessboard whose
// white squares carry ArUco markers, so partially visible boards still give
// identified corners.
package charuco

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/teslashibe/camtools/pkg/aruco"
	"gocv.io/x/gocv"
)

// ErrPointMatching is returned when detected corners do not map onto the
// board.
var ErrPointMatching = errors.New("point matching failed")

// BoardConfig describes the printed board.
type BoardConfig struct {
	SquaresX     int
	SquaresY     int
	SquareLength float64 // metres
	MarkerLength float64 // metres
	Dictionary   gocv.ArucoDictionaryCode
}

// DefaultBoardConfig is an 8x8 board with 15 mm squares and 11 mm
// DICT_4X4_1000 markers.
func DefaultBoardConfig() BoardConfig {
	return BoardConfig{
		SquaresX:     8,
		SquaresY:     8,
		SquareLength: 0.015,
		MarkerLength: 0.011,
		Dictionary:   aruco.DefaultDictionary,
	}
}

// Validate checks the board geometry against the dictionary.
func (c BoardConfig) Validate() []string {
	var errors []string
	if c.SquaresX < 2 || c.SquaresY < 2 {
		errors = append(errors, fmt.Sprintf("board needs at least 2x2 squares, got %dx%d", c.SquaresX, c.SquaresY))
	}
	if c.SquareLength <= 0 {
		errors = append(errors, "square length must be positive")
	}
	if c.MarkerLength <= 0 {
		errors = append(errors, "marker length must be positive")
	}
	if c.MarkerLength >= c.SquareLength {
		errors = append(errors, fmt.Sprintf("marker length %g must be smaller than square length %g", c.MarkerLength, c.SquareLength))
	}
	if size := aruco.DictionarySize(c.Dictionary); c.markerCount() > size {
		errors = append(errors, fmt.Sprintf("board needs %d markers but %s holds %d",
			c.markerCount(), aruco.DictionaryName(c.Dictionary), size))
	}
	return errors
}

func (c BoardConfig) markerCount() int {
	return c.SquaresX * c.SquaresY / 2
}

// Point is a position on the board plane in metres.
type Point struct{ X, Y float64 }

func (p Point) f32() gocv.Point2f {
	return gocv.Point2f{X: float32(p.X), Y: float32(p.Y)}
}

// Board is the laid out geometry of a ChArUco board in its own plane:
// x to the right, y down, origin at the outer top-left corner.
type Board struct {
	cfg BoardConfig

	markerSquares []squarePos
	markerCorners [][4]Point // by marker id

	corners  []Point // chessboard corners by corner id
	adjacent [][]int      // corner id -> marker ids touching it
}

type squarePos struct{ x, y int }

// NewBoard lays out cfg. Markers sit on the squares where x and y differ in
// parity, numbered row by row from 0.
func NewBoard(cfg BoardConfig) (*Board, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid board: %v", errs)
	}

	b := &Board{cfg: cfg}
	offset := (cfg.SquareLength - cfg.MarkerLength) / 2
	markerAt := make(map[squarePos]int)

	for y := 0; y < cfg.SquaresY; y++ {
		for x := 0; x < cfg.SquaresX; x++ {
			if x%2 == y%2 {
				continue
			}
			id := len(b.markerSquares)
			x0 := float64(x)*cfg.SquareLength + offset
			y0 := float64(y)*cfg.SquareLength + offset
			x1, y1 := x0+cfg.MarkerLength, y0+cfg.MarkerLength

			b.markerSquares = append(b.markerSquares, squarePos{x, y})
			b.markerCorners = append(b.markerCorners, [4]Point{
				{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1},
			})
			markerAt[squarePos{x, y}] = id
		}
	}

	for y := 0; y < cfg.SquaresY-1; y++ {
		for x := 0; x < cfg.SquaresX-1; x++ {
			b.corners = append(b.corners, Point{
				X: float64(x+1) * cfg.SquareLength,
				Y: float64(y+1) * cfg.SquareLength,
			})
			var adj []int
			for _, sq := range []squarePos{{x, y}, {x + 1, y}, {x, y + 1}, {x + 1, y + 1}} {
				if id, ok := markerAt[sq]; ok {
					adj = append(adj, id)
				}
			}
			b.adjacent = append(b.adjacent, adj)
		}
	}
	return b, nil
}

// Config returns the board configuration.
func (b *Board) Config() BoardConfig { return b.cfg }

// MarkerIDs returns the ids of all markers on the board.
func (b *Board) MarkerIDs() []int {
	ids := make([]int, len(b.markerSquares))
	for i := range ids {
		ids[i] = i
	}
	return ids
}

// MarkerCorners returns the board-plane corners of marker id, clockwise
// from top-left.
func (b *Board) MarkerCorners(id int) ([4]Point, bool) {
	if !b.HasMarker(id) {
		return [4]Point{}, false
	}
	return b.markerCorners[id], true
}

// HasMarker reports whether id belongs to the board.
func (b *Board) HasMarker(id int) bool {
	return id >= 0 && id < len(b.markerCorners)
}

// CornerCount returns the number of inner chessboard corners.
func (b *Board) CornerCount() int { return len(b.corners) }

// Corner returns the board-plane position of chessboard corner id.
func (b *Board) Corner(id int) (Point, bool) {
	if id < 0 || id >= len(b.corners) {
		return Point{}, false
	}
	return b.corners[id], true
}

// AdjacentMarkers returns the marker ids whose squares touch corner id.
func (b *Board) AdjacentMarkers(id int) []int {
	if id < 0 || id >= len(b.adjacent) {
		return nil
	}
	return b.adjacent[id]
}

// MatchImagePoints pairs detected ChArUco corners with their board-plane
// object points. Corners with ids outside the board are dropped.
func (b *Board) MatchImagePoints(corners []gocv.Point2f, ids []int) ([]gocv.Point3f, []gocv.Point2f, error) {
	if len(corners) != len(ids) {
		return nil, nil, fmt.Errorf("%w: %d corners but %d ids", ErrPointMatching, len(corners), len(ids))
	}
	var obj []gocv.Point3f
	var img []gocv.Point2f
	for i, id := range ids {
		p, ok := b.Corner(id)
		if !ok {
			continue
		}
		obj = append(obj, gocv.Point3f{X: float32(p.X), Y: float32(p.Y)})
		img = append(img, corners[i])
	}
	if len(obj) == 0 {
		return nil, nil, ErrPointMatching
	}
	return obj, img, nil
}

// Render draws the board for printing, squarePx pixels per square with a
// white margin. The caller must Close the result.
func (b *Board) Render(squarePx, margin int) (gocv.Mat, error) {
	if squarePx < 8 {
		return gocv.Mat{}, fmt.Errorf("square of %d px is too small to print markers", squarePx)
	}
	cfg := b.cfg
	w := cfg.SquaresX*squarePx + 2*margin
	h := cfg.SquaresY*squarePx + 2*margin
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), h, w, gocv.MatTypeCV8UC3)

	black := color.RGBA{0, 0, 0, 0}
	for y := 0; y < cfg.SquaresY; y++ {
		for x := 0; x < cfg.SquaresX; x++ {
			if x%2 != y%2 {
				continue
			}
			r := image.Rect(margin+x*squarePx, margin+y*squarePx, margin+(x+1)*squarePx, margin+(y+1)*squarePx)
			gocv.Rectangle(&img, r, black, -1)
		}
	}

	markerPx := int(float64(squarePx)*cfg.MarkerLength/cfg.SquareLength + 0.5)
	offset := (squarePx - markerPx) / 2
	marker := gocv.NewMat()
	defer marker.Close()
	markerBGR := gocv.NewMat()
	defer markerBGR.Close()

	for id, sq := range b.markerSquares {
		gocv.ArucoGenerateImageMarker(cfg.Dictionary, id, markerPx, marker, 1)
		if err := gocv.CvtColor(marker, &markerBGR, gocv.ColorGrayToBGR); err != nil {
			img.Close()
			return gocv.Mat{}, fmt.Errorf("render marker %d: %w", id, err)
		}

		x0 := margin + sq.x*squarePx + offset
		y0 := margin + sq.y*squarePx + offset
		roi := img.Region(image.Rect(x0, y0, x0+markerPx, y0+markerPx))
		markerBGR.CopyTo(&roi)
		roi.Close()
	}
	return img, nil
}
