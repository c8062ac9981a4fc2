// Package chessboard finds plain chessboard calibration targets and turns
// them into calibration samples.
package chessboard

import (
	"fmt"
	"image"

	"github.com/teslashibe/camtools/internal/log"
	"github.com/teslashibe/camtools/pkg/calib"
	"gocv.io/x/gocv"
)

// Config describes the board by its inner corners.
type Config struct {
	Cols       int     // inner corners per row
	Rows       int     // inner corners per column
	SquareSize float32 // world units per square; 1 keeps results in squares
}

// DefaultConfig is the 7x10 inner-corner board the capture tool was built for.
func DefaultConfig() Config {
	return Config{Cols: 7, Rows: 10, SquareSize: 1}
}

// PatternSize returns the board size in the form OpenCV expects.
func (c Config) PatternSize() image.Point {
	return image.Pt(c.Cols, c.Rows)
}

// Validate checks the board geometry.
func (c Config) Validate() []string {
	var errors []string
	if c.Cols < 2 || c.Rows < 2 {
		errors = append(errors, "board needs at least 2x2 inner corners")
	}
	if c.SquareSize <= 0 {
		errors = append(errors, "square size must be positive")
	}
	return errors
}

// ObjectPoints returns the board-local corner positions (x=j, y=i, z=0)
// scaled by the square size, row by row.
func ObjectPoints(c Config) []gocv.Point3f {
	pts := make([]gocv.Point3f, 0, c.Cols*c.Rows)
	for i := 0; i < c.Rows; i++ {
		for j := 0; j < c.Cols; j++ {
			pts = append(pts, gocv.Point3f{
				X: float32(j) * c.SquareSize,
				Y: float32(i) * c.SquareSize,
			})
		}
	}
	return pts
}

var subPixCriteria = gocv.NewTermCriteria(gocv.Count|gocv.EPS, 30, 0.1)

// Detect finds and sub-pixel refines the inner corners of the board in a
// BGR frame. found is false when the full pattern is not visible.
func Detect(frame gocv.Mat, c Config) (corners []gocv.Point2f, found bool) {
	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray); err != nil {
		log.Debug("chessboard grayscale", "error", err)
		return nil, false
	}

	cornerMat := gocv.NewMat()
	defer cornerMat.Close()

	found = gocv.FindChessboardCorners(gray, c.PatternSize(), &cornerMat,
		gocv.CalibCBAdaptiveThresh|gocv.CalibCBNormalizeImage)
	if !found || cornerMat.Empty() {
		return nil, false
	}

	if err := gocv.CornerSubPix(gray, &cornerMat, image.Pt(11, 11), image.Pt(-1, -1), subPixCriteria); err != nil {
		log.Debug("chessboard corner refinement", "error", err)
	}

	corners = calib.MatPoints(cornerMat)
	return corners, len(corners) == c.Cols*c.Rows
}

// Draw renders the detected corners on frame the way OpenCV does for a
// found pattern.
func Draw(frame *gocv.Mat, c Config, corners []gocv.Point2f) {
	if len(corners) == 0 {
		return
	}
	m := calib.PointsMat(corners)
	defer m.Close()
	gocv.DrawChessboardCorners(frame, c.PatternSize(), m, len(corners) == c.Cols*c.Rows)
}

// String describes the board for logs.
func (c Config) String() string {
	return fmt.Sprintf("%dx%d inner corners, square %.4g", c.Cols, c.Rows, c.SquareSize)
}
