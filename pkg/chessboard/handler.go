package chessboard

import (
	"github.com/teslashibe/camtools/internal/log"
	"github.com/teslashibe/camtools/pkg/calib"
	"github.com/teslashibe/camtools/pkg/capture"
	"gocv.io/x/gocv"
)

// Handler accepts a chessboard sample each time space is pressed while the
// full board is visible.
type Handler struct {
	Config Config
	// HoldMS keeps the annotated frame on screen after a capture.
	HoldMS int

	objectPoints []gocv.Point3f
	detect       func(gocv.Mat, Config) ([]gocv.Point2f, bool)
}

// NewHandler creates a handler for the given board.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		Config:       cfg,
		HoldMS:       1000,
		objectPoints: ObjectPoints(cfg),
		detect:       Detect,
	}
}

// Process does nothing: detection only runs on the confirm key.
func (h *Handler) Process(s *capture.Session, frame *gocv.Mat) {}

// Key detects the board on space and appends the sample when found.
func (h *Handler) Key(s *capture.Session, frame *gocv.Mat, key int) {
	if key != capture.KeySpace {
		return
	}

	corners, found := h.detect(*frame, h.Config)
	if !found {
		s.Reject("Chessboard corners not found in the image")
		return
	}

	Draw(frame, h.Config, corners)
	s.Hold(*frame, h.HoldMS)

	if err := s.Accept(calib.Sample{ImagePoints: corners, ObjectPoints: h.objectPoints}); err != nil {
		log.Warn("chessboard sample rejected", "error", err)
		return
	}
	s.Notify("Calibration image captured (%d / %d)", s.Count(), s.Samples.Min())
}
