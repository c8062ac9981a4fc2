package aruco

import (
	"fmt"
	"os"

	"github.com/teslashibe/camtools/internal/log"
	"github.com/teslashibe/camtools/pkg/calib"
	"github.com/teslashibe/camtools/pkg/capture"
	"gocv.io/x/gocv"
)

// HandlerConfig configures the live marker overlay.
type HandlerConfig struct {
	Dictionary   gocv.ArucoDictionaryCode
	MarkerLength float64 // metres
	AxisLength   float64 // metres
	// Print writes translation and rotation vectors to stdout per marker.
	Print bool
}

// DefaultHandlerConfig matches the printed 9 cm DICT_4X4_1000 markers.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		Dictionary:   DefaultDictionary,
		MarkerLength: 0.09,
		AxisLength:   0.1,
	}
}

// Handler undistorts each frame, detects markers and draws their pose.
// It is stateless between frames.
type Handler struct {
	cfg      HandlerConfig
	in       *calib.Intrinsics
	detector *Detector
	cm, dist gocv.Mat
	scratch  gocv.Mat

	// Last holds the markers of the most recent frame.
	Last []Marker
}

// NewHandler builds a handler for already loaded intrinsics. Close it when
// done.
func NewHandler(cfg HandlerConfig, in *calib.Intrinsics) (*Handler, error) {
	if in == nil {
		return nil, fmt.Errorf("aruco handler: %w", calib.ErrNoMatrix)
	}
	if cfg.MarkerLength <= 0 {
		return nil, fmt.Errorf("marker length must be positive, got %g", cfg.MarkerLength)
	}
	if cfg.AxisLength <= 0 {
		cfg.AxisLength = cfg.MarkerLength
	}
	return &Handler{
		cfg:      cfg,
		in:       in,
		detector: NewDetector(cfg.Dictionary),
		cm:       in.CameraMat(),
		dist:     in.DistMat(),
		scratch:  gocv.NewMat(),
	}, nil
}

// Process replaces frame with its undistorted version and overlays every
// detected marker with its axes. Frames without markers are left as is.
func (h *Handler) Process(s *capture.Session, frame *gocv.Mat) {
	if err := gocv.Undistort(*frame, &h.scratch, h.cm, h.dist, h.cm); err != nil {
		log.Debug("undistort failed", "session", s.ID, "error", err)
	} else {
		h.scratch.CopyTo(frame)
	}

	markers, _ := h.detector.Detect(*frame)
	h.Last = markers
	if len(markers) == 0 {
		return
	}

	for _, err := range EstimatePoses(markers, h.cfg.MarkerLength, h.in) {
		log.Debug("pose estimation failed", "session", s.ID, "error", err)
	}

	DrawMarkers(frame, markers)
	for _, m := range markers {
		if m.Pose == nil {
			continue
		}
		DrawAxes(frame, h.in, *m.Pose, h.cfg.AxisLength)
		log.Debug("marker pose",
			"id", m.ID,
			"tvec", m.Pose.Tvec,
			"rvec", m.Pose.Rvec)
		if h.cfg.Print {
			fmt.Fprintf(os.Stdout, "Translational Vec: %v\nRotational Vec: %v\n", m.Pose.Tvec, m.Pose.Rvec)
		}
	}
}

// Key does nothing; the detector has no confirm key.
func (h *Handler) Key(s *capture.Session, frame *gocv.Mat, key int) {}

// Close releases the detector and the cached matrices.
func (h *Handler) Close() {
	h.detector.Close()
	h.cm.Close()
	h.dist.Close()
	h.scratch.Close()
}
