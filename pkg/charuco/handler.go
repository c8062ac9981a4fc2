package charuco

import (
	"image"
	"image/color"
	"strconv"

	"github.com/teslashibe/camtools/internal/log"
	"github.com/teslashibe/camtools/pkg/aruco"
	"github.com/teslashibe/camtools/pkg/calib"
	"github.com/teslashibe/camtools/pkg/capture"
	"gocv.io/x/gocv"
)

// Prompt is drawn on every live frame.
const Prompt = "Press 'c' to add current frame. 'ESC' to finish and calibrate"

var (
	cornerColor    = color.RGBA{255, 0, 0, 0}
	promptColor    = color.RGBA{0, 0, 255, 0}
	recoveredColor = color.RGBA{255, 255, 0, 0}
)

// DrawCorners marks ChArUco corners with a small square and their id.
func DrawCorners(img *gocv.Mat, corners []gocv.Point2f, ids []int) {
	for i, c := range corners {
		p := image.Pt(int(c.X+0.5), int(c.Y+0.5))
		gocv.Rectangle(img, image.Rect(p.X-3, p.Y-3, p.X+3, p.Y+3), cornerColor, 1)
		if i < len(ids) {
			gocv.PutText(img, "id="+strconv.Itoa(ids[i]), p.Add(image.Pt(5, -5)),
				gocv.FontHersheySimplex, 0.4, cornerColor, 1)
		}
	}
}

// Handler captures ChArUco samples on the 'c' key.
type Handler struct {
	detector *Detector
	last     Detection
	raw      gocv.Mat

	// KeepFrames stores a clone of every accepted frame for Review.
	KeepFrames bool
	frames     []gocv.Mat
}

// NewHandler creates a handler around detector. Close it when done.
func NewHandler(detector *Detector) *Handler {
	return &Handler{detector: detector, raw: gocv.NewMat()}
}

// Process detects the board and draws markers, corners and the prompt.
func (h *Handler) Process(s *capture.Session, frame *gocv.Mat) {
	frame.CopyTo(&h.raw)
	h.last = h.detector.Detect(*frame)

	aruco.DrawMarkers(frame, h.last.Markers)
	for _, m := range h.last.Recovered {
		aruco.DrawOutline(frame, m.Corners, recoveredColor)
	}
	if h.last.Usable() {
		DrawCorners(frame, h.last.Corners, h.last.IDs)
	}
	gocv.PutText(frame, Prompt, image.Pt(10, 20), gocv.FontHersheySimplex, 0.5, promptColor, 2)
}

// Key adds the current frame on 'c' when enough corners were found.
func (h *Handler) Key(s *capture.Session, frame *gocv.Mat, key int) {
	if key != capture.KeyCharuco {
		return
	}
	if !h.last.Usable() {
		s.Reject("Point matching failed, try again.")
		return
	}

	obj, img, err := h.detector.Board().MatchImagePoints(h.last.Corners, h.last.IDs)
	if err != nil {
		s.Reject("Point matching failed, try again.")
		log.Debug("charuco point matching", "session", s.ID, "error", err)
		return
	}

	ids := make([]int, 0, len(img))
	for _, id := range h.last.IDs {
		if _, ok := h.detector.Board().Corner(id); ok {
			ids = append(ids, id)
		}
	}
	if err := s.Accept(calib.Sample{ImagePoints: img, ObjectPoints: obj, IDs: ids}); err != nil {
		return
	}
	if h.KeepFrames {
		h.frames = append(h.frames, h.raw.Clone())
	}
	s.Notify("Frame captured")
}

// Review steps through the accepted frames with their corners drawn. Any
// key shows the next frame, escape stops.
func (h *Handler) Review(d capture.Display, samples []calib.Sample) {
	for i, f := range h.frames {
		if i >= len(samples) {
			break
		}
		img := f.Clone()
		DrawCorners(&img, samples[i].ImagePoints, samples[i].IDs)
		d.Show(img)
		key := d.WaitKey(0)
		img.Close()
		if key >= 0 && key&0xFF == capture.KeyEscape {
			break
		}
	}
}

// Frames returns the number of stored frames.
func (h *Handler) Frames() int { return len(h.frames) }

// Close releases stored frames and the scratch Mat. The detector is closed
// by its owner.
func (h *Handler) Close() {
	for _, f := range h.frames {
		f.Close()
	}
	h.frames = nil
	h.raw.Close()
}
