package camera

import (
	"errors"
	"fmt"
	"image"

	"github.com/teslashibe/camtools/internal/log"
	"gocv.io/x/gocv"
)

// ErrOpen is returned when the capture device or video file cannot be opened.
var ErrOpen = errors.New("unable to open camera")

// Source reads frames from a camera device or a video file.
type Source struct {
	cap *gocv.VideoCapture
	cfg Config
}

// Open opens the capture described by cfg and applies the requested
// resolution and framerate.
func Open(cfg Config) (*Source, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid camera config: %v", errs)
	}

	var input interface{} = cfg.DeviceID
	if cfg.IsFile() {
		input = cfg.VideoFile
	}

	cap, err := gocv.OpenVideoCapture(input)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrOpen, cfg.Source(), err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("%w %s", ErrOpen, cfg.Source())
	}

	if cfg.Width > 0 && cfg.Height > 0 {
		cap.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		cap.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	if cfg.Framerate > 0 {
		cap.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	}

	s := &Source{cap: cap, cfg: cfg}
	size := s.Size()
	log.Debug("camera opened", "source", cfg.Source(), "width", size.X, "height", size.Y)
	return s, nil
}

// Read grabs the next frame into dst. It returns false at end of stream
// or when the device stops delivering frames.
func (s *Source) Read(dst *gocv.Mat) bool {
	if !s.cap.Read(dst) {
		return false
	}
	return !dst.Empty()
}

// Size returns the frame size the driver reports.
func (s *Source) Size() image.Point {
	return image.Pt(
		int(s.cap.Get(gocv.VideoCaptureFrameWidth)),
		int(s.cap.Get(gocv.VideoCaptureFrameHeight)),
	)
}

// Config returns the configuration the source was opened with.
func (s *Source) Config() Config {
	return s.cfg
}

// Close releases the capture device.
func (s *Source) Close() error {
	return s.cap.Close()
}
