// Package photo saves timestamped stills from the capture loop.
package photo

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/teslashibe/camtools/internal/log"
	"github.com/teslashibe/camtools/pkg/capture"
	"gocv.io/x/gocv"
)

// Still file names are captured_photo_<YYYYMMDDHHMMSS>.jpg.
const (
	filePrefix = "captured_photo_"
	fileExt    = ".jpg"
	timeLayout = "20060102150405"
)

// Filename returns the still name for t.
func Filename(t time.Time) string {
	return filePrefix + t.Format(timeLayout) + fileExt
}

// ParseFilename recovers the capture time from a still name.
func ParseFilename(name string) (time.Time, error) {
	base := filepath.Base(name)
	if len(base) != len(filePrefix)+len(timeLayout)+len(fileExt) ||
		base[:len(filePrefix)] != filePrefix || filepath.Ext(base) != fileExt {
		return time.Time{}, fmt.Errorf("not a captured photo name: %q", name)
	}
	return time.ParseInLocation(timeLayout, base[len(filePrefix):len(filePrefix)+len(timeLayout)], time.Local)
}

// EnsureDir creates dir when missing.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create photo directory: %w", err)
	}
	return nil
}

// Writer writes frames into a directory.
type Writer struct {
	Dir string
	Now func() time.Time

	// Saved lists the paths written so far.
	Saved []string

	write func(name string, img gocv.Mat) bool
}

// NewWriter creates dir and returns a writer into it.
func NewWriter(dir string) (*Writer, error) {
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}
	return &Writer{Dir: dir, Now: time.Now, write: gocv.IMWrite}, nil
}

// Save writes img as a JPEG named after the current time.
func (w *Writer) Save(img gocv.Mat) (string, error) {
	path := filepath.Join(w.Dir, Filename(w.Now()))
	if !w.write(path, img) {
		return "", fmt.Errorf("write %s: encoder failed", path)
	}
	w.Saved = append(w.Saved, path)
	return path, nil
}

// Handler saves the shown frame on space.
type Handler struct {
	w *Writer
}

// NewHandler wraps w.
func NewHandler(w *Writer) *Handler {
	return &Handler{w: w}
}

// Process leaves frames untouched.
func (h *Handler) Process(s *capture.Session, frame *gocv.Mat) {}

// Key writes the frame on space. A failed write is reported and the loop
// carries on.
func (h *Handler) Key(s *capture.Session, frame *gocv.Mat, key int) {
	if key != capture.KeySpace {
		return
	}
	path, err := h.w.Save(*frame)
	if err != nil {
		log.Error("photo not saved", "session", s.ID, "error", err)
		s.Reject("Error: Unable to save photo")
		return
	}
	s.Notify("Photo captured with timestamp: %s", path)
}
