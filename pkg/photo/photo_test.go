package photo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/teslashibe/camtools/pkg/capture"
	"gocv.io/x/gocv"
)

func TestFilename(t *testing.T) {
	ts := time.Date(2024, time.March, 5, 7, 8, 9, 0, time.Local)
	if got := Filename(ts); got != "captured_photo_20240305070809.jpg" {
		t.Errorf("Filename = %q", got)
	}

	back, err := ParseFilename(filepath.Join("photos", Filename(ts)))
	if err != nil {
		t.Fatalf("ParseFilename: %v", err)
	}
	if !back.Equal(ts) {
		t.Errorf("ParseFilename = %v, want %v", back, ts)
	}
}

func TestParseFilename_Invalid(t *testing.T) {
	for _, name := range []string{
		"photo.jpg",
		"captured_photo_2024.jpg",
		"captured_photo_20240305070809.png",
		"captured_photo_2024030507080x.jpg",
	} {
		if _, err := ParseFilename(name); err == nil {
			t.Errorf("ParseFilename(%q) should fail", name)
		}
	}
}

func TestNewWriter_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "photos")
	if _, err := NewWriter(dir); err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("photo dir not created: %v", err)
	}
	if info.Mode().Perm()&0o700 != 0o700 {
		t.Errorf("dir mode = %v", info.Mode().Perm())
	}
	// Existing directory is fine.
	if _, err := NewWriter(dir); err != nil {
		t.Errorf("NewWriter on existing dir: %v", err)
	}
}

func TestHandler_SavesOnSpace(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	w.Now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local) }

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 120, 240, 0), 48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	h := NewHandler(w)
	s := capture.NewSession("photo-shoot", nil, 0)
	h.Key(s, &frame, 'a')
	h.Key(s, &frame, capture.KeySpace)

	if len(w.Saved) != 1 {
		t.Fatalf("saved %d photos, want 1", len(w.Saved))
	}
	want := filepath.Join(w.Dir, "captured_photo_20240102030405.jpg")
	if w.Saved[0] != want {
		t.Errorf("saved %q, want %q", w.Saved[0], want)
	}
	img := gocv.IMRead(want, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() || img.Cols() != 64 || img.Rows() != 48 {
		t.Errorf("written photo unreadable or wrong size")
	}
}

func TestHandler_WriteFailureContinues(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	w.write = func(string, gocv.Mat) bool { return false }

	frame := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)
	defer frame.Close()

	s := capture.NewSession("photo-shoot", nil, 0)
	NewHandler(w).Key(s, &frame, capture.KeySpace)

	if len(w.Saved) != 0 {
		t.Errorf("failed write recorded as saved")
	}
	if s.State != capture.Running {
		t.Errorf("session state = %v, want running", s.State)
	}
}
