package calib

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Canonical field names of the parameter file. The legacy camelCase names
// written by older chessboard runs are accepted on load.
const (
	KeyCameraMatrix     = "camera_matrix"
	KeyDistCoeffs       = "distortion_coefficients"
	KeyCalibrationTime  = "calibration_time"
	KeyImageWidth       = "image_width"
	KeyImageHeight      = "image_height"
	KeyFlags            = "flags"
	KeyAspectRatio      = "aspect_ratio"
	KeyReprojectionErr  = "avg_reprojection_error"
	KeySessionID        = "session_id"
	legacyCameraMatrix  = "cameraMatrix"
	legacyDistCoeffs    = "distCoeffs"
	calibrationTimeForm = "Mon Jan _2 15:04:05 2006"
)

// ErrNoMatrix is returned when a parameter file has no camera matrix.
var ErrNoMatrix = errors.New("parameter file has no camera matrix")

// Format is the on-disk encoding of a parameter file.
type Format int

const (
	// FormatYAML is OpenCV's FileStorage YAML dialect.
	FormatYAML Format = iota
	// FormatXML is OpenCV's FileStorage XML dialect.
	FormatXML
)

// FormatFor picks the encoding from the file extension, defaulting to YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".xml") {
		return FormatXML
	}
	return FormatYAML
}

// Matrix is an opencv-matrix node.
type Matrix struct {
	Rows, Cols int
	DT         string
	Data       []float64
}

// entry is one top-level key of a parameter file. Exactly one of scalar
// or matrix is set.
type entry struct {
	key    string
	scalar string
	quoted bool
	matrix *Matrix
}

// Save writes in to path, creating parent directories as needed.
func Save(path string, in *Intrinsics) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create parameter dir: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := Encode(&buf, FormatFor(path), in); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write parameter file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write parameter file: %w", err)
	}
	return nil
}

// Load reads intrinsics from path.
func Load(path string) (*Intrinsics, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parameter file: %w", err)
	}
	defer f.Close()

	in, err := Decode(f, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return in, nil
}

// Encode writes in to w in the given format.
func Encode(w io.Writer, format Format, in *Intrinsics) error {
	entries := toEntries(in)
	switch format {
	case FormatXML:
		return encodeXML(w, entries)
	default:
		return encodeYAML(w, entries)
	}
}

// Decode reads intrinsics in the given format from r.
func Decode(r io.Reader, format Format) (*Intrinsics, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read parameter file: %w", err)
	}

	var entries []entry
	switch format {
	case FormatXML:
		entries, err = decodeXML(data)
	default:
		entries, err = decodeYAML(data)
	}
	if err != nil {
		return nil, err
	}
	return fromEntries(entries)
}

func toEntries(in *Intrinsics) []entry {
	var out []entry
	if !in.CalibratedAt.IsZero() {
		out = append(out, entry{key: KeyCalibrationTime, scalar: in.CalibratedAt.Format(calibrationTimeForm), quoted: true})
	}
	if in.ImageSize.X > 0 && in.ImageSize.Y > 0 {
		out = append(out,
			entry{key: KeyImageWidth, scalar: strconv.Itoa(in.ImageSize.X)},
			entry{key: KeyImageHeight, scalar: strconv.Itoa(in.ImageSize.Y)},
		)
	}
	out = append(out, entry{key: KeyFlags, scalar: strconv.Itoa(int(in.Flags))})
	if in.Flags&FixAspectRatio != 0 {
		out = append(out, entry{key: KeyAspectRatio, scalar: formatReal(in.AspectRatio)})
	}

	cm := &Matrix{Rows: 3, Cols: 3, DT: "d", Data: make([]float64, 0, 9)}
	for r := 0; r < 3; r++ {
		cm.Data = append(cm.Data, in.CameraMatrix[r][:]...)
	}
	out = append(out, entry{key: KeyCameraMatrix, matrix: cm})

	dc := &Matrix{Rows: 1, Cols: len(in.DistCoeffs), DT: "d", Data: append([]float64(nil), in.DistCoeffs...)}
	out = append(out, entry{key: KeyDistCoeffs, matrix: dc})

	if in.RMS > 0 {
		out = append(out, entry{key: KeyReprojectionErr, scalar: formatReal(in.RMS)})
	}
	if in.SessionID != "" {
		out = append(out, entry{key: KeySessionID, scalar: in.SessionID, quoted: true})
	}
	return out
}

func fromEntries(entries []entry) (*Intrinsics, error) {
	byKey := make(map[string]entry, len(entries))
	for _, e := range entries {
		byKey[e.key] = e
	}
	lookup := func(keys ...string) (entry, bool) {
		for _, k := range keys {
			if e, ok := byKey[k]; ok {
				return e, true
			}
		}
		return entry{}, false
	}

	in := &Intrinsics{}

	cm, ok := lookup(KeyCameraMatrix, legacyCameraMatrix)
	if !ok || cm.matrix == nil {
		return nil, ErrNoMatrix
	}
	if cm.matrix.Rows != 3 || cm.matrix.Cols != 3 || len(cm.matrix.Data) != 9 {
		return nil, fmt.Errorf("camera matrix must be 3x3, got %dx%d with %d values",
			cm.matrix.Rows, cm.matrix.Cols, len(cm.matrix.Data))
	}
	for i, v := range cm.matrix.Data {
		in.CameraMatrix[i/3][i%3] = v
	}

	if dc, ok := lookup(KeyDistCoeffs, legacyDistCoeffs); ok && dc.matrix != nil {
		if len(dc.matrix.Data) != dc.matrix.Rows*dc.matrix.Cols {
			return nil, fmt.Errorf("distortion coefficients: %d values for %dx%d",
				len(dc.matrix.Data), dc.matrix.Rows, dc.matrix.Cols)
		}
		in.DistCoeffs = append([]float64(nil), dc.matrix.Data...)
	}

	var err error
	if e, ok := lookup(KeyImageWidth); ok {
		if in.ImageSize.X, err = strconv.Atoi(e.scalar); err != nil {
			return nil, fmt.Errorf("%s: %w", KeyImageWidth, err)
		}
	}
	if e, ok := lookup(KeyImageHeight); ok {
		if in.ImageSize.Y, err = strconv.Atoi(e.scalar); err != nil {
			return nil, fmt.Errorf("%s: %w", KeyImageHeight, err)
		}
	}
	if e, ok := lookup(KeyFlags); ok {
		flags, err := strconv.Atoi(e.scalar)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", KeyFlags, err)
		}
		in.Flags = Flag(flags)
	}
	if e, ok := lookup(KeyAspectRatio); ok {
		if in.AspectRatio, err = parseReal(e.scalar); err != nil {
			return nil, fmt.Errorf("%s: %w", KeyAspectRatio, err)
		}
	}
	if e, ok := lookup(KeyReprojectionErr); ok {
		if in.RMS, err = parseReal(e.scalar); err != nil {
			return nil, fmt.Errorf("%s: %w", KeyReprojectionErr, err)
		}
	}
	if e, ok := lookup(KeyCalibrationTime); ok {
		// Files written by OpenCV use the C locale's %c; tolerate other forms.
		if t, err := time.ParseInLocation(calibrationTimeForm, e.scalar, time.Local); err == nil {
			in.CalibratedAt = t
		}
	}
	if e, ok := lookup(KeySessionID); ok {
		in.SessionID = e.scalar
	}

	return in, nil
}

// formatReal prints v with the shortest representation that parses back to
// the same float64, always with a decimal point or exponent so that YAML
// readers type it as a real.
func formatReal(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += "."
	}
	return s
}

func parseReal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case ".nan":
		return strconv.ParseFloat("NaN", 64)
	case ".inf", "+.inf":
		return strconv.ParseFloat("+Inf", 64)
	case "-.inf":
		return strconv.ParseFloat("-Inf", 64)
	}
	return strconv.ParseFloat(s, 64)
}
