package calib

import (
	"bytes"
	"errors"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleIntrinsics() *Intrinsics {
	return &Intrinsics{
		CameraMatrix: [3][3]float64{
			{812.3456789012345, 0, 319.87654321},
			{0, 809.1111111111111, 241.0000000000001},
			{0, 0, 1},
		},
		DistCoeffs:   []float64{0.1234567890123, -0.25, 1e-05, -3.3333333333333335e-04, 0.0625},
		ImageSize:    image.Pt(640, 480),
		RMS:          0.3141592653589793,
		Flags:        FixAspectRatio | ZeroTangentDist,
		AspectRatio:  1,
		CalibratedAt: time.Date(2026, 10, 18, 9, 30, 0, 0, time.Local),
		SessionID:    "5f0c2c9e-7f61-4e3b-9d35-0d4c3ab1a001",
	}
}

func assertSameIntrinsics(t *testing.T, got, want *Intrinsics) {
	t.Helper()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if math.Float64bits(got.CameraMatrix[r][c]) != math.Float64bits(want.CameraMatrix[r][c]) {
				t.Errorf("camera_matrix[%d][%d] = %v, want %v", r, c, got.CameraMatrix[r][c], want.CameraMatrix[r][c])
			}
		}
	}
	if len(got.DistCoeffs) != len(want.DistCoeffs) {
		t.Fatalf("dist coeffs len = %d, want %d", len(got.DistCoeffs), len(want.DistCoeffs))
	}
	for i := range want.DistCoeffs {
		if math.Float64bits(got.DistCoeffs[i]) != math.Float64bits(want.DistCoeffs[i]) {
			t.Errorf("dist[%d] = %v, want %v", i, got.DistCoeffs[i], want.DistCoeffs[i])
		}
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for _, name := range []string{"calibration_params.yaml", "calibration_params.xml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			want := sampleIntrinsics()

			if err := Save(path, want); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}

			assertSameIntrinsics(t, got, want)
			if got.ImageSize != want.ImageSize {
				t.Errorf("ImageSize = %v, want %v", got.ImageSize, want.ImageSize)
			}
			if got.RMS != want.RMS {
				t.Errorf("RMS = %v, want %v", got.RMS, want.RMS)
			}
			if got.Flags != want.Flags {
				t.Errorf("Flags = %v, want %v", got.Flags, want.Flags)
			}
			if got.AspectRatio != want.AspectRatio {
				t.Errorf("AspectRatio = %v, want %v", got.AspectRatio, want.AspectRatio)
			}
			if got.SessionID != want.SessionID {
				t.Errorf("SessionID = %q, want %q", got.SessionID, want.SessionID)
			}
			if !got.CalibratedAt.Equal(want.CalibratedAt) {
				t.Errorf("CalibratedAt = %v, want %v", got.CalibratedAt, want.CalibratedAt)
			}
		})
	}
}

func TestStore_YAMLLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, FormatYAML, sampleIntrinsics()); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"%YAML:1.0\n---\n",
		"camera_matrix: !!opencv-matrix",
		"distortion_coefficients: !!opencv-matrix",
		"dt: d",
		"avg_reprojection_error: 0.3141592653589793",
		"aspect_ratio: 1.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("YAML output missing %q:\n%s", want, out)
		}
	}
}

// Written by cv::FileStorage in the legacy chessboard utility.
const legacyYAML = `%YAML:1.0
---
cameraMatrix: !!opencv-matrix
   rows: 3
   cols: 3
   dt: d
   data: [ 6.0153466245014404e+02, 0., 3.1950000000000000e+02, 0.,
       6.0153466245014404e+02, 2.3950000000000000e+02, 0., 0., 1. ]
distCoeffs: !!opencv-matrix
   rows: 1
   cols: 5
   dt: d
   data: [ 1.1823744476658227e-01, -7.1016339474862386e-01, 0., 0.,
       1.2204906326542399e+00 ]
`

func TestStore_LegacyFieldNames(t *testing.T) {
	in, err := Decode(strings.NewReader(legacyYAML), FormatYAML)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if in.Fx() != 6.0153466245014404e+02 || in.Cx() != 319.5 || in.Cy() != 239.5 {
		t.Errorf("camera matrix = %v", in.CameraMatrix)
	}
	if len(in.DistCoeffs) != 5 || in.DistCoeffs[4] != 1.2204906326542399 {
		t.Errorf("dist coeffs = %v", in.DistCoeffs)
	}
}

const opencvXML = `<?xml version="1.0"?>
<opencv_storage>
<calibration_time>"Sat Oct 18 09:30:00 2026"</calibration_time>
<image_width>640</image_width>
<image_height>480</image_height>
<flags>0</flags>
<camera_matrix type_id="opencv-matrix">
  <rows>3</rows>
  <cols>3</cols>
  <dt>d</dt>
  <data>
    6.5e+02 0. 320. 0. 6.5e+02 240. 0. 0. 1.</data></camera_matrix>
<distortion_coefficients type_id="opencv-matrix">
  <rows>1</rows>
  <cols>5</cols>
  <dt>d</dt>
  <data>
    -0.1 0.02 0. 0. 0.</data></distortion_coefficients>
<avg_reprojection_error>4.2e-01</avg_reprojection_error>
</opencv_storage>
`

func TestStore_OpenCVXML(t *testing.T) {
	in, err := Decode(strings.NewReader(opencvXML), FormatXML)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if in.Fx() != 650 || in.Fy() != 650 || in.Cx() != 320 || in.Cy() != 240 {
		t.Errorf("camera matrix = %v", in.CameraMatrix)
	}
	if in.ImageSize != image.Pt(640, 480) {
		t.Errorf("ImageSize = %v", in.ImageSize)
	}
	if in.RMS != 0.42 {
		t.Errorf("RMS = %v", in.RMS)
	}
	if in.CalibratedAt.IsZero() {
		t.Error("calibration_time not parsed")
	}
}

func TestStore_MissingMatrix(t *testing.T) {
	_, err := Decode(strings.NewReader("%YAML:1.0\n---\nflags: 0\n"), FormatYAML)
	if !errors.Is(err, ErrNoMatrix) {
		t.Errorf("Decode = %v, want ErrNoMatrix", err)
	}
}

func TestStore_BadMatrixShape(t *testing.T) {
	doc := "camera_matrix: !!opencv-matrix\n   rows: 2\n   cols: 2\n   dt: d\n   data: [ 1., 0., 0., 1. ]\n"
	if _, err := Decode(strings.NewReader(doc), FormatYAML); err == nil {
		t.Error("expected error for 2x2 camera matrix")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load = %v, want not-exist", err)
	}
}

func TestFormatFor(t *testing.T) {
	tests := map[string]Format{
		"calibration_params.xml":  FormatXML,
		"CALIB.XML":               FormatXML,
		"calibration_params.yaml": FormatYAML,
		"calibration_params.yml":  FormatYAML,
		"params":                  FormatYAML,
	}
	for path, want := range tests {
		if got := FormatFor(path); got != want {
			t.Errorf("FormatFor(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestFormatReal(t *testing.T) {
	tests := map[float64]string{
		1:        "1.",
		0:        "0.",
		-2:       "-2.",
		0.5:      "0.5",
		1e-05:    "1e-05",
		812.3456: "812.3456",
	}
	for in, want := range tests {
		if got := formatReal(in); got != want {
			t.Errorf("formatReal(%v) = %q, want %q", in, got, want)
		}
	}
}
