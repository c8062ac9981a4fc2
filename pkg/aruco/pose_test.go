package aruco

import (
	"errors"
	"math"
	"testing"

	"github.com/teslashibe/camtools/pkg/calib"
	"github.com/teslashibe/camtools/pkg/capture"
	"gocv.io/x/gocv"
)

func testIntrinsics() *calib.Intrinsics {
	return &calib.Intrinsics{
		CameraMatrix: [3][3]float64{
			{800, 0, 320},
			{0, 800, 240},
			{0, 0, 1},
		},
		DistCoeffs: []float64{0, 0, 0, 0, 0},
	}
}

// projectMarker renders the marker corners for a known pose.
func projectMarker(t *testing.T, in *calib.Intrinsics, p Pose, length float64) [4]gocv.Point2f {
	t.Helper()
	var out [4]gocv.Point2f
	for i, m := range MarkerObjectPoints(length) {
		x, y, z := p.Transform(float64(m.X), float64(m.Y), 0)
		if z <= 0 {
			t.Fatalf("corner %d behind camera", i)
		}
		out[i] = gocv.Point2f{
			X: float32(in.Fx()*x/z + in.Cx()),
			Y: float32(in.Fy()*y/z + in.Cy()),
		}
	}
	return out
}

func TestEstimatePose_RecoversSyntheticPose(t *testing.T) {
	in := testIntrinsics()
	tests := []struct {
		name string
		rvec [3]float64
		tvec [3]float64
	}{
		{"fronto-parallel", [3]float64{0, 0, 0}, [3]float64{0, 0, 0.5}},
		{"tilted", [3]float64{0.3, -0.2, 0.1}, [3]float64{0.05, -0.03, 0.6}},
		{"rotated in plane", [3]float64{0, 0, 1.2}, [3]float64{-0.1, 0.04, 0.8}},
		{"steep", [3]float64{0.7, 0.4, -0.3}, [3]float64{0.02, 0.02, 0.4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := Pose{Rvec: tt.rvec, Tvec: tt.tvec, R: RotationMatrix(tt.rvec)}
			corners := projectMarker(t, in, want, 0.09)

			got, err := EstimatePose(corners, 0.09, in)
			if err != nil {
				t.Fatalf("EstimatePose: %v", err)
			}
			for i := 0; i < 3; i++ {
				if math.Abs(got.Tvec[i]-want.Tvec[i]) > 1e-3 {
					t.Errorf("tvec = %v, want %v", got.Tvec, want.Tvec)
					break
				}
			}
			for i := 0; i < 3; i++ {
				if math.Abs(got.Rvec[i]-want.Rvec[i]) > 5e-3 {
					t.Errorf("rvec = %v, want %v", got.Rvec, want.Rvec)
					break
				}
			}
		})
	}
}

func TestEstimatePose_Invalid(t *testing.T) {
	in := testIntrinsics()
	square := [4]gocv.Point2f{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}

	if _, err := EstimatePose(square, 0, in); err == nil {
		t.Error("zero marker length should fail")
	}
	if _, err := EstimatePose(square, 0.1, &calib.Intrinsics{}); err == nil {
		t.Error("zero focal length should fail")
	}

	collapsed := [4]gocv.Point2f{{X: 5, Y: 5}, {X: 5, Y: 5}, {X: 5, Y: 5}, {X: 5, Y: 5}}
	if _, err := EstimatePose(collapsed, 0.1, in); !errors.Is(err, ErrDegenerate) {
		t.Errorf("collapsed corners: err = %v, want ErrDegenerate", err)
	}
}

func TestRodrigues_RoundTrip(t *testing.T) {
	for _, rvec := range [][3]float64{
		{0, 0, 0},
		{0.1, 0.2, 0.3},
		{-1.0, 0.5, 0.25},
		{0, 3.0, 0},
	} {
		got := Rodrigues(RotationMatrix(rvec))
		for i := range rvec {
			if math.Abs(got[i]-rvec[i]) > 1e-6 {
				t.Errorf("Rodrigues(RotationMatrix(%v)) = %v", rvec, got)
				break
			}
		}
	}
}

func TestHomography_MapsPoints(t *testing.T) {
	src := []gocv.Point2f{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	dst := []gocv.Point2f{{X: 100, Y: 50}, {X: 220, Y: 60}, {X: 210, Y: 190}, {X: 90, Y: 170}}

	h, err := Homography(src, dst)
	if err != nil {
		t.Fatalf("Homography: %v", err)
	}
	defer h.Close()

	got := Project(h, src)
	if len(got) != len(dst) {
		t.Fatalf("projected %d points, want %d", len(got), len(dst))
	}
	for i := range dst {
		if math.Hypot(float64(got[i].X-dst[i].X), float64(got[i].Y-dst[i].Y)) > 1e-2 {
			t.Errorf("H(%v) = %v, want %v", src[i], got[i], dst[i])
		}
	}
	if Project(h, nil) != nil {
		t.Error("projecting no points should return nil")
	}
}

func TestHomography_TooFewPoints(t *testing.T) {
	pts := []gocv.Point2f{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 0}}
	if _, err := Homography(pts, pts); !errors.Is(err, ErrDegenerate) {
		t.Errorf("three points: err = %v, want ErrDegenerate", err)
	}
	if _, err := Homography(append(pts, gocv.Point2f{X: 3, Y: 3}), pts); err == nil {
		t.Error("mismatched lengths should fail")
	}
}

func TestDictionaryLookup(t *testing.T) {
	code, err := DictionaryByID(3)
	if err != nil || code != gocv.ArucoDict4x4_1000 {
		t.Errorf("DictionaryByID(3) = %v, %v", code, err)
	}
	if _, err := DictionaryByID(17); err == nil {
		t.Error("id 17 should be rejected")
	}

	code, err = DictionaryByName("4x4_1000")
	if err != nil || code != DefaultDictionary {
		t.Errorf("DictionaryByName = %v, %v", code, err)
	}
	if DictionaryName(DefaultDictionary) != "DICT_4X4_1000" {
		t.Errorf("DictionaryName = %s", DictionaryName(DefaultDictionary))
	}

	sizes := map[int]int{0: 50, 3: 1000, 6: 250, 13: 100, 16: 1024}
	for id, want := range sizes {
		if got := DictionarySize(gocv.ArucoDictionaryCode(id)); got != want {
			t.Errorf("DictionarySize(%d) = %d, want %d", id, got, want)
		}
	}
}

func TestHandler_NoMarkersSkipsOverlay(t *testing.T) {
	h, err := NewHandler(DefaultHandlerConfig(), testIntrinsics())
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	defer h.Close()

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(200, 200, 200, 0), 480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	s := capture.NewSession("aruco-detect", nil, 0)
	h.Process(s, &frame)

	if len(h.Last) != 0 {
		t.Errorf("detected %d markers on a blank frame", len(h.Last))
	}
	if frame.Empty() || frame.Cols() != 640 || frame.Rows() != 480 {
		t.Errorf("frame changed shape: %dx%d", frame.Cols(), frame.Rows())
	}
}

func TestNewHandler_RequiresIntrinsics(t *testing.T) {
	if _, err := NewHandler(DefaultHandlerConfig(), nil); !errors.Is(err, calib.ErrNoMatrix) {
		t.Errorf("err = %v, want ErrNoMatrix", err)
	}
	cfg := DefaultHandlerConfig()
	cfg.MarkerLength = 0
	if _, err := NewHandler(cfg, testIntrinsics()); err == nil {
		t.Error("zero marker length should fail")
	}
}
