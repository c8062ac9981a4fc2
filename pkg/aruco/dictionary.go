// Package aruco detects ArUco markers, recovers their pose relative to a
// calibrated camera and draws the marker axes.
package aruco

import (
	"fmt"
	"strings"

	"gocv.io/x/gocv"
)

// DefaultDictionary is DICT_4X4_1000.
const DefaultDictionary = gocv.ArucoDict4x4_1000

var dictionaryNames = []string{
	"DICT_4X4_50", "DICT_4X4_100", "DICT_4X4_250", "DICT_4X4_1000",
	"DICT_5X5_50", "DICT_5X5_100", "DICT_5X5_250", "DICT_5X5_1000",
	"DICT_6X6_50", "DICT_6X6_100", "DICT_6X6_250", "DICT_6X6_1000",
	"DICT_7X7_50", "DICT_7X7_100", "DICT_7X7_250", "DICT_7X7_1000",
	"DICT_ARUCO_ORIGINAL",
}

// DictionaryByID maps the numeric OpenCV predefined dictionary id
// (DICT_4X4_50=0 ... DICT_ARUCO_ORIGINAL=16) to a dictionary code.
func DictionaryByID(id int) (gocv.ArucoDictionaryCode, error) {
	if id < 0 || id >= len(dictionaryNames) {
		return 0, fmt.Errorf("unknown dictionary id %d (valid 0-%d)", id, len(dictionaryNames)-1)
	}
	return gocv.ArucoDictionaryCode(id), nil
}

// DictionaryByName accepts names like "DICT_4X4_1000" or "4x4_1000".
func DictionaryByName(name string) (gocv.ArucoDictionaryCode, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if !strings.HasPrefix(n, "DICT_") {
		n = "DICT_" + n
	}
	for i, d := range dictionaryNames {
		if d == n {
			return gocv.ArucoDictionaryCode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown dictionary %q", name)
}

// DictionaryName returns the OpenCV name of a dictionary code.
func DictionaryName(code gocv.ArucoDictionaryCode) string {
	if int(code) >= 0 && int(code) < len(dictionaryNames) {
		return dictionaryNames[code]
	}
	return fmt.Sprintf("DICT_%d", int(code))
}

// DictionarySize returns how many distinct ids the dictionary holds.
func DictionarySize(code gocv.ArucoDictionaryCode) int {
	if int(code) == 16 {
		return 1024
	}
	if int(code) < 0 || int(code) > 16 {
		return 0
	}
	return [...]int{50, 100, 250, 1000}[int(code)%4]
}
