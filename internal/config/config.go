// Package config provides configuration helpers for camtools commands.
// Environment variables supply defaults; each command layers flags on top.
package config

import (
	"os"
	"strconv"
)

// Defaults shared by every command.
const (
	DefaultCameraID     = 0
	DefaultCalibFile    = "calibration_params.yaml"
	DefaultPhotosDir    = "photos"
	DefaultLogLevel     = "info"
	DefaultMarkerLength = 0.09 // metres
)

// Env holds the environment-derived defaults.
type Env struct {
	CameraID     int
	CalibFile    string
	PhotosDir    string
	LogLevel     string
	PreviewPort  string // empty disables the preview server
	MarkerLength float64
}

// FromEnv reads CAMERA_ID, CALIB_FILE, PHOTOS_DIR, LOG_LEVEL,
// PREVIEW_PORT and MARKER_LENGTH. Unset or malformed values fall back
// to the package defaults.
func FromEnv() Env {
	return Env{
		CameraID:     Int("CAMERA_ID", DefaultCameraID),
		CalibFile:    String("CALIB_FILE", DefaultCalibFile),
		PhotosDir:    String("PHOTOS_DIR", DefaultPhotosDir),
		LogLevel:     String("LOG_LEVEL", DefaultLogLevel),
		PreviewPort:  String("PREVIEW_PORT", ""),
		MarkerLength: Float("MARKER_LENGTH", DefaultMarkerLength),
	}
}

// String returns the env var or the fallback when unset.
func String(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Int returns the env var parsed as an int, or the fallback.
func Int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// Float returns the env var parsed as a float64, or the fallback.
// Non-positive values are rejected since every float setting is a length.
func Float(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}
