// Package camera wraps the gocv capture device and display window used by
// every camtools command.
package camera

import "fmt"

// Config holds the capture and display settings for one command run.
type Config struct {
	// === Source ===
	// DeviceID selects a camera when VideoFile is empty.
	DeviceID int `json:"device_id"`
	// VideoFile reads frames from a file instead of a device.
	VideoFile string `json:"video_file"`

	// === Resolution ===
	// Width and Height request a capture size. Zero keeps the driver default.
	Width     int `json:"width"`
	Height    int `json:"height"`
	Framerate int `json:"framerate"` // zero keeps the driver default

	// === Window ===
	WindowName   string `json:"window_name"`
	WindowWidth  int    `json:"window_width"`  // zero leaves the window unsized
	WindowHeight int    `json:"window_height"` // zero leaves the window unsized
}

// Limits for requested capture sizes.
const (
	MaxWidth     = 7680
	MaxHeight    = 4320
	MaxFramerate = 240
)

// DefaultConfig returns the settings the utilities have always used:
// device 0, driver-default resolution and a 640x480 "Camera Feed" window.
func DefaultConfig() Config {
	return Config{
		DeviceID:     0,
		WindowName:   "Camera Feed",
		WindowWidth:  640,
		WindowHeight: 480,
	}
}

// IsFile reports whether frames come from a video file.
func (c *Config) IsFile() bool {
	return c.VideoFile != ""
}

// Source returns a short human-readable description of the input.
func (c *Config) Source() string {
	if c.IsFile() {
		return c.VideoFile
	}
	return fmt.Sprintf("device %d", c.DeviceID)
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if !c.IsFile() && c.DeviceID < 0 {
		errors = append(errors, "device_id must be >= 0")
	}
	if c.Width < 0 || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 0 and %d", MaxWidth))
	}
	if c.Height < 0 || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 0 and %d", MaxHeight))
	}
	if (c.Width == 0) != (c.Height == 0) {
		errors = append(errors, "width and height must be set together")
	}
	if c.Framerate < 0 || c.Framerate > MaxFramerate {
		errors = append(errors, fmt.Sprintf("framerate must be between 0 and %d", MaxFramerate))
	}
	if c.WindowName == "" {
		errors = append(errors, "window_name must not be empty")
	}
	if c.WindowWidth < 0 || c.WindowHeight < 0 {
		errors = append(errors, "window size must not be negative")
	}

	return errors
}
