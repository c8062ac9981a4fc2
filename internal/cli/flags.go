package cli

import (
	"flag"
	"fmt"
	"strings"

	"github.com/teslashibe/camtools/internal/config"
	"github.com/teslashibe/camtools/pkg/camera"
)

// CommonFlags are the input, preview and logging flags every command
// accepts. Defaults come from the environment.
type CommonFlags struct {
	CameraID    int
	VideoFile   string
	Preset      string
	Window      string
	PreviewPort string
	LogLevel    string
}

// Register adds the common flags to fs.
func (c *CommonFlags) Register(fs *flag.FlagSet, env config.Env) {
	fs.IntVar(&c.CameraID, "ci", env.CameraID, "Camera id if input does not come from video (-v)")
	fs.StringVar(&c.VideoFile, "v", "", "Input from video file; camera when omitted")
	fs.StringVar(&c.Preset, "preset", camera.PresetDefault,
		"Capture resolution preset: "+strings.Join(camera.PresetNames(), ", "))
	fs.StringVar(&c.Window, "window", "", "Window title")
	fs.StringVar(&c.PreviewPort, "preview", env.PreviewPort, "Serve a browser preview on this port")
	fs.StringVar(&c.LogLevel, "log-level", env.LogLevel, "Log level: debug, info, warn, error")
}

// CameraConfig builds the camera configuration from the flags.
func (c *CommonFlags) CameraConfig() (camera.Config, error) {
	preset := camera.GetPreset(c.Preset)
	if preset == nil {
		return camera.Config{}, fmt.Errorf("unknown preset %q", c.Preset)
	}
	cfg := *preset
	cfg.DeviceID = c.CameraID
	cfg.VideoFile = c.VideoFile
	if c.Window != "" {
		cfg.WindowName = c.Window
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return camera.Config{}, fmt.Errorf("invalid camera config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// Options returns Options for tool.
func (c *CommonFlags) Options(tool string) (Options, error) {
	cfg, err := c.CameraConfig()
	if err != nil {
		return Options{}, err
	}
	return Options{Tool: tool, Camera: cfg, PreviewPort: c.PreviewPort}, nil
}
