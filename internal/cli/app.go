// Package cli holds the plumbing shared by the camtools commands: opening
// the camera and window, the optional preview server, signal handling and
// exit codes.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/camtools/internal/log"
	"github.com/teslashibe/camtools/pkg/calib"
	"github.com/teslashibe/camtools/pkg/camera"
	"github.com/teslashibe/camtools/pkg/capture"
	"github.com/teslashibe/camtools/pkg/preview"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
)

// Options selects the input and the optional preview.
type Options struct {
	Tool        string
	Camera      camera.Config
	PreviewPort string
}

// App owns the devices of one command run.
type App struct {
	Tool    string
	Source  *camera.Source
	Window  *camera.Window
	Preview *preview.Server
}

// Open acquires the camera, the window and, when a port is set, the
// preview server. Everything acquired is released by Close.
func Open(opts Options) (*App, error) {
	src, err := camera.Open(opts.Camera)
	if err != nil {
		return nil, err
	}

	a := &App{
		Tool:   opts.Tool,
		Source: src,
		Window: camera.NewWindow(opts.Camera),
	}

	if opts.PreviewPort != "" {
		a.Preview = preview.NewServer(":" + opts.PreviewPort)
		if _, err := a.Preview.Start(); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// Loop builds the capture loop for handler. Remote keys from the preview
// control socket are merged with window keys.
func (a *App) Loop(h capture.Handler, waitMS int) *capture.Loop {
	l := &capture.Loop{
		Source:  a.Source,
		Display: a.Window,
		Handler: h,
		WaitMS:  waitMS,
	}
	if a.Preview != nil {
		l.Display = a.Preview.Control().Wrap(a.Window)
		l.OnFrame = a.Preview.Publish
	}
	return l
}

// Close releases everything Open acquired. It is safe to call twice.
func (a *App) Close() {
	if a.Preview != nil {
		if err := a.Preview.Shutdown(); err != nil {
			log.Warn("preview shutdown", "error", err)
		}
		a.Preview = nil
	}
	if a.Window != nil {
		a.Window.Close()
		a.Window = nil
	}
	if a.Source != nil {
		a.Source.Close()
		a.Source = nil
	}
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// OpenFailed reports a device open failure and returns the exit code.
func OpenFailed(err error) int {
	if errors.Is(err, camera.ErrOpen) {
		fmt.Fprintln(os.Stderr, "Error: Unable to open camera")
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	log.Error("startup failed", "error", err)
	return ExitFailure
}

// FinishCode maps the result of Session.Finish to an exit code. Too few
// samples is a normal early exit.
func FinishCode(err error, insufficient string) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, calib.ErrInsufficientSamples):
		fmt.Fprintln(os.Stderr, insufficient)
		log.Info("calibration skipped", "reason", err)
		return ExitOK
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		log.Error("calibration failed", "error", err)
		return ExitFailure
	}
}
