package camera

import "gocv.io/x/gocv"

// Window is an on-screen display that also yields key presses.
type Window struct {
	win *gocv.Window
}

// NewWindow opens a display window named after cfg.WindowName and sizes
// it when a window size is configured.
func NewWindow(cfg Config) *Window {
	win := gocv.NewWindow(cfg.WindowName)
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		win.ResizeWindow(cfg.WindowWidth, cfg.WindowHeight)
	}
	return &Window{win: win}
}

// Show draws img in the window.
func (w *Window) Show(img gocv.Mat) {
	w.win.IMShow(img)
}

// WaitKey waits up to ms milliseconds for a key press. Zero waits forever.
// It returns -1 when no key was pressed.
func (w *Window) WaitKey(ms int) int {
	return w.win.WaitKey(ms)
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.win.Close()
}
