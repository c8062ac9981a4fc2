package capture

import (
	"context"
	"image"

	"github.com/teslashibe/camtools/internal/log"
	"gocv.io/x/gocv"
)

// Key codes returned by Display.WaitKey.
const (
	KeyNone    = -1
	KeyEscape  = 27
	KeySpace   = 32
	KeyCharuco = 'c'
)

// FrameSource yields frames on demand. Read returns false at end of
// stream or on device failure.
type FrameSource interface {
	Read(dst *gocv.Mat) bool
}

// Display shows frames and reports key presses within a bounded wait.
type Display interface {
	Show(img gocv.Mat)
	WaitKey(ms int) int
}

// Handler supplies the per-tool behaviour of the loop.
type Handler interface {
	// Process runs detection on frame and may draw an overlay on it.
	// It runs before the frame is shown.
	Process(s *Session, frame *gocv.Mat)

	// Key reacts to a key pressed while frame was shown. Escape never
	// reaches the handler.
	Key(s *Session, frame *gocv.Mat, key int)
}

// Loop is the single-threaded poll-key/process/render event loop.
type Loop struct {
	Source  FrameSource
	Display Display
	Handler Handler

	// WaitMS bounds each key poll and paces the loop. Zero waits for a key
	// on every frame.
	WaitMS int

	// OnFrame, if set, observes each rendered frame. It must not retain it.
	OnFrame func(s *Session, frame gocv.Mat)
}

// Run drives s until escape, the sample threshold, end of stream or ctx
// cancellation. It returns the stop reason, also stored on s.
func (l *Loop) Run(ctx context.Context, s *Session) StopReason {
	s.display = l.Display

	frame := gocv.NewMat()
	defer frame.Close()

	for s.State == Running {
		if ctx.Err() != nil {
			s.stop(Cancelled)
			break
		}

		if !l.Source.Read(&frame) || frame.Empty() {
			log.Error("unable to capture frame", "session", s.ID, "frames", s.Frames)
			s.stop(EndOfStream)
			break
		}
		s.Frames++
		s.FrameSize = image.Pt(frame.Cols(), frame.Rows())

		l.Handler.Process(s, &frame)

		l.Display.Show(frame)
		if l.OnFrame != nil {
			l.OnFrame(s, frame)
		}

		key := l.Display.WaitKey(l.WaitMS)
		if key >= 0 {
			key &= 0xFF
		}
		switch key {
		case KeyNone:
		case KeyEscape:
			s.stop(Escaped)
		default:
			l.Handler.Key(s, &frame, key)
		}

		if s.State == Running && s.thresholdReached() {
			s.stop(ThresholdReached)
		}
	}

	log.Debug("capture loop finished",
		"session", s.ID,
		"reason", s.Reason.String(),
		"frames", s.Frames,
		"samples", s.Count())
	return s.Reason
}
