// Package capture runs the interactive capture loop shared by every
// camtools command: read a frame, let a handler detect and annotate, show
// it, wait for a key, repeat.
package capture

import (
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/camtools/internal/log"
	"github.com/teslashibe/camtools/pkg/calib"
	"gocv.io/x/gocv"
)

// State of a capture session.
type State int

const (
	Running State = iota
	Done
)

func (s State) String() string {
	if s == Done {
		return "done"
	}
	return "running"
}

// StopReason records why a session reached Done.
type StopReason int

const (
	NotStopped StopReason = iota
	Escaped
	ThresholdReached
	EndOfStream
	Cancelled
)

func (r StopReason) String() string {
	switch r {
	case Escaped:
		return "escaped"
	case ThresholdReached:
		return "threshold_reached"
	case EndOfStream:
		return "end_of_stream"
	case Cancelled:
		return "cancelled"
	default:
		return "not_stopped"
	}
}

// Session is the explicit context of one capture run. Only the loop and
// its handler mutate it.
type Session struct {
	ID      string
	Tool    string
	Started time.Time

	// Samples is nil for tools that do not accumulate.
	Samples *calib.Accumulator
	// StopAt ends the loop once Samples holds this many entries.
	// Zero disables the threshold.
	StopAt int

	FrameSize image.Point
	Frames    int
	State     State
	Reason    StopReason
	Notice    string

	display  Display
	finished bool
}

// NewSession creates a running session with a fresh id.
func NewSession(tool string, samples *calib.Accumulator, stopAt int) *Session {
	return &Session{
		ID:      uuid.New().String(),
		Tool:    tool,
		Started: time.Now(),
		Samples: samples,
		StopAt:  stopAt,
		State:   Running,
	}
}

// Count returns the number of accepted samples.
func (s *Session) Count() int {
	if s.Samples == nil {
		return 0
	}
	return s.Samples.Len()
}

// Accept appends a sample. A rejected sample leaves the accumulator
// unchanged and is reported to the user.
func (s *Session) Accept(sample calib.Sample) error {
	if s.Samples == nil {
		return fmt.Errorf("session %s does not accumulate samples", s.Tool)
	}
	if err := s.Samples.Add(sample); err != nil {
		s.Reject("Sample rejected: %v", err)
		return err
	}
	log.Debug("sample accepted", "session", s.ID, "count", s.Samples.Len(), "points", sample.Len())
	return nil
}

// Notify prints a message for the user and keeps it as the latest notice.
func (s *Session) Notify(format string, args ...any) {
	s.Notice = fmt.Sprintf(format, args...)
	fmt.Println(s.Notice)
}

// Reject reports a frame that was not accepted. The message goes to
// stderr and is kept as the latest notice.
func (s *Session) Reject(format string, args ...any) {
	s.Notice = fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, s.Notice)
}

// Holder is implemented by displays that merge keys from several sources
// and must not lose queued keys while a frame is held.
type Holder interface {
	Hold(img gocv.Mat, ms int)
}

// Hold shows img and blocks for ms milliseconds. Window keys pressed
// meanwhile are discarded; a Holder display decides for its own sources.
func (s *Session) Hold(img gocv.Mat, ms int) {
	if s.display == nil {
		return
	}
	if h, ok := s.display.(Holder); ok {
		h.Hold(img, ms)
		return
	}
	s.display.Show(img)
	s.display.WaitKey(ms)
}

// ErrAlreadyFinished is returned by Finish after the first call.
var ErrAlreadyFinished = errors.New("session already finished")

// Finish hands the accumulated samples and the frame size to fn, once.
// Nothing runs when fewer samples than the accumulator's minimum were
// accepted.
func (s *Session) Finish(fn func(samples []calib.Sample, size image.Point) error) error {
	if s.finished {
		return ErrAlreadyFinished
	}
	if s.Samples == nil || !s.Samples.Ready() {
		need := 0
		if s.Samples != nil {
			need = s.Samples.Min()
		}
		return fmt.Errorf("%w: have %d, need %d", calib.ErrInsufficientSamples, s.Count(), need)
	}
	s.finished = true
	return fn(s.Samples.Samples(), s.FrameSize)
}

func (s *Session) thresholdReached() bool {
	return s.StopAt > 0 && s.Count() >= s.StopAt
}

func (s *Session) stop(r StopReason) {
	s.State = Done
	s.Reason = r
}

// Status is a JSON-friendly snapshot of a session.
type Status struct {
	ID       string `json:"id"`
	Tool     string `json:"tool"`
	State    string `json:"state"`
	Reason   string `json:"reason,omitempty"`
	Frames   int    `json:"frames"`
	Samples  int    `json:"samples"`
	Required int    `json:"required"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Notice   string `json:"notice,omitempty"`
	Uptime   string `json:"uptime"`
}

// Snapshot returns the current status.
func (s *Session) Snapshot() Status {
	st := Status{
		ID:      s.ID,
		Tool:    s.Tool,
		State:   s.State.String(),
		Frames:  s.Frames,
		Samples: s.Count(),
		Width:   s.FrameSize.X,
		Height:  s.FrameSize.Y,
		Notice:  s.Notice,
		Uptime:  time.Since(s.Started).Round(time.Second).String(),
	}
	if s.Samples != nil {
		st.Required = s.Samples.Min()
	}
	if s.State == Done {
		st.Reason = s.Reason.String()
	}
	return st
}
