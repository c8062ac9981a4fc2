// Package preview mirrors a running capture session to the browser: the
// rendered frames as JPEG over a websocket, the session status as JSON, and
// a control socket that feeds keys back into the capture loop.
package preview

import (
	"fmt"
	"net"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/camtools/internal/log"
	"github.com/teslashibe/camtools/pkg/capture"
	"github.com/teslashibe/camtools/pkg/hub"
	"gocv.io/x/gocv"
)

// statusEvery forces a status broadcast every this many frames even when
// nothing changed, so the frame counter stays live.
const statusEvery = 30

// Server is the preview HTTP and websocket server.
type Server struct {
	app  *fiber.App
	addr string

	status   capture.Status
	statusMu sync.RWMutex
	lastSent capture.Status // loop goroutine only

	statusHub *hub.Hub
	frameHub  *hub.Hub
	control   *Control

	// FrameEvery publishes every nth frame. 1 sends all of them.
	FrameEvery int
}

// NewServer creates a server for addr, e.g. ":8080" or "127.0.0.1:0".
func NewServer(addr string) *Server {
	s := &Server{
		addr:       addr,
		statusHub:  hub.New("status"),
		frameHub:   hub.New("frames"),
		control:    NewControl(),
		FrameEvery: 1,
	}

	app := fiber.New(fiber.Config{
		AppName:               "camtools preview",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	app.Get("/", s.handleIndex)
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/clients", s.handleClients)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/frames", websocket.New(s.handleFramesWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	s.control.RegisterRoutes(app)

	s.app = app
	return s
}

// App exposes the fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App { return s.app }

// Control returns the key control endpoint.
func (s *Server) Control() *Control { return s.control }

// Start binds the address and serves in the background. It returns the
// bound address, which differs from the configured one for port 0.
func (s *Server) Start() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("preview listen %s: %w", s.addr, err)
	}

	go s.statusHub.Run()
	go s.frameHub.Run()

	go func() {
		if err := s.app.Listener(ln); err != nil {
			log.Warn("preview server stopped", "error", err)
		}
	}()

	log.Info("preview server listening", "url", "http://"+ln.Addr().String())
	return ln.Addr(), nil
}

// Publish records the session status and pushes frame to connected
// viewers. Its signature matches capture.Loop.OnFrame. frame is encoded
// before returning and never retained.
func (s *Server) Publish(sess *capture.Session, frame gocv.Mat) {
	st := sess.Snapshot()

	s.statusMu.Lock()
	s.status = st
	s.statusMu.Unlock()

	if statusChanged(s.lastSent, st) || st.Frames%statusEvery == 0 {
		if err := s.statusHub.BroadcastJSON(st); err == nil {
			s.lastSent = st
		}
	}

	every := s.FrameEvery
	if every < 1 {
		every = 1
	}
	if s.frameHub.ClientCount() == 0 || st.Frames%every != 0 {
		return
	}
	data, err := EncodeJPEG(frame)
	if err != nil {
		log.Debug("preview frame dropped", "error", err)
		return
	}
	s.frameHub.BroadcastBinary(data)
}

// Status returns the last published status.
func (s *Server) Status() capture.Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// Shutdown disconnects all clients and stops the server.
func (s *Server) Shutdown() error {
	s.statusHub.Stop()
	s.frameHub.Stop()
	s.control.Close()
	return s.app.Shutdown()
}

// EncodeJPEG encodes img into a Go-owned JPEG byte slice.
func EncodeJPEG(img gocv.Mat) ([]byte, error) {
	if img.Empty() {
		return nil, fmt.Errorf("encode jpeg: empty frame")
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

func statusChanged(a, b capture.Status) bool {
	return a.ID != b.ID || a.State != b.State || a.Samples != b.Samples ||
		a.Notice != b.Notice || a.Width != b.Width || a.Height != b.Height
}
