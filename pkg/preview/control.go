package preview

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/teslashibe/camtools/internal/log"
	"github.com/teslashibe/camtools/pkg/capture"
	"gocv.io/x/gocv"
)

// Control message types.
const (
	TypeKey   = "key"
	TypePing  = "ping"
	TypePong  = "pong"
	TypeAck   = "ack"
	TypeError = "error"
)

// ControlMessage is exchanged on /ws/control.
type ControlMessage struct {
	Type      string `json:"type"`
	Key       string `json:"key,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"ts,omitempty"`
}

// KeyCode maps a key name to the code the capture loop understands:
// "esc", "space" or a single character.
func KeyCode(name string) (int, bool) {
	switch strings.ToLower(name) {
	case "esc", "escape":
		return capture.KeyEscape, true
	case "space", " ":
		return capture.KeySpace, true
	}
	if r := []rune(name); len(r) == 1 && r[0] < 0x80 {
		return int(r[0]), true
	}
	return 0, false
}

// Control accepts keys from remote clients and hands them to the capture
// loop through a wrapped Display.
type Control struct {
	keys chan int

	mu    sync.RWMutex
	conns map[string]*websocket.Conn

	received atomic.Uint64
	closed   atomic.Bool
}

// NewControl creates a control endpoint with a small key buffer.
func NewControl() *Control {
	return &Control{
		keys:  make(chan int, 8),
		conns: make(map[string]*websocket.Conn),
	}
}

// RegisterRoutes mounts /ws/control on app.
func (c *Control) RegisterRoutes(app *fiber.App) {
	app.Get("/ws/control", websocket.New(c.handle))
}

func (c *Control) handle(conn *websocket.Conn) {
	id := uuid.NewString()

	c.mu.Lock()
	c.conns[id] = conn
	count := len(c.conns)
	c.mu.Unlock()
	log.Debug("control client connected", "id", id, "clients", count)

	defer func() {
		c.mu.Lock()
		delete(c.conns, id)
		c.mu.Unlock()
		log.Debug("control client disconnected", "id", id)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		reply := c.handleMessage(data)
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
	}
}

func (c *Control) handleMessage(data []byte) ControlMessage {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ControlMessage{Type: TypeError, Error: "invalid message: " + err.Error()}
	}

	switch msg.Type {
	case TypePing:
		return ControlMessage{Type: TypePong, Timestamp: time.Now().UnixMilli()}
	case TypeKey:
		code, ok := KeyCode(msg.Key)
		if !ok {
			return ControlMessage{Type: TypeError, Error: fmt.Sprintf("unknown key %q", msg.Key)}
		}
		if err := c.Press(code); err != nil {
			return ControlMessage{Type: TypeError, Key: msg.Key, Error: err.Error()}
		}
		return ControlMessage{Type: TypeAck, Key: msg.Key}
	default:
		return ControlMessage{Type: TypeError, Error: fmt.Sprintf("unknown message type %q", msg.Type)}
	}
}

// Press queues a key for the capture loop.
func (c *Control) Press(code int) error {
	if c.closed.Load() {
		return fmt.Errorf("control closed")
	}
	select {
	case c.keys <- code:
		c.received.Add(1)
		return nil
	default:
		return fmt.Errorf("key queue full")
	}
}

// Received returns how many keys were queued.
func (c *Control) Received() uint64 { return c.received.Load() }

// Count returns the number of control connections.
func (c *Control) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.conns)
}

// Close stops accepting keys and drops open connections.
func (c *Control) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.mu.RLock()
	for _, conn := range c.conns {
		conn.Close()
	}
	c.mu.RUnlock()
}

// Wrap returns a Display that reports window keys first and falls back to
// queued remote keys.
func (c *Control) Wrap(d capture.Display) capture.Display {
	return &remoteDisplay{Display: d, keys: c.keys}
}

type remoteDisplay struct {
	capture.Display
	keys <-chan int
}

// remotePollMS bounds each window poll while waiting without a timeout,
// so queued remote keys are seen.
const remotePollMS = 20

// WaitKey polls the window, then the remote queue. A non-positive ms waits
// until either source yields a key.
func (r *remoteDisplay) WaitKey(ms int) int {
	if ms > 0 {
		if k := r.Display.WaitKey(ms); k >= 0 {
			return k
		}
		return r.remote()
	}
	for {
		if k := r.Display.WaitKey(remotePollMS); k >= 0 {
			return k
		}
		if k := r.remote(); k >= 0 {
			return k
		}
	}
}

// Hold shows img on the window for ms milliseconds. Remote keys stay
// queued for the next WaitKey.
func (r *remoteDisplay) Hold(img gocv.Mat, ms int) {
	r.Display.Show(img)
	r.Display.WaitKey(ms)
}

func (r *remoteDisplay) remote() int {
	select {
	case k := <-r.keys:
		return k
	default:
		return capture.KeyNone
	}
}
