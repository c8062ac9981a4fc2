package preview

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/camtools/pkg/hub"
)

// handleStatus returns the latest session snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

// handleClients reports how many viewers are attached.
func (s *Server) handleClients(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"frames":  s.frameHub.ClientCount(),
		"status":  s.statusHub.ClientCount(),
		"control": s.control.Count(),
		"dropped": s.frameHub.Dropped(),
	})
}

func (s *Server) handleFramesWS(c *websocket.Conn) {
	hub.NewClient(s.frameHub, c).Run()
}

// handleStatusWS sends the current snapshot before joining the hub, so a
// new viewer does not wait for the next change.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	if err := c.WriteJSON(s.Status()); err != nil {
		return
	}
	hub.NewClient(s.statusHub, c).Run()
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html")
	return c.SendString(indexHTML)
}

const indexHTML = `<!doctype html>
<html>
<head><title>camtools preview</title></head>
<body style="font-family:sans-serif;background:#111;color:#eee">
<img id="frame" style="max-width:100%">
<pre id="status"></pre>
<p>Keys: <button data-key="space">space</button> <button data-key="c">c</button> <button data-key="esc">esc</button></p>
<script>
const base = (location.protocol === "https:" ? "wss://" : "ws://") + location.host;
const img = document.getElementById("frame");
const frames = new WebSocket(base + "/ws/frames");
frames.binaryType = "blob";
frames.onmessage = e => {
  const url = URL.createObjectURL(e.data);
  img.onload = () => URL.revokeObjectURL(url);
  img.src = url;
};
const status = new WebSocket(base + "/ws/status");
status.onmessage = e => {
  document.getElementById("status").textContent = JSON.stringify(JSON.parse(e.data), null, 2);
};
const control = new WebSocket(base + "/ws/control");
document.querySelectorAll("button[data-key]").forEach(b => {
  b.onclick = () => control.send(JSON.stringify({type: "key", key: b.dataset.key}));
});
</script>
</body>
</html>
`
