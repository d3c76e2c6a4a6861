package controllers

import (
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/geekydillip/Market-Pulse-AI-sub000/notify"
	"github.com/geekydillip/Market-Pulse-AI-sub000/tool"
)

const (
	DefaultKeepAlive = 15 * time.Second
	wsWriteWait      = 10 * time.Second
)

var progressUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the dashboard may be served from another origin
	},
}

type ProgressController struct {
	hub       *notify.Hub
	keepAlive time.Duration
}

func NewProgressController(hub *notify.Hub, keepAlive time.Duration) *ProgressController {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	return &ProgressController{
		hub:       hub,
		keepAlive: keepAlive,
	}
}

// HandleSSE streams a session's progress as server-sent events: "progress" events
// carrying the JSON payload and "ping" keep-alives. The stream ends after the event
// marked done.
func (ctrl *ProgressController) HandleSSE(c *gin.Context) {
	sessionId := c.Query("sessionId")
	if sessionId == "" {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Missing parameters"))
		return
	}

	events, unsubscribe := ctrl.hub.Subscribe(sessionId)
	defer unsubscribe()
	tool.DefaultLogger.Debugf("[Progress] SSE subscriber for %s", sessionId)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("connected", sessionId)
	c.Writer.Flush()

	ticker := time.NewTicker(ctrl.keepAlive)
	defer ticker.Stop()
	ctx := c.Request.Context()

	c.Stream(func(_ io.Writer) bool {
		select {
		case p, ok := <-events:
			if !ok {
				return false
			}
			payload, err := sonic.MarshalString(p)
			if err != nil {
				tool.DefaultLogger.Errorf("[Progress] Failed to encode event: %v", err)
				return true
			}
			c.SSEvent("progress", payload)
			return !p.Done
		case t := <-ticker.C:
			c.SSEvent("ping", t.Unix())
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// HandleWS streams the same events over a WebSocket, one JSON text message per event,
// with ping frames as keep-alive. The server closes the socket after the final event.
func (ctrl *ProgressController) HandleWS(c *gin.Context) {
	sessionId := c.Query("sessionId")
	if sessionId == "" {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Missing parameters"))
		return
	}
	conn, err := progressUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			tool.DefaultLogger.Debugf("Failed to close WebSocket connection: %v", err)
		}
	}()

	events, unsubscribe := ctrl.hub.Subscribe(sessionId)
	defer unsubscribe()

	// read loop to detect client close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(ctrl.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case p, ok := <-events:
			if !ok {
				ctrl.closeWS(conn)
				return
			}
			payload, err := sonic.Marshal(p)
			if err != nil {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
			if p.Done {
				ctrl.closeWS(conn)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func (ctrl *ProgressController) closeWS(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}
