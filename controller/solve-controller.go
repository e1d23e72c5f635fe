package controller

import (
	"context"
	"ctfbot/cron"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// SolveHub streams relayed solves to dashboard websockets of the same server.
type SolveHub struct {
	mu          sync.Mutex
	connections map[string]map[*websocket.Conn]struct{}
}

func NewSolveHub() *SolveHub {
	return &SolveHub{connections: make(map[string]map[*websocket.Conn]struct{})}
}

func setupSolveController(hub *SolveHub) []RouteInfo {
	if hub == nil {
		return nil
	}
	return []RouteInfo{
		{Method: "GET", Path: "/servers/:server_id/solves/ws", HandlerFunc: hub.WebSocketHandler, Authenticated: true},
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// dashboards are served from other origins
		return true
	},
}

func (h *SolveHub) WebSocketHandler(c *gin.Context) {
	serverId := c.Param("server_id")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		http.NotFound(c.Writer, c.Request)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	if _, ok := h.connections[serverId]; !ok {
		h.connections[serverId] = make(map[*websocket.Conn]struct{})
	}
	h.connections[serverId][conn] = struct{}{}
	h.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.remove(serverId, conn)
			return
		}
	}
}

func (h *SolveHub) remove(serverId string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections[serverId], conn)
	if len(h.connections[serverId]) == 0 {
		delete(h.connections, serverId)
	}
}

func (h *SolveHub) Subscribers(serverId string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections[serverId])
}

func (h *SolveHub) Name() string {
	return "websocket"
}

// Deliver drops subscribers that cannot be written to.
func (h *SolveHub) Deliver(ctx context.Context, event cron.SolveEvent) error {
	serialized, err := json.Marshal(event)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.connections[event.ServerID] {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, serialized); err != nil {
			log.Printf("dropping solve subscriber of server %s: %v", event.ServerID, err)
			conn.Close()
			delete(h.connections[event.ServerID], conn)
		}
	}
	return nil
}
