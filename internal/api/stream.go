package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// AnalysisEvent describes websocket payloads emitted after each analysis.
type AnalysisEvent struct {
	Type      string       `json:"type"`
	Analysis  *AnalysisDTO `json:"analysis,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// clientQueueSize bounds pending events per client; a client that falls
// further behind misses events.
const clientQueueSize = 16

// wsClient owns a websocket connection and the queue its writer drains.
type wsClient struct {
	conn *websocket.Conn
	send chan AnalysisEvent
}

// AnalysisNotifier keeps track of dashboard websocket clients and broadcasts analysis events.
type AnalysisNotifier struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	last    *AnalysisEvent
}

// NewAnalysisNotifier constructs a notifier instance.
func NewAnalysisNotifier() *AnalysisNotifier {
	return &AnalysisNotifier{clients: make(map[*wsClient]struct{})}
}

// Register attaches a websocket connection, starts its writer and queues
// the most recent event for replay.
func (n *AnalysisNotifier) Register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn, send: make(chan AnalysisEvent, clientQueueSize)}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	if n.last != nil {
		client.send <- *n.last
	}
	n.mu.Unlock()

	go client.writeLoop()
	return client
}

// Unregister removes the websocket client from the notifier and closes the socket.
func (n *AnalysisNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	if _, ok := n.clients[client]; ok {
		delete(n.clients, client)
		close(client.send)
	}
	n.mu.Unlock()
	if client.conn != nil {
		_ = client.conn.Close()
	}
}

// ClientCount reports the number of connected clients.
func (n *AnalysisNotifier) ClientCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.clients)
}

// Broadcast queues the event for every registered client without waiting
// on the network. Events for a client whose queue is full are dropped.
func (n *AnalysisNotifier) Broadcast(event AnalysisEvent) {
	event.Timestamp = time.Now().UTC()

	n.mu.Lock()
	defer n.mu.Unlock()
	snapshot := event
	n.last = &snapshot

	for client := range n.clients {
		select {
		case client.send <- event:
		default:
			logrus.WithField("type", event.Type).Warn("analysis websocket client behind; dropping event")
		}
	}
}

// writeLoop drains the queue until Unregister closes it. A failed write
// closes the socket, which ends the reader and unregisters the client.
func (c *wsClient) writeLoop() {
	for event := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteJSON(event); err != nil {
			_ = c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

func (s *Server) handleAnalysisStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if len(s.allowedOrigins) == 0 || origin == "" {
				return true
			}
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.notifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("analysis websocket connected")
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("analysis websocket closed")
			} else {
				logrus.WithError(err).Warn("analysis websocket unexpected close")
			}
			break
		}
	}
}
