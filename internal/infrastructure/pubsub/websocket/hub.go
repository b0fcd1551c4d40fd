package websocketpubsub

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/watchdescriptor/internal/core/ports"
)

const (
	DefaultBufferSize   = 64
	DefaultPingInterval = 30 * time.Second
	DefaultPongWait     = 5 * time.Second

	writeWait = 10 * time.Second
)

// Hub is a publisher that streams notifications to the websocket clients
// connected to it. Clients can filter by topic with the "topic" query param.
// A client whose send buffer is full is disconnected.
type Hub struct {
	upgrader     *websocket.Upgrader
	bufferSize   int
	pingInterval time.Duration
	pongWait     time.Duration

	lock    *sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn  *websocket.Conn
	topic string
	send  chan []byte
	once  *sync.Once
}

func (c *client) wants(topic string) bool {
	return c.topic == ports.UnspecifiedTopic || c.topic == ports.AnyTopic ||
		c.topic == topic
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

func NewHub(bufferSize int, pingInterval, pongWait time.Duration) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if pingInterval <= 0 || pongWait <= 0 {
		pingInterval, pongWait = DefaultPingInterval, DefaultPongWait
	}
	return &Hub{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		bufferSize:   bufferSize,
		pingInterval: pingInterval,
		pongWait:     pongWait,
		lock:         &sync.RWMutex{},
		clients:      make(map[*client]struct{}),
	}
}

func (h *Hub) Publish(topic, message string) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	buf := []byte(message)
	for c := range h.clients {
		if !c.wants(topic) {
			continue
		}
		select {
		case c.send <- buf:
		default:
			log.WithField("remote", c.conn.RemoteAddr().String()).
				Warn("dropping slow websocket client")
			delete(h.clients, c)
			c.close()
		}
	}
	return nil
}

// NumClients returns the number of connected clients.
func (h *Hub) NumClients() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients)
}

// Close disconnects all clients and rejects new ones.
func (h *Hub) Close() {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Debug("failed to upgrade websocket connection")
		return
	}

	c := &client{
		conn:  conn,
		topic: r.URL.Query().Get("topic"),
		send:  make(chan []byte, h.bufferSize),
		once:  &sync.Once{},
	}
	if !h.register(c) {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(writeWait),
		)
		conn.Close()
		return
	}

	log.WithFields(log.Fields{
		"remote": conn.RemoteAddr().String(),
		"topic":  c.topic,
	}).Debug("websocket client connected")

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) register(c *client) bool {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
}

// readLoop only serves control frames. Clients are not expected to send
// anything.
func (h *Hub) readLoop(c *client) {
	defer h.unregister(c)

	_ = c.conn.SetReadDeadline(time.Now().Add(h.pingInterval + h.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.pingInterval + h.pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(
				err, websocket.CloseGoingAway, websocket.CloseNormalClosure,
			) {
				log.WithError(err).Debug("websocket client disconnected")
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.unregister(c)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(
				websocket.PingMessage, nil, time.Now().Add(h.pongWait),
			); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}
