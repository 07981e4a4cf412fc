package gateway

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"pumpkin-tracker/apps/server/internal/codec"
	"pumpkin-tracker/apps/server/internal/store"
	"pumpkin-tracker/apps/server/internal/tracker"
	"pumpkin-tracker/tally"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	readLimit    = 65536
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 64
)

// Connection is one live leaderboard session. It owns its own view query and
// its own store subscription.
type Connection struct {
	ID       string
	Conn     *websocket.Conn
	Send     chan []byte
	Gateway  *Gateway
	encoding codec.Encoding
	seq      atomic.Uint64

	mu       sync.Mutex
	query    tally.Query
	roster   tally.Roster
	revision string

	sub       *store.Subscription
	done      chan struct{}
	closeOnce sync.Once
}

// Gateway manages WebSocket connections
type Gateway struct {
	tracker  *tracker.Tracker
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	connections map[string]*Connection
}

// New creates a gateway. An empty allowedOrigins list accepts any origin.
func New(t *tracker.Tracker, logger *zap.Logger, allowedOrigins []string) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{
		tracker:     t,
		logger:      logger.Named("gateway"),
		connections: make(map[string]*Connection),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
		},
	}
	return g
}

// HandleWebSocket handles WebSocket upgrade and connection
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("upgrade failed", zap.Error(err))
		return
	}

	c := &Connection{
		ID:       uuid.NewString(),
		Conn:     conn,
		Send:     make(chan []byte, sendBuffer),
		Gateway:  g,
		encoding: codec.ParseEncoding(r.URL.Query().Get("encoding")),
		query:    tally.Query{Page: 1, PageSize: g.tracker.PageSize()},
		roster:   tally.NewRoster(),
		done:     make(chan struct{}),
	}

	// The request context ends when this handler returns, so the
	// subscription is tied to the connection instead.
	sub, err := g.tracker.Watch(context.Background(), c.onSnapshot)
	if err != nil {
		g.logger.Error("subscribe failed", zap.String("conn", c.ID), zap.Error(err))
		_ = conn.Close()
		return
	}
	c.sub = sub

	// A snapshot delivered while subscribing is at least as new as ours.
	roster, rev := g.tracker.Snapshot()
	c.mu.Lock()
	if c.revision == "" {
		c.roster, c.revision = roster, rev
	}
	c.mu.Unlock()

	g.mu.Lock()
	g.connections[c.ID] = c
	total := len(g.connections)
	g.mu.Unlock()
	g.logger.Info("client connected", zap.String("conn", c.ID), zap.Int("total", total))

	c.pushLeaderboard()
	go c.readPump()
	go c.writePump()
}

func (g *Gateway) ConnectionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.connections)
}

// Close drops every open connection. Hijacked connections are not covered by
// http.Server.Shutdown, so the server registers this as a shutdown hook.
func (g *Gateway) Close() {
	g.mu.RLock()
	conns := slices.Collect(maps.Values(g.connections))
	g.mu.RUnlock()
	for _, c := range conns {
		c.close()
	}
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	delete(g.connections, c.ID)
	total := len(g.connections)
	g.mu.Unlock()
	g.logger.Info("client disconnected", zap.String("conn", c.ID), zap.Int("total", total))
}

// close tears the session down; every exit path ends up here.
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.sub.Cancel()
		c.Gateway.removeConnection(c)
		close(c.done)
		_ = c.Conn.Close()
	})
}

func (c *Connection) readPump() {
	defer c.close()

	c.Conn.SetReadLimit(readLimit)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.Gateway.logger.Debug("read error", zap.String("conn", c.ID), zap.Error(err))
			}
			return
		}
		if messageType == websocket.BinaryMessage || messageType == websocket.TextMessage {
			c.handleMessage(message)
		}
	}
}

func (c *Connection) handleMessage(data []byte) {
	env, err := codec.Unmarshal(data, c.encoding)
	if err != nil {
		c.sendError(1, "invalid message format")
		return
	}
	q, err := codec.ViewFromProto(env)
	if err != nil {
		c.sendError(2, err.Error())
		return
	}

	c.mu.Lock()
	q.PageSize = c.query.PageSize
	c.query = q
	c.mu.Unlock()
	c.pushLeaderboard()
}

func (c *Connection) onSnapshot(snap store.Snapshot) {
	c.mu.Lock()
	c.roster = snap.Winners
	c.revision = snap.Revision
	c.mu.Unlock()
	c.pushLeaderboard()
}

func (c *Connection) pushLeaderboard() {
	c.mu.Lock()
	page := tally.View(c.roster, c.query)
	stats := tally.Summarize(c.roster)
	rev := c.revision
	c.mu.Unlock()

	payload, err := codec.LeaderboardToProto(page, stats, rev)
	if err != nil {
		c.Gateway.logger.Error("encode leaderboard failed", zap.String("conn", c.ID), zap.Error(err))
		return
	}
	c.send(codec.TypeLeaderboard, payload)
}

func (c *Connection) sendError(code int32, msg string) {
	c.send(codec.TypeError, codec.ErrorToProto(code, msg))
}

func (c *Connection) send(msgType string, payload *structpb.Struct) {
	data, err := codec.Marshal(codec.WrapEnvelope(msgType, c.seq.Add(1), payload), c.encoding)
	if err != nil {
		c.Gateway.logger.Error("marshal envelope failed", zap.String("conn", c.ID), zap.Error(err))
		return
	}
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.Send <- data:
	case <-c.done:
	default:
		c.Gateway.logger.Warn("send buffer full, dropping frame", zap.String("conn", c.ID))
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	frameType := websocket.BinaryMessage
	if c.encoding == codec.EncodingJSON {
		frameType = websocket.TextMessage
	}

	for {
		select {
		case <-c.done:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(frameType, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
