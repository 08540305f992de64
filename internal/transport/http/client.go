package http

import (
	"log/slog"
	"sync"
	"time"

	"quiz-room-service/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// ClientOptions tunes per-connection limits.
type ClientOptions struct {
	ReadLimit     int64
	SendBuffer    int
	RatePerSecond float64
	Burst         int
	WriteWait     time.Duration
	PongWait      time.Duration
}

func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		ReadLimit:     4096,
		SendBuffer:    32,
		RatePerSecond: 5,
		Burst:         10,
		WriteWait:     10 * time.Second,
		PongWait:      60 * time.Second,
	}
}

func (o ClientOptions) pingPeriod() time.Duration {
	return o.PongWait * 9 / 10
}

// Client is one websocket connection. Only its writer goroutine writes to the
// socket; rooms reach it through Send.
type Client struct {
	id   string
	conn *websocket.Conn
	log  *slog.Logger
	opts ClientOptions

	mu     sync.Mutex
	send   chan any
	closed bool
}

func newClient(conn *websocket.Conn, log *slog.Logger, opts ClientOptions) *Client {
	id := uuid.NewString()
	return &Client{
		id:   id,
		conn: conn,
		log:  log.With("conn", id),
		opts: opts,
		send: make(chan any, opts.SendBuffer),
	}
}

func (c *Client) ID() string { return c.id }

// Send enqueues msg for the writer. It never blocks: messages to a closed or
// backed-up client are dropped.
func (c *Client) Send(msg any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.log.Warn("send buffer full, dropping message")
		return false
	}
}

// close stops accepting messages; the writer drains what is queued and then
// sends a close frame.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.Debug("ws write error", "err", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump feeds inbound frames to handle until the connection fails.
func (c *Client) readPump(handle func([]byte)) {
	c.conn.SetReadLimit(c.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})
	limiter := rate.NewLimiter(rate.Limit(c.opts.RatePerSecond), c.opts.Burst)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Info("ws read error", "err", err)
			}
			return
		}
		if !limiter.Allow() {
			c.Send(domain.Failure{Type: domain.TypeError, Success: false, Message: "slow down"})
			continue
		}
		handle(data)
	}
}
