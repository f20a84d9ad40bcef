package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	PongWait = 60 * time.Second

	// Send pings to peer with this period, must be less than PongWait
	pingPeriod = (PongWait * 9) / 10

	// Outbound messages buffered per client before it is considered too slow
	sendBuffer = 64
)

// Conn is the part of *websocket.Conn a client writes to
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is one live connection subscribed to a tasting room. All writes to
// the underlying connection happen on the WritePump goroutine.
type Client struct {
	conn   Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	Host   bool
	UserID string
}

// NewClient wraps conn. Host and UserID tag the connection as declared by the client.
func NewClient(conn Conn, host bool, userID string) *Client {
	return &Client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		Host:   host,
		UserID: userID,
	}
}

// Send queues data without blocking. It returns false when the client is
// closed or its queue is full; the message is then lost for this client.
func (c *Client) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// Done is closed once the client is closed
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close stops the write pump and closes the connection. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// WritePump delivers queued messages and keepalive pings until the client is
// closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
