package ws

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	writeWait        = 5 * time.Second
)

// Connection is a thin wrapper around websocket connection which provides convenience
// methods for reading a feed.
type Connection struct {
	conn        *websocket.Conn
	readTimeout time.Duration
	done        chan struct{}
	closeOnce   sync.Once
}

// NewConnection creates and initializes a new websocket connection. A positive
// readTimeout bounds how long NextMessage waits for any frame from the peer; the
// connection pings at half that interval and every pong extends the deadline, so a
// quiet but live peer is kept while a half-open one fails the read.
func NewConnection(ctx context.Context, uri, authHeader string, readTimeout time.Duration) (*Connection, error) {
	header := http.Header{}
	if authHeader != "" {
		header.Add("Authorization", authHeader)
	}

	dialer := websocket.Dialer{
		Proxy:             http.ProxyFromEnvironment,
		HandshakeTimeout:  handshakeTimeout,
		EnableCompression: true,
	}

	conn, resp, err := dialer.DialContext(ctx, uri, header)
	if err != nil {
		return nil, err
	}
	_ = resp.Body.Close()

	c := &Connection{
		conn:        conn,
		readTimeout: readTimeout,
		done:        make(chan struct{}),
	}

	if readTimeout > 0 {
		conn.SetPongHandler(func(string) error {
			return c.extendDeadline()
		})
		go c.keepalive(readTimeout / 2)
	}

	return c, nil
}

func (c *Connection) extendDeadline() error {
	if c.readTimeout <= 0 {
		return nil
	}
	return c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
}

func (c *Connection) keepalive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// NextMessage reads and returns the next data item from the feed, text or binary.
// It fails with a timeout error when nothing arrives within the read timeout.
func (c *Connection) NextMessage() ([]byte, error) {
	if err := c.extendDeadline(); err != nil {
		return nil, err
	}

	_, r, err := c.conn.NextReader()
	if err != nil {
		return nil, err
	}

	return io.ReadAll(r)
}

// Close sends a close frame and closes the connection.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() { close(c.done) })

	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)

	return c.conn.Close()
}

// IsClosed reports whether err means the peer closed the connection.
func IsClosed(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
	)
}
