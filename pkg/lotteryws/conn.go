package lotteryws

import (
	"io"
	"sync"

	"github.com/gorilla/websocket"
)

// wsConn adapts a WebSocket to the byte stream STOMP expects. Each Write is
// sent as one text message; reads continue across message boundaries.
type wsConn struct {
	ws     *websocket.Conn
	reader io.Reader

	writeMu sync.Mutex
	once    sync.Once
	closed  chan struct{}
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{
		ws:     ws,
		closed: make(chan struct{}),
	}
}

func (c *wsConn) Read(p []byte) (int, error) {
	for {
		if c.reader == nil {
			_, r, err := c.ws.NextReader()
			if err != nil {
				c.markClosed()
				return 0, err
			}
			c.reader = r
		}

		n, err := c.reader.Read(p)
		if err == io.EOF {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		if err != nil {
			c.markClosed()
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.WriteMessage(websocket.TextMessage, p); err != nil {
		c.markClosed()
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	c.markClosed()
	return c.ws.Close()
}

// Done is closed once the underlying WebSocket fails or is closed
func (c *wsConn) Done() <-chan struct{} {
	return c.closed
}

func (c *wsConn) markClosed() {
	c.once.Do(func() { close(c.closed) })
}
