package server

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tidechat/realtime/internal/logging"
)

// wsClient is one live websocket connection. All writes go through the send
// queue and a single writer goroutine; Send never blocks on the socket.
type wsClient struct {
	id           string
	conn         *websocket.Conn
	send         chan []byte
	writeTimeout time.Duration
	pingPeriod   time.Duration
	logger       *logging.Logger
	closeOnce    sync.Once
	done         chan struct{}
}

func newClient(id string, conn *websocket.Conn, queueSize int, writeTimeout time.Duration, readTimeout time.Duration, logger *logging.Logger) *wsClient {
	return &wsClient{
		id:           id,
		conn:         conn,
		send:         make(chan []byte, queueSize),
		writeTimeout: writeTimeout,
		pingPeriod:   readTimeout * 9 / 10,
		logger:       logger,
		done:         make(chan struct{}),
	}
}

func (c *wsClient) ID() string {
	return c.id
}

// Send queues a frame. A full queue means the peer is too slow; the frame
// is dropped for this connection only.
func (c *wsClient) Send(message []byte) error {
	select {
	case <-c.done:
		return errors.New("connection is closed")
	default:
	}

	select {
	case c.send <- message:
		return nil
	default:
		return errors.New("send queue is full")
	}
}

func (c *wsClient) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
	return nil
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		c.logger.Debug("write pump stopped", "client_id", c.id)
	}()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("websocket write error", "client_id", c.id, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
