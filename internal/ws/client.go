package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var errClientGone = errors.New("client connection closed")

// Client wraps one authenticated websocket connection. Outbound events go
// through a buffered send channel drained by the write pump; a full buffer
// drops the connection rather than blocking the sender.
type Client struct {
	id     string
	userID uint

	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(userID uint, conn *websocket.Conn) *Client {
	return &Client{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, 64),
		done:   make(chan struct{}),
	}
}

func (c *Client) HandleID() string { return c.id }

// Push enqueues one event for delivery. At-most-once: a closed connection
// or a full buffer returns an error and the event is dropped.
func (c *Client) Push(event string, data any) error {
	payload, err := encodeEvent(event, data)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return errClientGone
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
		log.WithField("user", c.userID).Warn("send buffer full, dropping connection")
		c.close()
		return errClientGone
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// readPump reads inbound events and hands them to dispatch, one at a time.
// It returns when the transport closes.
func (c *Client) readPump(dispatch func(Event)) {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithField("user", c.userID).WithError(err).Debug("websocket read error")
			}
			return
		}

		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			log.WithField("user", c.userID).WithError(err).Debug("malformed event")
			continue
		}
		dispatch(event)
	}
}

// writePump drains the send channel and keeps the connection alive with
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
