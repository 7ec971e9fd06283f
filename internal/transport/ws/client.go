package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"auction-bidding-api/internal/entity"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 256
)

var (
	ErrSlowConsumer = errors.New("listener send buffer is full")
	ErrClosed       = errors.New("listener is closed")
)

// Client is one websocket connection registered as a fanout listener.
type Client struct {
	id       uuid.UUID
	bidderId uuid.UUID
	conn     *websocket.Conn
	send     chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(conn *websocket.Conn, bidderId uuid.UUID) *Client {
	return &Client{
		id:       uuid.New(),
		bidderId: bidderId,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		closed:   make(chan struct{}),
	}
}

// Send queues the event for the write pump. A full buffer means the peer is
// not reading, so the client closes itself and reports the error.
func (c *Client) Send(event entity.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
		c.close()
		return ErrSlowConsumer
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-c.closed:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

type clientMessage struct {
	Type string `json:"type"`
}

// readPump blocks until the peer goes away. It only understands ping.
func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("bidder_id", c.bidderId).WithError(err).Warn("websocket read failed")
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.Send(controlEvent("error", map[string]string{"message": "Invalid JSON message"}))
			continue
		}

		switch msg.Type {
		case "ping":
			c.Send(controlEvent("pong", nil))
		default:
			c.Send(controlEvent("error", map[string]string{"message": "Unknown message type: " + msg.Type}))
		}
	}
}

func controlEvent(kind string, data any) entity.Event {
	return entity.Event{Type: kind, Data: data, Timestamp: time.Now().UTC()}
}
