package ws

import (
	"go.uber.org/zap"

	"github.com/gorilla/websocket"

	"github.com/getship/shipd/internal/logger"
)

// Client wraps a websocket connection as a hub Subscriber.
type Client struct {
	conn *websocket.Conn
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn}
}

// Send writes a text message to the connection.
func (c *Client) Send(payload []byte) error {
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		logger.Debug("websocket send failed", zap.Error(err))
		_ = c.conn.Close()
		return err
	}
	return nil
}

// Close terminates the connection.
func (c *Client) Close() {
	_ = c.conn.Close()
}
