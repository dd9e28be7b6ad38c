package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs registers the connection with initial, if set, as its first frame.
// It blocks until the peer goes away.
func ServeWs(hub *Hub, c *websocket.Conn, initial func() interface{}) {
	client := &Client{Hub: hub, Conn: c, ID: uuid.New(), Send: make(chan []byte, 256), logger: hub.logger}

	var first []byte
	if initial != nil {
		msg, err := encodeFrame("state", initial())
		if err != nil {
			hub.logger.Error("Hub", "Failed to encode initial frame", map[string]interface{}{"error": err.Error()})
		} else {
			first = msg
		}
	}

	if !hub.Register(client, first) {
		c.Close()
		return
	}

	go client.writePump()
	client.readPump()
}
