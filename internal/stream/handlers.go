package stream

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes exposes the live session stream. The endpoint is reachable
// with just the session id so emergency contacts can follow a shared ride
// without an account.
func RegisterRoutes(r fiber.Router, hub *Hub) {
	r.Get("/ws/:sessionID", websocket.New(func(c *websocket.Conn) {
		client := hub.Register(c.Params("sessionID"))

		done := make(chan struct{})
		go writePump(c, client, done)

		// Inbound frames are ignored; reading just detects the close.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		// Unregister closes Send, which stops the writer.
		hub.Unregister(client)
		<-done
	}))
}

func writePump(c *websocket.Conn, client *Client, done chan struct{}) {
	defer close(done)
	for msg := range client.Send {
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
