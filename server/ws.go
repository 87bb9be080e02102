package server

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const (
	socketWriteWait = 10 * time.Second
	socketReadLimit = 512
)

const (
	localsID      = "id"
	localsTimeout = "timeout"
)

// AwaitMessage is written to the websocket when the payment wait ends.
type AwaitMessage struct {
	ID      int64  `json:"id"`
	Status  string `json:"status,omitempty"`
	Balance string `json:"balance,omitempty"`
	Pending string `json:"pending,omitempty"`
	Error   string `json:"error,omitempty"`
}

// awaitUpgrade validates the wait request before the connection is upgraded.
// The optional timeout query parameter is given in milliseconds and capped by the server configuration.
func (s *server) awaitUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return fiber.ErrBadRequest
	}
	timeout := s.waitTimeout
	if raw := c.Query("timeout"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ms <= 0 {
			return fiber.ErrBadRequest
		}
		if d := time.Duration(ms) * time.Millisecond; d < timeout {
			timeout = d
		}
	}
	c.Locals(localsID, id)
	c.Locals(localsTimeout, timeout)
	return c.Next()
}

// awaitWs waits for the payment while the client stays connected. Closing the socket cancels the wait.
func (s *server) awaitWs() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		id, _ := conn.Locals(localsID).(int64)
		timeout, _ := conn.Locals(localsTimeout).(time.Duration)

		conn.SetReadLimit(socketReadLimit)
		cancel := make(chan struct{})
		go func() {
			defer close(cancel)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		s.log.Info(fmt.Sprintf("websocket server, waiting %s for payment of transaction [ %d ]", timeout, id))
		msg := AwaitMessage{ID: id}
		res, err := s.front.AwaitPayment(s.ctx, id, timeout, cancel)
		if err != nil {
			s.log.Error(fmt.Sprintf("websocket server, awaiting transaction [ %d ] failed: %s", id, err))
			msg.Error = err.Error()
		} else {
			msg.Status = string(res.Status)
			msg.Balance = res.Received.Balance.String()
			msg.Pending = res.Received.Pending.String()
		}

		conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			s.log.Error(fmt.Sprintf("websocket server, writing result of transaction [ %d ] failed: %s", id, err))
			return
		}
		err = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "payment wait finished"))
		if err != nil {
			s.log.Error(fmt.Sprintf("websocket server, write closing msg error, %s", err.Error()))
		}
	})
}
