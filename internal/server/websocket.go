package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/paulrobello/par-shape-2d/internal/core/observability/log"
)

type client struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, buffer int) *client {
	return &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, buffer),
	}
}

// close stops the writer; callers hold the server's client lock.
func (c *client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// writeLoop is the connection's only writer.
func (c *client) writeLoop(timeout time.Duration, logger log.Log) {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Debug("Write failed", log.String("client", c.id), log.Error(err))
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.config.Token != "" && r.URL.Query().Get("token") != s.config.Token {
		http.Error(w, ErrUnauthorized.Error(), http.StatusUnauthorized)
		return
	}
	if s.ClientCount() >= s.config.MaxClients {
		http.Error(w, ErrMaxClientsReached.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", log.Error(err))
		return
	}
	c := newClient(conn, s.config.SendBuffer)
	if err := s.register(c); err != nil {
		_ = conn.Close()
		return
	}
	defer s.unregister(c)
	go c.writeLoop(s.config.WriteTimeout, s.logger)

	s.deliver(c, Frame{Type: FrameHello, Payload: map[string]string{"client": c.id}})

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("Read failed", log.String("client", c.id), log.Error(err))
			}
			return
		}
		if err := s.Submit(r.Context(), cmd); err != nil {
			s.deliver(c, Frame{Type: FrameCommandError, Payload: cmd.Type, Error: err.Error()})
			continue
		}
		s.deliver(c, Frame{Type: FrameCommandOK, Payload: cmd.Type})
	}
}
