package server

import (
	"net/http"
	"time"

	"github.com/agentic-research/skilltree/internal/render"
	"go.uber.org/zap"
)

const wsWriteWait = 10 * time.Second

// watch streams a tree view on connect and after every state change.
// Client messages are ignored; a read error ends the stream.
func (s *Server) watch(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, cancel := s.store.Subscribe()
	defer cancel()

	s.metrics.Subscribers.Inc()
	defer s.metrics.Subscribers.Dec()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(render.View(st)); err != nil {
				s.logger.Debug("websocket write", zap.Error(err))
				return
			}
		}
	}
}
