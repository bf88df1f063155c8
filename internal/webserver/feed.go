package webserver

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleFeed upgrades a console's handshake and hands the socket to the hub.
// Registration cannot fail past this point; the hub owns the connection for
// the rest of its life.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		s.logger.Debug("feed upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	c := s.feed.Attach(conn)
	s.logger.Debug("feed console attached", "conn", c.ID(), "remote", r.RemoteAddr)
}
