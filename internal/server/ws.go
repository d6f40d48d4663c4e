package server

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wingmanhq/wingman/internal/orchestrator"
)

// checkOrigin applies the CORS policy to websocket handshakes: any origin
// when AllowAll is set, otherwise only http pages on localhost. Requests
// without an Origin header come from non-browser clients and pass.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.cfg.AllowAll {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme != "http" {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1":
		return true
	}
	return false
}

// wsResponse is the outgoing websocket message format.
type wsResponse struct {
	Type   string                   `json:"type"` // "turn" or "error"
	Result *orchestrator.TurnResult `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
	Status int                      `json:"status,omitempty"`
}

// handleWebSocket runs turns for one thread over a websocket. Each
// incoming message is a turnRequest; each gets exactly one response.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.engine.GetThread(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	log := s.log.With(zap.String("thread_id", id))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var req turnRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.send(conn, log, wsResponse{Type: "error", Error: "invalid message format", Status: http.StatusBadRequest})
			continue
		}

		res, err := s.engine.HandleTurn(r.Context(), id, req.input())
		if err != nil {
			status := statusFor(err)
			text := err.Error()
			if status == http.StatusInternalServerError {
				log.Error("websocket turn failed", zap.Error(err))
				text = "internal error"
			}
			s.send(conn, log, wsResponse{Type: "error", Error: text, Status: status})
			continue
		}
		s.send(conn, log, wsResponse{Type: "turn", Result: res})
	}
}

func (s *Server) send(conn *websocket.Conn, log *zap.Logger, resp wsResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		log.Warn("websocket write failed", zap.Error(err))
	}
}
