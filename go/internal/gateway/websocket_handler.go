package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
)

// WebSocketHandler serves websocket upgrades for session connections.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

// NewWebSocketHandler creates a new websocket handler.
func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{connectionManager: cm}
}

// HandleSessionConnection attaches a client to ?pin=. The optional ?token=
// identifies the player for in-game commands.
func (h *WebSocketHandler) HandleSessionConnection(w http.ResponseWriter, r *http.Request) {
	pinStr := r.URL.Query().Get("pin")
	if pinStr == "" {
		http.Error(w, "pin is required", http.StatusBadRequest)
		return
	}
	pin, err := strconv.Atoi(pinStr)
	if err != nil {
		http.Error(w, "invalid pin format", http.StatusBadRequest)
		return
	}

	token := r.URL.Query().Get("token")
	if err := h.connectionManager.UpgradeConnection(w, r, pin, token); err != nil {
		// the upgrader has already replied to the client
		log.Error().Err(err).Int("session_pin", pin).Msg("failed to upgrade websocket connection")
	}
}

// HandleConnectionStats reports open connections as JSON.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.Stats()); err != nil {
		log.Error().Err(err).Msg("failed to write connection stats")
	}
}

// RegisterRoutes registers the websocket routes with mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/session", h.HandleSessionConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
