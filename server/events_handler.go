package server

import (
	"net/http"

	"WaveDeck/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // same open CORS policy as the REST routes
	},
}

// EventsHandler upgrades to a websocket that receives catalog change events.
func (h *APIHandler) EventsHandler(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusNotFound, "Event feed disabled")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	h.hub.Serve(conn)
}
