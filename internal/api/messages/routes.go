package messages

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterMessageRoutes mounts the room endpoints on api (the /api/v1
// subrouter) and the room websocket on wsr (the /ws subrouter).
func RegisterMessageRoutes(api, wsr *mux.Router, handler *MessageHandler) {
	api.HandleFunc("/rooms/{roomID}/messages", handler.ListMessages).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{roomID}/messages", handler.SendMessage).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{roomID}/stats", handler.Stats).Methods(http.MethodGet)

	wsr.HandleFunc("/rooms/{roomID}", handler.ServeWS).Methods(http.MethodGet)
}
