package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/QQCPM/ChatChat/internal/api/messages"
	"github.com/QQCPM/ChatChat/internal/api/pairing"
	"github.com/QQCPM/ChatChat/internal/api/respond"
	"github.com/QQCPM/ChatChat/internal/middleware"
)

// Handlers are the endpoint groups mounted by NewRouter.
type Handlers struct {
	Tokens   middleware.TokenParser
	Pairing  *pairing.PairingHandler
	Messages *messages.MessageHandler
}

// NewRouter mounts the API under /api/v1 and the websockets under /ws.
// Websockets may pass the token as a query parameter.
func NewRouter(h Handlers, corsOrigin string) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Auth(h.Tokens, false))
	wsr := r.PathPrefix("/ws").Subrouter()
	wsr.Use(middleware.Auth(h.Tokens, true))

	pairing.RegisterPairingRoutes(api, wsr, h.Pairing)
	messages.RegisterMessageRoutes(api, wsr, h.Messages)

	return middleware.Logging(middleware.CORS(corsOrigin)(r))
}
