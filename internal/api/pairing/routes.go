package pairing

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterPairingRoutes mounts the couple endpoints on api (the /api/v1
// subrouter) and the pairing websocket on wsr (the /ws subrouter).
func RegisterPairingRoutes(api, wsr *mux.Router, handler *PairingHandler) {
	api.HandleFunc("/couples/invites", handler.CreateInvite).Methods(http.MethodPost)
	api.HandleFunc("/couples/invites/pending", handler.ListPending).Methods(http.MethodGet)
	api.HandleFunc("/couples/invites/{code}", handler.LookupInvite).Methods(http.MethodGet)
	api.HandleFunc("/couples/invites/{code}/accept", handler.AcceptInvite).Methods(http.MethodPost)
	api.HandleFunc("/couples/me", handler.MyRoom).Methods(http.MethodGet)

	wsr.HandleFunc("/pairing", handler.ServeWS).Methods(http.MethodGet)
}
