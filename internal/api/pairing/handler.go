package pairing

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/QQCPM/ChatChat/internal/api/respond"
	"github.com/QQCPM/ChatChat/internal/apperrors"
	"github.com/QQCPM/ChatChat/internal/middleware"
	"github.com/QQCPM/ChatChat/internal/models"
	"github.com/QQCPM/ChatChat/internal/realtime"
	"github.com/QQCPM/ChatChat/internal/ws"
)

// Registry is the invite registry the handler serves.
type Registry interface {
	CreateInvite(ctx context.Context, creator models.Account) (models.Invite, error)
	LookupInvite(ctx context.Context, code string) (models.Invite, error)
	AcceptInvite(ctx context.Context, code string, accepter models.Account) (models.Room, error)
	FindPairedRoom(ctx context.Context, accountID string) (*models.Room, error)
	FindPendingInvitesCreatedBy(ctx context.Context, accountID string) ([]models.Invite, error)
}

// PairingHandler holds the dependencies of the couple endpoints.
type PairingHandler struct {
	Registry  Registry
	Publisher realtime.Publisher
	Hub       *ws.Hub
	Upgrader  *websocket.Upgrader
}

// RoomResponse wraps the caller's room; Room is null when unpaired.
type RoomResponse struct {
	Room *models.Room `json:"room"`
}

func account(w http.ResponseWriter, r *http.Request) (models.Account, bool) {
	acct, ok := middleware.AccountFrom(r.Context())
	if !ok {
		respond.Error(w, r, apperrors.ErrUnauthenticated)
	}
	return acct, ok
}

// CreateInvite creates an invite for the caller.
func (h *PairingHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	acct, ok := account(w, r)
	if !ok {
		return
	}
	inv, err := h.Registry.CreateInvite(r.Context(), acct)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, inv)
}

// ListPending returns the caller's open invites, oldest first.
func (h *PairingHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	acct, ok := account(w, r)
	if !ok {
		return
	}
	invites, err := h.Registry.FindPendingInvitesCreatedBy(r.Context(), acct.ID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, invites)
}

// LookupInvite resolves a code to its pending invite.
func (h *PairingHandler) LookupInvite(w http.ResponseWriter, r *http.Request) {
	if _, ok := account(w, r); !ok {
		return
	}
	inv, err := h.Registry.LookupInvite(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, inv)
}

// AcceptInvite pairs the caller with the invite's creator and tells both of
// them over the pairing channel.
func (h *PairingHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	acct, ok := account(w, r)
	if !ok {
		return
	}
	room, err := h.Registry.AcceptInvite(r.Context(), mux.Vars(r)["code"], acct)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	for _, member := range room.MemberIDs {
		if err := h.Publisher.Publish(r.Context(), realtime.CouplePaired(member, room)); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{"room_id": room.ID, "account_id": member}).
				Warn("Failed to publish pairing notification")
		}
	}
	respond.JSON(w, http.StatusOK, room)
}

// MyRoom returns the caller's couple room, if any.
func (h *PairingHandler) MyRoom(w http.ResponseWriter, r *http.Request) {
	acct, ok := account(w, r)
	if !ok {
		return
	}
	room, err := h.Registry.FindPairedRoom(r.Context(), acct.ID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, RoomResponse{Room: room})
}

// ServeWS streams couple.paired events addressed to the caller.
func (h *PairingHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	acct, ok := account(w, r)
	if !ok {
		return
	}
	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).WithField("account_id", acct.ID).Warn("Failed to upgrade pairing websocket")
		return
	}
	ws.NewClient(h.Hub, conn, acct.ID, realtime.AccountTopic(acct.ID)).Run()
}
