package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/QQCPM/ChatChat/internal/models"
	"github.com/QQCPM/ChatChat/internal/session"
)

type roomResponse struct {
	Room *models.Room `json:"room"`
}

// The server identifies the caller from the token, so the account arguments
// below only exist to satisfy session.Registry.

// CreateInvite creates an invite for the signed-in account.
func (c *Client) CreateInvite(ctx context.Context, _ models.Account) (models.Invite, error) {
	var inv models.Invite
	err := c.do(ctx, http.MethodPost, "/api/v1/couples/invites", nil, &inv)
	return inv, err
}

// LookupInvite resolves code to its pending invite.
func (c *Client) LookupInvite(ctx context.Context, code string) (models.Invite, error) {
	var inv models.Invite
	err := c.do(ctx, http.MethodGet, "/api/v1/couples/invites/"+url.PathEscape(code), nil, &inv)
	return inv, err
}

// AcceptInvite joins the invite for code.
func (c *Client) AcceptInvite(ctx context.Context, code string, _ models.Account) (models.Room, error) {
	var room models.Room
	err := c.do(ctx, http.MethodPost, "/api/v1/couples/invites/"+url.PathEscape(code)+"/accept", nil, &room)
	return room, err
}

// FindPairedRoom returns the signed-in account's room, or nil.
func (c *Client) FindPairedRoom(ctx context.Context, _ string) (*models.Room, error) {
	var resp roomResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/couples/me", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Room, nil
}

// FindPendingInvitesCreatedBy returns the signed-in account's open invites.
func (c *Client) FindPendingInvitesCreatedBy(ctx context.Context, _ string) ([]models.Invite, error) {
	var invites []models.Invite
	err := c.do(ctx, http.MethodGet, "/api/v1/couples/invites/pending", nil, &invites)
	return invites, err
}

var _ session.Registry = (*Client)(nil)
