package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/QQCPM/ChatChat/internal/chat"
	"github.com/QQCPM/ChatChat/internal/models"
)

type sendRequest struct {
	Text string `json:"text"`
}

func roomPath(roomID, suffix string) string {
	return "/api/v1/rooms/" + url.PathEscape(roomID) + suffix
}

// ListMessages returns the room history, oldest first.
func (c *Client) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	var msgs []models.Message
	err := c.do(ctx, http.MethodGet, roomPath(roomID, "/messages"), nil, &msgs)
	return msgs, err
}

// SendMessage persists draft and returns it with the server's id and time.
func (c *Client) SendMessage(ctx context.Context, draft models.Message) (models.Message, error) {
	var saved models.Message
	err := c.do(ctx, http.MethodPost, roomPath(draft.RoomID, "/messages"), sendRequest{Text: draft.Text()}, &saved)
	return saved, err
}

// Stats returns the room summary from the signed-in account's view.
func (c *Client) Stats(ctx context.Context, roomID string) (chat.Stats, error) {
	var st chat.Stats
	err := c.do(ctx, http.MethodGet, roomPath(roomID, "/stats"), nil, &st)
	return st, err
}

var (
	_ chat.HistorySource = (*Client)(nil)
	_ chat.Persister     = (*Client)(nil)
)
