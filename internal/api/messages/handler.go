package messages

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/QQCPM/ChatChat/internal/api/respond"
	"github.com/QQCPM/ChatChat/internal/apperrors"
	"github.com/QQCPM/ChatChat/internal/chat"
	"github.com/QQCPM/ChatChat/internal/middleware"
	"github.com/QQCPM/ChatChat/internal/models"
	"github.com/QQCPM/ChatChat/internal/realtime"
	"github.com/QQCPM/ChatChat/internal/storage"
	"github.com/QQCPM/ChatChat/internal/ws"
)

// Repository persists room messages. Both the memory and postgres message
// stores implement it.
type Repository interface {
	InsertMessage(ctx context.Context, msg models.Message) (models.Message, error)
	ListMessages(ctx context.Context, roomID string) ([]models.Message, error)
}

// RoomFinder resolves the caller's couple room for membership checks.
type RoomFinder interface {
	FindPairedRoom(ctx context.Context, accountID string) (*models.Room, error)
}

// StatsKeyPrefix prefixes the room stats cache keys.
const StatsKeyPrefix = "relationshipStats_"

// MessageHandler holds the dependencies of the room endpoints.
type MessageHandler struct {
	Store     Repository
	Rooms     RoomFinder
	Publisher realtime.Publisher
	Hub       *ws.Hub
	Upgrader  *websocket.Upgrader

	// StatsCache is optional; entries older than StatsTTL are recomputed.
	StatsCache storage.KV
	StatsTTL   time.Duration
	Now        func() time.Time
}

// SendMessageRequest is the body of a send. Text uses the stored encoding:
// image URLs and file JSON payloads are attachments.
type SendMessageRequest struct {
	Text string `json:"text"`
}

type statsEntry struct {
	Counts     chat.Stats     `json:"counts"`
	ByAuthor   map[string]int `json:"by_author"`
	ComputedAt time.Time      `json:"computed_at"`
}

func (h *MessageHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// member authenticates the caller and checks it belongs to the path's room.
func (h *MessageHandler) member(w http.ResponseWriter, r *http.Request) (models.Account, models.Room, bool) {
	acct, ok := middleware.AccountFrom(r.Context())
	if !ok {
		respond.Error(w, r, apperrors.ErrUnauthenticated)
		return models.Account{}, models.Room{}, false
	}
	roomID := mux.Vars(r)["roomID"]
	room, err := h.Rooms.FindPairedRoom(r.Context(), acct.ID)
	if err != nil {
		respond.Error(w, r, err)
		return models.Account{}, models.Room{}, false
	}
	if room == nil || room.ID != roomID {
		logrus.WithFields(logrus.Fields{"account_id": acct.ID, "room_id": roomID}).Warn("Rejected access to foreign room")
		respond.Error(w, r, apperrors.New(apperrors.CodeForbidden, "you are not a member of this room"))
		return models.Account{}, models.Room{}, false
	}
	return acct, *room, true
}

// ListMessages returns the room history, oldest first.
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	_, room, ok := h.member(w, r)
	if !ok {
		return
	}
	msgs, err := h.Store.ListMessages(r.Context(), room.ID)
	if err != nil {
		respond.Error(w, r, apperrors.Wrap(apperrors.CodePersistenceFailure, "could not load messages", err))
		return
	}
	respond.JSON(w, http.StatusOK, msgs)
}

// SendMessage persists a message, broadcasts it to the room and answers
// with the server-assigned id and timestamp.
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	acct, room, ok := h.member(w, r)
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respond.Error(w, r, apperrors.New(apperrors.CodeInvalidArgument, "text is required"))
		return
	}

	saved, err := h.Store.InsertMessage(r.Context(), models.Message{
		RoomID:     room.ID,
		AuthorID:   acct.ID,
		AuthorName: acct.Name(),
		Body:       models.ParseBody(req.Text),
	})
	if err != nil {
		respond.Error(w, r, apperrors.Wrap(apperrors.CodePersistenceFailure, "could not save message", err))
		return
	}

	logCtx := logrus.WithFields(logrus.Fields{"room_id": room.ID, "message_id": saved.ID})
	if err := h.Publisher.Publish(r.Context(), realtime.MessageCreated(saved)); err != nil {
		logCtx.WithError(err).Warn("Failed to publish message")
	}
	if h.StatsCache != nil {
		if err := h.StatsCache.Remove(r.Context(), StatsKeyPrefix+room.ID); err != nil {
			logCtx.WithError(err).Warn("Failed to invalidate stats cache")
		}
	}
	respond.JSON(w, http.StatusCreated, saved)
}

// Stats returns the room summary from the caller's point of view.
func (h *MessageHandler) Stats(w http.ResponseWriter, r *http.Request) {
	acct, room, ok := h.member(w, r)
	if !ok {
		return
	}
	now := h.now()
	entry, err := h.roomStats(r.Context(), room.ID, now)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	st := entry.Counts
	st.DaysTogether = chat.ComputeStats(nil, acct.ID, room.PairedAt, now).DaysTogether
	st.MessagesFromYou = entry.ByAuthor[acct.ID]
	st.MessagesFromThem = st.TotalMessages - st.MessagesFromYou
	respond.JSON(w, http.StatusOK, st)
}

func (h *MessageHandler) roomStats(ctx context.Context, roomID string, now time.Time) (statsEntry, error) {
	key := StatsKeyPrefix + roomID
	logCtx := logrus.WithField("room_id", roomID)

	if h.StatsCache != nil {
		data, err := h.StatsCache.Get(ctx, key)
		switch {
		case err == nil:
			var entry statsEntry
			if err := json.Unmarshal(data, &entry); err != nil {
				logCtx.WithError(err).Warn("Discarding unreadable stats cache entry")
			} else if now.Sub(entry.ComputedAt) < h.StatsTTL {
				return entry, nil
			}
		case !errors.Is(err, storage.ErrNotFound):
			logCtx.WithError(err).Warn("Failed to read stats cache")
		}
	}

	msgs, err := h.Store.ListMessages(ctx, roomID)
	if err != nil {
		return statsEntry{}, apperrors.Wrap(apperrors.CodePersistenceFailure, "could not load messages", err)
	}
	entry := statsEntry{
		Counts:     chat.ComputeStats(msgs, "", now, now),
		ByAuthor:   make(map[string]int),
		ComputedAt: now,
	}
	for _, m := range msgs {
		entry.ByAuthor[m.AuthorID]++
	}

	if h.StatsCache != nil && h.StatsTTL > 0 {
		data, err := json.Marshal(entry)
		if err == nil {
			err = h.StatsCache.Set(ctx, key, data)
		}
		if err != nil {
			logCtx.WithError(err).Warn("Failed to write stats cache")
		}
	}
	return entry, nil
}

// ServeWS streams message.created events for the room.
func (h *MessageHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	acct, room, ok := h.member(w, r)
	if !ok {
		return
	}
	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).WithField("room_id", room.ID).Warn("Failed to upgrade room websocket")
		return
	}
	ws.NewClient(h.Hub, conn, acct.ID, realtime.RoomTopic(room.ID)).Run()
}
