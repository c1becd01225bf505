package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/QQCPM/ChatChat/internal/chat"
	"github.com/QQCPM/ChatChat/internal/client"
	"github.com/QQCPM/ChatChat/internal/models"
	"github.com/QQCPM/ChatChat/internal/storage/sqlite"
)

const localRoomID = "local"

// roomContext is everything a room command needs. client is nil offline.
type roomContext struct {
	account models.Account
	room    models.Room
	client  *client.Client
	cache   *sqlite.KV
}

func (rc *roomContext) Close() error {
	return rc.cache.Close()
}

// store builds the room's message store. Offline it reads the cache, and a
// room never seen before starts with the greeting.
func (rc *roomContext) store() *chat.MessageStore {
	local := chat.NewLocalCache(rc.cache)
	if rc.client == nil {
		return chat.NewMessageStore(rc.room.ID, nil, local)
	}
	return chat.NewMessageStore(rc.room.ID, rc.client, local)
}

func openRoom(ctx context.Context, opts *RootOptions, offline bool) (*roomContext, error) {
	kv, err := opts.openCache()
	if err != nil {
		return nil, fmt.Errorf("open local cache: %w", err)
	}
	rc := &roomContext{cache: kv}

	if offline {
		rc.account = localAccount
		if opts.Token != "" {
			if rc.account, err = opts.account(); err != nil {
				kv.Close()
				return nil, err
			}
		}
		room, ok, err := recallRoom(ctx, kv, rc.account)
		if err != nil {
			logrus.WithError(err).Warn("Failed to read remembered room")
		}
		if !ok {
			room = models.Room{ID: localRoomID, MemberIDs: [2]string{rc.account.ID, ""}, PairedAt: time.Now()}
		}
		rc.room = room
		return rc, nil
	}

	c, acct, err := opts.connect()
	if err != nil {
		kv.Close()
		return nil, err
	}
	room, err := pairedRoom(ctx, c, acct)
	if err != nil {
		kv.Close()
		return nil, err
	}
	if err := rememberRoom(ctx, kv, acct, room); err != nil {
		logrus.WithError(err).Warn("Failed to remember room")
	}
	rc.account, rc.room, rc.client = acct, room, c
	return rc, nil
}

// formatMessage renders one line of a conversation.
func formatMessage(msg models.Message, viewerID string) string {
	author := msg.AuthorName
	if msg.AuthorID != "" && msg.AuthorID == viewerID {
		author = "You"
	}
	if author == "" {
		author = "Partner"
	}

	var text string
	switch b := msg.Body.(type) {
	case models.ImageBody:
		text = "[image] " + b.Ref
		if strings.HasPrefix(b.Ref, "data:") {
			text = "[image]"
		}
	case models.FileBody:
		text = fmt.Sprintf("[%s] %s", b.Type, b.Name)
	default:
		text = msg.Text()
	}

	line := fmt.Sprintf("[%s] %s: %s", msg.CreatedAt.Local().Format("15:04"), author, text)
	switch msg.Status {
	case models.StatusSending:
		line += " (sending)"
	case models.StatusUnsynced:
		line += " (not saved)"
	}
	return line
}
