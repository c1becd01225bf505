package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/QQCPM/ChatChat/internal/apperrors"
	"github.com/QQCPM/ChatChat/internal/auth"
	"github.com/QQCPM/ChatChat/internal/client"
	"github.com/QQCPM/ChatChat/internal/models"
	"github.com/QQCPM/ChatChat/internal/session"
	"github.com/QQCPM/ChatChat/internal/storage"
	"github.com/QQCPM/ChatChat/internal/storage/sqlite"
)

const roomKeyPrefix = "chatctl_room_"

// localAccount signs offline sessions when no token is configured.
var localAccount = models.Account{ID: "local", DisplayName: "You"}

func (o *RootOptions) account() (models.Account, error) {
	if o.Token == "" {
		return models.Account{}, NewExitError(ExitCommandError, "no token: pass --token or set CHATCHAT_TOKEN (chatctl token mints one)")
	}
	return auth.AccountFromUnverified(o.Token)
}

func (o *RootOptions) connect() (*client.Client, models.Account, error) {
	acct, err := o.account()
	if err != nil {
		return nil, models.Account{}, err
	}
	c, err := client.New(o.Server, o.Token)
	if err != nil {
		return nil, models.Account{}, &ExitError{Code: ExitCommandError, Message: "invalid --server", Err: err}
	}
	return c, acct, nil
}

func (o *RootOptions) cachePath() (string, error) {
	if o.Cache != "" {
		return o.Cache, nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locate cache dir: %w", err)
	}
	dir = filepath.Join(dir, "chatchat")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	return filepath.Join(dir, "cache.db"), nil
}

func (o *RootOptions) openCache() (*sqlite.KV, error) {
	path, err := o.cachePath()
	if err != nil {
		return nil, err
	}
	return sqlite.Open(path)
}

// signIn runs the pairing check for the token's account.
func signIn(ctx context.Context, c *client.Client, acct models.Account) (*session.Controller, error) {
	ctrl := session.NewController(c, nil)
	if err := ctrl.SignIn(ctx, acct); err != nil {
		return nil, err
	}
	return ctrl, nil
}

// pairedRoom signs in and requires a room.
func pairedRoom(ctx context.Context, c *client.Client, acct models.Account) (models.Room, error) {
	ctrl, err := signIn(ctx, c, acct)
	if err != nil {
		return models.Room{}, err
	}
	room, ok := ctrl.Room()
	if !ok {
		return models.Room{}, apperrors.New(apperrors.CodeForbidden, "not paired yet: run chatctl pair create or chatctl pair join CODE")
	}
	return room, nil
}

func rememberRoom(ctx context.Context, kv storage.KV, acct models.Account, room models.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return kv.Set(ctx, roomKeyPrefix+acct.ID, data)
}

// recallRoom returns the room last seen online, or false.
func recallRoom(ctx context.Context, kv storage.KV, acct models.Account) (models.Room, bool, error) {
	data, err := kv.Get(ctx, roomKeyPrefix+acct.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Room{}, false, nil
	}
	if err != nil {
		return models.Room{}, false, err
	}
	var room models.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return models.Room{}, false, nil
	}
	return room, true, nil
}
