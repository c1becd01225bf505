package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QQCPM/ChatChat/internal/api/messages"
	apipairing "github.com/QQCPM/ChatChat/internal/api/pairing"
	"github.com/QQCPM/ChatChat/internal/apperrors"
	"github.com/QQCPM/ChatChat/internal/auth"
	"github.com/QQCPM/ChatChat/internal/chat"
	"github.com/QQCPM/ChatChat/internal/middleware"
	"github.com/QQCPM/ChatChat/internal/models"
	"github.com/QQCPM/ChatChat/internal/pairing"
	"github.com/QQCPM/ChatChat/internal/storage/memory"
	"github.com/QQCPM/ChatChat/internal/ws"
)

const testSecret = "test-secret"

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "chatctl", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, path := range [][]string{
		{"token"}, {"pair", "status"}, {"pair", "create"}, {"pair", "join"},
		{"history"}, {"chat"}, {"stats"},
	} {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			sub, _, err := cmd.Find(path)
			require.NoError(t, err)
			assert.Equal(t, path[len(path)-1], sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"server", "token", "cache", "verbose", "format"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "v", cmd.PersistentFlags().Lookup("verbose").Shorthand)

	chatCmd, _, err := cmd.Find([]string{"chat"})
	require.NoError(t, err)
	assert.NotNil(t, chatCmd.Flags().Lookup("offline"))
	assert.Equal(t, "0", chatCmd.Flags().Lookup("reconnect").DefValue)
}

// run executes chatctl with args against cache and returns stdout.
func run(t *testing.T, cache, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--cache", cache}, args...))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestInvalidFormatIsCommandError(t *testing.T) {
	_, err := run(t, filepath.Join(t.TempDir(), "c.db"), "", "--format", "xml", "token", "--id", "a", "--secret", "s")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTokenCommand(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "c.db")
	out, err := run(t, cache, "", "token", "--id", "alice", "--name", "Alice", "--secret", testSecret)
	require.NoError(t, err)

	acct, err := auth.NewIssuer(testSecret).Parse(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, models.Account{ID: "alice", DisplayName: "Alice"}, acct)

	_, err = run(t, cache, "", "token", "--id", "alice", "--secret=")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func newServer(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := ws.NewHub()
	go hub.Run(ctx)

	registry := pairing.NewRegistry(memory.NewCoupleStore())
	issuer := auth.NewIssuer(testSecret)
	upgrader := ws.NewUpgrader("*")

	r := mux.NewRouter()
	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.Auth(issuer, false))
	wsRouter := r.PathPrefix("/ws").Subrouter()
	wsRouter.Use(middleware.Auth(issuer, true))
	apipairing.RegisterPairingRoutes(apiRouter, wsRouter, &apipairing.PairingHandler{
		Registry: registry, Publisher: hub, Hub: hub, Upgrader: upgrader,
	})
	messages.RegisterMessageRoutes(apiRouter, wsRouter, &messages.MessageHandler{
		Store: memory.NewMessageStore(), Rooms: registry, Publisher: hub, Hub: hub, Upgrader: upgrader,
	})

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv.URL
}

func tokenFor(t *testing.T, acct models.Account) string {
	t.Helper()
	token, err := auth.NewIssuer(testSecret).Issue(acct, time.Hour)
	require.NoError(t, err)
	return token
}

func TestPairChatAndHistory(t *testing.T) {
	server := newServer(t)
	aliceCache := filepath.Join(t.TempDir(), "alice.db")
	bobCache := filepath.Join(t.TempDir(), "bob.db")
	asAlice := []string{"--server", server, "--token", tokenFor(t, models.Account{ID: "alice", DisplayName: "Alice"})}
	asBob := []string{"--server", server, "--token", tokenFor(t, models.Account{ID: "bob", DisplayName: "Bob"})}

	out, err := run(t, aliceCache, "", append(asAlice, "pair", "status")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Not paired")

	_, err = run(t, aliceCache, "", append(asAlice, "history")...)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeForbidden, apperrors.CodeOf(err))

	out, err = run(t, aliceCache, "", append(asAlice, "--format", "json", "pair", "create")...)
	require.NoError(t, err)
	var created struct{ Data PairStatus }
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "waiting", created.Data.State)
	require.NotNil(t, created.Data.Invite)
	code := created.Data.Invite.Code

	// Creating again shows the same open invite.
	out, err = run(t, aliceCache, "", append(asAlice, "pair", "create")...)
	require.NoError(t, err)
	assert.Contains(t, out, code)

	_, err = run(t, bobCache, "", append(asBob, "pair", "join", "COUPLE-ZZZZZZ")...)
	require.ErrorIs(t, err, apperrors.ErrInvalidCode)

	out, err = run(t, bobCache, "", append(asBob, "pair", "join", strings.ToLower(code))...)
	require.NoError(t, err)
	assert.Contains(t, out, "Paired with Alice")

	out, err = run(t, aliceCache, "", append(asAlice, "pair", "status")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Paired with Bob")

	out, err = run(t, bobCache, "hello alice\n\n/quit\n", append(asBob, "chat")...)
	require.NoError(t, err)
	assert.Contains(t, out, "You: hello alice")
	assert.NotContains(t, out, "(not saved)")

	out, err = run(t, aliceCache, "", append(asAlice, "history")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Bob: hello alice")

	out, err = run(t, aliceCache, "", append(asAlice, "--format", "json", "stats")...)
	require.NoError(t, err)
	var stats struct{ Data chat.Stats }
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.Data.TotalMessages)
	assert.Equal(t, 1, stats.Data.MessagesFromThem)
	assert.Equal(t, 1, stats.Data.DaysTogether)

	// Alice's cache now holds the room, so she can read it offline.
	out, err = run(t, aliceCache, "", append(asAlice, "history", "--offline")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Bob: hello alice")
}

func TestOfflineChat(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "offline.db")

	out, err := run(t, cache, "just me\n", "--token=", "chat", "--offline")
	require.NoError(t, err)
	assert.Contains(t, out, "Them: Hey! How are you?")
	assert.Contains(t, out, "You: just me")

	out, err = run(t, cache, "", "--token=", "history", "--offline")
	require.NoError(t, err)
	assert.Contains(t, out, "You: just me")
	assert.Equal(t, 4, strings.Count(out, "\n"))
}

func TestFormatMessage(t *testing.T) {
	at := time.Date(2024, 2, 14, 9, 30, 0, 0, time.Local)
	msg := models.Message{ID: "1", AuthorID: "bob", AuthorName: "Bob", Body: models.TextBody{Text: "hi"}, CreatedAt: at}
	assert.Equal(t, "[09:30] Bob: hi", formatMessage(msg, "alice"))
	assert.Equal(t, "[09:30] You: hi", formatMessage(msg, "bob"))

	msg.Body = models.FileBody{Type: models.FilePDF, Name: "plan.pdf"}
	msg.Status = models.StatusUnsynced
	assert.Equal(t, "[09:30] Bob: [pdf] plan.pdf (not saved)", formatMessage(msg, "alice"))
}
