package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/QQCPM/ChatChat/internal/chat"
	"github.com/QQCPM/ChatChat/internal/models"
)

// ChatOptions holds flags for the chat command.
type ChatOptions struct {
	*RootOptions
	Offline   bool
	Retries   uint
	Reconnect uint
	Settle    time.Duration
}

// NewChatCommand creates the chat command.
func NewChatCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChatOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in your room",
		Long: `Chat in your room. Each line you type is sent as a message; your
partner's messages appear as they arrive. Type /quit or press Ctrl-D to leave.

Messages show up immediately and are saved in the background. A message the
server could not save is marked "(not saved)".

With --offline nothing leaves this device: messages are kept in the local
cache only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(opts, cmd)
		},
	}
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "keep messages on this device only")
	cmd.Flags().UintVar(&opts.Retries, "retries", 0, "extra attempts for a message that fails to save")
	cmd.Flags().UintVar(&opts.Reconnect, "reconnect", 0, "attempts to re-open a dropped realtime connection")
	cmd.Flags().DurationVar(&opts.Settle, "settle", 10*time.Second, "how long to wait for pending sends on exit")
	return cmd
}

// localPersister confirms messages on the device for offline rooms.
type localPersister struct{}

func (localPersister) SendMessage(_ context.Context, draft models.Message) (models.Message, error) {
	draft.ID = uuid.NewString()
	draft.CreatedAt = time.Now().UTC()
	draft.Status = models.StatusSent
	return draft, nil
}

// transcript prints each confirmed or received message once.
type transcript struct {
	mu      sync.Mutex
	w       io.Writer
	viewer  string
	printed map[string]bool
}

func (t *transcript) update(msgs []models.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range msgs {
		if m.IsTemporary() || t.printed[m.ID] {
			continue
		}
		t.printed[m.ID] = true
		fmt.Fprintln(t.w, formatMessage(m, t.viewer))
	}
}

func (t *transcript) failed(m models.Message, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "%s: %v\n", formatMessage(m, t.viewer), err)
}

func runChat(opts *ChatOptions, cmd *cobra.Command) error {
	rc, err := openRoom(cmd.Context(), opts.RootOptions, opts.Offline)
	if err != nil {
		return err
	}
	defer rc.Close()

	out := &transcript{w: cmd.OutOrStdout(), viewer: rc.account.ID, printed: make(map[string]bool)}
	retry := chat.RetryPolicy{MaxTries: opts.Retries + 1, InitialInterval: 500 * time.Millisecond, MaxInterval: 5 * time.Second}

	var (
		bridge *chat.Bridge
		sender *chat.Sender
	)
	if rc.client != nil {
		bridge = chat.NewBridge(rc.client, chat.ReconnectPolicy{
			MaxAttempts:     opts.Reconnect,
			InitialInterval: time.Second,
			MaxInterval:     30 * time.Second,
		})
		sender = chat.NewSender(rc.client, rc.account, retry)
	} else {
		sender = chat.NewSender(localPersister{}, rc.account, retry)
	}
	conv := chat.NewConversation(rc.store(), bridge, sender,
		chat.WithChangeHook(out.update),
		chat.WithSendFailedHook(out.failed),
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- conv.Run(ctx) }()

	select {
	case <-conv.Ready():
	case err := <-runErr:
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if line == "/quit" {
				break loop
			}
			if _, err := conv.Send(ctx, models.ParseBody(line)); err != nil {
				return err
			}
		}
	}

	settle(ctx, conv, opts.Settle)
	cancel()
	<-runErr
	return nil
}

// settle waits until no message is still sending, or for at most d.
func settle(ctx context.Context, conv *chat.Conversation, d time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		msgs, err := conv.Messages(ctx)
		if err != nil {
			return
		}
		pending := false
		for _, m := range msgs {
			if m.Status == models.StatusSending {
				pending = true
				break
			}
		}
		if !pending {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
