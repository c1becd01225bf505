package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/QQCPM/ChatChat/internal/apperrors"
	"github.com/QQCPM/ChatChat/internal/models"
)

// ErrStopped is returned by calls made after Run has returned.
var ErrStopped = errors.New("chat: conversation stopped")

type sendResult struct {
	tempID    string
	draft     models.Message
	confirmed models.Message
	err       error
}

// Conversation is the event loop of one room. Run owns the MessageStore;
// every other method hands work to it and waits.
type Conversation struct {
	store  *MessageStore
	bridge *Bridge
	sender *Sender

	cmds    chan func(ctx context.Context)
	results chan sendResult
	ready   chan struct{}
	stopped chan struct{}
	origin  LoadOrigin

	inflight sync.WaitGroup

	onChange     func([]models.Message)
	onSendFailed func(models.Message, error)

	log *logrus.Entry
}

// ConversationOption configures a Conversation.
type ConversationOption func(*Conversation)

// WithChangeHook is called from the loop with a copy of the list after
// every change.
func WithChangeHook(fn func([]models.Message)) ConversationOption {
	return func(c *Conversation) { c.onChange = fn }
}

// WithSendFailedHook is called from the loop when a message is left unsynced.
func WithSendFailedHook(fn func(models.Message, error)) ConversationOption {
	return func(c *Conversation) { c.onSendFailed = fn }
}

// NewConversation wires a room's store, bridge and sender. A nil bridge runs
// without realtime; a nil sender makes the room read-only.
func NewConversation(store *MessageStore, bridge *Bridge, sender *Sender, opts ...ConversationOption) *Conversation {
	if store == nil {
		panic("chat: MessageStore cannot be nil for Conversation")
	}
	c := &Conversation{
		store:   store,
		bridge:  bridge,
		sender:  sender,
		cmds:    make(chan func(context.Context)),
		results: make(chan sendResult),
		ready:   make(chan struct{}),
		stopped: make(chan struct{}),
		log:     logrus.WithFields(logrus.Fields{"component": "conversation", "room_id": store.RoomID()}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ready is closed once history has loaded and the loop is serving.
func (c *Conversation) Ready() <-chan struct{} { return c.ready }

// Origin reports which tier history came from. Valid after Ready.
func (c *Conversation) Origin() LoadOrigin { return c.origin }

// Run loads history, attaches the bridge and serves until ctx is done.
func (c *Conversation) Run(ctx context.Context) error {
	defer close(c.stopped)
	defer c.inflight.Wait()

	_, origin := c.store.LoadHistory(ctx)
	c.origin = origin
	c.log.WithFields(logrus.Fields{"origin": origin, "count": c.store.Len()}).Info("History loaded")

	var deliveries <-chan Delivery
	if c.bridge != nil {
		if err := c.bridge.Attach(ctx, c.store.RoomID()); err != nil {
			c.log.WithError(err).Warn("Running without realtime updates")
		}
		defer c.bridge.Detach()
		deliveries = c.bridge.Deliveries()
	}

	close(c.ready)
	c.changed()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-c.cmds:
			cmd(ctx)
		case d := <-deliveries:
			c.deliver(d)
		case r := <-c.results:
			c.reconcile(r)
		}
	}
}

// Send shows body immediately as a temporary message and persists it in the
// background. The returned message carries the temporary id. Persistence
// failures never reach the caller; they surface through the send-failed
// hook and the message's unsynced status.
func (c *Conversation) Send(ctx context.Context, body models.Body) (models.Message, error) {
	if body == nil {
		return models.Message{}, apperrors.New(apperrors.CodeInvalidArgument, "message body is required")
	}
	if c.sender == nil {
		return models.Message{}, apperrors.New(apperrors.CodeForbidden, "conversation is read-only")
	}
	var draft models.Message
	err := c.do(ctx, func(runCtx context.Context) {
		draft = c.sender.Draft(c.store.RoomID(), body)
		c.store.Append(draft)
		c.changed()
		c.inflight.Add(1)
		go c.persist(runCtx, draft)
	})
	return draft, err
}

// Messages returns a snapshot of the ordered list.
func (c *Conversation) Messages(ctx context.Context) ([]models.Message, error) {
	var msgs []models.Message
	err := c.do(ctx, func(context.Context) { msgs = c.store.Messages() })
	return msgs, err
}

func (c *Conversation) do(ctx context.Context, fn func(context.Context)) error {
	finished := make(chan struct{})
	wrapped := func(runCtx context.Context) {
		defer close(finished)
		fn(runCtx)
	}
	select {
	case c.cmds <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrStopped
	}
	<-finished
	return nil
}

func (c *Conversation) persist(ctx context.Context, draft models.Message) {
	defer c.inflight.Done()
	confirmed, err := c.sender.Persist(ctx, draft)
	select {
	case c.results <- sendResult{tempID: draft.ID, draft: draft, confirmed: confirmed, err: err}:
	case <-ctx.Done():
	}
}

func (c *Conversation) reconcile(r sendResult) {
	if r.err != nil {
		if c.store.MarkUnsynced(r.tempID) {
			c.changed()
		}
		if c.onSendFailed != nil {
			r.draft.Status = models.StatusUnsynced
			c.onSendFailed(r.draft, r.err)
		}
		return
	}
	if c.store.Replace(r.tempID, r.confirmed) {
		c.changed()
	}
}

func (c *Conversation) deliver(d Delivery) {
	if d.RoomID != c.store.RoomID() || d.RoomID != c.bridge.ActiveRoom() {
		c.log.WithField("delivery_room_id", d.RoomID).Debug("Dropping delivery for a detached room")
		return
	}
	if c.store.Append(d.Message) {
		c.changed()
	}
}

func (c *Conversation) changed() {
	if c.onChange != nil {
		c.onChange(c.store.Messages())
	}
}
