// Package session drives a signed-in account from "no couple" to "paired":
// it resumes a pending invite, creates one, or joins a partner's.
package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/QQCPM/ChatChat/internal/apperrors"
	"github.com/QQCPM/ChatChat/internal/models"
)

// Registry is the invite registry as seen by a session. Both the in-process
// pairing.Registry and the HTTP client satisfy it.
type Registry interface {
	CreateInvite(ctx context.Context, creator models.Account) (models.Invite, error)
	LookupInvite(ctx context.Context, code string) (models.Invite, error)
	AcceptInvite(ctx context.Context, code string, accepter models.Account) (models.Room, error)
	FindPairedRoom(ctx context.Context, accountID string) (*models.Room, error)
	FindPendingInvitesCreatedBy(ctx context.Context, accountID string) ([]models.Invite, error)
}

// TransitionFunc observes state changes.
type TransitionFunc func(from, to State)

// Controller is the pairing state machine for one signed-in account.
//
// A Controller is not safe for concurrent use; drive it from one goroutine.
type Controller struct {
	registry Registry
	state    State
	account  models.Account
	invite   *models.Invite
	room     *models.Room
	lastErr  error
	onChange TransitionFunc
	log      *logrus.Entry
}

// NewController creates a Controller in StateUnauthenticated.
func NewController(registry Registry, onChange TransitionFunc) *Controller {
	if registry == nil {
		panic("session: Registry cannot be nil for Controller")
	}
	return &Controller{
		registry: registry,
		state:    StateUnauthenticated,
		onChange: onChange,
		log:      logrus.WithField("component", "session"),
	}
}

func (c *Controller) State() State            { return c.state }
func (c *Controller) Account() models.Account { return c.account }
func (c *Controller) Err() error              { return c.lastErr }

// Invite returns the invite being waited on, if any.
func (c *Controller) Invite() (models.Invite, bool) {
	if c.invite == nil {
		return models.Invite{}, false
	}
	return *c.invite, true
}

// Room returns the couple room once paired.
func (c *Controller) Room() (models.Room, bool) {
	if c.room == nil {
		return models.Room{}, false
	}
	return *c.room, true
}

// SignIn starts a session for account and checks whether it is already
// paired or waiting on an invite it created earlier.
func (c *Controller) SignIn(ctx context.Context, account models.Account) error {
	if c.state != StateUnauthenticated {
		return c.invalid("sign in")
	}
	if account.ID == "" {
		return apperrors.New(apperrors.CodeInvalidArgument, "account id is required")
	}
	c.account = account
	c.log = c.log.WithField("account_id", account.ID)
	c.transition(StateCheckingPairing)
	return c.check(ctx)
}

// Refresh re-runs the pairing check. It is how a Waiting session notices the
// partner accepted when no realtime notification arrived, and how a failed
// check is retried.
func (c *Controller) Refresh(ctx context.Context) error {
	switch c.state {
	case StateCheckingPairing, StateWaiting:
	default:
		return c.invalid("refresh")
	}
	c.transition(StateCheckingPairing)
	return c.check(ctx)
}

func (c *Controller) check(ctx context.Context) error {
	room, err := c.registry.FindPairedRoom(ctx, c.account.ID)
	if err != nil {
		return c.fail("check pairing", err)
	}
	if room != nil {
		c.room = room
		c.invite = nil
		c.lastErr = nil
		c.transition(StatePaired)
		return nil
	}

	pending, err := c.registry.FindPendingInvitesCreatedBy(ctx, c.account.ID)
	if err != nil {
		return c.fail("check pending invites", err)
	}
	c.lastErr = nil
	if len(pending) > 0 {
		inv := pending[0]
		c.invite = &inv
		c.transition(StateWaiting)
		return nil
	}
	c.invite = nil
	c.transition(StateChoosing)
	return nil
}

// BeginCreate records the intent to create an invite.
func (c *Controller) BeginCreate() error {
	if c.state != StateChoosing {
		return c.invalid("begin create")
	}
	c.lastErr = nil
	c.transition(StateCreating)
	return nil
}

// BeginJoin records the intent to join a partner's invite.
func (c *Controller) BeginJoin() error {
	if c.state != StateChoosing {
		return c.invalid("begin join")
	}
	c.lastErr = nil
	c.transition(StateJoining)
	return nil
}

// Back returns from Creating or Joining to Choosing.
func (c *Controller) Back() error {
	if c.state != StateCreating && c.state != StateJoining {
		return c.invalid("go back")
	}
	c.lastErr = nil
	c.transition(StateChoosing)
	return nil
}

// CreateInvite creates an invite and moves to Waiting. On failure the
// session stays in Creating so the user can retry.
func (c *Controller) CreateInvite(ctx context.Context) error {
	if c.state != StateCreating {
		return c.invalid("create invite")
	}
	inv, err := c.registry.CreateInvite(ctx, c.account)
	if err != nil {
		return c.fail("create invite", err)
	}
	c.invite = &inv
	c.lastErr = nil
	c.transition(StateWaiting)
	return nil
}

// SubmitCode joins the partner's invite. On failure the session stays in
// Joining so the user can fix the code and retry.
func (c *Controller) SubmitCode(ctx context.Context, code string) error {
	if c.state != StateJoining {
		return c.invalid("submit code")
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return c.fail("submit code", apperrors.New(apperrors.CodeInvalidArgument, "please enter an invite code"))
	}

	if _, err := c.registry.LookupInvite(ctx, code); err != nil {
		return c.fail("look up invite", err)
	}
	room, err := c.registry.AcceptInvite(ctx, code, c.account)
	if err != nil {
		return c.fail("accept invite", err)
	}
	c.room = &room
	c.lastErr = nil
	c.transition(StatePaired)
	return nil
}

// ObservePaired applies a pairing notification. It moves a Waiting session
// to Paired when room is the waited-on invite's room; anything else is
// ignored and reported as false.
func (c *Controller) ObservePaired(room models.Room) bool {
	if c.state != StateWaiting || c.invite == nil {
		return false
	}
	if room.ID != c.invite.ID || !room.HasMember(c.account.ID) {
		c.log.WithField("room_id", room.ID).Debug("Ignoring pairing notification for another invite")
		return false
	}
	c.room = &room
	c.invite = nil
	c.lastErr = nil
	c.transition(StatePaired)
	return true
}

// SignOut ends the session from any state.
func (c *Controller) SignOut() {
	c.account = models.Account{}
	c.invite = nil
	c.room = nil
	c.lastErr = nil
	c.log = logrus.WithField("component", "session")
	c.transition(StateUnauthenticated)
}

func (c *Controller) transition(to State) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	c.log.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).Debug("Session transition")
	if c.onChange != nil {
		c.onChange(from, to)
	}
}

func (c *Controller) fail(op string, err error) error {
	c.lastErr = err
	c.log.WithError(err).WithField("state", c.state.String()).Warnf("Failed to %s", op)
	return err
}

func (c *Controller) invalid(op string) error {
	return apperrors.New(apperrors.CodeInvalidTransition, fmt.Sprintf("cannot %s while %s", op, c.state))
}
