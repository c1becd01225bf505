// Package pairing implements the invite registry: invite code generation,
// lookup and the one-time acceptance that turns an invite into a couple room.
package pairing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/QQCPM/ChatChat/internal/apperrors"
	"github.com/QQCPM/ChatChat/internal/models"
	"github.com/QQCPM/ChatChat/internal/storage"
)

// DefaultMaxAttempts bounds invite code generation retries on collisions.
const DefaultMaxAttempts = 3

// Registry is the sole writer of invite and room state.
type Registry struct {
	store       Store
	maxAttempts int
	newCode     func() (string, error)
	newID       func() string
	now         func() time.Time
	log         *logrus.Entry
}

// Option configures a Registry.
type Option func(*Registry)

// WithMaxAttempts overrides the number of codes tried before giving up.
func WithMaxAttempts(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithCodeGenerator replaces GenerateCode.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(r *Registry) { r.newCode = gen }
}

// WithIDGenerator replaces the uuid invite id generator.
func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) { r.newID = gen }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithLogger sets the logger entry used by the registry.
func WithLogger(log *logrus.Entry) Option {
	return func(r *Registry) { r.log = log }
}

// NewRegistry creates a Registry over store.
func NewRegistry(store Store, opts ...Option) *Registry {
	if store == nil {
		panic("pairing: Store cannot be nil for Registry")
	}
	r := &Registry{
		store:       store,
		maxAttempts: DefaultMaxAttempts,
		newCode:     GenerateCode,
		newID:       uuid.NewString,
		now:         time.Now,
		log:         logrus.WithField("component", "pairing"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateInvite creates a pending invite for creator with a fresh unique code.
func (r *Registry) CreateInvite(ctx context.Context, creator models.Account) (models.Invite, error) {
	logCtx := r.log.WithField("account_id", creator.ID)
	if creator.ID == "" {
		return models.Invite{}, apperrors.New(apperrors.CodeInvalidArgument, "creator account is required")
	}

	room, err := r.FindPairedRoom(ctx, creator.ID)
	if err != nil {
		return models.Invite{}, err
	}
	if room != nil {
		logCtx.WithField("room_id", room.ID).Warn("Refusing invite for an account that is already paired")
		return models.Invite{}, apperrors.ErrAlreadyPaired
	}

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		code, err := r.newCode()
		if err != nil {
			return models.Invite{}, apperrors.Wrap(apperrors.CodePersistenceFailure, "could not generate an invite code", err)
		}

		invite := models.Invite{
			ID:           r.newID(),
			Code:         code,
			CreatorID:    creator.ID,
			CreatorName:  creator.Name(),
			CreatorEmail: creator.Email,
			Status:       models.InviteStatusPending,
			CreatedAt:    r.now().UTC(),
		}

		err = r.store.InsertInvite(ctx, invite)
		if err == nil {
			logCtx.WithField("invite_code", code).Info("Invite created")
			return invite, nil
		}
		if errors.Is(err, storage.ErrDuplicate) {
			logCtx.WithField("invite_code", code).Warnf("Invite code already in use, retrying (attempt %d)", attempt)
			continue
		}
		logCtx.WithError(err).Error("Failed to save invite")
		return models.Invite{}, apperrors.Wrap(apperrors.CodePersistenceFailure, "could not save invite", err)
	}

	logCtx.Errorf("Failed to generate a unique invite code after %d attempts", r.maxAttempts)
	return models.Invite{}, apperrors.ErrRegistrationExhausted
}

// LookupInvite returns the pending invite for code. Paired and unknown codes
// are reported identically as INVALID_CODE.
func (r *Registry) LookupInvite(ctx context.Context, code string) (models.Invite, error) {
	code = NormalizeCode(code)
	if !ValidCode(code) {
		return models.Invite{}, apperrors.ErrInvalidCode
	}
	invites, err := r.store.ListInvitesByCode(ctx, code)
	if err != nil {
		r.log.WithError(err).WithField("invite_code", code).Error("Failed to look up invite")
		return models.Invite{}, apperrors.Wrap(apperrors.CodePersistenceFailure, "could not look up invite", err)
	}
	for _, inv := range invites {
		if !inv.Pending() {
			continue
		}
		stale, err := r.creatorPaired(ctx, inv)
		if err != nil {
			return models.Invite{}, err
		}
		if !stale {
			return inv, nil
		}
	}
	return models.Invite{}, apperrors.ErrInvalidCode
}

// AcceptInvite pairs accepter with the creator of the pending invite for code
// and returns the new room. Of several concurrent acceptances of one code at
// most one succeeds; the rest get INVALID_CODE.
func (r *Registry) AcceptInvite(ctx context.Context, code string, accepter models.Account) (models.Room, error) {
	code = NormalizeCode(code)
	logCtx := r.log.WithFields(logrus.Fields{"account_id": accepter.ID, "invite_code": code})
	if accepter.ID == "" {
		return models.Room{}, apperrors.New(apperrors.CodeInvalidArgument, "accepting account is required")
	}
	if !ValidCode(code) {
		return models.Room{}, apperrors.ErrInvalidCode
	}

	invites, err := r.store.ListInvitesByCode(ctx, code)
	if err != nil {
		logCtx.WithError(err).Error("Failed to look up invite")
		return models.Room{}, apperrors.Wrap(apperrors.CodePersistenceFailure, "could not look up invite", err)
	}

	var pending *models.Invite
	for i := range invites {
		if invites[i].CreatorID == accepter.ID {
			logCtx.Warn("Account tried to accept its own invite")
			return models.Room{}, apperrors.ErrSelfAcceptance
		}
		if invites[i].Pending() && pending == nil {
			pending = &invites[i]
		}
	}
	if pending == nil {
		logCtx.Warn("No pending invite for code")
		return models.Room{}, apperrors.ErrInvalidCode
	}
	stale, err := r.creatorPaired(ctx, *pending)
	if err != nil {
		return models.Room{}, err
	}
	if stale {
		logCtx.WithField("invite_id", pending.ID).Warn("Invite creator has paired elsewhere")
		return models.Room{}, apperrors.ErrInvalidCode
	}

	existing, err := r.FindPairedRoom(ctx, accepter.ID)
	if err != nil {
		return models.Room{}, err
	}
	if existing != nil {
		logCtx.WithField("room_id", existing.ID).Warn("Accepting account is already paired")
		return models.Room{}, apperrors.ErrAlreadyPaired
	}

	paired, err := r.store.MarkPaired(ctx, pending.ID, accepter, r.now().UTC())
	if err != nil {
		if errors.Is(err, storage.ErrConflict) || errors.Is(err, storage.ErrNotFound) {
			logCtx.Warn("Invite was accepted by someone else first")
			return models.Room{}, apperrors.ErrInvalidCode
		}
		logCtx.WithError(err).Error("Failed to mark invite paired")
		return models.Room{}, apperrors.Wrap(apperrors.CodePersistenceFailure, "could not accept invite", err)
	}

	room, ok := paired.Room()
	if !ok {
		logCtx.Error("Store returned an unpaired invite after MarkPaired")
		return models.Room{}, apperrors.New(apperrors.CodePersistenceFailure, "could not accept invite")
	}
	logCtx.WithField("room_id", room.ID).Info("Couple paired")
	return room, nil
}

// creatorPaired reports whether the invite's creator already belongs to a
// room. Such an invite is stale and reads as no pending invite.
func (r *Registry) creatorPaired(ctx context.Context, inv models.Invite) (bool, error) {
	room, err := r.FindPairedRoom(ctx, inv.CreatorID)
	if err != nil {
		return false, err
	}
	return room != nil, nil
}

// FindPairedRoom returns the account's couple room, or nil when it has none.
func (r *Registry) FindPairedRoom(ctx context.Context, accountID string) (*models.Room, error) {
	logCtx := r.log.WithField("account_id", accountID)
	invites, err := r.store.ListPairedByMember(ctx, accountID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to look up couple")
		return nil, apperrors.Wrap(apperrors.CodePersistenceFailure, "could not check pairing", err)
	}

	switch len(invites) {
	case 0:
		return nil, nil
	case 1:
		room, ok := invites[0].Room()
		if !ok {
			logCtx.WithField("invite_id", invites[0].ID).Error("Paired invite is missing its partner")
			return nil, apperrors.New(apperrors.CodePersistenceFailure, "could not check pairing")
		}
		return &room, nil
	default:
		ids := make([]string, 0, len(invites))
		for _, inv := range invites {
			ids = append(ids, inv.ID)
		}
		logCtx.WithField("room_ids", ids).Error("Data defect: account belongs to more than one couple")
		return nil, apperrors.ErrMultiplePairings
	}
}

// FindPendingInvitesCreatedBy lists the account's open invites so a client
// can resume waiting on one instead of creating another.
func (r *Registry) FindPendingInvitesCreatedBy(ctx context.Context, accountID string) ([]models.Invite, error) {
	invites, err := r.store.ListPendingByCreator(ctx, accountID)
	if err != nil {
		r.log.WithError(err).WithField("account_id", accountID).Error("Failed to list pending invites")
		return nil, apperrors.Wrap(apperrors.CodePersistenceFailure, "could not list pending invites", err)
	}
	if invites == nil {
		invites = []models.Invite{}
	}
	return invites, nil
}
