package pairing

import (
	"context"
	"time"

	"github.com/QQCPM/ChatChat/internal/models"
)

// Store persists invites. Implementations report failures with the
// sentinels in the storage package.
type Store interface {
	// InsertInvite saves a new pending invite. A code already used by another
	// pending invite yields storage.ErrDuplicate.
	InsertInvite(ctx context.Context, invite models.Invite) error

	// ListInvitesByCode returns every invite with the code, in any status.
	ListInvitesByCode(ctx context.Context, code string) ([]models.Invite, error)

	// MarkPaired moves a pending invite to paired in a single guarded write.
	// If the invite is no longer pending it returns storage.ErrConflict and
	// changes nothing; an unknown id yields storage.ErrNotFound.
	MarkPaired(ctx context.Context, inviteID string, partner models.Account, pairedAt time.Time) (models.Invite, error)

	// ListPairedByMember returns paired invites where the account is either member.
	ListPairedByMember(ctx context.Context, accountID string) ([]models.Invite, error)

	// ListPendingByCreator returns the account's pending invites, oldest first.
	ListPendingByCreator(ctx context.Context, accountID string) ([]models.Invite, error)
}
