package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/QQCPM/ChatChat/internal/models"
	"github.com/QQCPM/ChatChat/internal/storage"
)

const coupleColumns = `id, invite_code, user1_id, user1_email, user1_name,
	user2_id, user2_email, user2_name, status, created_at, paired_at`

// CoupleStore implements pairing.Store. A couples row is an invite until it
// is paired, and the couple record afterwards.
type CoupleStore struct {
	db *sql.DB
}

func NewCoupleStore(db *sql.DB) *CoupleStore {
	return &CoupleStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvite(row rowScanner) (models.Invite, error) {
	var (
		inv                    models.Invite
		status                 string
		partnerID, email, name sql.NullString
		pairedAt               sql.NullTime
	)
	err := row.Scan(&inv.ID, &inv.Code, &inv.CreatorID, &inv.CreatorEmail, &inv.CreatorName,
		&partnerID, &email, &name, &status, &inv.CreatedAt, &pairedAt)
	if err != nil {
		return models.Invite{}, err
	}
	inv.Status = models.InviteStatus(status)
	inv.PartnerID = partnerID.String
	inv.PartnerEmail = email.String
	inv.PartnerName = name.String
	if pairedAt.Valid {
		t := pairedAt.Time.UTC()
		inv.PairedAt = &t
	}
	inv.CreatedAt = inv.CreatedAt.UTC()
	return inv, nil
}

func (s *CoupleStore) InsertInvite(ctx context.Context, invite models.Invite) error {
	query := `
		INSERT INTO couples (id, invite_code, user1_id, user1_email, user1_name, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query, invite.ID, invite.Code, invite.CreatorID,
		invite.CreatorEmail, invite.CreatorName, string(invite.Status), invite.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert invite: %w", translate(err))
	}
	return nil
}

func (s *CoupleStore) ListInvitesByCode(ctx context.Context, code string) ([]models.Invite, error) {
	return s.list(ctx, `SELECT `+coupleColumns+` FROM couples WHERE invite_code = $1 ORDER BY created_at`, code)
}

// MarkPaired is the guarded Pending→Paired write: the UPDATE only matches a
// row that is still pending, so of two concurrent acceptances one gets no
// row back.
func (s *CoupleStore) MarkPaired(ctx context.Context, inviteID string, partner models.Account, pairedAt time.Time) (models.Invite, error) {
	query := `
		UPDATE couples
		SET status = 'paired', user2_id = $2, user2_email = $3, user2_name = $4, paired_at = $5
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + coupleColumns
	inv, err := scanInvite(s.db.QueryRowContext(ctx, query, inviteID, partner.ID, partner.Email, partner.Name(), pairedAt))
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Invite{}, fmt.Errorf("mark invite paired: %w", translate(err))
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM couples WHERE id = $1)`, inviteID).Scan(&exists); err != nil {
		return models.Invite{}, fmt.Errorf("check invite: %w", err)
	}
	if !exists {
		return models.Invite{}, storage.ErrNotFound
	}
	return models.Invite{}, storage.ErrConflict
}

func (s *CoupleStore) ListPairedByMember(ctx context.Context, accountID string) ([]models.Invite, error) {
	return s.list(ctx, `SELECT `+coupleColumns+` FROM couples
		WHERE status = 'paired' AND (user1_id = $1 OR user2_id = $1) ORDER BY paired_at`, accountID)
}

func (s *CoupleStore) ListPendingByCreator(ctx context.Context, accountID string) ([]models.Invite, error) {
	return s.list(ctx, `SELECT `+coupleColumns+` FROM couples
		WHERE status = 'pending' AND user1_id = $1 ORDER BY created_at`, accountID)
}

func (s *CoupleStore) list(ctx context.Context, query string, arg string) ([]models.Invite, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query couples: %w", err)
	}
	defer rows.Close()

	var invites []models.Invite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan couple: %w", err)
		}
		invites = append(invites, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate couples: %w", err)
	}
	return invites, nil
}
