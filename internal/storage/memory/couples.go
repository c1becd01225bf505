package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/QQCPM/ChatChat/internal/models"
	"github.com/QQCPM/ChatChat/internal/storage"
)

// CoupleStore keeps invites in memory. The write lock makes MarkPaired's
// status check and update a single step.
type CoupleStore struct {
	mu          sync.RWMutex
	invites     map[string]*models.Invite // inviteID -> invite
	codeIndex   map[string][]string       // invite code -> []inviteID
	memberIndex map[string][]string       // accountID -> []inviteID (created or joined)
}

// NewCoupleStore creates an empty CoupleStore.
func NewCoupleStore() *CoupleStore {
	return &CoupleStore{
		invites:     make(map[string]*models.Invite),
		codeIndex:   make(map[string][]string),
		memberIndex: make(map[string][]string),
	}
}

func (s *CoupleStore) InsertInvite(_ context.Context, invite models.Invite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invites[invite.ID]; ok {
		return storage.ErrDuplicate
	}
	// Codes only have to be unique among pending invites.
	for _, id := range s.codeIndex[invite.Code] {
		if s.invites[id].Pending() {
			return storage.ErrDuplicate
		}
	}

	stored := invite
	s.invites[invite.ID] = &stored
	s.codeIndex[invite.Code] = append(s.codeIndex[invite.Code], invite.ID)
	s.memberIndex[invite.CreatorID] = append(s.memberIndex[invite.CreatorID], invite.ID)
	return nil
}

func (s *CoupleStore) ListInvitesByCode(_ context.Context, code string) ([]models.Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Invite
	for _, id := range s.codeIndex[code] {
		result = append(result, *s.invites[id])
	}
	return result, nil
}

func (s *CoupleStore) MarkPaired(_ context.Context, inviteID string, partner models.Account, pairedAt time.Time) (models.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	invite, ok := s.invites[inviteID]
	if !ok {
		return models.Invite{}, storage.ErrNotFound
	}
	if !invite.Pending() {
		return models.Invite{}, storage.ErrConflict
	}

	at := pairedAt
	invite.Status = models.InviteStatusPaired
	invite.PartnerID = partner.ID
	invite.PartnerName = partner.Name()
	invite.PartnerEmail = partner.Email
	invite.PairedAt = &at
	s.memberIndex[partner.ID] = append(s.memberIndex[partner.ID], inviteID)
	return *invite, nil
}

func (s *CoupleStore) ListPairedByMember(_ context.Context, accountID string) ([]models.Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Invite
	for _, id := range s.memberIndex[accountID] {
		if inv := s.invites[id]; inv.Status == models.InviteStatusPaired {
			result = append(result, *inv)
		}
	}
	return result, nil
}

func (s *CoupleStore) ListPendingByCreator(_ context.Context, accountID string) ([]models.Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Invite
	for _, id := range s.memberIndex[accountID] {
		if inv := s.invites[id]; inv.Pending() && inv.CreatorID == accountID {
			result = append(result, *inv)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
