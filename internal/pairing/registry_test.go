package pairing_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/QQCPM/ChatChat/internal/apperrors"
	"github.com/QQCPM/ChatChat/internal/models"
	"github.com/QQCPM/ChatChat/internal/pairing"
	"github.com/QQCPM/ChatChat/internal/storage"
	"github.com/QQCPM/ChatChat/internal/storage/memory"
)

var (
	alex = models.Account{ID: "u-alex", DisplayName: "Alex", Email: "alex@example.com"}
	sam  = models.Account{ID: "u-sam", DisplayName: "Sam", Email: "sam@example.com"}
	jo   = models.Account{ID: "u-jo", Email: "jo@example.com"}
)

// mockStore is a testify mock of pairing.Store.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) InsertInvite(ctx context.Context, invite models.Invite) error {
	return m.Called(ctx, invite).Error(0)
}

func (m *mockStore) ListInvitesByCode(ctx context.Context, code string) ([]models.Invite, error) {
	args := m.Called(ctx, code)
	invites, _ := args.Get(0).([]models.Invite)
	return invites, args.Error(1)
}

func (m *mockStore) MarkPaired(ctx context.Context, inviteID string, partner models.Account, pairedAt time.Time) (models.Invite, error) {
	args := m.Called(ctx, inviteID, partner, pairedAt)
	return args.Get(0).(models.Invite), args.Error(1)
}

func (m *mockStore) ListPairedByMember(ctx context.Context, accountID string) ([]models.Invite, error) {
	args := m.Called(ctx, accountID)
	invites, _ := args.Get(0).([]models.Invite)
	return invites, args.Error(1)
}

func (m *mockStore) ListPendingByCreator(ctx context.Context, accountID string) ([]models.Invite, error) {
	args := m.Called(ctx, accountID)
	invites, _ := args.Get(0).([]models.Invite)
	return invites, args.Error(1)
}

func TestCreateThenAccept(t *testing.T) {
	ctx := context.Background()
	reg := pairing.NewRegistry(memory.NewCoupleStore())

	invite, err := reg.CreateInvite(ctx, alex)
	require.NoError(t, err)
	assert.Regexp(t, `^COUPLE-[A-Z0-9]{6}$`, invite.Code)
	assert.Equal(t, models.InviteStatusPending, invite.Status)
	assert.Equal(t, "Alex", invite.CreatorName)

	looked, err := reg.LookupInvite(ctx, invite.Code)
	require.NoError(t, err)
	assert.Equal(t, invite.ID, looked.ID)

	room, err := reg.AcceptInvite(ctx, invite.Code, sam)
	require.NoError(t, err)
	assert.Equal(t, invite.ID, room.ID)
	assert.ElementsMatch(t, []string{alex.ID, sam.ID}, room.MemberIDs[:])
	assert.False(t, room.PairedAt.IsZero())

	// The invite is now paired: lookups fail and both members see the room.
	_, err = reg.LookupInvite(ctx, invite.Code)
	require.ErrorIs(t, err, apperrors.ErrInvalidCode)

	for _, acct := range []models.Account{alex, sam} {
		found, err := reg.FindPairedRoom(ctx, acct.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, room.ID, found.ID)
	}

	pending, err := reg.FindPendingInvitesCreatedBy(ctx, alex.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAcceptNormalizesCode(t *testing.T) {
	ctx := context.Background()
	reg := pairing.NewRegistry(memory.NewCoupleStore(),
		pairing.WithCodeGenerator(func() (string, error) { return "COUPLE-AB12CD", nil }))

	_, err := reg.CreateInvite(ctx, alex)
	require.NoError(t, err)

	_, err = reg.AcceptInvite(ctx, "  couple-ab12cd ", sam)
	require.NoError(t, err)
}

func TestSecondAcceptFailsWithInvalidCode(t *testing.T) {
	ctx := context.Background()
	reg := pairing.NewRegistry(memory.NewCoupleStore())

	invite, err := reg.CreateInvite(ctx, alex)
	require.NoError(t, err)

	_, err = reg.AcceptInvite(ctx, invite.Code, sam)
	require.NoError(t, err)

	_, err = reg.AcceptInvite(ctx, invite.Code, jo)
	require.ErrorIs(t, err, apperrors.ErrInvalidCode)
}

func TestConcurrentAcceptAtMostOneWins(t *testing.T) {
	ctx := context.Background()
	reg := pairing.NewRegistry(memory.NewCoupleStore())

	invite, err := reg.CreateInvite(ctx, alex)
	require.NoError(t, err)

	const accepters = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		failures []error
	)
	for i := 0; i < accepters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acct := models.Account{ID: "u-" + string(rune('a'+i))}
			_, err := reg.AcceptInvite(ctx, invite.Code, acct)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			failures = append(failures, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	require.Len(t, failures, accepters-1)
	for _, err := range failures {
		assert.ErrorIs(t, err, apperrors.ErrInvalidCode)
	}
}

func TestSelfAcceptanceRegardlessOfStatus(t *testing.T) {
	ctx := context.Background()
	reg := pairing.NewRegistry(memory.NewCoupleStore())

	invite, err := reg.CreateInvite(ctx, alex)
	require.NoError(t, err)

	_, err = reg.AcceptInvite(ctx, invite.Code, alex)
	require.ErrorIs(t, err, apperrors.ErrSelfAcceptance)

	_, err = reg.AcceptInvite(ctx, invite.Code, sam)
	require.NoError(t, err)

	_, err = reg.AcceptInvite(ctx, invite.Code, alex)
	require.ErrorIs(t, err, apperrors.ErrSelfAcceptance)
}

func TestAcceptUnknownOrMalformedCode(t *testing.T) {
	ctx := context.Background()
	reg := pairing.NewRegistry(memory.NewCoupleStore())

	for _, code := range []string{"COUPLE-ZZZZZZ", "COUPLE-12", "hello", ""} {
		_, err := reg.AcceptInvite(ctx, code, sam)
		assert.ErrorIs(t, err, apperrors.ErrInvalidCode, code)
	}
}

func TestCreateInviteRefusesPairedAccount(t *testing.T) {
	ctx := context.Background()
	reg := pairing.NewRegistry(memory.NewCoupleStore())

	invite, err := reg.CreateInvite(ctx, alex)
	require.NoError(t, err)
	_, err = reg.AcceptInvite(ctx, invite.Code, sam)
	require.NoError(t, err)

	_, err = reg.CreateInvite(ctx, sam)
	require.ErrorIs(t, err, apperrors.ErrAlreadyPaired)

	other, err := reg.CreateInvite(ctx, jo)
	require.NoError(t, err)
	_, err = reg.AcceptInvite(ctx, other.Code, alex)
	require.ErrorIs(t, err, apperrors.ErrAlreadyPaired)
}

func TestInvitesOfPairedCreatorGoStale(t *testing.T) {
	ctx := context.Background()
	reg := pairing.NewRegistry(memory.NewCoupleStore())

	stale, err := reg.CreateInvite(ctx, alex)
	require.NoError(t, err)
	samInvite, err := reg.CreateInvite(ctx, sam)
	require.NoError(t, err)

	_, err = reg.AcceptInvite(ctx, samInvite.Code, alex)
	require.NoError(t, err)

	_, err = reg.LookupInvite(ctx, stale.Code)
	require.ErrorIs(t, err, apperrors.ErrInvalidCode)
	_, err = reg.AcceptInvite(ctx, stale.Code, jo)
	require.ErrorIs(t, err, apperrors.ErrInvalidCode)

	room, err := reg.FindPairedRoom(ctx, alex.ID)
	require.NoError(t, err)
	require.NotNil(t, room)
	assert.Equal(t, samInvite.ID, room.ID)

	joRoom, err := reg.FindPairedRoom(ctx, jo.ID)
	require.NoError(t, err)
	assert.Nil(t, joRoom)
}

func TestCreateInviteNeverDuplicatesPendingCodes(t *testing.T) {
	ctx := context.Background()
	codes := []string{"COUPLE-AAAAAA", "COUPLE-AAAAAA", "COUPLE-BBBBBB"}
	next := 0
	reg := pairing.NewRegistry(memory.NewCoupleStore(), pairing.WithCodeGenerator(func() (string, error) {
		code := codes[next%len(codes)]
		next++
		return code, nil
	}))

	first, err := reg.CreateInvite(ctx, alex)
	require.NoError(t, err)
	second, err := reg.CreateInvite(ctx, sam)
	require.NoError(t, err)

	assert.Equal(t, "COUPLE-AAAAAA", first.Code)
	assert.Equal(t, "COUPLE-BBBBBB", second.Code)
	assert.Equal(t, 3, next)
}

func TestCreateInviteExhaustsRetries(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	attempts := 0
	reg := pairing.NewRegistry(store, pairing.WithCodeGenerator(func() (string, error) {
		attempts++
		return "COUPLE-AAAAAA", nil
	}))

	store.On("ListPairedByMember", ctx, alex.ID).Return(nil, nil).Once()
	store.On("InsertInvite", ctx, mock.AnythingOfType("models.Invite")).Return(storage.ErrDuplicate).Times(pairing.DefaultMaxAttempts)

	_, err := reg.CreateInvite(ctx, alex)
	require.ErrorIs(t, err, apperrors.ErrRegistrationExhausted)
	assert.Equal(t, pairing.DefaultMaxAttempts, attempts)
	store.AssertExpectations(t)
}

func TestCreateInviteSurfacesPersistenceFailure(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	reg := pairing.NewRegistry(store)
	dbErr := errors.New("pq: relation \"couples\" does not exist")

	store.On("ListPairedByMember", ctx, alex.ID).Return(nil, nil).Once()
	store.On("InsertInvite", ctx, mock.AnythingOfType("models.Invite")).Return(dbErr).Once()

	_, err := reg.CreateInvite(ctx, alex)
	require.ErrorIs(t, err, apperrors.ErrPersistenceFailure)
	assert.ErrorIs(t, err, dbErr)
	store.AssertExpectations(t)
}

func TestAcceptLosingGuardedWriteIsInvalidCode(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	reg := pairing.NewRegistry(store)
	pending := models.Invite{ID: "inv-1", Code: "COUPLE-AB12CD", CreatorID: alex.ID, Status: models.InviteStatusPending}

	store.On("ListInvitesByCode", ctx, "COUPLE-AB12CD").Return([]models.Invite{pending}, nil).Once()
	store.On("ListPairedByMember", ctx, alex.ID).Return(nil, nil).Once()
	store.On("ListPairedByMember", ctx, sam.ID).Return(nil, nil).Once()
	store.On("MarkPaired", ctx, "inv-1", sam, mock.AnythingOfType("time.Time")).
		Return(models.Invite{}, storage.ErrConflict).Once()

	_, err := reg.AcceptInvite(ctx, "COUPLE-AB12CD", sam)
	require.ErrorIs(t, err, apperrors.ErrInvalidCode)
	store.AssertExpectations(t)
}

func TestFindPairedRoomMultipleIsDefect(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	reg := pairing.NewRegistry(store)
	now := time.Now()
	paired := func(id, partner string) models.Invite {
		return models.Invite{ID: id, CreatorID: alex.ID, PartnerID: partner, Status: models.InviteStatusPaired, PairedAt: &now}
	}

	store.On("ListPairedByMember", ctx, alex.ID).
		Return([]models.Invite{paired("a", sam.ID), paired("b", jo.ID)}, nil).Once()

	room, err := reg.FindPairedRoom(ctx, alex.ID)
	require.ErrorIs(t, err, apperrors.ErrMultiplePairings)
	assert.Nil(t, room)
	assert.False(t, apperrors.CodeOf(err).Retryable())
}

func TestFindPairedRoomNone(t *testing.T) {
	reg := pairing.NewRegistry(memory.NewCoupleStore())
	room, err := reg.FindPairedRoom(context.Background(), alex.ID)
	require.NoError(t, err)
	assert.Nil(t, room)
}

func TestFindPendingInvitesResumesWaiting(t *testing.T) {
	ctx := context.Background()
	reg := pairing.NewRegistry(memory.NewCoupleStore())

	invite, err := reg.CreateInvite(ctx, alex)
	require.NoError(t, err)

	pending, err := reg.FindPendingInvitesCreatedBy(ctx, alex.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, invite.Code, pending[0].Code)

	none, err := reg.FindPendingInvitesCreatedBy(ctx, sam.ID)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
