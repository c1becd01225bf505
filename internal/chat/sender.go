package chat

import (
	"context"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"github.com/QQCPM/ChatChat/internal/apperrors"
	"github.com/QQCPM/ChatChat/internal/models"
)

// Persister saves a drafted message and returns it with the server's id and
// timestamp.
type Persister interface {
	SendMessage(ctx context.Context, draft models.Message) (models.Message, error)
}

// Sender drafts optimistic messages and persists them.
type Sender struct {
	persister Persister
	author    models.Account
	policy    RetryPolicy
	now       func() time.Time
	lastNano  int64
	log       *logrus.Entry
}

// NewSender creates a Sender posting as author.
func NewSender(persister Persister, author models.Account, policy RetryPolicy) *Sender {
	if persister == nil {
		panic("chat: Persister cannot be nil for Sender")
	}
	return &Sender{
		persister: persister,
		author:    author,
		policy:    policy,
		now:       time.Now,
		log:       logrus.WithFields(logrus.Fields{"component": "sender", "account_id": author.ID}),
	}
}

// Draft builds the temporary message shown until the server confirms it.
// Temporary ids are strictly increasing for one Sender.
func (s *Sender) Draft(roomID string, body models.Body) models.Message {
	now := s.now()
	n := now.UnixNano()
	if n <= s.lastNano {
		n = s.lastNano + 1
	}
	s.lastNano = n
	return models.Message{
		ID:         models.TempIDPrefix + strconv.FormatInt(n, 10),
		RoomID:     roomID,
		AuthorID:   s.author.ID,
		AuthorName: s.author.Name(),
		Body:       body,
		CreatedAt:  now,
		Status:     models.StatusSending,
	}
}

// Persist saves draft under the retry policy. Only storage failures and
// transport errors are retried. The returned error is always
// SEND_RECONCILIATION_FAILURE.
func (s *Sender) Persist(ctx context.Context, draft models.Message) (models.Message, error) {
	logCtx := s.log.WithFields(logrus.Fields{"room_id": draft.RoomID, "temp_id": draft.ID})
	attempt := 0
	confirmed, err := backoff.Retry(ctx, func() (models.Message, error) {
		attempt++
		msg, err := s.persister.SendMessage(ctx, draft)
		if err != nil && !transient(err) {
			return msg, backoff.Permanent(err)
		}
		if err != nil {
			logCtx.WithError(err).WithField("attempt", attempt).Debug("Send attempt failed")
		}
		return msg, err
	}, s.policy.options()...)
	if err != nil {
		logCtx.WithError(err).WithField("attempts", attempt).Warn("Message left unsynced")
		return models.Message{}, apperrors.Wrap(apperrors.CodeSendReconciliation, "message could not be saved", err)
	}
	if confirmed.Status == "" {
		confirmed.Status = models.StatusSent
	}
	return confirmed, nil
}

func transient(err error) bool {
	switch apperrors.CodeOf(err) {
	case apperrors.CodePersistenceFailure, apperrors.CodeUnknown:
		return true
	}
	return false
}
