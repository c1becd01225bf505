package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/QQCPM/ChatChat/internal/models"
)

// MessageStore persists chat messages. Ids and timestamps come from the
// database.
type MessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

func (s *MessageStore) InsertMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	query := `
		INSERT INTO messages (room_id, user_id, user_name, text)
		VALUES ($1, $2, $3, $4)
		RETURNING id, room_id, user_id, user_name, text, created_at
	`
	saved, err := scanMessage(s.db.QueryRowContext(ctx, query, msg.RoomID, msg.AuthorID, msg.AuthorName, msg.Text()))
	if err != nil {
		return models.Message{}, fmt.Errorf("insert message: %w", translate(err))
	}
	return saved, nil
}

func (s *MessageStore) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	query := `
		SELECT id, room_id, user_id, user_name, text, created_at
		FROM messages
		WHERE room_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := []models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

func scanMessage(row rowScanner) (models.Message, error) {
	var (
		msg  models.Message
		text string
	)
	if err := row.Scan(&msg.ID, &msg.RoomID, &msg.AuthorID, &msg.AuthorName, &text, &msg.CreatedAt); err != nil {
		return models.Message{}, err
	}
	msg.Body = models.ParseBody(text)
	msg.CreatedAt = msg.CreatedAt.UTC()
	msg.Status = models.StatusSent
	return msg, nil
}
