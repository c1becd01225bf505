package models

import (
	"encoding/json"
	"strings"
	"time"
)

// TempIDPrefix marks ids assigned locally before the server confirms a message.
const TempIDPrefix = "tmp-"

// MessageStatus tracks a message's delivery as seen by the local client.
type MessageStatus string

const (
	StatusSending  MessageStatus = "sending"
	StatusSent     MessageStatus = "sent"
	StatusUnsynced MessageStatus = "unsynced"
)

// Message is a chat message in a couple room.
type Message struct {
	ID         string
	RoomID     string
	AuthorID   string
	AuthorName string
	Body       Body
	CreatedAt  time.Time
	Status     MessageStatus
}

// IsTemporary reports whether the message still carries a local id.
func (m Message) IsTemporary() bool {
	return strings.HasPrefix(m.ID, TempIDPrefix)
}

// Text returns the encoded body, or "" for a message without one.
func (m Message) Text() string {
	if m.Body == nil {
		return ""
	}
	return m.Body.Encode()
}

type messageWire struct {
	ID         string        `json:"id"`
	RoomID     string        `json:"room_id"`
	AuthorID   string        `json:"user_id"`
	AuthorName string        `json:"user_name"`
	Text       string        `json:"text"`
	Kind       BodyKind      `json:"kind,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	Status     MessageStatus `json:"status,omitempty"`
}

// MarshalJSON encodes the body into the single text column.
func (m Message) MarshalJSON() ([]byte, error) {
	w := messageWire{
		ID:         m.ID,
		RoomID:     m.RoomID,
		AuthorID:   m.AuthorID,
		AuthorName: m.AuthorName,
		Text:       m.Text(),
		CreatedAt:  m.CreatedAt,
		Status:     m.Status,
	}
	if m.Body != nil {
		w.Kind = m.Body.Kind()
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the text column into a Body once.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w messageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = Message{
		ID:         w.ID,
		RoomID:     w.RoomID,
		AuthorID:   w.AuthorID,
		AuthorName: w.AuthorName,
		Body:       ParseBody(w.Text),
		CreatedAt:  w.CreatedAt,
		Status:     w.Status,
	}
	return nil
}
