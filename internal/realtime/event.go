// Package realtime defines the change notifications pushed to connected
// clients and the topics they are addressed to.
package realtime

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/QQCPM/ChatChat/internal/models"
)

// EventType names a change notification.
type EventType string

const (
	EventMessageCreated EventType = "message.created"
	EventCouplePaired   EventType = "couple.paired"
)

const (
	roomTopicPrefix    = "room:"
	accountTopicPrefix = "account:"
)

// RoomTopic addresses everyone watching a couple room.
func RoomTopic(roomID string) string { return roomTopicPrefix + roomID }

// AccountTopic addresses every connection of one account.
func AccountTopic(accountID string) string { return accountTopicPrefix + accountID }

// ValidTopic reports whether topic has a known prefix and a non-empty id.
func ValidTopic(topic string) bool {
	for _, prefix := range []string{roomTopicPrefix, accountTopicPrefix} {
		if id, ok := strings.CutPrefix(topic, prefix); ok {
			return id != ""
		}
	}
	return false
}

// Event is the envelope written to websocket clients and the broker.
type Event struct {
	Type    EventType       `json:"type"`
	Topic   string          `json:"topic"`
	Message *models.Message `json:"message,omitempty"`
	Room    *models.Room    `json:"room,omitempty"`
}

// MessageCreated builds the event for a newly persisted message.
func MessageCreated(msg models.Message) Event {
	return Event{Type: EventMessageCreated, Topic: RoomTopic(msg.RoomID), Message: &msg}
}

// CouplePaired builds the event telling accountID its invite was accepted.
func CouplePaired(accountID string, room models.Room) Event {
	return Event{Type: EventCouplePaired, Topic: AccountTopic(accountID), Room: &room}
}

// Encode marshals e for the wire.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a wire event.
func Decode(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}

// Publisher fans an event out to the subscribers of its topic.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
