package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBody(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Body
	}{
		{"plain text", "Hey! How are you?", TextBody{Text: "Hey! How are you?"}},
		{"data url image", "data:image/png;base64,AAAA", ImageBody{Ref: "data:image/png;base64,AAAA"}},
		{"remote image", "https://cdn.example.com/p.jpg", ImageBody{Ref: "https://cdn.example.com/p.jpg"}},
		{"word starting with http", "httpbin is down", TextBody{Text: "httpbin is down"}},
		{
			"pdf",
			`{"type":"pdf","name":"tickets.pdf","data":"data:application/pdf;base64,AA","size":1024}`,
			FileBody{Type: FilePDF, Name: "tickets.pdf", Data: "data:application/pdf;base64,AA", Size: 1024},
		},
		{
			"video",
			`{"type":"video","name":"beach.mp4","data":"blob","size":42}`,
			FileBody{Type: FileVideo, Name: "beach.mp4", Data: "blob", Size: 42},
		},
		{"broken file json", `{"type":"pdf",`, TextBody{Text: `{"type":"pdf",`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseBody(tt.raw))
		})
	}
}

func TestFileBodyEncodeKeepsTypePrefix(t *testing.T) {
	body := FileBody{Type: FilePDF, Name: "a.pdf", Data: "x", Size: 3}
	encoded := body.Encode()

	assert.Contains(t, encoded, `{"type":"pdf"`)
	assert.Equal(t, body, ParseBody(encoded))
}

func TestMessageJSONUsesTextColumn(t *testing.T) {
	created := time.Date(2024, 7, 22, 10, 0, 0, 0, time.UTC)
	msg := Message{
		ID:         "m1",
		RoomID:     "room-1",
		AuthorID:   "u1",
		AuthorName: "Alex",
		Body:       ImageBody{Ref: "data:image/png;base64,AAAA"},
		CreatedAt:  created,
		Status:     StatusSent,
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "data:image/png;base64,AAAA", raw["text"])
	assert.Equal(t, "image", raw["kind"])
	assert.Equal(t, "u1", raw["user_id"])

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, msg.Body, decoded.Body)
	assert.True(t, created.Equal(decoded.CreatedAt))
}

func TestMessageIsTemporary(t *testing.T) {
	assert.True(t, Message{ID: "tmp-1721642400000000000"}.IsTemporary())
	assert.False(t, Message{ID: "8f14e45f-ceea-467f-a8f6-5b4a2f7c1a10"}.IsTemporary())
}

func TestInviteRoom(t *testing.T) {
	pairedAt := time.Date(2024, 7, 22, 0, 0, 0, 0, time.UTC)
	inv := Invite{
		ID:          "inv-1",
		Code:        "COUPLE-AB12CD",
		CreatorID:   "u1",
		CreatorName: "Alex",
		Status:      InviteStatusPending,
	}

	_, ok := inv.Room()
	assert.False(t, ok, "pending invite has no room")

	inv.Status = InviteStatusPaired
	inv.PartnerID = "u2"
	inv.PartnerName = "Sam"
	inv.PairedAt = &pairedAt

	room, ok := inv.Room()
	require.True(t, ok)
	assert.Equal(t, "inv-1", room.ID)
	assert.Equal(t, [2]string{"u1", "u2"}, room.MemberIDs)
	assert.True(t, room.HasMember("u2"))
	assert.False(t, room.HasMember("u3"))
	assert.False(t, room.HasMember(""))

	id, name := room.Partner("u1")
	assert.Equal(t, "u2", id)
	assert.Equal(t, "Sam", name)
}
