package models

import "time"

// InviteStatus is the lifecycle status of a couple invite. Paired is terminal.
type InviteStatus string

const (
	InviteStatusPending InviteStatus = "pending"
	InviteStatusPaired  InviteStatus = "paired"
)

// Invite is a pairing offer. Once paired it doubles as the couple record and
// its ID becomes the room ID.
type Invite struct {
	ID           string       `json:"id"`
	Code         string       `json:"invite_code"`
	CreatorID    string       `json:"user1_id"`
	CreatorName  string       `json:"user1_name"`
	CreatorEmail string       `json:"user1_email"`
	Status       InviteStatus `json:"status"`
	PartnerID    string       `json:"user2_id,omitempty"`
	PartnerName  string       `json:"user2_name,omitempty"`
	PartnerEmail string       `json:"user2_email,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	PairedAt     *time.Time   `json:"paired_at,omitempty"`
}

// Pending reports whether the invite can still be accepted.
func (i Invite) Pending() bool {
	return i.Status == InviteStatusPending
}

// Room returns the couple room for a paired invite.
func (i Invite) Room() (Room, bool) {
	if i.Status != InviteStatusPaired || i.PartnerID == "" {
		return Room{}, false
	}
	room := Room{
		ID:          i.ID,
		MemberIDs:   [2]string{i.CreatorID, i.PartnerID},
		MemberNames: [2]string{i.CreatorName, i.PartnerName},
	}
	if i.PairedAt != nil {
		room.PairedAt = *i.PairedAt
	}
	return room, true
}

// Room is the two-member chat space created when an invite is accepted.
// Membership never changes after pairing.
type Room struct {
	ID          string    `json:"id"`
	MemberIDs   [2]string `json:"member_ids"` // Always 2 for a couple
	MemberNames [2]string `json:"member_names"`
	PairedAt    time.Time `json:"paired_at"`
}

// HasMember reports whether accountID is one of the two members.
func (r Room) HasMember(accountID string) bool {
	return accountID != "" && (r.MemberIDs[0] == accountID || r.MemberIDs[1] == accountID)
}

// Partner returns the other member's id and name, or empty strings when
// accountID is not a member.
func (r Room) Partner(accountID string) (string, string) {
	switch accountID {
	case r.MemberIDs[0]:
		return r.MemberIDs[1], r.MemberNames[1]
	case r.MemberIDs[1]:
		return r.MemberIDs[0], r.MemberNames[0]
	}
	return "", ""
}
