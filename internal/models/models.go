package models

import "time"

// Media type tags for relayed content.
const (
	MediaText     = "text"
	MediaPhoto    = "photo"
	MediaVideo    = "video"
	MediaDocument = "document"
	MediaVoice    = "voice"
	MediaAudio    = "audio"
	MediaSticker  = "sticker"
	MediaOther    = "other"
)

// Block/unblock action tags for the in-memory moderation log.
const (
	ActionBlock   = "block"
	ActionUnblock = "unblock"
)

// DateLayout is the calendar-day format used for joined_date and
// per-day statistics.
const DateLayout = "2006-01-02"

// Profile represents a user stored in the 'users' table.
// Created on first contact, never deleted.
type Profile struct {
	ID         int64     `db:"id" json:"id"`
	Username   string    `db:"username" json:"username"`
	FirstName  string    `db:"first_name" json:"first_name"`
	LastName   string    `db:"last_name" json:"last_name"`
	FirstSeen  time.Time `db:"first_seen" json:"first_seen"`
	LastSeen   time.Time `db:"last_seen" json:"last_seen"`
	JoinedDate string    `db:"joined_date" json:"joined_date"` // calendar day of first_seen
}

// BlockRecord represents a blocked user stored in the 'blocked_users'
// table. Presence of a record is the sole truth of "is blocked".
type BlockRecord struct {
	UserID    int64     `db:"user_id" json:"user_id"`
	Username  string    `db:"username" json:"username"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	BlockedAt time.Time `db:"blocked_at" json:"blocked_at"`
	BlockedBy int64     `db:"blocked_by" json:"blocked_by"`
	Reason    string    `db:"reason" json:"reason"`
}

// BlockAction is one entry of the in-memory block/unblock log used for
// same-day statistics. Not persisted; lost on restart.
type BlockAction struct {
	UserID    int64
	Action    string // ActionBlock or ActionUnblock
	AdminID   int64
	Timestamp time.Time
}

// Submission represents a relayed anonymous message stored in the
// 'submissions' table.
type Submission struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Username  string    `db:"username" json:"username"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Content   string    `db:"content" json:"content"`
	MediaType string    `db:"media_type" json:"media_type"`
	Day       string    `db:"day" json:"-"` // calendar day of Timestamp
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	MessageID int       `db:"message_id" json:"message_id"`
	ChatID    int64     `db:"chat_id" json:"chat_id"`
}

// DisplayName joins the non-empty name parts, falling back to a
// placeholder used across operator-facing texts.
func DisplayName(firstName, lastName string) string {
	name := firstName
	if lastName != "" {
		if name != "" {
			name += " "
		}
		name += lastName
	}
	if name == "" {
		return "Без имени"
	}
	return name
}
