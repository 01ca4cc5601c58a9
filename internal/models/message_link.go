package models

import "time"

// MessageLink ties one inbound message to the copy the bot produced in the
// opposite chat. Rows are append-only: a relay writes one row per outbound
// send and nothing ever updates or deletes them.
type MessageLink struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"index"`

	BotID int64 `gorm:"not null;index:idx_bot_resend;index:idx_bot_message"`
	// UserID is the support agent the relay acted for; nil for automated
	// sends (user->master forwards, edit notices).
	UserID     *int64 `gorm:"index"`
	MessageID  int    `gorm:"not null;index:idx_bot_message"`
	ResendID   int    `gorm:"not null;index:idx_bot_resend"`
	ChatFromID int64  `gorm:"not null"`
	ChatForID  int64  `gorm:"not null;index"`
}

// LinkFilter selects link rows within one bot partition. Zero fields are not
// applied; set fields are AND-combined.
type LinkFilter struct {
	MessageID  int
	ResendID   int
	ChatFromID int64
	ChatForID  int64
}
