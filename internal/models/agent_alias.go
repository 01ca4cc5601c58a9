package models

import "time"

// AgentAlias is the display name a support agent registered with /myname.
// Replies relayed to users carry this name instead of the agent's Telegram
// identity.
type AgentAlias struct {
	BotID     int64  `gorm:"primarykey;autoIncrement:false"`
	UserID    int64  `gorm:"primarykey;autoIncrement:false"`
	Name      string `gorm:"size:30;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
