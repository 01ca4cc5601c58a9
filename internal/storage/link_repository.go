package storage

import (
	"errors"
	"fmt"

	"tg-support-relay/internal/models"

	"gorm.io/gorm"
)

// LinkRepository handles database operations for MessageLink rows
type LinkRepository struct {
	db *gorm.DB
}

// NewLinkRepository creates a new LinkRepository
func NewLinkRepository(db *gorm.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// MigrateTable ensures the MessageLink table exists
func (r *LinkRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.MessageLink{})
}

// SaveLink appends a new link row
func (r *LinkRepository) SaveLink(link *models.MessageLink) error {
	return r.db.Create(link).Error
}

// FindLink returns the first link row in the bot partition matching the
// filter, or nil when none exists. Zero filter fields are ignored.
func (r *LinkRepository) FindLink(botID int64, filter models.LinkFilter) (*models.MessageLink, error) {
	query := r.db.Where("bot_id = ?", botID)
	if filter.MessageID != 0 {
		query = query.Where("message_id = ?", filter.MessageID)
	}
	if filter.ResendID != 0 {
		query = query.Where("resend_id = ?", filter.ResendID)
	}
	if filter.ChatFromID != 0 {
		query = query.Where("chat_from_id = ?", filter.ChatFromID)
	}
	if filter.ChatForID != 0 {
		query = query.Where("chat_for_id = ?", filter.ChatForID)
	}

	var link models.MessageLink
	if err := query.Order("id").First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

// HasAnyLinkTo reports whether anything was ever relayed into the user's
// chat, which is what unlocks media for first-contact users.
func (r *LinkRepository) HasAnyLinkTo(botID, userID int64) (bool, error) {
	var count int64
	err := r.db.Model(&models.MessageLink{}).
		Where("bot_id = ? AND chat_for_id = ?", botID, userID).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListUserChats returns the distinct user chats that ever had a message
// relayed into the master chat; the broadcast recipient list.
func (r *LinkRepository) ListUserChats(botID, masterChatID int64) ([]int64, error) {
	var chats []int64
	err := r.db.Model(&models.MessageLink{}).
		Distinct("chat_from_id").
		Where("bot_id = ? AND chat_for_id = ?", botID, masterChatID).
		Order("chat_from_id").
		Pluck("chat_from_id", &chats).Error
	return chats, err
}

// GetStats returns per-agent reply counts plus the total number of messages
// relayed into the master chat.
func (r *LinkRepository) GetStats(botID, masterChatID int64) ([]string, error) {
	type agentRow struct {
		Name  string
		Count int64
	}
	var agents []agentRow
	err := r.db.Model(&models.MessageLink{}).
		Select("agent_aliases.name AS name, count(message_links.user_id) AS count").
		Joins("JOIN agent_aliases ON agent_aliases.user_id = message_links.user_id AND agent_aliases.bot_id = message_links.bot_id").
		Where("message_links.bot_id = ? AND message_links.chat_from_id = ?", botID, masterChatID).
		Group("agent_aliases.name").
		Scan(&agents).Error
	if err != nil {
		return nil, err
	}

	var total int64
	err = r.db.Model(&models.MessageLink{}).
		Where("bot_id = ? AND chat_for_id = ?", botID, masterChatID).
		Count(&total).Error
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(agents)+1)
	for _, row := range agents {
		result = append(result, fmt.Sprintf("%s: %d messages", row.Name, row.Count))
	}
	result = append(result, fmt.Sprintf("Total messages from users: %d", total))
	return result, nil
}
