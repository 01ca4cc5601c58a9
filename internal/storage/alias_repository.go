package storage

import (
	"errors"

	"tg-support-relay/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AliasRepository handles database operations for AgentAlias rows
type AliasRepository struct {
	db *gorm.DB
}

// NewAliasRepository creates a new AliasRepository
func NewAliasRepository(db *gorm.DB) *AliasRepository {
	return &AliasRepository{db: db}
}

// MigrateTable ensures the AgentAlias table exists
func (r *AliasRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.AgentAlias{})
}

// GetAlias returns the agent's alias, or nil when none is registered.
func (r *AliasRepository) GetAlias(botID, userID int64) (*models.AgentAlias, error) {
	var alias models.AgentAlias
	err := r.db.Where("bot_id = ? AND user_id = ?", botID, userID).First(&alias).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &alias, nil
}

// SetAlias inserts or replaces the agent's alias. Uniqueness of names is
// checked by the caller against ListAliases; a race between two agents
// picking the same name is accepted as best effort.
func (r *AliasRepository) SetAlias(botID, userID int64, name string) error {
	alias := models.AgentAlias{BotID: botID, UserID: userID, Name: name}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bot_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(&alias).Error
}

// ListAliases returns every registered alias for the bot.
func (r *AliasRepository) ListAliases(botID int64) ([]models.AgentAlias, error) {
	var aliases []models.AgentAlias
	result := r.db.Where("bot_id = ?", botID).Order("name").Find(&aliases)
	return aliases, result.Error
}
