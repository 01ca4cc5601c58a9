package storage

import (
	"tg-support-relay/internal/models"

	"gorm.io/gorm"
)

// SettingsRepository handles database operations for BotSettings rows
type SettingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository creates a new SettingsRepository
func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// MigrateTable ensures the BotSettings table exists
func (r *SettingsRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.BotSettings{})
}

// LoadAll returns every tenant row; called once at startup to warm the cache.
func (r *SettingsRepository) LoadAll() ([]models.BotSettings, error) {
	var settings []models.BotSettings
	result := r.db.Find(&settings)
	return settings, result.Error
}

// Upsert writes the tenant row through to the database.
func (r *SettingsRepository) Upsert(settings *models.BotSettings) error {
	return r.db.Save(settings).Error
}

// Delete removes the tenant row.
func (r *SettingsRepository) Delete(botID int64) error {
	return r.db.Delete(&models.BotSettings{}, botID).Error
}
