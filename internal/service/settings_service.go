package service

import (
	"tg-support-relay/internal/config"
	"tg-support-relay/internal/logger"
	"tg-support-relay/internal/models"
	"tg-support-relay/internal/storage"
)

// SettingsService fronts the tenant settings table with an in-memory
// cache. Reads come from the cache; writes go through to the database
// first and refresh the cache on success.
type SettingsService struct {
	repo  *storage.SettingsRepository
	cache *models.SettingsManager
}

func NewSettingsService(repo *storage.SettingsRepository) *SettingsService {
	return &SettingsService{
		repo:  repo,
		cache: models.NewSettingsManager(),
	}
}

// LoadAll warms the cache from the database.
func (s *SettingsService) LoadAll() error {
	rows, err := s.repo.LoadAll()
	if err != nil {
		return err
	}
	for i := range rows {
		s.cache.Put(&rows[i])
	}
	logger.Infof("loaded %d tenant(s)", len(rows))
	return nil
}

func (s *SettingsService) Get(botID int64) *models.BotSettings {
	return s.cache.Get(botID)
}

func (s *SettingsService) All() []*models.BotSettings {
	return s.cache.All()
}

// Save writes through and refreshes the cache.
func (s *SettingsService) Save(settings *models.BotSettings) error {
	if err := s.repo.Upsert(settings); err != nil {
		return err
	}
	s.cache.Put(settings)
	return nil
}

// EnsureDefaultTenant creates a tenant row for the bot configured in
// the config file when the table does not know it yet. This keeps the
// single-bot deployment working without touching the database by hand.
func (s *SettingsService) EnsureDefaultTenant(botID int64, username string, cfg *config.Config) (*models.BotSettings, error) {
	if existing := s.cache.Get(botID); existing != nil {
		return existing, nil
	}

	settings := &models.BotSettings{
		ID:         botID,
		Username:   username,
		Token:      cfg.Bot.Token,
		MasterChat: cfg.Bot.MasterChat,
		OwnerID:    cfg.Bot.AdminID,
		Active:     true,
		BlockLinks: true,
	}
	if err := s.Save(settings); err != nil {
		return nil, err
	}
	logger.Infof("registered default tenant @%s (%d)", username, botID)
	return settings.Clone(), nil
}
