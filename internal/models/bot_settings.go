package models

import (
	"sync"
	"time"
)

// BotSettings is one tenant's configuration row. The relay reads it on every
// update; mutations come from the owner commands (/ignore, /link) and write
// through to the database.
type BotSettings struct {
	ID        int64 `gorm:"primarykey;autoIncrement:false"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Username       string `gorm:"size:64"`
	Token          string `gorm:"size:64;not null"`
	StartMessage   string
	SecurityPolicy string
	MasterChat     int64
	MasterThread   int
	OwnerID        int64
	Active         bool
	IgnoreCommands bool
	MarkBad        bool
	BlockLinks     bool    `gorm:"default:true"`
	UseAutoReply   bool
	AutoReply      string
	IgnoreUsers    []int64 `gorm:"serializer:json"`
}

// IsIgnored reports whether the user id is on the tenant's ignore list.
func (s *BotSettings) IsIgnored(userID int64) bool {
	for _, id := range s.IgnoreUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a copy safe to mutate without racing other handlers reading
// the cached snapshot.
func (s *BotSettings) Clone() *BotSettings {
	copied := *s
	copied.IgnoreUsers = append([]int64(nil), s.IgnoreUsers...)
	return &copied
}

type SettingsManager struct {
	settingsMap map[int64]*BotSettings
	mu          sync.RWMutex
}

func NewSettingsManager() *SettingsManager {
	return &SettingsManager{
		settingsMap: make(map[int64]*BotSettings),
	}
}

func (m *SettingsManager) Get(botID int64) *BotSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.settingsMap[botID]; ok {
		return s.Clone()
	}
	return nil
}

func (m *SettingsManager) Put(settings *BotSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settingsMap[settings.ID] = settings.Clone()
}

func (m *SettingsManager) Remove(botID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.settingsMap, botID)
}

func (m *SettingsManager) All() []*BotSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*BotSettings, 0, len(m.settingsMap))
	for _, s := range m.settingsMap {
		result = append(result, s.Clone())
	}
	return result
}
