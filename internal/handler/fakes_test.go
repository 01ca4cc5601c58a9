package handler

import (
	"context"
	"sync"

	"github.com/mymmrac/telego"

	"tg-support-relay/internal/models"
	"tg-support-relay/internal/relay"
)

// fakeAPI overrides the calls the handlers make; everything else panics
// through the embedded nil interface.
type fakeAPI struct {
	relay.Sender
	mu     sync.Mutex
	nextID int

	sent      []*telego.SendMessageParams
	photos    []*telego.SendPhotoParams
	reactions []*telego.SetMessageReactionParams
	edits     []*telego.EditMessageTextParams
	deleted   []int
	answers   []string

	failChats map[int64]error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{failChats: map[int64]error{}}
}

func (f *fakeAPI) SendMessage(ctx context.Context, p *telego.SendMessageParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failChats[p.ChatID.ID]; ok {
		return nil, err
	}
	f.nextID++
	f.sent = append(f.sent, p)
	return &telego.Message{MessageID: f.nextID, Chat: telego.Chat{ID: p.ChatID.ID}}, nil
}

func (f *fakeAPI) SendPhoto(ctx context.Context, p *telego.SendPhotoParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failChats[p.ChatID.ID]; ok {
		return nil, err
	}
	f.nextID++
	f.photos = append(f.photos, p)
	return &telego.Message{MessageID: f.nextID, Chat: telego.Chat{ID: p.ChatID.ID}}, nil
}

func (f *fakeAPI) SetMessageReaction(ctx context.Context, p *telego.SetMessageReactionParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, p)
	return nil
}

func (f *fakeAPI) EditMessageText(ctx context.Context, p *telego.EditMessageTextParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, p)
	return &telego.Message{MessageID: p.MessageID, Chat: telego.Chat{ID: p.ChatID.ID}}, nil
}

func (f *fakeAPI) AnswerCallbackQuery(ctx context.Context, p *telego.AnswerCallbackQueryParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, p.Text)
	return nil
}

func (f *fakeAPI) DeleteMessage(ctx context.Context, p *telego.DeleteMessageParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, p.MessageID)
	return nil
}

func (f *fakeAPI) messages() []*telego.SendMessageParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*telego.SendMessageParams, len(f.sent))
	copy(out, f.sent)
	return out
}

// memLinks is an in-memory LinkStore.
type memLinks struct {
	mu    sync.Mutex
	rows  []models.MessageLink
	stats []string
}

func (m *memLinks) SaveLink(link *models.MessageLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	link.ID = uint(len(m.rows) + 1)
	m.rows = append(m.rows, *link)
	return nil
}

func (m *memLinks) FindLink(botID int64, filter models.LinkFilter) (*models.MessageLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		row := m.rows[i]
		if row.BotID != botID {
			continue
		}
		if filter.MessageID != 0 && row.MessageID != filter.MessageID {
			continue
		}
		if filter.ResendID != 0 && row.ResendID != filter.ResendID {
			continue
		}
		if filter.ChatFromID != 0 && row.ChatFromID != filter.ChatFromID {
			continue
		}
		if filter.ChatForID != 0 && row.ChatForID != filter.ChatForID {
			continue
		}
		return &row, nil
	}
	return nil, nil
}

func (m *memLinks) HasAnyLinkTo(botID, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].BotID == botID && m.rows[i].ChatForID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memLinks) ListUserChats(botID, masterChatID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[int64]bool{}
	var chats []int64
	for i := range m.rows {
		row := m.rows[i]
		if row.BotID != botID || row.ChatForID != masterChatID || seen[row.ChatFromID] {
			continue
		}
		seen[row.ChatFromID] = true
		chats = append(chats, row.ChatFromID)
	}
	return chats, nil
}

func (m *memLinks) GetStats(botID, masterChatID int64) ([]string, error) {
	return m.stats, nil
}

// memAliases is an in-memory AliasStore.
type memAliases struct {
	mu    sync.Mutex
	names map[int64]string
}

func newMemAliases() *memAliases {
	return &memAliases{names: map[int64]string{}}
}

func (m *memAliases) GetAlias(botID, userID int64) (*models.AgentAlias, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.names[userID]
	if !ok {
		return nil, nil
	}
	return &models.AgentAlias{BotID: botID, UserID: userID, Name: name}, nil
}

func (m *memAliases) SetAlias(botID, userID int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[userID] = name
	return nil
}

func (m *memAliases) ListAliases(botID int64) ([]models.AgentAlias, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.AgentAlias, 0, len(m.names))
	for id, name := range m.names {
		out = append(out, models.AgentAlias{BotID: botID, UserID: id, Name: name})
	}
	return out, nil
}

// memSettings is an in-memory SettingsStore.
type memSettings struct {
	mu   sync.Mutex
	rows map[int64]*models.BotSettings
}

func newMemSettings(rows ...*models.BotSettings) *memSettings {
	m := &memSettings{rows: map[int64]*models.BotSettings{}}
	for _, row := range rows {
		m.rows[row.ID] = row.Clone()
	}
	return m
}

func (m *memSettings) Get(botID int64) *models.BotSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[botID]; ok {
		return row.Clone()
	}
	return nil
}

func (m *memSettings) Save(settings *models.BotSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[settings.ID] = settings.Clone()
	return nil
}
