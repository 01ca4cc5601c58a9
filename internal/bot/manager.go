package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-support-relay/internal/config"
	"tg-support-relay/internal/handler"
	"tg-support-relay/internal/logger"
	"tg-support-relay/internal/models"
	"tg-support-relay/internal/relay"
	"tg-support-relay/internal/service"
)

// allowedUpdates covers everything the handlers consume; without the
// explicit list Telegram does not deliver reaction updates at all.
var allowedUpdates = []string{
	"message",
	"edited_message",
	"callback_query",
	"message_reaction",
	"my_chat_member",
}

// Tenant is one running bot.
type Tenant struct {
	Bot      *telego.Bot
	Handler  *th.BotHandler
	Settings *models.BotSettings
}

// Manager starts a telego bot per tenant row and routes their updates
// into the shared handlers. With a webhook server every tenant mounts a
// secret path on it; without one each tenant long-polls.
type Manager struct {
	mu       sync.RWMutex
	tenants  map[int64]*Tenant
	handlers *handler.Handlers
	settings *service.SettingsService
	web      *WebhookServer
	cfg      *config.Config
}

func NewManager(cfg *config.Config, handlers *handler.Handlers, settings *service.SettingsService, web *WebhookServer) *Manager {
	return &Manager{
		tenants:  make(map[int64]*Tenant),
		handlers: handlers,
		settings: settings,
		web:      web,
		cfg:      cfg,
	}
}

// Sender resolves a running tenant's API client.
func (m *Manager) Sender(botID int64) (relay.Sender, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tenant, ok := m.tenants[botID]
	if !ok {
		return nil, false
	}
	return tenant.Bot, true
}

// StartAll boots every known tenant. An empty settings table plus a
// configured token bootstraps the single-tenant setup first.
func (m *Manager) StartAll(ctx context.Context) error {
	rows := m.settings.All()
	if len(rows) == 0 && m.cfg.Bot.Token != "" {
		settings, err := m.bootstrapDefaultTenant(ctx)
		if err != nil {
			return err
		}
		rows = []*models.BotSettings{settings}
	}

	started := 0
	for _, settings := range rows {
		if settings.Token == "" {
			logger.Warningf("tenant %d has no token, skipping", settings.ID)
			continue
		}
		if err := m.StartTenant(ctx, settings); err != nil {
			logger.Errorf("tenant %d failed to start: %v", settings.ID, err)
			continue
		}
		started++
	}
	if started == 0 {
		return fmt.Errorf("no tenant started")
	}
	logger.Infof("started %d tenant bot(s)", started)
	return nil
}

func (m *Manager) bootstrapDefaultTenant(ctx context.Context) (*models.BotSettings, error) {
	bot, err := telego.NewBot(m.cfg.Bot.Token, telego.WithDefaultDebugLogger())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize default bot: %w", err)
	}
	botUser, err := bot.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get default bot info: %w", err)
	}
	return m.settings.EnsureDefaultTenant(botUser.ID, botUser.Username, m.cfg)
}

// StartTenant creates the bot, subscribes to updates and registers the
// handlers. Inactive tenants run too: /link is what reactivates them.
func (m *Manager) StartTenant(ctx context.Context, settings *models.BotSettings) error {
	bot, err := telego.NewBot(settings.Token, telego.WithDefaultDebugLogger())
	if err != nil {
		return fmt.Errorf("failed to initialize bot: %w", err)
	}

	botUser, err := bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	logger.Infof("Authorized on account %s (%d)", botUser.Username, botUser.ID)

	if settings.Username != botUser.Username {
		settings.Username = botUser.Username
		if err := m.settings.Save(settings); err != nil {
			logger.Warningf("username refresh for tenant %d failed: %v", botUser.ID, err)
		}
	}

	if err := bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{}); err != nil {
		return fmt.Errorf("failed to delete existing webhook: %w", err)
	}

	var updates <-chan telego.Update
	if m.web != nil {
		updates, err = m.webhookUpdates(ctx, bot)
	} else {
		updates, err = bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
			Timeout:        30,
			AllowedUpdates: allowedUpdates,
		})
	}
	if err != nil {
		return fmt.Errorf("failed to get updates channel: %w", err)
	}

	bh, err := th.NewBotHandler(bot, updates)
	if err != nil {
		return fmt.Errorf("failed to create bot handler: %w", err)
	}
	m.handlers.Register(bh, bot, botUser.ID)

	m.mu.Lock()
	m.tenants[botUser.ID] = &Tenant{Bot: bot, Handler: bh, Settings: settings}
	m.mu.Unlock()

	go bh.Start()
	return nil
}

func (m *Manager) webhookUpdates(ctx context.Context, bot *telego.Bot) (<-chan telego.Update, error) {
	// Per-tenant random path and secret: knowing one tenant's webhook
	// reveals nothing about the others.
	path := "/" + m.cfg.Bot.Webhook.SecretPath + "/" + uuid.NewString()
	secretToken := uuid.NewString()

	err := bot.SetWebhook(ctx, &telego.SetWebhookParams{
		URL:            m.web.URLFor(path),
		AllowedUpdates: allowedUpdates,
		SecretToken:    secretToken,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook: %w", err)
	}

	return bot.UpdatesViaWebhook(ctx,
		telego.WebhookHTTPServeMux(m.web.mux, path, secretToken),
	)
}

// StopAll stops every tenant's update handler.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, tenant := range m.tenants {
		logger.Infof("stopping handler for bot %d", id)
		tenant.Handler.Stop()
	}
	m.tenants = make(map[int64]*Tenant)
}
