// Package handler wires Telegram updates into the relay: private
// messages from users go to the master chat, staff replies go back,
// and the master chat gets the tenant management commands.
package handler

import (
	"context"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-support-relay/internal/customization"
	"tg-support-relay/internal/models"
	"tg-support-relay/internal/relay"
)

// LinkStore is relay.LinkStore plus the queries only commands need.
type LinkStore interface {
	relay.LinkStore
	ListUserChats(botID, masterChatID int64) ([]int64, error)
	GetStats(botID, masterChatID int64) ([]string, error)
}

// AliasStore is relay.AliasStore plus alias management.
type AliasStore interface {
	relay.AliasStore
	SetAlias(botID, userID int64, name string) error
	ListAliases(botID int64) ([]models.AgentAlias, error)
}

// SettingsStore provides cached tenant settings with write-through.
type SettingsStore interface {
	Get(botID int64) *models.BotSettings
	Save(settings *models.BotSettings) error
}

// Handlers holds the per-process dependencies; the same instance serves
// every tenant bot, distinguished by the bot id passed at registration.
type Handlers struct {
	settings  SettingsStore
	links     LinkStore
	aliases   AliasStore
	engine    *relay.Engine
	reactions *relay.ReactionPropagator
	edits     *relay.EditPropagator
	customs   *customization.Registry
}

func New(settings SettingsStore, links LinkStore, aliases AliasStore, engine *relay.Engine, customs *customization.Registry) *Handlers {
	return &Handlers{
		settings:  settings,
		links:     links,
		aliases:   aliases,
		engine:    engine,
		reactions: relay.NewReactionPropagator(links),
		edits:     relay.NewEditPropagator(engine, links, aliases),
		customs:   customs,
	}
}

// Register attaches the handlers to one tenant's BotHandler. Handlers
// match first-registered-first, so the catch-all goes last.
func (h *Handlers) Register(bh *th.BotHandler, bot *telego.Bot, botID int64) {
	bh.HandleMessage(func(ctx *th.Context, message telego.Message) error {
		return h.onMessage(ctx.Context(), bot, botID, &message)
	})

	bh.HandleEditedMessage(func(ctx *th.Context, message telego.Message) error {
		return h.onEditedMessage(ctx.Context(), bot, botID, &message)
	})

	bh.HandleCallbackQuery(func(ctx *th.Context, query telego.CallbackQuery) error {
		return h.onCallback(ctx.Context(), bot, botID, query)
	})

	// Reactions and membership updates have no dedicated helper; the
	// catch-all picks up whatever the typed handlers did not.
	bh.Handle(func(ctx *th.Context, update telego.Update) error {
		return h.onUpdate(ctx.Context(), bot, botID, update)
	})
}

func (h *Handlers) onMessage(ctx context.Context, api relay.Sender, botID int64, msg *telego.Message) error {
	settings := h.settings.Get(botID)
	if settings == nil {
		return nil
	}

	if msg.MigrateToChatID != 0 {
		return h.onMigration(ctx, api, botID, msg, settings)
	}

	// A deactivated tenant still accepts /link so the owner can attach
	// a new master chat.
	if !settings.Active {
		if commandName(msg) == "link" && msg.Chat.Type != telego.ChatTypePrivate {
			return h.cmdLink(ctx, api, msg)
		}
		return nil
	}

	switch {
	case msg.Chat.ID == settings.MasterChat:
		return h.onMasterMessage(ctx, api, botID, msg, settings)
	case msg.Chat.Type == telego.ChatTypePrivate:
		return h.onUserMessage(ctx, api, botID, msg, settings)
	case commandName(msg) == "link":
		// The owner is moving the master chat elsewhere.
		return h.cmdLink(ctx, api, msg)
	}
	return nil
}

func (h *Handlers) onEditedMessage(ctx context.Context, api relay.Sender, botID int64, msg *telego.Message) error {
	settings := h.settings.Get(botID)
	if settings == nil || !settings.Active {
		return nil
	}

	switch {
	case msg.Chat.ID == settings.MasterChat:
		return h.edits.PropagateStaffEdit(ctx, api, botID, msg)
	case msg.Chat.Type == telego.ChatTypePrivate:
		if msg.From != nil && settings.IsIgnored(msg.From.ID) {
			return nil
		}
		return h.edits.PropagateUserEdit(ctx, api, botID, msg, settings)
	}
	return nil
}

func (h *Handlers) reply(ctx context.Context, api relay.Sender, msg *telego.Message, text string) error {
	_, err := api.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:          telego.ChatID{ID: msg.Chat.ID},
		MessageThreadID: msg.MessageThreadID,
		Text:            text,
		ReplyParameters: &telego.ReplyParameters{MessageID: msg.MessageID},
	})
	return err
}
