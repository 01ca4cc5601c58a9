package handler

import (
	"context"

	"github.com/mymmrac/telego"

	"tg-support-relay/internal/logger"
	"tg-support-relay/internal/models"
	"tg-support-relay/internal/relay"
)

func (h *Handlers) onUpdate(ctx context.Context, api relay.Sender, botID int64, update telego.Update) error {
	switch {
	case update.MessageReaction != nil:
		settings := h.settings.Get(botID)
		if settings == nil || !settings.Active {
			return nil
		}
		return h.reactions.Propagate(ctx, api, botID, update.MessageReaction, settings)
	case update.MyChatMember != nil:
		return h.onMyChatMember(botID, update.MyChatMember)
	}
	return nil
}

func (h *Handlers) onMyChatMember(botID int64, upd *telego.ChatMemberUpdated) error {
	oldStatus := upd.OldChatMember.MemberStatus()
	newStatus := upd.NewChatMember.MemberStatus()
	logger.Infof("bot %d in chat %d (%s): %s -> %s", botID, upd.Chat.ID, upd.Chat.Title, oldStatus, newStatus)

	settings := h.settings.Get(botID)
	if settings == nil || upd.Chat.ID != settings.MasterChat {
		return nil
	}

	if newStatus == telego.MemberStatusLeft || newStatus == telego.MemberStatusBanned {
		settings.Active = false
		if err := h.settings.Save(settings); err != nil {
			return err
		}
		logger.Warningf("bot %d removed from its master chat %d, tenant deactivated", botID, upd.Chat.ID)
	}
	return nil
}

// onMigration reacts to the master group upgrading to a supergroup: the
// old chat id dies, so the tenant is parked until the owner runs /link
// in the new chat.
func (h *Handlers) onMigration(ctx context.Context, api relay.Sender, botID int64, msg *telego.Message, settings *models.BotSettings) error {
	if msg.Chat.ID != settings.MasterChat {
		return nil
	}

	newChatID := msg.MigrateToChatID
	settings.Active = false
	settings.MasterChat = 0
	settings.MasterThread = 0
	if err := h.settings.Save(settings); err != nil {
		return err
	}
	logger.Warningf("master chat of bot %d migrated to %d, awaiting /link", botID, newChatID)

	_, err := api.SendMessage(ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: newChatID},
		Text:   "Группа обновлена. Привяжите чат заново командой /link",
	})
	if err != nil {
		logger.Errorf("migration notice to chat %d failed: %v", newChatID, err)
	}
	return nil
}
