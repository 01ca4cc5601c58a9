package handler

import (
	"context"

	"github.com/mymmrac/telego"

	"tg-support-relay/internal/logger"
	"tg-support-relay/internal/models"
	"tg-support-relay/internal/relay"
)

const (
	aliasRequiredNotice = "Сначала задайте псевдоним командой /myname <имя>"
	noRecipientNotice   = "Не удалось определить получателя =("
)

func (h *Handlers) onMasterMessage(ctx context.Context, api relay.Sender, botID int64, msg *telego.Message, settings *models.BotSettings) error {
	from := msg.From
	if from == nil || from.IsBot {
		return nil
	}

	if cmd := commandName(msg); cmd != "" {
		return h.onMasterCommand(ctx, api, botID, cmd, msg, settings)
	}

	reply := msg.ReplyToMessage
	if reply == nil || reply.From == nil || reply.From.ID != botID {
		// Chatter in the master chat that answers nobody; flag it so
		// staff notice the stray message.
		if settings.MarkBad {
			h.mark(ctx, api, msg.Chat.ID, msg.MessageID, "🙈")
		}
		return nil
	}

	link, err := h.links.FindLink(botID, models.LinkFilter{ResendID: reply.MessageID, ChatForID: msg.Chat.ID})
	if err != nil {
		return err
	}
	if link == nil {
		return h.reply(ctx, api, msg, noRecipientNotice)
	}

	alias, err := h.aliases.GetAlias(botID, from.ID)
	if err != nil {
		return err
	}
	if alias == nil {
		return h.reply(ctx, api, msg, aliasRequiredNotice)
	}

	text := ""
	if content := messageContent(msg); content != "" {
		text = relay.EscapeHTML(content) + "\n\n"
	}
	text += "Вам ответил " + relay.EscapeHTML(alias.Name)

	agentID := from.ID
	return h.engine.Resend(ctx, api, botID, msg, relay.Options{
		ChatID:     link.ChatFromID,
		Text:       text,
		ReplyTo:    link.MessageID,
		AgentID:    &agentID,
		MasterChat: settings.MasterChat,
	})
}

func (h *Handlers) mark(ctx context.Context, api relay.Sender, chatID int64, messageID int, emoji string) {
	err := api.SetMessageReaction(ctx, &telego.SetMessageReactionParams{
		ChatID:    telego.ChatID{ID: chatID},
		MessageID: messageID,
		Reaction: []telego.ReactionType{
			&telego.ReactionTypeEmoji{Type: telego.ReactionEmoji, Emoji: emoji},
		},
	})
	if err != nil {
		logger.Warningf("marking message %d in chat %d failed: %v", messageID, chatID, err)
	}
}
