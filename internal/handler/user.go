package handler

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"

	"tg-support-relay/internal/models"
	"tg-support-relay/internal/relay"
)

const (
	defaultStartMessage = "Здравствуйте! Напишите ваш вопрос, оператор ответит вам здесь."
	defaultPolicy       = "Мы никогда не запрашиваем пароли, коды из SMS и данные карт."
	mediaBlockedNotice  = "Отправка файлов и медиа станет доступна после первого ответа оператора."
	linksBlockedNotice  = "Ссылки и медиа запрещены / Links and media are not allowed"
)

func (h *Handlers) onUserMessage(ctx context.Context, api relay.Sender, botID int64, msg *telego.Message, settings *models.BotSettings) error {
	from := msg.From
	if from == nil || from.IsBot {
		return nil
	}
	if settings.IsIgnored(from.ID) {
		return nil
	}

	switch commandName(msg) {
	case "start":
		text := settings.StartMessage
		if text == "" {
			text = defaultStartMessage
		}
		_, err := api.SendMessage(ctx, &telego.SendMessageParams{
			ChatID: telego.ChatID{ID: msg.Chat.ID},
			Text:   text,
		})
		return err
	case "security_policy":
		text := settings.SecurityPolicy
		if text == "" {
			text = defaultPolicy
		}
		return h.reply(ctx, api, msg, text)
	case "":
	default:
		if settings.IgnoreCommands {
			return nil
		}
	}

	trusted, err := h.links.HasAnyLinkTo(botID, from.ID)
	if err != nil {
		return fmt.Errorf("trust lookup for user %d: %w", from.ID, err)
	}

	switch relay.Evaluate(msg, trusted, settings.BlockLinks) {
	case relay.VerdictMediaBlocked:
		return h.reply(ctx, api, msg, mediaBlockedNotice)
	case relay.VerdictLinkBlocked:
		return h.reply(ctx, api, msg, linksBlockedNotice)
	}

	// A reply to a relayed staff answer threads under the staff's
	// original message in the master chat.
	replyTo := 0
	if reply := msg.ReplyToMessage; reply != nil {
		link, err := h.links.FindLink(botID, models.LinkFilter{ResendID: reply.MessageID, ChatForID: msg.Chat.ID})
		if err != nil {
			return err
		}
		if link != nil {
			replyTo = link.MessageID
		}
	}

	custom := h.customs.For(botID)
	autoReply := settings.UseAutoReply && settings.AutoReply != ""

	text := ""
	if content := messageContent(msg); content != "" {
		text = relay.EscapeHTML(content) + "\n\n"
	}
	text += relay.SenderTag(from)
	if extra := custom.ExtraText(botID, msg); extra != "" {
		text += "\n" + extra
	}
	if autoReply {
		text += "\n\n отправлен автоответ 🤖"
	}

	err = h.engine.Resend(ctx, api, botID, msg, relay.Options{
		ChatID:      settings.MasterChat,
		ThreadID:    settings.MasterThread,
		Text:        text,
		ReplyTo:     replyTo,
		ReplyMarkup: custom.Keyboard(botID, msg),
		MasterChat:  settings.MasterChat,
	})
	if err != nil {
		return err
	}

	if autoReply {
		return h.reply(ctx, api, msg, settings.AutoReply)
	}
	return nil
}

func messageContent(msg *telego.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}
