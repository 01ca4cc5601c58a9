package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mymmrac/telego"

	"tg-support-relay/internal/logger"
	"tg-support-relay/internal/models"
	"tg-support-relay/internal/relay"
)

const (
	maxAliasLength = 30

	// Pause between broadcast sends so Telegram does not throttle the
	// fan-out.
	broadcastPause = 50 * time.Millisecond
)

func (h *Handlers) onMasterCommand(ctx context.Context, api relay.Sender, botID int64, cmd string, msg *telego.Message, settings *models.BotSettings) error {
	switch cmd {
	case "myname":
		return h.cmdMyName(ctx, api, botID, msg)
	case "show_names":
		return h.cmdShowNames(ctx, api, botID, msg)
	case "ignore":
		return h.cmdIgnore(ctx, api, botID, msg, settings)
	case "send":
		return h.cmdSend(ctx, api, botID, msg, settings)
	case "stats":
		return h.cmdStats(ctx, api, botID, msg, settings)
	case "link":
		return h.cmdLink(ctx, api, msg)
	}
	return nil
}

func (h *Handlers) cmdMyName(ctx context.Context, api relay.Sender, botID int64, msg *telego.Message) error {
	name := commandArgs(msg)
	if name == "" {
		return h.reply(ctx, api, msg, "Использование: /myname <псевдоним>")
	}
	if utf8.RuneCountInString(name) > maxAliasLength {
		return h.reply(ctx, api, msg, fmt.Sprintf("Псевдоним слишком длинный (до %d символов)", maxAliasLength))
	}

	aliases, err := h.aliases.ListAliases(botID)
	if err != nil {
		return err
	}
	for _, alias := range aliases {
		if alias.Name == name && alias.UserID != msg.From.ID {
			return h.reply(ctx, api, msg, fmt.Sprintf("Псевдоним %s уже занят", name))
		}
	}

	if err := h.aliases.SetAlias(botID, msg.From.ID, name); err != nil {
		return err
	}
	return h.reply(ctx, api, msg, "Псевдоним установлен: "+name)
}

func (h *Handlers) cmdShowNames(ctx context.Context, api relay.Sender, botID int64, msg *telego.Message) error {
	aliases, err := h.aliases.ListAliases(botID)
	if err != nil {
		return err
	}
	if len(aliases) == 0 {
		return h.reply(ctx, api, msg, "Псевдонимы не заданы")
	}

	var b strings.Builder
	b.WriteString("Псевдонимы:")
	for _, alias := range aliases {
		b.WriteString("\n")
		b.WriteString(alias.Name)
	}
	return h.reply(ctx, api, msg, b.String())
}

func (h *Handlers) cmdIgnore(ctx context.Context, api relay.Sender, botID int64, msg *telego.Message, settings *models.BotSettings) error {
	args := commandArgs(msg)

	var userID int64
	switch {
	case args == "list":
		if len(settings.IgnoreUsers) == 0 {
			return h.reply(ctx, api, msg, "Список игнорируемых пуст")
		}
		lines := make([]string, 0, len(settings.IgnoreUsers))
		for _, id := range settings.IgnoreUsers {
			lines = append(lines, strconv.FormatInt(id, 10))
		}
		return h.reply(ctx, api, msg, "Игнорируются:\n"+strings.Join(lines, "\n"))

	case args == "":
		reply := msg.ReplyToMessage
		if reply == nil || reply.From == nil || reply.From.ID != botID {
			return h.reply(ctx, api, msg, "Использование: /ignore <id>, /ignore list или /ignore ответом на сообщение")
		}
		link, err := h.links.FindLink(botID, models.LinkFilter{ResendID: reply.MessageID, ChatForID: msg.Chat.ID})
		if err != nil {
			return err
		}
		if link == nil {
			return h.reply(ctx, api, msg, noRecipientNotice)
		}
		userID = link.ChatFromID

	default:
		parsed, err := strconv.ParseInt(args, 10, 64)
		if err != nil {
			return h.reply(ctx, api, msg, "Использование: /ignore <id>, /ignore list или /ignore ответом на сообщение")
		}
		userID = parsed
	}

	if settings.IsIgnored(userID) {
		kept := settings.IgnoreUsers[:0]
		for _, id := range settings.IgnoreUsers {
			if id != userID {
				kept = append(kept, id)
			}
		}
		settings.IgnoreUsers = kept
		if err := h.settings.Save(settings); err != nil {
			return err
		}
		return h.reply(ctx, api, msg, fmt.Sprintf("Пользователь %d снова может писать", userID))
	}

	settings.IgnoreUsers = append(settings.IgnoreUsers, userID)
	if err := h.settings.Save(settings); err != nil {
		return err
	}
	return h.reply(ctx, api, msg, fmt.Sprintf("Пользователь %d игнорируется", userID))
}

func (h *Handlers) cmdSend(ctx context.Context, api relay.Sender, botID int64, msg *telego.Message, settings *models.BotSettings) error {
	if msg.From.ID != settings.OwnerID {
		return h.reply(ctx, api, msg, "Команда доступна только владельцу")
	}

	source := msg.ReplyToMessage
	text := commandArgs(msg)
	if source == nil && text == "" {
		return h.reply(ctx, api, msg, "Использование: /send <текст> или /send ответом на сообщение")
	}
	if source == nil {
		source = msg
	}
	if text == "" {
		text = messageContent(source)
	}

	recipients, err := h.links.ListUserChats(botID, settings.MasterChat)
	if err != nil {
		return err
	}

	sent, failed := 0, 0
	for i, chat := range recipients {
		if i > 0 {
			time.Sleep(broadcastPause)
		}
		err := h.engine.Resend(ctx, api, botID, source, relay.Options{
			ChatID:      chat,
			Text:        relay.EscapeHTML(text),
			MasterChat:  settings.MasterChat,
			DoException: true,
		})
		if err != nil {
			failed++
			logger.Warningf("broadcast to chat %d failed: %v", chat, err)
			continue
		}
		sent++
	}
	return h.reply(ctx, api, msg, fmt.Sprintf("Рассылка завершена: отправлено %d, ошибок %d", sent, failed))
}

func (h *Handlers) cmdStats(ctx context.Context, api relay.Sender, botID int64, msg *telego.Message, settings *models.BotSettings) error {
	lines, err := h.links.GetStats(botID, settings.MasterChat)
	if err != nil {
		return err
	}
	return h.reply(ctx, api, msg, strings.Join(lines, "\n"))
}

func (h *Handlers) cmdLink(ctx context.Context, api relay.Sender, msg *telego.Message) error {
	_, err := api.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:          telego.ChatID{ID: msg.Chat.ID},
		MessageThreadID: msg.MessageThreadID,
		Text:            "Привязать этот чат как рабочий?",
		ReplyMarkup: &telego.InlineKeyboardMarkup{
			InlineKeyboard: [][]telego.InlineKeyboardButton{{
				{Text: "Привязать", CallbackData: "link:yes"},
				{Text: "Отмена", CallbackData: "link:no"},
			}},
		},
	})
	return err
}

func commandName(msg *telego.Message) string {
	if !strings.HasPrefix(msg.Text, "/") {
		return ""
	}
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return ""
	}
	name := fields[0][1:]
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

func commandArgs(msg *telego.Message) string {
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(msg.Text, fields[0]))
}
