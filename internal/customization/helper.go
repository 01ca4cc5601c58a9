package customization

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"

	"tg-support-relay/internal/events"
	"tg-support-relay/internal/logger"
	"tg-support-relay/internal/models"
	"tg-support-relay/internal/relay"
)

const (
	callbackTake  = "helper:get"
	callbackClose = "helper:end"
)

// Helper is the customization for helper-style tenants: relayed user
// messages get take/close buttons, and pressing one publishes a ticket
// event that an external coordinator must acknowledge.
type Helper struct {
	publisher events.Publisher
	acks      *models.PendingAckManager
	aliases   relay.AliasStore
	source    string
	// infoBot is the username of the bot the /get_info command line is
	// addressed to, without the @.
	infoBot string
}

func NewHelper(publisher events.Publisher, acks *models.PendingAckManager, aliases relay.AliasStore, source, infoBot string) *Helper {
	return &Helper{
		publisher: publisher,
		acks:      acks,
		aliases:   aliases,
		source:    source,
		infoBot:   infoBot,
	}
}

// ExtraText appends a lookup command for the ticket author so staff can
// pull the user's profile from the info bot in one tap.
func (h *Helper) ExtraText(botID int64, msg *telego.Message) string {
	if msg.From == nil {
		return ""
	}
	cmd := fmt.Sprintf("/get_info_%d", msg.From.ID)
	if h.infoBot != "" {
		cmd += "@" + h.infoBot
	}
	return cmd
}

func (h *Helper) Keyboard(botID int64, msg *telego.Message) telego.ReplyMarkup {
	return &telego.InlineKeyboardMarkup{
		InlineKeyboard: [][]telego.InlineKeyboardButton{{
			{Text: "Взять", CallbackData: callbackTake},
			{Text: "Закрыл", CallbackData: callbackClose},
		}},
	}
}

func (h *Helper) HandleCallback(ctx context.Context, api relay.Sender, botID int64, query telego.CallbackQuery) (bool, error) {
	var op, key, answer string
	switch query.Data {
	case callbackTake:
		op, key, answer = events.OpTaken, events.KeyTicketTaken, "Взято в работу"
	case callbackClose:
		op, key, answer = events.OpClosed, events.KeyTicketClosed, "Закрыто"
	default:
		return false, nil
	}

	msg, ok := query.Message.(*telego.Message)
	if !ok || msg == nil {
		h.answer(ctx, api, query.ID, "Сообщение недоступно")
		return true, nil
	}

	agent := h.agentName(botID, &query.From)
	url := MessageURL(msg.Chat.ID, msg.MessageID)

	env := events.Envelope{
		Meta: events.NewMeta(h.source),
		Data: events.TicketEvent{
			Operation: op,
			URL:       url,
			BotID:     botID,
			Chat:      msg.Chat.ID,
			Thread:    msg.MessageThreadID,
			Agent:     agent,
		},
	}
	if err := h.publisher.Publish(ctx, key, env); err != nil {
		logger.Errorf("ticket event %s for %s failed: %v", op, url, err)
		h.answer(ctx, api, query.ID, "Не получилось отправить событие =(")
		return true, nil
	}

	h.acks.Register(models.PendingAck{
		Operation:    op,
		URL:          url,
		BotID:        botID,
		TargetChat:   msg.Chat.ID,
		TargetThread: msg.MessageThreadID,
		AgentName:    agent,
	})

	if op == events.OpClosed {
		// The conversation is over, drop the buttons.
		_, err := api.EditMessageReplyMarkup(ctx, &telego.EditMessageReplyMarkupParams{
			ChatID:    telego.ChatID{ID: msg.Chat.ID},
			MessageID: msg.MessageID,
		})
		if err != nil {
			logger.Warningf("keyboard removal on %s failed: %v", url, err)
		}
	}

	h.answer(ctx, api, query.ID, fmt.Sprintf("%s: %s", answer, agent))
	return true, nil
}

func (h *Helper) agentName(botID int64, user *telego.User) string {
	if alias, err := h.aliases.GetAlias(botID, user.ID); err == nil && alias != nil {
		return alias.Name
	}
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		name = strconv.FormatInt(user.ID, 10)
	}
	return name
}

func (h *Helper) answer(ctx context.Context, api relay.Sender, queryID, text string) {
	err := api.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: queryID,
		Text:            text,
	})
	if err != nil {
		logger.Warningf("callback answer failed: %v", err)
	}
}

// MessageURL builds the t.me deep link for a message in a private
// supergroup, the form external coordinators address tickets by.
func MessageURL(chatID int64, messageID int) string {
	s := strconv.FormatInt(chatID, 10)
	s = strings.TrimPrefix(s, "-100")
	s = strings.TrimPrefix(s, "-")
	return fmt.Sprintf("https://t.me/c/%s/%d", s, messageID)
}
