package handler

import (
	"context"

	"github.com/mymmrac/telego"

	"tg-support-relay/internal/relay"
)

const (
	callbackLinkYes = "link:yes"
	callbackLinkNo  = "link:no"
)

func (h *Handlers) onCallback(ctx context.Context, api relay.Sender, botID int64, query telego.CallbackQuery) error {
	settings := h.settings.Get(botID)
	if settings == nil {
		return nil
	}

	if query.Data == callbackLinkYes || query.Data == callbackLinkNo {
		return h.onLinkCallback(ctx, api, botID, query)
	}

	handled, err := h.customs.For(botID).HandleCallback(ctx, api, botID, query)
	if err != nil {
		return err
	}
	if !handled {
		// Stop the client spinner even for buttons nobody owns.
		return api.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{CallbackQueryID: query.ID})
	}
	return nil
}

func (h *Handlers) onLinkCallback(ctx context.Context, api relay.Sender, botID int64, query telego.CallbackQuery) error {
	settings := h.settings.Get(botID)

	msg, ok := query.Message.(*telego.Message)
	if !ok || msg == nil {
		return api.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
			CallbackQueryID: query.ID,
			Text:            "Сообщение недоступно",
		})
	}

	if query.From.ID != settings.OwnerID {
		return api.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
			CallbackQueryID: query.ID,
			Text:            "Привязать чат может только владелец",
		})
	}

	if query.Data == callbackLinkNo {
		_ = api.DeleteMessage(ctx, &telego.DeleteMessageParams{
			ChatID:    telego.ChatID{ID: msg.Chat.ID},
			MessageID: msg.MessageID,
		})
		return api.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
			CallbackQueryID: query.ID,
			Text:            "Отменено",
		})
	}

	settings.MasterChat = msg.Chat.ID
	settings.MasterThread = msg.MessageThreadID
	settings.Active = true
	if err := h.settings.Save(settings); err != nil {
		return err
	}

	_, err := api.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:    telego.ChatID{ID: msg.Chat.ID},
		MessageID: msg.MessageID,
		Text:      "Чат привязан, сюда будут приходить обращения ✅",
	})
	if err != nil {
		return err
	}
	return api.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
		Text:            "Готово",
	})
}
