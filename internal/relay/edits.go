package relay

import (
	"context"

	"github.com/mymmrac/telego"

	"tg-support-relay/internal/models"
)

// AliasStore resolves the public alias a staff member signs replies
// with.
type AliasStore interface {
	GetAlias(botID, userID int64) (*models.AgentAlias, error)
}

// EditPropagator forwards message edits across a relay link. Staff
// edits are applied in place on the user's copy; user edits arrive in
// the master chat as a new annotated message because staff may already
// have quoted the old text.
type EditPropagator struct {
	engine  *Engine
	links   LinkStore
	aliases AliasStore
}

func NewEditPropagator(engine *Engine, links LinkStore, aliases AliasStore) *EditPropagator {
	return &EditPropagator{engine: engine, links: links, aliases: aliases}
}

// PropagateStaffEdit rewrites the user-side copy of an edited staff
// reply, re-signing it with the editor's alias. Only edits of replies
// to the bot's relayed messages qualify; edited chatter is ignored.
func (p *EditPropagator) PropagateStaffEdit(ctx context.Context, api Sender, botID int64, msg *telego.Message) error {
	if msg.Text == "" || msg.From == nil {
		return nil
	}

	reply := msg.ReplyToMessage
	if reply == nil || reply.From == nil || reply.From.ID != botID {
		return nil
	}

	alias, err := p.aliases.GetAlias(botID, msg.From.ID)
	if err != nil {
		return err
	}
	if alias == nil {
		p.notify(ctx, api, msg, "Изменение не отправлено: сначала задайте псевдоним командой /myname")
		return nil
	}

	link, err := p.links.FindLink(botID, models.LinkFilter{MessageID: msg.MessageID, ChatFromID: msg.Chat.ID})
	if err != nil {
		return err
	}
	if link == nil {
		p.notify(ctx, api, msg, "Не удалось отправить изменения =(")
		return nil
	}

	text := EscapeHTML(msg.Text) + "\n\nВам ответил " + EscapeHTML(alias.Name)
	_, err = api.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:    telego.ChatID{ID: link.ChatForID},
		MessageID: link.ResendID,
		Text:      text,
		ParseMode: telego.ModeHTML,
	})
	switch {
	case err == nil:
		p.notify(ctx, api, msg, "Изменение отправлено")
	case isNotModified(err):
		// Same text again, nothing to report.
	default:
		p.notify(ctx, api, msg, "Не получилось изменить сообщение =(\n"+err.Error())
	}
	return nil
}

// PropagateUserEdit relays an edited user message into the master chat
// as a fresh message threaded under the original relay.
func (p *EditPropagator) PropagateUserEdit(ctx context.Context, api Sender, botID int64, msg *telego.Message, settings *models.BotSettings) error {
	if msg.From == nil {
		return nil
	}

	link, err := p.links.FindLink(botID, models.LinkFilter{MessageID: msg.MessageID, ChatFromID: msg.Chat.ID})
	if err != nil {
		return err
	}
	if link == nil {
		p.notify(ctx, api, msg, "Не удалось отправить изменения =(")
		return nil
	}

	content := msg.Text
	if content == "" {
		content = msg.Caption
	}
	text := EscapeHTML(content) + "\n\n*** отредактировано ***\n\n" + SenderTag(msg.From)
	return p.engine.Resend(ctx, api, botID, msg, Options{
		ChatID:     settings.MasterChat,
		ThreadID:   settings.MasterThread,
		Text:       text,
		ReplyTo:    link.ResendID,
		MasterChat: settings.MasterChat,
	})
}

func (p *EditPropagator) notify(ctx context.Context, api Sender, msg *telego.Message, text string) {
	_, _ = api.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:          telego.ChatID{ID: msg.Chat.ID},
		MessageThreadID: msg.MessageThreadID,
		Text:            text,
		ReplyParameters: &telego.ReplyParameters{MessageID: msg.MessageID},
	})
}
