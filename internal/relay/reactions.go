package relay

import (
	"context"

	"github.com/mymmrac/telego"

	"tg-support-relay/internal/logger"
	"tg-support-relay/internal/models"
)

const (
	ackEmoji    = "👍"
	markerEmoji = "👀"
)

// ReactionPropagator mirrors a reaction set on either endpoint of a
// relayed message onto its counterpart, then acknowledges the origin.
type ReactionPropagator struct {
	links LinkStore
}

func NewReactionPropagator(links LinkStore) *ReactionPropagator {
	return &ReactionPropagator{links: links}
}

// Propagate handles one message_reaction update. Reaction removals
// (empty new set) are ignored. When the reacted message is not a known
// relay endpoint and the tenant marks unmatched reactions, master-chat
// reactions get a 👀 marker instead.
func (p *ReactionPropagator) Propagate(ctx context.Context, api Sender, botID int64, upd *telego.MessageReactionUpdated, settings *models.BotSettings) error {
	if len(upd.NewReaction) == 0 {
		return nil
	}

	// The reacted message may be the relayed copy (resend side) or the
	// original; try the copy first, then the other direction.
	counterChat, counterMsg, found, err := p.findCounterpart(botID, upd.Chat.ID, upd.MessageID)
	if err != nil {
		return err
	}
	if !found {
		if upd.Chat.ID == settings.MasterChat && settings.MarkBad {
			p.setReaction(ctx, api, upd.Chat.ID, upd.MessageID, markerEmoji)
		}
		return nil
	}

	// Mirror the first reaction only; Telegram bots may set a single
	// reaction per message.
	err = api.SetMessageReaction(ctx, &telego.SetMessageReactionParams{
		ChatID:    telego.ChatID{ID: counterChat},
		MessageID: counterMsg,
		Reaction:  []telego.ReactionType{upd.NewReaction[0]},
	})
	if err != nil && !isNotModified(err) {
		logger.Warningf("reaction mirror to chat %d failed: %v", counterChat, err)
		return nil
	}

	p.setReaction(ctx, api, upd.Chat.ID, upd.MessageID, ackEmoji)
	return nil
}

func (p *ReactionPropagator) findCounterpart(botID, chatID int64, messageID int) (int64, int, bool, error) {
	link, err := p.links.FindLink(botID, models.LinkFilter{ResendID: messageID, ChatForID: chatID})
	if err != nil {
		return 0, 0, false, err
	}
	if link != nil {
		return link.ChatFromID, link.MessageID, true, nil
	}

	link, err = p.links.FindLink(botID, models.LinkFilter{MessageID: messageID, ChatFromID: chatID})
	if err != nil {
		return 0, 0, false, err
	}
	if link != nil {
		return link.ChatForID, link.ResendID, true, nil
	}
	return 0, 0, false, nil
}

func (p *ReactionPropagator) setReaction(ctx context.Context, api Sender, chatID int64, messageID int, emoji string) {
	err := api.SetMessageReaction(ctx, &telego.SetMessageReactionParams{
		ChatID:    telego.ChatID{ID: chatID},
		MessageID: messageID,
		Reaction: []telego.ReactionType{
			&telego.ReactionTypeEmoji{Type: telego.ReactionEmoji, Emoji: emoji},
		},
	})
	if err != nil && !isNotModified(err) {
		logger.Warningf("reaction %s on chat %d message %d failed: %v", emoji, chatID, messageID, err)
	}
}
