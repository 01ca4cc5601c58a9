package relay

import (
	"github.com/mymmrac/telego"
)

// Verdict is the outcome of the inbound message gate.
type Verdict int

const (
	// VerdictAllow lets the message through to the relay.
	VerdictAllow Verdict = iota
	// VerdictMediaBlocked rejects non-text content from users nobody
	// has replied to yet.
	VerdictMediaBlocked
	// VerdictLinkBlocked rejects messages carrying links or mention
	// entities when the tenant forbids them.
	VerdictLinkBlocked
)

var blockedEntityTypes = map[string]bool{
	telego.EntityTypeURL:         true,
	telego.EntityTypeTextLink:    true,
	telego.EntityTypeMention:     true,
	telego.EntityTypeTextMention: true,
	telego.EntityTypeHashtag:     true,
	telego.EntityTypeCashtag:     true,
}

// Evaluate gates a private message from a user. Untrusted users (no
// staff reply recorded yet) may only send plain text. The link check
// applies to everyone regardless of trust.
func Evaluate(msg *telego.Message, trusted, blockLinks bool) Verdict {
	if !trusted && !isPlainText(msg) {
		return VerdictMediaBlocked
	}
	if blockLinks && hasBlockedEntities(msg) {
		return VerdictLinkBlocked
	}
	return VerdictAllow
}

func isPlainText(msg *telego.Message) bool {
	if msg.Text == "" {
		return false
	}
	return len(msg.Photo) == 0 &&
		msg.Document == nil &&
		msg.Sticker == nil &&
		msg.Audio == nil &&
		msg.Video == nil &&
		msg.Voice == nil &&
		msg.VideoNote == nil &&
		msg.Animation == nil &&
		msg.Location == nil &&
		msg.Contact == nil &&
		msg.Venue == nil
}

func hasBlockedEntities(msg *telego.Message) bool {
	for _, entity := range msg.Entities {
		if blockedEntityTypes[entity.Type] {
			return true
		}
	}
	for _, entity := range msg.CaptionEntities {
		if blockedEntityTypes[entity.Type] {
			return true
		}
	}
	return false
}
