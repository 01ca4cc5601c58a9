package relay

import (
	"context"

	"github.com/mymmrac/telego"
)

// Sender is the slice of the Telegram API the relay needs. *telego.Bot
// satisfies it; tests substitute a recording fake.
type Sender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	SendPhoto(ctx context.Context, params *telego.SendPhotoParams) (*telego.Message, error)
	SendMediaGroup(ctx context.Context, params *telego.SendMediaGroupParams) ([]telego.Message, error)
	SendDocument(ctx context.Context, params *telego.SendDocumentParams) (*telego.Message, error)
	SendSticker(ctx context.Context, params *telego.SendStickerParams) (*telego.Message, error)
	SendAudio(ctx context.Context, params *telego.SendAudioParams) (*telego.Message, error)
	SendVideo(ctx context.Context, params *telego.SendVideoParams) (*telego.Message, error)
	SendVoice(ctx context.Context, params *telego.SendVoiceParams) (*telego.Message, error)
	SendVideoNote(ctx context.Context, params *telego.SendVideoNoteParams) (*telego.Message, error)
	SendAnimation(ctx context.Context, params *telego.SendAnimationParams) (*telego.Message, error)
	SendLocation(ctx context.Context, params *telego.SendLocationParams) (*telego.Message, error)
	SendContact(ctx context.Context, params *telego.SendContactParams) (*telego.Message, error)
	SendVenue(ctx context.Context, params *telego.SendVenueParams) (*telego.Message, error)
	EditMessageText(ctx context.Context, params *telego.EditMessageTextParams) (*telego.Message, error)
	EditMessageReplyMarkup(ctx context.Context, params *telego.EditMessageReplyMarkupParams) (*telego.Message, error)
	SetMessageReaction(ctx context.Context, params *telego.SetMessageReactionParams) error
	AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error
	DeleteMessage(ctx context.Context, params *telego.DeleteMessageParams) error
}

var _ Sender = (*telego.Bot)(nil)
