package relay

import (
	"context"
	"time"

	"github.com/mymmrac/telego"

	"tg-support-relay/internal/logger"
	"tg-support-relay/internal/models"
)

// LinkStore persists the bidirectional mapping between an original
// message and its relayed counterpart.
type LinkStore interface {
	SaveLink(link *models.MessageLink) error
	FindLink(botID int64, filter models.LinkFilter) (*models.MessageLink, error)
	HasAnyLinkTo(botID, userID int64) (bool, error)
}

// Options directs a single relay operation.
type Options struct {
	// ChatID is the destination chat, ThreadID the forum topic inside it
	// (zero for none).
	ChatID   int64
	ThreadID int

	// Text is the trailing text message sent after all media. It carries
	// the sender tag or the agent reply and is always sent, so its id is
	// the one later edits and reactions resolve against.
	Text string

	// ReplyTo, when non-zero, threads every send under that message in
	// the destination chat. If Telegram reports the target missing the
	// send is retried once without it.
	ReplyTo     int
	ReplyMarkup telego.ReplyMarkup

	// AgentID attributes the relayed copy to a staff member, nil for
	// messages originating from users.
	AgentID *int64

	// MasterChat selects error verbosity: failures relaying out of the
	// master chat are reported back verbatim, failures elsewhere get a
	// generic notice.
	MasterChat int64

	// DoException makes Resend return the raw error instead of
	// reporting it into the source chat. Used by fan-out callers that
	// aggregate results themselves.
	DoException bool
}

// Engine copies a message into another chat content type by content
// type, records a link row per copy and finishes with the trailing text
// send.
type Engine struct {
	links      LinkStore
	batcher    *AlbumBatcher
	flushDelay time.Duration
}

func NewEngine(links LinkStore, flushDelay time.Duration) *Engine {
	return &Engine{
		links:      links,
		batcher:    NewAlbumBatcher(),
		flushDelay: flushDelay,
	}
}

// Resend relays msg into opts.ChatID via api. On failure the error is
// reported into the source chat (raw for the master chat, generic
// otherwise) unless opts.DoException asks for it back.
func (e *Engine) Resend(ctx context.Context, api Sender, botID int64, msg *telego.Message, opts Options) error {
	err := e.resend(ctx, api, botID, msg, opts)
	if err == nil {
		return nil
	}
	if opts.DoException {
		return err
	}
	e.reportSendError(ctx, api, msg, opts, err)
	return nil
}

func (e *Engine) resend(ctx context.Context, api Sender, botID int64, msg *telego.Message, opts Options) error {
	chatID := telego.ChatID{ID: opts.ChatID}

	if len(msg.Photo) > 0 {
		if msg.MediaGroupID != "" {
			fileID := msg.Photo[len(msg.Photo)-1].FileID
			e.batcher.Collect(botID, msg.MediaGroupID, fileID, e.flushDelay, func(fileIDs []string) {
				e.flushAlbum(api, botID, msg, opts, fileIDs)
			})
			// The batch flush sends the media group and the trailing
			// text once the album is complete.
			return nil
		}
		sent, err := e.sendWithRetry(opts.ReplyTo, func(reply *telego.ReplyParameters) (*telego.Message, error) {
			return api.SendPhoto(ctx, &telego.SendPhotoParams{
				ChatID:          chatID,
				MessageThreadID: opts.ThreadID,
				Photo:           telego.InputFile{FileID: msg.Photo[len(msg.Photo)-1].FileID},
				ReplyParameters: reply,
			})
		})
		if err != nil {
			return err
		}
		if err := e.saveLink(botID, msg, sent, opts); err != nil {
			return err
		}
	}
	if msg.Document != nil {
		sent, err := e.sendWithRetry(opts.ReplyTo, func(reply *telego.ReplyParameters) (*telego.Message, error) {
			return api.SendDocument(ctx, &telego.SendDocumentParams{
				ChatID:          chatID,
				MessageThreadID: opts.ThreadID,
				Document:        telego.InputFile{FileID: msg.Document.FileID},
				ReplyParameters: reply,
			})
		})
		if err != nil {
			return err
		}
		if err := e.saveLink(botID, msg, sent, opts); err != nil {
			return err
		}
	}
	if msg.Sticker != nil {
		sent, err := e.sendWithRetry(opts.ReplyTo, func(reply *telego.ReplyParameters) (*telego.Message, error) {
			return api.SendSticker(ctx, &telego.SendStickerParams{
				ChatID:          chatID,
				MessageThreadID: opts.ThreadID,
				Sticker:         telego.InputFile{FileID: msg.Sticker.FileID},
				ReplyParameters: reply,
			})
		})
		if err != nil {
			return err
		}
		if err := e.saveLink(botID, msg, sent, opts); err != nil {
			return err
		}
	}
	if msg.Audio != nil {
		sent, err := e.sendWithRetry(opts.ReplyTo, func(reply *telego.ReplyParameters) (*telego.Message, error) {
			return api.SendAudio(ctx, &telego.SendAudioParams{
				ChatID:          chatID,
				MessageThreadID: opts.ThreadID,
				Audio:           telego.InputFile{FileID: msg.Audio.FileID},
				ReplyParameters: reply,
			})
		})
		if err != nil {
			return err
		}
		if err := e.saveLink(botID, msg, sent, opts); err != nil {
			return err
		}
	}
	if msg.Video != nil {
		sent, err := e.sendWithRetry(opts.ReplyTo, func(reply *telego.ReplyParameters) (*telego.Message, error) {
			return api.SendVideo(ctx, &telego.SendVideoParams{
				ChatID:          chatID,
				MessageThreadID: opts.ThreadID,
				Video:           telego.InputFile{FileID: msg.Video.FileID},
				ReplyParameters: reply,
			})
		})
		if err != nil {
			return err
		}
		if err := e.saveLink(botID, msg, sent, opts); err != nil {
			return err
		}
	}
	if msg.Voice != nil {
		sent, err := e.sendWithRetry(opts.ReplyTo, func(reply *telego.ReplyParameters) (*telego.Message, error) {
			return api.SendVoice(ctx, &telego.SendVoiceParams{
				ChatID:          chatID,
				MessageThreadID: opts.ThreadID,
				Voice:           telego.InputFile{FileID: msg.Voice.FileID},
				ReplyParameters: reply,
			})
		})
		if err != nil {
			return err
		}
		if err := e.saveLink(botID, msg, sent, opts); err != nil {
			return err
		}
	}
	if msg.VideoNote != nil {
		sent, err := e.sendWithRetry(opts.ReplyTo, func(reply *telego.ReplyParameters) (*telego.Message, error) {
			return api.SendVideoNote(ctx, &telego.SendVideoNoteParams{
				ChatID:          chatID,
				MessageThreadID: opts.ThreadID,
				VideoNote:       telego.InputFile{FileID: msg.VideoNote.FileID},
				ReplyParameters: reply,
			})
		})
		if err != nil {
			return err
		}
		if err := e.saveLink(botID, msg, sent, opts); err != nil {
			return err
		}
	}
	if msg.Animation != nil {
		sent, err := e.sendWithRetry(opts.ReplyTo, func(reply *telego.ReplyParameters) (*telego.Message, error) {
			return api.SendAnimation(ctx, &telego.SendAnimationParams{
				ChatID:          chatID,
				MessageThreadID: opts.ThreadID,
				Animation:       telego.InputFile{FileID: msg.Animation.FileID},
				ReplyParameters: reply,
			})
		})
		if err != nil {
			return err
		}
		if err := e.saveLink(botID, msg, sent, opts); err != nil {
			return err
		}
	}
	if msg.Venue != nil {
		sent, err := e.sendWithRetry(opts.ReplyTo, func(reply *telego.ReplyParameters) (*telego.Message, error) {
			return api.SendVenue(ctx, &telego.SendVenueParams{
				ChatID:          chatID,
				MessageThreadID: opts.ThreadID,
				Latitude:        msg.Venue.Location.Latitude,
				Longitude:       msg.Venue.Location.Longitude,
				Title:           msg.Venue.Title,
				Address:         msg.Venue.Address,
				ReplyParameters: reply,
			})
		})
		if err != nil {
			return err
		}
		if err := e.saveLink(botID, msg, sent, opts); err != nil {
			return err
		}
	} else if msg.Location != nil {
		sent, err := e.sendWithRetry(opts.ReplyTo, func(reply *telego.ReplyParameters) (*telego.Message, error) {
			return api.SendLocation(ctx, &telego.SendLocationParams{
				ChatID:          chatID,
				MessageThreadID: opts.ThreadID,
				Latitude:        msg.Location.Latitude,
				Longitude:       msg.Location.Longitude,
				ReplyParameters: reply,
			})
		})
		if err != nil {
			return err
		}
		if err := e.saveLink(botID, msg, sent, opts); err != nil {
			return err
		}
	}
	if msg.Contact != nil {
		sent, err := e.sendWithRetry(opts.ReplyTo, func(reply *telego.ReplyParameters) (*telego.Message, error) {
			return api.SendContact(ctx, &telego.SendContactParams{
				ChatID:          chatID,
				MessageThreadID: opts.ThreadID,
				PhoneNumber:     msg.Contact.PhoneNumber,
				FirstName:       msg.Contact.FirstName,
				LastName:        msg.Contact.LastName,
				ReplyParameters: reply,
			})
		})
		if err != nil {
			return err
		}
		if err := e.saveLink(botID, msg, sent, opts); err != nil {
			return err
		}
	}

	return e.sendTrailingText(ctx, api, botID, msg, opts)
}

// sendTrailingText finishes a relay with the text part. It is always
// sent, even when the text only carries the sender tag, so that every
// relayed message has a text counterpart to reply to.
func (e *Engine) sendTrailingText(ctx context.Context, api Sender, botID int64, msg *telego.Message, opts Options) error {
	sent, err := e.sendWithRetry(opts.ReplyTo, func(reply *telego.ReplyParameters) (*telego.Message, error) {
		return api.SendMessage(ctx, &telego.SendMessageParams{
			ChatID:          telego.ChatID{ID: opts.ChatID},
			MessageThreadID: opts.ThreadID,
			Text:            opts.Text,
			ParseMode:       telego.ModeHTML,
			ReplyParameters: reply,
			ReplyMarkup:     opts.ReplyMarkup,
		})
	})
	if err != nil {
		return err
	}
	return e.saveLink(botID, msg, sent, opts)
}

func (e *Engine) flushAlbum(api Sender, botID int64, msg *telego.Message, opts Options, fileIDs []string) {
	ctx := context.Background()

	media := make([]telego.InputMedia, 0, len(fileIDs))
	for _, id := range fileIDs {
		media = append(media, &telego.InputMediaPhoto{
			Type:  telego.MediaTypePhoto,
			Media: telego.InputFile{FileID: id},
		})
	}

	var sent []telego.Message
	_, err := e.sendWithRetry(opts.ReplyTo, func(reply *telego.ReplyParameters) (*telego.Message, error) {
		var groupErr error
		sent, groupErr = api.SendMediaGroup(ctx, &telego.SendMediaGroupParams{
			ChatID:          telego.ChatID{ID: opts.ChatID},
			MessageThreadID: opts.ThreadID,
			Media:           media,
			ReplyParameters: reply,
		})
		return nil, groupErr
	})
	if err != nil {
		e.reportSendError(ctx, api, msg, opts, err)
		return
	}

	for i := range sent {
		if err := e.saveLink(botID, msg, &sent[i], opts); err != nil {
			logger.Errorf("album link save failed for bot %d: %v", botID, err)
		}
	}

	if err := e.sendTrailingText(ctx, api, botID, msg, opts); err != nil {
		e.reportSendError(ctx, api, msg, opts, err)
	}
}

func (e *Engine) sendWithRetry(replyTo int, send func(reply *telego.ReplyParameters) (*telego.Message, error)) (*telego.Message, error) {
	var reply *telego.ReplyParameters
	if replyTo != 0 {
		reply = &telego.ReplyParameters{MessageID: replyTo}
	}
	sent, err := send(reply)
	if err != nil && reply != nil && isReplyNotFound(err) {
		sent, err = send(nil)
	}
	return sent, err
}

func (e *Engine) saveLink(botID int64, msg *telego.Message, sent *telego.Message, opts Options) error {
	return e.links.SaveLink(&models.MessageLink{
		BotID:      botID,
		UserID:     opts.AgentID,
		MessageID:  msg.MessageID,
		ResendID:   sent.MessageID,
		ChatFromID: msg.Chat.ID,
		ChatForID:  sent.Chat.ID,
	})
}

func (e *Engine) reportSendError(ctx context.Context, api Sender, msg *telego.Message, opts Options, sendErr error) {
	logger.Errorf("relay to chat %d failed: %v", opts.ChatID, sendErr)

	text := "Send error =("
	if msg.Chat.ID == opts.MasterChat {
		text = "Ошибка отправки:\n" + sendErr.Error()
	}
	_, err := api.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:          telego.ChatID{ID: msg.Chat.ID},
		MessageThreadID: msg.MessageThreadID,
		Text:            text,
		ReplyParameters: &telego.ReplyParameters{MessageID: msg.MessageID},
	})
	if err != nil {
		logger.Errorf("error notice to chat %d failed: %v", msg.Chat.ID, err)
	}
}
