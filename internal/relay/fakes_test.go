package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/mymmrac/telego"

	"tg-support-relay/internal/models"
)

type sentCall struct {
	kind    string
	chatID  int64
	thread  int
	text    string
	fileID  string
	replyTo int
}

// fakeSender records outbound API calls and can be scripted to fail
// per content kind, either always or only while a reply is attached.
type fakeSender struct {
	mu     sync.Mutex
	nextID int

	sent      []sentCall
	groups    []*telego.SendMediaGroupParams
	edits     []*telego.EditMessageTextParams
	reactions []*telego.SetMessageReactionParams

	failKinds     map[string]error
	failWithReply map[string]bool
	editErr       error
	reactionErr   error
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		failKinds:     map[string]error{},
		failWithReply: map[string]bool{},
	}
}

func (f *fakeSender) record(kind string, chatID int64, thread int, text, fileID string, reply *telego.ReplyParameters) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failKinds[kind]; ok {
		return nil, err
	}
	if f.failWithReply[kind] && reply != nil {
		return nil, errors.New("telego: sendMessage: api: 400 Bad Request: message to reply not found")
	}

	f.nextID++
	replyTo := 0
	if reply != nil {
		replyTo = reply.MessageID
	}
	f.sent = append(f.sent, sentCall{kind: kind, chatID: chatID, thread: thread, text: text, fileID: fileID, replyTo: replyTo})
	return &telego.Message{MessageID: f.nextID, Chat: telego.Chat{ID: chatID}}, nil
}

func (f *fakeSender) calls() []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]sentCall, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeSender) SendMessage(ctx context.Context, p *telego.SendMessageParams) (*telego.Message, error) {
	return f.record("message", p.ChatID.ID, p.MessageThreadID, p.Text, "", p.ReplyParameters)
}

func (f *fakeSender) SendPhoto(ctx context.Context, p *telego.SendPhotoParams) (*telego.Message, error) {
	return f.record("photo", p.ChatID.ID, p.MessageThreadID, "", p.Photo.FileID, p.ReplyParameters)
}

func (f *fakeSender) SendMediaGroup(ctx context.Context, p *telego.SendMediaGroupParams) ([]telego.Message, error) {
	f.mu.Lock()
	if err, ok := f.failKinds["mediaGroup"]; ok {
		f.mu.Unlock()
		return nil, err
	}
	f.groups = append(f.groups, p)
	out := make([]telego.Message, 0, len(p.Media))
	for range p.Media {
		f.nextID++
		out = append(out, telego.Message{MessageID: f.nextID, Chat: telego.Chat{ID: p.ChatID.ID}})
	}
	f.mu.Unlock()
	return out, nil
}

func (f *fakeSender) SendDocument(ctx context.Context, p *telego.SendDocumentParams) (*telego.Message, error) {
	return f.record("document", p.ChatID.ID, p.MessageThreadID, "", p.Document.FileID, p.ReplyParameters)
}

func (f *fakeSender) SendSticker(ctx context.Context, p *telego.SendStickerParams) (*telego.Message, error) {
	return f.record("sticker", p.ChatID.ID, p.MessageThreadID, "", p.Sticker.FileID, p.ReplyParameters)
}

func (f *fakeSender) SendAudio(ctx context.Context, p *telego.SendAudioParams) (*telego.Message, error) {
	return f.record("audio", p.ChatID.ID, p.MessageThreadID, "", p.Audio.FileID, p.ReplyParameters)
}

func (f *fakeSender) SendVideo(ctx context.Context, p *telego.SendVideoParams) (*telego.Message, error) {
	return f.record("video", p.ChatID.ID, p.MessageThreadID, "", p.Video.FileID, p.ReplyParameters)
}

func (f *fakeSender) SendVoice(ctx context.Context, p *telego.SendVoiceParams) (*telego.Message, error) {
	return f.record("voice", p.ChatID.ID, p.MessageThreadID, "", p.Voice.FileID, p.ReplyParameters)
}

func (f *fakeSender) SendVideoNote(ctx context.Context, p *telego.SendVideoNoteParams) (*telego.Message, error) {
	return f.record("videoNote", p.ChatID.ID, p.MessageThreadID, "", p.VideoNote.FileID, p.ReplyParameters)
}

func (f *fakeSender) SendAnimation(ctx context.Context, p *telego.SendAnimationParams) (*telego.Message, error) {
	return f.record("animation", p.ChatID.ID, p.MessageThreadID, "", p.Animation.FileID, p.ReplyParameters)
}

func (f *fakeSender) SendLocation(ctx context.Context, p *telego.SendLocationParams) (*telego.Message, error) {
	return f.record("location", p.ChatID.ID, p.MessageThreadID, "", "", p.ReplyParameters)
}

func (f *fakeSender) SendContact(ctx context.Context, p *telego.SendContactParams) (*telego.Message, error) {
	return f.record("contact", p.ChatID.ID, p.MessageThreadID, p.PhoneNumber, "", p.ReplyParameters)
}

func (f *fakeSender) SendVenue(ctx context.Context, p *telego.SendVenueParams) (*telego.Message, error) {
	return f.record("venue", p.ChatID.ID, p.MessageThreadID, p.Title, "", p.ReplyParameters)
}

func (f *fakeSender) EditMessageText(ctx context.Context, p *telego.EditMessageTextParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.editErr != nil {
		return nil, f.editErr
	}
	f.edits = append(f.edits, p)
	return &telego.Message{MessageID: p.MessageID, Chat: telego.Chat{ID: p.ChatID.ID}}, nil
}

func (f *fakeSender) EditMessageReplyMarkup(ctx context.Context, p *telego.EditMessageReplyMarkupParams) (*telego.Message, error) {
	return &telego.Message{MessageID: p.MessageID, Chat: telego.Chat{ID: p.ChatID.ID}}, nil
}

func (f *fakeSender) SetMessageReaction(ctx context.Context, p *telego.SetMessageReactionParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.reactionErr != nil {
		return f.reactionErr
	}
	f.reactions = append(f.reactions, p)
	return nil
}

func (f *fakeSender) AnswerCallbackQuery(ctx context.Context, p *telego.AnswerCallbackQueryParams) error {
	return nil
}

func (f *fakeSender) DeleteMessage(ctx context.Context, p *telego.DeleteMessageParams) error {
	return nil
}

var _ Sender = (*fakeSender)(nil)

// fakeLinks is an in-memory LinkStore.
type fakeLinks struct {
	mu      sync.Mutex
	rows    []models.MessageLink
	saveErr error
}

func (f *fakeLinks) SaveLink(link *models.MessageLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.saveErr != nil {
		return f.saveErr
	}
	link.ID = uint(len(f.rows) + 1)
	f.rows = append(f.rows, *link)
	return nil
}

func (f *fakeLinks) FindLink(botID int64, filter models.LinkFilter) (*models.MessageLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.rows {
		row := f.rows[i]
		if row.BotID != botID {
			continue
		}
		if filter.MessageID != 0 && row.MessageID != filter.MessageID {
			continue
		}
		if filter.ResendID != 0 && row.ResendID != filter.ResendID {
			continue
		}
		if filter.ChatFromID != 0 && row.ChatFromID != filter.ChatFromID {
			continue
		}
		if filter.ChatForID != 0 && row.ChatForID != filter.ChatForID {
			continue
		}
		return &row, nil
	}
	return nil, nil
}

func (f *fakeLinks) HasAnyLinkTo(botID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.rows {
		if f.rows[i].BotID == botID && f.rows[i].ChatForID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLinks) all() []models.MessageLink {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]models.MessageLink, len(f.rows))
	copy(out, f.rows)
	return out
}

// fakeAliases is an in-memory AliasStore.
type fakeAliases struct {
	names map[int64]string
}

func (f *fakeAliases) GetAlias(botID, userID int64) (*models.AgentAlias, error) {
	name, ok := f.names[userID]
	if !ok {
		return nil, nil
	}
	return &models.AgentAlias{BotID: botID, UserID: userID, Name: name}, nil
}
