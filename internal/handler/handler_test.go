package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mymmrac/telego"

	"tg-support-relay/internal/customization"
	"tg-support-relay/internal/models"
	"tg-support-relay/internal/relay"
)

const (
	botID      = int64(100)
	masterChat = int64(-1001234)
	ownerID    = int64(1)
	userID     = int64(555)
	staffID    = int64(42)
)

type fixture struct {
	h        *Handlers
	api      *fakeAPI
	links    *memLinks
	aliases  *memAliases
	settings *memSettings
}

func newFixture(t *testing.T, mutate func(*models.BotSettings)) *fixture {
	t.Helper()

	row := &models.BotSettings{
		ID:         botID,
		Username:   "support_bot",
		Token:      "token",
		MasterChat: masterChat,
		OwnerID:    ownerID,
		Active:     true,
		BlockLinks: true,
		MarkBad:    true,
	}
	if mutate != nil {
		mutate(row)
	}

	links := &memLinks{}
	aliases := newMemAliases()
	settings := newMemSettings(row)
	engine := relay.NewEngine(links, time.Millisecond)
	h := New(settings, links, aliases, engine, customization.NewRegistry())
	return &fixture{h: h, api: newFakeAPI(), links: links, aliases: aliases, settings: settings}
}

func privateMessage(id int, text string) *telego.Message {
	return &telego.Message{
		MessageID: id,
		Chat:      telego.Chat{ID: userID, Type: telego.ChatTypePrivate},
		From:      &telego.User{ID: userID, FirstName: "John", LastName: "Doe", Username: "john"},
		Text:      text,
	}
}

func masterMessage(id int, from int64, text string) *telego.Message {
	return &telego.Message{
		MessageID: id,
		Chat:      telego.Chat{ID: masterChat, Type: telego.ChatTypeSupergroup},
		From:      &telego.User{ID: from, FirstName: "Alex"},
		Text:      text,
	}
}

func (f *fixture) seedRelayedLink(t *testing.T) {
	t.Helper()
	require.NoError(t, f.links.SaveLink(&models.MessageLink{
		BotID:      botID,
		MessageID:  10,
		ResendID:   20,
		ChatFromID: userID,
		ChatForID:  masterChat,
	}))
}

func TestUserMessageRelayedWithSenderTag(t *testing.T) {
	f := newFixture(t, nil)

	err := f.h.onMessage(context.Background(), f.api, botID, privateMessage(10, "help me"))
	require.NoError(t, err)

	sent := f.api.messages()
	require.Len(t, sent, 1)
	require.Equal(t, masterChat, sent[0].ChatID.ID)
	require.Contains(t, sent[0].Text, "help me")
	require.Contains(t, sent[0].Text, "#ID555 | John Doe | @john")

	require.Len(t, f.links.rows, 1)
	require.Equal(t, userID, f.links.rows[0].ChatFromID)
	require.Equal(t, masterChat, f.links.rows[0].ChatForID)
}

func TestUntrustedMediaRejectedWithSingleNotice(t *testing.T) {
	f := newFixture(t, nil)

	msg := privateMessage(10, "")
	msg.Photo = []telego.PhotoSize{{FileID: "x"}}
	msg.Caption = "pic"

	err := f.h.onMessage(context.Background(), f.api, botID, msg)
	require.NoError(t, err)

	sent := f.api.messages()
	require.Len(t, sent, 1)
	require.Equal(t, userID, sent[0].ChatID.ID, "notice goes to the user, nothing reaches the master chat")
	require.Equal(t, mediaBlockedNotice, sent[0].Text)
	require.Empty(t, f.api.photos)
	require.Empty(t, f.links.rows)
}

func TestRepliedUserMaySendMedia(t *testing.T) {
	f := newFixture(t, nil)
	f.seedRelayedLink(t)
	// A staff reply into the user chat is what establishes trust.
	require.NoError(t, f.links.SaveLink(&models.MessageLink{
		BotID: botID, MessageID: 21, ResendID: 22, ChatFromID: masterChat, ChatForID: userID,
	}))

	msg := privateMessage(30, "")
	msg.Photo = []telego.PhotoSize{{FileID: "x"}}

	err := f.h.onMessage(context.Background(), f.api, botID, msg)
	require.NoError(t, err)

	require.Len(t, f.api.photos, 1)
	require.Equal(t, masterChat, f.api.photos[0].ChatID.ID)
}

func TestLinkEntitiesBlockedEvenForTrustedUser(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.links.SaveLink(&models.MessageLink{
		BotID: botID, MessageID: 21, ResendID: 22, ChatFromID: masterChat, ChatForID: userID,
	}))

	msg := privateMessage(30, "buy at https://spam.example")
	msg.Entities = []telego.MessageEntity{{Type: telego.EntityTypeURL, Offset: 7, Length: 19}}

	err := f.h.onMessage(context.Background(), f.api, botID, msg)
	require.NoError(t, err)

	sent := f.api.messages()
	require.Len(t, sent, 1)
	require.Equal(t, linksBlockedNotice, sent[0].Text)
}

func TestIgnoredUserSilentlyDropped(t *testing.T) {
	f := newFixture(t, func(s *models.BotSettings) {
		s.IgnoreUsers = []int64{userID}
	})

	err := f.h.onMessage(context.Background(), f.api, botID, privateMessage(10, "hello"))
	require.NoError(t, err)
	require.Empty(t, f.api.messages())
}

func TestStartCommandSendsTenantGreeting(t *testing.T) {
	f := newFixture(t, func(s *models.BotSettings) {
		s.StartMessage = "Добро пожаловать в поддержку!"
	})

	err := f.h.onMessage(context.Background(), f.api, botID, privateMessage(10, "/start"))
	require.NoError(t, err)

	sent := f.api.messages()
	require.Len(t, sent, 1)
	require.Equal(t, "Добро пожаловать в поддержку!", sent[0].Text)
	require.Empty(t, f.links.rows, "commands are not relayed")
}

func TestAutoReplyAccompaniesEveryRelay(t *testing.T) {
	f := newFixture(t, func(s *models.BotSettings) {
		s.UseAutoReply = true
		s.AutoReply = "Оператор скоро ответит"
	})
	// Trust from an earlier staff reply does not switch the auto-reply
	// off.
	require.NoError(t, f.links.SaveLink(&models.MessageLink{
		BotID: botID, MessageID: 21, ResendID: 22, ChatFromID: masterChat, ChatForID: userID,
	}))

	err := f.h.onMessage(context.Background(), f.api, botID, privateMessage(10, "hello"))
	require.NoError(t, err)

	sent := f.api.messages()
	require.Len(t, sent, 2)
	require.Equal(t, masterChat, sent[0].ChatID.ID)
	require.Contains(t, sent[0].Text, "отправлен автоответ 🤖", "master copy notes the automated answer")
	require.Equal(t, userID, sent[1].ChatID.ID)
	require.Equal(t, "Оператор скоро ответит", sent[1].Text)
}

func TestUserReplyThreadsUnderStaffMessage(t *testing.T) {
	f := newFixture(t, nil)
	// Staff answer 30 was relayed into the user chat as message 40.
	require.NoError(t, f.links.SaveLink(&models.MessageLink{
		BotID: botID, MessageID: 30, ResendID: 40, ChatFromID: masterChat, ChatForID: userID,
	}))

	msg := privateMessage(50, "thanks, it worked")
	msg.ReplyToMessage = &telego.Message{
		MessageID: 40,
		Chat:      telego.Chat{ID: userID},
		From:      &telego.User{ID: botID, IsBot: true},
	}

	err := f.h.onMessage(context.Background(), f.api, botID, msg)
	require.NoError(t, err)

	sent := f.api.messages()
	require.Len(t, sent, 1)
	require.Equal(t, masterChat, sent[0].ChatID.ID)
	require.NotNil(t, sent[0].ReplyParameters)
	require.Equal(t, 30, sent[0].ReplyParameters.MessageID, "threads under the staff's master-chat message")
}

func TestUserReplyToUntrackedMessageNotThreaded(t *testing.T) {
	f := newFixture(t, nil)

	msg := privateMessage(50, "hello again")
	msg.ReplyToMessage = &telego.Message{
		MessageID: 7,
		Chat:      telego.Chat{ID: userID},
		From:      &telego.User{ID: userID},
	}

	err := f.h.onMessage(context.Background(), f.api, botID, msg)
	require.NoError(t, err)

	sent := f.api.messages()
	require.Len(t, sent, 1)
	require.Nil(t, sent[0].ReplyParameters)
}

func TestStaffReplyRoutedBackToUser(t *testing.T) {
	f := newFixture(t, nil)
	f.seedRelayedLink(t)
	require.NoError(t, f.aliases.SetAlias(botID, staffID, "Alex"))

	msg := masterMessage(30, staffID, "try rebooting")
	msg.ReplyToMessage = &telego.Message{
		MessageID: 20,
		Chat:      telego.Chat{ID: masterChat},
		From:      &telego.User{ID: botID, IsBot: true},
	}

	err := f.h.onMessage(context.Background(), f.api, botID, msg)
	require.NoError(t, err)

	sent := f.api.messages()
	require.Len(t, sent, 1)
	require.Equal(t, userID, sent[0].ChatID.ID)
	require.Contains(t, sent[0].Text, "try rebooting")
	require.Contains(t, sent[0].Text, "Вам ответил Alex")
	require.Equal(t, 10, sent[0].ReplyParameters.MessageID, "threaded under the user's original")

	last := f.links.rows[len(f.links.rows)-1]
	require.NotNil(t, last.UserID)
	require.Equal(t, staffID, *last.UserID)
}

func TestStaffReplyWithoutAliasBlocked(t *testing.T) {
	f := newFixture(t, nil)
	f.seedRelayedLink(t)

	msg := masterMessage(30, staffID, "reply")
	msg.ReplyToMessage = &telego.Message{
		MessageID: 20,
		Chat:      telego.Chat{ID: masterChat},
		From:      &telego.User{ID: botID, IsBot: true},
	}

	err := f.h.onMessage(context.Background(), f.api, botID, msg)
	require.NoError(t, err)

	sent := f.api.messages()
	require.Len(t, sent, 1)
	require.Equal(t, masterChat, sent[0].ChatID.ID)
	require.Contains(t, sent[0].Text, "/myname")
}

func TestMasterChatterGetsBadMark(t *testing.T) {
	f := newFixture(t, nil)

	err := f.h.onMessage(context.Background(), f.api, botID, masterMessage(30, staffID, "who is on shift?"))
	require.NoError(t, err)

	require.Empty(t, f.api.messages())
	require.Len(t, f.api.reactions, 1)
	emoji := f.api.reactions[0].Reaction[0].(*telego.ReactionTypeEmoji)
	require.Equal(t, "🙈", emoji.Emoji)
}

func TestMyNameRejectsTakenAlias(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.aliases.SetAlias(botID, 99, "Alex"))

	err := f.h.onMessage(context.Background(), f.api, botID, masterMessage(30, staffID, "/myname Alex"))
	require.NoError(t, err)

	sent := f.api.messages()
	require.Len(t, sent, 1)
	require.Equal(t, "Псевдоним Alex уже занят", sent[0].Text)
	name, _ := f.aliases.GetAlias(botID, staffID)
	require.Nil(t, name)
}

func TestMyNameSetsAlias(t *testing.T) {
	f := newFixture(t, nil)

	err := f.h.onMessage(context.Background(), f.api, botID, masterMessage(30, staffID, "/myname Мария"))
	require.NoError(t, err)

	alias, err := f.aliases.GetAlias(botID, staffID)
	require.NoError(t, err)
	require.NotNil(t, alias)
	require.Equal(t, "Мария", alias.Name)
}

func TestIgnoreToggleById(t *testing.T) {
	f := newFixture(t, nil)

	err := f.h.onMessage(context.Background(), f.api, botID, masterMessage(30, staffID, "/ignore 555"))
	require.NoError(t, err)
	require.True(t, f.settings.Get(botID).IsIgnored(userID))

	err = f.h.onMessage(context.Background(), f.api, botID, masterMessage(31, staffID, "/ignore 555"))
	require.NoError(t, err)
	require.False(t, f.settings.Get(botID).IsIgnored(userID))
}

func TestBroadcastAggregatesFailures(t *testing.T) {
	f := newFixture(t, nil)
	f.seedRelayedLink(t)
	require.NoError(t, f.links.SaveLink(&models.MessageLink{
		BotID: botID, MessageID: 11, ResendID: 21, ChatFromID: 556, ChatForID: masterChat,
	}))
	f.api.failChats[556] = errors.New("api: 403 Forbidden: bot was blocked by the user")

	err := f.h.onMessage(context.Background(), f.api, botID, masterMessage(30, ownerID, "/send Сервис обновлён"))
	require.NoError(t, err)

	sent := f.api.messages()
	summary := sent[len(sent)-1]
	require.Equal(t, masterChat, summary.ChatID.ID)
	require.Contains(t, summary.Text, "отправлено 1")
	require.Contains(t, summary.Text, "ошибок 1")
}

func TestBroadcastOwnerOnly(t *testing.T) {
	f := newFixture(t, nil)
	f.seedRelayedLink(t)

	err := f.h.onMessage(context.Background(), f.api, botID, masterMessage(30, staffID, "/send hi"))
	require.NoError(t, err)

	sent := f.api.messages()
	require.Len(t, sent, 1)
	require.Contains(t, sent[0].Text, "владельцу")
}

func TestLinkConfirmationOwnerOnly(t *testing.T) {
	f := newFixture(t, func(s *models.BotSettings) {
		s.Active = false
		s.MasterChat = 0
	})

	newChat := int64(-1009999)
	prompt := &telego.Message{
		MessageID: 5,
		Chat:      telego.Chat{ID: newChat, Type: telego.ChatTypeSupergroup},
	}

	err := f.h.onCallback(context.Background(), f.api, botID, telego.CallbackQuery{
		ID:      "q1",
		From:    telego.User{ID: staffID},
		Data:    callbackLinkYes,
		Message: prompt,
	})
	require.NoError(t, err)
	require.Contains(t, f.api.answers[0], "владелец")
	require.False(t, f.settings.Get(botID).Active)

	err = f.h.onCallback(context.Background(), f.api, botID, telego.CallbackQuery{
		ID:      "q2",
		From:    telego.User{ID: ownerID},
		Data:    callbackLinkYes,
		Message: prompt,
	})
	require.NoError(t, err)

	updated := f.settings.Get(botID)
	require.True(t, updated.Active)
	require.Equal(t, newChat, updated.MasterChat)
	require.Len(t, f.api.edits, 1)
}

func TestMigrationParksTenantUntilRelink(t *testing.T) {
	f := newFixture(t, nil)

	newChat := int64(-1005678)
	msg := masterMessage(30, 0, "")
	msg.From = nil
	msg.MigrateToChatID = newChat

	err := f.h.onMessage(context.Background(), f.api, botID, msg)
	require.NoError(t, err)

	updated := f.settings.Get(botID)
	require.False(t, updated.Active)
	require.Zero(t, updated.MasterChat)

	sent := f.api.messages()
	require.Len(t, sent, 1)
	require.Equal(t, newChat, sent[0].ChatID.ID)
	require.Contains(t, sent[0].Text, "/link")
}

func TestReactionUpdateRoutedToPropagator(t *testing.T) {
	f := newFixture(t, nil)
	f.seedRelayedLink(t)

	err := f.h.onUpdate(context.Background(), f.api, botID, telego.Update{
		MessageReaction: &telego.MessageReactionUpdated{
			Chat:      telego.Chat{ID: masterChat},
			MessageID: 20,
			NewReaction: []telego.ReactionType{
				&telego.ReactionTypeEmoji{Type: telego.ReactionEmoji, Emoji: "❤"},
			},
		},
	})
	require.NoError(t, err)

	require.Len(t, f.api.reactions, 2)
	require.Equal(t, userID, f.api.reactions[0].ChatID.ID)
	require.Equal(t, 10, f.api.reactions[0].MessageID)
}

func TestBotRemovalDeactivatesTenant(t *testing.T) {
	f := newFixture(t, nil)

	err := f.h.onUpdate(context.Background(), f.api, botID, telego.Update{
		MyChatMember: &telego.ChatMemberUpdated{
			Chat:          telego.Chat{ID: masterChat, Title: "Support"},
			OldChatMember: &telego.ChatMemberMember{Status: telego.MemberStatusMember},
			NewChatMember: &telego.ChatMemberLeft{Status: telego.MemberStatusLeft},
		},
	})
	require.NoError(t, err)
	require.False(t, f.settings.Get(botID).Active)
}

func TestCommandParsing(t *testing.T) {
	require.Equal(t, "myname", commandName(&telego.Message{Text: "/myname Alex"}))
	require.Equal(t, "myname", commandName(&telego.Message{Text: "/MyName@support_bot Alex"}))
	require.Equal(t, "", commandName(&telego.Message{Text: "hello /myname"}))
	require.Equal(t, "", commandName(&telego.Message{Text: ""}))

	require.Equal(t, "Alex", commandArgs(&telego.Message{Text: "/myname Alex"}))
	require.Equal(t, "два слова", commandArgs(&telego.Message{Text: "/send  два слова"}))
	require.Equal(t, "", commandArgs(&telego.Message{Text: "/stats"}))
}
