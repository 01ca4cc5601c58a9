// Package customization lets individual tenants extend the relay with
// bot-specific behavior: extra inline keyboards on relayed messages
// and handlers for the callbacks those keyboards produce.
package customization

import (
	"context"

	"github.com/mymmrac/telego"

	"tg-support-relay/internal/relay"
)

// Customization is the per-tenant extension point.
type Customization interface {
	// ExtraText returns a line appended to the trailing text of a
	// message relayed into the master chat, or "".
	ExtraText(botID int64, msg *telego.Message) string

	// Keyboard returns the inline keyboard attached to the trailing
	// text of a message relayed into the master chat, or nil.
	Keyboard(botID int64, msg *telego.Message) telego.ReplyMarkup

	// HandleCallback processes a callback query and reports whether it
	// recognized the callback data.
	HandleCallback(ctx context.Context, api relay.Sender, botID int64, query telego.CallbackQuery) (bool, error)
}

// Default is the no-op customization applied to tenants without one.
type Default struct{}

func (Default) ExtraText(botID int64, msg *telego.Message) string { return "" }

func (Default) Keyboard(botID int64, msg *telego.Message) telego.ReplyMarkup { return nil }

func (Default) HandleCallback(ctx context.Context, api relay.Sender, botID int64, query telego.CallbackQuery) (bool, error) {
	return false, nil
}

// Registry maps bot ids to their customization, falling back to
// Default. Built once at startup, read-only afterwards.
type Registry struct {
	byBot    map[int64]Customization
	fallback Customization
}

func NewRegistry() *Registry {
	return &Registry{
		byBot:    make(map[int64]Customization),
		fallback: Default{},
	}
}

func (r *Registry) Register(botID int64, c Customization) {
	r.byBot[botID] = c
}

func (r *Registry) For(botID int64) Customization {
	if c, ok := r.byBot[botID]; ok {
		return c
	}
	return r.fallback
}
