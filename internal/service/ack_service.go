package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mymmrac/telego"
	"github.com/rabbitmq/amqp091-go"

	"tg-support-relay/internal/events"
	"tg-support-relay/internal/logger"
	"tg-support-relay/internal/models"
	"tg-support-relay/internal/relay"
)

// SenderDirectory resolves the API client of a running tenant bot.
type SenderDirectory interface {
	Sender(botID int64) (relay.Sender, bool)
}

// AckService tracks ticket events awaiting external confirmation.
// Confirmations arrive on the ack routing key; entries that never get
// one produce a warning in the chat the event came from.
type AckService struct {
	acks *models.PendingAckManager
	bots SenderDirectory
}

func NewAckService(timeout time.Duration, bots SenderDirectory) *AckService {
	s := &AckService{bots: bots}
	s.acks = models.NewPendingAckManager(timeout, s.onTimeout)
	return s
}

// Acks exposes the manager for registration by customizations.
func (s *AckService) Acks() *models.PendingAckManager {
	return s.acks
}

// HandleAck consumes one ack delivery from the event subscriber.
func (s *AckService) HandleAck(ctx context.Context, d amqp091.Delivery) error {
	var env events.GenericEnvelope[events.OperationAck]
	if err := json.Unmarshal(d.Body, &env); err != nil {
		logger.Errorf("undecodable ack: %v", err)
		// Malformed payloads never become valid, do not requeue.
		return nil
	}

	ack, ok := s.acks.Resolve(env.Data.Operation, env.Data.URL)
	if !ok {
		logger.Warningf("ack for unknown operation %s %s", env.Data.Operation, env.Data.URL)
		return nil
	}

	api, ok := s.bots.Sender(ack.BotID)
	if !ok {
		logger.Warningf("ack for stopped bot %d", ack.BotID)
		return nil
	}

	text := fmt.Sprintf("✅ Подтверждено: %s (%s)\n%s", ack.Operation, ack.AgentName, ack.URL)
	_, err := api.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:          telego.ChatID{ID: ack.TargetChat},
		MessageThreadID: ack.TargetThread,
		Text:            text,
	})
	if err != nil {
		logger.Errorf("ack confirmation to chat %d failed: %v", ack.TargetChat, err)
	}
	return nil
}

func (s *AckService) onTimeout(ack models.PendingAck) {
	api, ok := s.bots.Sender(ack.BotID)
	if !ok {
		return
	}

	text := fmt.Sprintf("⚠️ Нет подтверждения операции «%s»\n%s", ack.Operation, ack.URL)
	_, err := api.SendMessage(context.Background(), &telego.SendMessageParams{
		ChatID:          telego.ChatID{ID: ack.TargetChat},
		MessageThreadID: ack.TargetThread,
		Text:            text,
	})
	if err != nil {
		logger.Errorf("ack timeout notice to chat %d failed: %v", ack.TargetChat, err)
	}
}
