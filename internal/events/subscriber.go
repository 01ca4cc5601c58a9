package events

import (
	"context"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"tg-support-relay/internal/logger"
)

// Subscriber consumes envelopes from a queue bound to the topic
// exchange and dispatches them by routing key.
type Subscriber interface {
	RegisterHandler(routingKey string, handler func(context.Context, amqp091.Delivery) error)
	Start(queueName string) error
	Close() error
}

type rmqSubscriber struct {
	conn     *amqp091.Connection
	ch       *amqp091.Channel
	exchange string
	handlers map[string]func(context.Context, amqp091.Delivery) error
	msgChan  chan amqp091.Delivery
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
	workers  int
}

func NewSubscriber(url, exchange string, bufferCap, workers int) (Subscriber, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return &rmqSubscriber{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		handlers: make(map[string]func(context.Context, amqp091.Delivery) error),
		msgChan:  make(chan amqp091.Delivery, bufferCap),
		done:     make(chan struct{}),
		workers:  workers,
	}, nil
}

func (s *rmqSubscriber) RegisterHandler(routingKey string, handler func(context.Context, amqp091.Delivery) error) {
	s.handlers[routingKey] = handler
}

func (s *rmqSubscriber) Start(queueName string) error {
	var startErr error
	s.once.Do(func() {
		if err := s.setupQueue(queueName); err != nil {
			startErr = err
			return
		}
		for i := 0; i < s.workers; i++ {
			s.wg.Add(1)
			go s.workerLoop()
		}
		logger.Infof("event subscriber started on queue %s", queueName)
	})
	return startErr
}

func (s *rmqSubscriber) setupQueue(queueName string) error {
	if err := s.ch.Qos(10, 0, false); err != nil {
		return err
	}
	q, err := s.ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return err
	}
	for key := range s.handlers {
		if err := s.ch.QueueBind(q.Name, key, s.exchange, false, nil); err != nil {
			return err
		}
	}
	msgs, err := s.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-s.done:
				close(s.msgChan)
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				s.msgChan <- msg
			}
		}
	}()
	return nil
}

func (s *rmqSubscriber) workerLoop() {
	defer s.wg.Done()
	for msg := range s.msgChan {
		handler, ok := s.handlers[msg.RoutingKey]
		if !ok {
			logger.Warningf("no handler for routing key %s", msg.RoutingKey)
			_ = msg.Nack(false, false)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := handler(ctx, msg)
		cancel()
		if err != nil {
			logger.Errorf("event handler for %s failed: %v", msg.RoutingKey, err)
			_ = msg.Nack(false, true)
		} else {
			_ = msg.Ack(false)
		}
	}
}

func (s *rmqSubscriber) Close() error {
	close(s.done)
	s.wg.Wait()
	_ = s.ch.Close()
	return s.conn.Close()
}
