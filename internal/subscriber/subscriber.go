package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type Subscriber struct {
	logger   *slog.Logger
	client   *redis.Client
	topic    string
	reloader Reloader
	notifier Notifier
}

func NewSubscriber(logger *slog.Logger, client *redis.Client, topic string, reloader Reloader, notifier Notifier) *Subscriber {
	return &Subscriber{
		logger:   logger,
		client:   client,
		topic:    topic,
		reloader: reloader,
		notifier: notifier,
	}
}

func (s *Subscriber) Start(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.topic)
	defer func() {
		if err := pubsub.Close(); err != nil {
			s.logger.Warn("failed to close pubsub", "error", err)
		}
	}()

	// Wait for the subscription confirmation so a bad address fails fast.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %q: %w", s.topic, err)
	}
	s.logger.Info("Redis subscriber is running", "topic", s.topic)

	msgCh := pubsub.Channel()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				s.logger.Warn("pubsub channel closed by Redis")
				return nil
			}
			if err := s.handleMessage(msg); err != nil {
				s.logger.Error("error handling message", "error", err)
			}
		case <-ctx.Done():
			s.logger.Info("shutting down Redis subscriber")
			return nil
		}
	}
}

func (s *Subscriber) handleMessage(msg *redis.Message) error {
	s.logger.Debug("received message", "payload", msg.Payload)

	var m DirectoryMessage
	if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
		return fmt.Errorf("decoding directory message: %w", err)
	}
	if !m.Action.IsValid() {
		s.logger.Warn("ignoring unknown directory action", "action", m.Action)
		return nil
	}

	switch m.Action {
	case Reload:
		if err := s.reloader.Reload(); err != nil {
			return fmt.Errorf("reloading directory: %w", err)
		}
		s.logger.Info("directory reloaded")
		if err := s.notifier.NotifyDirectoryUpdated(); err != nil {
			return fmt.Errorf("notifying clients: %w", err)
		}
	}
	return nil
}
