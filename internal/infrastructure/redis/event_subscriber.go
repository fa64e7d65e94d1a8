package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"nft-market/internal/domain"
	"nft-market/pkg/logger"

	"github.com/go-redis/redis/v8"
)

type EventSubscriber struct {
	client *redis.Client
	log    logger.Logger
}

func NewEventSubscriber(client *redis.Client, log logger.Logger) *EventSubscriber {
	return &EventSubscriber{
		client: client,
		log:    log,
	}
}

func (s *EventSubscriber) SubscribeToMarketEvents(ctx context.Context, handler domain.EventHandler) error {
	pubsub := s.client.Subscribe(ctx, marketEventsChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	s.log.Info("Subscribed to market events")

	for {
		select {
		case msg := <-ch:
			event, err := parseEventPayload(msg.Payload)
			if err != nil {
				s.log.Error("Failed to parse event", "payload", msg.Payload, "error", err)
				continue
			}

			if err := handler(event); err != nil {
				s.log.Error("Failed to handle event", "type", event.Type, "auction_id", event.AuctionID, "error", err)
			}

		case <-ctx.Done():
			s.log.Info("Event subscriber stopped")
			return ctx.Err()
		}
	}
}

func parseEventPayload(payload string) (*domain.MarketEvent, error) {
	var event domain.MarketEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil, fmt.Errorf("invalid event payload: %w", err)
	}
	return &event, nil
}
