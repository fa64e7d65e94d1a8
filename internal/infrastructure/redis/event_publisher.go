package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"nft-market/internal/domain"

	"github.com/go-redis/redis/v8"
)

const marketEventsChannel = "market_events"

type EventPublisher struct {
	client *redis.Client
}

func NewEventPublisher(client *redis.Client) *EventPublisher {
	return &EventPublisher{client: client}
}

func (p *EventPublisher) PublishMarketEvent(ctx context.Context, event *domain.MarketEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode market event: %w", err)
	}
	return p.client.Publish(ctx, marketEventsChannel, payload).Err()
}
