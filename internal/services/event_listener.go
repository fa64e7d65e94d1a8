package services

import (
	"context"

	"nft-market/internal/domain"
	"nft-market/pkg/logger"
)

// EventListener bridges the market event stream to websocket watchers.
type EventListener struct {
	subscriber  domain.EventSubscriber
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewEventListener(subscriber domain.EventSubscriber, connManager domain.ConnectionManager, log logger.Logger) *EventListener {
	return &EventListener{
		subscriber:  subscriber,
		connManager: connManager,
		log:         log,
	}
}

// Start blocks until ctx is cancelled, forwarding every market event to the
// connections watching its auction.
func (l *EventListener) Start(ctx context.Context) error {
	return l.subscriber.SubscribeToMarketEvents(ctx, l.handleEvent)
}

func (l *EventListener) handleEvent(event *domain.MarketEvent) error {
	if err := l.connManager.BroadcastToAuction(event.AuctionID, event); err != nil {
		l.log.Error("Failed to broadcast event", "auction_id", event.AuctionID, "type", event.Type, "error", err)
		return err
	}
	return nil
}
