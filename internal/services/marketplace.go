package services

import (
	"context"

	"nft-market/internal/config"
	"nft-market/internal/domain"
	"nft-market/pkg/logger"

	"github.com/shopspring/decimal"
)

// Marketplace is the entry surface over the engine and the registry: it
// validates attached fees, requires a caller identity, and publishes a
// market event after each successful mutation. All auction rules live in
// the engine.
type Marketplace struct {
	engine   *AuctionEngine
	registry domain.TokenRegistry
	fees     *config.FeeSchedule
	events   domain.EventPublisher
	log      logger.Logger
}

func NewMarketplace(
	engine *AuctionEngine,
	registry domain.TokenRegistry,
	fees *config.FeeSchedule,
	events domain.EventPublisher,
	log logger.Logger,
) *Marketplace {
	return &Marketplace{
		engine:   engine,
		registry: registry,
		fees:     fees,
		events:   events,
		log:      log,
	}
}

// Mint creates a token record for the given owner. The attached deposit must
// equal the mint fee exactly; nothing is created otherwise.
func (m *Marketplace) Mint(ctx context.Context, call domain.Call, tokenID, ownerID string, metadata *domain.TokenMetadata) (*domain.Token, error) {
	if call.Caller == "" {
		return nil, domain.ErrMissingCaller
	}
	if !call.Deposit.Equal(m.fees.Mint) {
		return nil, domain.ErrWrongMintFee
	}
	return m.registry.Mint(ctx, tokenID, ownerID, metadata)
}

// TransferToken moves a token the caller owns to another account.
func (m *Marketplace) TransferToken(ctx context.Context, call domain.Call, receiverID, tokenID string) error {
	if call.Caller == "" {
		return domain.ErrMissingCaller
	}
	return m.registry.Transfer(ctx, call.Caller, receiverID, tokenID)
}

func (m *Marketplace) Token(ctx context.Context, tokenID string) (*domain.Token, error) {
	return m.registry.Token(ctx, tokenID)
}

func (m *Marketplace) TokensByOwner(ctx context.Context, owner string) ([]*domain.Token, error) {
	return m.registry.TokensByOwner(ctx, owner)
}

func (m *Marketplace) CreateAuction(ctx context.Context, call domain.Call, tokenID string, startPrice decimal.Decimal, startSec, endSec uint64) (*domain.Auction, error) {
	if call.Caller == "" {
		return nil, domain.ErrMissingCaller
	}
	if !call.Deposit.Equal(m.fees.CreateAuction) {
		return nil, domain.ErrWrongAuctionFee
	}

	auction, err := m.engine.CreateAuction(ctx, call, tokenID, startPrice, startSec, endSec)
	if err != nil {
		return nil, err
	}

	m.publish(ctx, &domain.MarketEvent{
		Type:      domain.AuctionCreated,
		AuctionID: auction.ID,
		TokenID:   auction.TokenID,
		Account:   auction.Owner,
		Amount:    auction.StartPrice,
		Timestamp: call.Now,
	})
	return auction, nil
}

func (m *Marketplace) PlaceBid(ctx context.Context, call domain.Call, auctionID uint64) (*domain.Auction, error) {
	if call.Caller == "" {
		return nil, domain.ErrMissingCaller
	}

	auction, displaced, err := m.engine.PlaceBid(ctx, call, auctionID)
	if err != nil {
		return nil, err
	}

	if displaced != nil {
		m.publish(ctx, &domain.MarketEvent{
			Type:      domain.BidRefunded,
			AuctionID: auctionID,
			Account:   *displaced,
			Timestamp: call.Now,
		})
	}
	m.publish(ctx, &domain.MarketEvent{
		Type:      domain.BidAccepted,
		AuctionID: auctionID,
		Account:   call.Caller,
		Amount:    call.Deposit,
		Timestamp: call.Now,
	})
	return auction, nil
}

func (m *Marketplace) ClaimToken(ctx context.Context, call domain.Call, auctionID uint64) (*domain.Auction, error) {
	if call.Caller == "" {
		return nil, domain.ErrMissingCaller
	}

	auction, err := m.engine.ClaimToken(ctx, call, auctionID)
	if err != nil {
		return nil, err
	}

	m.publish(ctx, &domain.MarketEvent{
		Type:      domain.TokenClaimed,
		AuctionID: auctionID,
		TokenID:   auction.TokenID,
		Account:   call.Caller,
		Amount:    auction.CurrentPrice,
		Timestamp: call.Now,
	})
	return auction, nil
}

func (m *Marketplace) ClaimProceeds(ctx context.Context, call domain.Call, auctionID uint64) (*domain.Auction, error) {
	if call.Caller == "" {
		return nil, domain.ErrMissingCaller
	}

	auction, err := m.engine.ClaimProceeds(ctx, call, auctionID)
	if err != nil {
		return nil, err
	}

	m.publish(ctx, &domain.MarketEvent{
		Type:      domain.ProceedsClaimed,
		AuctionID: auctionID,
		Account:   auction.Owner,
		Amount:    auction.CurrentPrice,
		Timestamp: call.Now,
	})
	return auction, nil
}

func (m *Marketplace) ReclaimToken(ctx context.Context, call domain.Call, auctionID uint64) (*domain.Auction, error) {
	if call.Caller == "" {
		return nil, domain.ErrMissingCaller
	}

	auction, err := m.engine.ReclaimToken(ctx, call, auctionID)
	if err != nil {
		return nil, err
	}

	m.publish(ctx, &domain.MarketEvent{
		Type:      domain.TokenReclaimed,
		AuctionID: auctionID,
		TokenID:   auction.TokenID,
		Account:   auction.Owner,
		Timestamp: call.Now,
	})
	return auction, nil
}

func (m *Marketplace) GetAuction(ctx context.Context, auctionID uint64) (*domain.Auction, error) {
	return m.engine.GetAuction(ctx, auctionID)
}

func (m *Marketplace) AuctionsByOwner(ctx context.Context, owner string) ([]uint64, error) {
	return m.engine.AuctionsByOwner(ctx, owner)
}

// publish never fails the operation: the state change has already been
// committed, the event stream is observational.
func (m *Marketplace) publish(ctx context.Context, event *domain.MarketEvent) {
	if m.events == nil {
		return
	}
	if err := m.events.PublishMarketEvent(ctx, event); err != nil {
		m.log.Error("Failed to publish market event", "type", event.Type, "auction_id", event.AuctionID, "error", err)
	}
}
