package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// AuctionStore is pure storage: point lookups and point writes, no business
// rules. Compound methods (CreateAuction, SettleToken) must apply all their
// writes atomically so a rejected operation never leaves the indices and the
// auctioned-token set disagreeing.
type AuctionStore interface {
	// AllocateAuctionID returns the next id in the monotonic sequence.
	// Ids are never reused, even when the allocating operation later fails.
	AllocateAuctionID(ctx context.Context) (uint64, error)

	// CreateAuction inserts the record, appends the id to the owner index
	// and adds the token to the auctioned set, as one atomic write.
	CreateAuction(ctx context.Context, auction *Auction) error

	// GetAuction returns ErrAuctionNotFound for unknown ids.
	GetAuction(ctx context.Context, auctionID uint64) (*Auction, error)

	UpdateAuction(ctx context.Context, auction *Auction) error

	// SettleToken persists the auction's claimed flags and removes the token
	// from the auctioned set, as one atomic write.
	SettleToken(ctx context.Context, auction *Auction) error

	IsTokenAuctioned(ctx context.Context, tokenID string) (bool, error)
	AuctionIDsByOwner(ctx context.Context, owner string) ([]uint64, error)
	TotalAuctions(ctx context.Context) (uint64, error)
	ListAuctions(ctx context.Context) ([]*Auction, error)
}

// TokenStore persists registry records.
type TokenStore interface {
	// InsertToken returns ErrTokenExists when the id is already minted.
	InsertToken(ctx context.Context, token *Token) error
	// GetToken returns ErrTokenNotFound for unknown ids.
	GetToken(ctx context.Context, tokenID string) (*Token, error)
	SetTokenOwner(ctx context.Context, tokenID, owner string) error
	TokensByOwner(ctx context.Context, owner string) ([]*Token, error)
}

// TokenRegistry is the token-standard boundary the engine consumes for
// custody movements and ownership lookups.
type TokenRegistry interface {
	OwnerOf(ctx context.Context, tokenID string) (string, error)
	Mint(ctx context.Context, tokenID, owner string, metadata *TokenMetadata) (*Token, error)
	// Transfer moves a token on behalf of from; it fails unless from is the
	// recorded owner.
	Transfer(ctx context.Context, from, to, tokenID string) error
	// TransferUnguarded bypasses the ownership check. Used only for custody
	// movements where the marketplace itself is the recorded owner.
	TransferUnguarded(ctx context.Context, tokenID, from, to string) error
	Token(ctx context.Context, tokenID string) (*Token, error)
	TokensByOwner(ctx context.Context, owner string) ([]*Token, error)
}

// PayoutSender performs outgoing value transfers. A send error aborts the
// surrounding engine operation before any store write.
type PayoutSender interface {
	Send(ctx context.Context, to string, amount decimal.Decimal, reason string) error
}

// EventPublisher emits market events after successful state changes.
type EventPublisher interface {
	PublishMarketEvent(ctx context.Context, event *MarketEvent) error
}

type EventSubscriber interface {
	SubscribeToMarketEvents(ctx context.Context, handler EventHandler) error
}

// LeaderElection gates singleton background work across instances.
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// WebSocket interfaces
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	Account() string
	AuctionID() uint64
}

type ConnectionManager interface {
	RegisterConnection(account string, auctionID uint64, conn WebSocketConnection) error
	UnregisterConnection(account string, auctionID uint64) error
	BroadcastToAuction(auctionID uint64, message interface{}) error
	NotifyAccount(account string, message interface{}) error
}
