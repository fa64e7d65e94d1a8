package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type MarketEvent struct {
	Type      MarketEventType `json:"type"`
	AuctionID uint64          `json:"auction_id"`
	TokenID   string          `json:"token_id,omitempty"`
	Account   string          `json:"account,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

type MarketEventType string

const (
	AuctionCreated  MarketEventType = "auction_created"
	AuctionStarted  MarketEventType = "auction_started"
	AuctionEnded    MarketEventType = "auction_ended"
	BidAccepted     MarketEventType = "bid_accepted"
	BidRefunded     MarketEventType = "bid_refunded"
	TokenClaimed    MarketEventType = "token_claimed"
	ProceedsClaimed MarketEventType = "proceeds_claimed"
	TokenReclaimed  MarketEventType = "token_reclaimed"
)

type EventHandler func(event *MarketEvent) error

// Payout is an outgoing value transfer scheduled by the engine: a refund to
// a displaced bidder or the seller's proceeds.
type Payout struct {
	Reference string          `json:"reference"`
	To        string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	Timestamp time.Time       `json:"timestamp"`
}
