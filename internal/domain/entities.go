package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Auction is the central escrow entity. It is created once, mutated by bids
// and claims, and never deleted; after settlement it stays in the store as an
// inert record.
type Auction struct {
	ID              uint64          `json:"auction_id"`
	Owner           string          `json:"owner"`
	TokenID         string          `json:"token_id"`
	StartPrice      decimal.Decimal `json:"start_price"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	StartTime       int64           `json:"start_time"` // unix nanoseconds
	EndTime         int64           `json:"end_time"`   // unix nanoseconds
	Winner          *string         `json:"winner"`     // nil until the first accepted bid
	ProceedsClaimed bool            `json:"proceeds_claimed"`
	TokenClaimed    bool            `json:"token_claimed"`
}

type AuctionPhase int

const (
	AuctionPending AuctionPhase = iota
	AuctionActive
	AuctionEndedUnsold
	AuctionEndedSold
)

func (p AuctionPhase) String() string {
	switch p {
	case AuctionPending:
		return "pending"
	case AuctionActive:
		return "active"
	case AuctionEndedUnsold:
		return "ended_unsold"
	case AuctionEndedSold:
		return "ended_sold"
	default:
		return "unknown"
	}
}

// Phase derives the auction state from its fields; it is never stored.
func (a *Auction) Phase(now time.Time) AuctionPhase {
	nanos := now.UnixNano()
	switch {
	case nanos < a.StartTime:
		return AuctionPending
	case nanos < a.EndTime:
		return AuctionActive
	case a.Winner == nil:
		return AuctionEndedUnsold
	default:
		return AuctionEndedSold
	}
}

// Ended reports whether the bidding window is strictly over.
func (a *Auction) Ended(now time.Time) bool {
	return now.UnixNano() > a.EndTime
}

// Token is a registry record: identity, current owner and optional metadata.
type Token struct {
	ID       string         `json:"token_id"`
	Owner    string         `json:"owner_id"`
	Metadata *TokenMetadata `json:"metadata,omitempty"`
}

type TokenMetadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Media       string `json:"media,omitempty"`
	Reference   string `json:"reference,omitempty"`
	IssuedAt    string `json:"issued_at,omitempty"`
}

// Call carries what the execution context attaches to every externally
// invoked operation: the caller's identity, the deposit sent along with the
// call, and the observed current time.
type Call struct {
	Caller  string
	Deposit decimal.Decimal
	Now     time.Time
}
