package services

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"nft-market/internal/domain"
	"nft-market/pkg/logger"

	"github.com/shopspring/decimal"
)

// nanosPerSecond converts the caller-supplied second-resolution auction
// window into the stored nanosecond timestamps. Fixed external contract.
const nanosPerSecond = 1_000_000_000

// maxWindowSec is the largest second value whose nanosecond form still fits
// in an int64 timestamp.
const maxWindowSec = math.MaxInt64 / nanosPerSecond

// AuctionEngine is the auction state machine: creation, bidding with refund
// of the displaced bidder, and the three settlement paths. A single mutex
// serializes every state-mutating operation, so each one applies all of its
// effects or none; precondition checks and outgoing transfers run before the
// store write that marks the action done.
type AuctionEngine struct {
	mu sync.Mutex

	store          domain.AuctionStore
	registry       domain.TokenRegistry
	payouts        domain.PayoutSender
	custodyAccount string
	enrollmentFee  decimal.Decimal
	log            logger.Logger
}

func NewAuctionEngine(
	store domain.AuctionStore,
	registry domain.TokenRegistry,
	payouts domain.PayoutSender,
	custodyAccount string,
	enrollmentFee decimal.Decimal,
	log logger.Logger,
) *AuctionEngine {
	return &AuctionEngine{
		store:          store,
		registry:       registry,
		payouts:        payouts,
		custodyAccount: custodyAccount,
		enrollmentFee:  enrollmentFee,
		log:            log,
	}
}

// CreateAuction takes custody of the token and opens an auction over it.
// startSec and endSec are absolute unix timestamps in seconds.
func (e *AuctionEngine) CreateAuction(ctx context.Context, call domain.Call, tokenID string, startPrice decimal.Decimal, startSec, endSec uint64) (*domain.Auction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if endSec <= startSec || endSec > maxWindowSec {
		return nil, domain.ErrInvalidAuctionWindow
	}

	owner, err := e.registry.OwnerOf(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if owner != call.Caller {
		return nil, domain.ErrNotTokenOwner
	}

	locked, err := e.store.IsTokenAuctioned(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("auctioned-token lookup: %w", err)
	}
	if locked {
		return nil, domain.ErrTokenAlreadyLocked
	}

	// Custody moves first; the auction record only exists once the
	// marketplace actually holds the token.
	if err := e.registry.Transfer(ctx, call.Caller, e.custodyAccount, tokenID); err != nil {
		return nil, fmt.Errorf("custody transfer: %w", err)
	}

	id, err := e.store.AllocateAuctionID(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate auction id: %w", err)
	}

	auction := &domain.Auction{
		ID:           id,
		Owner:        owner,
		TokenID:      tokenID,
		StartPrice:   startPrice,
		CurrentPrice: startPrice,
		StartTime:    int64(startSec) * nanosPerSecond,
		EndTime:      int64(endSec) * nanosPerSecond,
		Winner:       nil,
	}

	if err := e.store.CreateAuction(ctx, auction); err != nil {
		return nil, fmt.Errorf("store auction: %w", err)
	}

	e.log.Info("Auction created",
		"auction_id", auction.ID,
		"token_id", tokenID,
		"owner", owner,
		"start_price", startPrice.String())
	return auction, nil
}

// PlaceBid accepts a deposit strictly greater than the current price inside
// the open window and refunds the displaced winner their bid minus the
// enrollment fee. The very first bid refunds nobody. The second return value
// is the account that was displaced, nil when there was none.
func (e *AuctionEngine) PlaceBid(ctx context.Context, call domain.Call, auctionID uint64) (*domain.Auction, *string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	auction, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, nil, err
	}

	// Strict on both sides: a bid exactly at a boundary timestamp is rejected.
	nanos := call.Now.UnixNano()
	if nanos <= auction.StartTime {
		return nil, nil, domain.ErrAuctionNotStarted
	}
	if nanos >= auction.EndTime {
		return nil, nil, domain.ErrAuctionAlreadyEnded
	}
	if !call.Deposit.GreaterThan(auction.CurrentPrice) {
		return nil, nil, domain.ErrBidTooLow
	}

	displaced := auction.Winner
	if displaced != nil {
		refund := auction.CurrentPrice.Sub(e.enrollmentFee)
		// A standing bid below the enrollment fee cannot be refunded; the
		// whole bid aborts rather than sending a negative transfer.
		if refund.IsNegative() {
			return nil, nil, domain.ErrRefundBelowFee
		}
		if err := e.payouts.Send(ctx, *displaced, refund, "bid refund"); err != nil {
			return nil, nil, fmt.Errorf("refund displaced bidder: %w", err)
		}
		e.log.Info("Displaced bidder refunded",
			"auction_id", auctionID,
			"account", *displaced,
			"amount", refund.String())
	}

	winner := call.Caller
	auction.Winner = &winner
	auction.CurrentPrice = call.Deposit
	if err := e.store.UpdateAuction(ctx, auction); err != nil {
		return nil, nil, fmt.Errorf("store bid: %w", err)
	}

	e.log.Info("Bid accepted",
		"auction_id", auctionID,
		"account", winner,
		"amount", call.Deposit.String())
	return auction, displaced, nil
}

// ClaimToken transfers the token from custody to the winner, once.
func (e *AuctionEngine) ClaimToken(ctx context.Context, call domain.Call, auctionID uint64) (*domain.Auction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	auction, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !auction.Ended(call.Now) {
		return nil, domain.ErrAuctionNotEnded
	}
	if auction.Winner == nil || *auction.Winner != call.Caller {
		return nil, domain.ErrNotWinner
	}
	if auction.TokenClaimed {
		return nil, domain.ErrTokenAlreadyClaimed
	}

	if err := e.registry.TransferUnguarded(ctx, auction.TokenID, e.custodyAccount, *auction.Winner); err != nil {
		return nil, fmt.Errorf("custody transfer: %w", err)
	}

	auction.TokenClaimed = true
	if err := e.store.SettleToken(ctx, auction); err != nil {
		return nil, fmt.Errorf("settle token: %w", err)
	}

	e.log.Info("Token claimed by winner",
		"auction_id", auctionID,
		"token_id", auction.TokenID,
		"winner", call.Caller)
	return auction, nil
}

// ClaimProceeds pays the current price to the seller after the auction ends,
// once. It deliberately does not require a winner: on an unsold auction the
// seller withdraws the nominal start price, as the original marketplace did.
func (e *AuctionEngine) ClaimProceeds(ctx context.Context, call domain.Call, auctionID uint64) (*domain.Auction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	auction, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.Owner != call.Caller {
		return nil, domain.ErrNotAuctionOwner
	}
	if !auction.Ended(call.Now) {
		return nil, domain.ErrAuctionNotEnded
	}
	if auction.ProceedsClaimed {
		return nil, domain.ErrProceedsClaimed
	}

	if auction.Winner == nil {
		e.log.Warn("Paying out an auction that received no bids",
			"auction_id", auctionID,
			"amount", auction.CurrentPrice.String())
	}

	if err := e.payouts.Send(ctx, auction.Owner, auction.CurrentPrice, "auction proceeds"); err != nil {
		return nil, fmt.Errorf("pay proceeds: %w", err)
	}

	auction.ProceedsClaimed = true
	if err := e.store.UpdateAuction(ctx, auction); err != nil {
		return nil, fmt.Errorf("settle proceeds: %w", err)
	}

	e.log.Info("Proceeds claimed",
		"auction_id", auctionID,
		"owner", auction.Owner,
		"amount", auction.CurrentPrice.String())
	return auction, nil
}

// ReclaimToken returns an unsold token to the seller after the auction ends.
// Mutually exclusive with ClaimToken: this path requires no winner, that one
// requires a winner.
func (e *AuctionEngine) ReclaimToken(ctx context.Context, call domain.Call, auctionID uint64) (*domain.Auction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	auction, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.Owner != call.Caller {
		return nil, domain.ErrNotAuctionOwner
	}
	if !auction.Ended(call.Now) {
		return nil, domain.ErrAuctionNotEnded
	}
	if auction.Winner != nil {
		return nil, domain.ErrAuctionSold
	}
	if auction.TokenClaimed {
		return nil, domain.ErrTokenAlreadyClaimed
	}

	if err := e.registry.TransferUnguarded(ctx, auction.TokenID, e.custodyAccount, auction.Owner); err != nil {
		return nil, fmt.Errorf("custody transfer: %w", err)
	}

	auction.TokenClaimed = true
	if err := e.store.SettleToken(ctx, auction); err != nil {
		return nil, fmt.Errorf("settle token: %w", err)
	}

	e.log.Info("Unsold token reclaimed",
		"auction_id", auctionID,
		"token_id", auction.TokenID,
		"owner", auction.Owner)
	return auction, nil
}

// GetAuction is a pure read.
func (e *AuctionEngine) GetAuction(ctx context.Context, auctionID uint64) (*domain.Auction, error) {
	return e.store.GetAuction(ctx, auctionID)
}

// AuctionsByOwner returns the ids a seller created, in creation order.
func (e *AuctionEngine) AuctionsByOwner(ctx context.Context, owner string) ([]uint64, error) {
	return e.store.AuctionIDsByOwner(ctx, owner)
}

// Phase reports an auction's derived state at the given time.
func (e *AuctionEngine) Phase(ctx context.Context, auctionID uint64, now time.Time) (domain.AuctionPhase, error) {
	auction, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		return 0, err
	}
	return auction.Phase(now), nil
}
