package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"nft-market/internal/domain"
	"nft-market/internal/infrastructure/memory"
	"nft-market/pkg/logger"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

const (
	custodyAccount = "market.custody"
	seller         = "senna.testnet"
	bidder1        = "bob.testnet"
	bidder2        = "alice.testnet"
)

var enrollmentFee = decimal.NewFromInt(10)

type engineFixture struct {
	store    *memory.AuctionStore
	tokens   *memory.TokenStore
	treasury *memory.Treasury
	registry *TokenRegistry
	engine   *AuctionEngine
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	store := memory.NewAuctionStore()
	tokens := memory.NewTokenStore()
	treasury := memory.NewTreasury()
	registry := NewTokenRegistry(tokens, logger.NewNop())
	engine := NewAuctionEngine(store, registry, treasury, custodyAccount, enrollmentFee, logger.NewNop())

	return &engineFixture{
		store:    store,
		tokens:   tokens,
		treasury: treasury,
		registry: registry,
		engine:   engine,
	}
}

func (f *engineFixture) mint(t *testing.T, tokenID, owner string) {
	t.Helper()
	_, err := f.registry.Mint(context.Background(), tokenID, owner, nil)
	assert.NoError(t, err)
}

func call(caller string, deposit int64, atSec int64) domain.Call {
	return domain.Call{
		Caller:  caller,
		Deposit: decimal.NewFromInt(deposit),
		Now:     time.Unix(atSec, 0),
	}
}

func price(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func TestCreateAuction_TakesCustodyAndLocksToken(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.mint(t, "token-1", seller)

	auction, err := f.engine.CreateAuction(ctx, call(seller, 0, 500), "token-1", price(100), 1000, 2000)
	assert.NoError(t, err)
	assert.NotNil(t, auction)

	check.Equal(t, uint64(0), auction.ID)
	check.Equal(t, seller, auction.Owner)
	check.Equal(t, "token-1", auction.TokenID)
	check.True(t, auction.CurrentPrice.Equal(price(100)))
	check.Nil(t, auction.Winner)
	check.False(t, auction.ProceedsClaimed)
	check.False(t, auction.TokenClaimed)

	// Window inputs are seconds, stored as nanoseconds.
	check.Equal(t, int64(1000)*1_000_000_000, auction.StartTime)
	check.Equal(t, int64(2000)*1_000_000_000, auction.EndTime)

	// The marketplace holds the token, and the token is locked.
	owner, err := f.registry.OwnerOf(ctx, "token-1")
	assert.NoError(t, err)
	check.Equal(t, custodyAccount, owner)

	locked, err := f.store.IsTokenAuctioned(ctx, "token-1")
	assert.NoError(t, err)
	check.True(t, locked)

	ids, err := f.engine.AuctionsByOwner(ctx, seller)
	assert.NoError(t, err)
	check.Equal(t, []uint64{0}, ids)
}

func TestCreateAuction_RequiresTokenOwnership(t *testing.T) {
	f := newEngineFixture(t)
	f.mint(t, "token-1", bidder1)

	_, err := f.engine.CreateAuction(context.Background(), call(seller, 0, 500), "token-1", price(100), 1000, 2000)
	check.True(t, errors.Is(err, domain.ErrNotTokenOwner))
}

func TestCreateAuction_RejectsLockedToken(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.mint(t, "token-1", seller)

	_, err := f.engine.CreateAuction(ctx, call(seller, 0, 500), "token-1", price(100), 1000, 2000)
	assert.NoError(t, err)

	// The seller no longer owns the token, so the ownership check fires
	// first; a stale owner would then hit the locked-token check.
	_, err = f.engine.CreateAuction(ctx, call(seller, 0, 500), "token-1", price(100), 3000, 4000)
	check.True(t, errors.Is(err, domain.ErrNotTokenOwner))
}

func TestCreateAuction_RejectsInvertedWindow(t *testing.T) {
	f := newEngineFixture(t)
	f.mint(t, "token-1", seller)

	_, err := f.engine.CreateAuction(context.Background(), call(seller, 0, 500), "token-1", price(100), 2000, 1000)
	check.True(t, errors.Is(err, domain.ErrInvalidAuctionWindow))

	_, err = f.engine.CreateAuction(context.Background(), call(seller, 0, 500), "token-1", price(100), 2000, 2000)
	check.True(t, errors.Is(err, domain.ErrInvalidAuctionWindow))
}

// Second values whose nanosecond form no longer fits in an int64 timestamp
// would wrap into a negative window; they are rejected up front.
func TestCreateAuction_RejectsWindowBeyondTimestampRange(t *testing.T) {
	f := newEngineFixture(t)
	f.mint(t, "token-1", seller)

	const tooFar = uint64(math.MaxInt64)/1_000_000_000 + 1

	_, err := f.engine.CreateAuction(context.Background(), call(seller, 0, 500), "token-1", price(100), 1000, tooFar)
	check.True(t, errors.Is(err, domain.ErrInvalidAuctionWindow))

	_, err = f.engine.CreateAuction(context.Background(), call(seller, 0, 500), "token-1", price(100), tooFar, tooFar+1)
	check.True(t, errors.Is(err, domain.ErrInvalidAuctionWindow))

	// The token was never taken into custody.
	owner, err := f.registry.OwnerOf(context.Background(), "token-1")
	assert.NoError(t, err)
	check.Equal(t, seller, owner)
}

func TestCreateAuction_UnknownToken(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.CreateAuction(context.Background(), call(seller, 0, 500), "missing", price(100), 1000, 2000)
	check.True(t, errors.Is(err, domain.ErrTokenNotFound))
}

func TestAuctionIDs_MonotonicAndSeedable(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.store.SeedSequence(7)

	f.mint(t, "token-1", seller)
	f.mint(t, "token-2", seller)

	first, err := f.engine.CreateAuction(ctx, call(seller, 0, 500), "token-1", price(100), 1000, 2000)
	assert.NoError(t, err)
	second, err := f.engine.CreateAuction(ctx, call(seller, 0, 500), "token-2", price(100), 1000, 2000)
	assert.NoError(t, err)

	check.Equal(t, uint64(7), first.ID)
	check.Equal(t, uint64(8), second.ID)

	ids, err := f.engine.AuctionsByOwner(ctx, seller)
	assert.NoError(t, err)
	check.Equal(t, []uint64{7, 8}, ids)
}

// Scenario: start_price=100, window [1000,2000]. bid(150)@1500 wins, a lower
// follow-up fails, bid(200)@1700 displaces and refunds 150-fee.
func TestPlaceBid_AscendingWithRefunds(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.mint(t, "token-1", seller)

	auction, err := f.engine.CreateAuction(ctx, call(seller, 0, 500), "token-1", price(100), 1000, 2000)
	assert.NoError(t, err)

	// First accepted bid: no previous winner, nobody refunded.
	updated, displaced, err := f.engine.PlaceBid(ctx, call(bidder1, 150, 1500), auction.ID)
	assert.NoError(t, err)
	check.Nil(t, displaced)
	assert.NotNil(t, updated.Winner)
	check.Equal(t, bidder1, *updated.Winner)
	check.True(t, updated.CurrentPrice.Equal(price(150)))
	check.Equal(t, 0, len(f.treasury.Payouts()))

	// Not strictly greater than the current price: rejected with no change.
	_, _, err = f.engine.PlaceBid(ctx, call(bidder2, 120, 1600), auction.ID)
	check.True(t, errors.Is(err, domain.ErrBidTooLow))
	_, _, err = f.engine.PlaceBid(ctx, call(bidder2, 150, 1600), auction.ID)
	check.True(t, errors.Is(err, domain.ErrBidTooLow))

	// Displacing bid refunds the previous winner minus the enrollment fee.
	updated, displaced, err = f.engine.PlaceBid(ctx, call(bidder2, 200, 1700), auction.ID)
	assert.NoError(t, err)
	assert.NotNil(t, displaced)
	check.Equal(t, bidder1, *displaced)
	assert.NotNil(t, updated.Winner)
	check.Equal(t, bidder2, *updated.Winner)
	check.True(t, updated.CurrentPrice.Equal(price(200)))

	payouts := f.treasury.Payouts()
	assert.Equal(t, 1, len(payouts))
	check.Equal(t, bidder1, payouts[0].To)
	check.True(t, payouts[0].Amount.Equal(price(140))) // 150 - 10 enrollment fee
	check.True(t, f.treasury.Balance(bidder1).Equal(price(140)))
}

func TestPlaceBid_WindowStrictOnBothSides(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.mint(t, "token-1", seller)

	auction, err := f.engine.CreateAuction(ctx, call(seller, 0, 500), "token-1", price(100), 1000, 2000)
	assert.NoError(t, err)

	cases := []struct {
		name  string
		atSec int64
		want  error
	}{
		{"before start", 999, domain.ErrAuctionNotStarted},
		{"exactly at start", 1000, domain.ErrAuctionNotStarted},
		{"exactly at end", 2000, domain.ErrAuctionAlreadyEnded},
		{"after end", 2500, domain.ErrAuctionAlreadyEnded},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := f.engine.PlaceBid(ctx, call(bidder1, 150, tc.atSec), auction.ID)
			check.True(t, errors.Is(err, tc.want))
		})
	}

	// Just inside both boundaries is accepted.
	_, _, err = f.engine.PlaceBid(ctx, call(bidder1, 150, 1001), auction.ID)
	check.NoError(t, err)
	_, _, err = f.engine.PlaceBid(ctx, call(bidder2, 160, 1999), auction.ID)
	check.NoError(t, err)
}

// A standing bid below the enrollment fee cannot be refunded without sending
// a negative transfer, so the displacing bid aborts with no state change.
func TestPlaceBid_RejectsUnrefundableDisplacement(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.mint(t, "token-1", seller)

	// start_price=1 with enrollment fee 10: any early bid is below the fee.
	auction, err := f.engine.CreateAuction(ctx, call(seller, 0, 500), "token-1", price(1), 1000, 2000)
	assert.NoError(t, err)

	_, _, err = f.engine.PlaceBid(ctx, call(bidder1, 2, 1500), auction.ID)
	assert.NoError(t, err)

	_, _, err = f.engine.PlaceBid(ctx, call(bidder2, 3, 1600), auction.ID)
	check.True(t, errors.Is(err, domain.ErrRefundBelowFee))

	// The standing bid is untouched and no payout of any sign was sent.
	current, err := f.engine.GetAuction(ctx, auction.ID)
	assert.NoError(t, err)
	assert.NotNil(t, current.Winner)
	check.Equal(t, bidder1, *current.Winner)
	check.True(t, current.CurrentPrice.Equal(price(2)))
	check.Equal(t, 0, len(f.treasury.Payouts()))

	// The standing bid never covers the fee, so no deposit can displace it.
	_, _, err = f.engine.PlaceBid(ctx, call(bidder2, 15, 1700), auction.ID)
	check.True(t, errors.Is(err, domain.ErrRefundBelowFee))
	_, _, err = f.engine.PlaceBid(ctx, call(bidder1, 20, 1750), auction.ID)
	check.True(t, errors.Is(err, domain.ErrRefundBelowFee))
}

// A standing bid exactly at the enrollment fee yields a zero refund, which
// is allowed.
func TestPlaceBid_ZeroRefundAtExactFee(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.mint(t, "token-1", seller)

	auction, err := f.engine.CreateAuction(ctx, call(seller, 0, 500), "token-1", price(5), 1000, 2000)
	assert.NoError(t, err)

	_, _, err = f.engine.PlaceBid(ctx, call(bidder1, 10, 1500), auction.ID)
	assert.NoError(t, err)
	_, _, err = f.engine.PlaceBid(ctx, call(bidder2, 20, 1600), auction.ID)
	assert.NoError(t, err)

	payouts := f.treasury.Payouts()
	assert.Equal(t, 1, len(payouts))
	check.Equal(t, bidder1, payouts[0].To)
	check.True(t, payouts[0].Amount.IsZero())
	check.False(t, payouts[0].Amount.IsNegative())
}

func TestPlaceBid_UnknownAuction(t *testing.T) {
	f := newEngineFixture(t)

	_, _, err := f.engine.PlaceBid(context.Background(), call(bidder1, 150, 1500), 42)
	check.True(t, errors.Is(err, domain.ErrAuctionNotFound))
}

// failingSender rejects every transfer, standing in for a payout backend
// outage mid-operation.
type failingSender struct{}

func (failingSender) Send(ctx context.Context, to string, amount decimal.Decimal, reason string) error {
	return errors.New("payout backend unavailable")
}

func TestPlaceBid_AbortsWithoutStateChangeWhenRefundFails(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.mint(t, "token-1", seller)

	auction, err := f.engine.CreateAuction(ctx, call(seller, 0, 500), "token-1", price(100), 1000, 2000)
	assert.NoError(t, err)
	_, _, err = f.engine.PlaceBid(ctx, call(bidder1, 150, 1500), auction.ID)
	assert.NoError(t, err)

	broken := NewAuctionEngine(f.store, f.registry, failingSender{}, custodyAccount, enrollmentFee, logger.NewNop())
	_, _, err = broken.PlaceBid(ctx, call(bidder2, 200, 1700), auction.ID)
	check.Error(t, err)

	// The displaced bid must still stand.
	current, err := f.engine.GetAuction(ctx, auction.ID)
	assert.NoError(t, err)
	assert.NotNil(t, current.Winner)
	check.Equal(t, bidder1, *current.Winner)
	check.True(t, current.CurrentPrice.Equal(price(150)))
}

// Scenario: the final winner claims the token once after the auction ends; a
// second attempt fails as already claimed.
func TestClaimToken_WinnerClaimsOnce(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.mint(t, "token-1", seller)

	auction, err := f.engine.CreateAuction(ctx, call(seller, 0, 500), "token-1", price(100), 1000, 2000)
	assert.NoError(t, err)
	_, _, err = f.engine.PlaceBid(ctx, call(bidder1, 150, 1500), auction.ID)
	assert.NoError(t, err)

	// Too early while bidding is still open.
	_, err = f.engine.ClaimToken(ctx, call(bidder1, 0, 1800), auction.ID)
	check.True(t, errors.Is(err, domain.ErrAuctionNotEnded))

	// Only the winner may claim.
	_, err = f.engine.ClaimToken(ctx, call(bidder2, 0, 2500), auction.ID)
	check.True(t, errors.Is(err, domain.ErrNotWinner))

	claimed, err := f.engine.ClaimToken(ctx, call(bidder1, 0, 2500), auction.ID)
	assert.NoError(t, err)
	check.True(t, claimed.TokenClaimed)

	owner, err := f.registry.OwnerOf(ctx, "token-1")
	assert.NoError(t, err)
	check.Equal(t, bidder1, owner)

	locked, err := f.store.IsTokenAuctioned(ctx, "token-1")
	assert.NoError(t, err)
	check.False(t, locked)

	_, err = f.engine.ClaimToken(ctx, call(bidder1, 0, 2600), auction.ID)
	check.True(t, errors.Is(err, domain.ErrTokenAlreadyClaimed))
}

func TestClaimProceeds_PaysSellerOnce(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.mint(t, "token-1", seller)

	auction, err := f.engine.CreateAuction(ctx, call(seller, 0, 500), "token-1", price(100), 1000, 2000)
	assert.NoError(t, err)
	_, _, err = f.engine.PlaceBid(ctx, call(bidder1, 150, 1500), auction.ID)
	assert.NoError(t, err)

	// Fails before end_time and for anyone but the owner.
	_, err = f.engine.ClaimProceeds(ctx, call(seller, 0, 1800), auction.ID)
	check.True(t, errors.Is(err, domain.ErrAuctionNotEnded))
	_, err = f.engine.ClaimProceeds(ctx, call(bidder1, 0, 2500), auction.ID)
	check.True(t, errors.Is(err, domain.ErrNotAuctionOwner))

	settled, err := f.engine.ClaimProceeds(ctx, call(seller, 0, 2500), auction.ID)
	assert.NoError(t, err)
	check.True(t, settled.ProceedsClaimed)
	check.True(t, f.treasury.Balance(seller).Equal(price(150)))

	_, err = f.engine.ClaimProceeds(ctx, call(seller, 0, 2600), auction.ID)
	check.True(t, errors.Is(err, domain.ErrProceedsClaimed))

	// Paid exactly once.
	check.True(t, f.treasury.Balance(seller).Equal(price(150)))
}

// The original marketplace pays the seller the nominal start price even when
// nobody ever bid. That behavior is preserved, not silently fixed.
func TestClaimProceeds_UnsoldAuctionPaysStartPrice(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.mint(t, "token-1", seller)

	auction, err := f.engine.CreateAuction(ctx, call(seller, 0, 500), "token-1", price(100), 1000, 2000)
	assert.NoError(t, err)

	settled, err := f.engine.ClaimProceeds(ctx, call(seller, 0, 2500), auction.ID)
	assert.NoError(t, err)
	check.True(t, settled.ProceedsClaimed)
	check.True(t, f.treasury.Balance(seller).Equal(price(100)))
}

// Scenario: no bids ever placed; the owner reclaims the token after the end,
// and the winner-side claim can never succeed.
func TestReclaimToken_UnsoldAuction(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.mint(t, "token-1", seller)

	auction, err := f.engine.CreateAuction(ctx, call(seller, 0, 500), "token-1", price(100), 1000, 2000)
	assert.NoError(t, err)

	// No winner was ever set, so winner-side claim fails for anyone.
	_, err = f.engine.ClaimToken(ctx, call(bidder1, 0, 2500), auction.ID)
	check.True(t, errors.Is(err, domain.ErrNotWinner))
	_, err = f.engine.ClaimToken(ctx, call(seller, 0, 2500), auction.ID)
	check.True(t, errors.Is(err, domain.ErrNotWinner))

	// Too early, wrong caller.
	_, err = f.engine.ReclaimToken(ctx, call(seller, 0, 1500), auction.ID)
	check.True(t, errors.Is(err, domain.ErrAuctionNotEnded))
	_, err = f.engine.ReclaimToken(ctx, call(bidder1, 0, 2500), auction.ID)
	check.True(t, errors.Is(err, domain.ErrNotAuctionOwner))

	reclaimed, err := f.engine.ReclaimToken(ctx, call(seller, 0, 2500), auction.ID)
	assert.NoError(t, err)
	check.True(t, reclaimed.TokenClaimed)

	owner, err := f.registry.OwnerOf(ctx, "token-1")
	assert.NoError(t, err)
	check.Equal(t, seller, owner)

	locked, err := f.store.IsTokenAuctioned(ctx, "token-1")
	assert.NoError(t, err)
	check.False(t, locked)

	// At most once.
	_, err = f.engine.ReclaimToken(ctx, call(seller, 0, 2600), auction.ID)
	check.True(t, errors.Is(err, domain.ErrTokenAlreadyClaimed))
}

func TestClaimPaths_MutuallyExclusive(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.mint(t, "token-1", seller)

	auction, err := f.engine.CreateAuction(ctx, call(seller, 0, 500), "token-1", price(100), 1000, 2000)
	assert.NoError(t, err)
	_, _, err = f.engine.PlaceBid(ctx, call(bidder1, 150, 1500), auction.ID)
	assert.NoError(t, err)

	// A sold auction cannot be reclaimed by the seller.
	_, err = f.engine.ReclaimToken(ctx, call(seller, 0, 2500), auction.ID)
	check.True(t, errors.Is(err, domain.ErrAuctionSold))

	_, err = f.engine.ClaimToken(ctx, call(bidder1, 0, 2500), auction.ID)
	assert.NoError(t, err)

	// And claiming does not reopen the seller path.
	_, err = f.engine.ReclaimToken(ctx, call(seller, 0, 2600), auction.ID)
	check.True(t, errors.Is(err, domain.ErrAuctionSold))
}

func TestTokenReusableAfterSettlement(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.mint(t, "token-1", seller)

	auction, err := f.engine.CreateAuction(ctx, call(seller, 0, 500), "token-1", price(100), 1000, 2000)
	assert.NoError(t, err)
	_, err = f.engine.ReclaimToken(ctx, call(seller, 0, 2500), auction.ID)
	assert.NoError(t, err)

	// Back with the seller and unlocked: a new auction can start.
	second, err := f.engine.CreateAuction(ctx, call(seller, 0, 2600), "token-1", price(120), 3000, 4000)
	assert.NoError(t, err)
	check.Equal(t, uint64(1), second.ID)
}

func TestGetAuction_UnknownID(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.GetAuction(context.Background(), 99)
	check.True(t, errors.Is(err, domain.ErrAuctionNotFound))
}

func TestPhaseDerivation(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.mint(t, "token-1", seller)

	auction, err := f.engine.CreateAuction(ctx, call(seller, 0, 500), "token-1", price(100), 1000, 2000)
	assert.NoError(t, err)

	phase, err := f.engine.Phase(ctx, auction.ID, time.Unix(900, 0))
	assert.NoError(t, err)
	check.Equal(t, domain.AuctionPending, phase)

	phase, err = f.engine.Phase(ctx, auction.ID, time.Unix(1500, 0))
	assert.NoError(t, err)
	check.Equal(t, domain.AuctionActive, phase)

	phase, err = f.engine.Phase(ctx, auction.ID, time.Unix(2500, 0))
	assert.NoError(t, err)
	check.Equal(t, domain.AuctionEndedUnsold, phase)

	_, _, err = f.engine.PlaceBid(ctx, call(bidder1, 150, 1500), auction.ID)
	assert.NoError(t, err)

	phase, err = f.engine.Phase(ctx, auction.ID, time.Unix(2500, 0))
	assert.NoError(t, err)
	check.Equal(t, domain.AuctionEndedSold, phase)
}
