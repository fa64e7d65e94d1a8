package memory

import (
	"context"
	"sync"

	"nft-market/internal/domain"
)

// AuctionStore keeps the auction collections in process memory behind a
// single mutex, which gives the compound writes their all-or-nothing
// behavior. Used by tests and single-node deployments.
type AuctionStore struct {
	mu         sync.RWMutex
	byID       map[uint64]*domain.Auction
	byOwner    map[string][]uint64
	lockedSet  map[string]struct{}
	nextID     uint64
	totalCount uint64
}

func NewAuctionStore() *AuctionStore {
	return &AuctionStore{
		byID:      make(map[uint64]*domain.Auction),
		byOwner:   make(map[string][]uint64),
		lockedSet: make(map[string]struct{}),
	}
}

// SeedSequence sets the next id to allocate. Test hook; ids stay monotonic
// from the seeded value.
func (s *AuctionStore) SeedSequence(next uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if next > s.nextID {
		s.nextID = next
	}
}

func (s *AuctionStore) AllocateAuctionID(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	return id, nil
}

func (s *AuctionStore) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *auction
	s.byID[auction.ID] = &copied
	s.byOwner[auction.Owner] = append(s.byOwner[auction.Owner], auction.ID)
	s.lockedSet[auction.TokenID] = struct{}{}
	s.totalCount++
	return nil
}

func (s *AuctionStore) GetAuction(ctx context.Context, auctionID uint64) (*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	auction, ok := s.byID[auctionID]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	copied := *auction
	return &copied, nil
}

func (s *AuctionStore) UpdateAuction(ctx context.Context, auction *domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[auction.ID]; !ok {
		return domain.ErrAuctionNotFound
	}
	copied := *auction
	s.byID[auction.ID] = &copied
	return nil
}

func (s *AuctionStore) SettleToken(ctx context.Context, auction *domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[auction.ID]; !ok {
		return domain.ErrAuctionNotFound
	}
	copied := *auction
	s.byID[auction.ID] = &copied
	delete(s.lockedSet, auction.TokenID)
	return nil
}

func (s *AuctionStore) IsTokenAuctioned(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, locked := s.lockedSet[tokenID]
	return locked, nil
}

func (s *AuctionStore) AuctionIDsByOwner(ctx context.Context, owner string) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]uint64, len(s.byOwner[owner]))
	copy(ids, s.byOwner[owner])
	return ids, nil
}

func (s *AuctionStore) TotalAuctions(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalCount, nil
}

func (s *AuctionStore) ListAuctions(ctx context.Context) ([]*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	auctions := make([]*domain.Auction, 0, len(s.byID))
	for _, auction := range s.byID {
		copied := *auction
		auctions = append(auctions, &copied)
	}
	return auctions, nil
}
