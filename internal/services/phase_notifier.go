package services

import (
	"context"
	"sync"
	"time"

	"nft-market/internal/domain"
	"nft-market/pkg/logger"

	"github.com/robfig/cron/v3"
)

// PhaseNotifier announces auction phase crossings (started, ended) on the
// event stream. It is purely observational: the engine decides every
// operation from timestamps alone, whether or not a notification fired.
// Only the elected leader announces, so a phase crossing is published once
// across instances.
type PhaseNotifier struct {
	cron           *cron.Cron
	store          domain.AuctionStore
	events         domain.EventPublisher
	leaderElection domain.LeaderElection
	instanceID     string
	log            logger.Logger

	mu        sync.Mutex
	announced map[uint64]domain.AuctionPhase
}

func NewPhaseNotifier(
	store domain.AuctionStore,
	events domain.EventPublisher,
	leaderElection domain.LeaderElection,
	instanceID string,
	log logger.Logger,
) *PhaseNotifier {
	return &PhaseNotifier{
		cron:           cron.New(cron.WithSeconds()),
		store:          store,
		events:         events,
		leaderElection: leaderElection,
		instanceID:     instanceID,
		log:            log,
		announced:      make(map[uint64]domain.AuctionPhase),
	}
}

func (n *PhaseNotifier) Start(ctx context.Context) error {
	n.log.Info("Starting phase notifier")

	_, err := n.cron.AddFunc("@every 5s", func() {
		n.announcePhaseCrossings(ctx)
	})
	if err != nil {
		return err
	}

	n.cron.Start()
	return nil
}

func (n *PhaseNotifier) Stop() error {
	n.log.Info("Stopping phase notifier")
	n.cron.Stop()
	return nil
}

func (n *PhaseNotifier) announcePhaseCrossings(ctx context.Context) {
	isLeader, err := n.leaderElection.IsLeader(ctx, n.instanceID)
	if err != nil {
		n.log.Error("Failed to check leadership", "error", err)
		return
	}
	if !isLeader {
		return
	}

	auctions, err := n.store.ListAuctions(ctx)
	if err != nil {
		n.log.Error("Failed to list auctions", "error", err)
		return
	}

	now := time.Now()
	for _, auction := range auctions {
		// Fully settled auctions are inert; dropping them keeps the map
		// bounded and keeps a restarted leader from re-announcing them.
		if auction.TokenClaimed && auction.ProceedsClaimed {
			n.mu.Lock()
			delete(n.announced, auction.ID)
			n.mu.Unlock()
			continue
		}

		phase := auction.Phase(now)

		n.mu.Lock()
		last, seen := n.announced[auction.ID]
		n.mu.Unlock()

		var eventType domain.MarketEventType
		switch {
		case phase == domain.AuctionActive && (!seen || last == domain.AuctionPending):
			eventType = domain.AuctionStarted
		case (phase == domain.AuctionEndedSold || phase == domain.AuctionEndedUnsold) &&
			(!seen || last == domain.AuctionPending || last == domain.AuctionActive):
			eventType = domain.AuctionEnded
		default:
			n.mu.Lock()
			n.announced[auction.ID] = phase
			n.mu.Unlock()
			continue
		}

		event := &domain.MarketEvent{
			Type:      eventType,
			AuctionID: auction.ID,
			TokenID:   auction.TokenID,
			Amount:    auction.CurrentPrice,
			Timestamp: now,
		}
		if err := n.events.PublishMarketEvent(ctx, event); err != nil {
			n.log.Error("Failed to announce phase crossing", "auction_id", auction.ID, "error", err)
			continue
		}

		n.mu.Lock()
		n.announced[auction.ID] = phase
		n.mu.Unlock()

		n.log.Info("Announced phase crossing", "auction_id", auction.ID, "phase", phase.String())
	}
}
