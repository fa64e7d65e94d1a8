package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nft-market/internal/domain"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const payoutsChannel = "market_payouts"

// PayoutPublisher hands outgoing value transfers to an external settlement
// worker over a redis channel. The publish must succeed before the engine
// commits the state change that depends on it.
type PayoutPublisher struct {
	client *redis.Client
}

func NewPayoutPublisher(client *redis.Client) *PayoutPublisher {
	return &PayoutPublisher{client: client}
}

func (p *PayoutPublisher) Send(ctx context.Context, to string, amount decimal.Decimal, reason string) error {
	payout := domain.Payout{
		Reference: uuid.NewString(),
		To:        to,
		Amount:    amount,
		Reason:    reason,
		Timestamp: time.Now(),
	}

	payload, err := json.Marshal(payout)
	if err != nil {
		return fmt.Errorf("encode payout: %w", err)
	}
	return p.client.Publish(ctx, payoutsChannel, payload).Err()
}
