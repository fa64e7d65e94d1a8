package memory

import (
	"context"
	"sync"
	"time"

	"nft-market/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Treasury is an in-process PayoutSender: it credits a per-account balance
// and records every payout it performs. Production deployments publish
// payout commands instead; this implementation backs tests and single-node
// runs.
type Treasury struct {
	mu       sync.RWMutex
	balances map[string]decimal.Decimal
	payouts  []domain.Payout
}

func NewTreasury() *Treasury {
	return &Treasury{balances: make(map[string]decimal.Decimal)}
}

func (t *Treasury) Send(ctx context.Context, to string, amount decimal.Decimal, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.balances[to] = t.balances[to].Add(amount)
	t.payouts = append(t.payouts, domain.Payout{
		Reference: uuid.NewString(),
		To:        to,
		Amount:    amount,
		Reason:    reason,
		Timestamp: time.Now(),
	})
	return nil
}

// Balance returns the total value sent to an account.
func (t *Treasury) Balance(account string) decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balances[account]
}

// Payouts returns every recorded transfer in send order.
func (t *Treasury) Payouts() []domain.Payout {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.Payout, len(t.payouts))
	copy(out, t.payouts)
	return out
}
