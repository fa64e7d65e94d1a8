package services

import (
	"context"
	"fmt"

	"nft-market/internal/domain"
	"nft-market/pkg/logger"
)

// TokenRegistry owns token identity and the ownership mapping. The auction
// engine consumes it for custody movements; it applies no auction rules of
// its own.
type TokenRegistry struct {
	store domain.TokenStore
	log   logger.Logger
}

func NewTokenRegistry(store domain.TokenStore, log logger.Logger) *TokenRegistry {
	return &TokenRegistry{store: store, log: log}
}

func (r *TokenRegistry) OwnerOf(ctx context.Context, tokenID string) (string, error) {
	token, err := r.store.GetToken(ctx, tokenID)
	if err != nil {
		return "", err
	}
	return token.Owner, nil
}

func (r *TokenRegistry) Mint(ctx context.Context, tokenID, owner string, metadata *domain.TokenMetadata) (*domain.Token, error) {
	token := &domain.Token{
		ID:       tokenID,
		Owner:    owner,
		Metadata: metadata,
	}
	if err := r.store.InsertToken(ctx, token); err != nil {
		return nil, err
	}

	r.log.Info("Token minted", "token_id", tokenID, "owner", owner)
	return token, nil
}

// Transfer moves a token on behalf of from, refusing unless from is the
// recorded owner.
func (r *TokenRegistry) Transfer(ctx context.Context, from, to, tokenID string) error {
	owner, err := r.OwnerOf(ctx, tokenID)
	if err != nil {
		return err
	}
	if owner != from {
		return domain.ErrNotTokenOwner
	}
	return r.TransferUnguarded(ctx, tokenID, from, to)
}

// TransferUnguarded records the new owner without an authorization check.
// Only custody movements where the marketplace is the recorded owner go
// through here.
func (r *TokenRegistry) TransferUnguarded(ctx context.Context, tokenID, from, to string) error {
	if err := r.store.SetTokenOwner(ctx, tokenID, to); err != nil {
		return fmt.Errorf("transfer of token %s: %w", tokenID, err)
	}

	r.log.Info("Token transferred", "token_id", tokenID, "from", from, "to", to)
	return nil
}

func (r *TokenRegistry) Token(ctx context.Context, tokenID string) (*domain.Token, error) {
	return r.store.GetToken(ctx, tokenID)
}

func (r *TokenRegistry) TokensByOwner(ctx context.Context, owner string) ([]*domain.Token, error) {
	return r.store.TokensByOwner(ctx, owner)
}
