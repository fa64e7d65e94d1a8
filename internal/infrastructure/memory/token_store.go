package memory

import (
	"context"
	"sync"

	"nft-market/internal/domain"
)

type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*domain.Token
}

func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[string]*domain.Token)}
}

func (s *TokenStore) InsertToken(ctx context.Context, token *domain.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[token.ID]; ok {
		return domain.ErrTokenExists
	}
	copied := *token
	s.tokens[token.ID] = &copied
	return nil
}

func (s *TokenStore) GetToken(ctx context.Context, tokenID string) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[tokenID]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	copied := *token
	return &copied, nil
}

func (s *TokenStore) SetTokenOwner(ctx context.Context, tokenID, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[tokenID]
	if !ok {
		return domain.ErrTokenNotFound
	}
	token.Owner = owner
	return nil
}

func (s *TokenStore) TokensByOwner(ctx context.Context, owner string) ([]*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tokens []*domain.Token
	for _, token := range s.tokens {
		if token.Owner == owner {
			copied := *token
			tokens = append(tokens, &copied)
		}
	}
	return tokens, nil
}
