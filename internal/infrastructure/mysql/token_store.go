package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"nft-market/internal/domain"

	"github.com/go-sql-driver/mysql"
)

// TokenStore persists registry records.
//
// Schema:
//
//	CREATE TABLE tokens (
//	    id VARCHAR(128) PRIMARY KEY,
//	    owner VARCHAR(128) NOT NULL,
//	    metadata JSON NULL,
//	    KEY idx_tokens_owner (owner)
//	);
type TokenStore struct {
	db *sql.DB
}

func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

func (s *TokenStore) InsertToken(ctx context.Context, token *domain.Token) error {
	var metadata interface{}
	if token.Metadata != nil {
		encoded, err := json.Marshal(token.Metadata)
		if err != nil {
			return fmt.Errorf("encode token metadata: %w", err)
		}
		metadata = encoded
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tokens (id, owner, metadata) VALUES (?, ?, ?)`,
		token.ID, token.Owner, metadata)
	if mysqlErr, ok := err.(*mysql.MySQLError); ok && mysqlErr.Number == 1062 {
		return domain.ErrTokenExists
	}
	return err
}

func (s *TokenStore) GetToken(ctx context.Context, tokenID string) (*domain.Token, error) {
	var token domain.Token
	var metadata sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner, metadata FROM tokens WHERE id = ?`, tokenID).
		Scan(&token.ID, &token.Owner, &metadata)
	if err == sql.ErrNoRows {
		return nil, domain.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}

	if metadata.Valid {
		token.Metadata = &domain.TokenMetadata{}
		if err := json.Unmarshal([]byte(metadata.String), token.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt token metadata: %w", err)
		}
	}
	return &token, nil
}

func (s *TokenStore) SetTokenOwner(ctx context.Context, tokenID, owner string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tokens SET owner = ? WHERE id = ?`, owner, tokenID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM tokens WHERE id = ?`, tokenID).Scan(&exists); err == sql.ErrNoRows {
			return domain.ErrTokenNotFound
		} else if err != nil {
			return err
		}
	}
	return nil
}

func (s *TokenStore) TokensByOwner(ctx context.Context, owner string) ([]*domain.Token, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner, metadata FROM tokens WHERE owner = ?`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []*domain.Token
	for rows.Next() {
		var token domain.Token
		var metadata sql.NullString
		if err := rows.Scan(&token.ID, &token.Owner, &metadata); err != nil {
			return nil, err
		}
		if metadata.Valid {
			token.Metadata = &domain.TokenMetadata{}
			if err := json.Unmarshal([]byte(metadata.String), token.Metadata); err != nil {
				return nil, fmt.Errorf("corrupt token metadata: %w", err)
			}
		}
		tokens = append(tokens, &token)
	}
	return tokens, rows.Err()
}
