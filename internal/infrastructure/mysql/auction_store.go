package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"nft-market/internal/domain"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

// AuctionStore persists the auction collections in MySQL. Compound writes
// (create, settle) run inside one transaction so the record, the owner index
// and the auctioned-token set never disagree.
//
// Schema:
//
//	CREATE TABLE auction_sequence (id TINYINT PRIMARY KEY, next_id BIGINT UNSIGNED NOT NULL);
//	INSERT INTO auction_sequence VALUES (1, 0);
//	CREATE TABLE auctions (
//	    id BIGINT UNSIGNED PRIMARY KEY,
//	    owner VARCHAR(128) NOT NULL,
//	    token_id VARCHAR(128) NOT NULL,
//	    start_price DECIMAL(40,0) NOT NULL,
//	    current_price DECIMAL(40,0) NOT NULL,
//	    start_time BIGINT NOT NULL,
//	    end_time BIGINT NOT NULL,
//	    winner VARCHAR(128) NULL,
//	    proceeds_claimed BOOLEAN NOT NULL DEFAULT FALSE,
//	    token_claimed BOOLEAN NOT NULL DEFAULT FALSE
//	);
//	CREATE TABLE auction_owner_index (
//	    owner VARCHAR(128) NOT NULL,
//	    position BIGINT UNSIGNED NOT NULL,
//	    auction_id BIGINT UNSIGNED NOT NULL,
//	    PRIMARY KEY (owner, position)
//	);
//	CREATE TABLE auctioned_tokens (token_id VARCHAR(128) PRIMARY KEY);
type AuctionStore struct {
	db *sql.DB
}

func NewAuctionStore(db *sql.DB) *AuctionStore {
	return &AuctionStore{db: db}
}

func (s *AuctionStore) AllocateAuctionID(ctx context.Context) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var next uint64
	if err := tx.QueryRowContext(ctx,
		`SELECT next_id FROM auction_sequence WHERE id = 1 FOR UPDATE`).Scan(&next); err != nil {
		return 0, fmt.Errorf("read auction sequence: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE auction_sequence SET next_id = next_id + 1 WHERE id = 1`); err != nil {
		return 0, fmt.Errorf("advance auction sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *AuctionStore) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO auctions (id, owner, token_id, start_price, current_price,
                              start_time, end_time, winner, proceeds_claimed, token_claimed)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		auction.ID, auction.Owner, auction.TokenID,
		auction.StartPrice.String(), auction.CurrentPrice.String(),
		auction.StartTime, auction.EndTime,
		winnerValue(auction), auction.ProceedsClaimed, auction.TokenClaimed)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO auction_owner_index (owner, position, auction_id)
        SELECT ?, COUNT(*), ? FROM auction_owner_index WHERE owner = ?
    `, auction.Owner, auction.ID, auction.Owner)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO auctioned_tokens (token_id) VALUES (?)`, auction.TokenID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *AuctionStore) GetAuction(ctx context.Context, auctionID uint64) (*domain.Auction, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, owner, token_id, start_price, current_price,
               start_time, end_time, winner, proceeds_claimed, token_claimed
        FROM auctions WHERE id = ?
    `, auctionID)

	auction, err := scanAuction(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrAuctionNotFound
	}
	return auction, err
}

func (s *AuctionStore) UpdateAuction(ctx context.Context, auction *domain.Auction) error {
	result, err := s.db.ExecContext(ctx, `
        UPDATE auctions
        SET current_price = ?, winner = ?, proceeds_claimed = ?, token_claimed = ?
        WHERE id = ?
    `,
		auction.CurrentPrice.String(), winnerValue(auction),
		auction.ProceedsClaimed, auction.TokenClaimed, auction.ID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// The row may exist with identical values; distinguish from absent.
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM auctions WHERE id = ?`, auction.ID).Scan(&exists); err == sql.ErrNoRows {
			return domain.ErrAuctionNotFound
		} else if err != nil {
			return err
		}
	}
	return nil
}

func (s *AuctionStore) SettleToken(ctx context.Context, auction *domain.Auction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        UPDATE auctions
        SET current_price = ?, winner = ?, proceeds_claimed = ?, token_claimed = ?
        WHERE id = ?
    `,
		auction.CurrentPrice.String(), winnerValue(auction),
		auction.ProceedsClaimed, auction.TokenClaimed, auction.ID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM auctioned_tokens WHERE token_id = ?`, auction.TokenID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *AuctionStore) IsTokenAuctioned(ctx context.Context, tokenID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM auctioned_tokens WHERE token_id = ?`, tokenID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *AuctionStore) AuctionIDsByOwner(ctx context.Context, owner string) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT auction_id FROM auction_owner_index
        WHERE owner = ? ORDER BY position ASC
    `, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *AuctionStore) TotalAuctions(ctx context.Context) (uint64, error) {
	var total uint64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM auctions`).Scan(&total)
	return total, err
}

func (s *AuctionStore) ListAuctions(ctx context.Context) ([]*domain.Auction, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, owner, token_id, start_price, current_price,
               start_time, end_time, winner, proceeds_claimed, token_claimed
        FROM auctions
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, auction)
	}
	return auctions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	var auction domain.Auction
	var startPrice, currentPrice string
	var winner sql.NullString

	err := row.Scan(&auction.ID, &auction.Owner, &auction.TokenID,
		&startPrice, &currentPrice,
		&auction.StartTime, &auction.EndTime,
		&winner, &auction.ProceedsClaimed, &auction.TokenClaimed)
	if err != nil {
		return nil, err
	}

	if auction.StartPrice, err = decimal.NewFromString(startPrice); err != nil {
		return nil, fmt.Errorf("corrupt start price %q: %w", startPrice, err)
	}
	if auction.CurrentPrice, err = decimal.NewFromString(currentPrice); err != nil {
		return nil, fmt.Errorf("corrupt current price %q: %w", currentPrice, err)
	}
	if winner.Valid {
		auction.Winner = &winner.String
	}
	return &auction, nil
}

func winnerValue(auction *domain.Auction) interface{} {
	if auction.Winner == nil {
		return nil
	}
	return *auction.Winner
}
