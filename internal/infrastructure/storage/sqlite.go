package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/yearn/vault_catalog/internal/domain"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			chain_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			payload BLOB NOT NULL,
			fetched_at DATETIME NOT NULL,
			PRIMARY KEY (chain_id, kind)
		);`,
		`CREATE TABLE IF NOT EXISTS holdings (
			wallet TEXT NOT NULL,
			chain_id INTEGER NOT NULL,
			vault_address TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (wallet, chain_id, vault_address)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_holdings_wallet ON holdings(wallet);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	return nil
}

// SnapshotRepository Implementation

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	query := `INSERT INTO snapshots (chain_id, kind, payload, fetched_at)
			  VALUES (?, ?, ?, ?)
			  ON CONFLICT(chain_id, kind) DO UPDATE SET
			  payload=excluded.payload,
			  fetched_at=excluded.fetched_at`
	_, err := s.db.ExecContext(ctx, query, snap.ChainID, string(snap.Kind), snap.Payload, snap.FetchedAt)
	return err
}

// LatestSnapshot returns nil, nil when nothing has been stored yet.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, chainID uint64, kind domain.PayloadKind) (*domain.Snapshot, error) {
	query := `SELECT chain_id, kind, payload, fetched_at FROM snapshots WHERE chain_id = ? AND kind = ?`
	row := s.db.QueryRowContext(ctx, query, chainID, string(kind))

	var snap domain.Snapshot
	var k string
	err := row.Scan(&snap.ChainID, &k, &snap.Payload, &snap.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snap.Kind = domain.PayloadKind(k)
	return &snap, nil
}

// HoldingRepository Implementation

func normalizeWallet(wallet string) string {
	return strings.ToLower(strings.TrimSpace(wallet))
}

func (s *SQLiteStore) SaveHolding(ctx context.Context, h *domain.Holding) error {
	createdAt := h.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	query := `INSERT INTO holdings (wallet, chain_id, vault_address, created_at)
			  VALUES (?, ?, ?, ?)
			  ON CONFLICT(wallet, chain_id, vault_address) DO NOTHING`
	key := domain.NewVaultKey(h.Vault.ChainID, h.Vault.Address)
	_, err := s.db.ExecContext(ctx, query, normalizeWallet(h.Wallet), key.ChainID, key.Address, createdAt)
	return err
}

func (s *SQLiteStore) ListHoldings(ctx context.Context, wallet string) ([]*domain.Holding, error) {
	query := `SELECT wallet, chain_id, vault_address, created_at FROM holdings WHERE wallet = ? ORDER BY created_at, chain_id, vault_address`
	rows, err := s.db.QueryContext(ctx, query, normalizeWallet(wallet))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []*domain.Holding
	for rows.Next() {
		var h domain.Holding
		if err := rows.Scan(&h.Wallet, &h.Vault.ChainID, &h.Vault.Address, &h.CreatedAt); err != nil {
			return nil, err
		}
		holdings = append(holdings, &h)
	}
	return holdings, rows.Err()
}

func (s *SQLiteStore) DeleteHolding(ctx context.Context, wallet string, vault domain.VaultKey) error {
	key := domain.NewVaultKey(vault.ChainID, vault.Address)
	_, err := s.db.ExecContext(ctx, "DELETE FROM holdings WHERE wallet = ? AND chain_id = ? AND vault_address = ?",
		normalizeWallet(wallet), key.ChainID, key.Address)
	return err
}
