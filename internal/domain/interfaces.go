package domain

import (
	"context"
	"time"
)

// PayloadKind names the indexer feed a raw payload came from.
type PayloadKind string

const (
	PayloadVaults  PayloadKind = "vaults"
	PayloadTokens  PayloadKind = "tokens"
	PayloadRewards PayloadKind = "rewards"
)

// Indexer defines the raw feeds consumed from the indexer API.
type Indexer interface {
	FetchVaults(ctx context.Context, chainID uint64) ([]byte, error)
	FetchTokens(ctx context.Context, chainID uint64) ([]byte, error)
	FetchRewards(ctx context.Context, chainID uint64) ([]byte, error)
}

// Snapshot is the last raw payload received for a chain and feed.
type Snapshot struct {
	ChainID   uint64
	Kind      PayloadKind
	Payload   []byte
	FetchedAt time.Time
}

// SnapshotRepository keeps the last good payload per chain so a failed
// fetch can still serve data.
type SnapshotRepository interface {
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
	LatestSnapshot(ctx context.Context, chainID uint64, kind PayloadKind) (*Snapshot, error)
}

// Holding links a wallet to a vault it already holds.
type Holding struct {
	Wallet    string
	Vault     VaultKey
	CreatedAt time.Time
}

// HoldingRepository defines storage operations for wallet holdings.
type HoldingRepository interface {
	SaveHolding(ctx context.Context, h *Holding) error
	ListHoldings(ctx context.Context, wallet string) ([]*Holding, error)
	DeleteHolding(ctx context.Context, wallet string, vault VaultKey) error
}
