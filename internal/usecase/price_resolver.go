package usecase

import (
	"math/big"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/shopspring/decimal"
	"github.com/yearn/vault_catalog/internal/domain"
	"go.uber.org/zap"
)

// PriceResolver looks up token metadata and prices by (chain ID, address).
// Lookups never fail: a missing entry yields a zero-valued placeholder.
type PriceResolver struct {
	tokens *xsync.Map[domain.VaultKey, domain.TokenRecord]
	logger *zap.Logger
}

func NewPriceResolver(logger *zap.Logger) *PriceResolver {
	return &PriceResolver{
		tokens: xsync.NewMap[domain.VaultKey, domain.TokenRecord](),
		logger: logger,
	}
}

// Replace swaps the token set of one chain for a freshly fetched one.
func (r *PriceResolver) Replace(chainID uint64, tokens []domain.TokenRecord) {
	fresh := make(map[domain.VaultKey]domain.TokenRecord, len(tokens))
	for _, t := range tokens {
		if t.ChainID != chainID {
			continue
		}
		fresh[t.Key()] = t
	}

	r.tokens.Range(func(k domain.VaultKey, _ domain.TokenRecord) bool {
		if k.ChainID == chainID {
			if _, ok := fresh[k]; !ok {
				r.tokens.Delete(k)
			}
		}
		return true
	})
	for k, t := range fresh {
		r.tokens.Store(k, t)
	}

	r.logger.Debug("Token prices replaced", zap.Uint64("chain_id", chainID), zap.Int("count", len(fresh)))
}

func (r *PriceResolver) Token(address string, chainID uint64) domain.TokenRecord {
	key := domain.NewVaultKey(chainID, address)
	if t, ok := r.tokens.Load(key); ok {
		return t
	}
	return domain.TokenRecord{Address: key.Address, ChainID: chainID, Price: decimal.Zero}
}

func (r *PriceResolver) Price(address string, chainID uint64) decimal.Decimal {
	return r.Token(address, chainID).Price
}

// Value returns the USD value of a raw token amount, zero when the token is unknown.
func (r *PriceResolver) Value(address string, chainID uint64, rawAmount *big.Int) decimal.Decimal {
	t := r.Token(address, chainID)
	if t.IsZero() {
		return decimal.Zero
	}
	return NormalizeAmount(rawAmount, t.Decimals).Mul(t.Price)
}

func (r *PriceResolver) Len() int {
	return r.tokens.Size()
}

// NormalizeAmount converts a fixed-point integer into a decimal by dividing by 10^scale.
// The scale depends on the feed, so callers always pass it.
func NormalizeAmount(raw *big.Int, scale int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -scale)
}
