package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// USDPriceScale is the fixed-point scale of the indexer's USD price feed.
const USDPriceScale int32 = 6

// TokenRecord holds token metadata plus a display price derived from RawPrice.
type TokenRecord struct {
	Address    string          `json:"address"`
	ChainID    uint64          `json:"chainID"`
	Name       string          `json:"name"`
	Symbol     string          `json:"symbol"`
	Decimals   int32           `json:"decimals"`
	RawPrice   *big.Int        `json:"rawPrice,omitempty"`
	PriceScale int32           `json:"priceScale"`
	Price      decimal.Decimal `json:"price"`
}

func (t TokenRecord) Key() VaultKey {
	return NewVaultKey(t.ChainID, t.Address)
}

// IsZero reports whether t is a lookup placeholder rather than indexed data.
func (t TokenRecord) IsZero() bool {
	return t.Symbol == "" && t.Decimals == 0 && t.RawPrice == nil
}
