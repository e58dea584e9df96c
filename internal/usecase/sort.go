package usecase

import (
	"math"
	"math/big"
	"slices"
	"strings"
	"sync"

	"github.com/yearn/vault_catalog/internal/domain"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type SortDirection string

const (
	SortDesc SortDirection = "desc"
	SortAsc  SortDirection = "asc"
)

// ParseSortDirection accepts any casing; anything other than "desc" is ascending.
func ParseSortDirection(s string) SortDirection {
	if strings.EqualFold(strings.TrimSpace(s), string(SortDesc)) {
		return SortDesc
	}
	return SortAsc
}

// Collators are not safe for concurrent use.
var collators = sync.Pool{
	New: func() any { return collate.New(language.English) },
}

// All comparators below share one contract: the direction decides the
// operand order, it never negates the result. With "desc" the string
// comparator compares (a, b) while the numeric ones compute b - a; any other
// direction swaps the operands.

// CompareStrings orders a and b by locale-aware collation.
func CompareStrings(a, b string, dir SortDirection) int {
	c := collators.Get().(*collate.Collator)
	defer collators.Put(c)
	if dir == SortDesc {
		return c.CompareString(a, b)
	}
	return c.CompareString(b, a)
}

// CompareNumbers subtracts the operands, treating nil as zero.
func CompareNumbers(a, b *float64, dir SortDirection) float64 {
	x, y := deref(a), deref(b)
	if dir == SortDesc {
		return y - x
	}
	return x - y
}

// CompareBigInts subtracts exactly in integer space and normalizes the
// difference with the given decimals for the final ordering value.
func CompareBigInts(a, b *big.Int, decimals int32, dir SortDirection) float64 {
	x, y := bigOrZero(a), bigOrZero(b)
	diff := new(big.Int)
	if dir == SortDesc {
		diff.Sub(y, x)
	} else {
		diff.Sub(x, y)
	}
	d := NormalizeAmount(diff, decimals)
	f := d.InexactFloat64()
	if f == 0 && d.Sign() != 0 {
		// Underflowed; keep the sign so distinct amounts never tie.
		f = float64(d.Sign()) * math.SmallestNonzeroFloat64
	}
	return f
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func bigOrZero(n *big.Int) *big.Int {
	if n == nil {
		return new(big.Int)
	}
	return n
}

type SortField string

const (
	SortByName        SortField = "name"
	SortBySymbol      SortField = "symbol"
	SortByToken       SortField = "token"
	SortByCategory    SortField = "category"
	SortByTVL         SortField = "tvl"
	SortByAPY         SortField = "apy"
	SortByTotalAssets SortField = "totalAssets"
)

func ParseSortField(s string) (SortField, bool) {
	switch f := SortField(strings.TrimSpace(s)); f {
	case SortByName, SortBySymbol, SortByToken, SortByCategory, SortByTVL, SortByAPY, SortByTotalAssets:
		return f, true
	}
	return "", false
}

func sign(f float64) int {
	switch {
	case f < 0:
		return -1
	case f > 0:
		return 1
	}
	return 0
}

// VaultComparator returns the three-way comparator for field.
func VaultComparator(field SortField, dir SortDirection) func(a, b domain.VaultRecord) int {
	switch field {
	case SortByName:
		return func(a, b domain.VaultRecord) int { return CompareStrings(a.Name, b.Name, dir) }
	case SortBySymbol:
		return func(a, b domain.VaultRecord) int { return CompareStrings(a.Symbol, b.Symbol, dir) }
	case SortByToken:
		return func(a, b domain.VaultRecord) int { return CompareStrings(a.Token.Symbol, b.Token.Symbol, dir) }
	case SortByCategory:
		return func(a, b domain.VaultRecord) int {
			return CompareStrings(ClassifyVault(a), ClassifyVault(b), dir)
		}
	case SortByTVL:
		return func(a, b domain.VaultRecord) int { return sign(CompareNumbers(&a.TVLUSD, &b.TVLUSD, dir)) }
	case SortByAPY:
		return func(a, b domain.VaultRecord) int { return sign(CompareNumbers(&a.APY.Net, &b.APY.Net, dir)) }
	case SortByTotalAssets:
		return func(a, b domain.VaultRecord) int {
			return sign(CompareBigInts(a.TotalAssets, b.TotalAssets, a.Decimals, dir))
		}
	}
	return func(a, b domain.VaultRecord) int { return 0 }
}

// SortVaults returns a stably sorted copy of vaults; equal keys keep their input order.
func SortVaults(vaults []domain.VaultRecord, field SortField, dir SortDirection) []domain.VaultRecord {
	out := slices.Clone(vaults)
	slices.SortStableFunc(out, VaultComparator(field, dir))
	return out
}

// SortRewards orders a reward feed by amount, normalized with decimals.
func SortRewards(rewards []domain.GaugeReward, decimals int32, dir SortDirection) []domain.GaugeReward {
	out := slices.Clone(rewards)
	slices.SortStableFunc(out, func(a, b domain.GaugeReward) int {
		return sign(CompareBigInts(a.Amount, b.Amount, decimals, dir))
	})
	return out
}
