package usecase

import (
	"strings"

	"github.com/yearn/vault_catalog/internal/domain"
)

// Predicate reports whether a vault may appear in a view.
type Predicate func(v domain.VaultRecord) bool

func NotHidden(v domain.VaultRecord) bool  { return !v.Info.IsHidden }
func NotRetired(v domain.VaultRecord) bool { return !v.Info.IsRetired }

// NotMigratable excludes vaults that point users to a migration target.
func NotMigratable(v domain.VaultRecord) bool { return !v.Migration.Available }

func HasTVL(v domain.VaultRecord) bool { return v.TVLUSD > 0 }

func HasTokenSymbol(v domain.VaultRecord) bool {
	return strings.TrimSpace(v.Token.Symbol) != ""
}

// NotIn excludes vaults whose composite key is in excluded.
func NotIn(excluded domain.KeySet) Predicate {
	return func(v domain.VaultRecord) bool {
		return !excluded.Has(v.Key())
	}
}

// All composes predicates by logical AND.
func All(preds ...Predicate) Predicate {
	return func(v domain.VaultRecord) bool {
		for _, p := range preds {
			if !p(v) {
				return false
			}
		}
		return true
	}
}

func Eligibility(excluded domain.KeySet) Predicate {
	return All(NotHidden, NotRetired, NotMigratable, HasTVL, NotIn(excluded), HasTokenSymbol)
}

// IsEligible reports whether v passes every eligibility rule.
func IsEligible(v domain.VaultRecord, excluded domain.KeySet) bool {
	return Eligibility(excluded)(v)
}

// Filter keeps the vaults accepted by pred, in input order.
func Filter(vaults []domain.VaultRecord, pred Predicate) []domain.VaultRecord {
	out := make([]domain.VaultRecord, 0, len(vaults))
	for _, v := range vaults {
		if pred(v) {
			out = append(out, v)
		}
	}
	return out
}

func FilterEligible(vaults []domain.VaultRecord, excluded domain.KeySet) []domain.VaultRecord {
	return Filter(vaults, Eligibility(excluded))
}
