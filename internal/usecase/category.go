package usecase

import (
	"strings"

	"github.com/yearn/vault_catalog/internal/domain"
)

const CategoryVolatile = "Volatile"

// NormalizeVaultCategory maps the indexer's "auto" label to "Volatile" and
// trims everything else.
func NormalizeVaultCategory(category string) string {
	c := strings.TrimSpace(category)
	if strings.EqualFold(c, "auto") {
		return CategoryVolatile
	}
	return c
}

// ClassifyVault returns the display category of v. It is recomputed on every call.
func ClassifyVault(v domain.VaultRecord) string {
	return NormalizeVaultCategory(v.Category)
}

// MatchesCategory compares categories trimmed and case-insensitively;
// upstream casing is not consistent.
func MatchesCategory(v domain.VaultRecord, expected string) bool {
	return strings.EqualFold(ClassifyVault(v), NormalizeVaultCategory(expected))
}

func MatchesPartner(v domain.VaultRecord, partner string) bool {
	return strings.EqualFold(strings.TrimSpace(v.Partner), strings.TrimSpace(partner))
}

// Inclusion is the tri-state answer of an inclusion lookup.
// NoOpinion means the key is absent, which is not the same as Excluded.
type Inclusion int

const (
	NoOpinion Inclusion = iota
	Included
	Excluded
)

func (i Inclusion) String() string {
	switch i {
	case Included:
		return "included"
	case Excluded:
		return "excluded"
	}
	return "no_opinion"
}

// Bool returns the flag and whether the map had an opinion at all.
func (i Inclusion) Bool() (value bool, ok bool) {
	return i == Included, i != NoOpinion
}

// InclusionMap wraps a category or partner flag map. Lookups try the exact
// key first and fall back to a case-insensitive match.
type InclusionMap struct {
	exact  map[string]bool
	folded map[string]bool
}

func NewInclusionMap(flags map[string]bool) InclusionMap {
	m := InclusionMap{
		exact:  make(map[string]bool, len(flags)),
		folded: make(map[string]bool, len(flags)),
	}
	for k, v := range flags {
		m.exact[k] = v
		fk := strings.ToLower(k)
		if _, dup := m.folded[fk]; !dup {
			m.folded[fk] = v
		}
	}
	return m
}

func (m InclusionMap) Lookup(key string) Inclusion {
	if v, ok := m.exact[key]; ok {
		return toInclusion(v)
	}
	if v, ok := m.folded[strings.ToLower(key)]; ok {
		return toInclusion(v)
	}
	return NoOpinion
}

func (m InclusionMap) Len() int {
	return len(m.exact)
}

// GetInclusionFlag is the one-shot form of InclusionMap.Lookup.
func GetInclusionFlag(flags map[string]bool, key string) Inclusion {
	if v, ok := flags[key]; ok {
		return toInclusion(v)
	}
	for k, v := range flags {
		if strings.EqualFold(k, key) {
			return toInclusion(v)
		}
	}
	return NoOpinion
}

func toInclusion(v bool) Inclusion {
	if v {
		return Included
	}
	return Excluded
}
