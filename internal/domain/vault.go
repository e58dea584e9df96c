package domain

import (
	"fmt"
	"math/big"
	"strings"
)

// VaultKey identifies a vault or token across chains.
type VaultKey struct {
	ChainID uint64
	Address string // lower-cased
}

func NewVaultKey(chainID uint64, address string) VaultKey {
	return VaultKey{ChainID: chainID, Address: strings.ToLower(strings.TrimSpace(address))}
}

func (k VaultKey) String() string {
	return fmt.Sprintf("%d/%s", k.ChainID, k.Address)
}

// KeySet is a set of composite keys, e.g. the vaults already shown in a holdings section.
type KeySet map[VaultKey]struct{}

func NewKeySet(keys ...VaultKey) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

func (s KeySet) Add(k VaultKey) {
	s[NewVaultKey(k.ChainID, k.Address)] = struct{}{}
}

func (s KeySet) Has(k VaultKey) bool {
	if s == nil {
		return false
	}
	_, ok := s[NewVaultKey(k.ChainID, k.Address)]
	return ok
}

// TokenRef is the underlying token of a vault as reported by the indexer.
type TokenRef struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

type APYSeries struct {
	Net       float64 `json:"net"`
	WeekAgo   float64 `json:"weekAgo"`
	MonthAgo  float64 `json:"monthAgo"`
	Inception float64 `json:"inception"`
}

type Staking struct {
	Available bool   `json:"available"`
	Address   string `json:"address,omitempty"`
	Source    string `json:"source,omitempty"`
}

type Migration struct {
	Available bool   `json:"available"`
	Target    string `json:"target,omitempty"`
}

type VaultInfo struct {
	IsHidden  bool `json:"isHidden"`
	IsRetired bool `json:"isRetired"`
}

// VaultRecord is the canonical vault shape built once per fetch cycle.
// Records are never mutated after construction; the next cycle replaces them.
type VaultRecord struct {
	Address     string    `json:"address"`
	ChainID     uint64    `json:"chainID"`
	Name        string    `json:"name"`
	Symbol      string    `json:"symbol"`
	Category    string    `json:"category"`
	Kind        string    `json:"kind"`
	Partner     string    `json:"partner,omitempty"`
	Decimals    int32     `json:"decimals"`
	Token       TokenRef  `json:"token"`
	TVLUSD      float64   `json:"tvl"`
	TotalAssets *big.Int  `json:"totalAssets,omitempty"`
	APY         APYSeries `json:"apy"`
	Staking     Staking   `json:"staking"`
	Migration   Migration `json:"migration"`
	Info        VaultInfo `json:"info"`
}

func (v VaultRecord) Key() VaultKey {
	return NewVaultKey(v.ChainID, v.Address)
}
