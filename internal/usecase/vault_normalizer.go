package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"github.com/yearn/vault_catalog/internal/domain"
	"go.uber.org/zap"
)

// ErrMalformedPayload is returned when a feed is not JSON at all, or not a
// collection. Schema mismatches inside a valid collection never error.
var ErrMalformedPayload = errors.New("malformed payload")

type NormalizeStatus int

const (
	StatusValid NormalizeStatus = iota
	StatusDegraded
)

func (s NormalizeStatus) String() string {
	if s == StatusDegraded {
		return "degraded"
	}
	return "valid"
}

// NormalizeResult is either Valid(record) or Degraded(record, raw, reason).
// A degraded result still carries a best-effort record decoded from Raw.
type NormalizeResult[T any] struct {
	Status NormalizeStatus
	Record T
	Raw    json.RawMessage
	Reason string
}

func (r NormalizeResult[T]) IsValid() bool {
	return r.Status == StatusValid
}

type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
	kindBool
	kindAddress
	kindBigInt
	kindHash
	kindDecimals
)

// MaxDecimals bounds token and vault decimals; larger values are treated as corrupt.
const MaxDecimals = 255

type fieldRule struct {
	path     string
	kind     fieldKind
	required bool
}

var vaultSchema = []fieldRule{
	{"address", kindAddress, true},
	{"chainID", kindNumber, true},
	{"name", kindString, false},
	{"symbol", kindString, false},
	{"category", kindString, false},
	{"kind", kindString, false},
	{"protocol", kindString, false},
	{"decimals", kindDecimals, false},
	{"token.address", kindAddress, true},
	{"token.name", kindString, false},
	{"token.symbol", kindString, true},
	{"token.decimals", kindDecimals, true},
	{"tvl.tvl", kindNumber, false},
	{"tvl.totalAssets", kindBigInt, false},
	{"apr.netAPR", kindNumber, false},
	{"apr.points.weekAgo", kindNumber, false},
	{"apr.points.monthAgo", kindNumber, false},
	{"apr.points.inception", kindNumber, false},
	{"staking.available", kindBool, false},
	{"staking.address", kindAddress, false},
	{"migration.available", kindBool, false},
	{"migration.address", kindAddress, false},
	{"info.isHidden", kindBool, false},
	{"info.isRetired", kindBool, false},
}

var tokenSchema = []fieldRule{
	{"address", kindAddress, true},
	{"chainID", kindNumber, true},
	{"name", kindString, false},
	{"symbol", kindString, true},
	{"decimals", kindDecimals, true},
	{"price", kindBigInt, false},
}

var rewardSchema = []fieldRule{
	{"amount", kindBigInt, true},
	{"briber", kindAddress, true},
	{"gauge", kindAddress, true},
	{"rewardToken", kindAddress, true},
	{"txHash", kindHash, true},
	{"timestamp", kindNumber, true},
	{"blockNumber", kindNumber, true},
}

// IsHexAddress reports whether s is "0x" followed by 40 hex characters, in any case.
func IsHexAddress(s string) bool {
	return len(s) == 2*common.AddressLength+2 && (s[:2] == "0x" || s[:2] == "0X") && common.IsHexAddress(s)
}

func checkField(res gjson.Result, kind fieldKind) bool {
	switch kind {
	case kindString:
		return res.Type == gjson.String
	case kindNumber:
		return res.Type == gjson.Number
	case kindBool:
		return res.IsBool()
	case kindAddress:
		return res.Type == gjson.String && IsHexAddress(res.Str)
	case kindBigInt:
		_, ok := parseBigInt(res)
		return ok
	case kindDecimals:
		_, ok := parseDecimals(res)
		return ok
	case kindHash:
		if res.Type != gjson.String {
			return false
		}
		b, err := hexutil.Decode(res.Str)
		return err == nil && len(b) == common.HashLength
	}
	return false
}

func validate(raw []byte, schema []fieldRule) []string {
	var problems []string
	for _, rule := range schema {
		res := gjson.GetBytes(raw, rule.path)
		if !res.Exists() || res.Type == gjson.Null {
			if rule.required {
				problems = append(problems, rule.path+": required")
			}
			continue
		}
		if !checkField(res, rule.kind) {
			problems = append(problems, fmt.Sprintf("%s: invalid value %s", rule.path, res.Raw))
		}
	}
	return problems
}

func parseBigInt(res gjson.Result) (*big.Int, bool) {
	var s string
	switch res.Type {
	case gjson.String:
		s = strings.TrimSpace(res.Str)
	case gjson.Number:
		s = res.Raw
	default:
		return nil, false
	}
	n, ok := new(big.Int).SetString(s, 10)
	return n, ok
}

// parseDecimals accepts a JSON integer in [0, MaxDecimals].
func parseDecimals(res gjson.Result) (int32, bool) {
	if res.Type != gjson.Number || res.Num != math.Trunc(res.Num) || res.Num < 0 || res.Num > MaxDecimals {
		return 0, false
	}
	return int32(res.Num), true
}

// decimalsOrZero is the best-effort decimals of a degraded record.
func decimalsOrZero(res gjson.Result) int32 {
	d, _ := parseDecimals(res)
	return d
}

// Normalizer reshapes raw indexer payloads into canonical records. Schema
// mismatches are logged and counted; callers still get best-effort data.
type Normalizer struct {
	logger   *zap.Logger
	degraded atomic.Int64
}

func NewNormalizer(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// DegradedCount is the number of degraded records seen since start.
func (n *Normalizer) DegradedCount() int64 {
	return n.degraded.Load()
}

func (n *Normalizer) report(kind domain.PayloadKind, raw []byte, problems []string) string {
	reason := strings.Join(problems, "; ")
	n.degraded.Add(1)
	n.logger.Warn("Payload failed schema validation",
		zap.String("kind", string(kind)),
		zap.String("address", gjson.GetBytes(raw, "address").String()),
		zap.String("reason", reason),
	)
	return reason
}

// items splits a feed into its elements. Both a bare array and an
// object wrapping the array under "data" are accepted.
func items(payload []byte) ([]gjson.Result, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedPayload)
	}
	root := gjson.ParseBytes(payload)
	if root.IsObject() {
		if data := root.Get("data"); data.IsArray() {
			root = data
		} else {
			return []gjson.Result{root}, nil
		}
	}
	if !root.IsArray() {
		return nil, fmt.Errorf("%w: expected array, got %s", ErrMalformedPayload, root.Type)
	}
	return root.Array(), nil
}

func (n *Normalizer) NormalizeVault(raw json.RawMessage) NormalizeResult[domain.VaultRecord] {
	res := NormalizeResult[domain.VaultRecord]{Record: decodeVault(raw), Raw: raw}
	if problems := validate(raw, vaultSchema); len(problems) > 0 {
		res.Status = StatusDegraded
		res.Reason = n.report(domain.PayloadVaults, raw, problems)
	}
	return res
}

func (n *Normalizer) NormalizeVaults(payload []byte) ([]domain.VaultRecord, []NormalizeResult[domain.VaultRecord], error) {
	elems, err := items(payload)
	if err != nil {
		return nil, nil, err
	}
	records := make([]domain.VaultRecord, 0, len(elems))
	results := make([]NormalizeResult[domain.VaultRecord], 0, len(elems))
	for _, e := range elems {
		r := n.NormalizeVault(json.RawMessage(e.Raw))
		records = append(records, r.Record)
		results = append(results, r)
	}
	return records, results, nil
}

func (n *Normalizer) NormalizeToken(raw json.RawMessage) NormalizeResult[domain.TokenRecord] {
	res := NormalizeResult[domain.TokenRecord]{Record: decodeToken(raw), Raw: raw}
	if problems := validate(raw, tokenSchema); len(problems) > 0 {
		res.Status = StatusDegraded
		res.Reason = n.report(domain.PayloadTokens, raw, problems)
	}
	return res
}

func (n *Normalizer) NormalizeTokens(payload []byte) ([]domain.TokenRecord, []NormalizeResult[domain.TokenRecord], error) {
	elems, err := items(payload)
	if err != nil {
		return nil, nil, err
	}
	records := make([]domain.TokenRecord, 0, len(elems))
	results := make([]NormalizeResult[domain.TokenRecord], 0, len(elems))
	for _, e := range elems {
		r := n.NormalizeToken(json.RawMessage(e.Raw))
		records = append(records, r.Record)
		results = append(results, r)
	}
	return records, results, nil
}

func (n *Normalizer) NormalizeReward(raw json.RawMessage) NormalizeResult[domain.GaugeReward] {
	res := NormalizeResult[domain.GaugeReward]{Record: decodeReward(raw), Raw: raw}
	if problems := validate(raw, rewardSchema); len(problems) > 0 {
		res.Status = StatusDegraded
		res.Reason = n.report(domain.PayloadRewards, raw, problems)
	}
	return res
}

func (n *Normalizer) NormalizeRewards(payload []byte) ([]domain.GaugeReward, []NormalizeResult[domain.GaugeReward], error) {
	elems, err := items(payload)
	if err != nil {
		return nil, nil, err
	}
	records := make([]domain.GaugeReward, 0, len(elems))
	results := make([]NormalizeResult[domain.GaugeReward], 0, len(elems))
	for _, e := range elems {
		r := n.NormalizeReward(json.RawMessage(e.Raw))
		records = append(records, r.Record)
		results = append(results, r)
	}
	return records, results, nil
}

func decodeVault(raw []byte) domain.VaultRecord {
	g := gjson.ParseBytes(raw)
	v := domain.VaultRecord{
		Address:  strings.TrimSpace(g.Get("address").String()),
		ChainID:  g.Get("chainID").Uint(),
		Name:     g.Get("name").String(),
		Symbol:   g.Get("symbol").String(),
		Category: g.Get("category").String(),
		Kind:     g.Get("kind").String(),
		Partner:  g.Get("protocol").String(),
		Decimals: decimalsOrZero(g.Get("decimals")),
		Token: domain.TokenRef{
			Address:  strings.TrimSpace(g.Get("token.address").String()),
			Name:     g.Get("token.name").String(),
			Symbol:   g.Get("token.symbol").String(),
			Decimals: decimalsOrZero(g.Get("token.decimals")),
		},
		TVLUSD: g.Get("tvl.tvl").Float(),
		APY: domain.APYSeries{
			Net:       g.Get("apr.netAPR").Float(),
			WeekAgo:   g.Get("apr.points.weekAgo").Float(),
			MonthAgo:  g.Get("apr.points.monthAgo").Float(),
			Inception: g.Get("apr.points.inception").Float(),
		},
		Staking: domain.Staking{
			Available: g.Get("staking.available").Bool(),
			Address:   g.Get("staking.address").String(),
			Source:    g.Get("staking.source").String(),
		},
		Migration: domain.Migration{
			Available: g.Get("migration.available").Bool(),
			Target:    g.Get("migration.address").String(),
		},
		Info: domain.VaultInfo{
			IsHidden:  g.Get("info.isHidden").Bool(),
			IsRetired: g.Get("info.isRetired").Bool(),
		},
	}
	if total, ok := parseBigInt(g.Get("tvl.totalAssets")); ok {
		v.TotalAssets = total
	}
	return v
}

func decodeToken(raw []byte) domain.TokenRecord {
	g := gjson.ParseBytes(raw)
	t := domain.TokenRecord{
		Address:    strings.TrimSpace(g.Get("address").String()),
		ChainID:    g.Get("chainID").Uint(),
		Name:       g.Get("name").String(),
		Symbol:     g.Get("symbol").String(),
		Decimals:   decimalsOrZero(g.Get("decimals")),
		PriceScale: domain.USDPriceScale,
		Price:      decimal.Zero,
	}
	if price, ok := parseBigInt(g.Get("price")); ok {
		t.RawPrice = price
		t.Price = NormalizeAmount(price, t.PriceScale)
	}
	return t
}

func decodeReward(raw []byte) domain.GaugeReward {
	g := gjson.ParseBytes(raw)
	r := domain.GaugeReward{
		Briber:      g.Get("briber").String(),
		Gauge:       g.Get("gauge").String(),
		RewardToken: g.Get("rewardToken").String(),
		TxHash:      g.Get("txHash").String(),
		Timestamp:   g.Get("timestamp").Int(),
		BlockNumber: g.Get("blockNumber").Uint(),
	}
	if amount, ok := parseBigInt(g.Get("amount")); ok {
		r.Amount = amount
	}
	return r
}
