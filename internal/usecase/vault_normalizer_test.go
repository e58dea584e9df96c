package usecase_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yearn/vault_catalog/internal/usecase"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const validVaultJSON = `{
	"address": "0x28F0f71dA5A5F3B1a5dEa8Cfd2fB2A8b6A2e0F2d",
	"chainID": 1,
	"name": "USDC yVault",
	"symbol": "yvUSDC",
	"category": "auto",
	"kind": "Multi Strategy",
	"protocol": "Curve",
	"decimals": 6,
	"token": {
		"address": "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		"name": "USD Coin",
		"symbol": "USDC",
		"decimals": 6
	},
	"tvl": {"tvl": 1520000.5, "totalAssets": "1520000500000"},
	"apr": {"netAPR": 0.052, "points": {"weekAgo": 0.05, "monthAgo": 0.048, "inception": 0.061}},
	"staking": {"available": true, "address": "0x0000000000000000000000000000000000000001"},
	"migration": {"available": false, "address": "0x0000000000000000000000000000000000000000"},
	"info": {"isHidden": false, "isRetired": false}
}`

func newObservedNormalizer() (*usecase.Normalizer, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.WarnLevel)
	return usecase.NewNormalizer(zap.New(core)), logs
}

func TestNormalizeVault_Valid(t *testing.T) {
	n, logs := newObservedNormalizer()

	res := n.NormalizeVault(json.RawMessage(validVaultJSON))

	require.True(t, res.IsValid(), res.Reason)
	assert.Equal(t, usecase.StatusValid, res.Status)
	v := res.Record
	assert.Equal(t, uint64(1), v.ChainID)
	assert.Equal(t, "USDC yVault", v.Name)
	assert.Equal(t, "USDC", v.Token.Symbol)
	assert.Equal(t, int32(6), v.Token.Decimals)
	assert.Equal(t, 1520000.5, v.TVLUSD)
	assert.Equal(t, "1520000500000", v.TotalAssets.String())
	assert.Equal(t, 0.052, v.APY.Net)
	assert.Equal(t, 0.061, v.APY.Inception)
	assert.True(t, v.Staking.Available)
	assert.False(t, v.Migration.Available)
	assert.Equal(t, "Curve", v.Partner)
	assert.Equal(t, "Volatile", usecase.ClassifyVault(v))
	assert.Zero(t, logs.Len())
	assert.Zero(t, n.DegradedCount())
}

func TestNormalizeVault_DegradedKeepsData(t *testing.T) {
	n, logs := newObservedNormalizer()

	raw := `{
		"address": "0x28f0",
		"chainID": "1",
		"name": "Broken",
		"token": {"address": "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", "symbol": "USDC"},
		"tvl": {"tvl": 42},
		"info": {"isHidden": "yes"}
	}`
	res := n.NormalizeVault(json.RawMessage(raw))

	assert.False(t, res.IsValid())
	assert.Equal(t, usecase.StatusDegraded, res.Status)
	assert.Contains(t, res.Reason, "address: invalid value")
	assert.Contains(t, res.Reason, "chainID: invalid value")
	assert.Contains(t, res.Reason, "token.decimals: required")
	assert.Contains(t, res.Reason, "info.isHidden: invalid value")
	assert.JSONEq(t, raw, string(res.Raw))

	// Best-effort record is still populated.
	assert.Equal(t, "Broken", res.Record.Name)
	assert.Equal(t, 42.0, res.Record.TVLUSD)
	assert.Equal(t, uint64(1), res.Record.ChainID)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Payload failed schema validation", logs.All()[0].Message)
	assert.Equal(t, int64(1), n.DegradedCount())
}

func TestNormalizeVaults_Collections(t *testing.T) {
	n, _ := newObservedNormalizer()

	bare := "[" + validVaultJSON + "," + `{"address":"nope"}` + "]"
	vaults, results, err := n.NormalizeVaults([]byte(bare))
	require.NoError(t, err)
	require.Len(t, vaults, 2)
	assert.True(t, results[0].IsValid())
	assert.False(t, results[1].IsValid())

	wrapped := `{"data": [` + validVaultJSON + `]}`
	vaults, _, err = n.NormalizeVaults([]byte(wrapped))
	require.NoError(t, err)
	assert.Len(t, vaults, 1)

	single := validVaultJSON
	vaults, _, err = n.NormalizeVaults([]byte(single))
	require.NoError(t, err)
	assert.Len(t, vaults, 1)
}

func TestNormalizeVaults_Malformed(t *testing.T) {
	n, _ := newObservedNormalizer()

	for _, payload := range []string{`not json`, `"a string"`, `42`, ``} {
		_, _, err := n.NormalizeVaults([]byte(payload))
		assert.ErrorIs(t, err, usecase.ErrMalformedPayload, payload)
	}
}

func TestNormalizeTokens(t *testing.T) {
	n, _ := newObservedNormalizer()

	payload := `[
		{"address": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "chainID": 1, "symbol": "USDC", "decimals": 6, "price": "999800"},
		{"address": "0x6B175474E89094C44Da98b954EedeAC495271d0F", "chainID": 1, "symbol": "DAI", "decimals": 18}
	]`
	tokens, results, err := n.NormalizeTokens([]byte(payload))
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.True(t, results[0].IsValid())
	assert.True(t, results[1].IsValid())
	assert.Equal(t, "0.9998", tokens[0].Price.String())
	assert.Nil(t, tokens[1].RawPrice)
	assert.True(t, tokens[1].Price.IsZero())
}

func TestNormalizeRewards(t *testing.T) {
	n, _ := newObservedNormalizer()

	payload := `[{
		"amount": "1000000000000000000000",
		"briber": "0x1111111111111111111111111111111111111111",
		"gauge": "0x2222222222222222222222222222222222222222",
		"rewardToken": "0x3333333333333333333333333333333333333333",
		"txHash": "0x4e3a3754410177e6937ef1f84bba68ea139e8d1a2258c5f85db9f1cd715a1bdd",
		"timestamp": 1700000000,
		"blockNumber": 18500000
	}, {
		"amount": 12,
		"briber": "0x1111111111111111111111111111111111111111",
		"gauge": "0x2222222222222222222222222222222222222222",
		"rewardToken": "0x3333333333333333333333333333333333333333",
		"txHash": "0x1234",
		"timestamp": 1700000001,
		"blockNumber": 18500001
	}]`
	rewards, results, err := n.NormalizeRewards([]byte(payload))
	require.NoError(t, err)
	require.Len(t, rewards, 2)
	assert.True(t, results[0].IsValid())
	assert.Equal(t, "1000000000000000000000", rewards[0].Amount.String())
	assert.Equal(t, uint64(18500000), rewards[0].BlockNumber)

	assert.False(t, results[1].IsValid())
	assert.Contains(t, results[1].Reason, "txHash")
	assert.Equal(t, "12", rewards[1].Amount.String())
}

func TestIsHexAddress(t *testing.T) {
	assert.True(t, usecase.IsHexAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"))
	assert.True(t, usecase.IsHexAddress("0XA0B86991C6218B36C1D19D4A2E9EB0CE3606EB48"))
	assert.False(t, usecase.IsHexAddress("a0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"))
	assert.False(t, usecase.IsHexAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb4"))
	assert.False(t, usecase.IsHexAddress("0xg0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"))
	assert.False(t, usecase.IsHexAddress(""))
}

func TestNormalizeToken_NegativeDecimalsDegrades(t *testing.T) {
	n, logs := newObservedNormalizer()

	res := n.NormalizeToken(json.RawMessage(`{"address": "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", "chainID": 1, "symbol": "USDC", "decimals": -5}`))

	assert.Equal(t, usecase.StatusDegraded, res.Status)
	assert.Contains(t, res.Reason, "decimals: invalid value -5")
	assert.Equal(t, int32(0), res.Record.Decimals)
	assert.Equal(t, "USDC", res.Record.Symbol)
	assert.Equal(t, 1, logs.Len())
}

func TestNormalizeVault_DecimalsOutOfRange(t *testing.T) {
	tests := []struct {
		name     string
		decimals string
	}{
		{"overflows int32", "4294967314"},
		{"above max", "256"},
		{"fractional", "6.5"},
		{"string", `"18"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, logs := newObservedNormalizer()
			raw := `{
				"address": "0x28f0f71da5a5f3b1a5dea8cfd2fb2a8b6a2e0f2d",
				"chainID": 1,
				"token": {"address": "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", "symbol": "USDC", "decimals": ` + tt.decimals + `}
			}`

			res := n.NormalizeVault(json.RawMessage(raw))

			assert.Equal(t, usecase.StatusDegraded, res.Status)
			assert.Contains(t, res.Reason, "token.decimals: invalid value")
			assert.Equal(t, int32(0), res.Record.Token.Decimals)
			assert.Equal(t, 1, logs.Len())
		})
	}
}

func TestNormalizeVault_DecimalsBounds(t *testing.T) {
	n, _ := newObservedNormalizer()

	for _, d := range []string{"0", "18", "255"} {
		raw := `{
			"address": "0x28f0f71da5a5f3b1a5dea8cfd2fb2a8b6a2e0f2d",
			"chainID": 1,
			"decimals": ` + d + `,
			"token": {"address": "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", "symbol": "USDC", "decimals": ` + d + `}
		}`
		res := n.NormalizeVault(json.RawMessage(raw))
		assert.True(t, res.IsValid(), "decimals %s: %s", d, res.Reason)
	}
}
