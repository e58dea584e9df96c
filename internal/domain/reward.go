package domain

import "math/big"

// GaugeReward is one entry of a gauge bribe/reward feed.
type GaugeReward struct {
	Amount      *big.Int `json:"amount"`
	Briber      string   `json:"briber"`
	Gauge       string   `json:"gauge"`
	RewardToken string   `json:"rewardToken"`
	TxHash      string   `json:"txHash"`
	Timestamp   int64    `json:"timestamp"`
	BlockNumber uint64   `json:"blockNumber"`
}
