package domain

// Local development networks that must never be used as the active chain.
const (
	ChainIDLocalhost uint64 = 1337
	ChainIDHardhat   uint64 = 31337
)

// ChainContext mirrors the wallet's view of the active network.
type ChainContext struct {
	ChainID         uint64
	FallbackChainID uint64
}

// SafeChainID returns the active chain ID, or the fallback when the
// active one is unset or a local test network.
func (c ChainContext) SafeChainID() uint64 {
	return SafeChainID(c.ChainID, c.FallbackChainID)
}

func SafeChainID(chainID, fallback uint64) uint64 {
	switch chainID {
	case 0, ChainIDLocalhost, ChainIDHardhat:
		return fallback
	}
	return chainID
}
