package domain

import (
	"fmt"
	"strings"
)

// LotMethod selects which open lots a disposal consumes first.
type LotMethod int

const (
	// FIFO consumes the earliest-acquired lot first.
	FIFO LotMethod = iota
	// HIFO consumes the highest-unit-cost lot first.
	HIFO
)

func (m LotMethod) String() string {
	switch m {
	case FIFO:
		return "fifo"
	case HIFO:
		return "hifo"
	default:
		return "unknown"
	}
}

// ParseLotMethod parses a string into a LotMethod.
func ParseLotMethod(s string) (LotMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fifo":
		return FIFO, nil
	case "hifo":
		return HIFO, nil
	default:
		return 0, fmt.Errorf("unknown lot method: %q", s)
	}
}

// ComplianceConfig is the per-run ruleset. It is constructed once from
// external configuration, validated, and passed by value into the engine
// and every component that branches on it. Immutable for the run.
type ComplianceConfig struct {
	LotMethod LotMethod

	// StrictBrokerMode prevents cost basis from being borrowed across
	// custodial sources listed in BrokerSources.
	StrictBrokerMode bool
	BrokerSources    map[string]struct{}

	// StakingTaxableOnReceipt controls INCOME events: when false, no
	// income entry is emitted and the lot is acquired at zero basis.
	StakingTaxableOnReceipt bool

	// DefiLPConservative treats pool deposits/withdrawals as taxable
	// disposals/acquisitions at fair value; when false they move lots
	// between buckets without realizing gain.
	DefiLPConservative bool

	// Collectible rate-bucket membership.
	CollectibleTokens   map[string]struct{}
	CollectiblePrefixes []string
}

// DefaultComplianceConfig returns the documented defaults: FIFO, no
// broker isolation, staking taxable at receipt, non-conservative LP
// treatment, no collectibles.
func DefaultComplianceConfig() ComplianceConfig {
	return ComplianceConfig{
		LotMethod:               FIFO,
		StakingTaxableOnReceipt: true,
		BrokerSources:           map[string]struct{}{},
		CollectibleTokens:       map[string]struct{}{},
	}
}

// Validate reports structural configuration errors. These are fatal for
// the run, unlike per-row errors.
func (c *ComplianceConfig) Validate() error {
	if c.LotMethod != FIFO && c.LotMethod != HIFO {
		return fmt.Errorf("invalid lot method %d", c.LotMethod)
	}
	if c.StrictBrokerMode && len(c.BrokerSources) == 0 {
		return fmt.Errorf("strict broker mode enabled with no broker sources")
	}
	return nil
}

// IsBrokerSource reports whether source isolation applies to source.
func (c *ComplianceConfig) IsBrokerSource(source string) bool {
	if !c.StrictBrokerMode {
		return false
	}
	_, ok := c.BrokerSources[source]
	return ok
}

// IsCollectible reports whether coin falls into the collectible rate bucket.
func (c *ComplianceConfig) IsCollectible(coin string) bool {
	coin = NormalizeCoin(coin)
	if _, ok := c.CollectibleTokens[coin]; ok {
		return true
	}
	for _, p := range c.CollectiblePrefixes {
		if p != "" && strings.HasPrefix(coin, NormalizeCoin(p)) {
			return true
		}
	}
	return false
}
