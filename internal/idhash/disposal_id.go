package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// ComputeDisposalID computes a deterministic disposal identifier.
// Formula: SHA256(tx_id|coin|source|unix_ms), truncated to 16 bytes and
// base58-encoded so it stays readable in reports and diagnostics.
func ComputeDisposalID(txID, coin, source string, unixMs int64) string {
	data := fmt.Sprintf("%s|%s|%s|%d", txID, coin, source, unixMs)
	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:16])
}

// ComputeFeeDisposalID derives the identifier for the synthetic disposal
// created when a fee is paid in a different coin than the primary one.
func ComputeFeeDisposalID(txID, feeCoin, source string, unixMs int64) string {
	return ComputeDisposalID(txID+"#fee", feeCoin, source, unixMs)
}
