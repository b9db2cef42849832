// Package config builds the per-run compliance ruleset from the
// environment. Unknown or missing fields fall back to documented
// defaults; only structurally invalid values fail the run.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"cryptobasis/internal/domain"
)

// Environment variables.
const (
	EnvLotMethod           = "CBX_LOT_METHOD"            // fifo | hifo
	EnvStrictBrokerMode    = "CBX_STRICT_BROKER_MODE"    // true | false
	EnvBrokerSources       = "CBX_BROKER_SOURCES"        // comma-separated
	EnvStakingTaxable      = "CBX_STAKING_TAXABLE"       // true | false
	EnvDefiLPConservative  = "CBX_DEFI_LP_CONSERVATIVE"  // true | false
	EnvCollectibleTokens   = "CBX_COLLECTIBLE_TOKENS"    // comma-separated symbols
	EnvCollectiblePrefixes = "CBX_COLLECTIBLE_PREFIXES"  // comma-separated prefixes
	EnvPriceAPIBaseURL     = "CBX_PRICE_API_BASE_URL"
	EnvPostgresDSN         = "CBX_POSTGRES_DSN"
	EnvClickhouseDSN       = "CBX_CLICKHOUSE_DSN"
	EnvOpeningInventory    = "CBX_OPENING_INVENTORY" // path to the migration seed file
)

// RunConfig carries the compliance ruleset plus boundary endpoints.
type RunConfig struct {
	Compliance           domain.ComplianceConfig
	PriceAPIBaseURL      string
	PostgresDSN          string
	ClickhouseDSN        string
	OpeningInventoryPath string
}

// Load reads .env (when present) and the process environment.
func Load() (RunConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded, relying on OS environment:", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a RunConfig from a lookup function. Split out from Load
// so tests can inject an environment.
func FromEnv(getenv func(string) string) (RunConfig, error) {
	cfg := RunConfig{Compliance: domain.DefaultComplianceConfig()}

	if v := getenv(EnvLotMethod); v != "" {
		method, err := domain.ParseLotMethod(v)
		if err != nil {
			return RunConfig{}, fmt.Errorf("%s: %w", EnvLotMethod, err)
		}
		cfg.Compliance.LotMethod = method
	}

	var err error
	if cfg.Compliance.StrictBrokerMode, err = parseBool(getenv, EnvStrictBrokerMode, false); err != nil {
		return RunConfig{}, err
	}
	if cfg.Compliance.StakingTaxableOnReceipt, err = parseBool(getenv, EnvStakingTaxable, true); err != nil {
		return RunConfig{}, err
	}
	if cfg.Compliance.DefiLPConservative, err = parseBool(getenv, EnvDefiLPConservative, false); err != nil {
		return RunConfig{}, err
	}

	for _, s := range splitList(getenv(EnvBrokerSources)) {
		cfg.Compliance.BrokerSources[s] = struct{}{}
	}
	for _, s := range splitList(getenv(EnvCollectibleTokens)) {
		cfg.Compliance.CollectibleTokens[domain.NormalizeCoin(s)] = struct{}{}
	}
	cfg.Compliance.CollectiblePrefixes = splitList(getenv(EnvCollectiblePrefixes))

	cfg.PriceAPIBaseURL = getenv(EnvPriceAPIBaseURL)
	cfg.PostgresDSN = getenv(EnvPostgresDSN)
	cfg.ClickhouseDSN = getenv(EnvClickhouseDSN)
	cfg.OpeningInventoryPath = getenv(EnvOpeningInventory)

	if err := cfg.Compliance.Validate(); err != nil {
		return RunConfig{}, fmt.Errorf("invalid compliance config: %w", err)
	}
	return cfg, nil
}

func parseBool(getenv func(string) string, key string, def bool) (bool, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
