// Package inventory loads migration-seeded opening balances: the lots a
// strict-broker run starts from instead of replaying all pre-cutover
// history.
package inventory

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"cryptobasis/internal/domain"
)

// Seed is one opening lot for a (coin, source) pair.
type Seed struct {
	Amount     decimal.Decimal
	UnitCost   decimal.Decimal
	AcquiredAt time.Time
}

// Opening maps coin -> source -> opening lots.
type Opening map[string]map[string][]Seed

// seedJSON is the file schema for one lot.
type seedJSON struct {
	Amount          decimal.Decimal `json:"amount"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	AcquisitionDate string          `json:"acquisition_date"`
}

// LoadFile reads an opening-inventory JSON file of the shape
// {"BTC": {"kraken": [{"amount": "...", "unit_cost": "...",
// "acquisition_date": "2021-01-01"}]}}. A missing file is not an error;
// the ledger simply starts empty. A corrupt schema is structural and
// fatal for the run.
func LoadFile(path string) (Opening, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read opening inventory: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates opening-inventory JSON.
func Parse(data []byte) (Opening, error) {
	var raw map[string]map[string][]seedJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("corrupt opening inventory: %w", err)
	}

	opening := make(Opening, len(raw))
	for coin, sources := range raw {
		norm := domain.NormalizeCoin(coin)
		if norm == "" {
			return nil, fmt.Errorf("corrupt opening inventory: empty coin key")
		}
		opening[norm] = make(map[string][]Seed, len(sources))
		for source, seeds := range sources {
			if source == "" {
				return nil, fmt.Errorf("corrupt opening inventory: empty source under %s", norm)
			}
			for i, s := range seeds {
				if !s.Amount.IsPositive() {
					return nil, fmt.Errorf("corrupt opening inventory: %s/%s[%d]: non-positive amount %s", norm, source, i, s.Amount)
				}
				if s.UnitCost.IsNegative() {
					return nil, fmt.Errorf("corrupt opening inventory: %s/%s[%d]: negative unit cost %s", norm, source, i, s.UnitCost)
				}
				acquired, err := time.Parse("2006-01-02", s.AcquisitionDate)
				if err != nil {
					return nil, fmt.Errorf("corrupt opening inventory: %s/%s[%d]: %w", norm, source, i, err)
				}
				opening[norm][source] = append(opening[norm][source], Seed{
					Amount:     s.Amount,
					UnitCost:   s.UnitCost,
					AcquiredAt: acquired.UTC(),
				})
			}
		}
	}
	return opening, nil
}
