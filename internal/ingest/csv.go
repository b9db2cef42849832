// Package ingest loads transaction fixture files into domain values for
// the CLI. It is a boundary adapter: row problems become diagnostics and
// never abort the load, only file-level problems are fatal.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cryptobasis/internal/domain"
)

// Required CSV columns. fee, fee_coin, destination, and batch_id are
// optional and default to empty.
var requiredColumns = []string{"id", "timestamp", "action", "coin", "amount"}

// LoadFile reads a transaction CSV file.
func LoadFile(path string) ([]domain.Transaction, []domain.Diagnostic, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open transactions file: %w", err)
	}
	defer f.Close()

	txs, diags, err := Parse(f)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return txs, diags, nil
}

// Parse reads CSV transaction rows from r. The first record is the
// header; column order is free.
func Parse(r io.Reader) ([]domain.Transaction, []domain.Diagnostic, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := indexColumns(header)
	if err != nil {
		return nil, nil, err
	}

	var txs []domain.Transaction
	var diags []domain.Diagnostic

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A structurally broken row is a diagnostic; parsing continues
			// at the next row.
			diags = append(diags, domain.Diagnostic{
				Code:    domain.DiagMalformedRow,
				Message: fmt.Sprintf("line %d: %v", line, err),
			})
			continue
		}

		tx, diag := parseRow(cols, record, line)
		if diag != nil {
			diags = append(diags, *diag)
			continue
		}
		txs = append(txs, tx)
	}

	return txs, diags, nil
}

// indexColumns maps header names to positions and checks required ones.
func indexColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}
	return cols, nil
}

func parseRow(cols map[string]int, record []string, line int) (domain.Transaction, *domain.Diagnostic) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	id := field("id")
	malformed := func(format string, args ...interface{}) *domain.Diagnostic {
		return &domain.Diagnostic{
			Code:    domain.DiagMalformedRow,
			TxID:    id,
			Coin:    domain.NormalizeCoin(field("coin")),
			Message: fmt.Sprintf("line %d: ", line) + fmt.Sprintf(format, args...),
		}
	}

	ts, err := time.Parse(time.RFC3339, field("timestamp"))
	if err != nil {
		return domain.Transaction{}, malformed("bad timestamp: %v", err)
	}

	action, ok := domain.ParseAction(field("action"))
	if !ok {
		return domain.Transaction{}, &domain.Diagnostic{
			Code:    domain.DiagUnknownAction,
			TxID:    id,
			Coin:    domain.NormalizeCoin(field("coin")),
			Message: fmt.Sprintf("line %d: unknown action %q", line, field("action")),
		}
	}

	amount, err := decimal.NewFromString(field("amount"))
	if err != nil {
		return domain.Transaction{}, malformed("bad amount: %v", err)
	}

	price := decimal.Zero
	if v := field("unit_price_usd"); v != "" {
		if price, err = decimal.NewFromString(v); err != nil {
			return domain.Transaction{}, malformed("bad unit_price_usd: %v", err)
		}
	}

	fee := decimal.Zero
	if v := field("fee"); v != "" {
		if fee, err = decimal.NewFromString(v); err != nil {
			return domain.Transaction{}, malformed("bad fee: %v", err)
		}
	}

	tx := domain.Transaction{
		ID:           id,
		Timestamp:    ts.UTC(),
		Action:       action,
		Coin:         domain.NormalizeCoin(field("coin")),
		Amount:       amount,
		UnitPriceUSD: price,
		Fee:          fee,
		FeeCoin:      domain.NormalizeCoin(field("fee_coin")),
		Source:       field("source"),
		Destination:  field("destination"),
		BatchID:      field("batch_id"),
	}
	if err := tx.Validate(); err != nil {
		return domain.Transaction{}, malformed("%v", err)
	}
	return tx, nil
}
