package domain

import "fmt"

// DiagnosticCode identifies a class of recoverable per-row problem.
type DiagnosticCode string

// Diagnostic codes.
const (
	DiagMalformedRow        DiagnosticCode = "MALFORMED_ROW"
	DiagUnknownAction       DiagnosticCode = "UNKNOWN_ACTION"
	DiagBasisShortfall      DiagnosticCode = "BASIS_SHORTFALL"
	DiagMissingPrice        DiagnosticCode = "MISSING_PRICE"
	DiagWashWindowTruncated DiagnosticCode = "WASH_WINDOW_TRUNCATED"
	DiagWashBasisUndeferred DiagnosticCode = "WASH_BASIS_UNDEFERRED"
	DiagTransferShortfall   DiagnosticCode = "TRANSFER_SHORTFALL"
)

// Diagnostic records a recoverable problem encountered during a run.
// Diagnostics are aggregated into the run result for downstream manual
// review; they never abort the batch.
type Diagnostic struct {
	Code    DiagnosticCode
	TxID    string
	Coin    string
	Message string
}

func (d Diagnostic) String() string {
	if d.TxID == "" {
		return fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
	return fmt.Sprintf("%s tx=%s: %s", d.Code, d.TxID, d.Message)
}
