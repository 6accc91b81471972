package model

import (
	"fmt"
	"time"
)

// BatchStatus tracks the lifecycle of an import attempt.
type BatchStatus string

// Batch status constants.
const (
	BatchPending   BatchStatus = "PENDING"
	BatchCompleted BatchStatus = "COMPLETED"
	BatchFailed    BatchStatus = "FAILED"
)

// Period identifies the reporting month a statement covers.
type Period struct {
	Month int
	Year  int
}

// Validate ensures the period is a plausible statement month.
func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("month must be between 1 and 12, got %d", p.Month)
	}
	if p.Year < 1900 || p.Year > 9999 {
		return fmt.Errorf("year must be a 4-digit year, got %d", p.Year)
	}
	return nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// ImportBatch identifies one statement upload. A second upload of
// byte-identical content for the same account and period resolves to the
// same batch.
type ImportBatch struct {
	CreatedAt      time.Time
	ID             string
	AccountID      string
	Fingerprint    string // SHA-256 over the raw file bytes
	Error          string
	Status         BatchStatus
	Period         Period
	RowCount       int
	DuplicateCount int
}
