// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is applied to imported rows; the statement layout carries
// no currency column.
const DefaultCurrency = "BRL"

// Transaction represents a single statement row after normalization.
type Transaction struct {
	Date          time.Time
	ID            string
	BatchID       string
	AccountID     string
	RawDescriptor string // descriptor as it appeared in the file
	Descriptor    string // trimmed, whitespace-collapsed, upper-cased; accents kept
	Fingerprint   string
	Currency      string
	Amount        decimal.Decimal

	// Classification fields, empty until classified.
	Category    string
	Status      ClassificationStatus
	RuleID      *int64
	RuleVersion *int
	Rationale   string
}

// GenerateFingerprint creates the row-level content digest used for
// duplicate detection within a batch. It covers date, normalized
// descriptor, and amount only; batch and account are deliberately
// excluded so re-parsing identical content yields identical fingerprints.
func (t *Transaction) GenerateFingerprint() string {
	data := fmt.Sprintf("%s:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Descriptor,
		t.Amount.String())
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
