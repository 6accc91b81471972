package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/contaflow/contaflow/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidBatch       = errors.New("invalid import batch")
	ErrInvalidResult      = errors.New("invalid classification result")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateBatch validates an import batch before persistence.
func validateBatch(batch *model.ImportBatch) error {
	if batch == nil {
		return fmt.Errorf("%w: batch", ErrNilParameter)
	}
	if batch.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidBatch)
	}
	if batch.AccountID == "" {
		return fmt.Errorf("%w: missing account ID", ErrInvalidBatch)
	}
	if batch.Fingerprint == "" {
		return fmt.Errorf("%w: missing fingerprint", ErrInvalidBatch)
	}
	if err := batch.Period.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBatch, err)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i, txn := range transactions {
		if err := validateTransaction(&txn); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.BatchID == "" {
		return fmt.Errorf("%w: missing batch ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if txn.Descriptor == "" {
		return fmt.Errorf("%w: missing descriptor", ErrInvalidTransaction)
	}
	if txn.Fingerprint == "" {
		return fmt.Errorf("%w: missing fingerprint", ErrInvalidTransaction)
	}
	return nil
}

// validateResult ensures a classification result is internally consistent
// before it is written: a rule match carries a rule id, everything else
// carries none.
func validateResult(result *model.ClassificationResult) error {
	if result == nil {
		return fmt.Errorf("%w: result", ErrNilParameter)
	}
	if result.TransactionID == "" {
		return fmt.Errorf("%w: missing transaction ID", ErrInvalidResult)
	}

	switch result.Status {
	case model.StatusUnclassified, model.StatusRuleMatched, model.StatusManual:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidResult, result.Status)
	}

	if !result.Consistent() {
		return fmt.Errorf("%w: rule reference inconsistent with status %s", ErrInvalidResult, result.Status)
	}
	return nil
}
