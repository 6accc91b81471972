// Package service defines the contracts between the import/classification
// core and its collaborators.
package service

import (
	"context"

	"github.com/contaflow/contaflow/internal/model"
)

// Storage defines the contract for the persistence layer. The (account,
// fingerprint, period) uniqueness that makes imports idempotent is
// enforced here: CreateBatch returns common.ErrDuplicateEntry on
// conflict so racing imports resolve to the existing batch.
type Storage interface {
	// Batch operations
	GetBatchByFingerprint(ctx context.Context, accountID, fingerprint string, period model.Period) (*model.ImportBatch, error)
	GetBatchByID(ctx context.Context, id string) (*model.ImportBatch, error)
	CreateBatch(ctx context.Context, batch *model.ImportBatch) error
	MarkBatchStatus(ctx context.Context, batchID string, status model.BatchStatus, rowCount, duplicateCount int, errMsg string) error
	DeleteBatch(ctx context.Context, batchID string) error

	// Transaction operations
	GetRowFingerprints(ctx context.Context, batchID string) (map[string]struct{}, error)
	InsertTransactions(ctx context.Context, transactions []model.Transaction) error
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	ListUnclassified(ctx context.Context, batchID string) ([]model.Transaction, error)
	UpdateClassification(ctx context.Context, result model.ClassificationResult) error

	// Rule operations
	GetActiveRules(ctx context.Context) ([]model.ClassificationRule, error)
	GetAllRules(ctx context.Context) ([]model.ClassificationRule, error)
	GetRuleByID(ctx context.Context, id int64) (*model.ClassificationRule, error)
	CreateRule(ctx context.Context, rule *model.ClassificationRule) error
	UpdateRule(ctx context.Context, rule *model.ClassificationRule) error
	SetRuleActive(ctx context.Context, id int64, active bool) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RuleSource is the narrow slice of Storage the classification cache
// needs to rebuild itself.
type RuleSource interface {
	GetActiveRules(ctx context.Context) ([]model.ClassificationRule, error)
}
