// Package importer turns raw statement files into persisted, uniquely
// identified transaction batches.
//
// Each import attempt moves through: received, parsing, deduplicating,
// committing, completed or failed. Parsing rejects the whole file before
// anything is persisted; after the batch record exists, any persistence
// failure marks it failed with the captured error rather than leaving it
// silently pending.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/contaflow/contaflow/internal/common"
	"github.com/contaflow/contaflow/internal/model"
	"github.com/contaflow/contaflow/internal/service"
	"github.com/contaflow/contaflow/internal/statement"
)

// maxInsertAttempts bounds insertion retries when a concurrent import
// commits rows to the same batch between the fingerprint read and the
// insert. One re-read is enough to see the racer's rows.
const maxInsertAttempts = 2

// Pipeline coordinates parsing, deduplication, and persistence for one
// import at a time.
type Pipeline struct {
	store  service.Storage
	parser *statement.Parser
}

// NewPipeline creates an import pipeline over the given storage and parser.
func NewPipeline(store service.Storage, parser *statement.Parser) *Pipeline {
	if parser == nil {
		parser = statement.NewParser()
	}
	return &Pipeline{store: store, parser: parser}
}

// ProcessImport ingests one statement file for an account and period.
// Uploads are idempotent: byte-identical content for the same account and
// period resolves to the already-completed batch. A batch that previously
// failed is resumed; rows already committed to it are skipped by
// fingerprint and only the missing ones are inserted.
func (p *Pipeline) ProcessImport(ctx context.Context, fileBytes []byte, accountID string, period model.Period) (*model.ImportBatch, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account ID is required")
	}
	if err := period.Validate(); err != nil {
		return nil, fmt.Errorf("invalid period: %w", err)
	}
	if len(fileBytes) == 0 {
		return nil, fmt.Errorf("statement file is empty")
	}

	fingerprint := FileFingerprint(fileBytes)

	batch, err := p.store.GetBatchByFingerprint(ctx, accountID, fingerprint, period)
	switch {
	case err == nil:
		if batch.Status == model.BatchCompleted {
			slog.Info("duplicate upload, returning existing batch",
				"batch_id", batch.ID, "account", accountID, "period", period)
			return batch, nil
		}
		slog.Info("resuming incomplete batch", "batch_id", batch.ID, "status", batch.Status)
	case errors.Is(err, common.ErrNotFound):
		batch = nil
	default:
		return nil, common.NewPersistenceError("batch lookup", err)
	}

	rows, err := p.parser.Parse(fileBytes)
	if err != nil {
		// Parse rejection happens before any persistence; nothing to roll back.
		return nil, err
	}

	if batch == nil {
		batch = &model.ImportBatch{
			ID:          uuid.NewString(),
			AccountID:   accountID,
			Fingerprint: fingerprint,
			Period:      period,
			Status:      model.BatchPending,
		}
		if err := p.store.CreateBatch(ctx, batch); err != nil {
			if errors.Is(err, common.ErrDuplicateEntry) {
				// Lost the creation race; the unique constraint on
				// (account, fingerprint, period) guarantees a winner exists.
				existing, lookupErr := p.store.GetBatchByFingerprint(ctx, accountID, fingerprint, period)
				if lookupErr != nil {
					return nil, common.NewPersistenceError("batch lookup after conflict", lookupErr)
				}
				return existing, nil
			}
			return nil, common.NewPersistenceError("batch creation", err)
		}
	}

	var (
		committed  map[string]struct{}
		fresh      []model.Transaction
		duplicates int
	)
	for attempt := 1; ; attempt++ {
		committed, err = p.store.GetRowFingerprints(ctx, batch.ID)
		if err != nil {
			return nil, p.fail(ctx, batch, "row fingerprint lookup", err)
		}

		fresh, duplicates = p.partitionRows(rows, committed, batch.ID, accountID)
		if len(fresh) == 0 {
			break
		}

		err = p.store.InsertTransactions(ctx, fresh)
		if err == nil {
			break
		}
		if !errors.Is(err, common.ErrDuplicateEntry) || attempt >= maxInsertAttempts {
			return nil, p.fail(ctx, batch, "row insertion", err)
		}

		// A concurrent import committed rows to this batch between the
		// fingerprint read and the insert. If it already completed the
		// batch, that batch wins; otherwise re-read what it wrote and
		// skip those rows.
		current, lookupErr := p.store.GetBatchByID(ctx, batch.ID)
		if lookupErr == nil && current.Status == model.BatchCompleted {
			slog.Info("concurrent import completed batch, returning it", "batch_id", batch.ID)
			return current, nil
		}
		slog.Info("retrying row insertion after concurrent commit", "batch_id", batch.ID)
	}

	rowCount := len(committed) + len(fresh)
	if err := p.store.MarkBatchStatus(ctx, batch.ID, model.BatchCompleted, rowCount, duplicates, ""); err != nil {
		return nil, p.fail(ctx, batch, "batch completion", err)
	}

	batch.Status = model.BatchCompleted
	batch.RowCount = rowCount
	batch.DuplicateCount = duplicates
	batch.Error = ""

	slog.Info("import completed",
		"batch_id", batch.ID,
		"rows", rowCount,
		"inserted", len(fresh),
		"duplicates_skipped", duplicates)

	return batch, nil
}

// partitionRows builds transactions for the rows not already committed to
// the batch. The second return value counts skipped duplicates, both
// within-file repeats and rows whose fingerprints are already persisted.
func (p *Pipeline) partitionRows(rows []statement.Row, committed map[string]struct{}, batchID, accountID string) ([]model.Transaction, int) {
	seen := make(map[string]struct{}, len(committed)+len(rows))
	for fp := range committed {
		seen[fp] = struct{}{}
	}

	var fresh []model.Transaction
	duplicates := 0
	for _, row := range rows {
		txn := model.Transaction{
			ID:            uuid.NewString(),
			BatchID:       batchID,
			AccountID:     accountID,
			Date:          row.Date,
			RawDescriptor: row.RawDescriptor,
			Descriptor:    row.Descriptor,
			Amount:        row.Amount,
			Currency:      model.DefaultCurrency,
			Status:        model.StatusUnclassified,
		}
		txn.Fingerprint = txn.GenerateFingerprint()

		if _, dup := seen[txn.Fingerprint]; dup {
			duplicates++
			continue
		}
		seen[txn.Fingerprint] = struct{}{}
		fresh = append(fresh, txn)
	}
	return fresh, duplicates
}

// fail marks the batch failed with the captured message and returns the
// wrapped persistence error. Failures are visible, never swallowed. A
// batch another import already completed is left untouched; completed
// batches are immutable.
func (p *Pipeline) fail(ctx context.Context, batch *model.ImportBatch, op string, err error) error {
	wrapped := common.NewPersistenceError(op, err)
	if current, lookupErr := p.store.GetBatchByID(ctx, batch.ID); lookupErr == nil && current.Status == model.BatchCompleted {
		slog.Warn("batch completed by concurrent import, not marking failed",
			"batch_id", batch.ID, "error", wrapped)
		return wrapped
	}
	if markErr := p.store.MarkBatchStatus(ctx, batch.ID, model.BatchFailed, batch.RowCount, batch.DuplicateCount, wrapped.Error()); markErr != nil {
		slog.Error("failed to mark batch as failed", "batch_id", batch.ID, "error", markErr)
	}
	batch.Status = model.BatchFailed
	batch.Error = wrapped.Error()
	return wrapped
}
