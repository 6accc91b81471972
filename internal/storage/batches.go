package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/contaflow/contaflow/internal/common"
	"github.com/contaflow/contaflow/internal/model"
)

const batchColumns = `id, account_id, fingerprint, period_year, period_month,
	row_count, duplicate_count, status, error, created_at`

// GetBatchByFingerprint looks up the batch for a byte-identical upload of
// the same account and period.
func (s *SQLiteStorage) GetBatchByFingerprint(ctx context.Context, accountID, fingerprint string, period model.Period) (*model.ImportBatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return nil, err
	}
	if err := validateString(fingerprint, "fingerprint"); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM import_batches
		WHERE account_id = ? AND fingerprint = ? AND period_year = ? AND period_month = ?`, batchColumns)

	return s.scanBatch(s.db.QueryRowContext(ctx, query, accountID, fingerprint, period.Year, period.Month))
}

// GetBatchByID retrieves a batch by its identifier.
func (s *SQLiteStorage) GetBatchByID(ctx context.Context, id string) (*model.ImportBatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM import_batches WHERE id = ?`, batchColumns)
	return s.scanBatch(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLiteStorage) scanBatch(row *sql.Row) (*model.ImportBatch, error) {
	var batch model.ImportBatch
	err := row.Scan(
		&batch.ID, &batch.AccountID, &batch.Fingerprint,
		&batch.Period.Year, &batch.Period.Month,
		&batch.RowCount, &batch.DuplicateCount,
		&batch.Status, &batch.Error, &batch.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: import batch", common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get import batch: %w", err)
	}
	return &batch, nil
}

// CreateBatch inserts a new pending batch. The unique constraint on
// (account, fingerprint, period) serializes racing imports of the same
// content: the loser gets common.ErrDuplicateEntry.
func (s *SQLiteStorage) CreateBatch(ctx context.Context, batch *model.ImportBatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateBatch(batch); err != nil {
		return err
	}

	query := `
		INSERT INTO import_batches (
			id, account_id, fingerprint, period_year, period_month,
			row_count, duplicate_count, status, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		batch.ID, batch.AccountID, batch.Fingerprint,
		batch.Period.Year, batch.Period.Month,
		batch.RowCount, batch.DuplicateCount, batch.Status, batch.Error,
	)
	if err != nil {
		if mapped := mapConstraintError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to create import batch: %w", err)
	}
	return nil
}

// MarkBatchStatus transitions a batch's lifecycle status, updating its
// accepted row counts and captured error message.
func (s *SQLiteStorage) MarkBatchStatus(ctx context.Context, batchID string, status model.BatchStatus, rowCount, duplicateCount int, errMsg string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(batchID, "batchID"); err != nil {
		return err
	}

	query := `UPDATE import_batches
		SET status = ?, row_count = ?, duplicate_count = ?, error = ?
		WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, status, rowCount, duplicateCount, errMsg, batchID)
	if err != nil {
		return fmt.Errorf("failed to mark batch status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: import batch %s", common.ErrNotFound, batchID)
	}
	return nil
}

// DeleteBatch removes a batch; its transactions cascade.
func (s *SQLiteStorage) DeleteBatch(ctx context.Context, batchID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(batchID, "batchID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM import_batches WHERE id = ?", batchID)
	if err != nil {
		return fmt.Errorf("failed to delete batch: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: import batch %s", common.ErrNotFound, batchID)
	}
	return nil
}
