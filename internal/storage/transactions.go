package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/contaflow/contaflow/internal/common"
	"github.com/contaflow/contaflow/internal/model"
)

const transactionColumns = `id, batch_id, account_id, date, raw_descriptor,
	descriptor, amount, currency, fingerprint, category,
	classification_status, rule_id, rule_version, rationale`

// InsertTransactions persists a set of rows atomically: either every row
// is committed or none are.
func (s *SQLiteStorage) InsertTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO transactions (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, transactionColumns))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, txn := range transactions {
		_, err = stmt.ExecContext(ctx,
			txn.ID, txn.BatchID, txn.AccountID, txn.Date,
			txn.RawDescriptor, txn.Descriptor,
			txn.Amount.String(), txn.Currency, txn.Fingerprint,
			nullableString(txn.Category), txn.Status,
			txn.RuleID, txn.RuleVersion, txn.Rationale,
		)
		if err != nil {
			if mapped := mapConstraintError(err); mapped != err {
				return mapped
			}
			return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
		}
	}

	return tx.Commit()
}

// GetRowFingerprints returns the fingerprints of every row already
// committed to a batch.
func (s *SQLiteStorage) GetRowFingerprints(ctx context.Context, batchID string) (map[string]struct{}, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(batchID, "batchID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT fingerprint FROM transactions WHERE batch_id = ?", batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get row fingerprints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	fingerprints := make(map[string]struct{})
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		fingerprints[fp] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fingerprints: %w", err)
	}

	return fingerprints, nil
}

// GetTransactionByID retrieves a single transaction.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM transactions WHERE id = ?", transactionColumns)
	txn, err := scanTransaction(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// ListUnclassified returns transactions awaiting classification, oldest
// first. An empty batchID means all batches.
func (s *SQLiteStorage) ListUnclassified(ctx context.Context, batchID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM transactions
		WHERE classification_status = ?`, transactionColumns)
	args := []any{model.StatusUnclassified}
	if batchID != "" {
		query += " AND batch_id = ?"
		args = append(args, batchID)
	}
	query += " ORDER BY date ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unclassified transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, scanErr := scanTransactionRows(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// UpdateClassification writes a classification outcome onto its
// transaction. The rule reference must be consistent with the status.
func (s *SQLiteStorage) UpdateClassification(ctx context.Context, result model.ClassificationResult) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateResult(&result); err != nil {
		return err
	}

	query := `UPDATE transactions
		SET category = ?, classification_status = ?, rule_id = ?, rule_version = ?, rationale = ?
		WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query,
		nullableString(result.Category), result.Status,
		result.RuleID, result.RuleVersion, result.Rationale,
		result.TransactionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update classification: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: transaction %s", common.ErrNotFound, result.TransactionID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row *sql.Row) (*model.Transaction, error) {
	txn, err := scanTransactionFrom(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: transaction", common.ErrNotFound)
	}
	return txn, err
}

func scanTransactionRows(rows *sql.Rows) (*model.Transaction, error) {
	return scanTransactionFrom(rows)
}

func scanTransactionFrom(scanner rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var amount string
	var category sql.NullString
	err := scanner.Scan(
		&txn.ID, &txn.BatchID, &txn.AccountID, &txn.Date,
		&txn.RawDescriptor, &txn.Descriptor,
		&amount, &txn.Currency, &txn.Fingerprint,
		&category, &txn.Status, &txn.RuleID, &txn.RuleVersion, &txn.Rationale,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	txn.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("stored amount %q is not a decimal: %w", amount, err)
	}
	if category.Valid {
		txn.Category = category.String
	}
	return &txn, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
