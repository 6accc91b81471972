package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/contaflow/contaflow/internal/common"
	"github.com/contaflow/contaflow/internal/model"
)

const ruleColumns = `id, name, pattern, match_kind, category, priority,
	version, is_active, created_at, updated_at`

// CreateRule creates a new classification rule at version 1. Unlike the
// classification cache load, a direct creation request is blocked by an
// invalid pattern.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.ClassificationRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO classification_rules (name, pattern, match_kind, category, priority, version, is_active)
		VALUES (?, ?, ?, ?, ?, 1, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		rule.Name, rule.Pattern, rule.Kind, rule.Category, rule.Priority, rule.IsActive)
	if err != nil {
		if mapped := mapConstraintError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to create rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule ID: %w", err)
	}

	rule.ID = id
	rule.Version = 1
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = time.Now()
	return nil
}

// GetRuleByID retrieves a rule by identifier.
func (s *SQLiteStorage) GetRuleByID(ctx context.Context, id int64) (*model.ClassificationRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM classification_rules WHERE id = ?", ruleColumns)
	rule, err := scanRule(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// GetActiveRules retrieves every enabled rule ordered by descending
// priority, ties broken by creation order.
func (s *SQLiteStorage) GetActiveRules(ctx context.Context) ([]model.ClassificationRule, error) {
	return s.listRules(ctx, true)
}

// GetAllRules retrieves every rule, enabled or not.
func (s *SQLiteStorage) GetAllRules(ctx context.Context) ([]model.ClassificationRule, error) {
	return s.listRules(ctx, false)
}

func (s *SQLiteStorage) listRules(ctx context.Context, activeOnly bool) ([]model.ClassificationRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM classification_rules", ruleColumns)
	if activeOnly {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY priority DESC, id ASC"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.ClassificationRule
	for rows.Next() {
		var rule model.ClassificationRule
		if err := rows.Scan(
			&rule.ID, &rule.Name, &rule.Pattern, &rule.Kind, &rule.Category,
			&rule.Priority, &rule.Version, &rule.IsActive,
			&rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rules, nil
}

// UpdateRule updates a rule, bumping its version and archiving the prior
// revision. Transactions classified against the old version keep it.
func (s *SQLiteStorage) UpdateRule(ctx context.Context, rule *model.ClassificationRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf("SELECT %s FROM classification_rules WHERE id = ?", ruleColumns)
	prior, err := scanRule(tx.QueryRowContext(ctx, query, rule.ID))
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rule_revisions (rule_id, version, pattern, match_kind, category, priority)
		VALUES (?, ?, ?, ?, ?, ?)
	`, prior.ID, prior.Version, prior.Pattern, prior.Kind, prior.Category, prior.Priority)
	if err != nil {
		return fmt.Errorf("failed to archive rule revision: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE classification_rules
		SET name = ?, pattern = ?, match_kind = ?, category = ?, priority = ?,
			is_active = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, rule.Name, rule.Pattern, rule.Kind, rule.Category, rule.Priority, rule.IsActive, rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: rule %d", common.ErrNotFound, rule.ID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rule update: %w", err)
	}

	rule.Version = prior.Version + 1
	rule.UpdatedAt = time.Now()
	return nil
}

// SetRuleActive enables or disables a rule without bumping its version.
func (s *SQLiteStorage) SetRuleActive(ctx context.Context, id int64, active bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE classification_rules SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, active, id)
	if err != nil {
		return fmt.Errorf("failed to set rule active flag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: rule %d", common.ErrNotFound, id)
	}
	return nil
}

type ruleScanner interface {
	Scan(dest ...any) error
}

func scanRule(row ruleScanner) (*model.ClassificationRule, error) {
	var rule model.ClassificationRule
	err := row.Scan(
		&rule.ID, &rule.Name, &rule.Pattern, &rule.Kind, &rule.Category,
		&rule.Priority, &rule.Version, &rule.IsActive,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: rule", common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}
	return &rule, nil
}
