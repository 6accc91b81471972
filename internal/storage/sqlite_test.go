package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contaflow/contaflow/internal/common"
	"github.com/contaflow/contaflow/internal/model"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func testBatch(id, account, fingerprint string) *model.ImportBatch {
	return &model.ImportBatch{
		ID:          id,
		AccountID:   account,
		Fingerprint: fingerprint,
		Period:      model.Period{Month: 1, Year: 2024},
		Status:      model.BatchPending,
	}
}

func testTransaction(id, batchID string, day int, descriptor, amount string) model.Transaction {
	txn := model.Transaction{
		ID:            id,
		BatchID:       batchID,
		AccountID:     "acc-1",
		Date:          time.Date(2024, time.January, day, 0, 0, 0, 0, time.UTC),
		RawDescriptor: descriptor,
		Descriptor:    descriptor,
		Amount:        decimal.RequireFromString(amount),
		Currency:      model.DefaultCurrency,
		Status:        model.StatusUnclassified,
	}
	txn.Fingerprint = txn.GenerateFingerprint()
	return txn
}

func TestMigrate_Idempotent(t *testing.T) {
	store := newTestStorage(t)
	require.NoError(t, store.Migrate(context.Background()))
}

func TestBatchLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	batch := testBatch("batch-1", "acc-1", "fp-1")
	require.NoError(t, store.CreateBatch(ctx, batch))

	got, err := store.GetBatchByFingerprint(ctx, "acc-1", "fp-1", batch.Period)
	require.NoError(t, err)
	assert.Equal(t, "batch-1", got.ID)
	assert.Equal(t, model.BatchPending, got.Status)

	require.NoError(t, store.MarkBatchStatus(ctx, "batch-1", model.BatchCompleted, 5, 2, ""))

	got, err = store.GetBatchByID(ctx, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, model.BatchCompleted, got.Status)
	assert.Equal(t, 5, got.RowCount)
	assert.Equal(t, 2, got.DuplicateCount)
}

func TestCreateBatch_DuplicateKeyConflict(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	require.NoError(t, store.CreateBatch(ctx, testBatch("batch-1", "acc-1", "fp-1")))

	err := store.CreateBatch(ctx, testBatch("batch-2", "acc-1", "fp-1"))
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	// Same fingerprint under another account or period is a new batch.
	other := testBatch("batch-3", "acc-2", "fp-1")
	require.NoError(t, store.CreateBatch(ctx, other))

	shifted := testBatch("batch-4", "acc-1", "fp-1")
	shifted.Period = model.Period{Month: 2, Year: 2024}
	require.NoError(t, store.CreateBatch(ctx, shifted))
}

func TestGetBatchByFingerprint_NotFound(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.GetBatchByFingerprint(context.Background(), "acc-1", "missing", model.Period{Month: 1, Year: 2024})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestInsertTransactions_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	require.NoError(t, store.CreateBatch(ctx, testBatch("batch-1", "acc-1", "fp-1")))

	txns := []model.Transaction{
		testTransaction("txn-1", "batch-1", 2, "PAGAMENTO PADARIA JOSÉ", "-1000.5"),
		testTransaction("txn-2", "batch-1", 3, "SALARIO", "5000"),
	}
	require.NoError(t, store.InsertTransactions(ctx, txns))

	got, err := store.GetTransactionByID(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, "PAGAMENTO PADARIA JOSÉ", got.Descriptor)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("-1000.5")))
	assert.Equal(t, model.StatusUnclassified, got.Status)
	assert.Equal(t, 2, got.Date.Day())
	assert.Nil(t, got.RuleID)

	fingerprints, err := store.GetRowFingerprints(ctx, "batch-1")
	require.NoError(t, err)
	assert.Len(t, fingerprints, 2)
	assert.Contains(t, fingerprints, txns[0].Fingerprint)
}

func TestInsertTransactions_DuplicateFingerprintInBatch(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	require.NoError(t, store.CreateBatch(ctx, testBatch("batch-1", "acc-1", "fp-1")))

	first := testTransaction("txn-1", "batch-1", 2, "PADARIA", "-10")
	require.NoError(t, store.InsertTransactions(ctx, []model.Transaction{first}))

	dup := testTransaction("txn-2", "batch-1", 2, "PADARIA", "-10")
	err := store.InsertTransactions(ctx, []model.Transaction{dup})
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)
}

func TestDeleteBatch_CascadesToTransactions(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	require.NoError(t, store.CreateBatch(ctx, testBatch("batch-1", "acc-1", "fp-1")))
	require.NoError(t, store.InsertTransactions(ctx, []model.Transaction{
		testTransaction("txn-1", "batch-1", 2, "PADARIA", "-10"),
	}))

	require.NoError(t, store.DeleteBatch(ctx, "batch-1"))

	_, err := store.GetTransactionByID(ctx, "txn-1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListUnclassified(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	require.NoError(t, store.CreateBatch(ctx, testBatch("batch-1", "acc-1", "fp-1")))
	require.NoError(t, store.CreateBatch(ctx, testBatch("batch-2", "acc-1", "fp-2")))
	require.NoError(t, store.InsertTransactions(ctx, []model.Transaction{
		testTransaction("txn-b", "batch-1", 5, "SECOND", "-20"),
		testTransaction("txn-a", "batch-1", 2, "FIRST", "-10"),
		testTransaction("txn-c", "batch-2", 1, "OTHER BATCH", "-30"),
	}))

	all, err := store.ListUnclassified(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "txn-c", all[0].ID, "oldest first")

	scoped, err := store.ListUnclassified(ctx, "batch-1")
	require.NoError(t, err)
	require.Len(t, scoped, 2)
	assert.Equal(t, "txn-a", scoped[0].ID)
	assert.Equal(t, "txn-b", scoped[1].ID)
}

func TestUpdateClassification(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	require.NoError(t, store.CreateBatch(ctx, testBatch("batch-1", "acc-1", "fp-1")))
	require.NoError(t, store.InsertTransactions(ctx, []model.Transaction{
		testTransaction("txn-1", "batch-1", 2, "PADARIA", "-10"),
	}))

	ruleID := int64(7)
	ruleVersion := 3
	require.NoError(t, store.UpdateClassification(ctx, model.ClassificationResult{
		TransactionID: "txn-1",
		Category:      "Food",
		Status:        model.StatusRuleMatched,
		RuleID:        &ruleID,
		RuleVersion:   &ruleVersion,
		Rationale:     `contains "PADARIA"`,
	}))

	got, err := store.GetTransactionByID(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, "Food", got.Category)
	assert.Equal(t, model.StatusRuleMatched, got.Status)
	require.NotNil(t, got.RuleID)
	assert.Equal(t, int64(7), *got.RuleID)
	require.NotNil(t, got.RuleVersion)
	assert.Equal(t, 3, *got.RuleVersion)

	unclassified, err := store.ListUnclassified(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, unclassified)
}

func TestUpdateClassification_InconsistentRuleReference(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	err := store.UpdateClassification(ctx, model.ClassificationResult{
		TransactionID: "txn-1",
		Status:        model.StatusRuleMatched, // no rule id
		Category:      "Food",
	})
	assert.ErrorIs(t, err, ErrInvalidResult)

	ruleID := int64(1)
	err = store.UpdateClassification(ctx, model.ClassificationResult{
		TransactionID: "txn-1",
		Status:        model.StatusManual,
		Category:      "Food",
		RuleID:        &ruleID, // manual overrides carry no rule
	})
	assert.ErrorIs(t, err, ErrInvalidResult)
}

func TestUpdateClassification_MissingTransaction(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	err := store.UpdateClassification(ctx, model.ClassificationResult{
		TransactionID: "ghost",
		Status:        model.StatusUnclassified,
		Rationale:     "no rule matched",
	})
	assert.ErrorIs(t, err, common.ErrNotFound)
}
