package classify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contaflow/contaflow/internal/model"
)

type stubRuleSource struct {
	rules []model.ClassificationRule
	err   error
}

func (s *stubRuleSource) GetActiveRules(_ context.Context) ([]model.ClassificationRule, error) {
	return s.rules, s.err
}

func padariaRule() model.ClassificationRule {
	return model.ClassificationRule{
		ID:       7,
		Name:     "bakeries",
		Pattern:  "PADARIA",
		Kind:     model.MatchContains,
		Category: "Food",
		Priority: 10,
		Version:  3,
		IsActive: true,
	}
}

func TestService_Classify_RuleMatched(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&stubRuleSource{rules: []model.ClassificationRule{padariaRule()}})
	require.NoError(t, svc.Reload(ctx))

	result, err := svc.Classify(ctx, model.Transaction{
		ID:         "txn-1",
		Descriptor: "PAGAMENTO PADARIA JOSÉ",
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusRuleMatched, result.Status)
	assert.Equal(t, "Food", result.Category)
	require.NotNil(t, result.RuleID)
	assert.Equal(t, int64(7), *result.RuleID)
	require.NotNil(t, result.RuleVersion)
	assert.Equal(t, 3, *result.RuleVersion)
	assert.Contains(t, result.Rationale, "PADARIA")
	assert.True(t, result.Consistent())
}

func TestService_Classify_Unclassified(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&stubRuleSource{rules: []model.ClassificationRule{padariaRule()}})
	require.NoError(t, svc.Reload(ctx))

	result, err := svc.Classify(ctx, model.Transaction{
		ID:         "txn-2",
		Descriptor: "TRANSFERÊNCIA BANCO CENTRAL",
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusUnclassified, result.Status)
	assert.Empty(t, result.Category)
	assert.Nil(t, result.RuleID)
	assert.Nil(t, result.RuleVersion)
	assert.Equal(t, "no rule matched", result.Rationale)
	assert.True(t, result.Consistent())
}

func TestService_Classify_BeforeReload(t *testing.T) {
	svc := NewService(&stubRuleSource{})
	_, err := svc.Classify(context.Background(), model.Transaction{ID: "t", Descriptor: "X"})
	assert.ErrorIs(t, err, ErrCacheNotLoaded)
}

func TestService_Reload_SkipsBadRules(t *testing.T) {
	ctx := context.Background()
	bad := model.ClassificationRule{
		ID: 1, Name: "broken", Pattern: "[unclosed", Kind: model.MatchRegex,
		Category: "X", Priority: 99, IsActive: true,
	}
	svc := NewService(&stubRuleSource{rules: []model.ClassificationRule{bad, padariaRule()}})

	require.NoError(t, svc.Reload(ctx), "one bad rule must not block the rest")
	assert.Equal(t, 1, svc.RuleCount())

	result, err := svc.Classify(ctx, model.Transaction{ID: "t", Descriptor: "PADARIA"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusRuleMatched, result.Status)
}

func TestService_Reload_SourceError(t *testing.T) {
	svc := NewService(&stubRuleSource{err: errors.New("db down")})
	assert.Error(t, svc.Reload(context.Background()))
}

func TestService_ClassifyBatch_PreservesOrder(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&stubRuleSource{rules: []model.ClassificationRule{padariaRule()}})
	require.NoError(t, svc.Reload(ctx))

	txns := make([]model.Transaction, 50)
	for i := range txns {
		descriptor := "TRANSFERENCIA"
		if i%3 == 0 {
			descriptor = "PADARIA CENTRAL"
		}
		txns[i] = model.Transaction{ID: fmt.Sprintf("txn-%03d", i), Descriptor: descriptor}
	}

	results, err := svc.ClassifyBatch(ctx, txns)
	require.NoError(t, err)
	require.Len(t, results, len(txns))

	for i, result := range results {
		assert.Equal(t, txns[i].ID, result.TransactionID, "output order mirrors input order")
		if i%3 == 0 {
			assert.Equal(t, model.StatusRuleMatched, result.Status)
		} else {
			assert.Equal(t, model.StatusUnclassified, result.Status)
		}
	}
}

func TestService_ReloadSwapsCache(t *testing.T) {
	ctx := context.Background()
	source := &stubRuleSource{rules: []model.ClassificationRule{padariaRule()}}
	svc := NewService(source)
	require.NoError(t, svc.Reload(ctx))

	// Rule mutations are invisible until the explicit reload.
	source.rules = nil
	result, err := svc.Classify(ctx, model.Transaction{ID: "t", Descriptor: "PADARIA"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusRuleMatched, result.Status)

	require.NoError(t, svc.Reload(ctx))
	result, err = svc.Classify(ctx, model.Transaction{ID: "t", Descriptor: "PADARIA"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnclassified, result.Status)
}

func TestService_ConcurrentClassifyAndReload(t *testing.T) {
	ctx := context.Background()
	source := &stubRuleSource{rules: []model.ClassificationRule{padariaRule()}}
	svc := NewService(source)
	require.NoError(t, svc.Reload(ctx))

	// Readers keep classifying while a writer reloads the cache. The rule
	// set is unchanged across reloads, so every read must see a match.
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, 9)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 50; j++ {
				result, err := svc.Classify(ctx, model.Transaction{ID: "t", Descriptor: "PADARIA CENTRAL"})
				if err != nil {
					errs <- err
					return
				}
				if result.Status != model.StatusRuleMatched {
					errs <- fmt.Errorf("got status %s, want %s", result.Status, model.StatusRuleMatched)
					return
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		for j := 0; j < 20; j++ {
			if err := svc.Reload(ctx); err != nil {
				errs <- err
				return
			}
		}
	}()

	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatal(err)
	}
}

func TestOverride(t *testing.T) {
	result := Override(model.Transaction{ID: "txn-9"}, "Travel")
	assert.Equal(t, model.StatusManual, result.Status)
	assert.Equal(t, "Travel", result.Category)
	assert.Nil(t, result.RuleID)
	assert.Equal(t, "manually overridden", result.Rationale)
	assert.True(t, result.Consistent())
}
