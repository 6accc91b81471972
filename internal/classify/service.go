// Package classify assigns categories to transactions by evaluating the
// enabled classification rules against their descriptors.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/contaflow/contaflow/internal/matcher"
	"github.com/contaflow/contaflow/internal/model"
	"github.com/contaflow/contaflow/internal/service"
)

// ErrCacheNotLoaded indicates Classify was called before Reload populated
// the rule cache.
var ErrCacheNotLoaded = errors.New("rule cache not loaded")

// Service caches compiled rules and classifies transactions against them.
// The cache is read-mostly shared state: concurrent Classify calls read a
// stable snapshot, and Reload swaps in a fresh set under the write lock.
// There is no automatic invalidation; callers reload after rule mutations.
type Service struct {
	source service.RuleSource
	set    *matcher.RuleSet
	mu     sync.RWMutex
}

// NewService creates an unloaded classification service. Call Reload
// before classifying.
func NewService(source service.RuleSource) *Service {
	return &Service{source: source}
}

// Reload discards the cache and rebuilds it from the currently enabled
// rules. A rule whose pattern fails to compile is logged and skipped so
// one bad rule cannot block classification of everything else.
func (s *Service) Reload(ctx context.Context) error {
	rules, err := s.source.GetActiveRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	set := matcher.NewRuleSet()
	for _, rule := range rules {
		if err := set.Add(rule); err != nil {
			slog.Warn("skipping rule with invalid pattern",
				"rule", rule.Name, "rule_id", rule.ID, "error", err)
			continue
		}
	}

	s.mu.Lock()
	s.set = set
	s.mu.Unlock()

	slog.Debug("rule cache reloaded", "rules", set.Len())
	return nil
}

// RuleCount returns the number of rules in the current cache.
func (s *Service) RuleCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.set == nil {
		return 0
	}
	return s.set.Len()
}

// Classify matches the transaction's normalized descriptor against the
// cached rules and returns the outcome with its rationale.
func (s *Service) Classify(_ context.Context, txn model.Transaction) (model.ClassificationResult, error) {
	s.mu.RLock()
	set := s.set
	s.mu.RUnlock()

	if set == nil {
		return model.ClassificationResult{}, ErrCacheNotLoaded
	}

	return classifyAgainst(set, txn), nil
}

// ClassifyBatch classifies each transaction independently. Output order
// mirrors input order; rows have no inter-row dependency, so matching is
// fanned out across workers without changing outcomes.
func (s *Service) ClassifyBatch(ctx context.Context, txns []model.Transaction) ([]model.ClassificationResult, error) {
	s.mu.RLock()
	set := s.set
	s.mu.RUnlock()

	if set == nil {
		return nil, ErrCacheNotLoaded
	}

	results := make([]model.ClassificationResult, len(txns))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, txn := range txns {
		i, txn := i, txn
		g.Go(func() error {
			results[i] = classifyAgainst(set, txn)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// FindAllMatches returns every rule matching the descriptor in priority
// order, for what-if diagnostics.
func (s *Service) FindAllMatches(descriptor string) ([]matcher.Match, error) {
	s.mu.RLock()
	set := s.set
	s.mu.RUnlock()

	if set == nil {
		return nil, ErrCacheNotLoaded
	}
	return set.FindAllMatches(descriptor), nil
}

func classifyAgainst(set *matcher.RuleSet, txn model.Transaction) model.ClassificationResult {
	match := set.FindBestMatch(txn.Descriptor)
	if match == nil {
		return model.ClassificationResult{
			TransactionID: txn.ID,
			Status:        model.StatusUnclassified,
			Rationale:     "no rule matched",
		}
	}

	ruleID := match.Rule.ID
	ruleVersion := match.Rule.Version
	return model.ClassificationResult{
		TransactionID: txn.ID,
		Status:        model.StatusRuleMatched,
		Category:      match.Rule.Category,
		RuleID:        &ruleID,
		RuleVersion:   &ruleVersion,
		Rationale:     match.Reason,
	}
}

// Override produces a manual classification for a transaction, clearing
// any rule reference.
func Override(txn model.Transaction, category string) model.ClassificationResult {
	return model.ClassificationResult{
		TransactionID: txn.ID,
		Status:        model.StatusManual,
		Category:      category,
		Rationale:     "manually overridden",
	}
}
