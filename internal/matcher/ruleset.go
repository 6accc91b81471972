package matcher

import (
	"fmt"
	"sort"

	"github.com/contaflow/contaflow/internal/model"
)

// RuleEntry is one compiled rule inside a RuleSet.
type RuleEntry struct {
	Matcher  Matcher
	Name     string
	Category string
	ID       int64
	Priority int
	Version  int
	seq      int
}

// RuleSet holds compiled rules sorted by descending priority, ties broken
// by insertion order (first added wins). The explicit sequence number
// makes the tie-break deterministic instead of leaning on slice ordering
// accidents.
type RuleSet struct {
	entries []RuleEntry
	nextSeq int
}

// NewRuleSet returns an empty rule set.
func NewRuleSet() *RuleSet {
	return &RuleSet{}
}

// Add compiles and inserts a rule. A rule with an invalid pattern is
// rejected by name and the existing set is left untouched.
func (s *RuleSet) Add(rule model.ClassificationRule) error {
	m, err := New(rule.Pattern, rule.Kind)
	if err != nil {
		return fmt.Errorf("rule %q: %w", rule.Name, err)
	}

	entry := RuleEntry{
		ID:       rule.ID,
		Name:     rule.Name,
		Category: rule.Category,
		Matcher:  m,
		Priority: rule.Priority,
		Version:  rule.Version,
		seq:      s.nextSeq,
	}
	s.nextSeq++

	s.entries = append(s.entries, entry)
	sort.SliceStable(s.entries, func(i, j int) bool {
		if s.entries[i].Priority != s.entries[j].Priority {
			return s.entries[i].Priority > s.entries[j].Priority
		}
		return s.entries[i].seq < s.entries[j].seq
	})

	return nil
}

// Len returns the number of compiled rules.
func (s *RuleSet) Len() int {
	return len(s.entries)
}

// Match is one rule that accepted a descriptor.
type Match struct {
	Rule   RuleEntry
	Reason string
}

// FindBestMatch scans rules in priority order and returns the first that
// accepts the descriptor, or nil if none match.
func (s *RuleSet) FindBestMatch(descriptor string) *Match {
	for _, entry := range s.entries {
		if ok, reason := entry.Matcher.Matches(descriptor); ok {
			return &Match{Rule: entry, Reason: reason}
		}
	}
	return nil
}

// FindAllMatches returns every matching rule, still priority-ordered.
// Intended for diagnostics and what-if queries.
func (s *RuleSet) FindAllMatches(descriptor string) []Match {
	var matches []Match
	for _, entry := range s.entries {
		if ok, reason := entry.Matcher.Matches(descriptor); ok {
			matches = append(matches, Match{Rule: entry, Reason: reason})
		}
	}
	return matches
}
