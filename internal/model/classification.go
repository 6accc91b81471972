package model

// ClassificationStatus indicates how a transaction received its category.
type ClassificationStatus string

// Classification status constants.
const (
	StatusUnclassified ClassificationStatus = "UNCLASSIFIED"
	StatusRuleMatched  ClassificationStatus = "RULE_MATCHED"
	StatusManual       ClassificationStatus = "MANUAL"
)

// ClassificationResult records the outcome of classifying one transaction.
// RuleID and RuleVersion are set only when Status is RULE_MATCHED.
type ClassificationResult struct {
	TransactionID string
	Category      string
	Rationale     string
	Status        ClassificationStatus
	RuleID        *int64
	RuleVersion   *int
}

// Consistent reports whether the rule reference agrees with the status:
// a rule match carries a rule id, everything else carries none.
func (r *ClassificationResult) Consistent() bool {
	if r.Status == StatusRuleMatched {
		return r.RuleID != nil
	}
	return r.RuleID == nil && r.RuleVersion == nil
}
