package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// MatchKind selects how a rule pattern is applied to a descriptor.
type MatchKind string

// Match kind constants.
const (
	MatchContains MatchKind = "contains"
	MatchRegex    MatchKind = "regex"
)

// Rule validation errors.
var (
	ErrEmptyPattern   = errors.New("pattern cannot be empty")
	ErrInvalidPattern = errors.New("pattern is not a valid regular expression")
	ErrInvalidKind    = errors.New("invalid match kind")
)

// ClassificationRule maps a descriptor pattern to a category. Rules are
// evaluated by descending priority; every update bumps Version so prior
// classifications stay auditable against the version they matched.
type ClassificationRule struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	Name      string
	Pattern   string
	Category  string
	Kind      MatchKind
	ID        int64
	Priority  int
	Version   int
	IsActive  bool
}

// Validate ensures the rule has a usable pattern for its kind.
func (r *ClassificationRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("rule name is required")
	}
	if strings.TrimSpace(r.Category) == "" {
		return fmt.Errorf("rule category is required")
	}
	if strings.TrimSpace(r.Pattern) == "" {
		return ErrEmptyPattern
	}
	switch r.Kind {
	case MatchContains:
	case MatchRegex:
		if _, err := regexp.Compile(r.Pattern); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, r.Kind)
	}
	return nil
}
