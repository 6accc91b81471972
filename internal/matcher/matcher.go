package matcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/contaflow/contaflow/internal/model"
)

// A Matcher tests one descriptor against one compiled pattern. The two
// implementations form a closed set: containsMatcher and regexMatcher,
// one per model.MatchKind.
type Matcher interface {
	// Matches reports whether the descriptor matches, with a
	// human-readable reason suitable for a classification rationale.
	Matches(descriptor string) (bool, string)
	Pattern() string
	Kind() model.MatchKind
}

// New compiles a pattern for the given kind. Invalid patterns fail here,
// never at match time.
func New(pattern string, kind model.MatchKind) (Matcher, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, model.ErrEmptyPattern
	}

	switch kind {
	case model.MatchContains:
		return &containsMatcher{pattern: pattern, folded: Fold(pattern)}, nil
	case model.MatchRegex:
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrInvalidPattern, err)
		}
		return &regexMatcher{pattern: pattern, re: re}, nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidKind, kind)
	}
}

type containsMatcher struct {
	pattern string
	folded  string
}

func (m *containsMatcher) Matches(descriptor string) (bool, string) {
	if descriptor == "" {
		return false, ""
	}
	if !strings.Contains(Fold(descriptor), m.folded) {
		return false, ""
	}
	return true, fmt.Sprintf("contains %q", m.folded)
}

func (m *containsMatcher) Pattern() string       { return m.pattern }
func (m *containsMatcher) Kind() model.MatchKind { return model.MatchContains }

type regexMatcher struct {
	pattern string
	re      *regexp.Regexp
}

func (m *regexMatcher) Matches(descriptor string) (bool, string) {
	if descriptor == "" {
		return false, ""
	}
	if !m.re.MatchString(Fold(descriptor)) {
		return false, ""
	}
	return true, fmt.Sprintf("matches /%s/", m.pattern)
}

func (m *regexMatcher) Pattern() string       { return m.pattern }
func (m *regexMatcher) Kind() model.MatchKind { return model.MatchRegex }
