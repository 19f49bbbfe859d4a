package usecase

import (
	"sort"
	"strings"

	"github.com/kirillkom/prism-answer/internal/core/domain"
)

// DefaultSectionRules is the built-in rule table. Order matters only for the
// reported rule names; section sets are unioned.
func DefaultSectionRules() []domain.SectionBoostRule {
	return []domain.SectionBoostRule{
		{
			Name:     "results",
			Keywords: []string{"result", "finding", "accuracy"},
			Primary:  []string{"results", "experiments", "evaluation"},
			Related:  []string{"discussion", "analysis"},
		},
		{
			Name:     "methodology",
			Keywords: []string{"method", "approach", "implement", "how"},
			Primary:  []string{"methodology", "methods", "experiments"},
			Related:  []string{"approach", "experimental_setup"},
		},
		{
			Name:     "background",
			Keywords: []string{"what is", "background", "context"},
			Primary:  []string{"introduction", "background", "abstract"},
			Related:  []string{"related_work", "literature_review"},
		},
		{
			Name:     "related_work",
			Keywords: []string{"related", "previous", "prior"},
			Primary:  []string{"related_work", "background"},
			Related:  []string{"literature_review", "introduction"},
		},
		{
			Name:     "discussion",
			Keywords: []string{"discuss", "interpret", "why"},
			Primary:  []string{"discussion", "results", "conclusion"},
			Related:  []string{"analysis"},
		},
		{
			Name:     "conclusion",
			Keywords: []string{"conclusion", "summary", "future", "limitation"},
			Primary:  []string{"conclusion", "discussion"},
			Related:  []string{"future_work"},
		},
		{
			Name:     "evaluation",
			Keywords: []string{"dataset", "benchmark", "evaluation"},
			Primary:  []string{"experiments", "results", "methodology"},
			Related:  []string{"experimental_setup", "evaluation"},
		},
	}
}

// IntentClassifier maps a query to the document sections it most likely
// targets. It holds no mutable state and is safe for concurrent use.
type IntentClassifier struct {
	rules []domain.SectionBoostRule
}

func NewIntentClassifier(rules []domain.SectionBoostRule) *IntentClassifier {
	if len(rules) == 0 {
		rules = DefaultSectionRules()
	}
	normalized := make([]domain.SectionBoostRule, 0, len(rules))
	for _, rule := range rules {
		normalized = append(normalized, domain.SectionBoostRule{
			Name:     rule.Name,
			Keywords: lowerAll(rule.Keywords),
			Primary:  lowerAll(rule.Primary),
			Related:  lowerAll(rule.Related),
		})
	}
	return &IntentClassifier{rules: normalized}
}

func (c *IntentClassifier) Rules() []domain.SectionBoostRule {
	out := make([]domain.SectionBoostRule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify returns the sorted union of primary sections of every rule whose
// keyword occurs in the query. Matching is a plain substring test, so "how"
// also fires inside "show".
func (c *IntentClassifier) Classify(query string) []string {
	return c.Match(query).Primary
}

func (c *IntentClassifier) Match(query string) domain.Intent {
	q := strings.ToLower(query)
	if strings.TrimSpace(q) == "" {
		return domain.Intent{}
	}

	var names []string
	primary := make(map[string]struct{})
	related := make(map[string]struct{})
	for _, rule := range c.rules {
		if !containsAny(q, rule.Keywords) {
			continue
		}
		names = append(names, rule.Name)
		for _, s := range rule.Primary {
			primary[s] = struct{}{}
		}
		for _, s := range rule.Related {
			related[s] = struct{}{}
		}
	}
	for s := range primary {
		delete(related, s)
	}

	return domain.Intent{
		Rules:   names,
		Primary: sortedKeys(primary),
		Related: sortedKeys(related),
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
