package usecase

import (
	"strings"

	"github.com/kirillkom/prism-answer/internal/core/domain"
)

const (
	DefaultExactSectionBoost   = 2.0
	DefaultRelatedSectionBoost = 1.3
)

// relatedSectionGroups are sections close enough to share a related boost.
var relatedSectionGroups = [][]string{
	{"results", "experiments", "evaluation"},
	{"methodology", "methods", "experiments"},
	{"introduction", "background", "abstract"},
	{"discussion", "conclusion", "results"},
}

type sectionBooster struct {
	exact   float64
	related float64
}

func newSectionBooster(exact, related float64) sectionBooster {
	if exact < 1 {
		exact = DefaultExactSectionBoost
	}
	if related < 1 {
		related = DefaultRelatedSectionBoost
	}
	return sectionBooster{exact: exact, related: related}
}

// factor never drops below 1.0: boosting only reorders upwards.
func (b sectionBooster) factor(section string, intent domain.Intent) float64 {
	if intent.Empty() {
		return 1.0
	}
	section = strings.ToLower(strings.TrimSpace(section))
	if section == "" {
		return 1.0
	}
	if contains(intent.Primary, section) {
		return b.exact
	}
	if contains(intent.Related, section) {
		return b.related
	}
	for _, group := range relatedSectionGroups {
		if contains(group, section) && intersects(group, intent.Primary) {
			return b.related
		}
	}
	return 1.0
}

func (b sectionBooster) apply(candidates []domain.Candidate, intent domain.Intent) {
	for i := range candidates {
		f := b.factor(candidates[i].Chunk.SectionType, intent)
		// Negative similarities would shrink when multiplied.
		if candidates[i].Similarity < 0 {
			f = 1.0
		}
		candidates[i].BoostFactor = f
		candidates[i].BoostedScore = candidates[i].Similarity * f
	}
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, v := range a {
		if contains(b, v) {
			return true
		}
	}
	return false
}
