package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/prism-answer/internal/core/domain"
)

type sectionRulesFile struct {
	Rules []domain.SectionBoostRule `yaml:"rules"`
}

// LoadSectionRules reads a rule table override. An empty path returns nil,
// which selects the built-in table.
func LoadSectionRules(path string) ([]domain.SectionBoostRule, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read section rules: %w", err)
	}
	var file sectionRulesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse section rules %s: %w", path, err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("section rules %s: no rules defined", path)
	}
	for i, rule := range file.Rules {
		if len(rule.Keywords) == 0 || len(rule.Primary) == 0 {
			return nil, fmt.Errorf("section rules %s: rule %d (%s) needs keywords and primary sections", path, i, rule.Name)
		}
	}
	return file.Rules, nil
}

// MarshalSectionRules renders rules in the same shape LoadSectionRules reads.
func MarshalSectionRules(rules []domain.SectionBoostRule) ([]byte, error) {
	return yaml.Marshal(sectionRulesFile{Rules: rules})
}
