package usecase

import (
	"reflect"
	"testing"

	"github.com/kirillkom/prism-answer/internal/core/domain"
)

func TestClassifyMatchesRuleKeywords(t *testing.T) {
	classifier := NewIntentClassifier(nil)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "results", query: "What are the results?", want: []string{"evaluation", "experiments", "results"}},
		{name: "case insensitive", query: "Which BENCHMARK was used", want: []string{"experiments", "methodology", "results"}},
		{name: "background phrase", query: "What is a transformer", want: []string{"abstract", "background", "introduction"}},
		{name: "no match", query: "Tell me about the authors", want: nil},
		{name: "empty", query: "   ", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifier.Classify(tt.query)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Classify(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestClassifyUnionsAllMatchingRules(t *testing.T) {
	classifier := NewIntentClassifier(nil)

	got := classifier.Match("How was accuracy measured and what are the limitations?")
	want := []string{"conclusion", "discussion", "evaluation", "experiments", "methodology", "methods", "results"}
	if !reflect.DeepEqual(got.Primary, want) {
		t.Fatalf("expected union %v, got %v", want, got.Primary)
	}
	if !reflect.DeepEqual(got.Rules, []string{"results", "methodology", "conclusion"}) {
		t.Fatalf("unexpected matched rules: %v", got.Rules)
	}
	for _, s := range got.Related {
		if contains(got.Primary, s) {
			t.Fatalf("section %q is both primary and related", s)
		}
	}
}

func TestClassifyUsesPlainSubstringMatch(t *testing.T) {
	classifier := NewIntentClassifier(nil)

	// "show" contains "how".
	got := classifier.Classify("show me the table")
	if !contains(got, "methodology") {
		t.Fatalf("expected substring match on 'how', got %v", got)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	classifier := NewIntentClassifier(nil)
	first := classifier.Classify("why did the method fail on the benchmark")
	for i := 0; i < 20; i++ {
		if got := classifier.Classify("why did the method fail on the benchmark"); !reflect.DeepEqual(got, first) {
			t.Fatalf("iteration %d: %v != %v", i, got, first)
		}
	}
}

func TestNewIntentClassifierNormalizesCustomRules(t *testing.T) {
	classifier := NewIntentClassifier([]domain.SectionBoostRule{
		{Name: "ablation", Keywords: []string{" Ablation "}, Primary: []string{"Experiments"}},
	})

	got := classifier.Classify("ablation study")
	if !reflect.DeepEqual(got, []string{"experiments"}) {
		t.Fatalf("expected lower-cased custom rule sections, got %v", got)
	}
	if len(classifier.Classify("what are the results")) != 0 {
		t.Fatalf("custom rules must replace the defaults")
	}
}
