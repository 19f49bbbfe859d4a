package usecase

import (
	"reflect"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "simple",
			text: "First claim. Second claim! Third claim?",
			want: []string{"First claim.", "Second claim!", "Third claim?"},
		},
		{
			name: "citation after punctuation stays with its sentence",
			text: "Recall improved by 4%. [c1] The baseline was BM25. [c2, c3]",
			want: []string{"Recall improved by 4%. [c1]", "The baseline was BM25. [c2, c3]"},
		},
		{
			name: "citation before punctuation",
			text: "Recall improved [c1]. The baseline was BM25 [c2].",
			want: []string{"Recall improved [c1].", "The baseline was BM25 [c2]."},
		},
		{
			name: "abbreviations and decimals",
			text: "Smith et al. report 3.5 points, e.g. on SQuAD. See Fig. 2 for details.",
			want: []string{"Smith et al. report 3.5 points, e.g. on SQuAD.", "See Fig. 2 for details."},
		},
		{
			name: "initials",
			text: "The method of J. Smith works. It is fast.",
			want: []string{"The method of J. Smith works.", "It is fast."},
		},
		{
			name: "lowercase continuation is not a boundary",
			text: "Values near 0. are rounded. Next sentence.",
			want: []string{"Values near 0. are rounded.", "Next sentence."},
		},
		{
			name: "sentence starting with a number",
			text: "The corpus is small. 120 papers were used.",
			want: []string{"The corpus is small.", "120 papers were used."},
		},
		{
			name: "etc and pp close a sentence before a capital",
			text: "It is robust, etc. However it fails [c1]. Gains were 3 pp. The gap is large [c2].",
			want: []string{"It is robust, etc.", "However it fails [c1].", "Gains were 3 pp.", "The gap is large [c2]."},
		},
		{
			name: "pp before a page number continues",
			text: "See pp. 12-14 for proofs. They hold.",
			want: []string{"See pp. 12-14 for proofs.", "They hold."},
		},
		{
			name: "no terminal punctuation",
			text: "  a fragment without an ending ",
			want: []string{"a fragment without an ending"},
		},
		{
			name: "empty",
			text: "   ",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitSentences(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("splitSentences(%q)\n got  %q\n want %q", tt.text, got, tt.want)
			}
		})
	}
}
