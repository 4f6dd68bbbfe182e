package tokenize

import (
	"reflect"
	"testing"
)

func TestWordTokenizer(t *testing.T) {
	w := NewWordTokenizer()
	testCases := []struct {
		name string
		text string
		want []string
	}{
		{"simple", "The cat sat", []string{"the", "cat", "sat"}},
		{"trailing punct", "we report results.", []string{"we", "report", "results", "."}},
		{"leading punct", "(see Figure 2)", []string{"(", "see", "figure", "2", ")"}},
		{"interior hyphen", "state-of-the-art systems", []string{"state-of-the-art", "systems"}},
		{"pure punct", "...", []string{".", ".", "."}},
		{"empty", "", nil},
		{"whitespace only", "   \t ", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := w.Tokenize(tc.text)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Tokenize(%q) = %v; expected %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestWordTokenizerKeepCase(t *testing.T) {
	w := &WordTokenizer{KeepCase: true}
	got := w.Tokenize("The ACL Anthology")
	want := []string{"The", "ACL", "Anthology"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v; expected %v", got, want)
	}
}

func TestTokenizeBatch(t *testing.T) {
	w := NewWordTokenizer()
	got := w.TokenizeBatch([]string{"a b", "c"})
	want := [][]string{{"a", "b"}, {"c"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TokenizeBatch = %v; expected %v", got, want)
	}
}
