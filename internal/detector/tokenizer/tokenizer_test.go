package tokenizer

import (
	"slices"
	"testing"
)

func TestTokenSetNormalises(t *testing.T) {
	tokens := TokenSet("The Quick, Brown FOX!", "english")
	want := []string{"quick", "brown", "fox"}
	if !slices.Equal(tokens, want) {
		t.Errorf("expected %v, got %v", want, tokens)
	}
}

func TestTokenSetDeduplicates(t *testing.T) {
	tokens := TokenSet("gold gold gold silver", "english")
	want := []string{"gold", "silver"}
	if !slices.Equal(tokens, want) {
		t.Errorf("expected %v, got %v", want, tokens)
	}
}

func TestTokenSetStopWordsPerLanguage(t *testing.T) {
	tests := []struct {
		language string
		text     string
		want     []string
	}{
		{"english", "the cat and the dog", []string{"cat", "dog"}},
		{"spanish", "el gato y el perro", []string{"gato", "perro"}},
		{"french", "le chat et le chien", []string{"chat", "chien"}},
		{"german", "die katze und der hund", []string{"katze", "hund"}},
	}
	for _, tt := range tests {
		got := TokenSet(tt.text, tt.language)
		if !slices.Equal(got, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.language, tt.want, got)
		}
	}
}

func TestTokenSetUnsupportedLanguageKeepsAllWords(t *testing.T) {
	tokens := TokenSet("the cat and the dog", "klingon")
	want := []string{"the", "cat", "and", "dog"}
	if !slices.Equal(tokens, want) {
		t.Errorf("expected %v, got %v", want, tokens)
	}
}

func TestTokenSetEmpty(t *testing.T) {
	if tokens := TokenSet("", "english"); len(tokens) != 0 {
		t.Errorf("expected no tokens, got %v", tokens)
	}
	// All stop words collapse to the empty set too.
	if tokens := TokenSet("the and of a", "english"); len(tokens) != 0 {
		t.Errorf("expected no tokens, got %v", tokens)
	}
}

func TestSupported(t *testing.T) {
	if !Supported("english") {
		t.Error("english should be supported")
	}
	if Supported("klingon") {
		t.Error("klingon should not be supported")
	}
}
