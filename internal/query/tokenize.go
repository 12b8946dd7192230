package query

import (
	"sort"
	"strings"
	"unicode"
)

// Tokens is a set of lexical tokens.
type Tokens map[string]struct{}

// Has reports whether tok is in the set.
func (t Tokens) Has(tok string) bool {
	_, ok := t[tok]
	return ok
}

// Intersect returns |t ∩ other|.
func (t Tokens) Intersect(other Tokens) int {
	small, large := t, other
	if len(large) < len(small) {
		small, large = large, small
	}
	n := 0
	for tok := range small {
		if large.Has(tok) {
			n++
		}
	}
	return n
}

// Sorted returns the tokens in lexical order.
func (t Tokens) Sorted() []string {
	out := make([]string, 0, len(t))
	for tok := range t {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

// Normalize lower-cases text and collapses runs of whitespace.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Tokenizer splits text into a stop-word-reduced token set.
type Tokenizer struct {
	stop   map[string]struct{}
	minLen int
}

// NewTokenizer builds a Tokenizer. Stop words are matched case-insensitively.
func NewTokenizer(stopWords []string, minLen int) *Tokenizer {
	stop := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		stop[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	if minLen <= 0 {
		minLen = DefaultMinTokenLength
	}
	return &Tokenizer{stop: stop, minLen: minLen}
}

// Tokenize lower-cases text, splits on anything that is not a letter or
// digit, and drops stop words and tokens shorter than the minimum length.
func (t *Tokenizer) Tokenize(text string) Tokens {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(Tokens, len(words))
	for _, w := range words {
		if len([]rune(w)) < t.minLen {
			continue
		}
		if _, stop := t.stop[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

// Tokenize tokenizes text with the given stop words and the default
// minimum token length.
func Tokenize(text string, stopWords []string) Tokens {
	return NewTokenizer(stopWords, DefaultMinTokenLength).Tokenize(text)
}
