// Package tokenizer provides text tokenisation for the search index.
// It lower-cases input, turns punctuation into word breaks, removes
// stop-words and short tokens, and can optionally apply the Snowball
// English stemmer.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	snowballeng "github.com/kljensen/snowball/english"
)

// DefaultStopWords is the stop list applied at index time.
var DefaultStopWords = []string{
	"the", "is", "at", "which", "on", "a", "an", "and", "or", "but",
	"in", "with", "to", "for", "of", "as", "by", "that", "this", "it",
	"from", "be", "are", "been", "being", "have", "has", "had", "do",
	"does", "did", "will", "would", "could", "should", "may", "might",
	"must", "shall", "can", "need",
}

// MinTokenLen is the shortest token kept, in runes.
const MinTokenLen = 3

// Tokenizer is safe for concurrent use; it holds no mutable state.
type Tokenizer struct {
	stopWords map[string]struct{}
	stem      bool
}

// Option configures a Tokenizer.
type Option func(*Tokenizer)

// WithStopWords replaces the default stop list. An empty list keeps the
// default.
func WithStopWords(words []string) Option {
	return func(t *Tokenizer) {
		if len(words) == 0 {
			return
		}
		t.stopWords = toSet(words)
	}
}

// WithStemming enables Snowball English stemming of kept tokens.
func WithStemming(on bool) Option {
	return func(t *Tokenizer) { t.stem = on }
}

func New(opts ...Option) *Tokenizer {
	t := &Tokenizer{stopWords: toSet(DefaultStopWords)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var defaultTokenizer = New()

// Tokenize splits text with the default stop list and no stemming.
func Tokenize(text string) []string {
	return defaultTokenizer.Tokenize(text)
}

// Tokenize returns the ordered tokens of text. Empty input yields an empty,
// non-nil slice.
func (t *Tokenizer) Tokenize(text string) []string {
	if text == "" {
		return []string{}
	}
	text = strings.Map(func(r rune) rune {
		if isWordRune(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, strings.ToLower(text))

	words := strings.Fields(text)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) < MinTokenLen {
			continue
		}
		if t.IsStopWord(w) {
			continue
		}
		if t.stem {
			w = snowballeng.Stem(w, false)
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// IsStopWord reports whether w is in the stop list. w must be lowercase.
func (t *Tokenizer) IsStopWord(w string) bool {
	_, ok := t.stopWords[w]
	return ok
}

// Stemming reports whether tokens are stemmed.
func (t *Tokenizer) Stemming() bool { return t.stem }

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-'
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}
