// Package query turns raw request text into a query Context: a normalized
// form, a lexical token set, intent flags, requested durations and the
// semantic vector used for retrieval.
package query

import (
	"time"
)

// Defaults used when a Config field is zero.
const (
	DefaultMinTokenLength = 2
	DefaultTimeout        = 8 * time.Second
)

// defaultStopWords merges the recommender's domain stop words ("hire",
// "assessment", ...) with common English function words.
var defaultStopWords = []string{
	// domain
	"also", "am", "assessment", "assessments", "hire", "hiring", "looking",
	"my", "need", "test", "tests", "want", "who", "can",
	// english
	"a", "an", "and", "are", "as", "at", "be", "been", "being", "but", "by",
	"could", "did", "do", "does", "for", "from", "had", "has", "have", "he",
	"how", "i", "in", "is", "it", "its", "may", "might", "of", "on", "or",
	"she", "should", "that", "the", "these", "they", "this", "those", "to",
	"was", "we", "what", "when", "where", "which", "why", "will", "with",
	"would", "you", "our", "your",
}

// DefaultStopWords returns a fresh copy of the built-in stop-word list.
func DefaultStopWords() []string {
	return append([]string(nil), defaultStopWords...)
}

// Config configures an Encoder. It is treated as immutable once passed to
// NewEncoder.
type Config struct {
	// MinTokenLength drops shorter tokens.
	MinTokenLength int
	// StopWords replaces the default list when non-empty.
	StopWords []string
	// Timeout bounds the embedding call.
	Timeout time.Duration
	// Dimension is the expected vector length; 0 skips the check.
	Dimension int
	// Keywords drive intent classification.
	Keywords IntentKeywords
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		MinTokenLength: DefaultMinTokenLength,
		StopWords:      DefaultStopWords(),
		Timeout:        DefaultTimeout,
		Keywords:       DefaultIntentKeywords(),
	}
}

func (c Config) withDefaults() Config {
	if c.MinTokenLength <= 0 {
		c.MinTokenLength = DefaultMinTokenLength
	}
	if len(c.StopWords) == 0 {
		c.StopWords = DefaultStopWords()
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Keywords.Empty() {
		c.Keywords = DefaultIntentKeywords()
	}
	return c
}
