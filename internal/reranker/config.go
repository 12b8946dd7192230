package reranker

import (
	"errors"
	"fmt"
	"math"
)

// Default weights. Training must stay the largest after normalization.
const (
	DefaultTrainingWeight  = 0.55
	DefaultLexicalWeight   = 0.18
	DefaultTypeWeight      = 0.12
	DefaultDurationWeight  = 0.05
	DefaultEmbeddingWeight = 0.10
)

// Other scoring defaults.
const (
	DefaultDiversityMargin   = 0.15
	DefaultDurationTolerance = 10
	DefaultDurationBand      = 30
	DefaultPartialCredit     = 0.5
	// NeutralTypeScore is the type signal for queries with no detectable
	// intent.
	NeutralTypeScore = 0.5
	DefaultTopK      = 10
)

// Weights are the linear coefficients of the final score.
type Weights struct {
	Training  float64
	Lexical   float64
	Type      float64
	Duration  float64
	Embedding float64
}

// DefaultWeights returns the default weights.
func DefaultWeights() Weights {
	return Weights{
		Training:  DefaultTrainingWeight,
		Lexical:   DefaultLexicalWeight,
		Type:      DefaultTypeWeight,
		Duration:  DefaultDurationWeight,
		Embedding: DefaultEmbeddingWeight,
	}
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.Training + w.Lexical + w.Type + w.Duration + w.Embedding
}

// Normalized scales the weights to sum to 1.
func (w Weights) Normalized() Weights {
	s := w.Sum()
	if s <= 0 {
		return w
	}
	return Weights{
		Training:  w.Training / s,
		Lexical:   w.Lexical / s,
		Type:      w.Type / s,
		Duration:  w.Duration / s,
		Embedding: w.Embedding / s,
	}
}

// Validate requires finite non-negative weights, a positive sum and a
// training weight strictly greater than every other weight.
func (w Weights) Validate() error {
	var errs []error
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"training", w.Training}, {"lexical", w.Lexical}, {"type", w.Type},
		{"duration", w.Duration}, {"embedding", w.Embedding},
	} {
		if f.v < 0 || math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			errs = append(errs, fmt.Errorf("%s weight must be a non-negative number, got %v", f.name, f.v))
		}
	}
	if w.Sum() <= 0 {
		errs = append(errs, errors.New("weights must sum to a positive value"))
	}
	if w.Training <= w.Lexical || w.Training <= w.Type || w.Training <= w.Duration || w.Training <= w.Embedding {
		errs = append(errs, errors.New("training weight must be strictly the largest"))
	}
	return errors.Join(errs...)
}

// Config is the immutable scoring configuration.
type Config struct {
	Weights Weights
	// DiversityMargin is how far below the lowest retained score a
	// missing-category candidate may be and still be swapped in.
	DiversityMargin float64
	// DurationTolerance is the distance in minutes that still scores 1.
	DurationTolerance int
	// DurationBand is the distance beyond the tolerance over which the
	// duration signal decays linearly to 0.
	DurationBand int
	// PartialCredit is the type signal for mixed candidates without a
	// direct intent match.
	PartialCredit float64
	DefaultTopK   int
	// StopWords and MinTokenLength tokenize candidate text; they should
	// match the query encoder's.
	StopWords      []string
	MinTokenLength int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Weights:           DefaultWeights(),
		DiversityMargin:   DefaultDiversityMargin,
		DurationTolerance: DefaultDurationTolerance,
		DurationBand:      DefaultDurationBand,
		PartialCredit:     DefaultPartialCredit,
		DefaultTopK:       DefaultTopK,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if err := c.Weights.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.DiversityMargin < 0 {
		errs = append(errs, fmt.Errorf("diversity margin cannot be negative, got %v", c.DiversityMargin))
	}
	if c.DurationTolerance < 0 || c.DurationBand < 0 {
		errs = append(errs, errors.New("duration tolerance and band cannot be negative"))
	}
	if c.PartialCredit < 0 || c.PartialCredit > 1 {
		errs = append(errs, fmt.Errorf("partial credit must be within [0,1], got %v", c.PartialCredit))
	}
	return errors.Join(errs...)
}
