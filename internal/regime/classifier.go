// Package regime classifies a market-wide sentiment index into a discrete
// trading regime and its position-size multiplier. Classification is a pure
// function of the input; the regime is passed explicitly through the pipeline
// for each cycle.
package regime

import (
	"math"

	"github.com/rxtech-lab/argo-patterns/internal/types"
	"github.com/rxtech-lab/argo-patterns/pkg/errors"
)

// Sentiment thresholds separating the regimes. Intervals are half-open:
// [0,25) extreme_fear, [25,45) fear, [45,55) neutral, [55,75) greed,
// [75,100] extreme_greed. A boundary value therefore always lands on the
// side with the lower multiplier (the more cautious sizing).
const (
	ThresholdExtremeFear = 25.0
	ThresholdFear        = 45.0
	ThresholdNeutral     = 55.0
	ThresholdGreed       = 75.0
)

// Config holds the per-regime sizing and advisory tables.
type Config struct {
	// Multipliers scales position sizes per regime.
	Multipliers map[types.Regime]float64 `yaml:"multipliers"`

	// ExpectedWinRates is the advisory historical win rate per regime.
	ExpectedWinRates map[types.Regime]float64 `yaml:"expected_win_rates"`
}

// DefaultConfig returns the default multiplier and win-rate tables.
// Contrarian sizing: fearful markets get larger positions, greedy markets
// smaller ones.
func DefaultConfig() Config {
	return Config{
		Multipliers: map[types.Regime]float64{
			types.RegimeExtremeFear:  1.5,
			types.RegimeFear:         1.2,
			types.RegimeNeutral:      1.0,
			types.RegimeGreed:        0.8,
			types.RegimeExtremeGreed: 0.5,
		},
		ExpectedWinRates: map[types.Regime]float64{
			types.RegimeExtremeFear:  0.65,
			types.RegimeFear:         0.58,
			types.RegimeNeutral:      0.52,
			types.RegimeGreed:        0.48,
			types.RegimeExtremeGreed: 0.42,
		},
	}
}

// Classifier maps a sentiment index to a regime assessment. Stateless and
// safe for concurrent use.
type Classifier struct {
	config Config
}

// NewClassifier creates a classifier with the given config. Missing table
// entries fall back to the defaults.
func NewClassifier(config Config) *Classifier {
	defaults := DefaultConfig()

	if config.Multipliers == nil {
		config.Multipliers = defaults.Multipliers
	}

	if config.ExpectedWinRates == nil {
		config.ExpectedWinRates = defaults.ExpectedWinRates
	}

	return &Classifier{config: config}
}

// Classify maps a sentiment index in [0, 100] to a regime assessment.
// Returns a validation error for non-finite or out-of-range input.
func (c *Classifier) Classify(sentiment float64) (types.RegimeAssessment, error) {
	if math.IsNaN(sentiment) || math.IsInf(sentiment, 0) {
		return types.RegimeAssessment{}, errors.New(errors.ErrCodeNonFiniteValue, "sentiment index must be finite")
	}

	if sentiment < 0 || sentiment > 100 {
		return types.RegimeAssessment{}, errors.Newf(errors.ErrCodeOutOfRange,
			"sentiment index %f outside [0,100]", sentiment)
	}

	regime := classify(sentiment)

	return types.RegimeAssessment{
		Regime:             regime,
		SentimentIndex:     sentiment,
		PositionMultiplier: c.config.Multipliers[regime],
		Strategy:           strategyHint(regime),
		ExpectedWinRate:    c.config.ExpectedWinRates[regime],
	}, nil
}

// classify maps a valid sentiment value to exactly one regime.
func classify(sentiment float64) types.Regime {
	switch {
	case sentiment < ThresholdExtremeFear:
		return types.RegimeExtremeFear
	case sentiment < ThresholdFear:
		return types.RegimeFear
	case sentiment < ThresholdNeutral:
		return types.RegimeNeutral
	case sentiment < ThresholdGreed:
		return types.RegimeGreed
	default:
		return types.RegimeExtremeGreed
	}
}

// strategyHint labels the setup style that historically works in a regime:
// fearful regimes favor mean reversion, greedy regimes favor momentum.
func strategyHint(regime types.Regime) types.StrategyHint {
	switch regime {
	case types.RegimeExtremeFear, types.RegimeFear:
		return types.StrategyHintMeanReversion
	case types.RegimeGreed, types.RegimeExtremeGreed:
		return types.StrategyHintMomentum
	default:
		return types.StrategyHintMixed
	}
}
