// Package pattern derives a canonical pattern key from a setup's technical
// metrics and the current regime. Bucketing is total over valid input: every
// metrics record maps to exactly one key.
package pattern

import (
	"github.com/rxtech-lab/argo-patterns/internal/types"
	"github.com/rxtech-lab/argo-patterns/pkg/errors"
)

// Volume ratio bucket boundaries, half-open intervals:
// [0,0.5) low, [0.5,1.5) normal, [1.5,2.5) high, [2.5,inf) explosive.
const (
	volumeNormalFloor    = 0.5
	volumeHighFloor      = 1.5
	volumeExplosiveFloor = 2.5
)

// RSI(2) bucket boundaries: <30 oversold, [30,70] neutral, >70 overbought.
const (
	rsiOversoldCeiling   = 30.0
	rsiOverboughtCeiling = 70.0
)

// Price-change boundaries for the pattern family.
const (
	breakoutChangePct = 4.0
	momentumChangePct = 1.0
	reversalChangePct = -1.0
)

// Pattern family names.
const (
	FamilyBreakout = "breakout"
	FamilyMomentum = "momentum"
	FamilyReversal = "reversal"
	FamilyNeutral  = "neutral"
)

// Classifier assigns pattern keys. Stateless and safe for concurrent use.
type Classifier struct{}

// NewClassifier creates a pattern classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify derives the canonical pattern key for a metrics record under the
// given regime. Malformed input fails with a validation error and creates no
// key.
func (c *Classifier) Classify(metrics types.MarketMetrics, regime types.Regime) (types.PatternKey, error) {
	if err := metrics.Validate(); err != nil {
		return types.PatternKey{}, err
	}

	if !regime.IsValid() {
		return types.PatternKey{}, errors.Newf(errors.ErrCodeInvalidParameter, "unknown regime %q", regime)
	}

	key := types.PatternKey{
		PatternName:   classifyFamily(metrics),
		Regime:        regime,
		VolumeProfile: classifyVolume(metrics.VolumeRatio),
		RSICondition:  classifyRSI(metrics.RSI2),
	}

	if err := key.Validate(); err != nil {
		return types.PatternKey{}, err
	}

	return key, nil
}

// classifyVolume maps a non-negative volume ratio to exactly one bucket.
func classifyVolume(ratio float64) types.VolumeProfile {
	switch {
	case ratio < volumeNormalFloor:
		return types.VolumeProfileLow
	case ratio < volumeHighFloor:
		return types.VolumeProfileNormal
	case ratio < volumeExplosiveFloor:
		return types.VolumeProfileHigh
	default:
		return types.VolumeProfileExplosive
	}
}

// classifyRSI maps an RSI value in [0,100] to exactly one bucket. The
// neutral bucket is closed on both ends: 30 and 70 are neutral.
func classifyRSI(rsi float64) types.RSICondition {
	switch {
	case rsi < rsiOversoldCeiling:
		return types.RSIConditionOversold
	case rsi > rsiOverboughtCeiling:
		return types.RSIConditionOverbought
	default:
		return types.RSIConditionNeutral
	}
}

// classifyFamily tags the setup family from price change and RSI posture.
// Strong moves up are breakouts, moderate moves with stretched short-term
// RSI are momentum, pullbacks with depressed RSI are reversal candidates.
func classifyFamily(metrics types.MarketMetrics) string {
	switch {
	case metrics.PriceChangePct >= breakoutChangePct:
		return FamilyBreakout
	case metrics.PriceChangePct >= momentumChangePct && metrics.RSI2 > 50:
		return FamilyMomentum
	case metrics.PriceChangePct <= reversalChangePct && metrics.RSI2 < 50:
		return FamilyReversal
	default:
		return FamilyNeutral
	}
}
