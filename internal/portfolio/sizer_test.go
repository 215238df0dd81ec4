package portfolio

import (
	"testing"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-patterns/internal/logger"
	"github.com/rxtech-lab/argo-patterns/internal/types"
	"github.com/rxtech-lab/argo-patterns/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSizer(config Config) *Sizer {
	return NewSizer(config, logger.NewNopLogger(), nil)
}

func neutralAssessment() types.RegimeAssessment {
	return types.RegimeAssessment{
		Regime:             types.RegimeNeutral,
		SentimentIndex:     50,
		PositionMultiplier: 1.0,
		Strategy:           types.StrategyHintMixed,
	}
}

func buyCandidate(symbol string, conviction float64) Candidate {
	return Candidate{
		Decision: types.AIDecision{
			Symbol:     symbol,
			Decision:   types.DecisionBuyStrong,
			Conviction: conviction,
		},
		Metrics: types.MarketMetrics{Symbol: symbol, Price: 100},
		Key:     optional.None[types.PatternKey](),
		Record:  optional.None[types.PatternRecord](),
	}
}

func recordWith(winRate, expectancy float64, trades int) optional.Option[types.PatternRecord] {
	record := types.NewPatternRecord(types.PatternKey{
		PatternName:   "momentum",
		Regime:        types.RegimeNeutral,
		VolumeProfile: types.VolumeProfileHigh,
		RSICondition:  types.RSIConditionNeutral,
	})
	record.TotalTrades = trades
	record.WinRate = winRate
	record.Expectancy = expectancy

	return optional.Some(record)
}

func TestSizeScalesWithConviction(t *testing.T) {
	sizer := newTestSizer(DefaultConfig())

	sized, skipped, err := sizer.SelectAndSize(
		[]Candidate{buyCandidate("AAPL", 0.8)},
		neutralAssessment(),
		100_000,
		0,
	)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, sized, 1)

	// 0.8 conviction * 10% base * 1.0 regime * 1.0 neutral modifier.
	assert.InDelta(t, 0.08, sized[0].SizePct, 1e-9)
	assert.InDelta(t, 8_000, sized[0].SizeDollars, 1e-6)
}

func TestSizeRespectsMaxPositionCap(t *testing.T) {
	config := DefaultConfig()
	config.MaxPositionPct = 0.12

	sizer := newTestSizer(config)

	candidate := buyCandidate("AAPL", 1.0)
	candidate.Record = recordWith(0.8, 3.0, 30)

	// Fearful regime boosts sizing; the cap still binds.
	assessment := neutralAssessment()
	assessment.Regime = types.RegimeExtremeFear
	assessment.PositionMultiplier = 1.5

	sized, _, err := sizer.SelectAndSize([]Candidate{candidate}, assessment, 100_000, 0)
	require.NoError(t, err)
	require.Len(t, sized, 1)
	assert.InDelta(t, 0.12, sized[0].SizePct, 1e-9)
}

func TestRegimeMultiplierScalesSize(t *testing.T) {
	sizer := newTestSizer(DefaultConfig())

	greedy := neutralAssessment()
	greedy.Regime = types.RegimeExtremeGreed
	greedy.PositionMultiplier = 0.5

	sized, _, err := sizer.SelectAndSize(
		[]Candidate{buyCandidate("AAPL", 0.8)}, greedy, 100_000, 0)
	require.NoError(t, err)
	require.Len(t, sized, 1)
	assert.InDelta(t, 0.04, sized[0].SizePct, 1e-9)
}

func TestPatternModifierBounds(t *testing.T) {
	// Terrible history clamps at the floor.
	bad := recordWith(0.1, -10.0, 20)
	assert.Equal(t, modifierFloor, patternModifier(bad))

	// Stellar history clamps at the ceiling.
	good := recordWith(0.9, 10.0, 40)
	assert.Equal(t, modifierCeil, patternModifier(good))

	// Unproven and retired patterns stay neutral.
	assert.Equal(t, neutralModifier, patternModifier(optional.None[types.PatternRecord]()))

	retired := recordWith(0.9, 5.0, 40)
	r := retired.Unwrap()
	r.Status = types.PatternStatusRetired
	assert.Equal(t, neutralModifier, patternModifier(optional.Some(r)))
}

func TestGreedySelectionByConvictionAndExpectancy(t *testing.T) {
	config := DefaultConfig()
	config.MaxPositions = 2

	sizer := newTestSizer(config)

	proven := buyCandidate("PROV", 0.7)
	proven.Record = recordWith(0.7, 3.0, 30)

	strong := buyCandidate("CONV", 0.9)

	weak := buyCandidate("WEAK", 0.5)

	sized, skipped, err := sizer.SelectAndSize(
		[]Candidate{weak, strong, proven}, neutralAssessment(), 100_000, 0)
	require.NoError(t, err)
	require.Len(t, sized, 2)

	// proven scores 0.7*3.0=2.1, strong 0.9*1.0=0.9, weak 0.5*1.0=0.5.
	assert.Equal(t, "PROV", sized[0].Decision.Symbol)
	assert.Equal(t, "CONV", sized[1].Decision.Symbol)

	require.Len(t, skipped, 1)
	assert.Equal(t, "WEAK", skipped[0].Decision.Symbol)
	assert.True(t, errors.IsCapacityError(skipped[0].Reason))
}

func TestSelectionPrefersExpectancyOverRawConviction(t *testing.T) {
	config := DefaultConfig()
	config.MaxPositions = 1

	sizer := newTestSizer(config)

	// Lower conviction but a strong edge beats higher conviction with a
	// thin edge: 0.5*4.0=2.0 against 0.9*1.0=0.9.
	steady := buyCandidate("STDY", 0.5)
	steady.Record = recordWith(0.7, 4.0, 30)

	confident := buyCandidate("CONF", 0.9)
	confident.Record = recordWith(0.6, 1.0, 30)

	sized, skipped, err := sizer.SelectAndSize(
		[]Candidate{confident, steady}, neutralAssessment(), 100_000, 0)
	require.NoError(t, err)
	require.Len(t, sized, 1)
	assert.Equal(t, "STDY", sized[0].Decision.Symbol)

	require.Len(t, skipped, 1)
	assert.Equal(t, "CONF", skipped[0].Decision.Symbol)
	assert.True(t, errors.IsCapacityError(skipped[0].Reason))
}

func TestCapacitySkipIsNonFatal(t *testing.T) {
	config := DefaultConfig()
	config.MaxPositions = 3

	sizer := newTestSizer(config)

	sized, skipped, err := sizer.SelectAndSize(
		[]Candidate{buyCandidate("AAPL", 0.9), buyCandidate("MSFT", 0.8)},
		neutralAssessment(),
		100_000,
		3,
	)
	require.NoError(t, err)
	assert.Empty(t, sized)
	require.Len(t, skipped, 2)

	for _, skip := range skipped {
		assert.True(t, errors.IsCapacityError(skip.Reason))
		assert.True(t, errors.HasCode(skip.Reason, errors.ErrCodeNoSlotsAvailable))
	}
}

func TestNonBuyDecisionsIgnored(t *testing.T) {
	sizer := newTestSizer(DefaultConfig())

	hold := buyCandidate("HOLD", 0.9)
	hold.Decision.Decision = types.DecisionHold

	sell := buyCandidate("SELL", 0.9)
	sell.Decision.Decision = types.DecisionSellStrong

	sized, skipped, err := sizer.SelectAndSize(
		[]Candidate{hold, sell}, neutralAssessment(), 100_000, 0)
	require.NoError(t, err)
	assert.Empty(t, sized)
	assert.Empty(t, skipped)
}

func TestInvalidDecisionSkippedWithValidationError(t *testing.T) {
	sizer := newTestSizer(DefaultConfig())

	bad := buyCandidate("BAD", 1.5)

	sized, skipped, err := sizer.SelectAndSize(
		[]Candidate{bad}, neutralAssessment(), 100_000, 0)
	require.NoError(t, err)
	assert.Empty(t, sized)
	require.Len(t, skipped, 1)
	assert.True(t, errors.IsValidationError(skipped[0].Reason))
}

func TestDeterministicTieBreak(t *testing.T) {
	config := DefaultConfig()
	config.MaxPositions = 1

	sizer := newTestSizer(config)

	a := buyCandidate("ZZZ", 0.8)
	b := buyCandidate("AAA", 0.8)

	sized, _, err := sizer.SelectAndSize(
		[]Candidate{a, b}, neutralAssessment(), 100_000, 0)
	require.NoError(t, err)
	require.Len(t, sized, 1)
	assert.Equal(t, "AAA", sized[0].Decision.Symbol)
}

func TestCustomTieBreak(t *testing.T) {
	config := DefaultConfig()
	config.MaxPositions = 1

	// Reverse-alphabetical comparator.
	sizer := NewSizer(config, logger.NewNopLogger(), func(a, b Candidate) bool {
		return a.Decision.Symbol > b.Decision.Symbol
	})

	sized, _, err := sizer.SelectAndSize(
		[]Candidate{buyCandidate("AAA", 0.8), buyCandidate("ZZZ", 0.8)},
		neutralAssessment(), 100_000, 0)
	require.NoError(t, err)
	require.Len(t, sized, 1)
	assert.Equal(t, "ZZZ", sized[0].Decision.Symbol)
}

func TestRejectsInvalidPortfolioValue(t *testing.T) {
	sizer := newTestSizer(DefaultConfig())

	_, _, err := sizer.SelectAndSize(
		[]Candidate{buyCandidate("AAPL", 0.8)}, neutralAssessment(), 0, 0)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}
