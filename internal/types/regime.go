package types

// Regime is the discrete market-sentiment classification used to scale
// position sizing. It is threaded explicitly through the pipeline for each
// cycle rather than read from ambient state.
type Regime string

const (
	RegimeExtremeFear  Regime = "extreme_fear"
	RegimeFear         Regime = "fear"
	RegimeNeutral      Regime = "neutral"
	RegimeGreed        Regime = "greed"
	RegimeExtremeGreed Regime = "extreme_greed"
)

// Regimes lists every regime in ascending sentiment order.
func Regimes() []Regime {
	return []Regime{
		RegimeExtremeFear,
		RegimeFear,
		RegimeNeutral,
		RegimeGreed,
		RegimeExtremeGreed,
	}
}

// IsValid reports whether r is one of the known regimes.
func (r Regime) IsValid() bool {
	switch r {
	case RegimeExtremeFear, RegimeFear, RegimeNeutral, RegimeGreed, RegimeExtremeGreed:
		return true
	default:
		return false
	}
}

// StrategyHint is an advisory label for the style of setups that tend to work
// in a regime.
type StrategyHint string

const (
	StrategyHintMeanReversion StrategyHint = "mean_reversion"
	StrategyHintMomentum      StrategyHint = "momentum"
	StrategyHintMixed         StrategyHint = "mixed"
)

// RegimeAssessment is the output of the regime classifier for one cycle.
type RegimeAssessment struct {
	// Regime is the classified market regime.
	Regime Regime `yaml:"regime" json:"regime"`

	// SentimentIndex is the input sentiment value in [0, 100].
	SentimentIndex float64 `yaml:"sentiment_index" json:"sentiment_index"`

	// PositionMultiplier scales base position sizes for this regime.
	PositionMultiplier float64 `yaml:"position_multiplier" json:"position_multiplier"`

	// Strategy is an advisory hint for the setup style favored by this regime.
	Strategy StrategyHint `yaml:"strategy" json:"strategy"`

	// ExpectedWinRate is the historically observed win rate for this regime.
	ExpectedWinRate float64 `yaml:"expected_win_rate" json:"expected_win_rate"`
}
