package types

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-patterns/pkg/errors"
)

// VolumeProfile buckets the volume ratio of a setup.
type VolumeProfile string

const (
	VolumeProfileLow       VolumeProfile = "low"
	VolumeProfileNormal    VolumeProfile = "normal"
	VolumeProfileHigh      VolumeProfile = "high"
	VolumeProfileExplosive VolumeProfile = "explosive"
)

// RSICondition buckets the short-lookback RSI of a setup.
type RSICondition string

const (
	RSIConditionOversold   RSICondition = "oversold"
	RSIConditionNeutral    RSICondition = "neutral"
	RSIConditionOverbought RSICondition = "overbought"
)

// MomentumState classifies recent vs. lifetime win-rate drift of a pattern.
type MomentumState string

const (
	MomentumStateHot    MomentumState = "HOT"
	MomentumStateCold   MomentumState = "COLD"
	MomentumStateStable MomentumState = "STABLE"
)

// ConfidenceLevel is a monotonic step function of a pattern's sample size.
type ConfidenceLevel string

const (
	ConfidenceLevelLow    ConfidenceLevel = "LOW"
	ConfidenceLevelMedium ConfidenceLevel = "MEDIUM"
	ConfidenceLevelHigh   ConfidenceLevel = "HIGH"
)

// Rank orders confidence levels so they can be compared. Higher is more
// confident.
func (c ConfidenceLevel) Rank() int {
	switch c {
	case ConfidenceLevelLow:
		return 0
	case ConfidenceLevelMedium:
		return 1
	case ConfidenceLevelHigh:
		return 2
	default:
		return -1
	}
}

// PatternStatus is the lifecycle status of a pattern record. Records are
// never deleted, only retired.
type PatternStatus string

const (
	PatternStatusActive  PatternStatus = "ACTIVE"
	PatternStatusRetired PatternStatus = "RETIRED"
)

// patternKeySeparator joins key components in the canonical string form.
// Components never contain it because bucket names are fixed enums and
// pattern names are validated against it.
const patternKeySeparator = "|"

// PatternKey is the composite identity of a tracked pattern. An explicit
// struct key avoids the bucket-boundary ambiguity of string concatenation.
type PatternKey struct {
	PatternName   string        `yaml:"pattern_name" json:"pattern_name" validate:"required,excludesall=0x7C"`
	Regime        Regime        `yaml:"regime" json:"regime" validate:"required,oneof=extreme_fear fear neutral greed extreme_greed"`
	VolumeProfile VolumeProfile `yaml:"volume_profile" json:"volume_profile" validate:"required,oneof=low normal high explosive"`
	RSICondition  RSICondition  `yaml:"rsi_condition" json:"rsi_condition" validate:"required,oneof=oversold neutral overbought"`
}

// String returns the canonical string form of the key, e.g.
// "momentum|neutral|high|neutral".
func (k PatternKey) String() string {
	return strings.Join([]string{
		k.PatternName,
		string(k.Regime),
		string(k.VolumeProfile),
		string(k.RSICondition),
	}, patternKeySeparator)
}

// Validate validates the PatternKey struct.
func (k PatternKey) Validate() error {
	validate := validator.New()
	if err := validate.Struct(k); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPatternKey, "invalid pattern key", err)
	}

	return nil
}

// ParsePatternKey parses the canonical string form produced by String.
func ParsePatternKey(s string) (PatternKey, error) {
	parts := strings.Split(s, patternKeySeparator)
	if len(parts) != 4 {
		return PatternKey{}, errors.Newf(errors.ErrCodeInvalidPatternKey, "malformed pattern key %q", s)
	}

	key := PatternKey{
		PatternName:   parts[0],
		Regime:        Regime(parts[1]),
		VolumeProfile: VolumeProfile(parts[2]),
		RSICondition:  RSICondition(parts[3]),
	}

	if err := key.Validate(); err != nil {
		return PatternKey{}, err
	}

	return key, nil
}

// PatternRecord is the aggregate performance record for one pattern key.
//
// Invariants maintained by the statistics engine:
//   - TotalTrades == WinningTrades + LosingTrades
//   - WinRate == WinningTrades / TotalTrades (0 when TotalTrades == 0)
//   - trade counters are monotonically non-decreasing
type PatternRecord struct {
	Key PatternKey `yaml:"key" json:"key"`

	TotalTrades   int     `yaml:"total_trades" json:"total_trades"`
	WinningTrades int     `yaml:"winning_trades" json:"winning_trades"`
	LosingTrades  int     `yaml:"losing_trades" json:"losing_trades"`
	WinRate       float64 `yaml:"win_rate" json:"win_rate"`

	AvgReturnPct float64 `yaml:"avg_return_pct" json:"avg_return_pct"`
	AvgHoldDays  float64 `yaml:"avg_hold_days" json:"avg_hold_days"`
	TotalPnL     float64 `yaml:"total_pnl" json:"total_pnl"`

	// AvgWinPct and AvgLossPct track average win/loss magnitudes split by
	// the sign of pnl_pct; both are stored as positive magnitudes.
	AvgWinPct  float64 `yaml:"avg_win_pct" json:"avg_win_pct"`
	AvgLossPct float64 `yaml:"avg_loss_pct" json:"avg_loss_pct"`

	// Expectancy is the probability-weighted expected return per trade:
	// win_rate * avg_win - (1 - win_rate) * avg_loss.
	Expectancy float64 `yaml:"expectancy" json:"expectancy"`

	// RecentWinRate is the win rate over the trailing window of closings.
	RecentWinRate float64 `yaml:"recent_win_rate" json:"recent_win_rate"`

	// Momentum is RecentWinRate - WinRate.
	Momentum      float64       `yaml:"momentum" json:"momentum"`
	MomentumState MomentumState `yaml:"momentum_state" json:"momentum_state"`

	ConfidenceLevel ConfidenceLevel `yaml:"confidence_level" json:"confidence_level"`
	Status          PatternStatus   `yaml:"status" json:"status"`
	LastTradeDate   time.Time       `yaml:"last_trade_date" json:"last_trade_date"`
}

// NewPatternRecord seeds a record with zeros for a newly classified key.
func NewPatternRecord(key PatternKey) PatternRecord {
	return PatternRecord{
		Key:             key,
		TotalTrades:     0,
		WinningTrades:   0,
		LosingTrades:    0,
		WinRate:         0,
		AvgReturnPct:    0,
		AvgHoldDays:     0,
		TotalPnL:        0,
		AvgWinPct:       0,
		AvgLossPct:      0,
		Expectancy:      0,
		RecentWinRate:   0,
		Momentum:        0,
		MomentumState:   MomentumStateStable,
		ConfidenceLevel: ConfidenceLevelLow,
		Status:          PatternStatusActive,
		LastTradeDate:   time.Time{},
	}
}

// CheckIntegrity verifies the record invariants. A violation is fatal for
// this pattern key: the caller retires the record rather than continue with
// corrupted state.
func (r *PatternRecord) CheckIntegrity() error {
	if r.TotalTrades != r.WinningTrades+r.LosingTrades {
		return errors.Newf(errors.ErrCodeCounterMismatch,
			"pattern %s: total_trades=%d != winning=%d + losing=%d",
			r.Key, r.TotalTrades, r.WinningTrades, r.LosingTrades)
	}

	if r.WinRate < 0 || r.WinRate > 1 {
		return errors.Newf(errors.ErrCodeWinRateOutOfBounds,
			"pattern %s: win_rate=%f outside [0,1]", r.Key, r.WinRate)
	}

	return nil
}

// PatternTrade is the per-close payload handed to the statistics engine.
type PatternTrade struct {
	Key        PatternKey `yaml:"key" json:"key"`
	PnLPct     float64    `yaml:"pnl_pct" json:"pnl_pct"`
	PnLDollars float64    `yaml:"pnl_dollars" json:"pnl_dollars"`
	HoldDays   int        `yaml:"hold_days" json:"hold_days"`
	ExitDate   time.Time  `yaml:"exit_date" json:"exit_date"`
}

// Validate validates the PatternTrade payload.
func (t PatternTrade) Validate() error {
	if err := t.Key.Validate(); err != nil {
		return err
	}

	if t.HoldDays < 0 {
		return errors.Newf(errors.ErrCodeInvalidHoldPeriod, "negative hold days: %d", t.HoldDays)
	}

	if t.ExitDate.IsZero() {
		return errors.New(errors.ErrCodeMissingParameter, "exit date is required")
	}

	return nil
}
