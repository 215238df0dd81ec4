package types

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-patterns/pkg/errors"
)

// PositionStatus is the lifecycle status of a position. CLOSED is terminal.
type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "OPEN"
	PositionStatusClosed PositionStatus = "CLOSED"
)

// Exit reasons recorded when a position closes.
const (
	ExitReasonStopLoss  string = "stop_loss"
	ExitReasonTarget    string = "target"
	ExitReasonTimeLimit string = "time_limit"
	ExitReasonSignal    string = "signal"
	ExitReasonManual    string = "manual"
)

// Position is one tracked trade. Created on the entry decision, mutated
// exactly once on exit, never re-opened. Owned exclusively by the ledger.
type Position struct {
	ID     string `yaml:"id" json:"id"`
	Symbol string `yaml:"symbol" json:"symbol"`

	EntryDate  time.Time `yaml:"entry_date" json:"entry_date"`
	EntryPrice float64   `yaml:"entry_price" json:"entry_price"`

	ExitDate  optional.Option[time.Time] `yaml:"exit_date" json:"exit_date"`
	ExitPrice optional.Option[float64]   `yaml:"exit_price" json:"exit_price"`

	Quantity            float64 `yaml:"quantity" json:"quantity"`
	PositionSizeDollars float64 `yaml:"position_size_dollars" json:"position_size_dollars"`
	StopLoss            float64 `yaml:"stop_loss" json:"stop_loss"`
	TargetPrice         float64 `yaml:"target_price" json:"target_price"`

	// PatternKey is the setup this position was classified under. None when
	// the entry could not be classified.
	PatternKey optional.Option[PatternKey] `yaml:"pattern_key" json:"pattern_key"`

	Regime Regime         `yaml:"regime" json:"regime"`
	Status PositionStatus `yaml:"status" json:"status"`

	PnLDollars float64 `yaml:"pnl_dollars" json:"pnl_dollars"`
	PnLPct     float64 `yaml:"pnl_pct" json:"pnl_pct"`
	HoldDays   int     `yaml:"hold_days" json:"hold_days"`

	// MaxGainPct and MaxDrawdownPct track the best and worst unrealized
	// excursion observed on mark-to-market updates while the position is open.
	MaxGainPct     float64 `yaml:"max_gain_pct" json:"max_gain_pct"`
	MaxDrawdownPct float64 `yaml:"max_drawdown_pct" json:"max_drawdown_pct"`

	ExitReason string `yaml:"exit_reason" json:"exit_reason"`
}

// IsOpen reports whether the position is still open.
func (p *Position) IsOpen() bool {
	return p.Status == PositionStatusOpen
}

// CloseEvent carries an exit observation into the ledger.
type CloseEvent struct {
	PositionID string    `yaml:"position_id" json:"position_id"`
	ExitPrice  float64   `yaml:"exit_price" json:"exit_price"`
	ExitDate   time.Time `yaml:"exit_date" json:"exit_date"`
	ExitReason string    `yaml:"exit_reason" json:"exit_reason"`
}

// Validate validates a close event before it reaches the ledger.
func (e *CloseEvent) Validate() error {
	if e.PositionID == "" {
		return errors.New(errors.ErrCodeMissingParameter, "position id is required")
	}

	if e.ExitPrice <= 0 {
		return errors.Newf(errors.ErrCodeInvalidPrice, "exit price must be positive, got %f", e.ExitPrice)
	}

	if e.ExitDate.IsZero() {
		return errors.New(errors.ErrCodeMissingParameter, "exit date is required")
	}

	return nil
}

// ExitRule is the exit policy evaluated against an open position on each
// mark-to-market update.
type ExitRule struct {
	// MaxHoldDays closes the position with reason time_limit once reached.
	// Zero disables the time exit.
	MaxHoldDays int `yaml:"max_hold_days" json:"max_hold_days"`
}

// EvaluateExit checks an open position against its stop, target and the
// holding limit. Returns the exit reason, or None when no exit triggers.
func (r ExitRule) EvaluateExit(p *Position, currentPrice float64, now time.Time) optional.Option[string] {
	if !p.IsOpen() {
		return optional.None[string]()
	}

	if p.StopLoss > 0 && currentPrice <= p.StopLoss {
		return optional.Some(ExitReasonStopLoss)
	}

	if p.TargetPrice > 0 && currentPrice >= p.TargetPrice {
		return optional.Some(ExitReasonTarget)
	}

	if r.MaxHoldDays > 0 {
		holdDays := int(now.Sub(p.EntryDate).Hours() / 24)
		if holdDays >= r.MaxHoldDays {
			return optional.Some(ExitReasonTimeLimit)
		}
	}

	return optional.None[string]()
}
