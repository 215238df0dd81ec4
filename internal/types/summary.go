package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ActivePositionSnapshot is a read-only view of one open position for
// external monitoring consumers.
type ActivePositionSnapshot struct {
	Symbol     string    `yaml:"symbol" json:"symbol"`
	EntryDate  time.Time `yaml:"entry_date" json:"entry_date"`
	EntryPrice float64   `yaml:"entry_price" json:"entry_price"`
	Quantity   float64   `yaml:"quantity" json:"quantity"`

	// PatternKey is the canonical key string, empty when unclassified.
	PatternKey string `yaml:"pattern_key" json:"pattern_key"`
	Regime     Regime `yaml:"regime" json:"regime"`

	// UnrealizedPnL fields are computed against the last observed price.
	CurrentPrice     float64 `yaml:"current_price" json:"current_price"`
	UnrealizedPnL    float64 `yaml:"unrealized_pnl" json:"unrealized_pnl"`
	UnrealizedPnLPct float64 `yaml:"unrealized_pnl_pct" json:"unrealized_pnl_pct"`

	HoldDays int `yaml:"hold_days" json:"hold_days"`
}

// PatternSummary is a read-only view of one pattern record for external
// monitoring consumers.
type PatternSummary struct {
	PatternKey      string          `yaml:"pattern_key" json:"pattern_key"`
	TotalTrades     int             `yaml:"total_trades" json:"total_trades"`
	WinRate         float64         `yaml:"win_rate" json:"win_rate"`
	Expectancy      float64         `yaml:"expectancy" json:"expectancy"`
	MomentumState   MomentumState   `yaml:"momentum_state" json:"momentum_state"`
	ConfidenceLevel ConfidenceLevel `yaml:"confidence_level" json:"confidence_level"`
	Status          PatternStatus   `yaml:"status" json:"status"`
	LastTradeDate   time.Time       `yaml:"last_trade_date" json:"last_trade_date"`
}

// DailySummary aggregates one pipeline cycle for monitoring and audit.
type DailySummary struct {
	// Date is the cycle date in YYYY-MM-DD format.
	Date string `yaml:"date" json:"date"`

	// LastUpdated is when this summary was written.
	LastUpdated time.Time `yaml:"last_updated" json:"last_updated"`

	// Regime assessment used for the cycle.
	Regime RegimeAssessment `yaml:"regime" json:"regime"`

	// Decision counts for the cycle.
	CandidatesEvaluated int `yaml:"candidates_evaluated" json:"candidates_evaluated"`
	PositionsOpened     int `yaml:"positions_opened" json:"positions_opened"`
	PositionsClosed     int `yaml:"positions_closed" json:"positions_closed"`
	CandidatesSkipped   int `yaml:"candidates_skipped" json:"candidates_skipped"`
	CandidatesRejected  int `yaml:"candidates_rejected" json:"candidates_rejected"`

	// RealizedPnL is the dollar PnL realized by closes this cycle.
	RealizedPnL float64 `yaml:"realized_pnl" json:"realized_pnl"`

	// Patterns touched by closes this cycle.
	PatternsUpdated []PatternSummary `yaml:"patterns_updated" json:"patterns_updated"`
}

// WriteDailySummary writes a daily summary to a YAML file.
func WriteDailySummary(path string, summary DailySummary) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal daily summary to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write daily summary to file: %w", err)
	}

	return nil
}

// ReadDailySummary reads a daily summary from a YAML file.
func ReadDailySummary(path string) (DailySummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DailySummary{}, fmt.Errorf("failed to read daily summary file: %w", err)
	}

	var summary DailySummary
	if err := yaml.Unmarshal(data, &summary); err != nil {
		return DailySummary{}, fmt.Errorf("failed to unmarshal daily summary: %w", err)
	}

	return summary, nil
}
