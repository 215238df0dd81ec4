package types

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-patterns/pkg/errors"
)

// Decision is the AI collaborator's verdict for a candidate symbol.
type Decision string

const (
	DecisionBuyStrong  Decision = "BUY_STRONG"
	DecisionBuyWeak    Decision = "BUY_WEAK"
	DecisionHold       Decision = "HOLD"
	DecisionSellWeak   Decision = "SELL_WEAK"
	DecisionSellStrong Decision = "SELL_STRONG"
)

// IsBuy reports whether the decision opens a long position.
func (d Decision) IsBuy() bool {
	return d == DecisionBuyStrong || d == DecisionBuyWeak
}

// FillSide is the side of a broker fill.
type FillSide string

const (
	FillSideBuy  FillSide = "BUY"
	FillSideSell FillSide = "SELL"
)

// MarketMetrics is the per-symbol technical snapshot consumed by the
// pattern classifier. It is produced by an external market data collaborator.
type MarketMetrics struct {
	Symbol string  `yaml:"symbol" json:"symbol" validate:"required"`
	Price  float64 `yaml:"price" json:"price" validate:"required,gt=0"`
	Volume float64 `yaml:"volume" json:"volume" validate:"gte=0"`

	// RSI2 and RSI14 are the relative strength index at 2 and 14 bar lookbacks.
	RSI2  float64 `yaml:"rsi_2" json:"rsi_2" validate:"gte=0,lte=100"`
	RSI14 float64 `yaml:"rsi_14" json:"rsi_14" validate:"gte=0,lte=100"`

	// VolumeRatio is current volume relative to its trailing average.
	VolumeRatio float64 `yaml:"volume_ratio" json:"volume_ratio" validate:"gte=0"`

	PriceChangePct float64 `yaml:"price_change_pct" json:"price_change_pct"`

	// SentimentIndex is the market-wide fear/greed reading in [0, 100].
	SentimentIndex float64 `yaml:"regime_sentiment_index" json:"regime_sentiment_index" validate:"gte=0,lte=100"`
}

// Validate validates the MarketMetrics record.
func (m *MarketMetrics) Validate() error {
	validate := validator.New()
	if err := validate.Struct(m); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidMetrics, "invalid market metrics", err)
	}

	// Untagged float fields still have to be finite.
	for _, v := range []float64{m.PriceChangePct, m.Price, m.VolumeRatio, m.SentimentIndex} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Newf(errors.ErrCodeNonFiniteValue, "non-finite value in metrics for %s", m.Symbol)
		}
	}

	return nil
}

// AIDecision is the external analysis collaborator's decision record.
type AIDecision struct {
	Symbol   string   `yaml:"symbol" json:"symbol" validate:"required"`
	Decision Decision `yaml:"decision" json:"decision" validate:"required,oneof=BUY_STRONG BUY_WEAK HOLD SELL_WEAK SELL_STRONG"`

	// Conviction is the AI-assigned confidence in [0, 1].
	Conviction float64 `yaml:"conviction_score" json:"conviction_score" validate:"gte=0,lte=1"`

	// StopLoss and TargetPrice are optional exit levels suggested by the
	// analysis; zero means unset.
	StopLoss    float64 `yaml:"stop_loss" json:"stop_loss" validate:"gte=0"`
	TargetPrice float64 `yaml:"target_price" json:"target_price" validate:"gte=0"`
}

// Validate validates the AIDecision record.
func (d *AIDecision) Validate() error {
	validate := validator.New()
	if err := validate.Struct(d); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidDecision, "invalid AI decision", err)
	}

	return nil
}

// BrokerFill is a fill confirmation from the external broker collaborator.
type BrokerFill struct {
	Symbol    string    `yaml:"symbol" json:"symbol" validate:"required"`
	Side      FillSide  `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	Quantity  float64   `yaml:"quantity" json:"quantity" validate:"required,gt=0"`
	FillPrice float64   `yaml:"fill_price" json:"fill_price" validate:"required,gt=0"`
	Timestamp time.Time `yaml:"timestamp" json:"timestamp" validate:"required"`
	OrderID   string    `yaml:"order_id" json:"order_id" validate:"required"`
}

// Validate validates the BrokerFill record.
func (f *BrokerFill) Validate() error {
	validate := validator.New()
	if err := validate.Struct(f); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidFill, "invalid broker fill", err)
	}

	return nil
}
