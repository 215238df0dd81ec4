// Package ledger owns the position lifecycle. Positions move OPEN -> CLOSED
// exactly once; the ledger is the only writer of position state.
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-patterns/internal/logger"
	"github.com/rxtech-lab/argo-patterns/internal/store"
	"github.com/rxtech-lab/argo-patterns/internal/types"
	"github.com/rxtech-lab/argo-patterns/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const hoursPerDay = 24

// Ledger records position entries and exits against the store.
type Ledger struct {
	store  *store.Store
	logger *logger.Logger
}

// NewLedger creates a position ledger backed by the given store.
func NewLedger(s *store.Store, log *logger.Logger) *Ledger {
	return &Ledger{
		store:  s,
		logger: log,
	}
}

// OpenRequest carries everything needed to record a new position.
type OpenRequest struct {
	Symbol              string
	EntryDate           time.Time
	EntryPrice          float64
	Quantity            float64
	PositionSizeDollars float64
	StopLoss            float64
	TargetPrice         float64

	PatternKey optional.Option[types.PatternKey]
	Regime     types.Regime
}

func (r OpenRequest) validate() error {
	if r.Symbol == "" {
		return errors.New(errors.ErrCodeMissingParameter, "symbol is required")
	}

	if r.EntryDate.IsZero() {
		return errors.New(errors.ErrCodeMissingParameter, "entry date is required")
	}

	if r.EntryPrice <= 0 {
		return errors.Newf(errors.ErrCodeInvalidPrice, "entry price must be positive, got %f", r.EntryPrice)
	}

	if r.Quantity <= 0 {
		return errors.Newf(errors.ErrCodeInvalidQuantity, "quantity must be positive, got %f", r.Quantity)
	}

	if !r.Regime.IsValid() {
		return errors.Newf(errors.ErrCodeInvalidParameter, "unknown regime %q", r.Regime)
	}

	if r.PatternKey.IsSome() {
		if err := r.PatternKey.Unwrap().Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Open records a new OPEN position and returns it.
func (l *Ledger) Open(req OpenRequest) (types.Position, error) {
	if err := req.validate(); err != nil {
		return types.Position{}, err
	}

	position := types.Position{
		ID:                  uuid.New().String(),
		Symbol:              req.Symbol,
		EntryDate:           req.EntryDate,
		EntryPrice:          req.EntryPrice,
		ExitDate:            optional.None[time.Time](),
		ExitPrice:           optional.None[float64](),
		Quantity:            req.Quantity,
		PositionSizeDollars: req.PositionSizeDollars,
		StopLoss:            req.StopLoss,
		TargetPrice:         req.TargetPrice,
		PatternKey:          req.PatternKey,
		Regime:              req.Regime,
		Status:              types.PositionStatusOpen,
	}

	if err := l.store.InsertPosition(position); err != nil {
		return types.Position{}, err
	}

	l.logger.Info("Opened position",
		zap.String("id", position.ID),
		zap.String("symbol", position.Symbol),
		zap.Float64("entry_price", position.EntryPrice),
		zap.Float64("quantity", position.Quantity),
		zap.String("regime", string(position.Regime)),
	)

	return position, nil
}

// Close transitions a position to CLOSED, computes realized PnL and returns
// the closed position together with the pattern trade payload for the
// statistics engine. The payload is None for positions without a pattern key.
//
// Closing an already closed position fails with a lifecycle error and leaves
// the stored record untouched.
func (l *Ledger) Close(event types.CloseEvent) (types.Position, optional.Option[types.PatternTrade], error) {
	none := optional.None[types.PatternTrade]()

	if err := event.Validate(); err != nil {
		return types.Position{}, none, err
	}

	fetched, err := l.store.GetPosition(event.PositionID)
	if err != nil {
		return types.Position{}, none, err
	}

	if fetched.IsNone() {
		return types.Position{}, none, errors.Newf(errors.ErrCodePositionNotFound,
			"position %s not found", event.PositionID)
	}

	position := fetched.Unwrap()
	if !position.IsOpen() {
		return types.Position{}, none, errors.Newf(errors.ErrCodePositionAlreadyClosed,
			"position %s is already closed", position.ID)
	}

	if event.ExitDate.Before(position.EntryDate) {
		return types.Position{}, none, errors.Newf(errors.ErrCodeInvalidParameter,
			"exit date %s precedes entry date %s", event.ExitDate, position.EntryDate)
	}

	pnlDollars, pnlPct := realizedPnL(position.EntryPrice, event.ExitPrice, position.Quantity)

	position.Status = types.PositionStatusClosed
	position.ExitDate = optional.Some(event.ExitDate)
	position.ExitPrice = optional.Some(event.ExitPrice)
	position.PnLDollars = pnlDollars
	position.PnLPct = pnlPct
	position.HoldDays = int(event.ExitDate.Sub(position.EntryDate).Hours() / hoursPerDay)
	position.ExitReason = event.ExitReason

	if err := l.store.UpdatePositionClose(position); err != nil {
		return types.Position{}, none, err
	}

	l.logger.Info("Closed position",
		zap.String("id", position.ID),
		zap.String("symbol", position.Symbol),
		zap.Float64("pnl_dollars", position.PnLDollars),
		zap.Float64("pnl_pct", position.PnLPct),
		zap.Int("hold_days", position.HoldDays),
		zap.String("exit_reason", position.ExitReason),
	)

	if position.PatternKey.IsNone() {
		return position, none, nil
	}

	trade := types.PatternTrade{
		Key:        position.PatternKey.Unwrap(),
		PnLPct:     position.PnLPct,
		PnLDollars: position.PnLDollars,
		HoldDays:   position.HoldDays,
		ExitDate:   event.ExitDate,
	}

	return position, optional.Some(trade), nil
}

// Mark updates the excursion extremes of an open position against the current
// price and evaluates the exit rule. Returns the triggered exit reason, or
// None when the position should stay open.
func (l *Ledger) Mark(position *types.Position, currentPrice float64, rule types.ExitRule, now time.Time) (optional.Option[string], error) {
	if currentPrice <= 0 {
		return optional.None[string](), errors.Newf(errors.ErrCodeInvalidPrice,
			"mark price must be positive, got %f", currentPrice)
	}

	if !position.IsOpen() {
		return optional.None[string](), errors.Newf(errors.ErrCodeInvalidTransition,
			"cannot mark closed position %s", position.ID)
	}

	unrealizedPct := percentChange(position.EntryPrice, currentPrice)
	if unrealizedPct > position.MaxGainPct {
		position.MaxGainPct = unrealizedPct
	}

	if unrealizedPct < position.MaxDrawdownPct {
		position.MaxDrawdownPct = unrealizedPct
	}

	if err := l.store.UpdatePositionMarks(position.ID, position.MaxGainPct, position.MaxDrawdownPct); err != nil {
		return optional.None[string](), err
	}

	return rule.EvaluateExit(position, currentPrice, now), nil
}

// OpenPositions lists all open positions.
func (l *Ledger) OpenPositions() ([]types.Position, error) {
	return l.store.ListOpenPositions()
}

// realizedPnL computes the realized dollar and percent PnL of a long
// position. Dollar PnL goes through fixed-point arithmetic so repeated
// accumulation downstream does not drift.
func realizedPnL(entryPrice, exitPrice, quantity float64) (pnlDollars, pnlPct float64) {
	entry := decimal.NewFromFloat(entryPrice)
	exit := decimal.NewFromFloat(exitPrice)
	qty := decimal.NewFromFloat(quantity)

	pnlDollars = exit.Sub(entry).Mul(qty).InexactFloat64()
	pnlPct = percentChange(entryPrice, exitPrice)

	return pnlDollars, pnlPct
}

func percentChange(entryPrice, currentPrice float64) float64 {
	entry := decimal.NewFromFloat(entryPrice)
	current := decimal.NewFromFloat(currentPrice)

	return current.Sub(entry).Div(entry).Mul(decimal.NewFromInt(100)).InexactFloat64()
}
