package ledger

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-patterns/internal/logger"
	"github.com/rxtech-lab/argo-patterns/internal/store"
	"github.com/rxtech-lab/argo-patterns/internal/types"
	"github.com/rxtech-lab/argo-patterns/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type LedgerTestSuite struct {
	suite.Suite
	store  *store.Store
	ledger *Ledger
}

func TestLedgerTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func (s *LedgerTestSuite) SetupTest() {
	st, err := store.NewStore(logger.NewNopLogger(), "")
	s.Require().NoError(err)
	s.Require().NoError(st.Initialize())

	s.store = st
	s.ledger = NewLedger(st, logger.NewNopLogger())
}

func (s *LedgerTestSuite) TearDownTest() {
	if s.store != nil {
		s.store.Close()
	}
}

func testKey() types.PatternKey {
	return types.PatternKey{
		PatternName:   "breakout",
		Regime:        types.RegimeFear,
		VolumeProfile: types.VolumeProfileExplosive,
		RSICondition:  types.RSIConditionOversold,
	}
}

func testOpenRequest() OpenRequest {
	return OpenRequest{
		Symbol:              "AAPL",
		EntryDate:           time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC),
		EntryPrice:          100.00,
		Quantity:            10,
		PositionSizeDollars: 1000,
		StopLoss:            95.00,
		TargetPrice:         115.00,
		PatternKey:          optional.Some(testKey()),
		Regime:              types.RegimeFear,
	}
}

func (s *LedgerTestSuite) TestOpenPersistsPosition() {
	position, err := s.ledger.Open(testOpenRequest())
	s.Require().NoError(err)
	s.NotEmpty(position.ID)
	s.Equal(types.PositionStatusOpen, position.Status)

	fetched, err := s.store.GetPosition(position.ID)
	s.Require().NoError(err)
	s.Require().True(fetched.IsSome())
	s.Equal("AAPL", fetched.Unwrap().Symbol)
}

func (s *LedgerTestSuite) TestOpenRejectsInvalidRequest() {
	req := testOpenRequest()
	req.EntryPrice = 0

	_, err := s.ledger.Open(req)
	s.Require().Error(err)
	s.True(errors.IsValidationError(err))

	req = testOpenRequest()
	req.Quantity = -5

	_, err = s.ledger.Open(req)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidQuantity))
}

func (s *LedgerTestSuite) TestCloseComputesPnL() {
	position, err := s.ledger.Open(testOpenRequest())
	s.Require().NoError(err)

	closed, trade, err := s.ledger.Close(types.CloseEvent{
		PositionID: position.ID,
		ExitPrice:  110.00,
		ExitDate:   position.EntryDate.AddDate(0, 0, 7),
		ExitReason: types.ExitReasonTarget,
	})
	s.Require().NoError(err)

	s.Equal(types.PositionStatusClosed, closed.Status)
	s.InDelta(100.0, closed.PnLDollars, 1e-9)
	s.InDelta(10.0, closed.PnLPct, 1e-9)
	s.Equal(7, closed.HoldDays)
	s.Equal(types.ExitReasonTarget, closed.ExitReason)

	s.Require().True(trade.IsSome())
	s.Equal(testKey(), trade.Unwrap().Key)
	s.InDelta(10.0, trade.Unwrap().PnLPct, 1e-9)
}

func (s *LedgerTestSuite) TestCloseLosingPosition() {
	position, err := s.ledger.Open(testOpenRequest())
	s.Require().NoError(err)

	closed, _, err := s.ledger.Close(types.CloseEvent{
		PositionID: position.ID,
		ExitPrice:  94.50,
		ExitDate:   position.EntryDate.AddDate(0, 0, 2),
		ExitReason: types.ExitReasonStopLoss,
	})
	s.Require().NoError(err)
	s.InDelta(-55.0, closed.PnLDollars, 1e-9)
	s.InDelta(-5.5, closed.PnLPct, 1e-9)
}

func (s *LedgerTestSuite) TestDoubleCloseFailsWithoutSideEffect() {
	position, err := s.ledger.Open(testOpenRequest())
	s.Require().NoError(err)

	event := types.CloseEvent{
		PositionID: position.ID,
		ExitPrice:  110.00,
		ExitDate:   position.EntryDate.AddDate(0, 0, 7),
		ExitReason: types.ExitReasonTarget,
	}
	first, _, err := s.ledger.Close(event)
	s.Require().NoError(err)

	// Second close with a different price must fail and must not touch the
	// stored record.
	event.ExitPrice = 50.00
	_, _, err = s.ledger.Close(event)
	s.Require().Error(err)
	s.True(errors.IsInvalidStateError(err))
	s.True(errors.HasCode(err, errors.ErrCodePositionAlreadyClosed))

	fetched, err := s.store.GetPosition(position.ID)
	s.Require().NoError(err)
	s.Equal(first.PnLDollars, fetched.Unwrap().PnLDollars)
	s.Equal(110.00, fetched.Unwrap().ExitPrice.Unwrap())
}

func (s *LedgerTestSuite) TestCloseUnknownPosition() {
	_, _, err := s.ledger.Close(types.CloseEvent{
		PositionID: "missing",
		ExitPrice:  100,
		ExitDate:   time.Now().UTC(),
	})
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodePositionNotFound))
}

func (s *LedgerTestSuite) TestCloseRejectsExitBeforeEntry() {
	position, err := s.ledger.Open(testOpenRequest())
	s.Require().NoError(err)

	_, _, err = s.ledger.Close(types.CloseEvent{
		PositionID: position.ID,
		ExitPrice:  110.00,
		ExitDate:   position.EntryDate.AddDate(0, 0, -1),
	})
	s.Require().Error(err)
	s.True(errors.IsValidationError(err))
}

func (s *LedgerTestSuite) TestCloseWithoutPatternKeyYieldsNoTrade() {
	req := testOpenRequest()
	req.PatternKey = optional.None[types.PatternKey]()

	position, err := s.ledger.Open(req)
	s.Require().NoError(err)

	_, trade, err := s.ledger.Close(types.CloseEvent{
		PositionID: position.ID,
		ExitPrice:  105.00,
		ExitDate:   position.EntryDate.AddDate(0, 0, 1),
		ExitReason: types.ExitReasonSignal,
	})
	s.Require().NoError(err)
	s.True(trade.IsNone())
}

func (s *LedgerTestSuite) TestMarkTracksExcursions() {
	position, err := s.ledger.Open(testOpenRequest())
	s.Require().NoError(err)

	rule := types.ExitRule{MaxHoldDays: 30}
	now := position.EntryDate.AddDate(0, 0, 1)

	exit, err := s.ledger.Mark(&position, 106.00, rule, now)
	s.Require().NoError(err)
	s.True(exit.IsNone())
	s.InDelta(6.0, position.MaxGainPct, 1e-9)

	exit, err = s.ledger.Mark(&position, 97.00, rule, now)
	s.Require().NoError(err)
	s.True(exit.IsNone())
	s.InDelta(6.0, position.MaxGainPct, 1e-9)
	s.InDelta(-3.0, position.MaxDrawdownPct, 1e-9)

	fetched, err := s.store.GetPosition(position.ID)
	s.Require().NoError(err)
	s.InDelta(6.0, fetched.Unwrap().MaxGainPct, 1e-9)
	s.InDelta(-3.0, fetched.Unwrap().MaxDrawdownPct, 1e-9)
}

func (s *LedgerTestSuite) TestMarkTriggersStopAndTimeExit() {
	position, err := s.ledger.Open(testOpenRequest())
	s.Require().NoError(err)

	rule := types.ExitRule{MaxHoldDays: 10}

	exit, err := s.ledger.Mark(&position, 94.00, rule, position.EntryDate.AddDate(0, 0, 1))
	s.Require().NoError(err)
	s.Require().True(exit.IsSome())
	s.Equal(types.ExitReasonStopLoss, exit.Unwrap())

	exit, err = s.ledger.Mark(&position, 100.50, rule, position.EntryDate.AddDate(0, 0, 11))
	s.Require().NoError(err)
	s.Require().True(exit.IsSome())
	s.Equal(types.ExitReasonTimeLimit, exit.Unwrap())
}

func (s *LedgerTestSuite) TestMarkRejectsClosedPosition() {
	position, err := s.ledger.Open(testOpenRequest())
	s.Require().NoError(err)

	closed, _, err := s.ledger.Close(types.CloseEvent{
		PositionID: position.ID,
		ExitPrice:  110.00,
		ExitDate:   position.EntryDate.AddDate(0, 0, 7),
		ExitReason: types.ExitReasonTarget,
	})
	s.Require().NoError(err)

	_, err = s.ledger.Mark(&closed, 120.00, types.ExitRule{}, time.Now().UTC())
	s.Require().Error(err)
	s.True(errors.IsInvalidStateError(err))
}
