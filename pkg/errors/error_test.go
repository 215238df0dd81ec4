package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidParameter, err.Code)
	suite.Equal("invalid parameter", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeInvalidPrice, "invalid price: %f", -1.0)
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidPrice, err.Code)
	suite.Equal("invalid price: -1.000000", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeQueryFailed, "query failed", cause)
	suite.NotNil(err)
	suite.Equal(ErrCodeQueryFailed, err.Code)
	suite.Equal("query failed", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("underlying error")
	err := Wrapf(ErrCodeRecordNotFound, cause, "no record for symbol: %s", "AAPL")
	suite.NotNil(err)
	suite.Equal(ErrCodeRecordNotFound, err.Code)
	suite.Equal("no record for symbol: AAPL", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Equal("[100] invalid parameter", err.Error())
}

func (suite *ErrorTestSuite) TestErrorStringWithCause() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodePositionNotFound, "position not found", cause)
	suite.Equal("[202] position not found: underlying error", err.Error())
}

func (suite *ErrorTestSuite) TestUnwrap() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeQueryFailed, "query failed", cause)
	suite.Equal(cause, err.Unwrap())
}

func (suite *ErrorTestSuite) TestUnwrapNil() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Nil(err.Unwrap())
}

func (suite *ErrorTestSuite) TestGetCode() {
	err := New(ErrCodeConcurrencyConflict, "lock contention")
	suite.Equal(ErrCodeConcurrencyConflict, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodePlainError() {
	err := errors.New("plain error")
	suite.Equal(ErrCodeUnknown, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeWrappedChain() {
	inner := New(ErrCodePositionAlreadyClosed, "already closed")
	outer := fmt.Errorf("processing close event: %w", inner)
	suite.Equal(ErrCodePositionAlreadyClosed, GetCode(outer))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := New(ErrCodeNoSlotsAvailable, "no slots")
	suite.True(HasCode(err, ErrCodeNoSlotsAvailable))
	suite.False(HasCode(err, ErrCodeInvalidParameter))
}

func (suite *ErrorTestSuite) TestCategoryHelpers() {
	suite.True(IsValidationError(New(ErrCodeOutOfRange, "out of range")))
	suite.True(IsInvalidStateError(New(ErrCodePositionAlreadyClosed, "already closed")))
	suite.True(IsConcurrencyConflict(New(ErrCodeRetryExhausted, "retry budget exhausted")))
	suite.True(IsCapacityError(New(ErrCodeNoSlotsAvailable, "no slots")))
	suite.True(IsDataInconsistencyError(New(ErrCodeCounterMismatch, "counter mismatch")))

	suite.False(IsValidationError(New(ErrCodeQueryFailed, "query failed")))
	suite.False(IsConcurrencyConflict(errors.New("plain error")))
}

func (suite *ErrorTestSuite) TestCategoryHelpersThroughWrapping() {
	inner := New(ErrCodeConcurrencyConflict, "lock contention")
	outer := fmt.Errorf("statistics update: %w", inner)
	suite.True(IsConcurrencyConflict(outer))
}
