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
	err := Newf(ErrCodeNoDataFound, "no bars found for symbol: %s", "BTCUSDT")
	suite.NotNil(err)
	suite.Equal(ErrCodeNoDataFound, err.Code)
	suite.Equal("no bars found for symbol: BTCUSDT", err.Message)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeDataFetchFailed, "failed to fetch bars", cause)
	suite.NotNil(err)
	suite.Equal(ErrCodeDataFetchFailed, err.Code)
	suite.Equal("failed to fetch bars", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeInvalidConfiguration, "invalid configuration")
	suite.Equal("[100] invalid configuration", err.Error())
}

func (suite *ErrorTestSuite) TestErrorStringWithCause() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeOrderFailed, "order rejected", cause)
	suite.Equal("[500] order rejected: underlying error", err.Error())
}

func (suite *ErrorTestSuite) TestUnwrap() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeOrderFailed, "order rejected", cause)
	suite.Equal(cause, err.Unwrap())
}

func (suite *ErrorTestSuite) TestGetCodeFromWrapped() {
	inner := New(ErrCodeRiskLimitExceeded, "too many open positions")
	outer := fmt.Errorf("cycle failed: %w", inner)
	suite.Equal(ErrCodeRiskLimitExceeded, GetCode(outer))
}

func (suite *ErrorTestSuite) TestGetCodeUnknown() {
	suite.Equal(ErrCodeUnknown, GetCode(errors.New("plain error")))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := New(ErrCodeDailyLossExceeded, "daily loss limit breached")
	suite.True(HasCode(err, ErrCodeDailyLossExceeded))
	suite.False(HasCode(err, ErrCodeMaxPositionsReached))
}

func (suite *ErrorTestSuite) TestInsufficientDataError() {
	err := NewInsufficientDataErrorf(200, 120, "ETHUSDT", "need %d bars, have %d", 200, 120)
	suite.Equal("need 200 bars, have 120", err.Error())
	suite.Equal(200, err.Required)
	suite.Equal(120, err.Actual)
	suite.True(IsInsufficientDataError(err))

	wrapped := fmt.Errorf("signal generation failed: %w", err)
	suite.True(IsInsufficientDataError(wrapped))
	suite.False(IsInsufficientDataError(errors.New("other")))
}
