package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-199)
	ErrCodeInvalidConfiguration ErrorCode = 100
	ErrCodeMissingCredentials   ErrorCode = 101
	ErrCodeInvalidParameter     ErrorCode = 102
	ErrCodeExchangeNotReady     ErrorCode = 103
	ErrCodeUnknownTimeframe     ErrorCode = 104

	// Data errors (200-299)
	ErrCodeInsufficientData ErrorCode = 200
	ErrCodeDataFetchFailed  ErrorCode = 201
	ErrCodeNoDataFound      ErrorCode = 202
	ErrCodeSubscribeFailed  ErrorCode = 203

	// Calculation errors (300-399)
	ErrCodeCalculationFailed    ErrorCode = 300
	ErrCodeIndicatorCalculation ErrorCode = 301

	// Strategy errors (400-499)
	ErrCodeUnknownStrategy     ErrorCode = 400
	ErrCodeStrategyConfigError ErrorCode = 401

	// Order execution errors (500-599)
	ErrCodeOrderFailed       ErrorCode = 500
	ErrCodeOrderCancelFailed ErrorCode = 501
	ErrCodePositionNotFound  ErrorCode = 502
	ErrCodePositionExists    ErrorCode = 503

	// Risk errors (600-699)
	ErrCodeRiskLimitExceeded   ErrorCode = 600
	ErrCodeDailyLossExceeded   ErrorCode = 601
	ErrCodeMaxPositionsReached ErrorCode = 602
	ErrCodeShortingDisabled    ErrorCode = 603

	// Backtest/optimizer errors (700-799)
	ErrCodeBacktestConfigError  ErrorCode = 700
	ErrCodeEmptyParameterSpace  ErrorCode = 701
	ErrCodeWindowTooLarge       ErrorCode = 702
	ErrCodeEngineAlreadyRunning ErrorCode = 703
	ErrCodeEngineNotRunning     ErrorCode = 704
)
