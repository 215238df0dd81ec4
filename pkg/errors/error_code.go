package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeOutOfRange           ErrorCode = 102
	ErrCodeNonFiniteValue       ErrorCode = 103
	ErrCodeInvalidQuantity      ErrorCode = 104
	ErrCodeInvalidPrice         ErrorCode = 105
	ErrCodeInvalidMetrics       ErrorCode = 106
	ErrCodeInvalidDecision      ErrorCode = 107
	ErrCodeInvalidFill          ErrorCode = 108
	ErrCodeInvalidHoldPeriod    ErrorCode = 109
	ErrCodeInvalidPatternKey    ErrorCode = 110
	ErrCodeMissingParameter     ErrorCode = 111

	// Lifecycle errors (200-299)
	ErrCodeInvalidTransition     ErrorCode = 200
	ErrCodePositionAlreadyClosed ErrorCode = 201
	ErrCodePositionNotFound      ErrorCode = 202

	// Concurrency errors (300-399)
	ErrCodeConcurrencyConflict ErrorCode = 300
	ErrCodeRetryExhausted      ErrorCode = 301

	// Capacity errors (400-499)
	ErrCodeNoSlotsAvailable ErrorCode = 400

	// Data integrity errors (500-599)
	ErrCodeDataInconsistency  ErrorCode = 500
	ErrCodeCounterMismatch    ErrorCode = 501
	ErrCodeWinRateOutOfBounds ErrorCode = 502
	ErrCodePatternRetired     ErrorCode = 503

	// Store errors (600-699)
	ErrCodeStoreInitFailed ErrorCode = 600
	ErrCodeQueryFailed     ErrorCode = 601
	ErrCodeWriteFailed     ErrorCode = 602
	ErrCodeRecordNotFound  ErrorCode = 603
	ErrCodeExportFailed    ErrorCode = 604
)
