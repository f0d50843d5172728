package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 20000-20999: Solver errors
// 21000-21999: Resolution & judgment errors
// 22000-22999: Roster & report errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	ServiceUnavailable  ErrorCode = 10007

	// Cache & storage errors (10200-10299)
	CacheError ErrorCode = 10200

	// Validation errors (10300-10399)
	ValidationFailed ErrorCode = 10300

	// ========== Solver Errors (20000-20999) ==========

	SolverUnavailable   ErrorCode = 20000
	SolverBadResponse   ErrorCode = 20001
	SolverTimeout       ErrorCode = 20002
	BaselineUnavailable ErrorCode = 20100

	// ========== Resolution Errors (21000-21999) ==========

	ResolverClosed      ErrorCode = 21000
	JudgmentAborted     ErrorCode = 21001
	DecisionStoreFailed ErrorCode = 21100

	// ========== Roster & Report Errors (22000-22999) ==========

	SubmissionReadFailed ErrorCode = 22000
	RenameConflict       ErrorCode = 22001
	ReportWriteFailed    ErrorCode = 22100
	ReportUploadFailed   ErrorCode = 22101
	EventPublishFailed   ErrorCode = 22200
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal error",
	InvalidParams:       "Invalid parameters",
	ServiceUnavailable:  "Service temporarily unavailable",

	CacheError: "Cache operation failed",

	ValidationFailed: "Validation failed",

	// Solver
	SolverUnavailable:   "Solver service unavailable",
	SolverBadResponse:   "Solver returned a malformed response",
	SolverTimeout:       "Solver did not finish in time",
	BaselineUnavailable: "Could not retrieve baseline solution",

	// Resolution
	ResolverClosed:      "Resolution cache is closed",
	JudgmentAborted:     "Interactive judgment aborted",
	DecisionStoreFailed: "Decision store operation failed",

	// Roster & report
	SubmissionReadFailed: "Failed to read submission",
	RenameConflict:       "Rename target already exists",
	ReportWriteFailed:    "Failed to write report",
	ReportUploadFailed:   "Failed to upload report",
	EventPublishFailed:   "Failed to publish verdict event",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// Transient reports whether the code describes a network-side failure of the solver.
func (c ErrorCode) Transient() bool {
	switch c {
	case SolverUnavailable, SolverBadResponse, SolverTimeout, ServiceUnavailable:
		return true
	default:
		return false
	}
}
