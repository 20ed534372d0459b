package errors

// ErrorCode identifies one failure class across the service.
type ErrorCode int

// Code ranges:
// 10000-10999: system & common
// 12000-12999: problem module
// 13000-13999: submission & judge module
const (
	Success ErrorCode = 10000

	// Generic (10001-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database (10100-10199)
	DatabaseError  ErrorCode = 10100
	RecordNotFound ErrorCode = 10101

	// Cache (10200-10299)
	CacheError ErrorCode = 10200
	LockFailed ErrorCode = 10203

	// Validation (10300-10399)
	ValidationFailed ErrorCode = 10300

	// Problem (12000-12099)
	ProblemNotFound ErrorCode = 12000

	// Test cases (12100-12199)
	TestCaseInvalid ErrorCode = 12102

	// Submission (13000-13099)
	SubmissionNotFound     ErrorCode = 13000
	SubmissionCreateFailed ErrorCode = 13001
	CodeTooLarge           ErrorCode = 13002
	LanguageNotSupported   ErrorCode = 13003

	// Judge (13100-13199)
	JudgeQueueFull      ErrorCode = 13100
	JudgeSystemError    ErrorCode = 13101
	RuntimeError        ErrorCode = 13103
	TimeLimitExceeded   ErrorCode = 13104
	MemoryLimitExceeded ErrorCode = 13105
	SandboxImageMissing ErrorCode = 13110
)

var codeMessages = map[ErrorCode]string{
	Success:             "success",
	InternalServerError: "internal server error",
	InvalidParams:       "invalid parameters",
	NotFound:            "resource not found",
	Unauthorized:        "unauthorized",
	TooManyRequests:     "too many requests",
	ServiceUnavailable:  "service unavailable",
	Timeout:             "operation timed out",

	DatabaseError:  "database error",
	RecordNotFound: "record not found",

	CacheError: "cache error",
	LockFailed: "failed to acquire lock",

	ValidationFailed: "validation failed",

	ProblemNotFound: "problem not found",
	TestCaseInvalid: "test case is invalid",

	SubmissionNotFound:     "submission not found",
	SubmissionCreateFailed: "failed to create submission",
	CodeTooLarge:           "source code too large",
	LanguageNotSupported:   "language is not supported",

	JudgeQueueFull:      "judge queue is full",
	JudgeSystemError:    "judge system error",
	RuntimeError:        "runtime error",
	TimeLimitExceeded:   "time limit exceeded",
	MemoryLimitExceeded: "memory limit exceeded",
	SandboxImageMissing: "sandbox image is missing",
}

// Message returns the default human-readable message for the code.
func (c ErrorCode) Message() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return "unknown error"
}

// HTTPStatus maps the code to an HTTP response status.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case Success:
		return 200
	case InvalidParams, ValidationFailed, CodeTooLarge, LanguageNotSupported, TestCaseInvalid:
		return 400
	case Unauthorized:
		return 401
	case NotFound, RecordNotFound, ProblemNotFound, SubmissionNotFound:
		return 404
	case TooManyRequests, JudgeQueueFull:
		return 429
	case ServiceUnavailable:
		return 503
	default:
		return 500
	}
}
