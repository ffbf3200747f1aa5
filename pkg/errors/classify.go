// 错误分类与处理
package errors

import (
	"context"
	"errors"
)

// ErrorLevel 错误级别
type ErrorLevel int

const (
	// L1Recoverable 可恢复错误 - 自动重试
	L1Recoverable ErrorLevel = iota + 1
	// L2Intervention 需要人工干预
	L2Intervention
	// L3Fatal 致命错误 - 立即终止分析
	L3Fatal
)

func (l ErrorLevel) String() string {
	switch l {
	case L1Recoverable:
		return "L1_RECOVERABLE"
	case L2Intervention:
		return "L2_INTERVENTION"
	case L3Fatal:
		return "L3_FATAL"
	default:
		return "UNKNOWN"
	}
}

// 预定义错误类型
var (
	// ErrInvalidParameter 估值参数非法（如折现率不大于永续增长率）
	ErrInvalidParameter = errors.New("invalid valuation parameter")
	// ErrUnorderedSeries 报表序列未按报告期倒序排列
	ErrUnorderedSeries  = errors.New("statement series is not ordered most-recent-first")
	ErrDataSource       = errors.New("data source failure")
	ErrEmptyData        = errors.New("data source returned no data")
	ErrRateLimited      = errors.New("rate limited")
	ErrAuthFailed       = errors.New("authentication failed")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrValidationFailed = errors.New("validation failed")
	ErrCacheUnavailable = errors.New("cache unavailable")
)

// ClassifiedError 分类后的错误
type ClassifiedError struct {
	Level      ErrorLevel
	Code       string
	Message    string
	Cause      error
	Retryable  bool
	MaxRetries int
	Metadata   map[string]interface{}
}

func (e *ClassifiedError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// ClassifyError 对错误进行分类
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	// 检查是否已经是 ClassifiedError
	var classifiedErr *ClassifiedError
	if errors.As(err, &classifiedErr) {
		return classifiedErr
	}

	switch {
	case errors.Is(err, ErrInvalidParameter):
		return &ClassifiedError{
			Level:     L3Fatal,
			Code:      "PARAMETER_ERROR",
			Message:   "Invalid valuation parameters",
			Cause:     err,
			Retryable: false,
		}

	case errors.Is(err, ErrUnorderedSeries):
		return &ClassifiedError{
			Level:     L2Intervention,
			Code:      "UNORDERED_SERIES",
			Message:   "Statement series out of order",
			Cause:     err,
			Retryable: false,
		}

	case errors.Is(err, context.DeadlineExceeded):
		return &ClassifiedError{
			Level:      L1Recoverable,
			Code:       "TIMEOUT",
			Message:    "Operation timed out",
			Cause:      err,
			Retryable:  true,
			MaxRetries: 3,
		}

	case errors.Is(err, ErrRateLimited):
		return &ClassifiedError{
			Level:      L1Recoverable,
			Code:       "RATE_LIMITED",
			Message:    "Rate limit exceeded",
			Cause:      err,
			Retryable:  true,
			MaxRetries: 5,
			Metadata:   map[string]interface{}{"backoff": "exponential"},
		}

	case errors.Is(err, ErrCacheUnavailable):
		return &ClassifiedError{
			Level:      L1Recoverable,
			Code:       "CACHE_UNAVAILABLE",
			Message:    "Cache service unavailable",
			Cause:      err,
			Retryable:  true,
			MaxRetries: 3,
		}

	case errors.Is(err, ErrEmptyData):
		return &ClassifiedError{
			Level:     L2Intervention,
			Code:      "EMPTY_DATA",
			Message:   "No statements available",
			Cause:     err,
			Retryable: false,
		}

	case errors.Is(err, ErrValidationFailed):
		return &ClassifiedError{
			Level:     L2Intervention,
			Code:      "VALIDATION_FAILED",
			Message:   "Data validation failed",
			Cause:     err,
			Retryable: false,
		}

	case errors.Is(err, ErrDataSource):
		return &ClassifiedError{
			Level:      L1Recoverable,
			Code:       "DATA_SOURCE",
			Message:    "Data source request failed",
			Cause:      err,
			Retryable:  true,
			MaxRetries: 3,
		}

	case errors.Is(err, ErrConfigInvalid), errors.Is(err, ErrAuthFailed):
		return &ClassifiedError{
			Level:     L3Fatal,
			Code:      "FATAL_CONFIG",
			Message:   "Fatal configuration or authentication error",
			Cause:     err,
			Retryable: false,
		}

	default:
		return &ClassifiedError{
			Level:      L1Recoverable,
			Code:       "UNKNOWN",
			Message:    "Unknown error",
			Cause:      err,
			Retryable:  true,
			MaxRetries: 1,
		}
	}
}

// NewClassifiedError 创建分类错误
func NewClassifiedError(level ErrorLevel, code, message string, cause error) *ClassifiedError {
	return &ClassifiedError{
		Level:   level,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsFatal 判断错误是否应终止整个分析
func IsFatal(err error) bool {
	classified := ClassifyError(err)
	return classified != nil && classified.Level == L3Fatal
}
