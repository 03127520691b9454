// Package errors 提供统一的错误定义
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误 (1xxx)
	CodeSuccess            ErrorCode = "0"
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeNotFound           ErrorCode = "1004"
	CodeConflict           ErrorCode = "1005"
	CodeTooManyRequests    ErrorCode = "1006"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"

	// 资源错误 (3xxx)
	CodeEventNotFound   ErrorCode = "3001"
	CodeSessionNotFound ErrorCode = "3002"

	// 业务错误 (4xxx)
	CodeEmptyInput          ErrorCode = "4001"
	CodeMalformedExtraction ErrorCode = "4002"
	CodeUpstreamUnavailable ErrorCode = "4003"
	CodeDimensionMismatch   ErrorCode = "4004"
	CodeSessionConflict     ErrorCode = "4005"
	CodeInvalidEventDraft   ErrorCode = "4006"

	// 外部服务错误 (5xxx)
	CodeDatabaseError ErrorCode = "5001"
	CodeCacheError    ErrorCode = "5002"
	CodeVectorDBError ErrorCode = "5003"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail 添加详细信息
func (e *AppError) WithDetail(detail string) *AppError {
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithError 添加底层错误
func (e *AppError) WithError(err error) *AppError {
	clone := *e
	clone.Err = err
	return &clone
}

// Retryable 判断该错误是否值得调用方重试
func (e *AppError) Retryable() bool {
	switch e.Code {
	case CodeUpstreamUnavailable, CodeMalformedExtraction, CodeSessionConflict, CodeTooManyRequests:
		return true
	}
	return false
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam, CodeEmptyInput, CodeInvalidEventDraft:
		return http.StatusBadRequest
	case CodeNotFound, CodeEventNotFound, CodeSessionNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeSessionConflict:
		return http.StatusConflict
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeMalformedExtraction:
		return http.StatusUnprocessableEntity
	case CodeUpstreamUnavailable, CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// 预定义错误
var (
	ErrInvalidParam       = New(CodeInvalidParam, "invalid parameter")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrConflict           = New(CodeConflict, "resource conflict")
	ErrTooManyRequests    = New(CodeTooManyRequests, "too many requests")
	ErrInternalError      = New(CodeInternalError, "internal server error")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")

	ErrEventNotFound   = New(CodeEventNotFound, "event not found")
	ErrSessionNotFound = New(CodeSessionNotFound, "session not found")

	ErrEmptyInput          = New(CodeEmptyInput, "input text is empty")
	ErrMalformedExtraction = New(CodeMalformedExtraction, "extraction output failed schema validation")
	ErrUpstreamUnavailable = New(CodeUpstreamUnavailable, "upstream capability unavailable")
	ErrDimensionMismatch   = New(CodeDimensionMismatch, "embedding dimension mismatch")
	ErrSessionConflict     = New(CodeSessionConflict, "session busy, concurrent turn rejected")
	ErrInvalidEventDraft   = New(CodeInvalidEventDraft, "extracted event draft is invalid")

	ErrDatabase = New(CodeDatabaseError, "database error")
	ErrCache    = New(CodeCacheError, "cache error")
	ErrVectorDB = New(CodeVectorDBError, "vector database error")
)

// IsAppError 检查是否为 AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

// IsCode 检查错误链中是否存在指定错误码
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
