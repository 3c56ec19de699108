package utils

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

// Error codes shared by the session, ledger and payment services.
const (
	CodeConnection        = "CONNECTION_ERROR"
	CodeDatabase          = "DATABASE_ERROR"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeTableNotFound     = "TABLE_NOT_FOUND"
	CodeTableInactive     = "TABLE_INACTIVE"
	CodeSessionNotFound   = "SESSION_NOT_FOUND"
	CodeSessionInactive   = "SESSION_INACTIVE"
	CodeSessionExpired    = "SESSION_EXPIRED"
	CodeInvalidToken      = "INVALID_TOKEN"
	CodeSessionConflict   = "SESSION_CONFLICT"
	CodeOrderNotFound     = "ORDER_NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodePaymentConflict   = "PAYMENT_CONFLICT"
	CodePaymentFailed     = "PAYMENT_FAILED"
	CodeOrdersUnpaid      = "ORDERS_UNPAID"
	CodeReceiptNotFound   = "RECEIPT_NOT_FOUND"
	CodePaymentNotFound   = "PAYMENT_NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
)

// AppError is the typed failure returned by services. Details carries data the
// caller needs to render the failure (outstanding amount, conflicting session).
type AppError struct {
	Code    string
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail returns e with key set in Details.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func NewAppError(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func WrapAppError(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// ErrorCode extracts the AppError code of err, or "" when err is not typed.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsCode reports whether err carries the given AppError code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// DBError classifies a gorm error. Record-not-found maps to notFoundCode,
// dial/bad-connection failures to CONNECTION_ERROR, anything else to DATABASE_ERROR.
func DBError(err error, notFoundCode, message string) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if notFoundCode != "" && errors.Is(err, gorm.ErrRecordNotFound) {
		return WrapAppError(notFoundCode, message, err)
	}
	if isConnectionError(err) {
		return WrapAppError(CodeConnection, "database unreachable", err)
	}
	return WrapAppError(CodeDatabase, message, err)
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "sql: database is closed")
}

// IsUniqueViolation reports a unique-constraint failure across the supported drivers.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}

// HTTPStatus maps an AppError code to the HTTP status controllers answer with.
func HTTPStatus(code string) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeInvalidToken, CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeTableNotFound, CodeSessionNotFound, CodeOrderNotFound, CodeReceiptNotFound, CodePaymentNotFound:
		return http.StatusNotFound
	case CodeSessionExpired:
		return http.StatusGone
	case CodeTableInactive, CodeSessionInactive, CodeSessionConflict,
		CodeInvalidTransition, CodePaymentConflict:
		return http.StatusConflict
	case CodeOrdersUnpaid:
		return http.StatusPaymentRequired
	case CodePaymentFailed:
		return http.StatusBadGateway
	case CodeConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
