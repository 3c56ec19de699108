package utils

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestDBErrorClassification(t *testing.T) {
	notFound := DBError(gorm.ErrRecordNotFound, CodeSessionNotFound, "session not found")
	assert.Equal(t, CodeSessionNotFound, notFound.Code)
	assert.ErrorIs(t, notFound, gorm.ErrRecordNotFound)

	conn := DBError(fmt.Errorf("query: %w", driver.ErrBadConn), CodeSessionNotFound, "lookup failed")
	assert.Equal(t, CodeConnection, conn.Code)

	generic := DBError(errors.New("syntax error"), CodeSessionNotFound, "lookup failed")
	assert.Equal(t, CodeDatabase, generic.Code)
	assert.Equal(t, "lookup failed", generic.Message)

	typed := NewAppError(CodeOrdersUnpaid, "orders still unpaid")
	assert.Same(t, typed, DBError(typed, CodeSessionNotFound, "ignored"))

	assert.Nil(t, DBError(nil, CodeSessionNotFound, "nothing"))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: table_sessions.active_table_id")))
	assert.True(t, IsUniqueViolation(errors.New("Error 1062: Duplicate entry '3' for key 'idx'")))
	assert.False(t, IsUniqueViolation(errors.New("no such table")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(CodeSessionNotFound))
	assert.Equal(t, http.StatusGone, HTTPStatus(CodeSessionExpired))
	assert.Equal(t, http.StatusConflict, HTTPStatus(CodeSessionConflict))
	assert.Equal(t, http.StatusPaymentRequired, HTTPStatus(CodeOrdersUnpaid))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(CodeConnection))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus("SOMETHING_ELSE"))
}

func TestAppErrorDetails(t *testing.T) {
	err := NewAppError(CodeOrdersUnpaid, "orders still unpaid").WithDetail("outstanding_amount", 50.0)
	assert.Equal(t, 50.0, err.Details["outstanding_amount"])
	assert.True(t, IsCode(fmt.Errorf("close: %w", err), CodeOrdersUnpaid))
	assert.Equal(t, "", ErrorCode(errors.New("plain")))
}
