package errors

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

// ErrorInfo is the public form of an unexpected error.
type ErrorInfo struct {
	Status  int
	Code    string
	Message string
}

// ParseError turns an error the service layer did not classify into a status,
// code and message that are safe to show. resource names what was requested,
// e.g. "cart".
func ParseError(err error, resource string) ErrorInfo {
	if err == nil {
		return ErrorInfo{
			Status:  http.StatusInternalServerError,
			Code:    InternalServerError,
			Message: "Something went wrong",
		}
	}

	errLower := strings.ToLower(err.Error())

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorInfo{
			Status:  http.StatusNotFound,
			Code:    ResourceNotFound,
			Message: notFoundMessage(resource),
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorInfo{
			Status:  http.StatusGatewayTimeout,
			Code:    InternalTimeout,
			Message: "The request took too long. Please try again",
		}
	}

	// unique violation (23505)
	if strings.Contains(errLower, "duplicate key") || strings.Contains(errLower, "unique constraint") {
		return ErrorInfo{
			Status:  http.StatusConflict,
			Code:    ResourceAlreadyExists,
			Message: "The " + resourceName(resource) + " was changed concurrently. Please retry",
		}
	}

	// foreign key violation (23503)
	if strings.Contains(errLower, "foreign key constraint") {
		return ErrorInfo{
			Status:  http.StatusConflict,
			Code:    ResourceConflict,
			Message: "The " + resourceName(resource) + " references a record that no longer exists",
		}
	}

	if strings.Contains(errLower, "connection refused") ||
		strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "bad connection") ||
		strings.Contains(errLower, "timeout") {
		return ErrorInfo{
			Status:  http.StatusServiceUnavailable,
			Code:    InternalDatabaseError,
			Message: "The database is unavailable. Please try again later",
		}
	}

	return ErrorInfo{
		Status:  http.StatusInternalServerError,
		Code:    InternalServerError,
		Message: "Failed to process the " + resourceName(resource) + " request",
	}
}

func resourceName(resource string) string {
	if resource == "" {
		return "resource"
	}
	return resource
}

func notFoundMessage(resource string) string {
	switch resource {
	case "cart":
		return "Cart not found"
	case "product":
		return "Product not found"
	case "order":
		return "Order not found"
	}
	return "The requested " + resourceName(resource) + " was not found"
}
