// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes following domain-driven design
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"
	CodeTimeout  = "TIMEOUT_ERROR"

	// Validation errors (400)
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidInput = "INVALID_INPUT"

	// Business rule violations (422)
	CodeBusinessRule            = "BUSINESS_RULE_VIOLATION"
	CodeNegativeStock           = "NEGATIVE_STOCK"
	CodeNegativeReservation     = "NEGATIVE_RESERVATION"
	CodeNegativeIncoming        = "NEGATIVE_INCOMING"
	CodeInsufficientAvailable   = "INSUFFICIENT_AVAILABLE"
	CodeInsufficientBatchStock  = "INSUFFICIENT_BATCH_STOCK"
	CodeDocumentAlreadyClosed   = "DOCUMENT_ALREADY_CLOSED"
	CodeDocumentClosed          = "DOCUMENT_CLOSED"
	CodeUnsupportedDocumentType = "UNSUPPORTED_DOCUMENT_TYPE"
	CodeConcurrentModification  = "CONCURRENT_MODIFICATION"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict  = "CONFLICT"
	CodeDuplicate = "DUPLICATE_ENTRY"
)

// AppError is the standard error type for the platform.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, quantities, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewNegativeStock is returned when a stock movement would drive the on-hand
// quantity of a product below zero.
func NewNegativeStock(productID, warehouseID string, requested, onHand string) *AppError {
	return &AppError{
		Code:       CodeNegativeStock,
		Message:    "Operation would result in negative stock",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"product_id":   productID,
			"warehouse_id": warehouseID,
			"requested":    requested,
			"on_hand":      onHand,
		},
	}
}

// NewNegativeReservation is returned when releasing more reserved quantity
// than is currently reserved.
func NewNegativeReservation(productID, warehouseID string, requested, reserved string) *AppError {
	return &AppError{
		Code:       CodeNegativeReservation,
		Message:    "Operation would result in negative reservation",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"product_id":   productID,
			"warehouse_id": warehouseID,
			"requested":    requested,
			"reserved":     reserved,
		},
	}
}

// NewNegativeIncoming is returned when releasing more incoming quantity than
// is currently expected.
func NewNegativeIncoming(productID, warehouseID string, requested, incoming string) *AppError {
	return &AppError{
		Code:       CodeNegativeIncoming,
		Message:    "Operation would result in negative incoming quantity",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"product_id":   productID,
			"warehouse_id": warehouseID,
			"requested":    requested,
			"incoming":     incoming,
		},
	}
}

// NewInsufficientAvailable is returned when a reservation exceeds the
// available quantity (on hand minus already reserved).
func NewInsufficientAvailable(productID, warehouseID string, requested, available string) *AppError {
	return &AppError{
		Code:       CodeInsufficientAvailable,
		Message:    "Insufficient available stock",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"product_id":   productID,
			"warehouse_id": warehouseID,
			"requested":    requested,
			"available":    available,
		},
	}
}

// NewInsufficientBatchStock is returned when FIFO consumption cannot be
// covered by remaining batch quantities.
func NewInsufficientBatchStock(productID string, requested, available string) *AppError {
	return &AppError{
		Code:       CodeInsufficientBatchStock,
		Message:    "Insufficient batch stock for FIFO issue",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"product_id": productID,
			"requested":  requested,
			"available":  available,
		},
	}
}

// NewAlreadyClosed is returned when closing a document a second time.
func NewAlreadyClosed(docType, number string) *AppError {
	return &AppError{
		Code:       CodeDocumentAlreadyClosed,
		Message:    fmt.Sprintf("Document %s is already closed", number),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"type": docType, "number": number},
	}
}

// NewDocumentClosed is returned when mutating a closed document.
func NewDocumentClosed(docType, number string) *AppError {
	return &AppError{
		Code:       CodeDocumentClosed,
		Message:    fmt.Sprintf("Document %s is closed and cannot be modified", number),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"type": docType, "number": number},
	}
}

// NewUnsupportedDocumentType is returned for document type codes outside the
// closed set the workflow engine knows about.
func NewUnsupportedDocumentType(docType string) *AppError {
	return &AppError{
		Code:       CodeUnsupportedDocumentType,
		Message:    fmt.Sprintf("Unsupported document type: %s", docType),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"type": docType},
	}
}

// NewConcurrentModification creates an optimistic locking error
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified by another user. Please refresh and try again.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewDuplicate creates a duplicate entry error (409)
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:       CodeDuplicate,
		Message:    fmt.Sprintf("%s with this %s already exists", entity, field),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeNotFound
	}
	return false
}

// IsCode checks if error carries the given code
func IsCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsConcurrentModification checks if error is CodeConcurrentModification
func IsConcurrentModification(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeConcurrentModification
	}
	return false
}
