package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aurumhq/aurum-api/internal/domain"
	"github.com/aurumhq/aurum-api/internal/rbac"
	"github.com/aurumhq/aurum-api/internal/service"
	"github.com/aurumhq/aurum-api/internal/service/auth"
	"github.com/aurumhq/aurum-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrExpiredRefreshToken),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, rbac.ErrPermissionDenied),
		errors.Is(err, rbac.ErrRoleNotInContext):
		return http.StatusForbidden

	// Not found errors, all wrapping the same sentinel
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors: uniqueness violations and state transitions the
	// current record does not allow
	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInvalidStatusTransition),
		errors.Is(err, domain.ErrInvoiceNotEditable):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrEntriesNotBalanced),
		errors.Is(err, domain.ErrNonPositiveAmount),
		errors.Is(err, domain.ErrPasswordTooShort),
		errors.Is(err, domain.ErrInvalidBackupScope),
		errors.Is(err, rbac.ErrUnknownRole),
		errors.Is(err, service.ErrInvalidWindow),
		errors.Is(err, service.ErrNoInvoiceItems),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid):
		return "Invalid token"

	case errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrExpiredRefreshToken),
		errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid refresh token"

	case errors.Is(err, service.ErrInvalidCredentials):
		return "Invalid credentials"

	// Authorization errors
	case errors.Is(err, rbac.ErrPermissionDenied):
		return "Permission denied"

	case errors.Is(err, rbac.ErrRoleNotInContext),
		errors.Is(err, domain.ErrUnauthorized):
		return "Authentication required"

	// Not found errors
	case errors.Is(err, store.ErrProductNotFound):
		return "Product not found"

	case errors.Is(err, store.ErrCustomerNotFound):
		return "Customer not found"

	case errors.Is(err, store.ErrInvoiceNotFound):
		return "Invoice not found"

	case errors.Is(err, store.ErrEntryNotFound):
		return "Ledger entry not found"

	case errors.Is(err, store.ErrBackupNotFound):
		return "Backup not found"

	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"

	case errors.Is(err, store.ErrNotFound):
		return "Not found"

	// Conflict errors
	case errors.Is(err, store.ErrEmailExists):
		return "Email already exists"

	case errors.Is(err, store.ErrSKUExists):
		return "SKU already exists"

	case errors.Is(err, store.ErrInvoiceNumberExists):
		return "Invoice number already exists"

	case errors.Is(err, store.ErrBackupBucketExists):
		return "A backup of this scope already exists for the current hour"

	case errors.Is(err, domain.ErrInsufficientStock):
		return "Insufficient stock"

	case errors.Is(err, domain.ErrInvoiceNotEditable):
		return "Only draft invoices can be edited"

	case errors.Is(err, domain.ErrInvalidStatusTransition):
		return "Invalid invoice status transition"

	// Bad request errors
	case errors.Is(err, domain.ErrEntriesNotBalanced):
		return "Debits and credits must balance"

	case errors.Is(err, domain.ErrNonPositiveAmount):
		return "Entry amounts must be greater than zero"

	case errors.Is(err, service.ErrNoInvoiceItems):
		return "Invoice requires at least one line item"

	case errors.Is(err, service.ErrInvalidWindow):
		return "Window end must be after window start"

	case errors.Is(err, domain.ErrInvalidBackupScope):
		return "Invalid backup scope"

	case errors.Is(err, domain.ErrPasswordTooShort):
		return "Password must be at least 12 characters long"

	case errors.Is(err, rbac.ErrUnknownRole):
		return "Unknown role"

	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidID):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return "Invalid " + ve.Field
		}
		return "Invalid request data"

	// Default case for unknown errors
	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError removes sensitive details from validator/v10
// errors and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	// Validator messages look like:
	// "Key: 'LoginRequest.Email' Error:Field validation for 'Email' failed on the 'required' tag"
	if strings.Contains(errMsg, "Field validation") {
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}
				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "email":
		return "invalid email format"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "gt", "gte":
		return "out of range"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
