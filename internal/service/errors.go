package service

import "errors"

// Common service errors - sentinel errors used across service implementations.
// These errors represent conditions that callers may want to check for with
// errors.Is().
//
// Error handling principles:
// 1. Service methods return sentinel errors for expected error conditions
// 2. Unexpected errors are wrapped with operation context
// 3. Callers use errors.Is/errors.As to check for specific error conditions
// 4. The API layer maps service errors to appropriate HTTP status codes
var (
	// ErrInvalidCredentials indicates that login failed because the email is
	// unknown or the password does not match. The two cases are deliberately
	// indistinguishable to the caller.
	// API layer should map this to HTTP 401 Unauthorized.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidWindow indicates that an analytics window is empty or
	// inverted (end not after start).
	// API layer should map this to HTTP 400 Bad Request.
	ErrInvalidWindow = errors.New("window end must be after window start")

	// ErrNoInvoiceItems indicates that an invoice was submitted without any
	// line items. Drafts must carry at least one item before creation.
	// API layer should map this to HTTP 400 Bad Request.
	ErrNoInvoiceItems = errors.New("invoice requires at least one line item")
)
