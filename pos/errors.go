/*
errors.go - Centralized error taxonomy for the POS core

PURPOSE:
  All business error kinds in one place. Every error carries a stable
  six-digit code (XXYYZZ: category, module, specific) that clients use
  for localized messaging, plus the HTTP status it surfaces as.

ERROR CATEGORIES (XX):
  10  validation / business rule   -> 400
  20  authentication / authority   -> 401/403
  30  state / concurrency conflict -> 409
  40  not found                    -> 404
  50  system                       -> 500/502/503

MODULES (YY):
  01 cart, 02 item, 03 discount, 04 payment, 05 transaction,
  06 counter, 07 store, 08 event, 09 terminal, 00 unclassified

USAGE:
  Wrap with context, classify with errors.Is:

    if err := guard(...); err != nil {
        return fmt.Errorf("add item: %w", err)
    }
    ...
    if errors.Is(err, pos.ErrInvalidCartState) { ... }

SEE ALSO:
  - api/handlers.go: Maps these to HTTP responses
  - statemachine.go, tax.go, payment.go: Producers
*/
package pos

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a business error with a stable client-facing code.
type Error struct {
	Code    string // six-digit XXYYZZ
	Status  int    // HTTP status this surfaces as
	Message string
	Detail  string // optional per-occurrence context
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (%s): %s", e.Message, e.Code, e.Detail)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Is matches any *Error with the same code, so detailed copies created by
// WithDetail still satisfy errors.Is against the base value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithDetail returns a copy carrying per-occurrence context.
func (e *Error) WithDetail(format string, args ...any) *Error {
	c := *e
	c.Detail = fmt.Sprintf(format, args...)
	return &c
}

// =============================================================================
// ERROR KINDS
// =============================================================================

var (
	// Validation / business rule (400)
	ErrInvalidRequest      = &Error{Code: "100101", Status: http.StatusBadRequest, Message: "invalid request"}
	ErrItemNotFound        = &Error{Code: "100201", Status: http.StatusBadRequest, Message: "item not found"}
	ErrInvalidQuantity     = &Error{Code: "100202", Status: http.StatusBadRequest, Message: "quantity must be positive"}
	ErrLineNotFound        = &Error{Code: "100203", Status: http.StatusBadRequest, Message: "line item not found"}
	ErrLineCancelled       = &Error{Code: "100204", Status: http.StatusBadRequest, Message: "line item is cancelled"}
	ErrDiscountExceedsLine = &Error{Code: "100301", Status: http.StatusBadRequest, Message: "discount exceeds line amount"}
	ErrDiscountExceedsBalance = &Error{Code: "100302", Status: http.StatusBadRequest, Message: "discount exceeds balance"}
	ErrDiscountRestricted  = &Error{Code: "100303", Status: http.StatusBadRequest, Message: "item does not accept discounts"}
	ErrOverPayment         = &Error{Code: "100401", Status: http.StatusBadRequest, Message: "payment exceeds balance"}
	ErrInsufficientPayment = &Error{Code: "100402", Status: http.StatusBadRequest, Message: "balance is not settled"}
	ErrInsufficientDeposit = &Error{Code: "100403", Status: http.StatusBadRequest, Message: "deposit is less than payment amount"}
	ErrPaymentCodeUnknown  = &Error{Code: "100404", Status: http.StatusBadRequest, Message: "unknown payment code"}
	ErrReturnQuantity      = &Error{Code: "100501", Status: http.StatusBadRequest, Message: "return quantity exceeds remaining quantity"}

	// Authentication / authority (401/403)
	ErrUnauthorized      = &Error{Code: "200901", Status: http.StatusUnauthorized, Message: "invalid API key"}
	ErrTerminalNotOpened = &Error{Code: "200902", Status: http.StatusForbidden, Message: "terminal is not opened"}
	ErrStaffNotSignedIn  = &Error{Code: "200903", Status: http.StatusForbidden, Message: "no staff signed in on terminal"}
	ErrVoidTerminalMismatch = &Error{Code: "200501", Status: http.StatusForbidden, Message: "void must originate from the original terminal"}
	ErrReturnStoreMismatch  = &Error{Code: "200502", Status: http.StatusForbidden, Message: "return must originate from the original store"}

	// State / concurrency conflict (409)
	ErrInvalidCartState          = &Error{Code: "300101", Status: http.StatusConflict, Message: "operation not allowed in current cart state"}
	ErrConcurrencyRetryExhausted = &Error{Code: "300701", Status: http.StatusConflict, Message: "concurrent update conflict, retry"}
	ErrTransactionAlreadyVoided  = &Error{Code: "300501", Status: http.StatusConflict, Message: "transaction already voided"}
	ErrAlreadyRefunded           = &Error{Code: "300502", Status: http.StatusConflict, Message: "transaction already fully refunded"}

	// Not found (404)
	ErrCartNotFound        = &Error{Code: "400101", Status: http.StatusNotFound, Message: "cart not found"}
	ErrTransactionNotFound = &Error{Code: "400501", Status: http.StatusNotFound, Message: "transaction not found"}

	// System (5xx)
	ErrStoreUnavailable        = &Error{Code: "500701", Status: http.StatusServiceUnavailable, Message: "store unavailable"}
	ErrExternalServiceError    = &Error{Code: "500901", Status: http.StatusBadGateway, Message: "external collaborator error"}
	ErrCounterAllocationFailed = &Error{Code: "500601", Status: http.StatusInternalServerError, Message: "counter allocation failed"}
	ErrUnexpected              = &Error{Code: "500001", Status: http.StatusInternalServerError, Message: "unexpected error"}
)

// =============================================================================
// CLASSIFICATION HELPERS
// =============================================================================

// IsRetryable reports whether the client (or an internal retry loop) may
// usefully retry the operation. Business errors never retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyRetryExhausted) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrExternalServiceError) ||
		errors.Is(err, ErrCounterAllocationFailed)
}

// IsClientError reports whether the error is due to invalid client input
// or a business-rule violation the client must correct.
func IsClientError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Status >= 400 && e.Status < 500
	}
	return false
}

// AsError extracts the *Error from a wrapped chain, falling back to
// ErrUnexpected so every failure surfaces with a stable code.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrUnexpected.WithDetail("%v", err)
}
