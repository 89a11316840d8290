/*
dto.go - Request and response structures for the POS API

PURPOSE:
  Defines the JSON contract. Every response travels in the same envelope:

    {
      "success":   true|false,
      "code":      "" or the six-digit business error code,
      "message":   human-readable summary,
      "data":      operation result (omitted on error),
      "operation": the operation name, e.g. "addItem"
    }

  Error responses additionally carry userError, a client-displayable
  subset of the business error.

WIRE CONVENTIONS:
  - Monetary payment amounts travel as integer minor units
    (11000 means 110.00)
  - Item unit prices and quantities travel as decimal numbers
  - All field names are camelCase

SEE ALSO:
  - handlers.go: Producers of these types
  - pos/errors.go: The code taxonomy behind userError
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/pos-core/pos"
)

// =============================================================================
// ENVELOPE
// =============================================================================

// Envelope wraps every API response.
type Envelope struct {
	Success   bool       `json:"success"`
	Code      string     `json:"code,omitempty"`
	Message   string     `json:"message,omitempty"`
	Data      any        `json:"data,omitempty"`
	Operation string     `json:"operation"`
	UserError *UserError `json:"userError,omitempty"`
}

// UserError is the client-displayable slice of a business error.
type UserError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// =============================================================================
// CART REQUESTS
// =============================================================================

type CreateCartRequest struct {
	TransactionType int    `json:"transactionType"`
	UserID          string `json:"userId"`
}

type AddItemRequest struct {
	ItemCode  string           `json:"itemCode"`
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unitPrice,omitempty"`
}

type UpdateQuantityRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
}

type UpdateUnitPriceRequest struct {
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type DiscountRequest struct {
	Type   string          `json:"type"` // "amount" | "percent"
	Value  decimal.Decimal `json:"value"`
	Detail string          `json:"detail,omitempty"`
}

func (r DiscountRequest) toDomain() pos.Discount {
	return pos.Discount{
		Type:   pos.DiscountType(r.Type),
		Value:  r.Value,
		Detail: r.Detail,
	}
}

// PaymentDTO carries one tender; amounts are integer minor units.
type PaymentDTO struct {
	PaymentCode   string `json:"paymentCode"`
	Amount        int64  `json:"amount"`
	DepositAmount int64  `json:"depositAmount,omitempty"`
	Detail        string `json:"detail,omitempty"`
}

func (p PaymentDTO) toDomain() pos.PaymentRequest {
	return pos.PaymentRequest{
		PaymentCode:   p.PaymentCode,
		Amount:        pos.FromMinorUnits(p.Amount),
		DepositAmount: pos.FromMinorUnits(p.DepositAmount),
		Detail:        p.Detail,
	}
}

// =============================================================================
// REVERSAL REQUESTS
// =============================================================================

type VoidRequest struct {
	TransactionNo int64 `json:"transactionNo"`
}

type ReturnLineDTO struct {
	LineNo   int             `json:"lineNo"`
	Quantity decimal.Decimal `json:"quantity"`
}

type ReturnRequest struct {
	OriginStoreCode string          `json:"originStoreCode,omitempty"`
	TransactionNo   int64           `json:"transactionNo"`
	Lines           []ReturnLineDTO `json:"lines,omitempty"`
	Payments        []PaymentDTO    `json:"payments,omitempty"`
}

// =============================================================================
// DELIVERY AND ADMIN
// =============================================================================

// AckRequest is a subscriber's verdict on one event: delivered or failed,
// with an optional message kept on failures. An empty status means
// delivered.
type AckRequest struct {
	ServiceName string `json:"serviceName"`
	Status      string `json:"status,omitempty"` // "delivered" | "failed"
	Message     string `json:"message,omitempty"`
}

type RegisterTerminalRequest struct {
	TerminalNo   int    `json:"terminalNo"`
	BusinessDate string `json:"businessDate"` // YYYYMMDD
}

type RegisterTerminalResponse struct {
	TenantID     string `json:"tenantId"`
	StoreCode    string `json:"storeCode"`
	TerminalNo   int    `json:"terminalNo"`
	APIKey       string `json:"apiKey"`
	Status       string `json:"status"`
	BusinessDate string `json:"businessDate"`
}

type SignInRequest struct {
	StaffID string `json:"staffId"`
}

// =============================================================================
// HEALTH
// =============================================================================

type HealthResponse struct {
	Status   string            `json:"status"`
	Breakers map[string]string `json:"breakers"`
}
