/*
handlers.go - HTTP handlers for the POS transactional core

PURPOSE:
  Exposes the cart lifecycle, transaction queries, reversals, event
  delivery tracking and terminal administration over REST. Handlers
  parse and validate the wire form, delegate to the cart service and
  stores, and wrap every result in the response envelope.

ENDPOINTS:
  Carts (terminal session via terminal_id + X-API-Key):
    POST   /api/v1/carts                                 Create cart
    GET    /api/v1/carts                                 Find active cart
    GET    /api/v1/carts/{cartId}                        Get cart
    POST   /api/v1/carts/{cartId}/cancel                 Cancel cart
    POST   /api/v1/carts/{cartId}/lineItems              Add item
    POST   /api/v1/carts/{cartId}/lineItems/{lineNo}/cancel
    PATCH  /api/v1/carts/{cartId}/lineItems/{lineNo}/quantity
    PATCH  /api/v1/carts/{cartId}/lineItems/{lineNo}/unitPrice
    POST   /api/v1/carts/{cartId}/lineItems/{lineNo}/discounts
    POST   /api/v1/carts/{cartId}/discounts              Cart discount
    POST   /api/v1/carts/{cartId}/subtotal
    POST   /api/v1/carts/{cartId}/payments
    POST   /api/v1/carts/{cartId}/resume-item-entry
    POST   /api/v1/carts/{cartId}/bill
  Cart and line cancellation also answer DELETE on the resource itself.

  Transactions:
    GET  /api/v1/tenants/{t}/stores/{s}/terminals/{n}/transactions
    GET  /api/v1/tenants/{t}/stores/{s}/terminals/{n}/transactions/{no}
    POST /api/v1/tenants/{t}/stores/{s}/terminals/{n}/transactions/{no}/void
    POST /api/v1/tenants/{t}/stores/{s}/terminals/{n}/transactions/{no}/return
  Void and return also answer on .../transactions/void and
  .../transactions/returns with the number in the body.

  Delivery (admin bearer token for ack):
    POST /api/v1/tenants/{t}/stores/{s}/terminals/{n}/transactions/{no}/delivery-status
    GET  /api/v1/tenants/{t}/transactions/delivery-status/{eventId}
    PUT  /api/v1/tenants/{t}/transactions/delivery-status/{eventId}/ack

  Admin (bearer token):
    POST /api/v1/tenants/{t}/stores/{s}/terminals          Register
    POST /api/v1/tenants/{t}/stores/{s}/terminals/{n}/open
    POST /api/v1/tenants/{t}/stores/{s}/terminals/{n}/close
    POST /api/v1/tenants/{t}/stores/{s}/terminals/{n}/sign-in
    POST /api/v1/tenants/{t}/stores/{s}/terminals/{n}/sign-out
    POST /api/v1/seed                                      Demo data

  Health:
    GET /health

ERROR HANDLING:
  Business errors carry a six-digit code and their HTTP status; the
  envelope reports both plus a userError block. Unclassified errors
  surface as 500 with code 500001.

SEE ALSO:
  - dto.go: Wire types and the envelope
  - server.go: Router and middleware
  - cart: The service behind every cart operation
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/pos-core/cart"
	"github.com/warp/pos-core/event"
	"github.com/warp/pos-core/pos"
	"github.com/warp/pos-core/store"
	"github.com/warp/pos-core/terminal"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// MasterWriter is the master-data surface the seed endpoint needs on top
// of the read-only MasterStore.
type MasterWriter interface {
	store.MasterStore
	SaveItem(ctx context.Context, tenantID, storeCode string, m *pos.ItemMaster) error
	SaveTax(ctx context.Context, tenantID string, m *pos.TaxMaster) error
	SavePayment(ctx context.Context, tenantID string, m *pos.PaymentMaster) error
}

// BreakerStates reports circuit state per backend for the health check.
type BreakerStates func() map[string]string

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Carts      *cart.Service
	Trans      store.TranStore
	Publisher  *event.Publisher
	Terminals  store.TerminalStore
	Resolver   *terminal.Resolver
	Masters    MasterWriter
	Breakers   BreakerStates
	JWTSecret  []byte
}

// NewHandler creates a handler over the composed services.
func NewHandler(carts *cart.Service, trans store.TranStore, pub *event.Publisher,
	terminals store.TerminalStore, resolver *terminal.Resolver, masters MasterWriter,
	breakers BreakerStates, jwtSecret []byte) *Handler {
	return &Handler{
		Carts:     carts,
		Trans:     trans,
		Publisher: pub,
		Terminals: terminals,
		Resolver:  resolver,
		Masters:   masters,
		Breakers:  breakers,
		JWTSecret: jwtSecret,
	}
}

// =============================================================================
// ENVELOPE WRITERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeResult(w http.ResponseWriter, status int, operation string, data any) {
	writeJSON(w, status, Envelope{
		Success:   true,
		Message:   "ok",
		Data:      data,
		Operation: operation,
	})
}

func writeError(w http.ResponseWriter, operation string, err error) {
	e := pos.AsError(err)
	writeJSON(w, e.Status, Envelope{
		Success:   false,
		Code:      e.Code,
		Message:   e.Error(),
		Operation: operation,
		UserError: &UserError{Code: e.Code, Message: e.Message},
	})
}

// =============================================================================
// SESSION EXTRACTION
// =============================================================================

// sessionFromQuery reads the terminal identity from the terminal_id query
// parameter ({tenant}-{store}-{terminal}) and the api key from the
// X-API-Key header. The three-parameter form tenantId/storeCode/terminalNo
// is accepted as a fallback.
func sessionFromQuery(r *http.Request) (cart.Session, error) {
	q := r.URL.Query()

	if tid := q.Get("terminal_id"); tid != "" {
		parts := strings.Split(tid, "-")
		if len(parts) >= 3 {
			// The terminal number is the last segment; a tenant id may
			// itself contain hyphens.
			terminalNo, err := strconv.Atoi(parts[len(parts)-1])
			if err == nil {
				return cart.Session{
					TenantID:   strings.Join(parts[:len(parts)-2], "-"),
					StoreCode:  parts[len(parts)-2],
					TerminalNo: terminalNo,
					APIKey:     r.Header.Get("X-API-Key"),
				}, nil
			}
		}
		return cart.Session{}, pos.ErrInvalidRequest.WithDetail("terminal_id must be {tenant}-{store}-{terminal}")
	}

	terminalNo, err := strconv.Atoi(q.Get("terminalNo"))
	if err != nil || q.Get("tenantId") == "" || q.Get("storeCode") == "" {
		return cart.Session{}, pos.ErrInvalidRequest.WithDetail("terminal_id (or tenantId, storeCode and terminalNo) is required")
	}
	return cart.Session{
		TenantID:   q.Get("tenantId"),
		StoreCode:  q.Get("storeCode"),
		TerminalNo: terminalNo,
		APIKey:     r.Header.Get("X-API-Key"),
	}, nil
}

// sessionFromPath reads the terminal identity from the route and the api
// key from the X-API-Key header.
func sessionFromPath(r *http.Request) (cart.Session, error) {
	terminalNo, err := strconv.Atoi(chi.URLParam(r, "terminalNo"))
	if err != nil {
		return cart.Session{}, pos.ErrInvalidRequest.WithDetail("terminalNo must be an integer")
	}
	return cart.Session{
		TenantID:   chi.URLParam(r, "tenantId"),
		StoreCode:  chi.URLParam(r, "storeCode"),
		TerminalNo: terminalNo,
		APIKey:     r.Header.Get("X-API-Key"),
	}, nil
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return pos.ErrInvalidRequest.WithDetail("malformed body: %v", err)
	}
	return nil
}

func lineNoParam(r *http.Request) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, "lineNo"))
	if err != nil {
		return 0, pos.ErrInvalidRequest.WithDetail("lineNo must be an integer")
	}
	return n, nil
}

// =============================================================================
// CART LIFECYCLE
// =============================================================================

// CreateCart opens a new cart.
// POST /api/v1/carts
func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	const op = "createCart"
	sess, err := sessionFromQuery(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	var req CreateCartRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, op, err)
		return
	}
	c, err := h.Carts.Create(r.Context(), sess, pos.TransactionType(req.TransactionType), req.UserID)
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeResult(w, http.StatusCreated, op, c)
}

// GetCart returns one cart.
// GET /api/v1/carts/{cartId}
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	const op = "getCart"
	sess, err := sessionFromQuery(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	c, err := h.Carts.Get(r.Context(), sess, chi.URLParam(r, "cartId"))
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeResult(w, http.StatusOK, op, c)
}

// FindActiveCart returns the in-flight cart on the caller's terminal.
// GET /api/v1/carts
func (h *Handler) FindActiveCart(w http.ResponseWriter, r *http.Request) {
	const op = "findActiveCart"
	sess, err := sessionFromQuery(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	c, err := h.Carts.FindActive(r.Context(), sess)
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeResult(w, http.StatusOK, op, c)
}

// CancelCart aborts the cart.
// DELETE /api/v1/carts/{cartId}
func (h *Handler) CancelCart(w http.ResponseWriter, r *http.Request) {
	const op = "cancelCart"
	sess, err := sessionFromQuery(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	c, err := h.Carts.Cancel(r.Context(), sess, chi.URLParam(r, "cartId"))
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeResult(w, http.StatusOK, op, c)
}

// =============================================================================
// ITEM ENTRY
// =============================================================================

// AddItem appends a line item.
// POST /api/v1/carts/{cartId}/lineItems
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	const op = "addItem"
	sess, err := sessionFromQuery(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	var req AddItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, op, err)
		return
	}
	c, err := h.Carts.AddItem(r.Context(), sess, chi.URLParam(r, "cartId"), req.ItemCode, req.Quantity, req.UnitPrice)
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeResult(w, http.StatusOK, op, c)
}

// CancelLine soft-deletes a line item.
// DELETE /api/v1/carts/{cartId}/lineItems/{lineNo}
func (h *Handler) CancelLine(w http.ResponseWriter, r *http.Request) {
	const op = "cancelLineItem"
	sess, err := sessionFromQuery(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	lineNo, err := lineNoParam(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	c, err := h.Carts.CancelLine(r.Context(), sess, chi.URLParam(r, "cartId"), lineNo)
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeResult(w, http.StatusOK, op, c)
}

// UpdateQuantity replaces a line's quantity.
// PATCH /api/v1/carts/{cartId}/lineItems/{lineNo}/quantity
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	const op = "updateQuantity"
	sess, err := sessionFromQuery(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	lineNo, err := lineNoParam(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	var req UpdateQuantityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, op, err)
		return
	}
	c, err := h.Carts.UpdateQuantity(r.Context(), sess, chi.URLParam(r, "cartId"), lineNo, req.Quantity)
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeResult(w, http.StatusOK, op, c)
}

// UpdateUnitPrice overrides a line's unit price.
// PATCH /api/v1/carts/{cartId}/lineItems/{lineNo}/unitPrice
func (h *Handler) UpdateUnitPrice(w http.ResponseWriter, r *http.Request) {
	const op = "updateUnitPrice"
	sess, err := sessionFromQuery(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	lineNo, err := lineNoParam(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	var req UpdateUnitPriceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, op, err)
		return
	}
	c, err := h.Carts.UpdateUnitPrice(r.Context(), sess, chi.URLParam(r, "cartId"), lineNo, req.UnitPrice)
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeResult(w, http.StatusOK, op, c)
}

// =============================================================================
// DISCOUNTS
// =============================================================================

// AddLineDiscount applies a discount to one line.
// POST /api/v1/carts/{cartId}/lineItems/{lineNo}/discounts
func (h *Handler) AddLineDiscount(w http.ResponseWriter, r *http.Request) {
	const op = "addLineDiscount"
	sess, err := sessionFromQuery(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	lineNo, err := lineNoParam(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	var req DiscountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, op, err)
		return
	}
	c, err := h.Carts.AddLineDiscount(r.Context(), sess, chi.URLParam(r, "cartId"), lineNo, req.toDomain())
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeResult(w, http.StatusOK, op, c)
}

// AddCartDiscount applies a discount across the cart.
// POST /api/v1/carts/{cartId}/discounts
func (h *Handler) AddCartDiscount(w http.ResponseWriter, r *http.Request) {
	const op = "addCartDiscount"
	sess, err := sessionFromQuery(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	var req DiscountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, op, err)
		return
	}
	c, err := h.Carts.AddCartDiscount(r.Context(), sess, chi.URLParam(r, "cartId"), req.toDomain())
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeResult(w, http.StatusOK, op, c)
}

// =============================================================================
// SUBTOTAL, PAYMENT, BILLING
// =============================================================================

// Subtotal finalizes totals and moves the cart to paying.
// POST /api/v1/carts/{cartId}/subtotal
func (h *Handler) Subtotal(w http.ResponseWriter, r *http.Request) {
	const op = "calcSubtotal"
	sess, err := sessionFromQuery(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	c, err := h.Carts.Subtotal(r.Context(), sess, chi.URLParam(r, "cartId"))
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeResult(w, http.StatusOK, op, c)
}

// AddPayment tenders one payment.
// POST /api/v1/carts/{cartId}/payments
func (h *Handler) AddPayment(w http.ResponseWriter, r *http.Request) {
	const op = "addPayment"
	sess, err := sessionFromQuery(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	var req PaymentDTO
	if err := decodeBody(r, &req); err != nil {
		writeError(w, op, err)
		return
	}
	c, err := h.Carts.AddPayment(r.Context(), sess, chi.URLParam(r, "cartId"), req.toDomain())
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeResult(w, http.StatusOK, op, c)
}

// ResumeItemEntry returns a paying cart to item entry.
// POST /api/v1/carts/{cartId}/resume-item-entry
func (h *Handler) ResumeItemEntry(w http.ResponseWriter, r *http.Request) {
	const op = "resumeItemEntry"
	sess, err := sessionFromQuery(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	c, err := h.Carts.ResumeItemEntry(r.Context(), sess, chi.URLParam(r, "cartId"))
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeResult(w, http.StatusOK, op, c)
}

// Bill settles the cart and writes the transaction log.
// POST /api/v1/carts/{cartId}/bill
func (h *Handler) Bill(w http.ResponseWriter, r *http.Request) {
	const op = "bill"
	sess, err := sessionFromQuery(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	c, tran, err := h.Carts.Bill(r.Context(), sess, chi.URLParam(r, "cartId"))
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeResult(w, http.StatusOK, op, map[string]any{
		"cart":        c,
		"transaction": tran,
	})
}

// =============================================================================
// TRANSACTION QUERIES AND REVERSALS
// =============================================================================

// ListTransactions lists a terminal's journal.
// GET /api/v1/tenants/{tenantId}/stores/{storeCode}/terminals/{terminalNo}/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	const op = "listTransactions"
	sess, err := sessionFromPath(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	trans, err := h.Trans.ListTrans(r.Context(), store.TranFilter{
		TenantID:     sess.TenantID,
		StoreCode:    sess.StoreCode,
		TerminalNo:   sess.TerminalNo,
		BusinessDate: r.URL.Query().Get("businessDate"),
		Limit:        limit,
	})
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeResult(w, http.StatusOK, op, trans)
}

// GetTransaction returns one transaction with its status flags.
// GET /api/v1/tenants/{tenantId}/stores/{storeCode}/terminals/{terminalNo}/transactions/{transactionNo}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	const op = "getTransaction"
	sess, err := sessionFromPath(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	tranNo, err := strconv.ParseInt(chi.URLParam(r, "transactionNo"), 10, 64)
	if err != nil {
		writeError(w, op, pos.ErrInvalidRequest.WithDetail("transactionNo must be an integer"))
		return
	}
	tran, err := h.Trans.FindTran(r.Context(), sess.TenantID, sess.StoreCode, sess.TerminalNo, tranNo)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = pos.ErrTransactionNotFound.WithDetail("transaction %d", tranNo)
		}
		writeError(w, op, err)
		return
	}
	status, err := h.Trans.GetTranStatus(r.Context(), tran.TenantID, tran.StoreCode, tran.TerminalNo, tran.BusinessDate, tran.TransactionNo)
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeResult(w, http.StatusOK, op, map[string]any{
		"transaction": tran,
		"status":      status,
	})
}

// reversalTranNo resolves the transaction number for void/return: the
// {transactionNo} path segment when present, the body otherwise. The body
// is optional on the path form.
func reversalTranNo(r *http.Request, bodyNo int64) (int64, error) {
	p := chi.URLParam(r, "transactionNo")
	if p == "" {
		if bodyNo == 0 {
			return 0, pos.ErrInvalidRequest.WithDetail("transactionNo is required")
		}
		return bodyNo, nil
	}
	n, err := strconv.ParseInt(p, 10, 64)
	if err != nil {
		return 0, pos.ErrInvalidRequest.WithDetail("transactionNo must be an integer")
	}
	return n, nil
}

// VoidTransaction reverses a sale in full.
// POST /api/v1/tenants/{tenantId}/stores/{storeCode}/terminals/{terminalNo}/transactions/{transactionNo}/void
func (h *Handler) VoidTransaction(w http.ResponseWriter, r *http.Request) {
	const op = "void"
	sess, err := sessionFromPath(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	var req VoidRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	tranNo, err := reversalTranNo(r, req.TransactionNo)
	if err != nil {
		writeError(w, op, err)
		return
	}
	tran, err := h.Carts.Void(r.Context(), sess, tranNo)
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeResult(w, http.StatusCreated, op, tran)
}

// ReturnTransaction refunds quantities of a sale.
// POST /api/v1/tenants/{tenantId}/stores/{storeCode}/terminals/{terminalNo}/transactions/{transactionNo}/return
func (h *Handler) ReturnTransaction(w http.ResponseWriter, r *http.Request) {
	const op = "return"
	sess, err := sessionFromPath(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	var req ReturnRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	req.TransactionNo, err = reversalTranNo(r, req.TransactionNo)
	if err != nil {
		writeError(w, op, err)
		return
	}
	lines := make([]cart.ReturnLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, cart.ReturnLine{LineNo: l.LineNo, Quantity: l.Quantity})
	}
	payments := make([]pos.PaymentRequest, 0, len(req.Payments))
	for _, p := range req.Payments {
		payments = append(payments, p.toDomain())
	}
	tran, err := h.Carts.Return(r.Context(), sess, req.OriginStoreCode, req.TransactionNo, lines, payments)
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeResult(w, http.StatusCreated, op, tran)
}

// =============================================================================
// EVENT DELIVERY
// =============================================================================

// GetDeliveryStatus reports fan-out progress of one event.
// GET /api/v1/tenants/{tenantId}/transactions/delivery-status/{eventId}
func (h *Handler) GetDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	const op = "getDeliveryStatus"
	d, err := h.Publisher.Deliveries.GetDelivery(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = pos.ErrTransactionNotFound.WithDetail("event %s", chi.URLParam(r, "eventId"))
		}
		writeError(w, op, err)
		return
	}
	if d.TenantID != chi.URLParam(r, "tenantId") {
		writeError(w, op, pos.ErrTransactionNotFound.WithDetail("event %s", chi.URLParam(r, "eventId")))
		return
	}
	writeResult(w, http.StatusOK, op, d)
}

// AckDelivery records one service's delivered/failed verdict by event id.
// PUT /api/v1/tenants/{tenantId}/transactions/delivery-status/{eventId}/ack
func (h *Handler) AckDelivery(w http.ResponseWriter, r *http.Request) {
	const op = "ackDelivery"
	var req AckRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, op, err)
		return
	}
	if req.ServiceName == "" {
		writeError(w, op, pos.ErrInvalidRequest.WithDetail("serviceName is required"))
		return
	}
	d, err := h.Publisher.Ack(r.Context(), chi.URLParam(r, "eventId"), req.ServiceName, pos.DeliveryStatus(req.Status), req.Message)
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeResult(w, http.StatusOK, op, d)
}

// AckTransactionDelivery records the verdict by transaction number,
// resolving the event published for that transaction first.
// POST /api/v1/tenants/{tenantId}/stores/{storeCode}/terminals/{terminalNo}/transactions/{transactionNo}/delivery-status
func (h *Handler) AckTransactionDelivery(w http.ResponseWriter, r *http.Request) {
	const op = "ackDelivery"
	sess, err := sessionFromPath(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	tranNo, err := strconv.ParseInt(chi.URLParam(r, "transactionNo"), 10, 64)
	if err != nil {
		writeError(w, op, pos.ErrInvalidRequest.WithDetail("transactionNo must be an integer"))
		return
	}
	var req AckRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, op, err)
		return
	}
	if req.ServiceName == "" {
		writeError(w, op, pos.ErrInvalidRequest.WithDetail("serviceName is required"))
		return
	}

	d, err := h.Publisher.Deliveries.FindDeliveryByTran(r.Context(), sess.TenantID, sess.StoreCode, sess.TerminalNo, tranNo)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = pos.ErrTransactionNotFound.WithDetail("no delivery for transaction %d", tranNo)
		}
		writeError(w, op, err)
		return
	}
	d, err = h.Publisher.Ack(r.Context(), d.EventID, req.ServiceName, pos.DeliveryStatus(req.Status), req.Message)
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeResult(w, http.StatusOK, op, d)
}

// =============================================================================
// TERMINAL ADMINISTRATION
// =============================================================================

// RegisterTerminal provisions a device and mints its api key. The key is
// returned exactly once.
// POST /api/v1/tenants/{tenantId}/stores/{storeCode}/terminals
func (h *Handler) RegisterTerminal(w http.ResponseWriter, r *http.Request) {
	const op = "registerTerminal"
	var req RegisterTerminalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, op, err)
		return
	}
	rec := &store.TerminalRecord{
		TenantID:     chi.URLParam(r, "tenantId"),
		StoreCode:    chi.URLParam(r, "storeCode"),
		TerminalNo:   req.TerminalNo,
		APIKey:       uuid.NewString(),
		Status:       terminal.StatusClosed,
		BusinessDate: req.BusinessDate,
	}
	if err := h.Terminals.SaveTerminal(r.Context(), rec); err != nil {
		writeError(w, op, err)
		return
	}
	h.Resolver.Invalidate(rec.TenantID, rec.StoreCode, rec.TerminalNo)
	writeResult(w, http.StatusCreated, op, RegisterTerminalResponse{
		TenantID:     rec.TenantID,
		StoreCode:    rec.StoreCode,
		TerminalNo:   rec.TerminalNo,
		APIKey:       rec.APIKey,
		Status:       rec.Status,
		BusinessDate: rec.BusinessDate,
	})
}

// terminalUpdate loads, mutates and saves one terminal record.
func (h *Handler) terminalUpdate(w http.ResponseWriter, r *http.Request, op string, fn func(*store.TerminalRecord) error) {
	sess, err := sessionFromPath(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	rec, err := h.Terminals.GetTerminal(r.Context(), sess.TenantID, sess.StoreCode, sess.TerminalNo)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = pos.ErrUnauthorized
		}
		writeError(w, op, err)
		return
	}
	if err := fn(rec); err != nil {
		writeError(w, op, err)
		return
	}
	if err := h.Terminals.SaveTerminal(r.Context(), rec); err != nil {
		writeError(w, op, err)
		return
	}
	h.Resolver.Invalidate(rec.TenantID, rec.StoreCode, rec.TerminalNo)
	writeResult(w, http.StatusOK, op, rec)
}

// OpenTerminal opens the terminal for the given business date.
// POST /api/v1/tenants/{tenantId}/stores/{storeCode}/terminals/{terminalNo}/open
func (h *Handler) OpenTerminal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BusinessDate string `json:"businessDate"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	h.terminalUpdate(w, r, "openTerminal", func(rec *store.TerminalRecord) error {
		rec.Status = terminal.StatusOpened
		if req.BusinessDate != "" {
			rec.BusinessDate = req.BusinessDate
		}
		return nil
	})
}

// CloseTerminal closes the terminal; in-flight carts survive in the store.
// POST /api/v1/tenants/{tenantId}/stores/{storeCode}/terminals/{terminalNo}/close
func (h *Handler) CloseTerminal(w http.ResponseWriter, r *http.Request) {
	h.terminalUpdate(w, r, "closeTerminal", func(rec *store.TerminalRecord) error {
		rec.Status = terminal.StatusClosed
		rec.SignedInStaff = ""
		return nil
	})
}

// SignIn records the operating staff member.
// POST /api/v1/tenants/{tenantId}/stores/{storeCode}/terminals/{terminalNo}/sign-in
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	const op = "signIn"
	var req SignInRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, op, err)
		return
	}
	if req.StaffID == "" {
		writeError(w, op, pos.ErrInvalidRequest.WithDetail("staffId is required"))
		return
	}
	h.terminalUpdate(w, r, op, func(rec *store.TerminalRecord) error {
		if rec.Status != terminal.StatusOpened {
			return pos.ErrTerminalNotOpened
		}
		rec.SignedInStaff = req.StaffID
		return nil
	})
}

// SignOut clears the operating staff member.
// POST /api/v1/tenants/{tenantId}/stores/{storeCode}/terminals/{terminalNo}/sign-out
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.terminalUpdate(w, r, "signOut", func(rec *store.TerminalRecord) error {
		rec.SignedInStaff = ""
		return nil
	})
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports liveness plus per-backend circuit state.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Breakers: map[string]string{}}
	if h.Breakers != nil {
		resp.Breakers = h.Breakers()
	}
	for _, state := range resp.Breakers {
		if state == "open" {
			resp.Status = "degraded"
		}
	}
	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
		log.Printf("[Health] degraded: %v", resp.Breakers)
	}
	writeJSON(w, status, resp)
}
