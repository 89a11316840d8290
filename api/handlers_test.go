package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/pos-core/api"
	"github.com/warp/pos-core/breaker"
	"github.com/warp/pos-core/cart"
	"github.com/warp/pos-core/event"
	"github.com/warp/pos-core/pos"
	"github.com/warp/pos-core/store"
	"github.com/warp/pos-core/store/memory"
	"github.com/warp/pos-core/terminal"
)

var testSecret = []byte("test-secret")

// =============================================================================
// FIXTURE
// =============================================================================

type apiFixture struct {
	srv      *httptest.Server
	client   *http.Client
	token    string
	breakers map[string]string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	mem := memory.New()

	dual := store.NewDualCartStore(
		memory.New(), mem,
		breaker.New("cart-primary", 3, time.Minute),
		breaker.New("cart-fallback", 3, time.Minute),
	)
	// Zero TTL so admin state changes are visible on the next request.
	resolver := terminal.NewResolver(mem, 0)
	publisher := event.NewPublisher(mem, nil, nil)
	service := cart.New(dual, mem, mem, mem, resolver,
		pos.DefaultPaymentRegistry(), publisher, &pos.TextRenderer{})

	f := &apiFixture{breakers: map[string]string{}}
	h := api.NewHandler(service, mem, publisher, mem, resolver, mem,
		func() map[string]string { return f.breakers }, testSecret)

	f.srv = httptest.NewServer(api.NewRouter(h))
	t.Cleanup(f.srv.Close)
	f.client = f.srv.Client()

	token, err := api.MintAdminToken(testSecret, "ops", time.Hour)
	require.NoError(t, err)
	f.token = token
	return f
}

// do sends one request and decodes the response envelope.
func (f *apiFixture) do(t *testing.T, method, path, apiKey string, body any) (int, api.Envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env api.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

// doAdmin sends one request with the admin bearer token.
func (f *apiFixture) doAdmin(t *testing.T, method, path string, body any) (int, api.Envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.token)
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env api.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

// decodeData re-marshals the envelope data into a typed value.
func decodeData(t *testing.T, data any, dst any) {
	t.Helper()
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, dst))
}

// seed loads the demo catalog and returns the terminal's api key.
func (f *apiFixture) seed(t *testing.T) string {
	t.Helper()
	status, env := f.doAdmin(t, http.MethodPost, "/api/v1/seed",
		api.SeedRequest{TenantID: "demo", StoreCode: "0001"})
	require.Equal(t, http.StatusCreated, status)
	require.True(t, env.Success)

	var data struct {
		Terminal api.RegisterTerminalResponse `json:"terminal"`
	}
	decodeData(t, env.Data, &data)
	require.NotEmpty(t, data.Terminal.APIKey)
	return data.Terminal.APIKey
}

const cartQuery = "?tenantId=demo&storeCode=0001&terminalNo=1"

// completeSale runs one 4904 sale to completion and returns its transaction.
func completeSale(t *testing.T, f *apiFixture, key, query string) pos.Transaction {
	t.Helper()
	_, env := f.do(t, http.MethodPost, "/api/v1/carts"+query, key, api.CreateCartRequest{})
	var c pos.Cart
	decodeData(t, env.Data, &c)
	base := "/api/v1/carts/" + c.CartID
	f.do(t, http.MethodGet, base+query, key, nil)
	f.do(t, http.MethodPost, base+"/lineItems"+query, key, map[string]any{"itemCode": "4904", "quantity": "1"})
	f.do(t, http.MethodPost, base+"/subtotal"+query, key, nil)
	f.do(t, http.MethodPost, base+"/payments"+query, key, api.PaymentDTO{PaymentCode: "01", Amount: 10000})
	status, env := f.do(t, http.MethodPost, base+"/bill"+query, key, nil)
	require.Equal(t, http.StatusOK, status, "%+v", env)
	var billed struct {
		Transaction pos.Transaction `json:"transaction"`
	}
	decodeData(t, env.Data, &billed)
	return billed.Transaction
}

// =============================================================================
// SALE FLOW OVER HTTP
// =============================================================================

func TestAPI_SaleFlow(t *testing.T) {
	f := newAPIFixture(t)
	key := f.seed(t)

	// Create
	status, env := f.do(t, http.MethodPost, "/api/v1/carts"+cartQuery, key, api.CreateCartRequest{})
	require.Equal(t, http.StatusCreated, status)
	require.True(t, env.Success)
	assert.Equal(t, "createCart", env.Operation)

	var c pos.Cart
	decodeData(t, env.Data, &c)
	require.NotEmpty(t, c.CartID)
	base := "/api/v1/carts/" + c.CartID

	// First read advances to idle
	status, env = f.do(t, http.MethodGet, base+cartQuery, key, nil)
	require.Equal(t, http.StatusOK, status)
	decodeData(t, env.Data, &c)
	assert.Equal(t, pos.StatusIdle, c.Status)

	// Item entry: 1 x 4901 at 1200 with 10% exclusive tax
	status, env = f.do(t, http.MethodPost, base+"/lineItems"+cartQuery, key,
		map[string]any{"itemCode": "4901", "quantity": "1"})
	require.Equal(t, http.StatusOK, status, "%+v", env)
	decodeData(t, env.Data, &c)
	require.Len(t, c.LineItems, 1)

	// Subtotal
	status, env = f.do(t, http.MethodPost, base+"/subtotal"+cartQuery, key, nil)
	require.Equal(t, http.StatusOK, status)
	decodeData(t, env.Data, &c)
	assert.True(t, c.TotalAmount.Equal(pos.FromMinorUnits(132000)), "total %s", c.TotalAmount)

	// Pay: amounts travel as minor units
	status, env = f.do(t, http.MethodPost, base+"/payments"+cartQuery, key,
		api.PaymentDTO{PaymentCode: "01", Amount: 132000})
	require.Equal(t, http.StatusOK, status, "%+v", env)
	decodeData(t, env.Data, &c)
	assert.True(t, c.BalanceAmount.IsZero())

	// Bill
	status, env = f.do(t, http.MethodPost, base+"/bill"+cartQuery, key, nil)
	require.Equal(t, http.StatusOK, status, "%+v", env)
	var billed struct {
		Cart        pos.Cart        `json:"cart"`
		Transaction pos.Transaction `json:"transaction"`
	}
	decodeData(t, env.Data, &billed)
	assert.Equal(t, pos.StatusCompleted, billed.Cart.Status)
	assert.Equal(t, int64(1), billed.Transaction.TransactionNo)
	assert.NotEmpty(t, billed.Transaction.ReceiptText)

	// Journal query sees it
	status, env = f.do(t, http.MethodGet, "/api/v1/tenants/demo/stores/0001/terminals/1/transactions", key, nil)
	require.Equal(t, http.StatusOK, status)
	var trans []pos.Transaction
	decodeData(t, env.Data, &trans)
	require.Len(t, trans, 1)

	status, env = f.do(t, http.MethodGet, "/api/v1/tenants/demo/stores/0001/terminals/1/transactions/1", key, nil)
	require.Equal(t, http.StatusOK, status)
	var detail struct {
		Transaction pos.Transaction       `json:"transaction"`
		Status      pos.TransactionStatus `json:"status"`
	}
	decodeData(t, env.Data, &detail)
	assert.Equal(t, int64(1), detail.Transaction.TransactionNo)
	assert.False(t, detail.Status.IsVoided)
}

func TestAPI_VoidOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	key := f.seed(t)

	// GIVEN: A completed one-line sale
	_, env := f.do(t, http.MethodPost, "/api/v1/carts"+cartQuery, key, api.CreateCartRequest{})
	var c pos.Cart
	decodeData(t, env.Data, &c)
	base := "/api/v1/carts/" + c.CartID
	f.do(t, http.MethodGet, base+cartQuery, key, nil)
	f.do(t, http.MethodPost, base+"/lineItems"+cartQuery, key, map[string]any{"itemCode": "4904", "quantity": "1"})
	f.do(t, http.MethodPost, base+"/subtotal"+cartQuery, key, nil)
	f.do(t, http.MethodPost, base+"/payments"+cartQuery, key, api.PaymentDTO{PaymentCode: "01", Amount: 10000})
	status, env := f.do(t, http.MethodPost, base+"/bill"+cartQuery, key, nil)
	require.Equal(t, http.StatusOK, status, "%+v", env)

	// WHEN: The sale is voided from its terminal
	status, env = f.do(t, http.MethodPost, "/api/v1/tenants/demo/stores/0001/terminals/1/transactions/void", key,
		api.VoidRequest{TransactionNo: 1})
	require.Equal(t, http.StatusCreated, status, "%+v", env)

	var void pos.Transaction
	decodeData(t, env.Data, &void)
	assert.Equal(t, pos.TransactionTypeVoidSale, void.TransactionType)
	assert.Equal(t, int64(1), void.OriginTransactionNo)
}

func TestAPI_VoidAndReturnByPathNumber(t *testing.T) {
	f := newAPIFixture(t)
	key := f.seed(t)
	termBase := "/api/v1/tenants/demo/stores/0001/terminals/1"

	// WHEN: A sale is voided through its per-transaction route, no body
	sale := completeSale(t, f, key, cartQuery)
	status, env := f.do(t, http.MethodPost,
		fmt.Sprintf("%s/transactions/%d/void", termBase, sale.TransactionNo), key, nil)
	require.Equal(t, http.StatusCreated, status, "%+v", env)

	var void pos.Transaction
	decodeData(t, env.Data, &void)
	assert.Equal(t, pos.TransactionTypeVoidSale, void.TransactionType)
	assert.Equal(t, sale.TransactionNo, void.OriginTransactionNo)
	assert.True(t, sale.TotalAmount.Neg().Equal(void.TotalAmount), "void total %s", void.TotalAmount)

	// AND: A second sale is partially returned the same way
	sale2 := completeSale(t, f, key, cartQuery)
	status, env = f.do(t, http.MethodPost,
		fmt.Sprintf("%s/transactions/%d/return", termBase, sale2.TransactionNo), key,
		api.ReturnRequest{Lines: []api.ReturnLineDTO{{LineNo: 1, Quantity: decimal.NewFromInt(1)}}})
	require.Equal(t, http.StatusCreated, status, "%+v", env)

	var ret pos.Transaction
	decodeData(t, env.Data, &ret)
	assert.Equal(t, pos.TransactionTypeReturn, ret.TransactionType)
	assert.Equal(t, sale2.TransactionNo, ret.OriginTransactionNo)
	require.Len(t, ret.LineItems, 1)
	assert.True(t, ret.LineItems[0].Quantity.IsNegative())
}

func TestAPI_CancelActionRoutes(t *testing.T) {
	f := newAPIFixture(t)
	key := f.seed(t)

	_, env := f.do(t, http.MethodPost, "/api/v1/carts"+cartQuery, key, api.CreateCartRequest{})
	var c pos.Cart
	decodeData(t, env.Data, &c)
	base := "/api/v1/carts/" + c.CartID
	f.do(t, http.MethodGet, base+cartQuery, key, nil)
	f.do(t, http.MethodPost, base+"/lineItems"+cartQuery, key, map[string]any{"itemCode": "4904", "quantity": "1"})

	// Cancel the line through its action route
	status, env := f.do(t, http.MethodPost, base+"/lineItems/1/cancel"+cartQuery, key, nil)
	require.Equal(t, http.StatusOK, status, "%+v", env)
	decodeData(t, env.Data, &c)
	require.Len(t, c.LineItems, 1)
	assert.True(t, c.LineItems[0].IsCancelled)

	// Cancel the cart through its action route
	status, env = f.do(t, http.MethodPost, base+"/cancel"+cartQuery, key, nil)
	require.Equal(t, http.StatusOK, status, "%+v", env)
	decodeData(t, env.Data, &c)
	assert.Equal(t, pos.StatusCancelled, c.Status)
}

func TestAPI_TerminalIDSessionParam(t *testing.T) {
	f := newAPIFixture(t)
	key := f.seed(t)

	// The single combined identifier form authenticates
	status, env := f.do(t, http.MethodPost, "/api/v1/carts?terminal_id=demo-0001-1", key, api.CreateCartRequest{})
	require.Equal(t, http.StatusCreated, status, "%+v", env)

	// A malformed identifier is a validation error
	status, env = f.do(t, http.MethodPost, "/api/v1/carts?terminal_id=demo", key, api.CreateCartRequest{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "100101", env.Code)
}

// =============================================================================
// ERROR ENVELOPE
// =============================================================================

func TestAPI_ErrorEnvelopeShape(t *testing.T) {
	f := newAPIFixture(t)
	key := f.seed(t)

	_, env := f.do(t, http.MethodPost, "/api/v1/carts"+cartQuery, key, api.CreateCartRequest{})
	var c pos.Cart
	decodeData(t, env.Data, &c)
	f.do(t, http.MethodGet, "/api/v1/carts/"+c.CartID+cartQuery, key, nil)

	// WHEN: An unknown item is entered
	status, env := f.do(t, http.MethodPost, "/api/v1/carts/"+c.CartID+"/lineItems"+cartQuery, key,
		map[string]any{"itemCode": "0000", "quantity": "1"})

	// THEN: The envelope carries the business code and a userError block
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)
	assert.Equal(t, "100201", env.Code)
	assert.Equal(t, "addItem", env.Operation)
	require.NotNil(t, env.UserError)
	assert.Equal(t, "100201", env.UserError.Code)
	assert.Equal(t, "item not found", env.UserError.Message)
}

func TestAPI_MissingSessionParams(t *testing.T) {
	f := newAPIFixture(t)

	status, env := f.do(t, http.MethodPost, "/api/v1/carts", "some-key", api.CreateCartRequest{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "100101", env.Code)
}

func TestAPI_WrongAPIKey(t *testing.T) {
	f := newAPIFixture(t)
	f.seed(t)

	status, env := f.do(t, http.MethodPost, "/api/v1/carts"+cartQuery, "wrong-key", api.CreateCartRequest{})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "200901", env.Code)
}

// =============================================================================
// ADMIN AUTH
// =============================================================================

func TestAPI_AdminRoutesRejectMissingToken(t *testing.T) {
	f := newAPIFixture(t)

	status, env := f.do(t, http.MethodPost, "/api/v1/seed", "",
		api.SeedRequest{TenantID: "demo", StoreCode: "0001"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "200901", env.Code)
}

func TestAPI_AdminRoutesRejectForeignToken(t *testing.T) {
	f := newAPIFixture(t)
	forged, err := api.MintAdminToken([]byte("other-secret"), "intruder", time.Hour)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/v1/seed",
		bytes.NewBufferString(`{"tenantId":"demo","storeCode":"0001"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+forged)
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// =============================================================================
// TERMINAL ADMINISTRATION
// =============================================================================

func TestAPI_TerminalLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	base := "/api/v1/tenants/demo/stores/0001/terminals"

	// Register: the api key is returned exactly once
	status, env := f.doAdmin(t, http.MethodPost, base,
		api.RegisterTerminalRequest{TerminalNo: 5, BusinessDate: "20260102"})
	require.Equal(t, http.StatusCreated, status)
	var reg api.RegisterTerminalResponse
	decodeData(t, env.Data, &reg)
	assert.NotEmpty(t, reg.APIKey)
	assert.Equal(t, terminal.StatusClosed, reg.Status)

	// A closed terminal cannot sign in staff
	status, _ = f.doAdmin(t, http.MethodPost, base+"/5/sign-in", api.SignInRequest{StaffID: "S009"})
	assert.Equal(t, http.StatusForbidden, status)

	// Open, then sign in
	status, _ = f.doAdmin(t, http.MethodPost, base+"/5/open", map[string]any{})
	require.Equal(t, http.StatusOK, status)
	status, env = f.doAdmin(t, http.MethodPost, base+"/5/sign-in", api.SignInRequest{StaffID: "S009"})
	require.Equal(t, http.StatusOK, status)
	var rec store.TerminalRecord
	decodeData(t, env.Data, &rec)
	assert.Equal(t, "S009", rec.SignedInStaff)

	// The registered device can now open a cart
	q := "?tenantId=demo&storeCode=0001&terminalNo=5"
	status, env = f.do(t, http.MethodPost, "/api/v1/carts"+q, reg.APIKey, api.CreateCartRequest{})
	require.Equal(t, http.StatusCreated, status, "%+v", env)

	// Close clears the staff and blocks further carts
	status, _ = f.doAdmin(t, http.MethodPost, base+"/5/close", map[string]any{})
	require.Equal(t, http.StatusOK, status)
	status, env = f.do(t, http.MethodPost, "/api/v1/carts"+q, reg.APIKey, api.CreateCartRequest{})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "200902", env.Code)
}

// =============================================================================
// DELIVERY STATUS
// =============================================================================

func TestAPI_DeliveryStatusUnknownEvent(t *testing.T) {
	f := newAPIFixture(t)

	status, env := f.do(t, http.MethodGet, "/api/v1/tenants/demo/transactions/delivery-status/unknown-id", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "400501", env.Code)
}

func TestAPI_AckFlipsService(t *testing.T) {
	f := newAPIFixture(t)

	// A handler fixture with a real subscriber entry, inserted directly.
	mem := memory.New()
	resolver := terminal.NewResolver(mem, 0)
	publisher := event.NewPublisher(mem, []event.Subscriber{{ServiceName: "stock", URL: "http://127.0.0.1:0"}}, nil)
	service := cart.New(
		store.NewDualCartStore(memory.New(), mem,
			breaker.New("p", 3, time.Minute), breaker.New("f", 3, time.Minute)),
		mem, mem, mem, resolver, pos.DefaultPaymentRegistry(), publisher, &pos.TextRenderer{})
	h := api.NewHandler(service, mem, publisher, mem, resolver, mem, nil, testSecret)
	srv := httptest.NewServer(api.NewRouter(h))
	t.Cleanup(srv.Close)

	d := &pos.EventDelivery{
		EventID:       "ev-42",
		TenantID:      "demo",
		OverallStatus: pos.DeliveryFailed,
		Services:      []pos.ServiceDelivery{{ServiceName: "stock", Status: pos.DeliveryFailed}},
	}
	require.NoError(t, mem.InsertDelivery(context.Background(), d))

	// Status is visible without admin rights
	resp, err := http.Get(srv.URL + "/api/v1/tenants/demo/transactions/delivery-status/ev-42")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Ack requires the bearer token
	body := bytes.NewBufferString(`{"serviceName":"stock"}`)
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/tenants/demo/transactions/delivery-status/ev-42/ack", body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+f.token)
	ackResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer ackResp.Body.Close()
	require.Equal(t, http.StatusOK, ackResp.StatusCode)

	var env api.Envelope
	require.NoError(t, json.NewDecoder(ackResp.Body).Decode(&env))
	var acked pos.EventDelivery
	decodeData(t, env.Data, &acked)
	assert.Equal(t, pos.DeliveryDelivered, acked.OverallStatus)

	// Tenant isolation on the read side
	resp2, err := http.Get(srv.URL + "/api/v1/tenants/other/transactions/delivery-status/ev-42")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestAPI_AckByTransactionNumber(t *testing.T) {
	f := newAPIFixture(t)

	mem := memory.New()
	resolver := terminal.NewResolver(mem, 0)
	publisher := event.NewPublisher(mem, []event.Subscriber{{ServiceName: "stock", URL: "http://127.0.0.1:0"}}, nil)
	service := cart.New(
		store.NewDualCartStore(memory.New(), mem,
			breaker.New("p", 3, time.Minute), breaker.New("f", 3, time.Minute)),
		mem, mem, mem, resolver, pos.DefaultPaymentRegistry(), publisher, &pos.TextRenderer{})
	h := api.NewHandler(service, mem, publisher, mem, resolver, mem, nil, testSecret)
	srv := httptest.NewServer(api.NewRouter(h))
	t.Cleanup(srv.Close)

	d := &pos.EventDelivery{
		EventID:       "ev-7",
		TenantID:      "demo",
		StoreCode:     "0001",
		TerminalNo:    1,
		BusinessDate:  "20260101",
		TransactionNo: 7,
		OverallStatus: pos.DeliveryPending,
		Services:      []pos.ServiceDelivery{{ServiceName: "stock", Status: pos.DeliveryPending}},
	}
	require.NoError(t, mem.InsertDelivery(context.Background(), d))

	doAck := func(path, body string) (int, api.Envelope) {
		req, err := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewBufferString(body))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+f.token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		var env api.Envelope
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
		return resp.StatusCode, env
	}
	ackPath := "/api/v1/tenants/demo/stores/0001/terminals/1/transactions/7/delivery-status"

	// WHEN: The subscriber reports a failure by transaction number
	status, env := doAck(ackPath, `{"serviceName":"stock","status":"failed","message":"consumer rejected"}`)
	require.Equal(t, http.StatusOK, status, "%+v", env)
	var acked pos.EventDelivery
	decodeData(t, env.Data, &acked)
	assert.Equal(t, pos.DeliveryFailed, acked.OverallStatus)
	assert.Equal(t, "consumer rejected", acked.Service("stock").ErrorMessage)

	// AND: A later delivered verdict completes the event
	status, env = doAck(ackPath, `{"serviceName":"stock","status":"delivered"}`)
	require.Equal(t, http.StatusOK, status, "%+v", env)
	decodeData(t, env.Data, &acked)
	assert.Equal(t, pos.DeliveryDelivered, acked.OverallStatus)

	// An unpublished transaction has no delivery to acknowledge
	status, env = doAck("/api/v1/tenants/demo/stores/0001/terminals/1/transactions/999/delivery-status",
		`{"serviceName":"stock"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "400501", env.Code)
}

// =============================================================================
// HEALTH
// =============================================================================

func TestAPI_Health(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := f.client.Get(f.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health api.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
}

func TestAPI_HealthDegradedOnOpenBreaker(t *testing.T) {
	f := newAPIFixture(t)
	f.breakers["cart-primary"] = "open"
	f.breakers["cart-fallback"] = "closed"

	resp, err := f.client.Get(f.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var health api.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "open", health.Breakers["cart-primary"])
}
