package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/order-composer/internal/backend"
	"github.com/xenking/order-composer/internal/composer"
	"github.com/xenking/order-composer/internal/domain/catalog"
	"github.com/xenking/order-composer/pkg/dialog"
	"github.com/xenking/order-composer/pkg/notify"
)

type mockOrders struct {
	mu     sync.Mutex
	calls  int
	err    error
	order  *backend.Order
	getErr error
}

func (m *mockOrders) CreateOrder(context.Context, string, []backend.SubmitItem) (*backend.Order, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.order != nil {
		return m.order, nil
	}
	return &backend.Order{ID: "o1", Number: "1001"}, nil
}

func (m *mockOrders) GetOrder(context.Context, string) (*backend.Order, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.order != nil {
		return m.order, nil
	}
	return &backend.Order{ID: "o1", Number: "1001"}, nil
}

type mockLookup struct {
	mu      sync.Mutex
	results map[catalog.Kind][]catalog.Candidate
	resets  int
}

func (m *mockLookup) Search(_ context.Context, kind catalog.Kind, _ string) []catalog.Candidate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results[kind]
}

func (m *mockLookup) Reset() {
	m.mu.Lock()
	m.resets++
	m.mu.Unlock()
}

type fixture struct {
	mux    *http.ServeMux
	orders *mockOrders
	lookup *mockLookup
	sink   *notify.Sink
	gate   *dialog.Gate
}

func newFixture(orders *mockOrders) *fixture {
	f := &fixture{
		orders: orders,
		lookup: &mockLookup{results: map[catalog.Kind][]catalog.Candidate{}},
		sink:   notify.NewSink(),
		gate:   dialog.NewGate(),
		mux:    http.NewServeMux(),
	}
	session := composer.NewSession(orders, f.sink, nil)
	NewHandlers(session, f.lookup, f.gate, f.sink, nil).Register(f.mux)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded),
		"response must be valid JSON: %s", rec.Body.String())
	return rec, decoded
}

func data(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	d, ok := resp["data"].(map[string]any)
	require.True(t, ok, "missing data payload: %v", resp)
	return d
}

func (f *fixture) addWidget(t *testing.T) {
	t.Helper()
	rec, _ := f.do(t, http.MethodPost, "/api/session/items",
		`{"product":{"id":"p1","label":"Widget","price":"100"},"quantity":"2","discount":"10"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestGetSession_Empty(t *testing.T) {
	f := newFixture(&mockOrders{})
	rec, resp := f.do(t, http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusOK, rec.Code)

	d := data(t, resp)
	assert.Equal(t, "composing", d["state"])
	assert.Empty(t, d["items"])
	assert.EqualValues(t, 0, d["subtotal"])
}

func TestAddItem_ComputesLineTotal(t *testing.T) {
	f := newFixture(&mockOrders{})
	f.addWidget(t)

	_, resp := f.do(t, http.MethodGet, "/api/session", "")
	d := data(t, resp)
	items := d["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.EqualValues(t, 180, item["total"])
	assert.EqualValues(t, 180, d["subtotal"])
}

func TestAddItem_TextualQuantityRejected(t *testing.T) {
	f := newFixture(&mockOrders{})
	rec, resp := f.do(t, http.MethodPost, "/api/session/items",
		`{"product":{"id":"p1","label":"Widget","price":"100"},"quantity":"two"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	fields := data(t, resp)
	assert.Equal(t, "quantity must be a whole number", fields["quantity"])
}

func TestAddItem_UnpricedProductRejected(t *testing.T) {
	f := newFixture(&mockOrders{})
	rec, _ := f.do(t, http.MethodPost, "/api/session/items",
		`{"product":{"id":"p1","label":"Widget"},"quantity":"1"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRemoveItem_RunsOnlyAfterConfirmation(t *testing.T) {
	f := newFixture(&mockOrders{})
	f.addWidget(t)

	rec, resp := f.do(t, http.MethodDelete, "/api/session/items/0", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	d := data(t, resp)
	assert.Equal(t, true, d["open"])
	assert.Contains(t, d["message"], "delete this item")

	// Still present until the dialog is answered.
	_, resp = f.do(t, http.MethodGet, "/api/session", "")
	assert.Len(t, data(t, resp)["items"], 1)

	rec, resp = f.do(t, http.MethodPost, "/api/dialog/confirm", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, data(t, resp)["open"])

	_, resp = f.do(t, http.MethodGet, "/api/session", "")
	assert.Empty(t, data(t, resp)["items"])
}

func TestRemoveItem_CancelKeepsItem(t *testing.T) {
	f := newFixture(&mockOrders{})
	f.addWidget(t)

	f.do(t, http.MethodDelete, "/api/session/items/0", "")
	f.do(t, http.MethodPost, "/api/dialog/cancel", "")

	_, resp := f.do(t, http.MethodGet, "/api/session", "")
	assert.Len(t, data(t, resp)["items"], 1)

	// Confirming after cancel is a no-op.
	f.do(t, http.MethodPost, "/api/dialog/confirm", "")
	_, resp = f.do(t, http.MethodGet, "/api/session", "")
	assert.Len(t, data(t, resp)["items"], 1)
}

func TestRemoveItem_SecondRequestReplacesFirst(t *testing.T) {
	f := newFixture(&mockOrders{})
	f.addWidget(t)
	f.addWidget(t)

	f.do(t, http.MethodDelete, "/api/session/items/0", "")
	f.do(t, http.MethodDelete, "/api/session/items/1", "")
	f.do(t, http.MethodPost, "/api/dialog/confirm", "")

	// Only the second removal ran.
	_, resp := f.do(t, http.MethodGet, "/api/session", "")
	assert.Len(t, data(t, resp)["items"], 1)
}

func TestRemoveItem_BadIndex(t *testing.T) {
	f := newFixture(&mockOrders{})
	rec, _ := f.do(t, http.MethodDelete, "/api/session/items/x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmit_EmptyCart(t *testing.T) {
	orders := &mockOrders{}
	f := newFixture(orders)
	f.do(t, http.MethodPut, "/api/session/customer", `{"id":"c1","label":"ACME"}`)

	rec, resp := f.do(t, http.MethodPost, "/api/session/submit", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "select at least one product", resp["message"])
	assert.Equal(t, 0, orders.calls)
}

func TestSubmit_Success(t *testing.T) {
	orders := &mockOrders{order: &backend.Order{ID: "o7", Number: "1007"}}
	f := newFixture(orders)
	f.do(t, http.MethodPut, "/api/session/customer", `{"id":"c1","label":"ACME"}`)
	f.addWidget(t)

	rec, resp := f.do(t, http.MethodPost, "/api/session/submit", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	order := data(t, resp)["order"].(map[string]any)
	assert.Equal(t, "o7", order["id"])

	// The draft is cleared and the banner announces the new order.
	_, resp = f.do(t, http.MethodGet, "/api/session", "")
	assert.Empty(t, data(t, resp)["items"])

	_, resp = f.do(t, http.MethodGet, "/api/notice", "")
	d := data(t, resp)
	assert.Equal(t, true, d["open"])
	assert.Equal(t, "success", d["status"])
}

func TestSubmit_ServerFieldRejection(t *testing.T) {
	orders := &mockOrders{err: &backend.RejectionError{
		Status:  422,
		Message: "validation failed",
		Fields:  map[string]string{"customer_id": "invalid customer"},
	}}
	f := newFixture(orders)
	f.do(t, http.MethodPut, "/api/session/customer", `{"id":"c1","label":"ACME"}`)
	f.addWidget(t)

	rec, resp := f.do(t, http.MethodPost, "/api/session/submit", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "validation failed", resp["message"])
	fields := data(t, resp)
	assert.Equal(t, "invalid customer", fields["customer.id"])

	// Draft survives the rejection.
	_, resp = f.do(t, http.MethodGet, "/api/session", "")
	assert.Len(t, data(t, resp)["items"], 1)
}

func TestSubmit_TransportFailure(t *testing.T) {
	orders := &mockOrders{err: context.DeadlineExceeded}
	f := newFixture(orders)
	f.do(t, http.MethodPut, "/api/session/customer", `{"id":"c1","label":"ACME"}`)
	f.addWidget(t)

	rec, _ := f.do(t, http.MethodPost, "/api/session/submit", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSearch(t *testing.T) {
	f := newFixture(&mockOrders{})
	f.lookup.results[catalog.KindProduct] = []catalog.Candidate{{
		ID:       "p1",
		Label:    "Widget",
		Price:    decimal.RequireFromString("12.50"),
		HasPrice: true,
	}}

	rec, resp := f.do(t, http.MethodGet, "/api/search?kind=product&q=wid", "")
	require.Equal(t, http.StatusOK, rec.Code)
	items := data(t, resp)["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "Widget", item["label"])
	assert.EqualValues(t, 12.5, item["price"])
}

func TestSearch_UnknownKind(t *testing.T) {
	f := newFixture(&mockOrders{})
	rec, _ := f.do(t, http.MethodGet, "/api/search?kind=warehouse", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotice_ReadOnce(t *testing.T) {
	f := newFixture(&mockOrders{})
	f.sink.Open(notify.StatusError, "something broke")

	_, resp := f.do(t, http.MethodGet, "/api/notice", "")
	d := data(t, resp)
	assert.Equal(t, true, d["open"])
	assert.Equal(t, "something broke", d["message"])

	_, resp = f.do(t, http.MethodGet, "/api/notice", "")
	assert.Equal(t, false, data(t, resp)["open"])
}

func TestDiscardSession_ResetsDraftAndLookups(t *testing.T) {
	f := newFixture(&mockOrders{})
	f.do(t, http.MethodPut, "/api/session/customer", `{"id":"c1","label":"ACME"}`)
	f.addWidget(t)

	rec, resp := f.do(t, http.MethodDelete, "/api/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	d := data(t, resp)
	assert.Empty(t, d["items"])
	assert.Equal(t, 1, f.lookup.resets)
}

func TestGetOrder(t *testing.T) {
	f := newFixture(&mockOrders{order: &backend.Order{
		ID:     "o42",
		Number: "1042",
		Items: []backend.OrderItem{{
			ProductID: "p1",
			Label:     "Widget",
			UnitPrice: decimal.RequireFromString("100"),
			Quantity:  2,
			Discount:  decimal.RequireFromString("10"),
			Total:     decimal.RequireFromString("180.00"),
		}},
		Subtotal: decimal.RequireFromString("180.00"),
	}})

	rec, resp := f.do(t, http.MethodGet, "/api/orders/o42", "")
	require.Equal(t, http.StatusOK, rec.Code)
	order := data(t, resp)["order"].(map[string]any)
	assert.Equal(t, "1042", order["order_number"])

	// Viewing an order loads its snapshots into the cart for display.
	_, resp = f.do(t, http.MethodGet, "/api/session", "")
	assert.Len(t, data(t, resp)["items"], 1)
}

func TestGetOrder_NotFound(t *testing.T) {
	f := newFixture(&mockOrders{getErr: &backend.RejectionError{Status: 404, Message: "not found"}})
	rec, _ := f.do(t, http.MethodGet, "/api/orders/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSelectCustomer_Malformed(t *testing.T) {
	f := newFixture(&mockOrders{})
	rec, _ := f.do(t, http.MethodPut, "/api/session/customer", `{"id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
