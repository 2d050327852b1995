package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordertrace/internal/application"
	"ordertrace/internal/queue"
	"ordertrace/internal/storage/memory"
)

func newServer(t *testing.T) (*httptest.Server, *queue.Queue) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	q := queue.New(10)
	h := NewHandler(log,
		application.NewOrderService(log, store),
		application.NewPaymentService(log, store, q),
		nil)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv, q
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func createOrder(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := postJSON(t, srv.URL+"/orders", `{"external_order_id":"ORD-1","amount":100.00}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode(t, resp)
	return body["id"].(string)
}

func TestCreateOrder(t *testing.T) {
	srv, _ := newServer(t)
	resp := postJSON(t, srv.URL+"/orders", `{"external_order_id":"ORD-1","amount":100.00}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "ORD-1", body["external_order_id"])
	assert.NotEmpty(t, body["id"])
}

func TestCreateOrder_Validation(t *testing.T) {
	srv, _ := newServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"empty external id", `{"external_order_id":"","amount":100.00}`},
		{"zero amount", `{"external_order_id":"ORD-1","amount":0}`},
		{"amount above cap", `{"external_order_id":"ORD-1","amount":1000000.00}`},
		{"malformed json", `{"external_order_id"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/orders", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decode(t, resp)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestCreateOrder_DuplicateExternalID(t *testing.T) {
	srv, _ := newServer(t)
	createOrder(t, srv)
	resp := postJSON(t, srv.URL+"/orders", `{"external_order_id":"ORD-1","amount":100.00}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestCreatePayment(t *testing.T) {
	srv, q := newServer(t)
	orderID := createOrder(t, srv)

	resp := postJSON(t, srv.URL+"/payments", fmt.Sprintf(`{"order_id":%q,"amount":100.00}`, orderID))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "processing", body["status"])
	assert.Equal(t, orderID, body["order_id"])
	assert.Contains(t, body["transaction_id"], "TXN-")
	assert.Equal(t, 1, q.Len())
}

func TestCreatePayment_OrderMissing(t *testing.T) {
	srv, q := newServer(t)
	resp := postJSON(t, srv.URL+"/payments", fmt.Sprintf(`{"order_id":%q,"amount":100.00}`, uuid.NewString()))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, 0, q.Len())
}

func TestCreatePayment_DuplicateReturnsConflictAndDoesNotEnqueue(t *testing.T) {
	srv, q := newServer(t)
	orderID := createOrder(t, srv)
	body := fmt.Sprintf(`{"order_id":%q,"amount":100.00}`, orderID)

	resp := postJSON(t, srv.URL+"/payments", body)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/payments", body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, 1, q.Len())
}

func TestGetOrder_NestedPayment(t *testing.T) {
	srv, _ := newServer(t)
	orderID := createOrder(t, srv)
	resp := postJSON(t, srv.URL+"/payments", fmt.Sprintf(`{"order_id":%q,"amount":100.00}`, orderID))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	get, err := http.Get(srv.URL + "/orders/" + orderID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, get.StatusCode)
	body := decode(t, get)
	payment, ok := body["payment"].(map[string]any)
	require.True(t, ok, "order response should embed its payment")
	assert.Equal(t, orderID, payment["order_id"])
}

func TestReadEndpoints_NotFound(t *testing.T) {
	srv, _ := newServer(t)
	paths := []string{
		"/orders/" + uuid.NewString(),
		"/payments/" + uuid.NewString(),
		"/transactions/" + uuid.NewString(),
		"/orders/not-a-uuid",
	}
	for _, path := range paths {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		resp.Body.Close()
	}
}

func TestListEndpoints(t *testing.T) {
	srv, _ := newServer(t)
	orderID := createOrder(t, srv)
	resp := postJSON(t, srv.URL+"/payments", fmt.Sprintf(`{"order_id":%q,"amount":100.00}`, orderID))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	for path, wantLen := range map[string]int{
		"/orders":       1,
		"/payments":     1,
		"/transactions": 0,
	} {
		get, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, get.StatusCode, path)
		var list []any
		require.NoError(t, json.NewDecoder(get.Body).Decode(&list))
		get.Body.Close()
		assert.Len(t, list, wantLen, path)
	}
}

func TestListTransactions_BadOrderFilter(t *testing.T) {
	srv, _ := newServer(t)
	resp, err := http.Get(srv.URL + "/transactions?orderId=nope")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
