package httpx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/auth"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/cart"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/checkout"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/events"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/httpx"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/inventory"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/memstore"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/orders"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/pricing"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/redisx"
)

type harness struct {
	srv   *httptest.Server
	store *memstore.Store
	auth  *auth.Provider
	mr    *miniredis.Miniredis
}

func newHarness(t *testing.T) *harness {
	return buildHarness(t, true)
}

// buildHarness wires the API the way cmd/api does. Without Redis the client
// stays a nil *redis.Client.
func buildHarness(t *testing.T, withRedis bool) *harness {
	t.Helper()
	store := memstore.New()
	store.PutProduct(inventory.Product{ID: "p1", Name: "Kibble", PriceCents: 1_000_000, Stock: 5})
	store.PutProduct(inventory.Product{ID: "p2", Name: "Litter", PriceCents: 600_000, Stock: 1})

	var mr *miniredis.Miniredis
	var rdb *redis.Client
	if withRedis {
		mr = miniredis.RunT(t)
		rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
	}
	cache := redisx.NewCache(rdb)

	log := zap.NewNop()
	notifier := &events.StatusCache{Cache: cache, Log: log}
	prices := &pricing.Service{Store: store, DefaultFee: pricing.DefaultShippingFee}
	inv := &inventory.Service{Repo: store, Catalog: store, Ledger: store, TTL: time.Minute, Log: log}
	provider := auth.NewProvider("test-secret", time.Hour)

	api := &httpx.API{
		Auth:      provider,
		Checkout:  &checkout.Coordinator{Store: store, Pricing: prices, Events: notifier, Log: log},
		Orders:    &orders.Machine{Store: store, Events: notifier, Log: log},
		Cart:      &cart.Service{Store: store, Catalog: store, Log: log},
		Inventory: inv,
		Catalog:   store,
		Pricing:   prices,
		Cache:     cache,
		Log:       log,
	}
	r := httpx.NewRouter(log)
	api.Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &harness{srv: srv, store: store, auth: provider, mr: mr}
}

func (h *harness) token(t *testing.T, userID string, role auth.Role) string {
	t.Helper()
	tok, err := h.auth.Issue(auth.Identity{UserID: userID, Role: role})
	require.NoError(t, err)
	return tok
}

func (h *harness) do(t *testing.T, method, path, token string, body any, headers ...string) (*http.Response, map[string]any) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rdr)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := h.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		var raw any
		if err := json.NewDecoder(resp.Body).Decode(&raw); err == nil {
			if m, ok := raw.(map[string]any); ok {
				out = m
			} else {
				out = map[string]any{"list": raw}
			}
		}
	}
	return resp, out
}

func TestRequiresToken(t *testing.T) {
	h := newHarness(t)
	resp, _ := h.do(t, http.MethodGet, "/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = h.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCheckoutFlow(t *testing.T) {
	h := newHarness(t)
	buyer := h.token(t, "u-1", auth.RoleCustomer)

	resp, body := h.do(t, http.MethodPut, "/cart/items", buyer, map[string]any{"product_id": "p1", "qty": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["items"], 1)
	resp, _ = h.do(t, http.MethodPut, "/cart/items", buyer, map[string]any{"product_id": "p2", "qty": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = h.do(t, http.MethodPost, "/checkout", buyer, map[string]any{"shipping_address": "1 Main St"}, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, false, body["idempotent"])
	order := body["order"].(map[string]any)
	id := order["id"].(string)
	assert.Equal(t, "AWAITING_CONFIRMATION", order["status"])

	resp, body = h.do(t, http.MethodPost, "/checkout", buyer, nil, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["idempotent"])
	assert.Equal(t, id, body["order"].(map[string]any)["id"])

	p1, err := h.store.Product(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, p1.Stock)

	resp, body = h.do(t, http.MethodGet, "/cart", buyer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["items"])

	resp, _ = h.do(t, http.MethodPost, "/checkout", buyer, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestCheckoutInsufficientStockKeepsCart(t *testing.T) {
	h := newHarness(t)
	buyer := h.token(t, "u-1", auth.RoleCustomer)
	resp, _ := h.do(t, http.MethodPut, "/cart/items", buyer, map[string]any{"product_id": "p2", "qty": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := h.do(t, http.MethodPost, "/checkout", buyer, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "insufficient_stock", body["kind"])
	d := body["details"].(map[string]any)
	assert.Equal(t, "p2", d["product_id"])
	assert.Equal(t, "Litter", d["product_name"])

	resp, body = h.do(t, http.MethodGet, "/cart", buyer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["items"], 1)
}

func TestCheckoutRoleGate(t *testing.T) {
	h := newHarness(t)
	resp, _ := h.do(t, http.MethodPost, "/checkout", h.token(t, "a-1", auth.RoleAgent), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCartValidation(t *testing.T) {
	h := newHarness(t)
	buyer := h.token(t, "u-1", auth.RoleCustomer)

	resp, body := h.do(t, http.MethodPut, "/cart/items", buyer, map[string]any{"product_id": "p1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", body["kind"])
	assert.Equal(t, "required", body["details"].(map[string]any)["qty"])

	resp, _ = h.do(t, http.MethodPut, "/cart/items", buyer, map[string]any{"product_id": "nope", "qty": 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = h.do(t, http.MethodDelete, "/cart", buyer, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func placeOrder(t *testing.T, h *harness, buyer string) string {
	t.Helper()
	resp, _ := h.do(t, http.MethodPut, "/cart/items", buyer, map[string]any{"product_id": "p1", "qty": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body := h.do(t, http.MethodPost, "/checkout", buyer, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["order"].(map[string]any)["id"].(string)
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	buyer := h.token(t, "u-1", auth.RoleCustomer)
	staff := h.token(t, "s-1", auth.RoleStaff)
	agent := h.token(t, "a-1", auth.RoleAgent)
	other := h.token(t, "a-2", auth.RoleAgent)
	id := placeOrder(t, h, buyer)

	resp, body := h.do(t, http.MethodPatch, "/orders/"+id+"/status", buyer, map[string]any{"status": "CONFIRMED"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", body["kind"])

	resp, body = h.do(t, http.MethodPatch, "/orders/"+id+"/status", staff, map[string]any{"status": "SHIPPED"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "unknown_status", body["kind"])

	resp, _ = h.do(t, http.MethodPatch, "/orders/"+id+"/status", staff, map[string]any{"status": "confirmed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = h.do(t, http.MethodPut, "/orders/"+id+"/assign", agent, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body = h.do(t, http.MethodPut, "/orders/"+id+"/assign", other, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "already_assigned", body["kind"])

	resp, body = h.do(t, http.MethodPatch, "/orders/"+id+"/status", agent, map[string]any{"status": "DELIVERED"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_transition", body["kind"])
	assert.Equal(t, "CONFIRMED", body["details"].(map[string]any)["from"])

	for _, s := range []string{"IN_TRANSIT", "DELIVERED"} {
		resp, _ = h.do(t, http.MethodPatch, "/orders/"+id+"/status", agent, map[string]any{"status": s})
		require.Equal(t, http.StatusOK, resp.StatusCode, s)
	}

	resp, body = h.do(t, http.MethodGet, "/orders/"+id, buyer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "DELIVERED", body["status"])
	assert.Len(t, body["status_history"], 4)

	resp, _ = h.do(t, http.MethodGet, "/orders/"+id, other, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOrderStatusReadsThroughCache(t *testing.T) {
	h := newHarness(t)
	buyer := h.token(t, "u-1", auth.RoleCustomer)
	id := placeOrder(t, h, buyer)

	resp, body := h.do(t, http.MethodGet, "/orders/"+id+"/status", buyer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "AWAITING_CONFIRMATION", body["status"])
	assert.Equal(t, true, body["cached"])

	// cached entries still honour visibility
	resp, _ = h.do(t, http.MethodGet, "/orders/"+id+"/status", h.token(t, "u-2", auth.RoleCustomer), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	h.mr.FlushAll()
	resp, body = h.do(t, http.MethodGet, "/orders/"+id+"/status", buyer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["cached"])
	assert.True(t, h.mr.Exists("order_status:"+id))
}

func TestStatusWriteFailureIsNotServedFromCache(t *testing.T) {
	h := newHarness(t)
	buyer := h.token(t, "u-1", auth.RoleCustomer)
	staff := h.token(t, "s-1", auth.RoleStaff)
	id := placeOrder(t, h, buyer)

	resp, _ := h.do(t, http.MethodPatch, "/orders/"+id+"/status", staff, map[string]any{"status": "CONFIRMED"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	h.mr.SetError("ERR injected write failure")
	resp, _ = h.do(t, http.MethodPatch, "/orders/"+id+"/status", staff, map[string]any{"status": "CANCELLED"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	h.mr.SetError("")

	resp, body := h.do(t, http.MethodGet, "/orders/"+id+"/status", buyer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CANCELLED", body["status"])
	assert.Equal(t, false, body["cached"])

	resp, body = h.do(t, http.MethodGet, "/orders/"+id+"/status", buyer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CANCELLED", body["status"])
	assert.Equal(t, true, body["cached"])
}

func TestWithoutRedis(t *testing.T) {
	h := buildHarness(t, false)
	buyer := h.token(t, "u-1", auth.RoleCustomer)
	staff := h.token(t, "s-1", auth.RoleStaff)

	resp, _ := h.do(t, http.MethodPut, "/cart/items", buyer, map[string]any{"product_id": "p1", "qty": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body := h.do(t, http.MethodPost, "/checkout", buyer, nil, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["order"].(map[string]any)["id"].(string)

	resp, body = h.do(t, http.MethodPost, "/checkout", buyer, nil, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["idempotent"])

	resp, _ = h.do(t, http.MethodPatch, "/orders/"+id+"/status", staff, map[string]any{"status": "CONFIRMED"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = h.do(t, http.MethodGet, "/orders/"+id+"/status", buyer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CONFIRMED", body["status"])
	assert.Equal(t, false, body["cached"])

	p1, err := h.store.Product(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, p1.Stock)
}

func TestCustomerCancelRestoresStock(t *testing.T) {
	h := newHarness(t)
	buyer := h.token(t, "u-1", auth.RoleCustomer)
	id := placeOrder(t, h, buyer)

	resp, _ := h.do(t, http.MethodPatch, "/orders/"+id+"/status", buyer, map[string]any{"status": "CANCELLED", "note": "changed my mind"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p1, err := h.store.Product(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p1.Stock)

	resp, body := h.do(t, http.MethodGet, "/orders", buyer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["list"], 1)
}

func TestConfigEndpoints(t *testing.T) {
	h := newHarness(t)
	admin := h.token(t, "root", auth.RoleAdmin)
	buyer := h.token(t, "u-1", auth.RoleCustomer)

	resp, body := h.do(t, http.MethodGet, "/config/shipping", buyer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, pricing.DefaultShippingFee, body["fee"])

	resp, _ = h.do(t, http.MethodPut, "/config/shipping", buyer, map[string]any{"fee": 1})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = h.do(t, http.MethodPut, "/config/shipping", admin, map[string]any{"fee": -1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "config_validation", body["kind"])

	resp, body = h.do(t, http.MethodPut, "/config/shipping", admin, map[string]any{"fee": 45000})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 45000, body["fee"])
	assert.Equal(t, "root", body["updated_by"])

	tiers := []map[string]any{{"min_subtotal": 0, "discount_percentage": 0}, {"min_subtotal": 1_000_000, "discount_percentage": 5}}
	resp, body = h.do(t, http.MethodPut, "/config/discount", admin, map[string]any{"tiers": tiers, "is_active": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["is_active"])

	resp, body = h.do(t, http.MethodPut, "/config/discount/toggle", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["is_active"])

	resp, body = h.do(t, http.MethodGet, "/pricing/quote?subtotal=2000000", buyer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, body["discount"], "discount switched off")
	assert.EqualValues(t, 2_045_000, body["total"])

	resp, _ = h.do(t, http.MethodGet, "/pricing/quote?subtotal=abc", buyer, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	bad := []map[string]any{{"min_subtotal": 0, "discount_percentage": 150}}
	resp, body = h.do(t, http.MethodPut, "/config/discount", admin, map[string]any{"tiers": bad})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "config_validation", body["kind"])
}

func TestCatalogAndReservations(t *testing.T) {
	h := newHarness(t)
	admin := h.token(t, "root", auth.RoleAdmin)
	buyer := h.token(t, "u-1", auth.RoleCustomer)

	resp, body := h.do(t, http.MethodGet, "/products", buyer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["list"], 2)

	resp, _ = h.do(t, http.MethodPut, "/admin/products/p3", buyer, map[string]any{"name": "Leash", "price_cents": 10, "stock": 1})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, body = h.do(t, http.MethodPut, "/admin/products/p3", admin, map[string]any{"name": "Leash", "price_cents": 10, "stock": 4})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "p3", body["id"])

	resp, body = h.do(t, http.MethodPost, "/reservations", buyer, map[string]any{"product_id": "p3", "qty": 3})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.EqualValues(t, 3, body["qty"])

	resp, body = h.do(t, http.MethodPost, "/reservations", buyer, map[string]any{"product_id": "p3", "qty": 2})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "unavailable", body["kind"])

	resp, body = h.do(t, http.MethodGet, "/products/p3/availability", buyer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["available"])

	resp, body = h.do(t, http.MethodPost, "/admin/products/p3/stock", admin, map[string]any{"delta": -10})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, body["stock"])
}
