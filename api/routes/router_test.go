package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/harborline/storefront-backend/internal/cart"
	"github.com/harborline/storefront-backend/internal/catalog"
	"github.com/harborline/storefront-backend/internal/checkout"
	"github.com/harborline/storefront-backend/internal/directory"
	"github.com/harborline/storefront-backend/internal/orders"
	"github.com/harborline/storefront-backend/pkg/config"
	"github.com/harborline/storefront-backend/pkg/db/models"
	"github.com/harborline/storefront-backend/pkg/logger"
)

type txAdapter struct {
	db *gorm.DB
}

func (t *txAdapter) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.WithContext(ctx).Transaction(fn)
}

type harness struct {
	db      *gorm.DB
	server  *httptest.Server
	user    *models.User
	address *models.Address
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dsn := "file:routes_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.Address{}, &models.Category{}, &models.Product{},
		&models.Cart{}, &models.CartItem{}, &models.Order{}, &models.OrderItem{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	user := &models.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", Name: "Router User"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	address := &models.Address{ID: uuid.New(), UserID: user.ID, Street: "1 Pier Rd", City: "Hull"}
	if err := db.Create(address).Error; err != nil {
		t.Fatalf("seed address: %v", err)
	}

	tx := &txAdapter{db: db}
	dir := directory.NewRepository(db)
	catalogRepo := catalog.NewRepository(db)
	cartRepo := cart.NewRepository(db)
	orderRepo := orders.NewRepository(db)

	cartService, err := cart.NewService(cartRepo, tx, catalogRepo, dir)
	if err != nil {
		t.Fatalf("cart service: %v", err)
	}
	checkoutService, err := checkout.NewService(tx, cartRepo, catalogRepo, dir, orderRepo, nil)
	if err != nil {
		t.Fatalf("checkout service: %v", err)
	}
	orderService, err := orders.NewService(orderRepo, dir)
	if err != nil {
		t.Fatalf("order service: %v", err)
	}

	handler := NewRouter(Deps{
		Config:   &config.Config{App: config.AppConfig{Env: "test"}},
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Cart:     cartService,
		Checkout: checkoutService,
		Orders:   orderService,
		Catalog:  catalogRepo,
	})

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &harness{db: db, server: server, user: user, address: address}
}

func (h *harness) seedProduct(t *testing.T, name, price, discount string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:            uuid.New(),
		CategoryID:    uuid.New(),
		Name:          name,
		Price:         decimal.RequireFromString(price),
		Discount:      decimal.RequireFromString(discount),
		StockQuantity: stock,
	}
	if err := h.db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func (h *harness) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, h.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && err != io.EOF {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func requireAmount(t *testing.T, data map[string]any, key, want string) {
	t.Helper()
	raw, ok := data[key].(string)
	if !ok {
		t.Fatalf("expected %s as string, got %T", key, data[key])
	}
	got := decimal.RequireFromString(raw)
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("expected %s = %s, got %s", key, want, raw)
	}
}

func TestCartLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	product := h.seedProduct(t, "Keyboard", "10.00", "0.10", 10)
	base := fmt.Sprintf("/api/v1/users/%s/cart", h.user.ID)

	resp, payload := h.do(t, http.MethodGet, base, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fetch cart: status %d", resp.StatusCode)
	}
	data := payload["data"].(map[string]any)
	requireAmount(t, data, "total_amount", "0")

	resp, payload = h.do(t, http.MethodPost, base+"/items", map[string]any{
		"product_id": product.ID,
		"quantity":   2,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add item: status %d body %v", resp.StatusCode, payload)
	}
	data = payload["data"].(map[string]any)
	requireAmount(t, data, "total_amount", "18.00")

	resp, payload = h.do(t, http.MethodPut, fmt.Sprintf("%s/items/%s", base, product.ID), map[string]any{
		"quantity": 1,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set quantity: status %d body %v", resp.StatusCode, payload)
	}
	data = payload["data"].(map[string]any)
	requireAmount(t, data, "total_amount", "9.00")

	resp, _ = h.do(t, http.MethodDelete, fmt.Sprintf("%s/items/%s", base, product.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("remove item: status %d", resp.StatusCode)
	}
}

func TestPlaceOrderOverHTTP(t *testing.T) {
	h := newHarness(t)
	product := h.seedProduct(t, "Cable", "5.00", "0", 4)
	base := fmt.Sprintf("/api/v1/users/%s/cart", h.user.ID)

	resp, payload := h.do(t, http.MethodPost, base+"/items", map[string]any{
		"product_id": product.ID,
		"quantity":   3,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add item: status %d body %v", resp.StatusCode, payload)
	}

	resp, payload = h.do(t, http.MethodPost, "/api/v1/orders", map[string]any{
		"user_id":             h.user.ID,
		"shipping_address_id": h.address.ID,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("place order: status %d body %v", resp.StatusCode, payload)
	}
	data := payload["data"].(map[string]any)
	if status := data["status"].(string); status != "PENDING" {
		t.Fatalf("expected PENDING, got %s", status)
	}
	requireAmount(t, data, "total_amount", "15.00")

	orderID := data["id"].(string)
	resp, payload = h.do(t, http.MethodGet, "/api/v1/orders/"+orderID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("order detail: status %d", resp.StatusCode)
	}

	resp, payload = h.do(t, http.MethodPatch, "/api/v1/admin/orders/"+orderID+"/status", map[string]any{
		"status": "SHIPPED",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status: status %d body %v", resp.StatusCode, payload)
	}

	resp, payload = h.do(t, http.MethodGet, "/api/v1/admin/orders/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: status %d", resp.StatusCode)
	}
	stats := payload["data"].(map[string]any)
	requireAmount(t, stats, "total_sales", "15.00")
}

func TestErrorEnvelopes(t *testing.T) {
	h := newHarness(t)
	product := h.seedProduct(t, "Rare Item", "100.00", "0", 1)
	base := fmt.Sprintf("/api/v1/users/%s/cart", h.user.ID)

	resp, payload := h.do(t, http.MethodPost, base+"/items", map[string]any{
		"product_id": product.ID,
		"quantity":   2,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	apiErr := payload["error"].(map[string]any)
	if code := apiErr["code"].(string); code != "INSUFFICIENT_STOCK" {
		t.Fatalf("expected INSUFFICIENT_STOCK, got %s", code)
	}

	resp, payload = h.do(t, http.MethodGet, "/api/v1/orders/"+uuid.NewString(), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	apiErr = payload["error"].(map[string]any)
	if code := apiErr["code"].(string); code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %s", code)
	}

	resp, _ = h.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%s/cart", uuid.NewString()), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", resp.StatusCode)
	}

	resp, payload = h.do(t, http.MethodPost, base+"/items", map[string]any{
		"product_id": product.ID,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing quantity, got %d", resp.StatusCode)
	}
}

func TestProductsOverHTTP(t *testing.T) {
	h := newHarness(t)
	product := h.seedProduct(t, "Gadget", "9.99", "0", 3)

	resp, payload := h.do(t, http.MethodGet, "/api/v1/products?page=0&size=10", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list products: status %d", resp.StatusCode)
	}
	data := payload["data"].(map[string]any)
	if count := data["total_items"].(float64); count != 1 {
		t.Fatalf("expected 1 product, got %v", count)
	}

	resp, payload = h.do(t, http.MethodGet, "/api/v1/products/"+product.ID.String(), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("product detail: status %d", resp.StatusCode)
	}
	detail := payload["data"].(map[string]any)
	if name := detail["name"].(string); name != "Gadget" {
		t.Fatalf("expected Gadget, got %s", name)
	}
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.do(t, http.MethodGet, "/health/live", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("live: status %d", resp.StatusCode)
	}
	if env := resp.Header.Get("X-Storefront-Env"); env != "test" {
		t.Fatalf("expected env header, got %q", env)
	}

	resp, _ = h.do(t, http.MethodGet, "/health/ready", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ready: status %d", resp.StatusCode)
	}
}
