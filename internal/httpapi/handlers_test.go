package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/metrics"
	"agrokoperasi/backend/internal/service"
	"agrokoperasi/backend/internal/store/memory"
)

// newTestAPI builds a full API with a seeded in-memory store, real AuthManager
// and real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()
	return newTestAPIWithMetrics(t, nil)
}

func newTestAPIWithMetrics(t *testing.T, m *metrics.Metrics) *API {
	t.Helper()

	svc := service.New(memory.NewSeeded(nil), service.Options{LoginDomain: "agrokoperasi.my", Metrics: m})
	auth := NewAuthManager("test-secret-key", time.Hour, svc)
	return New(svc, auth, Options{AllowedOrigin: "*", Metrics: m})
}

func login(t *testing.T, handler http.Handler, username string, password string) string {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s failed, status %d (body: %s)", username, rec.Code, rec.Body.String())
	}

	var payload domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	if strings.TrimSpace(payload.Token) == "" {
		t.Fatalf("expected token in login response")
	}
	return payload.Token
}

func call(t *testing.T, handler http.Handler, method string, path string, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	rec := call(t, api.Handler(), http.MethodGet, "/healthz", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := call(t, handler, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "admin",
		"password": "admin123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Token == "" {
		t.Fatalf("expected token in response")
	}
	if body.User.ID != "usr_seed_admin" || body.User.Role != domain.RoleAdmin {
		t.Fatalf("unexpected user in response: %+v", body.User)
	}
	if strings.Contains(rec.Body.String(), "passwordHash") || strings.Contains(rec.Body.String(), "$2a$") {
		t.Fatalf("login response leaked password material")
	}

	me := call(t, handler, http.MethodGet, "/api/auth/me", body.Token, nil)
	if me.Code != http.StatusOK {
		t.Fatalf("expected 200 from /auth/me, got %d", me.Code)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)

	rec := call(t, api.Handler(), http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	rec := call(t, api.Handler(), http.MethodGet, "/api/products", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProducts_ListAndFilter(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "pos01", "pos123")

	rec := call(t, handler, http.MethodGet, "/api/products?category=Telur", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var products []domain.Product
	if err := json.NewDecoder(rec.Body).Decode(&products); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(products) != 1 || products[0].ID != "prd_seed_eggs" {
		t.Fatalf("expected only the egg product, got %+v", products)
	}

	missing := call(t, handler, http.MethodGet, "/api/products/prd_missing", token, nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", missing.Code)
	}
}

func TestProductMutationsRequireCatalogRole(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	pos := login(t, handler, "pos01", "pos123")
	req := map[string]any{"sku": "tmp-001", "name": "Madu", "price": "25.00", "stock": "3"}
	if rec := call(t, handler, http.MethodPost, "/api/products", pos, req); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for POS user, got %d", rec.Code)
	}

	admin := login(t, handler, "admin", "admin123")
	rec := call(t, handler, http.MethodPost, "/api/products", admin, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created domain.Product
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if created.SKU != "TMP-001" {
		t.Fatalf("expected uppercased SKU, got %s", created.SKU)
	}

	if rec := call(t, handler, http.MethodDelete, "/api/products/"+created.ID, admin, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on delete, got %d", rec.Code)
	}
}

func TestCheckoutFlow(t *testing.T) {
	m := metrics.New()
	api := newTestAPIWithMetrics(t, m)
	handler := api.Handler()
	token := login(t, handler, "pos01", "pos123")

	rec := call(t, handler, http.MethodPost, "/api/transactions", token, domain.CheckoutRequest{
		Items:         []domain.CheckoutItem{{ProductID: "prd_seed_eggs", Quantity: decimal.NewFromInt(2)}},
		PaymentMethod: "cash",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var tx domain.Transaction
	if err := json.NewDecoder(rec.Body).Decode(&tx); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !tx.TotalAmount.Equal(decimal.RequireFromString("33.80")) {
		t.Fatalf("expected total 33.80, got %s", tx.TotalAmount)
	}
	if tx.PaymentMethod != "CASH" || tx.UserID != "usr_seed_pos01" {
		t.Fatalf("unexpected transaction: %+v", tx)
	}

	get := call(t, handler, http.MethodGet, "/api/transactions/"+tx.ID, token, nil)
	if get.Code != http.StatusOK {
		t.Fatalf("expected 200 for transaction lookup, got %d", get.Code)
	}

	product := call(t, handler, http.MethodGet, "/api/products/prd_seed_eggs", token, nil)
	var eggs domain.Product
	if err := json.NewDecoder(product.Body).Decode(&eggs); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	if !eggs.Stock.Equal(decimal.NewFromInt(58)) {
		t.Fatalf("expected stock 58 after checkout, got %s", eggs.Stock)
	}

	short := call(t, handler, http.MethodPost, "/api/transactions", token, domain.CheckoutRequest{
		Items:         []domain.CheckoutItem{{ProductID: "prd_seed_rice", Quantity: decimal.NewFromInt(999)}},
		PaymentMethod: "CASH",
	})
	if short.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for insufficient stock, got %d", short.Code)
	}

	empty := call(t, handler, http.MethodPost, "/api/transactions", token, domain.CheckoutRequest{PaymentMethod: "CASH"})
	if empty.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty order, got %d", empty.Code)
	}

	got, err := testutil.GatherAndCount(m.Registry(), "agrokoperasi_http_request_duration_seconds")
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got == 0 {
		t.Fatalf("expected http latency series to be recorded")
	}
}

func TestRoleGateBlocksUserAdministration(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	pos := login(t, handler, "pos01", "pos123")
	if rec := call(t, handler, http.MethodGet, "/api/users", pos, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for POS user listing users, got %d", rec.Code)
	}
	if rec := call(t, handler, http.MethodGet, "/api/users/me/permissions", pos, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for own permissions, got %d", rec.Code)
	}
	if rec := call(t, handler, http.MethodGet, "/api/audit", pos, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for audit log, got %d", rec.Code)
	}

	admin := login(t, handler, "admin", "admin123")
	if rec := call(t, handler, http.MethodGet, "/api/users", admin, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin listing users, got %d", rec.Code)
	}
	if rec := call(t, handler, http.MethodPut, "/api/investments/summary", admin, map[string]any{}); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for admin saving summary, got %d", rec.Code)
	}
}

func TestModulePermissionDeniesExplicitlyDisabledModule(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	super := login(t, handler, "superadmin", "super123")
	rec := call(t, handler, http.MethodPut, "/api/users/usr_seed_pos01/permissions", super, domain.PermissionUpdateRequest{
		Modules: []domain.ModulePermission{{Module: domain.ModulePOS, Allowed: false}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 updating permissions, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	pos := login(t, handler, "pos01", "pos123")
	if rec := call(t, handler, http.MethodGet, "/api/transactions", pos, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 once POS is disabled, got %d", rec.Code)
	}
	if rec := call(t, handler, http.MethodGet, "/api/products", pos, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected other modules to stay open, got %d", rec.Code)
	}
}

func TestExpenseVisibilityGatesListing(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	pos := login(t, handler, "pos01", "pos123")
	if rec := call(t, handler, http.MethodGet, "/api/expenses", pos, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for POS user, got %d", rec.Code)
	}

	finance := login(t, handler, "finance", "finance123")
	if rec := call(t, handler, http.MethodGet, "/api/expenses", finance, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for finance, got %d", rec.Code)
	}
}

func TestExportExpensesReturnsCSVAttachment(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	finance := login(t, handler, "finance", "finance123")

	rec := call(t, handler, http.MethodPost, "/api/expenses", finance, domain.ExpenseRequest{
		Name:       "Bil elektrik",
		Amount:     decimal.RequireFromString("120.50"),
		CategoryID: "exc_seed_utilities",
		Date:       "2026-01-15",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	export := call(t, handler, http.MethodGet, "/api/expenses/export/csv", finance, nil)
	if export.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", export.Code)
	}
	if ct := export.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected csv content type, got %q", ct)
	}
	if cd := export.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Fatalf("expected attachment disposition, got %q", cd)
	}
	if !strings.Contains(export.Body.String(), "Bil elektrik") {
		t.Fatalf("expected expense row in csv, got %s", export.Body.String())
	}
}

func TestAllowanceReportRejectsBadYear(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	finance := login(t, handler, "finance", "finance123")

	if rec := call(t, handler, http.MethodGet, "/api/reports/allowance?year=abc", finance, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec := call(t, handler, http.MethodGet, "/api/reports/allowance?year=2026", finance, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	api := newTestAPI(t)

	rec := call(t, api.Handler(), http.MethodGet, "/api/nope", "", nil)
	if rec.Code != http.StatusNotFound && rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 404 or 401, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json error body, got %q", ct)
	}
}
