package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kasirpos/internal/cache"
	"kasirpos/internal/domain"
	"kasirpos/internal/service"
	"kasirpos/internal/store/memory"
)

func newTestAPI(t *testing.T) *API {
	t.Helper()
	svc := service.New(memory.NewSeeded(), cache.NoopCatalogCache{}, 5*time.Second)
	auth := NewAuthManager(testSecret, time.Hour)
	return New(svc, auth, "http://127.0.0.1:3000")
}

func doJSON(t *testing.T, api *API, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload failed: %v", err)
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
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	return res
}

func login(t *testing.T, api *API, username, password string) string {
	t.Helper()
	res := doJSON(t, api, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Username: username,
		Password: password,
	})
	if res.Code != http.StatusOK {
		t.Fatalf("login as %s failed, status %d: %s", username, res.Code, res.Body.String())
	}
	var envelope struct {
		Data domain.LoginResponse `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	if strings.TrimSpace(envelope.Data.AccessToken) == "" {
		t.Fatalf("expected access token in login response")
	}
	return envelope.Data.AccessToken
}

func firstProductID(t *testing.T, api *API, token string) int64 {
	t.Helper()
	res := doJSON(t, api, http.MethodGet, "/api/v1/products?limit=1", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("list products failed, status %d", res.Code)
	}
	var envelope struct {
		Data []domain.Product `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode products failed: %v", err)
	}
	if len(envelope.Data) == 0 {
		t.Fatalf("expected at least one seeded product")
	}
	return envelope.Data[0].ID
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	api := newTestAPI(t)
	res := doJSON(t, api, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Username: "admin",
		Password: "wrong-pass",
	})
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	var payload map[string]any
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error body failed: %v", err)
	}
	if payload["status"] != "error" {
		t.Fatalf("expected error status in body, got %v", payload)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)

	res := doJSON(t, api, http.MethodGet, "/api/v1/products", "", nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/products", "garbage-token", nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", res.Code)
	}
}

func TestCreateSaleEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "cashier", "cashier123")
	productID := firstProductID(t, api, token)

	res := doJSON(t, api, http.MethodPost, "/api/v1/transactions", token, domain.CreateSaleRequest{
		PaymentMethod: "cash",
		PaidAmount:    1_000_000,
		Items:         []domain.SaleItemRequest{{ProductID: productID, Quantity: 2}},
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}

	var envelope struct {
		Status string             `json:"status"`
		Data   domain.Transaction `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode transaction failed: %v", err)
	}
	if envelope.Status != "success" {
		t.Fatalf("expected success status, got %q", envelope.Status)
	}
	if envelope.Data.ID < 1 || len(envelope.Data.Items) != 1 {
		t.Fatalf("unexpected transaction payload: %+v", envelope.Data)
	}
	if envelope.Data.ChangeAmount != 1_000_000-envelope.Data.TotalAmount {
		t.Fatalf("change %d inconsistent with paid and total %d", envelope.Data.ChangeAmount, envelope.Data.TotalAmount)
	}

	fetch := doJSON(t, api, http.MethodGet, fmt.Sprintf("/api/v1/transactions/%d", envelope.Data.ID), token, nil)
	if fetch.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching own transaction, got %d", fetch.Code)
	}
}

func TestCreateSaleInsufficientStockReturns409(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "cashier", "cashier123")
	productID := firstProductID(t, api, token)

	res := doJSON(t, api, http.MethodPost, "/api/v1/transactions", token, domain.CreateSaleRequest{
		PaymentMethod: "cash",
		PaidAmount:    100_000_000,
		Items:         []domain.SaleItemRequest{{ProductID: productID, Quantity: 100000}},
	})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.Code, res.Body.String())
	}
}

func TestCreateSaleRejectsUnknownFields(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "cashier", "cashier123")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions",
		strings.NewReader(`{"payment_method":"cash","paid_amount":1000,"items":[],"discount":5}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", res.Code)
	}
}

func TestListTransactionsEnvelopeCarriesPagination(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "cashier", "cashier123")
	productID := firstProductID(t, api, token)

	for i := 0; i < 12; i++ {
		res := doJSON(t, api, http.MethodPost, "/api/v1/transactions", token, domain.CreateSaleRequest{
			PaymentMethod: "cash",
			PaidAmount:    1_000_000,
			Items:         []domain.SaleItemRequest{{ProductID: productID, Quantity: 1}},
		})
		if res.Code != http.StatusCreated {
			t.Fatalf("sale %d failed, status %d", i, res.Code)
		}
	}

	res := doJSON(t, api, http.MethodGet, "/api/v1/transactions?page=2&limit=5", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var envelope struct {
		Data       []domain.Transaction `json:"data"`
		Pagination domain.Pagination    `json:"pagination"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode listing failed: %v", err)
	}
	if len(envelope.Data) != 5 {
		t.Fatalf("expected 5 transactions on page 2, got %d", len(envelope.Data))
	}
	if envelope.Pagination.CurrentPage != 2 || envelope.Pagination.Limit != 5 {
		t.Fatalf("unexpected pagination: %+v", envelope.Pagination)
	}
	if envelope.Pagination.Total != 12 || envelope.Pagination.TotalPages != 3 {
		t.Fatalf("expected total 12 over 3 pages, got %+v", envelope.Pagination)
	}
}

func TestCashierCannotManageCatalogOrUsers(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "cashier", "cashier123")

	res := doJSON(t, api, http.MethodPost, "/api/v1/products", token, domain.ProductCreateRequest{
		Name: "Barang Gelap", Price: 1000, Stock: 1, CategoryID: 1,
	})
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 creating product as cashier, got %d", res.Code)
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/users", token, nil)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 listing users as cashier, got %d", res.Code)
	}
}

func TestAdminUserLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "admin", "admin123")

	res := doJSON(t, api, http.MethodPost, "/api/v1/users", token, domain.UserCreateRequest{
		Username: "kasirweb",
		Password: "kasirweb-1",
		Role:     "cashier",
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	var envelope struct {
		Data domain.User `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode user failed: %v", err)
	}

	dup := doJSON(t, api, http.MethodPost, "/api/v1/users", token, domain.UserCreateRequest{
		Username: "kasirweb",
		Password: "kasirweb-2",
		Role:     "cashier",
	})
	if dup.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate username, got %d", dup.Code)
	}

	del := doJSON(t, api, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", envelope.Data.ID), token, nil)
	if del.Code != http.StatusOK {
		t.Fatalf("expected 200 deleting user, got %d", del.Code)
	}
}

func TestMeReturnsAuthenticatedProfile(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "admin", "admin123")

	res := doJSON(t, api, http.MethodGet, "/api/v1/auth/me", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var envelope struct {
		Data domain.User `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode profile failed: %v", err)
	}
	if envelope.Data.Username != "admin" || envelope.Data.Role != domain.RoleAdmin {
		t.Fatalf("unexpected profile: %+v", envelope.Data)
	}
}

func TestPathIDValidation(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "admin", "admin123")

	for _, path := range []string{
		"/api/v1/products/abc",
		"/api/v1/products/0",
		"/api/v1/products/1/extra",
	} {
		res := doJSON(t, api, http.MethodGet, path, token, nil)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, res.Code)
		}
	}

	res := doJSON(t, api, http.MethodGet, "/api/v1/transactions/999999", token, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing transaction, got %d", res.Code)
	}
}
