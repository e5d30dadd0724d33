package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"kasirpos/internal/cache"
	"kasirpos/internal/domain"
	"kasirpos/internal/store"
	"kasirpos/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	repo := memory.NewSeeded()
	svc := New(repo, cache.NoopCatalogCache{}, 5*time.Second)
	return svc, repo
}

func actorFor(t *testing.T, repo *memory.Store, username string) domain.Actor {
	t.Helper()
	account, err := repo.GetUserByUsername(context.Background(), username)
	if err != nil {
		t.Fatalf("seed user %s missing: %v", username, err)
	}
	return domain.Actor{UserID: account.ID, Username: account.Username, Role: account.Role}
}

func productByName(t *testing.T, svc *Service, name string) domain.Product {
	t.Helper()
	products, _, err := svc.ListProducts(context.Background(), NormalizeListQuery(1, 10, name))
	if err != nil {
		t.Fatalf("list products failed: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("expected exactly one product named %q, got %d", name, len(products))
	}
	return products[0]
}

func TestCreateSaleComputesTotalsAndDecrementsStock(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := WithActor(context.Background(), actorFor(t, repo, "cashier"))

	mie := productByName(t, svc, "Mie Goreng Instan")
	telur := productByName(t, svc, "Telur 10 Butir")
	total := 2*mie.Price + telur.Price

	tx, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
		PaymentMethod: "cash",
		PaidAmount:    total + 1500,
		Items: []domain.SaleItemRequest{
			{ProductID: mie.ID, Quantity: 2},
			{ProductID: telur.ID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	if tx.TotalAmount != total {
		t.Fatalf("expected total %d, got %d", total, tx.TotalAmount)
	}
	if tx.ChangeAmount != 1500 {
		t.Fatalf("expected change 1500, got %d", tx.ChangeAmount)
	}
	if tx.Status != domain.TxStatusPaid {
		t.Fatalf("expected status paid, got %s", tx.Status)
	}
	if !strings.HasPrefix(tx.InvoiceNumber, "INV-") {
		t.Fatalf("expected INV- invoice prefix, got %s", tx.InvoiceNumber)
	}
	if len(tx.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(tx.Items))
	}

	var itemSum int64
	for _, item := range tx.Items {
		if item.Subtotal != item.Price*int64(item.Quantity) {
			t.Fatalf("item %d subtotal %d != price %d * qty %d", item.ProductID, item.Subtotal, item.Price, item.Quantity)
		}
		itemSum += item.Subtotal
	}
	if itemSum != tx.TotalAmount {
		t.Fatalf("item subtotals sum %d != total %d", itemSum, tx.TotalAmount)
	}

	after := productByName(t, svc, "Mie Goreng Instan")
	if after.Stock != mie.Stock-2 {
		t.Fatalf("expected stock %d after sale, got %d", mie.Stock-2, after.Stock)
	}
}

func TestCreateSaleInsufficientStockRollsBackEverything(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := WithActor(context.Background(), actorFor(t, repo, "cashier"))

	mie := productByName(t, svc, "Mie Goreng Instan")
	telur := productByName(t, svc, "Telur 10 Butir")

	_, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
		PaymentMethod: "cash",
		PaidAmount:    10_000_000,
		Items: []domain.SaleItemRequest{
			{ProductID: mie.ID, Quantity: 1},
			{ProductID: telur.ID, Quantity: telur.Stock + 1},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if !strings.Contains(err.Error(), fmt.Sprintf("%d", telur.ID)) {
		t.Fatalf("expected product id in error, got %q", err.Error())
	}

	afterMie := productByName(t, svc, "Mie Goreng Instan")
	if afterMie.Stock != mie.Stock {
		t.Fatalf("first item stock changed on failed sale: %d -> %d", mie.Stock, afterMie.Stock)
	}
	transactions, _, err := svc.ListTransactions(ctx, NormalizeListQuery(1, 10, ""))
	if err != nil {
		t.Fatalf("list transactions failed: %v", err)
	}
	if len(transactions) != 0 {
		t.Fatalf("expected no transactions after failed sale, got %d", len(transactions))
	}
}

func TestCreateSaleRejectsUnderpaymentWithBothFigures(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := WithActor(context.Background(), actorFor(t, repo, "cashier"))

	mie := productByName(t, svc, "Mie Goreng Instan")

	_, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
		PaymentMethod: "cash",
		PaidAmount:    mie.Price - 1,
		Items: []domain.SaleItemRequest{
			{ProductID: mie.ID, Quantity: 1},
		},
	})
	if !errors.Is(err, store.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
	if !strings.Contains(err.Error(), fmt.Sprintf("%d", mie.Price)) ||
		!strings.Contains(err.Error(), fmt.Sprintf("%d", mie.Price-1)) {
		t.Fatalf("expected total and paid amounts in error, got %q", err.Error())
	}

	after := productByName(t, svc, "Mie Goreng Instan")
	if after.Stock != mie.Stock {
		t.Fatalf("stock changed on rejected sale: %d -> %d", mie.Stock, after.Stock)
	}
}

func TestCreateSaleRejectsUnknownProduct(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := WithActor(context.Background(), actorFor(t, repo, "cashier"))

	_, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
		PaymentMethod: "cash",
		PaidAmount:    10000,
		Items: []domain.SaleItemRequest{
			{ProductID: 99999, Quantity: 1},
		},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateSaleRejectsBadPaymentMethodAndQuantity(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := WithActor(context.Background(), actorFor(t, repo, "cashier"))

	mie := productByName(t, svc, "Mie Goreng Instan")

	_, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
		PaymentMethod: "bitcoin",
		PaidAmount:    10000,
		Items:         []domain.SaleItemRequest{{ProductID: mie.ID, Quantity: 1}},
	})
	if !errors.Is(err, store.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for payment method, got %v", err)
	}

	_, err = svc.CreateSale(ctx, domain.CreateSaleRequest{
		PaymentMethod: "cash",
		PaidAmount:    10000,
		Items:         []domain.SaleItemRequest{{ProductID: mie.ID, Quantity: 0}},
	})
	if !errors.Is(err, store.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for zero quantity, got %v", err)
	}

	_, err = svc.CreateSale(ctx, domain.CreateSaleRequest{
		PaymentMethod: "cash",
		PaidAmount:    10000,
		Items:         []domain.SaleItemRequest{},
	})
	if !errors.Is(err, store.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for empty items, got %v", err)
	}
}

func TestCreateSaleUsesInjectedClockAndInvoiceGenerator(t *testing.T) {
	repo := memory.NewSeeded()
	fixed := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	svc := New(repo, cache.NoopCatalogCache{}, 5*time.Second,
		WithClock(func() time.Time { return fixed }),
		WithInvoiceGenerator(func() string { return "INV-fixed-token" }),
	)
	ctx := WithActor(context.Background(), actorFor(t, repo, "cashier"))

	mie := productByName(t, svc, "Mie Goreng Instan")
	tx, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
		PaymentMethod: "debit",
		PaidAmount:    mie.Price,
		Items:         []domain.SaleItemRequest{{ProductID: mie.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if tx.InvoiceNumber != "INV-fixed-token" {
		t.Fatalf("expected injected invoice number, got %s", tx.InvoiceNumber)
	}
	if !tx.CreatedAt.Equal(fixed) {
		t.Fatalf("expected injected timestamp, got %s", tx.CreatedAt)
	}
	if tx.ChangeAmount != 0 {
		t.Fatalf("expected zero change on exact payment, got %d", tx.ChangeAmount)
	}
}

func TestListTransactionsScopesByRole(t *testing.T) {
	svc, repo := newTestService(t)
	adminCtx := WithActor(context.Background(), actorFor(t, repo, "admin"))

	second, err := svc.CreateUser(adminCtx, domain.UserCreateRequest{
		Username: "kasirb",
		Password: "kasirb-secret",
		Role:     "cashier",
	})
	if err != nil {
		t.Fatalf("create second cashier failed: %v", err)
	}

	cashierA := actorFor(t, repo, "cashier")
	cashierB := domain.Actor{UserID: second.ID, Username: second.Username, Role: second.Role}
	mie := productByName(t, svc, "Mie Goreng Instan")

	sell := func(actor domain.Actor, n int) {
		ctx := WithActor(context.Background(), actor)
		for i := 0; i < n; i++ {
			_, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
				PaymentMethod: "cash",
				PaidAmount:    mie.Price,
				Items:         []domain.SaleItemRequest{{ProductID: mie.ID, Quantity: 1}},
			})
			if err != nil {
				t.Fatalf("sale for %s failed: %v", actor.Username, err)
			}
		}
	}
	sell(cashierA, 2)
	sell(cashierB, 3)

	forA, paginationA, err := svc.ListTransactions(WithActor(context.Background(), cashierA), NormalizeListQuery(1, 10, ""))
	if err != nil {
		t.Fatalf("list for cashier A failed: %v", err)
	}
	if paginationA.Total != 2 || len(forA) != 2 {
		t.Fatalf("expected cashier A to see 2 transactions, got %d (total %d)", len(forA), paginationA.Total)
	}
	for _, tx := range forA {
		if tx.CashierID != cashierA.UserID {
			t.Fatalf("cashier A saw transaction of cashier %d", tx.CashierID)
		}
	}

	forAdmin, paginationAdmin, err := svc.ListTransactions(adminCtx, NormalizeListQuery(1, 10, ""))
	if err != nil {
		t.Fatalf("list for admin failed: %v", err)
	}
	if paginationAdmin.Total != 5 || len(forAdmin) != 5 {
		t.Fatalf("expected admin to see 5 transactions, got %d (total %d)", len(forAdmin), paginationAdmin.Total)
	}
}

func TestListTransactionsPaginates(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := WithActor(context.Background(), actorFor(t, repo, "cashier"))

	mie := productByName(t, svc, "Mie Goreng Instan")
	for i := 0; i < 25; i++ {
		_, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
			PaymentMethod: "cash",
			PaidAmount:    mie.Price,
			Items:         []domain.SaleItemRequest{{ProductID: mie.ID, Quantity: 1}},
		})
		if err != nil {
			t.Fatalf("sale %d failed: %v", i, err)
		}
	}

	page2, pagination, err := svc.ListTransactions(ctx, NormalizeListQuery(2, 10, ""))
	if err != nil {
		t.Fatalf("list page 2 failed: %v", err)
	}
	if len(page2) != 10 {
		t.Fatalf("expected 10 transactions on page 2, got %d", len(page2))
	}
	if pagination.Total != 25 {
		t.Fatalf("expected total 25, got %d", pagination.Total)
	}
	if pagination.TotalPages != 3 {
		t.Fatalf("expected 3 pages, got %d", pagination.TotalPages)
	}
	if pagination.CurrentPage != 2 || pagination.Limit != 10 {
		t.Fatalf("unexpected pagination metadata: %+v", pagination)
	}

	again, _, err := svc.ListTransactions(ctx, NormalizeListQuery(2, 10, ""))
	if err != nil {
		t.Fatalf("repeat list failed: %v", err)
	}
	if len(again) != len(page2) {
		t.Fatalf("repeated read returned %d rows, first returned %d", len(again), len(page2))
	}
	for i := range again {
		if again[i].ID != page2[i].ID {
			t.Fatalf("repeated read changed ordering at index %d", i)
		}
	}

	page3, _, err := svc.ListTransactions(ctx, NormalizeListQuery(3, 10, ""))
	if err != nil {
		t.Fatalf("list page 3 failed: %v", err)
	}
	if len(page3) != 5 {
		t.Fatalf("expected 5 transactions on page 3, got %d", len(page3))
	}
}

func TestListTransactionsSearchFiltersWithinScope(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := WithActor(context.Background(), actorFor(t, repo, "cashier"))

	mie := productByName(t, svc, "Mie Goreng Instan")
	for _, method := range []string{"cash", "debit", "cash"} {
		_, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
			PaymentMethod: method,
			PaidAmount:    mie.Price,
			Items:         []domain.SaleItemRequest{{ProductID: mie.ID, Quantity: 1}},
		})
		if err != nil {
			t.Fatalf("sale failed: %v", err)
		}
	}

	matches, pagination, err := svc.ListTransactions(ctx, NormalizeListQuery(1, 10, "debit"))
	if err != nil {
		t.Fatalf("search list failed: %v", err)
	}
	if pagination.Total != 1 || len(matches) != 1 {
		t.Fatalf("expected 1 debit transaction, got %d (total %d)", len(matches), pagination.Total)
	}
	if matches[0].PaymentMethod != "debit" {
		t.Fatalf("expected debit match, got %s", matches[0].PaymentMethod)
	}
}

func TestGetTransactionEnforcesOwnership(t *testing.T) {
	svc, repo := newTestService(t)
	adminCtx := WithActor(context.Background(), actorFor(t, repo, "admin"))

	second, err := svc.CreateUser(adminCtx, domain.UserCreateRequest{
		Username: "kasirb",
		Password: "kasirb-secret",
		Role:     "cashier",
	})
	if err != nil {
		t.Fatalf("create second cashier failed: %v", err)
	}

	mie := productByName(t, svc, "Mie Goreng Instan")
	cashierACtx := WithActor(context.Background(), actorFor(t, repo, "cashier"))
	tx, err := svc.CreateSale(cashierACtx, domain.CreateSaleRequest{
		PaymentMethod: "cash",
		PaidAmount:    mie.Price,
		Items:         []domain.SaleItemRequest{{ProductID: mie.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("sale failed: %v", err)
	}

	cashierBCtx := WithActor(context.Background(), domain.Actor{UserID: second.ID, Username: second.Username, Role: second.Role})
	if _, err := svc.GetTransaction(cashierBCtx, tx.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign transaction, got %v", err)
	}
	if _, err := svc.GetTransaction(adminCtx, tx.ID); err != nil {
		t.Fatalf("admin get failed: %v", err)
	}
}

func TestCreateProductRequiresAdmin(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := WithActor(context.Background(), actorFor(t, repo, "cashier"))

	_, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		Name:       "Kerupuk Udang",
		Price:      7000,
		Stock:      30,
		CategoryID: 1,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestUserManagement(t *testing.T) {
	svc, repo := newTestService(t)
	adminCtx := WithActor(context.Background(), actorFor(t, repo, "admin"))

	created, err := svc.CreateUser(adminCtx, domain.UserCreateRequest{
		Username: "kasirbaru",
		Password: "rahasia-123",
		Role:     "cashier",
	})
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	if created.Role != domain.RoleCashier {
		t.Fatalf("expected cashier role, got %s", created.Role)
	}

	if _, err := svc.CreateUser(adminCtx, domain.UserCreateRequest{
		Username: "kasirbaru",
		Password: "rahasia-456",
		Role:     "cashier",
	}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate username, got %v", err)
	}

	if _, err := svc.CreateUser(adminCtx, domain.UserCreateRequest{
		Username: "manager",
		Password: "rahasia-789",
		Role:     "manager",
	}); !errors.Is(err, store.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for unknown role, got %v", err)
	}

	if _, err := svc.Authenticate(context.Background(), "kasirbaru", "rahasia-123"); err != nil {
		t.Fatalf("authenticate new user failed: %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "kasirbaru", "wrong"); err == nil {
		t.Fatalf("expected wrong password to fail")
	}

	admin := actorFor(t, repo, "admin")
	if err := svc.DeleteUser(adminCtx, admin.UserID); !errors.Is(err, store.ErrInvalidPayload) {
		t.Fatalf("expected self-delete rejection, got %v", err)
	}
}

func TestCategoryDeleteBlockedWhileReferenced(t *testing.T) {
	svc, repo := newTestService(t)
	adminCtx := WithActor(context.Background(), actorFor(t, repo, "admin"))

	mie := productByName(t, svc, "Mie Goreng Instan")
	if err := svc.DeleteCategory(adminCtx, mie.CategoryID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict deleting referenced category, got %v", err)
	}
}
