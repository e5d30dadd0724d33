package store

import (
	"context"
	"errors"
	"time"

	"kasirpos/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidPayload    = errors.New("invalid payload")
	ErrConflict          = errors.New("conflict")
)

// SaleInput is everything CreateSale needs besides the product rows it
// reads inside its own transaction. Prices and totals are computed there,
// never trusted from the caller.
type SaleInput struct {
	CashierID     int64
	PaymentMethod string
	PaidAmount    int64
	InvoiceNumber string
	CreatedAt     time.Time
	Items         []domain.SaleItemRequest
}

// TransactionFilter scopes and filters a transaction listing. CashierID
// is applied only when Role is RoleCashier; admins see every transaction.
type TransactionFilter struct {
	Role      domain.Role
	CashierID int64
	Search    string
	Limit     int
	Offset    int
}

type Repository interface {
	// Catalog.
	ListCategories(ctx context.Context, q domain.ListQuery) ([]domain.Category, int64, error)
	GetCategoryByID(ctx context.Context, id int64) (*domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	ListProducts(ctx context.Context, q domain.ListQuery) ([]domain.Product, int64, error)
	GetProductByID(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error

	// Sales ledger.
	CreateSale(ctx context.Context, sale SaleInput) (*domain.Transaction, error)
	GetTransactionByID(ctx context.Context, id int64) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]domain.Transaction, int64, error)

	// Accounts.
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	GetUserByID(ctx context.Context, id int64) (*domain.UserAccount, error)
	ListUsers(ctx context.Context, q domain.ListQuery) ([]domain.UserAccount, int64, error)
	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	UpdateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	DeleteUser(ctx context.Context, id int64) error
}
