package domain

import "time"

// Role is the set of account roles the API recognizes. Anything else is
// rejected at login and at query-build time.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCashier Role = "cashier"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleCashier:
		return Role(s), true
	default:
		return "", false
	}
}

type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type CategoryCreateRequest struct {
	Name string `json:"name"`
}

type CategoryUpdateRequest struct {
	Name string `json:"name"`
}

type Product struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Price        int64     `json:"price"`
	Stock        int       `json:"stock"`
	CategoryID   int64     `json:"category_id"`
	CategoryName string    `json:"category_name"`
	CreatedAt    time.Time `json:"created_at"`
}

type ProductCreateRequest struct {
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	Stock      int    `json:"stock"`
	CategoryID int64  `json:"category_id"`
}

type ProductUpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	Price      *int64  `json:"price,omitempty"`
	Stock      *int    `json:"stock,omitempty"`
	CategoryID *int64  `json:"category_id,omitempty"`
}

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type UserUpdateRequest struct {
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
	Role     *string `json:"role,omitempty"`
}

// UserAccount is the internal persistence model for auth credentials.
// PasswordHash never crosses the API boundary.
type UserAccount struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

// Actor identifies the authenticated caller for the duration of a request.
type Actor struct {
	UserID   int64
	Username string
	Role     Role
}

type SaleItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type CreateSaleRequest struct {
	PaymentMethod string            `json:"payment_method"`
	PaidAmount    int64             `json:"paid_amount"`
	Items         []SaleItemRequest `json:"items"`
}

type TransactionItem struct {
	ID            int64  `json:"id"`
	TransactionID int64  `json:"transaction_id"`
	ProductID     int64  `json:"product_id"`
	ProductName   string `json:"product_name"`
	Price         int64  `json:"price"`
	Quantity      int    `json:"quantity"`
	Subtotal      int64  `json:"subtotal"`
}

type Transaction struct {
	ID              int64             `json:"id"`
	InvoiceNumber   string            `json:"invoice_number"`
	CashierID       int64             `json:"cashier_id"`
	CashierUsername string            `json:"cashier_username"`
	TotalAmount     int64             `json:"total_amount"`
	PaidAmount      int64             `json:"paid_amount"`
	ChangeAmount    int64             `json:"change_amount"`
	PaymentMethod   string            `json:"payment_method"`
	Status          string            `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	Items           []TransactionItem `json:"items"`
}

// ListQuery carries the common list parameters after defaulting:
// Page >= 1, Limit >= 1, Offset = (Page-1)*Limit.
type ListQuery struct {
	Page   int
	Limit  int
	Offset int
	Search string
}

type Pagination struct {
	CurrentPage int   `json:"current_page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int64 `json:"total_pages"`
}

const (
	TxStatusPaid      = "paid"
	TxStatusCancelled = "cancelled"
)

const (
	PaymentCash   = "cash"
	PaymentDebit  = "debit"
	PaymentCredit = "credit"
)
