// Package pricing computes order lines and totals from product snapshots.
// It is pure: callers hand it the product state they read inside their own
// unit of work, and it reports violations as typed errors the stores map
// onto their sentinel errors.
package pricing

import (
	"fmt"

	"kasirpos/internal/domain"
)

// Snapshot is the slice of a product the calculator needs: identity, the
// unit price to freeze into the line, and the stock visible at read time.
type Snapshot struct {
	ID    int64
	Name  string
	Price int64
	Stock int
}

// Line is one priced order line. Subtotal is always Price * Quantity.
type Line struct {
	ProductID   int64
	ProductName string
	Price       int64
	Quantity    int
	Subtotal    int64
}

type NotFoundError struct {
	ProductID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

type StockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("product %d: requested %d, only %d in stock", e.ProductID, e.Requested, e.Available)
}

type PaymentError struct {
	Total int64
	Paid  int64
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("paid amount %d is less than total %d", e.Paid, e.Total)
}

// ValidateRequest rejects structurally invalid sale requests before any
// storage work: empty carts, non-positive quantities, unknown payment
// methods.
func ValidateRequest(req domain.CreateSaleRequest) error {
	if len(req.Items) == 0 {
		return fmt.Errorf("items must not be empty")
	}
	for _, item := range req.Items {
		if item.ProductID <= 0 {
			return fmt.Errorf("product_id must be positive")
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("quantity for product %d must be positive", item.ProductID)
		}
	}
	switch req.PaymentMethod {
	case domain.PaymentCash, domain.PaymentDebit, domain.PaymentCredit:
	default:
		return fmt.Errorf("payment method %q is not one of cash, debit, credit", req.PaymentMethod)
	}
	if req.PaidAmount < 0 {
		return fmt.Errorf("paid_amount must not be negative")
	}
	return nil
}

// PriceOrder turns requested items into priced lines against the given
// snapshots and returns the order total. Requested quantities are checked
// against snapshot stock cumulatively, so two lines for the same product
// cannot together exceed what one of them could.
func PriceOrder(lookup func(productID int64) (Snapshot, bool), items []domain.SaleItemRequest) ([]Line, int64, error) {
	lines := make([]Line, 0, len(items))
	consumed := make(map[int64]int, len(items))
	var total int64
	for _, item := range items {
		snap, ok := lookup(item.ProductID)
		if !ok {
			return nil, 0, &NotFoundError{ProductID: item.ProductID}
		}
		consumed[item.ProductID] += item.Quantity
		if consumed[item.ProductID] > snap.Stock {
			return nil, 0, &StockError{
				ProductID: item.ProductID,
				Requested: consumed[item.ProductID],
				Available: snap.Stock,
			}
		}
		subtotal := snap.Price * int64(item.Quantity)
		lines = append(lines, Line{
			ProductID:   item.ProductID,
			ProductName: snap.Name,
			Price:       snap.Price,
			Quantity:    item.Quantity,
			Subtotal:    subtotal,
		})
		total += subtotal
	}
	return lines, total, nil
}

// Change validates the tendered amount against the total and returns the
// change due. Failure carries both figures for the API error message.
func Change(total, paid int64) (int64, error) {
	if paid < total {
		return 0, &PaymentError{Total: total, Paid: paid}
	}
	return paid - total, nil
}
