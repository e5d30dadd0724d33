package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"kasirpos/internal/domain"
	"kasirpos/internal/pricing"
	"kasirpos/internal/store"
)

// Store is the in-memory Repository used for dev mode and tests. All
// invariants the postgres store enforces with SQL are enforced here under
// a single mutex, so concurrent sales against the last unit of stock
// resolve the same way.
type Store struct {
	mu               sync.RWMutex
	nextID           int64
	categoriesByID   map[int64]domain.Category
	productsByID     map[int64]domain.Product
	usersByID        map[int64]domain.UserAccount
	transactionsByID map[int64]*domain.Transaction
	transactionOrder []int64
}

func New() *Store {
	return &Store{
		categoriesByID:   make(map[int64]domain.Category),
		productsByID:     make(map[int64]domain.Product),
		usersByID:        make(map[int64]domain.UserAccount),
		transactionsByID: make(map[int64]*domain.Transaction),
	}
}

// NewSeeded returns a store preloaded with dev accounts and a small
// catalog. Credentials come from SEED_ADMIN_PASSWORD and
// SEED_CASHIER_PASSWORD; hardcoded dev defaults are used with a warning
// when unset. Production deployments use PostgreSQL via DATABASE_URL.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}
	for _, u := range []struct {
		username string
		password string
		role     domain.Role
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		id := s.allocID()
		s.usersByID[id] = domain.UserAccount{
			ID:           id,
			Username:     u.username,
			PasswordHash: string(hash),
			Role:         u.role,
			CreatedAt:    now,
		}
	}

	categories := []string{"grocery", "beverage", "snack", "dairy", "household"}
	categoryIDs := make(map[string]int64, len(categories))
	for _, name := range categories {
		id := s.allocID()
		s.categoriesByID[id] = domain.Category{ID: id, Name: name, CreatedAt: now}
		categoryIDs[name] = id
	}

	for _, p := range []struct {
		name     string
		category string
		price    int64
		stock    int
	}{
		{"Mie Goreng Instan", "grocery", 3500, 120},
		{"Telur 10 Butir", "grocery", 26500, 80},
		{"Gula 1kg", "grocery", 17400, 60},
		{"Susu UHT 1L", "dairy", 18900, 45},
		{"Roti Tawar", "dairy", 17800, 30},
		{"Kopi Sachet", "beverage", 2600, 200},
		{"Teh Celup", "beverage", 9800, 75},
		{"Air Mineral 600ml", "beverage", 3900, 150},
		{"Keripik Singkong", "snack", 12800, 90},
		{"Coklat Batang", "snack", 8600, 110},
		{"Sabun Mandi", "household", 7400, 64},
		{"Shampoo Sachet", "household", 3200, 130},
	} {
		id := s.allocID()
		s.productsByID[id] = domain.Product{
			ID:           id,
			Name:         p.name,
			Price:        p.price,
			Stock:        p.stock,
			CategoryID:   categoryIDs[p.category],
			CategoryName: p.category,
			CreatedAt:    now,
		}
	}
	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// allocID requires s.mu to be held (or exclusive access during seeding).
func (s *Store) allocID() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) ListCategories(_ context.Context, q domain.ListQuery) ([]domain.Category, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.Category, 0, len(s.categoriesByID))
	for _, c := range s.categoriesByID {
		if q.Search != "" && !containsFold(c.Name, q.Search) {
			continue
		}
		matched = append(matched, c)
	}
	slices.SortFunc(matched, func(a, b domain.Category) int { return cmpString(a.Name, b.Name) })

	total := int64(len(matched))
	return pageOf(matched, q.Offset, q.Limit), total, nil
}

func (s *Store) GetCategoryByID(_ context.Context, id int64) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categoriesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := c
	return &found, nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.categoriesByID {
		if strings.EqualFold(existing.Name, category.Name) {
			return nil, store.ErrConflict
		}
	}
	category.ID = s.allocID()
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	s.categoriesByID[category.ID] = category
	created := category
	return &created, nil
}

func (s *Store) UpdateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.categoriesByID[category.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	for id, other := range s.categoriesByID {
		if id != category.ID && strings.EqualFold(other.Name, category.Name) {
			return nil, store.ErrConflict
		}
	}
	existing.Name = category.Name
	s.categoriesByID[category.ID] = existing

	for id, p := range s.productsByID {
		if p.CategoryID == category.ID {
			p.CategoryName = category.Name
			s.productsByID[id] = p
		}
	}
	updated := existing
	return &updated, nil
}

func (s *Store) DeleteCategory(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categoriesByID[id]; !ok {
		return store.ErrNotFound
	}
	for _, p := range s.productsByID {
		if p.CategoryID == id {
			return store.ErrConflict
		}
	}
	delete(s.categoriesByID, id)
	return nil
}

func (s *Store) ListProducts(_ context.Context, q domain.ListQuery) ([]domain.Product, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		if q.Search != "" && !containsFold(p.Name, q.Search) {
			continue
		}
		matched = append(matched, p)
	}
	slices.SortFunc(matched, func(a, b domain.Product) int { return cmpString(a.Name, b.Name) })

	total := int64(len(matched))
	return pageOf(matched, q.Offset, q.Limit), total, nil
}

func (s *Store) GetProductByID(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.productsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := p
	return &found, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	category, ok := s.categoriesByID[product.CategoryID]
	if !ok {
		return nil, store.ErrNotFound
	}
	for _, existing := range s.productsByID {
		if strings.EqualFold(existing.Name, product.Name) {
			return nil, store.ErrConflict
		}
	}
	product.ID = s.allocID()
	product.CategoryName = category.Name
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	s.productsByID[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.productsByID[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	category, ok := s.categoriesByID[product.CategoryID]
	if !ok {
		return nil, store.ErrNotFound
	}
	for id, other := range s.productsByID {
		if id != product.ID && strings.EqualFold(other.Name, product.Name) {
			return nil, store.ErrConflict
		}
	}
	product.CategoryName = category.Name
	product.CreatedAt = existing.CreatedAt
	s.productsByID[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.productsByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.productsByID, id)
	return nil
}

// CreateSale applies the whole sale or none of it: lines are priced and
// stock checked against current state, paid is validated against the
// computed total, and only then are the decrements and the transaction
// record applied, all under the write lock.
func (s *Store) CreateSale(_ context.Context, sale store.SaleInput) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, total, err := pricing.PriceOrder(func(productID int64) (pricing.Snapshot, bool) {
		p, ok := s.productsByID[productID]
		if !ok {
			return pricing.Snapshot{}, false
		}
		return pricing.Snapshot{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock}, true
	}, sale.Items)
	if err != nil {
		return nil, wrapPricingError(err)
	}

	change, err := pricing.Change(total, sale.PaidAmount)
	if err != nil {
		return nil, wrapPricingError(err)
	}

	cashier, ok := s.usersByID[sale.CashierID]
	if !ok {
		return nil, store.ErrNotFound
	}

	for _, line := range lines {
		p := s.productsByID[line.ProductID]
		p.Stock -= line.Quantity
		s.productsByID[line.ProductID] = p
	}

	createdAt := sale.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	tx := &domain.Transaction{
		ID:              s.allocID(),
		InvoiceNumber:   sale.InvoiceNumber,
		CashierID:       sale.CashierID,
		CashierUsername: cashier.Username,
		TotalAmount:     total,
		PaidAmount:      sale.PaidAmount,
		ChangeAmount:    change,
		PaymentMethod:   sale.PaymentMethod,
		Status:          domain.TxStatusPaid,
		CreatedAt:       createdAt,
		Items:           make([]domain.TransactionItem, 0, len(lines)),
	}
	for _, line := range lines {
		tx.Items = append(tx.Items, domain.TransactionItem{
			ID:            s.allocID(),
			TransactionID: tx.ID,
			ProductID:     line.ProductID,
			ProductName:   line.ProductName,
			Price:         line.Price,
			Quantity:      line.Quantity,
			Subtotal:      line.Subtotal,
		})
	}

	s.transactionsByID[tx.ID] = tx
	s.transactionOrder = append(s.transactionOrder, tx.ID)
	return cloneTransaction(tx), nil
}

func (s *Store) GetTransactionByID(_ context.Context, id int64) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactionsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *Store) ListTransactions(_ context.Context, filter store.TransactionFilter) ([]domain.Transaction, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*domain.Transaction, 0, len(s.transactionOrder))
	for _, id := range s.transactionOrder {
		tx := s.transactionsByID[id]
		if filter.Role == domain.RoleCashier && tx.CashierID != filter.CashierID {
			continue
		}
		if filter.Search != "" && !matchesSearch(tx, filter.Search) {
			continue
		}
		matched = append(matched, tx)
	}

	// Newest first; insertion order breaks created_at ties.
	slices.Reverse(matched)
	slices.SortStableFunc(matched, func(a, b *domain.Transaction) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return 0
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})

	total := int64(len(matched))
	page := pageOf(matched, filter.Offset, filter.Limit)
	result := make([]domain.Transaction, 0, len(page))
	for _, tx := range page {
		result = append(result, *cloneTransaction(tx))
	}
	return result, total, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.usersByID {
		if u.Username == username {
			found := u
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetUserByID(_ context.Context, id int64) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.usersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := u
	return &found, nil
}

func (s *Store) ListUsers(_ context.Context, q domain.ListQuery) ([]domain.UserAccount, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.UserAccount, 0, len(s.usersByID))
	for _, u := range s.usersByID {
		if q.Search != "" && !containsFold(u.Username, q.Search) {
			continue
		}
		matched = append(matched, u)
	}
	slices.SortFunc(matched, func(a, b domain.UserAccount) int { return cmpString(a.Username, b.Username) })

	total := int64(len(matched))
	return pageOf(matched, q.Offset, q.Limit), total, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.usersByID {
		if existing.Username == user.Username {
			return nil, store.ErrConflict
		}
	}
	user.ID = s.allocID()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByID[user.ID] = user
	created := user
	return &created, nil
}

func (s *Store) UpdateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.usersByID[user.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	for id, other := range s.usersByID {
		if id != user.ID && other.Username == user.Username {
			return nil, store.ErrConflict
		}
	}
	user.CreatedAt = existing.CreatedAt
	s.usersByID[user.ID] = user
	updated := user
	return &updated, nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usersByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.usersByID, id)
	return nil
}

func wrapPricingError(err error) error {
	switch e := err.(type) {
	case *pricing.NotFoundError:
		return fmt.Errorf("%w: %s", store.ErrNotFound, e.Error())
	case *pricing.StockError:
		return fmt.Errorf("%w: %s", store.ErrInsufficientStock, e.Error())
	case *pricing.PaymentError:
		return fmt.Errorf("%w: %s", store.ErrInvalidPayload, e.Error())
	default:
		return err
	}
}

func matchesSearch(tx *domain.Transaction, search string) bool {
	return containsFold(tx.InvoiceNumber, search) ||
		containsFold(tx.Status, search) ||
		containsFold(tx.PaymentMethod, search)
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func pageOf[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneTransaction(src *domain.Transaction) *domain.Transaction {
	clone := *src
	clone.Items = make([]domain.TransactionItem, len(src.Items))
	copy(clone.Items, src.Items)
	return &clone
}
