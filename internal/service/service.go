package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"kasirpos/internal/cache"
	"kasirpos/internal/domain"
	"kasirpos/internal/pricing"
	"kasirpos/internal/store"
	"kasirpos/internal/xid"
)

// ErrForbidden marks operations the authenticated actor's role does not
// allow.
var ErrForbidden = errors.New("forbidden")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo       store.Repository
	catalog    cache.CatalogCache
	catalogTTL time.Duration
	now        func() time.Time
	invoiceFn  func() string
}

type Option func(*Service)

// WithClock overrides the transaction timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithInvoiceGenerator overrides invoice number generation.
func WithInvoiceGenerator(gen func() string) Option {
	return func(s *Service) { s.invoiceFn = gen }
}

func New(repo store.Repository, catalog cache.CatalogCache, catalogTTL time.Duration, opts ...Option) *Service {
	if catalog == nil {
		catalog = cache.NoopCatalogCache{}
	}
	if catalogTTL <= 0 {
		catalogTTL = 30 * time.Second
	}

	s := &Service{
		repo:       repo,
		catalog:    catalog,
		catalogTTL: catalogTTL,
		now:        func() time.Time { return time.Now().UTC() },
		invoiceFn:  xid.Invoice,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeListQuery applies the listing defaults: page 1, limit 10, limit
// capped at 100 rows.
func NormalizeListQuery(page, limit int, search string) domain.ListQuery {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return domain.ListQuery{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
		Search: strings.TrimSpace(search),
	}
}

func paginationFor(q domain.ListQuery, total int64) domain.Pagination {
	pages := total / int64(q.Limit)
	if total%int64(q.Limit) != 0 {
		pages++
	}
	return domain.Pagination{
		CurrentPage: q.Page,
		Limit:       q.Limit,
		Total:       total,
		TotalPages:  pages,
	}
}

func requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, fmt.Errorf("%w: no authenticated actor", ErrForbidden)
	}
	return actor, nil
}

func requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Actor{}, err
	}
	if actor.Role != domain.RoleAdmin {
		return domain.Actor{}, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return actor, nil
}

func (s *Service) ListCategories(ctx context.Context, q domain.ListQuery) ([]domain.Category, domain.Pagination, error) {
	categories, total, err := s.repo.ListCategories(ctx, q)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	return categories, paginationFor(q, total), nil
}

func (s *Service) GetCategory(ctx context.Context, id int64) (domain.Category, error) {
	category, err := s.repo.GetCategoryByID(ctx, id)
	if err != nil {
		return domain.Category{}, err
	}
	return *category, nil
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryCreateRequest) (domain.Category, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Category{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Category{}, fmt.Errorf("%w: category name required", store.ErrInvalidPayload)
	}

	created, err := s.repo.CreateCategory(ctx, domain.Category{Name: name})
	if err != nil {
		return domain.Category{}, err
	}
	return *created, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id int64, req domain.CategoryUpdateRequest) (domain.Category, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Category{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Category{}, fmt.Errorf("%w: category name required", store.ErrInvalidPayload)
	}

	updated, err := s.repo.UpdateCategory(ctx, domain.Category{ID: id, Name: name})
	if err != nil {
		return domain.Category{}, err
	}
	s.invalidateCatalog(ctx)
	return *updated, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.invalidateCatalog(ctx)
	return nil
}

func (s *Service) ListProducts(ctx context.Context, q domain.ListQuery) ([]domain.Product, domain.Pagination, error) {
	key := fmt.Sprintf("p%d:l%d:s%s", q.Page, q.Limit, strings.ToLower(q.Search))
	if page, ok, err := s.catalog.Get(ctx, key); err == nil && ok {
		return page.Products, paginationFor(q, page.Total), nil
	} else if err != nil {
		log.Printf("[service] WARN: catalog cache read failed: %v", err)
	}

	products, total, err := s.repo.ListProducts(ctx, q)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	if err := s.catalog.Set(ctx, key, &cache.CatalogPage{Products: products, Total: total}, s.catalogTTL); err != nil {
		log.Printf("[service] WARN: catalog cache write failed: %v", err)
	}
	return products, paginationFor(q, total), nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Product{}, fmt.Errorf("%w: product name required", store.ErrInvalidPayload)
	}
	if req.Price < 0 {
		return domain.Product{}, fmt.Errorf("%w: price must not be negative", store.ErrInvalidPayload)
	}
	if req.Stock < 0 {
		return domain.Product{}, fmt.Errorf("%w: stock must not be negative", store.ErrInvalidPayload)
	}
	if req.CategoryID < 1 {
		return domain.Product{}, fmt.Errorf("%w: category_id required", store.ErrInvalidPayload)
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:       req.Name,
		Price:      req.Price,
		Stock:      req.Stock,
		CategoryID: req.CategoryID,
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.invalidateCatalog(ctx)
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (domain.Product, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: product name required", store.ErrInvalidPayload)
		}
		updated.Name = name
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return domain.Product{}, fmt.Errorf("%w: price must not be negative", store.ErrInvalidPayload)
		}
		updated.Price = *req.Price
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return domain.Product{}, fmt.Errorf("%w: stock must not be negative", store.ErrInvalidPayload)
		}
		updated.Stock = *req.Stock
	}
	if req.CategoryID != nil {
		if *req.CategoryID < 1 {
			return domain.Product{}, fmt.Errorf("%w: category_id required", store.ErrInvalidPayload)
		}
		updated.CategoryID = *req.CategoryID
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	s.invalidateCatalog(ctx)
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidateCatalog(ctx)
	return nil
}

// CreateSale validates the request shape, then hands the sale to the
// repository, which prices and commits it in one unit of work. The cashier
// is always the authenticated actor.
func (s *Service) CreateSale(ctx context.Context, req domain.CreateSaleRequest) (domain.Transaction, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Transaction{}, err
	}
	if err := pricing.ValidateRequest(req); err != nil {
		return domain.Transaction{}, fmt.Errorf("%w: %s", store.ErrInvalidPayload, err.Error())
	}

	created, err := s.repo.CreateSale(ctx, store.SaleInput{
		CashierID:     actor.UserID,
		PaymentMethod: req.PaymentMethod,
		PaidAmount:    req.PaidAmount,
		InvoiceNumber: s.invoiceFn(),
		CreatedAt:     s.now(),
		Items:         req.Items,
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	s.invalidateCatalog(ctx)
	return *created, nil
}

// ListTransactions scopes the listing by the actor's role: admins see all
// transactions, cashiers only their own.
func (s *Service) ListTransactions(ctx context.Context, q domain.ListQuery) ([]domain.Transaction, domain.Pagination, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, domain.Pagination{}, err
	}

	transactions, total, err := s.repo.ListTransactions(ctx, store.TransactionFilter{
		Role:      actor.Role,
		CashierID: actor.UserID,
		Search:    q.Search,
		Limit:     q.Limit,
		Offset:    q.Offset,
	})
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	return transactions, paginationFor(q, total), nil
}

func (s *Service) GetTransaction(ctx context.Context, id int64) (domain.Transaction, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Transaction{}, err
	}
	tx, err := s.repo.GetTransactionByID(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	if actor.Role == domain.RoleCashier && tx.CashierID != actor.UserID {
		return domain.Transaction{}, fmt.Errorf("%w: transaction belongs to another cashier", ErrForbidden)
	}
	return *tx, nil
}

func (s *Service) ListUsers(ctx context.Context, q domain.ListQuery) ([]domain.User, domain.Pagination, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, domain.Pagination{}, err
	}

	accounts, total, err := s.repo.ListUsers(ctx, q)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	users := make([]domain.User, 0, len(accounts))
	for _, account := range accounts {
		users = append(users, toUser(account))
	}
	return users, paginationFor(q, total), nil
}

func (s *Service) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.User, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.User{}, err
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		return domain.User{}, fmt.Errorf("%w: username required", store.ErrInvalidPayload)
	}
	if len(req.Password) < 8 {
		return domain.User{}, fmt.Errorf("%w: password must be at least 8 characters", store.ErrInvalidPayload)
	}
	role, ok := domain.ParseRole(req.Role)
	if !ok {
		return domain.User{}, fmt.Errorf("%w: role must be admin or cashier", store.ErrInvalidPayload)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}
	created, err := s.repo.CreateUser(ctx, domain.UserAccount{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	})
	if err != nil {
		return domain.User{}, err
	}
	return toUser(*created), nil
}

func (s *Service) UpdateUser(ctx context.Context, id int64, req domain.UserUpdateRequest) (domain.User, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.User{}, err
	}

	existing, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	updated := *existing
	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if username == "" {
			return domain.User{}, fmt.Errorf("%w: username required", store.ErrInvalidPayload)
		}
		updated.Username = username
	}
	if req.Password != nil {
		if len(*req.Password) < 8 {
			return domain.User{}, fmt.Errorf("%w: password must be at least 8 characters", store.ErrInvalidPayload)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return domain.User{}, err
		}
		updated.PasswordHash = string(hash)
	}
	if req.Role != nil {
		role, ok := domain.ParseRole(*req.Role)
		if !ok {
			return domain.User{}, fmt.Errorf("%w: role must be admin or cashier", store.ErrInvalidPayload)
		}
		updated.Role = role
	}

	saved, err := s.repo.UpdateUser(ctx, updated)
	if err != nil {
		return domain.User{}, err
	}
	return toUser(*saved), nil
}

func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return err
	}
	if actor.UserID == id {
		return fmt.Errorf("%w: cannot delete own account", store.ErrInvalidPayload)
	}
	return s.repo.DeleteUser(ctx, id)
}

// Authenticate verifies credentials for login. The same error comes back
// for an unknown username and a wrong password.
func (s *Service) Authenticate(ctx context.Context, username, password string) (domain.UserAccount, error) {
	account, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.UserAccount{}, fmt.Errorf("invalid username or password")
		}
		return domain.UserAccount{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return domain.UserAccount{}, fmt.Errorf("invalid username or password")
	}
	return *account, nil
}

// Me returns the profile of the authenticated actor.
func (s *Service) Me(ctx context.Context) (domain.User, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.User{}, err
	}
	account, err := s.repo.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return domain.User{}, err
	}
	return toUser(*account), nil
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	if err := s.catalog.Invalidate(ctx); err != nil {
		log.Printf("[service] WARN: catalog cache invalidation failed: %v", err)
	}
}

func toUser(account domain.UserAccount) domain.User {
	return domain.User{
		ID:        account.ID,
		Username:  account.Username,
		Role:      account.Role,
		CreatedAt: account.CreatedAt,
	}
}
