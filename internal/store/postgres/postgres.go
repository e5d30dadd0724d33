package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"kasirpos/internal/domain"
	"kasirpos/internal/pricing"
	"kasirpos/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListCategories(ctx context.Context, q domain.ListQuery) ([]domain.Category, int64, error) {
	where := ""
	args := []any{}
	if q.Search != "" {
		where = "WHERE name ILIKE $1"
		args = append(args, "%"+q.Search+"%")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT id, name, created_at
		FROM categories
		%s
		ORDER BY name ASC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, q.Limit)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, 0, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return categories, total, nil
}

func (s *Store) GetCategoryByID(ctx context.Context, id int64) (*domain.Category, error) {
	var c domain.Category
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at
		FROM categories
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO categories (name, created_at)
		VALUES ($1, now())
		RETURNING id, created_at
	`, category.Name).Scan(&category.ID, &category.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: category %q already exists", store.ErrConflict, category.Name)
		}
		return nil, err
	}
	category.CreatedAt = category.CreatedAt.UTC()
	created := category
	return &created, nil
}

func (s *Store) UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE categories
		SET name = $2
		WHERE id = $1
	`, category.ID, category.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: category %q already exists", store.ErrConflict, category.Name)
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetCategoryByID(ctx, category.ID)
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: category %d still has products", store.ErrConflict, id)
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context, q domain.ListQuery) ([]domain.Product, int64, error) {
	where := ""
	args := []any{}
	if q.Search != "" {
		where = "WHERE p.name ILIKE $1"
		args = append(args, "%"+q.Search+"%")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM products p
		`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT p.id, p.name, p.price::text, p.stock, p.category_id, c.name, p.created_at
		FROM products p
		JOIN categories c ON c.id = p.category_id
		%s
		ORDER BY p.name ASC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, q.Limit)
	for rows.Next() {
		var p domain.Product
		var price string
		if err := rows.Scan(&p.ID, &p.Name, &price, &p.Stock, &p.CategoryID, &p.CategoryName, &p.CreatedAt); err != nil {
			return nil, 0, err
		}
		p.Price = parseAmount(price, "products.price", p.ID)
		p.CreatedAt = p.CreatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (s *Store) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	var price string
	err := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.name, p.price::text, p.stock, p.category_id, c.name, p.created_at
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1
	`, id).Scan(&p.ID, &p.Name, &price, &p.Stock, &p.CategoryID, &p.CategoryName, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	p.Price = parseAmount(price, "products.price", p.ID)
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (name, price, stock, category_id, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id
	`, product.Name, product.Price, product.Stock, product.CategoryID).Scan(&product.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: product %q already exists", store.ErrConflict, product.Name)
		}
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: category %d", store.ErrNotFound, product.CategoryID)
		}
		return nil, err
	}
	return s.GetProductByID(ctx, product.ID)
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, price = $3, stock = $4, category_id = $5
		WHERE id = $1
	`, product.ID, product.Name, product.Price, product.Stock, product.CategoryID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: product %q already exists", store.ErrConflict, product.Name)
		}
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: category %d", store.ErrNotFound, product.CategoryID)
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetProductByID(ctx, product.ID)
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CreateSale runs the whole sale in one transaction: read price and stock
// for every requested product, price the order, then reserve stock with a
// conditional decrement per line. A decrement that matches no row means
// another sale took the stock first; the transaction rolls back and
// nothing is written.
func (s *Store) CreateSale(ctx context.Context, sale store.SaleInput) (*domain.Transaction, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var cashierUsername string
	err = pgTx.QueryRowContext(ctx, `
		SELECT username FROM users WHERE id = $1
	`, sale.CashierID).Scan(&cashierUsername)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: cashier %d", store.ErrNotFound, sale.CashierID)
		}
		return nil, err
	}

	ids := uniqueProductIDs(sale.Items)
	rows, err := pgTx.QueryContext(ctx, `
		SELECT id, name, price::text, stock
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	snapshots := make(map[int64]pricing.Snapshot, len(ids))
	for rows.Next() {
		var snap pricing.Snapshot
		var price string
		if err := rows.Scan(&snap.ID, &snap.Name, &price, &snap.Stock); err != nil {
			_ = rows.Close()
			return nil, err
		}
		snap.Price = parseAmount(price, "products.price", snap.ID)
		snapshots[snap.ID] = snap
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	lines, total, err := pricing.PriceOrder(func(productID int64) (pricing.Snapshot, bool) {
		snap, ok := snapshots[productID]
		return snap, ok
	}, sale.Items)
	if err != nil {
		return nil, wrapPricingError(err)
	}
	change, err := pricing.Change(total, sale.PaidAmount)
	if err != nil {
		return nil, wrapPricingError(err)
	}

	for _, line := range lines {
		res, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $1
			WHERE id = $2 AND stock >= $1
		`, line.Quantity, line.ProductID)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			var current int
			if scanErr := pgTx.QueryRowContext(ctx, `
				SELECT stock FROM products WHERE id = $1
			`, line.ProductID).Scan(&current); scanErr != nil {
				current = 0
			}
			return nil, fmt.Errorf("%w: product %d: requested %d, only %d in stock",
				store.ErrInsufficientStock, line.ProductID, line.Quantity, current)
		}
	}

	createdAt := sale.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	tx := domain.Transaction{
		InvoiceNumber:   sale.InvoiceNumber,
		CashierID:       sale.CashierID,
		CashierUsername: cashierUsername,
		TotalAmount:     total,
		PaidAmount:      sale.PaidAmount,
		ChangeAmount:    change,
		PaymentMethod:   sale.PaymentMethod,
		Status:          domain.TxStatusPaid,
		CreatedAt:       createdAt,
	}
	err = pgTx.QueryRowContext(ctx, `
		INSERT INTO transactions (invoice_number, cashier_id, total_amount, paid_amount, change_amount, payment_method, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`, tx.InvoiceNumber, tx.CashierID, tx.TotalAmount, tx.PaidAmount, tx.ChangeAmount, tx.PaymentMethod, tx.Status, tx.CreatedAt).Scan(&tx.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: invoice %s already recorded", store.ErrConflict, tx.InvoiceNumber)
		}
		return nil, err
	}

	tx.Items = make([]domain.TransactionItem, 0, len(lines))
	for _, line := range lines {
		item := domain.TransactionItem{
			TransactionID: tx.ID,
			ProductID:     line.ProductID,
			ProductName:   line.ProductName,
			Price:         line.Price,
			Quantity:      line.Quantity,
			Subtotal:      line.Subtotal,
		}
		err := pgTx.QueryRowContext(ctx, `
			INSERT INTO transaction_items (transaction_id, product_id, product_name, price, quantity, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id
		`, item.TransactionID, item.ProductID, item.ProductName, item.Price, item.Quantity, item.Subtotal).Scan(&item.ID)
		if err != nil {
			return nil, err
		}
		tx.Items = append(tx.Items, item)
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Store) GetTransactionByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	var tx domain.Transaction
	var total, paid, change string
	err := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.invoice_number, t.cashier_id, u.username,
			t.total_amount::text, t.paid_amount::text, t.change_amount::text,
			t.payment_method, t.status, t.created_at
		FROM transactions t
		JOIN users u ON u.id = t.cashier_id
		WHERE t.id = $1
	`, id).Scan(&tx.ID, &tx.InvoiceNumber, &tx.CashierID, &tx.CashierUsername,
		&total, &paid, &change, &tx.PaymentMethod, &tx.Status, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	tx.TotalAmount = parseAmount(total, "transactions.total_amount", tx.ID)
	tx.PaidAmount = parseAmount(paid, "transactions.paid_amount", tx.ID)
	tx.ChangeAmount = parseAmount(change, "transactions.change_amount", tx.ID)
	tx.CreatedAt = tx.CreatedAt.UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_id, product_id, product_name, price::text, quantity, subtotal::text
		FROM transaction_items
		WHERE transaction_id = $1
		ORDER BY id ASC
	`, tx.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.TransactionItem
		var price, subtotal string
		if err := rows.Scan(&item.ID, &item.TransactionID, &item.ProductID, &item.ProductName, &price, &item.Quantity, &subtotal); err != nil {
			return nil, err
		}
		item.Price = parseAmount(price, "transaction_items.price", item.ID)
		item.Subtotal = parseAmount(subtotal, "transaction_items.subtotal", item.ID)
		tx.Items = append(tx.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &tx, nil
}

// ListTransactions pages over distinct transactions, newest first. The
// data query joins items against a paged id subquery so a multi-item
// transaction never straddles a page boundary, and the count query counts
// transactions, not join rows.
func (s *Store) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]domain.Transaction, int64, error) {
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if filter.Role == domain.RoleCashier {
		args = append(args, filter.CashierID)
		conditions = append(conditions, fmt.Sprintf("cashier_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(invoice_number ILIKE $%d OR status ILIKE $%d OR payment_method ILIKE $%d)", n, n, n))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT t.id, t.invoice_number, t.cashier_id, u.username,
			t.total_amount::text, t.paid_amount::text, t.change_amount::text,
			t.payment_method, t.status, t.created_at,
			ti.id, ti.product_id, ti.product_name, ti.price::text, ti.quantity, ti.subtotal::text
		FROM (
			SELECT id FROM transactions
			%s
			ORDER BY created_at DESC, id DESC
			LIMIT $%d OFFSET $%d
		) page
		JOIN transactions t ON t.id = page.id
		JOIN users u ON u.id = t.cashier_id
		JOIN transaction_items ti ON ti.transaction_id = t.id
		ORDER BY t.created_at DESC, t.id DESC, ti.id ASC
	`, where, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	byID := make(map[int64]*domain.Transaction)
	order := make([]int64, 0, filter.Limit)
	for rows.Next() {
		var txID, cashierID, itemID, productID int64
		var invoice, username, totalStr, paidStr, changeStr, method, status, productName, priceStr, subtotalStr string
		var createdAt time.Time
		var quantity int
		if err := rows.Scan(&txID, &invoice, &cashierID, &username,
			&totalStr, &paidStr, &changeStr, &method, &status, &createdAt,
			&itemID, &productID, &productName, &priceStr, &quantity, &subtotalStr); err != nil {
			return nil, 0, err
		}
		tx, ok := byID[txID]
		if !ok {
			tx = &domain.Transaction{
				ID:              txID,
				InvoiceNumber:   invoice,
				CashierID:       cashierID,
				CashierUsername: username,
				TotalAmount:     parseAmount(totalStr, "transactions.total_amount", txID),
				PaidAmount:      parseAmount(paidStr, "transactions.paid_amount", txID),
				ChangeAmount:    parseAmount(changeStr, "transactions.change_amount", txID),
				PaymentMethod:   method,
				Status:          status,
				CreatedAt:       createdAt.UTC(),
			}
			byID[txID] = tx
			order = append(order, txID)
		}
		tx.Items = append(tx.Items, domain.TransactionItem{
			ID:            itemID,
			TransactionID: txID,
			ProductID:     productID,
			ProductName:   productName,
			Price:         parseAmount(priceStr, "transaction_items.price", itemID),
			Quantity:      quantity,
			Subtotal:      parseAmount(subtotalStr, "transaction_items.subtotal", itemID),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	result := make([]domain.Transaction, 0, len(order))
	for _, id := range order {
		result = append(result, *byID[id])
	}
	return result, total, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	return s.findUser(ctx, "username", username)
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*domain.UserAccount, error) {
	return s.findUser(ctx, "id", id)
}

func (s *Store) findUser(ctx context.Context, column string, value any) (*domain.UserAccount, error) {
	if column != "id" && column != "username" {
		return nil, fmt.Errorf("unsupported lookup column")
	}

	var u domain.UserAccount
	var role string
	query := fmt.Sprintf(`
		SELECT id, username, password_hash, role, created_at
		FROM users
		WHERE %s = $1
	`, column)
	err := s.db.QueryRowContext(ctx, query, value).Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	u.Role = domain.Role(role)
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context, q domain.ListQuery) ([]domain.UserAccount, int64, error) {
	where := ""
	args := []any{}
	if q.Search != "" {
		where = "WHERE username ILIKE $1"
		args = append(args, "%"+q.Search+"%")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT id, username, password_hash, role, created_at
		FROM users
		%s
		ORDER BY username ASC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, q.Limit)
	for rows.Next() {
		var u domain.UserAccount
		var role string
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.CreatedAt); err != nil {
			return nil, 0, err
		}
		u.Role = domain.Role(role)
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash, role, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, created_at
	`, user.Username, user.PasswordHash, string(user.Role)).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: username %q already exists", store.ErrConflict, user.Username)
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	created := user
	return &created, nil
}

func (s *Store) UpdateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET username = $2, password_hash = $3, role = $4
		WHERE id = $1
	`, user.ID, user.Username, user.PasswordHash, string(user.Role))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: username %q already exists", store.ErrConflict, user.Username)
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetUserByID(ctx, user.ID)
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: user %d has recorded transactions", store.ErrConflict, id)
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func uniqueProductIDs(items []domain.SaleItemRequest) []int64 {
	set := make(map[int64]struct{}, len(items))
	for _, item := range items {
		set[item.ProductID] = struct{}{}
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
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

// parseAmount turns a NUMERIC column rendered as text into integer
// currency units. A malformed cell degrades to zero so the listing stays
// available, with a log line naming the offending row.
func parseAmount(raw string, column string, rowID int64) int64 {
	text := raw
	if i := strings.IndexByte(text, '.'); i >= 0 {
		text = text[:i]
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		log.Printf("[postgres-store] unparseable amount in %s (row %d): %q, using 0", column, rowID, raw)
		return 0
	}
	return v
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
