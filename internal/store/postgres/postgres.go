package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/rfaisal87-commits/pure-gold-erp/internal/domain"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/store"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/xid"
)

//go:embed schema.sql
var schemaSQL string

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

// Migrate creates missing tables. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

const productColumns = `id, sku, name, metal_type, metal_purity, weight_grams, retail_price, image_url, created_at`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.MetalType, &p.MetalPurity, &p.WeightGrams, &p.RetailPrice, &p.ImageURL, &p.CreatedAt)
	p.CreatedAt = p.CreatedAt.UTC()
	return p, err
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || product.RetailPrice < 0 || product.WeightGrams < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, product.ID, product.SKU, product.Name, product.MetalType, product.MetalPurity, product.WeightGrams, product.RetailPrice, product.ImageURL, product.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	created := product
	return &created, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, balance, created_at
		FROM customers
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Balance, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) FindCustomerByName(ctx context.Context, name string) (*domain.Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, store.ErrInvalidInput
	}

	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, balance, created_at
		FROM customers
		WHERE lower(name) = lower($1)
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`, name).Scan(&c.ID, &c.Name, &c.Balance, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.Name = strings.TrimSpace(customer.Name)
	if customer.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, balance, created_at)
		VALUES ($1,$2,$3,$4)
	`, customer.ID, customer.Name, customer.Balance, customer.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	created := customer
	return &created, nil
}

func (s *Store) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, created_at
		FROM branches
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	branches := make([]domain.Branch, 0, 4)
	for rows.Next() {
		var b domain.Branch
		if err := rows.Scan(&b.ID, &b.Name, &b.Address, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.CreatedAt = b.CreatedAt.UTC()
		branches = append(branches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return branches, nil
}

func (s *Store) CreateBranch(ctx context.Context, branch domain.Branch) (*domain.Branch, error) {
	if strings.TrimSpace(branch.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if branch.ID == "" {
		branch.ID = xid.New("brn")
	}
	if branch.CreatedAt.IsZero() {
		branch.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO branches (id, name, address, created_at)
		VALUES ($1,$2,$3,$4)
	`, branch.ID, branch.Name, branch.Address, branch.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	created := branch
	return &created, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.BranchID == "" || sale.TotalAmount < 0 || sale.PaidAmount < 0 {
		return nil, store.ErrInvalidInput
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales (id, customer_id, total_amount, paid_amount, branch_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, sale.ID, nullIfEmpty(sale.CustomerID), sale.TotalAmount, sale.PaidAmount, sale.BranchID, sale.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	created := sale
	return &created, nil
}

func (s *Store) CreateSaleLine(ctx context.Context, line domain.SaleLine) (*domain.SaleLine, error) {
	if line.Qty < 1 || line.UnitPrice < 0 {
		return nil, store.ErrInvalidInput
	}
	if line.ID == "" {
		line.ID = xid.New("sli")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sale_items (id, sale_id, product_id, qty, unit_price, amount)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, line.ID, line.SaleID, line.ProductID, line.Qty, line.UnitPrice, line.Amount)
	if err != nil {
		return nil, mapError(err)
	}
	created := line
	return &created, nil
}

func (s *Store) ListRecentSales(ctx context.Context, limit int) ([]domain.SaleSummary, error) {
	if limit < 1 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			s.id,
			COALESCE(s.customer_id, ''),
			COALESCE(c.name, ''),
			s.total_amount,
			s.paid_amount,
			s.branch_id,
			s.created_at,
			(SELECT count(*) FROM sale_items si WHERE si.sale_id = s.id)
		FROM sales s
		LEFT JOIN customers c ON c.id = s.customer_id
		ORDER BY s.created_at DESC, s.id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.SaleSummary, 0, limit)
	for rows.Next() {
		var sale domain.SaleSummary
		if err := rows.Scan(&sale.ID, &sale.CustomerID, &sale.CustomerName, &sale.TotalAmount, &sale.PaidAmount, &sale.BranchID, &sale.CreatedAt, &sale.LineCount); err != nil {
			return nil, err
		}
		sale.CreatedAt = sale.CreatedAt.UTC()
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.BranchID == "" || purchase.TotalAmount < 0 || purchase.PaidAmount < 0 {
		return nil, store.ErrInvalidInput
	}
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchases (id, total_amount, paid_amount, branch_id, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, purchase.ID, purchase.TotalAmount, purchase.PaidAmount, purchase.BranchID, purchase.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	created := purchase
	return &created, nil
}

func (s *Store) CreatePurchaseLine(ctx context.Context, line domain.PurchaseLine) (*domain.PurchaseLine, error) {
	if line.Qty < 1 || line.UnitPrice < 0 {
		return nil, store.ErrInvalidInput
	}
	if line.ID == "" {
		line.ID = xid.New("pli")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchase_items (id, purchase_id, product_id, qty, unit_price, amount)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, line.ID, line.PurchaseID, line.ProductID, line.Qty, line.UnitPrice, line.Amount)
	if err != nil {
		return nil, mapError(err)
	}
	created := line
	return &created, nil
}

func (s *Store) GetStockLevel(ctx context.Context, productID string, branchID string) (*domain.StockLevel, error) {
	var level domain.StockLevel
	err := s.db.QueryRowContext(ctx, `
		SELECT product_id, branch_id, qty, updated_at
		FROM stock
		WHERE product_id = $1 AND branch_id = $2
	`, productID, branchID).Scan(&level.ProductID, &level.BranchID, &level.Qty, &level.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	level.UpdatedAt = level.UpdatedAt.UTC()
	return &level, nil
}

func (s *Store) EnsureStockLevel(ctx context.Context, productID string, branchID string) error {
	if productID == "" || branchID == "" {
		return store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock (product_id, branch_id, qty, updated_at)
		VALUES ($1,$2,0,now())
		ON CONFLICT (product_id, branch_id) DO NOTHING
	`, productID, branchID)
	return mapError(err)
}

// AdjustStock is one conditional upsert so concurrent sales against the same
// row cannot lose each other's decrements.
func (s *Store) AdjustStock(ctx context.Context, productID string, branchID string, delta int) (*domain.StockLevel, error) {
	if productID == "" || branchID == "" {
		return nil, store.ErrInvalidInput
	}

	var level domain.StockLevel
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO stock (product_id, branch_id, qty, updated_at)
		VALUES ($1, $2, GREATEST($3::integer, 0), now())
		ON CONFLICT (product_id, branch_id)
		DO UPDATE SET qty = GREATEST(stock.qty + $3::integer, 0), updated_at = now()
		RETURNING product_id, branch_id, qty, updated_at
	`, productID, branchID, delta).Scan(&level.ProductID, &level.BranchID, &level.Qty, &level.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	level.UpdatedAt = level.UpdatedAt.UTC()
	return &level, nil
}

func (s *Store) ListStockLevels(ctx context.Context) ([]domain.StockReportRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT st.product_id, p.name, p.sku, st.branch_id, COALESCE(b.name, ''), st.qty, st.updated_at
		FROM stock st
		JOIN products p ON p.id = st.product_id
		LEFT JOIN branches b ON b.id = st.branch_id
		ORDER BY p.name ASC, b.name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.StockReportRow, 0, 128)
	for rows.Next() {
		var row domain.StockReportRow
		if err := rows.Scan(&row.ProductID, &row.ProductName, &row.SKU, &row.BranchID, &row.BranchName, &row.Qty, &row.UpdatedAt); err != nil {
			return nil, err
		}
		row.UpdatedAt = row.UpdatedAt.UTC()
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) GetCounts(ctx context.Context) (domain.DashboardCounts, error) {
	var counts domain.DashboardCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM products),
			(SELECT count(*) FROM stock),
			(SELECT count(*) FROM customers),
			(SELECT count(*) FROM sales)
	`).Scan(&counts.Products, &counts.StockRows, &counts.Customers, &counts.Sales)
	return counts, err
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, branch_id, actor_email, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.BranchID, entry.ActorEmail, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, branch_id, actor_email, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.BranchID, &entry.ActorEmail, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Email == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.Role == "" {
		user.Role = "staff"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (id, email, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,true,$5,now())
	`, user.ID, user.Email, user.Password, user.Role, user.CreatedAt)
	return mapError(err)
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, password, role, active, created_at
		FROM app_users
		ORDER BY email ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.ID, &user.Email, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, email string, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE email = $1
	`, email, password)
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

// mapError translates constraint violations into store sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return store.ErrConflict
	case "23503":
		return store.ErrNotFound
	case "23514", "23502":
		return store.ErrInvalidInput
	}
	return err
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
