package store

import (
	"context"
	"errors"

	"github.com/rfaisal87-commits/pure-gold-erp/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

// Repository is the catalog store. Every call is independent; multi-step
// workflows get no transaction spanning calls.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	FindCustomerByName(ctx context.Context, name string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)

	ListBranches(ctx context.Context) ([]domain.Branch, error)
	CreateBranch(ctx context.Context, branch domain.Branch) (*domain.Branch, error)

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	CreateSaleLine(ctx context.Context, line domain.SaleLine) (*domain.SaleLine, error)
	ListRecentSales(ctx context.Context, limit int) ([]domain.SaleSummary, error)

	CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	CreatePurchaseLine(ctx context.Context, line domain.PurchaseLine) (*domain.PurchaseLine, error)

	GetStockLevel(ctx context.Context, productID string, branchID string) (*domain.StockLevel, error)
	// EnsureStockLevel inserts a zero row for (product, branch) and leaves an
	// existing row untouched.
	EnsureStockLevel(ctx context.Context, productID string, branchID string) error
	// AdjustStock applies delta in a single step. The result is floored at zero
	// and a missing row is created with max(delta, 0).
	AdjustStock(ctx context.Context, productID string, branchID string, delta int) (*domain.StockLevel, error)
	ListStockLevels(ctx context.Context) ([]domain.StockReportRow, error)

	GetCounts(ctx context.Context) (domain.DashboardCounts, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, email string, password string) error
}

// FloorStock returns current+delta clamped at zero.
func FloorStock(current int, delta int) int {
	next := current + delta
	if next < 0 {
		return 0
	}
	return next
}
