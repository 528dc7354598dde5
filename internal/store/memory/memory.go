package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/rfaisal87-commits/pure-gold-erp/internal/domain"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/store"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/xid"
)

type stockKey struct {
	productID string
	branchID  string
}

type Store struct {
	mu            sync.RWMutex
	products      map[string]domain.Product
	productOrder  []string
	customers     map[string]domain.Customer
	customerOrder []string
	branches      map[string]domain.Branch
	branchOrder   []string
	sales         map[string]domain.Sale
	saleOrder     []string
	saleLines     []domain.SaleLine
	purchases     map[string]domain.Purchase
	purchaseLines []domain.PurchaseLine
	stock         map[stockKey]domain.StockLevel
	stockOrder    []stockKey
	auditLogs     []domain.AuditLog
	usersByEmail  map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		products:     make(map[string]domain.Product),
		customers:    make(map[string]domain.Customer),
		branches:     make(map[string]domain.Branch),
		sales:        make(map[string]domain.Sale),
		purchases:    make(map[string]domain.Purchase),
		stock:        make(map[stockKey]domain.StockLevel),
		auditLogs:    make([]domain.AuditLog, 0, 128),
		usersByEmail: make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store with a default branch, a small jewellery catalog
// with opening stock and one admin account for dev/demo mode. The admin
// password comes from SEED_ADMIN_PASSWORD; a dev default is used otherwise.
func NewSeeded(branchID string) *Store {
	if branchID == "" {
		branchID = "main-branch"
	}
	s := New()
	now := time.Now().UTC()

	s.branches[branchID] = domain.Branch{ID: branchID, Name: "Main", Address: "Faisalabad", CreatedAt: now}
	s.branchOrder = append(s.branchOrder, branchID)

	products := []struct {
		product domain.Product
		qty     int
	}{
		{domain.Product{ID: "prd-ring-22k", SKU: "G-100", Name: "Gold Ring 22K", MetalType: "gold", MetalPurity: "22K", WeightGrams: 4.2, RetailPrice: 100}, 5},
		{domain.Product{ID: "prd-chain-24k", SKU: "G-200", Name: "Gold Chain 24K", MetalType: "gold", MetalPurity: "24K", WeightGrams: 11.6, RetailPrice: 50}, 3},
		{domain.Product{ID: "prd-bangle-21k", SKU: "G-300", Name: "Bangle 21K", MetalType: "gold", MetalPurity: "21K", WeightGrams: 18, RetailPrice: 275}, 2},
		{domain.Product{ID: "prd-earring-silver", SKU: "S-100", Name: "Silver Earrings", MetalType: "silver", MetalPurity: "925", WeightGrams: 3.1, RetailPrice: 12.5}, 10},
	}
	for i, item := range products {
		item.product.CreatedAt = now.Add(time.Duration(i) * time.Millisecond)
		s.products[item.product.ID] = item.product
		s.productOrder = append(s.productOrder, item.product.ID)
		key := stockKey{productID: item.product.ID, branchID: branchID}
		s.stock[key] = domain.StockLevel{ProductID: item.product.ID, BranchID: branchID, Qty: item.qty, UpdatedAt: now}
		s.stockOrder = append(s.stockOrder, key)
	}

	s.usersByEmail = seedUsers()
	return s
}

func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" {
		log.Warn().Str("component", "memory-store").Msg("using default dev credentials; set SEED_ADMIN_PASSWORD to override")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPwd), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal().Err(err).Str("component", "memory-store").Msg("failed to hash seed password")
	}
	email := "admin@puregold.local"
	return map[string]domain.UserAccount{
		email: {
			ID:        "usr-admin",
			Email:     email,
			Password:  string(hash),
			Role:      "admin",
			Active:    true,
			CreatedAt: time.Now().UTC(),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productOrder))
	for i := len(s.productOrder) - 1; i >= 0; i-- {
		products = append(products, s.products[s.productOrder[i]])
	}
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || product.RetailPrice < 0 || product.WeightGrams < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrConflict
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	s.products[product.ID] = product
	s.productOrder = append(s.productOrder, product.ID)
	created := product
	return &created, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customerOrder))
	for i := len(s.customerOrder) - 1; i >= 0; i-- {
		customers = append(customers, s.customers[s.customerOrder[i]])
	}
	return customers, nil
}

// FindCustomerByName matches case-insensitively and returns the oldest match.
func (s *Store) FindCustomerByName(_ context.Context, name string) (*domain.Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.customerOrder {
		customer := s.customers[id]
		if strings.EqualFold(customer.Name, name) {
			found := customer
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.Name = strings.TrimSpace(customer.Name)
	if customer.Name == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	if _, exists := s.customers[customer.ID]; exists {
		return nil, store.ErrConflict
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	s.customers[customer.ID] = customer
	s.customerOrder = append(s.customerOrder, customer.ID)
	created := customer
	return &created, nil
}

func (s *Store) ListBranches(_ context.Context) ([]domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	branches := make([]domain.Branch, 0, len(s.branchOrder))
	for _, id := range s.branchOrder {
		branches = append(branches, s.branches[id])
	}
	return branches, nil
}

func (s *Store) CreateBranch(_ context.Context, branch domain.Branch) (*domain.Branch, error) {
	if strings.TrimSpace(branch.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if branch.ID == "" {
		branch.ID = xid.New("brn")
	}
	if _, exists := s.branches[branch.ID]; exists {
		return nil, store.ErrConflict
	}
	if branch.CreatedAt.IsZero() {
		branch.CreatedAt = time.Now().UTC()
	}
	s.branches[branch.ID] = branch
	s.branchOrder = append(s.branchOrder, branch.ID)
	created := branch
	return &created, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.BranchID == "" || sale.TotalAmount < 0 || sale.PaidAmount < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.branches[sale.BranchID]; !ok {
		return nil, store.ErrNotFound
	}
	if sale.CustomerID != "" {
		if _, ok := s.customers[sale.CustomerID]; !ok {
			return nil, store.ErrNotFound
		}
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	s.sales[sale.ID] = sale
	s.saleOrder = append(s.saleOrder, sale.ID)
	created := sale
	return &created, nil
}

func (s *Store) CreateSaleLine(_ context.Context, line domain.SaleLine) (*domain.SaleLine, error) {
	if line.Qty < 1 || line.UnitPrice < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sales[line.SaleID]; !ok {
		return nil, store.ErrNotFound
	}
	if _, ok := s.products[line.ProductID]; !ok {
		return nil, store.ErrNotFound
	}
	if line.ID == "" {
		line.ID = xid.New("sli")
	}
	s.saleLines = append(s.saleLines, line)
	created := line
	return &created, nil
}

func (s *Store) ListSaleLines(_ context.Context, saleID string) ([]domain.SaleLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := make([]domain.SaleLine, 0, 4)
	for _, line := range s.saleLines {
		if line.SaleID == saleID {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (s *Store) ListRecentSales(_ context.Context, limit int) ([]domain.SaleSummary, error) {
	if limit < 1 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	lineCounts := make(map[string]int, len(s.sales))
	for _, line := range s.saleLines {
		lineCounts[line.SaleID]++
	}

	result := make([]domain.SaleSummary, 0, min(limit, len(s.saleOrder)))
	for i := len(s.saleOrder) - 1; i >= 0 && len(result) < limit; i-- {
		sale := s.sales[s.saleOrder[i]]
		summary := domain.SaleSummary{
			ID:          sale.ID,
			CustomerID:  sale.CustomerID,
			TotalAmount: sale.TotalAmount,
			PaidAmount:  sale.PaidAmount,
			BranchID:    sale.BranchID,
			LineCount:   lineCounts[sale.ID],
			CreatedAt:   sale.CreatedAt,
		}
		if customer, ok := s.customers[sale.CustomerID]; ok {
			summary.CustomerName = customer.Name
		}
		result = append(result, summary)
	}
	return result, nil
}

func (s *Store) CreatePurchase(_ context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.BranchID == "" || purchase.TotalAmount < 0 || purchase.PaidAmount < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.branches[purchase.BranchID]; !ok {
		return nil, store.ErrNotFound
	}
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}
	s.purchases[purchase.ID] = purchase
	created := purchase
	return &created, nil
}

func (s *Store) CreatePurchaseLine(_ context.Context, line domain.PurchaseLine) (*domain.PurchaseLine, error) {
	if line.Qty < 1 || line.UnitPrice < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.purchases[line.PurchaseID]; !ok {
		return nil, store.ErrNotFound
	}
	if _, ok := s.products[line.ProductID]; !ok {
		return nil, store.ErrNotFound
	}
	if line.ID == "" {
		line.ID = xid.New("pli")
	}
	s.purchaseLines = append(s.purchaseLines, line)
	created := line
	return &created, nil
}

func (s *Store) GetStockLevel(_ context.Context, productID string, branchID string) (*domain.StockLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	level, ok := s.stock[stockKey{productID: productID, branchID: branchID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := level
	return &found, nil
}

func (s *Store) EnsureStockLevel(_ context.Context, productID string, branchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkStockRefs(productID, branchID); err != nil {
		return err
	}
	key := stockKey{productID: productID, branchID: branchID}
	if _, ok := s.stock[key]; ok {
		return nil
	}
	s.stock[key] = domain.StockLevel{ProductID: productID, BranchID: branchID, Qty: 0, UpdatedAt: time.Now().UTC()}
	s.stockOrder = append(s.stockOrder, key)
	return nil
}

func (s *Store) AdjustStock(_ context.Context, productID string, branchID string, delta int) (*domain.StockLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkStockRefs(productID, branchID); err != nil {
		return nil, err
	}
	key := stockKey{productID: productID, branchID: branchID}
	level, ok := s.stock[key]
	if ok {
		level.Qty = store.FloorStock(level.Qty, delta)
	} else {
		level = domain.StockLevel{ProductID: productID, BranchID: branchID, Qty: max(delta, 0)}
		s.stockOrder = append(s.stockOrder, key)
	}
	level.UpdatedAt = time.Now().UTC()
	s.stock[key] = level
	updated := level
	return &updated, nil
}

func (s *Store) checkStockRefs(productID string, branchID string) error {
	if productID == "" || branchID == "" {
		return store.ErrInvalidInput
	}
	if _, ok := s.products[productID]; !ok {
		return store.ErrNotFound
	}
	if _, ok := s.branches[branchID]; !ok {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListStockLevels(_ context.Context) ([]domain.StockReportRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]domain.StockReportRow, 0, len(s.stockOrder))
	for _, key := range s.stockOrder {
		level := s.stock[key]
		product := s.products[key.productID]
		rows = append(rows, domain.StockReportRow{
			ProductID:   level.ProductID,
			ProductName: product.Name,
			SKU:         product.SKU,
			BranchID:    level.BranchID,
			BranchName:  s.branches[key.branchID].Name,
			Qty:         level.Qty,
			UpdatedAt:   level.UpdatedAt,
		})
	}

	slices.SortStableFunc(rows, func(a, b domain.StockReportRow) int {
		if a.ProductName == b.ProductName {
			return cmpString(a.BranchName, b.BranchName)
		}
		return cmpString(a.ProductName, b.ProductName)
	})
	return rows, nil
}

func (s *Store) GetCounts(_ context.Context) (domain.DashboardCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.DashboardCounts{
		Products:  len(s.products),
		StockRows: len(s.stock),
		Customers: len(s.customers),
		Sales:     len(s.sales),
	}, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, min(limit, len(s.auditLogs)))
	for i := len(s.auditLogs) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.auditLogs[i])
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(user.Email))
	if email == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByEmail[email]; exists {
		return store.ErrConflict
	}
	user.Email = email
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.Role == "" {
		user.Role = "staff"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByEmail[email] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByEmail))
	for _, user := range s.usersByEmail {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Email, b.Email)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, email string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByEmail[email]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByEmail[email] = user
	return nil
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
