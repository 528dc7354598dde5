package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/rfaisal87-commits/pure-gold-erp/internal/blob"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/cache"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/domain"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/events"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/invoice"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/logging"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/metrics"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/money"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/pos"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/report"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/store"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/xid"
)

const (
	DefaultMerchantName = "Pure Gold Jewellers Faisalabad"
	recentSalesLimit    = 20
	defaultEventTimeout = 3 * time.Second
	defaultBranchName   = "Main"
	defaultBranchAddr   = "Faisalabad"
)

var (
	ErrEmptyCart           = pos.ErrEmptyCart
	ErrNoInvoice           = pos.ErrNoInvoice
	ErrCheckoutInProgress  = pos.ErrCheckoutInProgress
	ErrSaleNotRecorded     = errors.New("sale was not recorded")
	ErrCustomerNotResolved = errors.New("customer could not be resolved")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Deps are the optional collaborators of Service. Nil members fall back to
// no-op implementations.
type Deps struct {
	Catalog      cache.CatalogCache
	CatalogTTL   time.Duration
	Blobs        blob.Store
	Events       events.Publisher
	Metrics      *metrics.Metrics
	Logger       *zerolog.Logger
	MerchantName string
}

type Service struct {
	repo            store.Repository
	catalog         cache.CatalogCache
	catalogTTL      time.Duration
	blobs           blob.Store
	events          events.Publisher
	metrics         *metrics.Metrics
	log             zerolog.Logger
	validate        *validator.Validate
	merchant        string
	defaultBranchID string
	eventTimeout    time.Duration
	now             func() time.Time
}

func New(repo store.Repository, deps Deps, defaultBranchID string) *Service {
	if defaultBranchID == "" {
		defaultBranchID = "main-branch"
	}
	if deps.Catalog == nil {
		deps.Catalog = cache.NoopCatalogCache{}
	}
	if deps.CatalogTTL <= 0 {
		deps.CatalogTTL = 30 * time.Second
	}
	if deps.Events == nil {
		deps.Events = events.NoopPublisher{}
	}
	if strings.TrimSpace(deps.MerchantName) == "" {
		deps.MerchantName = DefaultMerchantName
	}
	logger := zerolog.Nop()
	if deps.Logger != nil {
		logger = *deps.Logger
	}

	return &Service{
		repo:            repo,
		catalog:         deps.Catalog,
		catalogTTL:      deps.CatalogTTL,
		blobs:           deps.Blobs,
		events:          deps.Events,
		metrics:         deps.Metrics,
		log:             logging.Component(logger, "service"),
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		merchant:        deps.MerchantName,
		defaultBranchID: defaultBranchID,
		eventTimeout:    defaultEventTimeout,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) DefaultBranchID() string {
	return s.defaultBranchID
}

func (s *Service) MerchantName() string {
	return s.merchant
}

// EnsureDefaultBranch creates the Main branch under the configured id when
// the store has no branch at all.
func (s *Service) EnsureDefaultBranch(ctx context.Context) (domain.Branch, error) {
	branches, err := s.repo.ListBranches(ctx)
	if err != nil {
		return domain.Branch{}, err
	}
	for _, branch := range branches {
		if branch.ID == s.defaultBranchID {
			return branch, nil
		}
	}
	if len(branches) > 0 {
		s.log.Warn().Str("branch_id", s.defaultBranchID).Int("branches", len(branches)).
			Msg("configured default branch not found; sales will fail until it exists")
		return domain.Branch{}, fmt.Errorf("default branch %q: %w", s.defaultBranchID, store.ErrNotFound)
	}

	created, err := s.repo.CreateBranch(ctx, domain.Branch{
		ID:      s.defaultBranchID,
		Name:    defaultBranchName,
		Address: defaultBranchAddr,
	})
	if err != nil {
		return domain.Branch{}, err
	}
	s.log.Info().Str("branch_id", created.ID).Msg("created default branch")
	return *created, nil
}

func (s *Service) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	return s.repo.ListBranches(ctx)
}

// ListProducts serves the catalog through the cache. Cache errors degrade to
// a store read.
func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, hit, err := s.catalog.GetProducts(ctx, cache.ProductCatalogKey)
	if err != nil {
		s.log.Warn().Err(err).Msg("catalog cache read failed")
	}
	if hit {
		return products, nil
	}

	products, err = s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.SetProducts(ctx, cache.ProductCatalogKey, products, s.catalogTTL); err != nil {
		s.log.Warn().Err(err).Msg("catalog cache write failed")
	}
	return products, nil
}

// CreateProduct stores the product, uploads its image when one is given and
// opens a zero stock row at the default branch.
func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest, image *domain.ProductImage) (domain.Product, error) {
	req.SKU = strings.TrimSpace(req.SKU)
	req.Name = strings.TrimSpace(req.Name)
	req.MetalType = strings.TrimSpace(req.MetalType)
	req.MetalPurity = strings.TrimSpace(req.MetalPurity)
	if err := s.check(req); err != nil {
		return domain.Product{}, err
	}

	product := domain.Product{
		ID:          xid.New("prd"),
		SKU:         req.SKU,
		Name:        req.Name,
		MetalType:   req.MetalType,
		MetalPurity: req.MetalPurity,
		WeightGrams: req.WeightGrams,
		RetailPrice: req.RetailPrice,
	}

	if image != nil && len(image.Data) > 0 {
		if s.blobs == nil {
			return domain.Product{}, fmt.Errorf("%w: image storage is not configured", store.ErrInvalidInput)
		}
		key := blob.ObjectKey(s.now(), image.FileName)
		if err := s.blobs.Upload(ctx, blob.ProductImagesBucket, key, image.Data); err != nil {
			return domain.Product{}, fmt.Errorf("upload product image: %w", err)
		}
		product.ImageURL = s.blobs.PublicURL(blob.ProductImagesBucket, key)
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	if err := s.repo.EnsureStockLevel(ctx, created.ID, s.defaultBranchID); err != nil {
		s.log.Warn().Err(err).Str("product_id", created.ID).Str("branch_id", s.defaultBranchID).
			Msg("failed to open stock row for new product")
	}
	if err := s.catalog.Invalidate(ctx, cache.ProductCatalogKey); err != nil {
		s.log.Warn().Err(err).Msg("catalog cache invalidate failed")
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("sku=%s,name=%s,price=%s", created.SKU, created.Name, money.Fixed(created.RetailPrice)))
	s.publish(ctx, events.TypeProductCreated, created.ID, created)
	return *created, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.check(req); err != nil {
		return domain.Customer{}, err
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{ID: xid.New("cus"), Name: req.Name})
	if err != nil {
		return domain.Customer{}, err
	}
	s.logAudit(ctx, "customer_create", "customer", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) Dashboard(ctx context.Context) (domain.DashboardCounts, error) {
	return s.repo.GetCounts(ctx)
}

// GoldQuote runs the shop calculator: market = rate x weight, profit =
// market - cost.
func (s *Service) GoldQuote(req domain.GoldQuoteRequest) (domain.GoldQuote, error) {
	if err := s.check(req); err != nil {
		return domain.GoldQuote{}, err
	}
	q := money.QuoteGold(req.RatePerGram, req.WeightGrams, req.CostPrice)
	market := q.MarketValue.Round(2)
	profit := q.Profit.Round(2)
	return domain.GoldQuote{
		MarketValue:   market.InexactFloat64(),
		Profit:        profit.InexactFloat64(),
		MarketDisplay: market.StringFixed(2),
		ProfitDisplay: profit.StringFixed(2),
	}, nil
}

func (s *Service) RecentSales(ctx context.Context) ([]domain.SaleSummary, error) {
	return s.repo.ListRecentSales(ctx, recentSalesLimit)
}

func (s *Service) StockReport(ctx context.Context) ([]domain.StockReportRow, error) {
	return s.repo.ListStockLevels(ctx)
}

// ExportWorkbook returns the sales and stock reports as an XLSX file.
func (s *Service) ExportWorkbook(ctx context.Context) ([]byte, error) {
	sales, err := s.RecentSales(ctx)
	if err != nil {
		return nil, err
	}
	stock, err := s.StockReport(ctx)
	if err != nil {
		return nil, err
	}
	return report.Workbook(sales, stock)
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

func (s *Service) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	products, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return pos.Search(products, query), nil
}

func (s *Service) CartView(session *pos.Session) domain.CartView {
	view := session.View()
	view.Display = money.Format(view.Total)
	return view
}

// AddToCart looks the product up and adds one unit of it to the session cart.
func (s *Service) AddToCart(ctx context.Context, session *pos.Session, req domain.CartAddRequest) (domain.CartView, error) {
	req.ProductID = strings.TrimSpace(req.ProductID)
	if err := s.check(req); err != nil {
		return domain.CartView{}, err
	}
	product, err := s.repo.GetProduct(ctx, req.ProductID)
	if err != nil {
		return domain.CartView{}, err
	}
	if _, err := session.Add(*product); err != nil {
		return domain.CartView{}, err
	}
	return s.CartView(session), nil
}

// Scan matches a decoded barcode against the catalog and adds the first match
// to the cart. An unmatched code leaves the cart unchanged.
func (s *Service) Scan(ctx context.Context, session *pos.Session, req domain.ScanRequest) (domain.ScanResult, error) {
	req.Code = strings.TrimSpace(req.Code)
	if err := s.check(req); err != nil {
		return domain.ScanResult{}, err
	}
	products, err := s.ListProducts(ctx)
	if err != nil {
		return domain.ScanResult{}, err
	}

	result := domain.ScanResult{Code: req.Code}
	product, ok := pos.MatchBarcode(products, req.Code)
	if ok {
		if _, err := session.Add(product); err != nil {
			return domain.ScanResult{}, err
		}
		result.Matched = true
		result.Product = &product
	} else {
		s.log.Debug().Str("code", req.Code).Msg("scan matched no product")
	}
	result.Cart = s.CartView(session)
	return result, nil
}

func (s *Service) DiscardCart(session *pos.Session) error {
	return session.Discard()
}

// Invoice renders the last completed sale of the session.
func (s *Service) Invoice(session *pos.Session) (invoice.Document, error) {
	snap, err := session.LastInvoice()
	if err != nil {
		return invoice.Document{}, err
	}
	return invoice.Render(s.merchant, snap)
}

func (s *Service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		parts := make([]string, 0, len(fields))
		for _, field := range fields {
			parts = append(parts, strings.ToLower(field.Field())+" failed "+field.Tag())
		}
		return fmt.Errorf("%w: %s", store.ErrInvalidInput, strings.Join(parts, ", "))
	}
	return fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
}

// publish runs after the write it announces, so it ignores the caller's
// cancellation and is bounded by eventTimeout instead.
func (s *Service) publish(ctx context.Context, eventType string, id string, payload any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.eventTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, eventType, id, payload); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Str("id", id).Msg("failed to publish event")
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Email: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		BranchID:   s.defaultBranchID,
		ActorEmail: actor.Email,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  s.now(),
	}); err != nil {
		s.log.Warn().Err(err).Str("action", action).Str("entity", entityType+"/"+entityID).
			Msg("failed to write audit log")
	}
}
