package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rfaisal87-commits/pure-gold-erp/internal/blob"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/domain"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/metrics"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/pos"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/store"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/store/memory"
)

const testBranch = "main-branch"

var errBackend = errors.New("backend unavailable")

// recordingRepo wraps the memory store, counts the calls checkout makes and
// fails selected operations.
type recordingRepo struct {
	*memory.Store

	mu                 sync.Mutex
	calls              map[string]int
	failCreateSale     bool
	failCreateCustomer bool
	failFindCustomer   bool
	failSaleLineFor    map[string]bool
	failStockFor       map[string]bool
}

func newRecordingRepo() *recordingRepo {
	return &recordingRepo{
		Store:           memory.NewSeeded(testBranch),
		calls:           make(map[string]int),
		failSaleLineFor: make(map[string]bool),
		failStockFor:    make(map[string]bool),
	}
}

func (r *recordingRepo) count(name string) {
	r.mu.Lock()
	r.calls[name]++
	r.mu.Unlock()
}

func (r *recordingRepo) callCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[name]
}

func (r *recordingRepo) totalCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.calls {
		total += n
	}
	return total
}

func (r *recordingRepo) FindCustomerByName(ctx context.Context, name string) (*domain.Customer, error) {
	r.count("FindCustomerByName")
	if r.failFindCustomer {
		return nil, errBackend
	}
	return r.Store.FindCustomerByName(ctx, name)
}

func (r *recordingRepo) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	r.count("CreateCustomer")
	if r.failCreateCustomer {
		return nil, errBackend
	}
	return r.Store.CreateCustomer(ctx, customer)
}

func (r *recordingRepo) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	r.count("CreateSale")
	if r.failCreateSale {
		return nil, errBackend
	}
	return r.Store.CreateSale(ctx, sale)
}

func (r *recordingRepo) CreateSaleLine(ctx context.Context, line domain.SaleLine) (*domain.SaleLine, error) {
	r.count("CreateSaleLine")
	if r.failSaleLineFor[line.ProductID] {
		return nil, errBackend
	}
	return r.Store.CreateSaleLine(ctx, line)
}

func (r *recordingRepo) AdjustStock(ctx context.Context, productID string, branchID string, delta int) (*domain.StockLevel, error) {
	r.count("AdjustStock")
	if r.failStockFor[productID] {
		return nil, errBackend
	}
	return r.Store.AdjustStock(ctx, productID, branchID, delta)
}

func (r *recordingRepo) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	r.count("CreatePurchase")
	return r.Store.CreatePurchase(ctx, purchase)
}

func (r *recordingRepo) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	r.count("GetProduct")
	return r.Store.GetProduct(ctx, id)
}

func newTestService(repo store.Repository) *Service {
	return New(repo, Deps{Metrics: metrics.New()}, testBranch)
}

func addProducts(t *testing.T, svc *Service, session *pos.Session, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if _, err := svc.AddToCart(context.Background(), session, domain.CartAddRequest{ProductID: id}); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
}

func stockQty(t *testing.T, repo store.Repository, productID string) int {
	t.Helper()
	level, err := repo.GetStockLevel(context.Background(), productID, testBranch)
	if err != nil {
		t.Fatalf("get stock %s: %v", productID, err)
	}
	return level.Qty
}

func TestCheckoutEmptyCartMakesNoStoreCalls(t *testing.T) {
	repo := newRecordingRepo()
	svc := newTestService(repo)

	_, err := svc.Checkout(context.Background(), pos.NewSession("s1"), domain.CheckoutRequest{CustomerName: "Ayesha"})
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	if n := repo.totalCalls(); n != 0 {
		t.Fatalf("expected no store calls, got %d", n)
	}
}

func TestCheckoutWalkInRecordsSaleLinesAndStock(t *testing.T) {
	repo := newRecordingRepo()
	svc := newTestService(repo)
	session := pos.NewSession("s1")
	addProducts(t, svc, session, "prd-ring-22k", "prd-chain-24k", "prd-ring-22k")

	result, err := svc.Checkout(context.Background(), session, domain.CheckoutRequest{CustomerName: "   "})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if result.Total != 250 || result.TotalDisplay != "Rs 250.00" {
		t.Fatalf("expected total 250, got %v (%s)", result.Total, result.TotalDisplay)
	}
	if result.CustomerID != "" || result.CustomerLabel != "Walk-in" {
		t.Fatalf("expected walk-in sale, got id=%q label=%q", result.CustomerID, result.CustomerLabel)
	}
	if repo.callCount("FindCustomerByName") != 0 || repo.callCount("CreateCustomer") != 0 {
		t.Fatalf("walk-in checkout must not touch customers")
	}
	if result.Partial || len(result.Lines) != 2 {
		t.Fatalf("expected 2 clean lines, got partial=%t lines=%d", result.Partial, len(result.Lines))
	}

	lines, err := repo.ListSaleLines(context.Background(), result.SaleID)
	if err != nil {
		t.Fatalf("list sale lines: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 sale lines, got %d", len(lines))
	}
	amounts := map[string]float64{}
	for _, line := range lines {
		amounts[line.ProductID] = line.Amount
	}
	if amounts["prd-ring-22k"] != 200 || amounts["prd-chain-24k"] != 50 {
		t.Fatalf("unexpected line amounts %+v", amounts)
	}

	if got := stockQty(t, repo, "prd-ring-22k"); got != 3 {
		t.Fatalf("expected ring stock 5->3, got %d", got)
	}
	if got := stockQty(t, repo, "prd-chain-24k"); got != 2 {
		t.Fatalf("expected chain stock 3->2, got %d", got)
	}

	if view := session.View(); len(view.Lines) != 0 || view.State != string(pos.StateCompleted) {
		t.Fatalf("expected cleared cart in completed state, got %+v", view)
	}
}

func TestCheckoutFloorsOversoldStockAtZero(t *testing.T) {
	repo := newRecordingRepo()
	svc := newTestService(repo)
	session := pos.NewSession("s1")
	addProducts(t, svc, session, "prd-bangle-21k", "prd-bangle-21k", "prd-bangle-21k")

	result, err := svc.Checkout(context.Background(), session, domain.CheckoutRequest{})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if result.Partial {
		t.Fatalf("oversell is not a line failure")
	}
	if got := stockQty(t, repo, "prd-bangle-21k"); got != 0 {
		t.Fatalf("expected floored stock 0, got %d", got)
	}
}

func TestCheckoutReusesExistingCustomerCaseInsensitive(t *testing.T) {
	repo := newRecordingRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	existing, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Ayesha Khan"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}

	session := pos.NewSession("s1")
	addProducts(t, svc, session, "prd-earring-silver")
	result, err := svc.Checkout(ctx, session, domain.CheckoutRequest{CustomerName: "ayesha khan"})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if result.CustomerID != existing.ID {
		t.Fatalf("expected existing customer %s, got %s", existing.ID, result.CustomerID)
	}
	if repo.callCount("CreateCustomer") != 1 {
		t.Fatalf("expected no new customer, create calls=%d", repo.callCount("CreateCustomer"))
	}
}

func TestCheckoutCreatesUnknownCustomerWithZeroBalance(t *testing.T) {
	repo := newRecordingRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	session := pos.NewSession("s1")
	addProducts(t, svc, session, "prd-earring-silver")
	result, err := svc.Checkout(ctx, session, domain.CheckoutRequest{CustomerName: "  Bilal Ahmed "})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if result.CustomerID == "" || result.CustomerLabel != "Bilal Ahmed" {
		t.Fatalf("expected a new named customer, got %+v", result)
	}

	customer, err := repo.FindCustomerByName(ctx, "bilal ahmed")
	if err != nil {
		t.Fatalf("find customer: %v", err)
	}
	if customer.ID != result.CustomerID || customer.Balance != 0 {
		t.Fatalf("unexpected customer %+v", customer)
	}
}

func TestCheckoutHeaderFailureKeepsCartAndSkipsLines(t *testing.T) {
	repo := newRecordingRepo()
	repo.failCreateSale = true
	svc := newTestService(repo)
	session := pos.NewSession("s1")
	addProducts(t, svc, session, "prd-ring-22k", "prd-chain-24k")

	_, err := svc.Checkout(context.Background(), session, domain.CheckoutRequest{})
	if !errors.Is(err, ErrSaleNotRecorded) || !errors.Is(err, errBackend) {
		t.Fatalf("expected ErrSaleNotRecorded wrapping the backend error, got %v", err)
	}
	if repo.callCount("CreateSaleLine") != 0 || repo.callCount("AdjustStock") != 0 {
		t.Fatalf("expected no line or stock calls after header failure")
	}

	view := session.View()
	if len(view.Lines) != 2 || view.Total != 150 || view.State != string(pos.StateIdle) {
		t.Fatalf("expected cart retained in idle state, got %+v", view)
	}
	if _, err := session.LastInvoice(); !errors.Is(err, ErrNoInvoice) {
		t.Fatalf("expected no invoice after failed checkout, got %v", err)
	}

	repo.failCreateSale = false
	if _, err := svc.Checkout(context.Background(), session, domain.CheckoutRequest{}); err != nil {
		t.Fatalf("retry checkout: %v", err)
	}
}

func TestCheckoutCustomerFailureAbortsBeforeHeader(t *testing.T) {
	repo := newRecordingRepo()
	repo.failCreateCustomer = true
	svc := newTestService(repo)
	session := pos.NewSession("s1")
	addProducts(t, svc, session, "prd-ring-22k")

	_, err := svc.Checkout(context.Background(), session, domain.CheckoutRequest{CustomerName: "New Buyer"})
	if !errors.Is(err, ErrCustomerNotResolved) {
		t.Fatalf("expected ErrCustomerNotResolved, got %v", err)
	}
	if repo.callCount("CreateSale") != 0 {
		t.Fatalf("expected no sale header after customer failure")
	}
	if len(session.View().Lines) != 1 {
		t.Fatalf("expected cart retained")
	}
}

func TestCheckoutLineFailuresAreReportedAndOtherLinesPosted(t *testing.T) {
	repo := newRecordingRepo()
	repo.failSaleLineFor["prd-ring-22k"] = true
	repo.failStockFor["prd-chain-24k"] = true
	svc := newTestService(repo)
	session := pos.NewSession("s1")
	addProducts(t, svc, session, "prd-ring-22k", "prd-chain-24k", "prd-earring-silver")

	result, err := svc.Checkout(context.Background(), session, domain.CheckoutRequest{})
	if err != nil {
		t.Fatalf("checkout should succeed once the header exists: %v", err)
	}
	if !result.Partial {
		t.Fatalf("expected partial result")
	}
	if repo.callCount("CreateSaleLine") != 3 || repo.callCount("AdjustStock") != 3 {
		t.Fatalf("expected every line attempted, lines=%d stock=%d", repo.callCount("CreateSaleLine"), repo.callCount("AdjustStock"))
	}

	byProduct := map[string]domain.LineOutcome{}
	for _, line := range result.Lines {
		byProduct[line.ProductID] = line
	}
	ring := byProduct["prd-ring-22k"]
	if ring.SaleLineRecorded || !ring.StockAdjusted || ring.Error == "" {
		t.Fatalf("unexpected ring outcome %+v", ring)
	}
	chain := byProduct["prd-chain-24k"]
	if !chain.SaleLineRecorded || chain.StockAdjusted || !strings.Contains(chain.Error, "stock") {
		t.Fatalf("unexpected chain outcome %+v", chain)
	}
	earring := byProduct["prd-earring-silver"]
	if !earring.SaleLineRecorded || !earring.StockAdjusted || earring.Error != "" {
		t.Fatalf("unexpected earring outcome %+v", earring)
	}

	if got := stockQty(t, repo, "prd-ring-22k"); got != 4 {
		t.Fatalf("expected ring stock decremented despite line failure, got %d", got)
	}
	if len(session.View().Lines) != 0 {
		t.Fatalf("expected cart cleared after header exists")
	}
}

func TestInvoiceAfterCheckout(t *testing.T) {
	repo := newRecordingRepo()
	svc := newTestService(repo)
	session := pos.NewSession("s1")

	if _, err := svc.Invoice(session); !errors.Is(err, ErrNoInvoice) {
		t.Fatalf("expected ErrNoInvoice before any sale, got %v", err)
	}

	addProducts(t, svc, session, "prd-ring-22k", "prd-ring-22k")
	result, err := svc.Checkout(context.Background(), session, domain.CheckoutRequest{})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	doc, err := svc.Invoice(session)
	if err != nil {
		t.Fatalf("invoice: %v", err)
	}
	if doc.FileName != "invoice_"+result.SaleID+".pdf" {
		t.Fatalf("unexpected file name %s", doc.FileName)
	}
	want := []string{
		DefaultMerchantName,
		"Invoice ID: " + result.SaleID,
		"Customer: Walk-in",
		"Items:",
		"Gold Ring 22K (G-100) x2 - Rs 200.00",
		"Total: Rs 200.00",
	}
	if strings.Join(doc.Lines, "\n") != strings.Join(want, "\n") {
		t.Fatalf("unexpected invoice lines:\n%s", strings.Join(doc.Lines, "\n"))
	}
	if len(doc.PDF) == 0 {
		t.Fatalf("expected pdf bytes")
	}
}

func TestScanPrefersExactSKUAndIgnoresUnknownCode(t *testing.T) {
	repo := newRecordingRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	if _, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{SKU: "X-1", Name: "Tray for G-100", RetailPrice: 1}, nil); err != nil {
		t.Fatalf("create decoy: %v", err)
	}
	session := pos.NewSession("s1")

	result, err := svc.Scan(ctx, session, domain.ScanRequest{Code: "g-100"})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !result.Matched || result.Product.ID != "prd-ring-22k" {
		t.Fatalf("expected ring matched by sku, got %+v", result)
	}

	result, err = svc.Scan(ctx, session, domain.ScanRequest{Code: "999999"})
	if err != nil {
		t.Fatalf("scan unknown: %v", err)
	}
	if result.Matched || len(result.Cart.Lines) != 1 {
		t.Fatalf("expected unmatched scan to leave cart alone, got %+v", result)
	}
}

func TestReceivePurchaseIncrementsStock(t *testing.T) {
	repo := newRecordingRepo()
	svc := newTestService(repo)

	result, err := svc.ReceivePurchase(context.Background(), domain.PurchaseRequest{ProductID: "prd-chain-24k", Qty: 4, UnitPrice: 40})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if result.Total != 160 || !result.LineRecorded || !result.StockAdjusted || result.Partial {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.StockQty != 7 || stockQty(t, repo, "prd-chain-24k") != 7 {
		t.Fatalf("expected stock 3->7, got %d", result.StockQty)
	}
}

func TestReceivePurchaseCreatesMissingStockRow(t *testing.T) {
	repo := newRecordingRepo()
	ctx := context.Background()
	product, err := repo.Store.CreateProduct(ctx, domain.Product{Name: "Tikka", RetailPrice: 30})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	svc := newTestService(repo)

	result, err := svc.ReceivePurchase(ctx, domain.PurchaseRequest{ProductID: product.ID, Qty: 2, UnitPrice: 10})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if result.StockQty != 2 {
		t.Fatalf("expected new stock row with qty 2, got %d", result.StockQty)
	}
}

func TestReceivePurchaseInvalidMakesNoStoreCalls(t *testing.T) {
	repo := newRecordingRepo()
	svc := newTestService(repo)

	for _, req := range []domain.PurchaseRequest{
		{ProductID: "prd-ring-22k", Qty: 0, UnitPrice: 10},
		{ProductID: "  ", Qty: 1, UnitPrice: 10},
		{ProductID: "prd-ring-22k", Qty: 1, UnitPrice: -1},
	} {
		if _, err := svc.ReceivePurchase(context.Background(), req); !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", req, err)
		}
	}
	if n := repo.totalCalls(); n != 0 {
		t.Fatalf("expected no store calls, got %d", n)
	}
}

func TestReceivePurchaseStockFailureIsPartial(t *testing.T) {
	repo := newRecordingRepo()
	repo.failStockFor["prd-ring-22k"] = true
	svc := newTestService(repo)

	result, err := svc.ReceivePurchase(context.Background(), domain.PurchaseRequest{ProductID: "prd-ring-22k", Qty: 1, UnitPrice: 90})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if !result.Partial || result.StockAdjusted || !result.LineRecorded {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCreateProductUploadsImageAndOpensStockRow(t *testing.T) {
	repo := newRecordingRepo()
	dir := t.TempDir()
	blobs, err := blob.NewDiskStore(dir, "http://localhost/blobs")
	if err != nil {
		t.Fatalf("disk store: %v", err)
	}
	svc := New(repo, Deps{Blobs: blobs}, testBranch)

	product, err := svc.CreateProduct(context.Background(), domain.ProductCreateRequest{
		SKU:         " g-900 ",
		Name:        "Kundan Necklace",
		WeightGrams: 18.5,
		RetailPrice: 5200,
	}, &domain.ProductImage{FileName: "necklace front.png", Data: []byte("png")})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if product.SKU != "g-900" {
		t.Fatalf("expected trimmed sku with operator casing, got %s", product.SKU)
	}
	prefix := "http://localhost/blobs/product-images/"
	if !strings.HasPrefix(product.ImageURL, prefix) || !strings.HasSuffix(product.ImageURL, "_necklace_front.png") {
		t.Fatalf("unexpected image url %s", product.ImageURL)
	}
	key := strings.TrimPrefix(product.ImageURL, prefix)
	if _, err := os.Stat(filepath.Join(dir, blob.ProductImagesBucket, key)); err != nil {
		t.Fatalf("expected uploaded object: %v", err)
	}
	if got := stockQty(t, repo, product.ID); got != 0 {
		t.Fatalf("expected zero stock row, got %d", got)
	}
}

func TestCreateProductValidation(t *testing.T) {
	svc := newTestService(newRecordingRepo())
	for _, req := range []domain.ProductCreateRequest{
		{Name: "  ", RetailPrice: 1},
		{Name: "Ring", RetailPrice: -1},
		{Name: "Ring", WeightGrams: -0.5},
	} {
		if _, err := svc.CreateProduct(context.Background(), req, nil); !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", req, err)
		}
	}
}

func TestGoldQuote(t *testing.T) {
	svc := newTestService(newRecordingRepo())
	quote, err := svc.GoldQuote(domain.GoldQuoteRequest{RatePerGram: 21500.5, WeightGrams: 11.664, CostPrice: 240000})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.MarketDisplay != "250781.83" || quote.ProfitDisplay != "10781.83" {
		t.Fatalf("unexpected quote %+v", quote)
	}

	if _, err := svc.GoldQuote(domain.GoldQuoteRequest{RatePerGram: -1}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative rate, got %v", err)
	}
}

func TestEnsureDefaultBranchCreatesMainWhenEmpty(t *testing.T) {
	repo := memory.New()
	svc := New(repo, Deps{}, "brn-fsd")

	branch, err := svc.EnsureDefaultBranch(context.Background())
	if err != nil {
		t.Fatalf("ensure branch: %v", err)
	}
	if branch.ID != "brn-fsd" || branch.Name != "Main" || branch.Address != "Faisalabad" {
		t.Fatalf("unexpected branch %+v", branch)
	}

	if _, err := svc.EnsureDefaultBranch(context.Background()); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	branches, _ := repo.ListBranches(context.Background())
	if len(branches) != 1 {
		t.Fatalf("expected a single branch, got %d", len(branches))
	}
}

func TestCheckoutWritesAuditEntry(t *testing.T) {
	repo := newRecordingRepo()
	svc := newTestService(repo)
	ctx := WithActor(context.Background(), domain.Actor{Email: "cashier@puregold.local", Role: "staff"})
	session := pos.NewSession("s1")
	addProducts(t, svc, session, "prd-ring-22k")

	result, err := svc.Checkout(ctx, session, domain.CheckoutRequest{})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	logs, err := svc.ListAuditLogs(ctx, 10)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(logs) == 0 || logs[0].Action != "checkout" || logs[0].EntityID != result.SaleID || logs[0].ActorEmail != "cashier@puregold.local" {
		t.Fatalf("unexpected audit entries %+v", logs)
	}
}

func TestResolveCustomerLookupFailureDoesNotCreate(t *testing.T) {
	repo := newRecordingRepo()
	repo.failFindCustomer = true
	svc := newTestService(repo)

	if _, err := svc.ResolveCustomer(context.Background(), "Zara"); !errors.Is(err, ErrCustomerNotResolved) || !errors.Is(err, errBackend) {
		t.Fatalf("expected ErrCustomerNotResolved wrapping backend error, got %v", err)
	}
	if repo.callCount("CreateCustomer") != 0 {
		t.Fatalf("lookup failure must not create a customer")
	}
}

// cancellingRepo behaves like a SQL store: calls on a cancelled context
// fail. Writing a header cancels the caller's context, as a client
// disconnecting mid-request would.
type cancellingRepo struct {
	*memory.Store
	cancel context.CancelFunc
}

func (r *cancellingRepo) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	created, err := r.Store.CreateSale(ctx, sale)
	r.cancel()
	return created, err
}

func (r *cancellingRepo) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	created, err := r.Store.CreatePurchase(ctx, purchase)
	r.cancel()
	return created, err
}

func (r *cancellingRepo) CreateSaleLine(ctx context.Context, line domain.SaleLine) (*domain.SaleLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.Store.CreateSaleLine(ctx, line)
}

func (r *cancellingRepo) CreatePurchaseLine(ctx context.Context, line domain.PurchaseLine) (*domain.PurchaseLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.Store.CreatePurchaseLine(ctx, line)
}

func (r *cancellingRepo) AdjustStock(ctx context.Context, productID string, branchID string, delta int) (*domain.StockLevel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.Store.AdjustStock(ctx, productID, branchID, delta)
}

func TestCheckoutPostsLinesAfterCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo := &cancellingRepo{Store: memory.NewSeeded(testBranch), cancel: cancel}
	svc := newTestService(repo)
	session := pos.NewSession("sess-cancel")
	addProducts(t, svc, session, "prd-ring-22k", "prd-chain-24k")

	result, err := svc.Checkout(ctx, session, domain.CheckoutRequest{})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if ctx.Err() == nil {
		t.Fatalf("expected caller context to be cancelled by the header write")
	}
	if result.Partial {
		t.Fatalf("expected every line posted, got %+v", result.Lines)
	}
	lines, err := repo.ListSaleLines(context.Background(), result.SaleID)
	if err != nil || len(lines) != 2 {
		t.Fatalf("expected 2 sale lines, got %d err=%v", len(lines), err)
	}
	if got := stockQty(t, repo, "prd-ring-22k"); got != 4 {
		t.Fatalf("expected ring stock 4, got %d", got)
	}
}

func TestReceivePurchaseCompletesAfterCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo := &cancellingRepo{Store: memory.NewSeeded(testBranch), cancel: cancel}
	svc := newTestService(repo)

	result, err := svc.ReceivePurchase(ctx, domain.PurchaseRequest{ProductID: "prd-chain-24k", Qty: 2, UnitPrice: 40})
	if err != nil {
		t.Fatalf("receive purchase: %v", err)
	}
	if result.Partial || !result.LineRecorded || !result.StockAdjusted || result.StockQty != 5 {
		t.Fatalf("expected complete purchase, got %+v", result)
	}
}

// stalledPublisher blocks until its context ends, like a writer dialing a
// broker that never answers.
type stalledPublisher struct {
	mu   sync.Mutex
	errs []error
}

func (p *stalledPublisher) Publish(ctx context.Context, _ string, _ string, _ any) error {
	<-ctx.Done()
	p.mu.Lock()
	p.errs = append(p.errs, ctx.Err())
	p.mu.Unlock()
	return ctx.Err()
}

func (p *stalledPublisher) Close() error { return nil }

func TestCheckoutEventPublishIsBounded(t *testing.T) {
	publisher := &stalledPublisher{}
	svc := New(newRecordingRepo(), Deps{Events: publisher}, testBranch)
	svc.eventTimeout = 20 * time.Millisecond
	session := pos.NewSession("sess-events")
	addProducts(t, svc, session, "prd-ring-22k")

	started := time.Now()
	if _, err := svc.Checkout(context.Background(), session, domain.CheckoutRequest{}); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Fatalf("checkout waited %s on the event publisher", elapsed)
	}

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	if len(publisher.errs) != 1 || !errors.Is(publisher.errs[0], context.DeadlineExceeded) {
		t.Fatalf("expected publish to end on its own deadline, got %v", publisher.errs)
	}
}
