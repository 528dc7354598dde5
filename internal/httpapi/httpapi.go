package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/rfaisal87-commits/pure-gold-erp/internal/barcode"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/blob"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/domain"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/logging"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/metrics"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/pos"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/service"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/store"
)

const (
	maxJSONBody   = 1 << 20
	maxUploadBody = 10 << 20
	xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Options struct {
	AllowedOrigin string
	Metrics       *metrics.Metrics
	Barcodes      barcode.Decoder
	Blobs         http.Handler
	Logger        zerolog.Logger
}

type API struct {
	service       *service.Service
	auth          *AuthManager
	sessions      *pos.Registry
	barcodes      barcode.Decoder
	metrics       *metrics.Metrics
	blobs         http.Handler
	allowedOrigin string
	signinLimiter *keyedLimiter
	log           zerolog.Logger
}

func New(svc *service.Service, auth *AuthManager, sessions *pos.Registry, opts Options) *API {
	if sessions == nil {
		sessions = pos.NewRegistry()
	}
	if opts.Barcodes == nil {
		opts.Barcodes = barcode.NewImageDecoder()
	}
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}
	api := &API{
		service:       svc,
		auth:          auth,
		sessions:      sessions,
		barcodes:      opts.Barcodes,
		metrics:       opts.Metrics,
		blobs:         opts.Blobs,
		allowedOrigin: opts.AllowedOrigin,
		signinLimiter: newKeyedLimiter(rate.Every(12*time.Second), 5),
		log:           logging.Component(opts.Logger, "http"),
	}
	auth.OnSessionChange(api.onSessionChange)
	return api
}

// onSessionChange discards the checkout session, cart included, when its
// identity session signs out.
func (a *API) onSessionChange(event string, actor domain.Actor) {
	if event != SessionSignedOut || actor.SessionID == "" {
		return
	}
	a.sessions.Drop(actor.SessionID)
	a.log.Info().Str("session_id", actor.SessionID).Msg("checkout session dropped on sign out")
}

// keyedLimiter keeps one token bucket per client key.
type keyedLimiter struct {
	mu       sync.Mutex
	every    rate.Limit
	burst    int
	limiters map[string]*keyedEntry
}

type keyedEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newKeyedLimiter(every rate.Limit, burst int) *keyedLimiter {
	if burst < 1 {
		burst = 1
	}
	return &keyedLimiter{every: every, burst: burst, limiters: make(map[string]*keyedEntry)}
}

func (l *keyedLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.limiters) > 4096 {
		for k, entry := range l.limiters {
			if now.Sub(entry.lastSeen) > 10*time.Minute {
				delete(l.limiters, k)
			}
		}
	}
	entry, ok := l.limiters[key]
	if !ok {
		entry = &keyedEntry{limiter: rate.NewLimiter(l.every, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.Handle("/metrics", a.metrics.Handler())
	if a.blobs != nil {
		mux.Handle("/blobs/", http.StripPrefix("/blobs", a.blobs))
	}

	mux.HandleFunc("/api/v1/auth/signup", a.handleSignUp)
	mux.HandleFunc("/api/v1/auth/signin", a.handleSignIn)
	mux.HandleFunc("/api/v1/auth/signout", a.requireAuth(a.handleSignOut))
	mux.HandleFunc("/api/v1/auth/session", a.requireAuth(a.handleSession))

	mux.HandleFunc("/api/v1/dashboard", a.requireAuth(a.handleDashboard))
	mux.HandleFunc("/api/v1/tools/gold-quote", a.requireAuth(a.handleGoldQuote))
	mux.HandleFunc("/api/v1/products", a.requireAuth(a.handleProducts))
	mux.HandleFunc("/api/v1/customers", a.requireAuth(a.handleCustomers))
	mux.HandleFunc("/api/v1/branches", a.requireAuth(a.handleBranches))
	mux.HandleFunc("/api/v1/purchases", a.requireAuth(a.handlePurchases))

	mux.HandleFunc("/api/v1/pos/search", a.requireAuth(a.handleSearch))
	mux.HandleFunc("/api/v1/pos/cart", a.requireAuth(a.handleCart))
	mux.HandleFunc("/api/v1/pos/cart/items", a.requireAuth(a.handleCartItems))
	mux.HandleFunc("/api/v1/pos/scan", a.requireAuth(a.handleScan))
	mux.HandleFunc("/api/v1/pos/checkout", a.requireAuth(a.handleCheckout))
	mux.HandleFunc("/api/v1/pos/invoice", a.requireAuth(a.handleInvoice))

	mux.HandleFunc("/api/v1/reports/sales", a.requireAuth(a.handleSalesReport))
	mux.HandleFunc("/api/v1/reports/stock", a.requireAuth(a.handleStockReport))
	mux.HandleFunc("/api/v1/reports/export", a.requireAuth(a.handleReportExport))
	mux.HandleFunc("/api/v1/audit-logs", a.requireAuth(a.handleAuditLogs, "admin"))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

// session returns the checkout session of the signed-in actor.
func (a *API) session(r *http.Request) *pos.Session {
	actor, _ := service.ActorFromContext(r.Context())
	return a.sessions.Get(actor.SessionID)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.signinLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many attempts"))
		return
	}

	var req domain.SignUpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	session, err := a.auth.SignUp(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		if errors.Is(err, ErrEmailTaken) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (a *API) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.signinLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many sign-in attempts"))
		return
	}

	var req domain.SignInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	session, err := a.auth.SignIn(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	actor, _ := service.ActorFromContext(r.Context())
	if err := a.auth.SignOut(r.Context(), actor); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signed_out": true})
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	actor, _ := service.ActorFromContext(r.Context())
	writeJSON(w, http.StatusOK, a.auth.CurrentSession(actor))
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	counts, err := a.service.Dashboard(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (a *API) handleGoldQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.GoldQuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	quote, err := a.service.GoldQuote(req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products, err := a.service.ListProducts(r.Context())
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
	case http.MethodPost:
		req, image, err := decodeProductForm(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		product, err := a.service.CreateProduct(r.Context(), req, image)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"product": product})
	default:
		writeMethodNotAllowed(w)
	}
}

// decodeProductForm accepts a JSON body or a multipart form whose optional
// "image" part becomes the product photo.
func decodeProductForm(w http.ResponseWriter, r *http.Request) (domain.ProductCreateRequest, *domain.ProductImage, error) {
	var req domain.ProductCreateRequest
	if !isMultipart(r) {
		err := decodeJSON(r, &req)
		return req, nil, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		return req, nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	req.SKU = r.FormValue("sku")
	req.Name = r.FormValue("name")
	req.MetalType = r.FormValue("metal_type")
	req.MetalPurity = r.FormValue("metal_purity")
	var err error
	if req.WeightGrams, err = parseFormFloat(r, "weight_grams"); err != nil {
		return req, nil, err
	}
	if req.RetailPrice, err = parseFormFloat(r, "retail_price"); err != nil {
		return req, nil, err
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil, nil
	}
	if err != nil {
		return req, nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return req, nil, err
	}
	return req, &domain.ProductImage{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func parseFormFloat(r *http.Request, field string) (float64, error) {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", field)
	}
	return value, nil
}

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		customers, err := a.service.ListCustomers(r.Context())
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
	case http.MethodPost:
		var req domain.CustomerCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		customer, err := a.service.CreateCustomer(r.Context(), req)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"customer": customer})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleBranches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	branches, err := a.service.ListBranches(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"branches": branches})
}

func (a *API) handlePurchases(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.PurchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := a.service.ReceivePurchase(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	products, err := a.service.SearchProducts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleCart(w http.ResponseWriter, r *http.Request) {
	session := a.session(r)
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, a.service.CartView(session))
	case http.MethodDelete:
		if err := a.service.DiscardCart(session); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, a.service.CartView(session))
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCartItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.CartAddRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.AddToCart(r.Context(), a.session(r), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleScan takes a decoded code as JSON, or a photo of the tag as a
// multipart "image" part which is decoded here.
func (a *API) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.ScanRequest
	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
		file, _, err := r.FormFile("image")
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("image part required: %w", err))
			return
		}
		defer file.Close()

		code, err := a.barcodes.Decode(file)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, barcode.ErrNoBarcode) {
				status = http.StatusUnprocessableEntity
			}
			writeError(w, status, err)
			return
		}
		req.Code = code
	} else if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.service.Scan(r.Context(), a.session(r), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.CheckoutRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	result, err := a.service.Checkout(r.Context(), a.session(r), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleInvoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	doc, err := a.service.Invoice(a.session(r))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeFile(w, "application/pdf", doc.FileName, doc.PDF)
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	sales, err := a.service.RecentSales(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (a *API) handleStockReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	rows, err := a.service.StockReport(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stock": rows})
}

func (a *API) handleReportExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	data, err := a.service.ExportWorkbook(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	name := fmt.Sprintf("puregold_report_%s.xlsx", time.Now().UTC().Format("20060102"))
	writeFile(w, xlsxMediaType, name, data)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	logs, err := a.service.ListAuditLogs(r.Context(), limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit_logs": logs})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(startedAt)

		a.metrics.ObserveRequest(r.Method, rec.status, elapsed)
		a.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

// statusFor maps service and store errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrSaleNotRecorded),
		errors.Is(err, service.ErrCustomerNotResolved):
		return http.StatusBadGateway
	case errors.Is(err, store.ErrInvalidInput),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrNoInvoice),
		errors.Is(err, blob.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict),
		errors.Is(err, service.ErrCheckoutInProgress),
		errors.Is(err, blob.ErrExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

// writeError hides the message of 5xx errors. Collaborator failures get the
// failed step and a coarse cause.
func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	}
	switch {
	case status == http.StatusBadGateway:
		msg = publicMessage(err)
	case status >= 500:
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

// publicMessage names the failed step and a coarse cause. Driver text can
// carry hosts and credentials, so it stays in the log.
func publicMessage(err error) string {
	var step string
	switch {
	case errors.Is(err, service.ErrSaleNotRecorded):
		step = service.ErrSaleNotRecorded.Error()
	case errors.Is(err, service.ErrCustomerNotResolved):
		step = service.ErrCustomerNotResolved.Error()
	default:
		return "upstream error"
	}
	return step + ": " + causeOf(err)
}

func causeOf(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "referenced record not found"
	case errors.Is(err, store.ErrConflict):
		return "record already exists"
	case errors.Is(err, store.ErrInvalidInput):
		return "record rejected by the store"
	case errors.Is(err, context.DeadlineExceeded):
		return "store timed out"
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	default:
		return "store unavailable"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeFile(w http.ResponseWriter, contentType string, name string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
