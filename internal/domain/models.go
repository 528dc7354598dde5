package domain

import "time"

type Product struct {
	ID          string    `json:"id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	MetalType   string    `json:"metal_type"`
	MetalPurity string    `json:"metal_purity"`
	WeightGrams float64   `json:"weight_grams"`
	RetailPrice float64   `json:"retail_price"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type ProductCreateRequest struct {
	SKU         string  `json:"sku" validate:"max=64"`
	Name        string  `json:"name" validate:"required,max=200"`
	MetalType   string  `json:"metal_type" validate:"max=64"`
	MetalPurity string  `json:"metal_purity" validate:"max=32"`
	WeightGrams float64 `json:"weight_grams" validate:"gte=0"`
	RetailPrice float64 `json:"retail_price" validate:"gte=0"`
}

type ProductImage struct {
	FileName    string
	ContentType string
	Data        []byte
}

type Branch struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Balance   float64   `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type StockLevel struct {
	ProductID string    `json:"product_id"`
	BranchID  string    `json:"branch_id"`
	Qty       int       `json:"qty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type StockReportRow struct {
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	SKU         string    `json:"sku"`
	BranchID    string    `json:"branch_id"`
	BranchName  string    `json:"branch_name"`
	Qty         int       `json:"qty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Sale struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customer_id,omitempty"`
	TotalAmount float64   `json:"total_amount"`
	PaidAmount  float64   `json:"paid_amount"`
	BranchID    string    `json:"branch_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type SaleLine struct {
	ID        string  `json:"id"`
	SaleID    string  `json:"sale_id"`
	ProductID string  `json:"product_id"`
	Qty       int     `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
	Amount    float64 `json:"amount"`
}

type SaleSummary struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"customer_id,omitempty"`
	CustomerName string    `json:"customer_name,omitempty"`
	TotalAmount  float64   `json:"total_amount"`
	PaidAmount   float64   `json:"paid_amount"`
	BranchID     string    `json:"branch_id"`
	LineCount    int       `json:"line_count"`
	CreatedAt    time.Time `json:"created_at"`
}

type Purchase struct {
	ID          string    `json:"id"`
	TotalAmount float64   `json:"total_amount"`
	PaidAmount  float64   `json:"paid_amount"`
	BranchID    string    `json:"branch_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type PurchaseLine struct {
	ID         string  `json:"id"`
	PurchaseID string  `json:"purchase_id"`
	ProductID  string  `json:"product_id"`
	Qty        int     `json:"qty"`
	UnitPrice  float64 `json:"unit_price"`
	Amount     float64 `json:"amount"`
}

type PurchaseRequest struct {
	ProductID string  `json:"product_id" validate:"required"`
	Qty       int     `json:"qty" validate:"gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

type PurchaseResult struct {
	PurchaseID    string  `json:"purchase_id"`
	ProductID     string  `json:"product_id"`
	Qty           int     `json:"qty"`
	Total         float64 `json:"total"`
	LineRecorded  bool    `json:"line_recorded"`
	StockAdjusted bool    `json:"stock_adjusted"`
	StockQty      int     `json:"stock_qty"`
	Partial       bool    `json:"partial"`
	Error         string  `json:"error,omitempty"`
}

type CartLine struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	SKU       string  `json:"sku"`
	UnitPrice float64 `json:"unit_price"`
	Qty       int     `json:"qty"`
}

type CartView struct {
	SessionID string     `json:"session_id"`
	State     string     `json:"state"`
	Lines     []CartLine `json:"lines"`
	Total     float64    `json:"total"`
	Display   string     `json:"total_display"`
}

type CartAddRequest struct {
	ProductID string `json:"product_id" validate:"required"`
}

type ScanRequest struct {
	Code string `json:"code" validate:"required,max=128"`
}

type ScanResult struct {
	Code    string   `json:"code"`
	Matched bool     `json:"matched"`
	Product *Product `json:"product,omitempty"`
	Cart    CartView `json:"cart"`
}

type CheckoutRequest struct {
	CustomerName string `json:"customer_name" validate:"max=200"`
}

type LineOutcome struct {
	ProductID        string  `json:"product_id"`
	SKU              string  `json:"sku"`
	Qty              int     `json:"qty"`
	UnitPrice        float64 `json:"unit_price"`
	Amount           float64 `json:"amount"`
	SaleLineRecorded bool    `json:"sale_line_recorded"`
	StockAdjusted    bool    `json:"stock_adjusted"`
	Error            string  `json:"error,omitempty"`
}

type CheckoutResult struct {
	SaleID        string        `json:"sale_id"`
	CustomerID    string        `json:"customer_id,omitempty"`
	CustomerLabel string        `json:"customer_label"`
	BranchID      string        `json:"branch_id"`
	Total         float64       `json:"total"`
	TotalDisplay  string        `json:"total_display"`
	Lines         []LineOutcome `json:"lines"`
	Partial       bool          `json:"partial"`
	CompletedAt   time.Time     `json:"completed_at"`
}

type InvoiceSnapshot struct {
	SaleID        string     `json:"sale_id"`
	CustomerLabel string     `json:"customer_label"`
	Items         []CartLine `json:"items"`
	Total         float64    `json:"total"`
	CreatedAt     time.Time  `json:"created_at"`
}

type DashboardCounts struct {
	Products  int `json:"products"`
	StockRows int `json:"stock_rows"`
	Customers int `json:"customers"`
	Sales     int `json:"sales"`
}

type GoldQuoteRequest struct {
	RatePerGram float64 `json:"rate_per_gram" validate:"gte=0"`
	WeightGrams float64 `json:"weight_grams" validate:"gte=0"`
	CostPrice   float64 `json:"cost_price" validate:"gte=0"`
}

type GoldQuote struct {
	MarketValue   float64 `json:"market_value"`
	Profit        float64 `json:"profit"`
	MarketDisplay string  `json:"market_display"`
	ProfitDisplay string  `json:"profit_display"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	BranchID   string    `json:"branch_id"`
	ActorEmail string    `json:"actor_email"`
	ActorRole  string    `json:"actor_role"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

type Actor struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
}

type UserAccount struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthSession struct {
	AccessToken string `json:"access_token,omitempty"`
	SessionID   string `json:"session_id"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}
