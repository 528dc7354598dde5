package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rfaisal87-commits/pure-gold-erp/internal/domain"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/events"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/invoice"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/money"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/pos"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/store"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/xid"
)

const (
	outcomeCompleted = "completed"
	outcomePartial   = "partial"
	outcomeAborted   = "aborted"
	outcomeInvalid   = "invalid"
)

// ResolveCustomer maps a typed customer name to a customer id. A blank name
// is a walk-in sale and returns "" without touching the store; an unknown
// name creates the customer with a zero balance.
func (s *Service) ResolveCustomer(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}

	existing, err := s.repo.FindCustomerByName(ctx, name)
	if err == nil {
		return existing.ID, nil
	}
	if !isNotFound(err) {
		return "", fmt.Errorf("%w: lookup %q: %w", ErrCustomerNotResolved, name, err)
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{ID: xid.New("cus"), Name: name})
	if err != nil {
		return "", fmt.Errorf("%w: create %q: %w", ErrCustomerNotResolved, name, err)
	}
	s.logAudit(ctx, "customer_create", "customer", created.ID, "name="+created.Name+",source=checkout")
	return created.ID, nil
}

// Checkout turns the session cart into a recorded sale. Once the sale header
// exists every line is attempted and failures are reported per line; the
// cart is cleared and the invoice snapshot kept. If the header cannot be
// written the cart is left as it was.
func (s *Service) Checkout(ctx context.Context, session *pos.Session, req domain.CheckoutRequest) (domain.CheckoutResult, error) {
	if err := s.check(req); err != nil {
		s.metrics.ObserveCheckout(outcomeInvalid)
		return domain.CheckoutResult{}, err
	}

	lines, err := session.BeginCheckout()
	if err != nil {
		return domain.CheckoutResult{}, err
	}

	customerName := strings.TrimSpace(req.CustomerName)
	customerID, err := s.ResolveCustomer(ctx, customerName)
	if err != nil {
		session.Abort()
		s.metrics.ObserveCheckout(outcomeAborted)
		s.log.Warn().Err(err).Str("session_id", session.ID()).Msg("checkout aborted before sale header")
		return domain.CheckoutResult{}, err
	}

	session.Advance(pos.StateTotalingCart)
	total := pos.LinesTotal(lines)

	session.Advance(pos.StateCreatingSaleHeader)
	sale, err := s.repo.CreateSale(ctx, domain.Sale{
		ID:          xid.New("sale"),
		CustomerID:  customerID,
		TotalAmount: total,
		PaidAmount:  total,
		BranchID:    s.defaultBranchID,
	})
	if err != nil {
		session.Abort()
		s.metrics.ObserveCheckout(outcomeAborted)
		s.log.Warn().Err(err).Str("session_id", session.ID()).Int("lines", len(lines)).Msg("sale header failed; cart retained")
		return domain.CheckoutResult{}, fmt.Errorf("%w: %w", ErrSaleNotRecorded, err)
	}

	// The header is durable; the remaining writes must not die with the
	// caller's request.
	ctx = context.WithoutCancel(ctx)

	session.Advance(pos.StatePostingLines)
	outcomes := make([]domain.LineOutcome, 0, len(lines))
	partial := false
	for _, line := range lines {
		outcome := s.postSaleLine(ctx, sale.ID, line)
		if outcome.Error != "" {
			partial = true
		}
		outcomes = append(outcomes, outcome)
	}

	label := invoice.CustomerLabel(customerName)
	createdAt := sale.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	snapshot := domain.InvoiceSnapshot{
		SaleID:        sale.ID,
		CustomerLabel: label,
		Items:         lines,
		Total:         total,
		CreatedAt:     createdAt,
	}
	session.Complete(snapshot)

	result := domain.CheckoutResult{
		SaleID:        sale.ID,
		CustomerID:    customerID,
		CustomerLabel: label,
		BranchID:      sale.BranchID,
		Total:         total,
		TotalDisplay:  money.Format(total),
		Lines:         outcomes,
		Partial:       partial,
		CompletedAt:   s.now(),
	}

	if partial {
		s.metrics.ObserveCheckout(outcomePartial)
		s.log.Warn().Str("sale_id", sale.ID).Int("lines", len(lines)).Msg("sale recorded with failed lines")
	} else {
		s.metrics.ObserveCheckout(outcomeCompleted)
	}
	s.logAudit(ctx, "checkout", "sale", sale.ID, fmt.Sprintf("customer=%s,total=%s,lines=%d,partial=%t", label, money.Fixed(total), len(lines), partial))
	s.publish(ctx, events.TypeSaleCompleted, sale.ID, result)
	return result, nil
}

func (s *Service) postSaleLine(ctx context.Context, saleID string, line domain.CartLine) domain.LineOutcome {
	amount := pos.LineAmount(line)
	outcome := domain.LineOutcome{
		ProductID: line.ProductID,
		SKU:       line.SKU,
		Qty:       line.Qty,
		UnitPrice: line.UnitPrice,
		Amount:    amount,
	}
	var failures []string

	if _, err := s.repo.CreateSaleLine(ctx, domain.SaleLine{
		ID:        xid.New("sli"),
		SaleID:    saleID,
		ProductID: line.ProductID,
		Qty:       line.Qty,
		UnitPrice: line.UnitPrice,
		Amount:    amount,
	}); err != nil {
		s.metrics.ObserveLineFailure("checkout", "sale_line")
		s.log.Warn().Err(err).Str("sale_id", saleID).Str("product_id", line.ProductID).Msg("sale line not recorded")
		failures = append(failures, "sale line: "+err.Error())
	} else {
		outcome.SaleLineRecorded = true
	}

	if _, err := s.repo.AdjustStock(ctx, line.ProductID, s.defaultBranchID, -line.Qty); err != nil {
		s.metrics.ObserveLineFailure("checkout", "stock")
		s.log.Warn().Err(err).Str("sale_id", saleID).Str("product_id", line.ProductID).Int("qty", line.Qty).Msg("stock not decremented")
		failures = append(failures, "stock: "+err.Error())
	} else {
		outcome.StockAdjusted = true
	}

	outcome.Error = strings.Join(failures, "; ")
	return outcome
}

// ReceivePurchase records a stock receipt: purchase header, one line, then a
// stock increment at the default branch. Steps after the header are best
// effort and reported on the result.
func (s *Service) ReceivePurchase(ctx context.Context, req domain.PurchaseRequest) (domain.PurchaseResult, error) {
	req.ProductID = strings.TrimSpace(req.ProductID)
	if err := s.check(req); err != nil {
		s.metrics.ObservePurchase(outcomeInvalid)
		return domain.PurchaseResult{}, err
	}

	product, err := s.repo.GetProduct(ctx, req.ProductID)
	if err != nil {
		s.metrics.ObservePurchase(outcomeAborted)
		return domain.PurchaseResult{}, err
	}

	total := float64(req.Qty) * req.UnitPrice
	purchase, err := s.repo.CreatePurchase(ctx, domain.Purchase{
		ID:          xid.New("pur"),
		TotalAmount: total,
		PaidAmount:  total,
		BranchID:    s.defaultBranchID,
	})
	if err != nil {
		s.metrics.ObservePurchase(outcomeAborted)
		return domain.PurchaseResult{}, fmt.Errorf("record purchase: %w", err)
	}

	ctx = context.WithoutCancel(ctx)

	result := domain.PurchaseResult{
		PurchaseID: purchase.ID,
		ProductID:  product.ID,
		Qty:        req.Qty,
		Total:      total,
	}
	var failures []string

	if _, err := s.repo.CreatePurchaseLine(ctx, domain.PurchaseLine{
		ID:         xid.New("pli"),
		PurchaseID: purchase.ID,
		ProductID:  product.ID,
		Qty:        req.Qty,
		UnitPrice:  req.UnitPrice,
		Amount:     total,
	}); err != nil {
		s.metrics.ObserveLineFailure("purchase", "purchase_line")
		s.log.Warn().Err(err).Str("purchase_id", purchase.ID).Str("product_id", product.ID).Msg("purchase line not recorded")
		failures = append(failures, "purchase line: "+err.Error())
	} else {
		result.LineRecorded = true
	}

	level, err := s.repo.AdjustStock(ctx, product.ID, s.defaultBranchID, req.Qty)
	if err != nil {
		s.metrics.ObserveLineFailure("purchase", "stock")
		s.log.Warn().Err(err).Str("purchase_id", purchase.ID).Str("product_id", product.ID).Int("qty", req.Qty).Msg("stock not incremented")
		failures = append(failures, "stock: "+err.Error())
	} else {
		result.StockAdjusted = true
		result.StockQty = level.Qty
	}

	result.Error = strings.Join(failures, "; ")
	result.Partial = len(failures) > 0
	if result.Partial {
		s.metrics.ObservePurchase(outcomePartial)
	} else {
		s.metrics.ObservePurchase(outcomeCompleted)
	}

	s.logAudit(ctx, "purchase_receive", "purchase", purchase.ID, fmt.Sprintf("product=%s,qty=%d,total=%s,partial=%t", product.ID, req.Qty, money.Fixed(total), result.Partial))
	s.publish(ctx, events.TypePurchaseRecorded, purchase.ID, result)
	return result, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
