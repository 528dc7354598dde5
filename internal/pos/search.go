package pos

import (
	"strings"

	"github.com/rfaisal87-commits/pure-gold-erp/internal/domain"
)

// Search is the manual lookup: case-insensitive substring on name or SKU.
// A blank query matches nothing.
func Search(products []domain.Product, query string) []domain.Product {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []domain.Product{}
	}

	matches := make([]domain.Product, 0, 8)
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.SKU), q) {
			matches = append(matches, p)
		}
	}
	return matches
}

// MatchBarcode resolves a scanned code. An exact SKU match (ignoring case)
// always wins; otherwise the first product whose name contains the code.
func MatchBarcode(products []domain.Product, code string) (domain.Product, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Product{}, false
	}

	for _, p := range products {
		if p.SKU != "" && strings.EqualFold(p.SKU, code) {
			return p, true
		}
	}

	needle := strings.ToLower(code)
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			return p, true
		}
	}
	return domain.Product{}, false
}
