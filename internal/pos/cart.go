package pos

import "github.com/rfaisal87-commits/pure-gold-erp/internal/domain"

// Cart is an ordered list of lines, at most one per product id. It is not
// safe for concurrent use; Session guards it.
type Cart struct {
	lines []domain.CartLine
}

// AddOrIncrement bumps the quantity of an existing line or appends a new
// line with quantity 1 carrying the product's current name, SKU and price.
func (c *Cart) AddOrIncrement(product domain.Product) domain.CartLine {
	for i := range c.lines {
		if c.lines[i].ProductID == product.ID {
			c.lines[i].Qty++
			return c.lines[i]
		}
	}
	line := domain.CartLine{
		ProductID: product.ID,
		Name:      product.Name,
		SKU:       product.SKU,
		UnitPrice: product.RetailPrice,
		Qty:       1,
	}
	c.lines = append(c.lines, line)
	return line
}

func (c *Cart) Total() float64 {
	return LinesTotal(c.lines)
}

func (c *Cart) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Empty() bool {
	return len(c.lines) == 0
}

func (c *Cart) Clear() {
	c.lines = nil
}

// LinesTotal sums qty x unit price without rounding.
func LinesTotal(lines []domain.CartLine) float64 {
	total := 0.0
	for _, line := range lines {
		total += LineAmount(line)
	}
	return total
}

func LineAmount(line domain.CartLine) float64 {
	return float64(line.Qty) * line.UnitPrice
}
