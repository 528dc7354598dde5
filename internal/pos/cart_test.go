package pos

import (
	"testing"

	"github.com/rfaisal87-commits/pure-gold-erp/internal/domain"
)

func product(id string, sku string, name string, price float64) domain.Product {
	return domain.Product{ID: id, SKU: sku, Name: name, RetailPrice: price}
}

func TestAddOrIncrementKeepsOneLinePerProduct(t *testing.T) {
	var cart Cart
	a := product("a", "G-100", "Gold Ring", 100)
	b := product("b", "G-200", "Gold Chain", 50)

	for _, p := range []domain.Product{a, b, a, a, b} {
		cart.AddOrIncrement(p)
	}

	lines := cart.Lines()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].ProductID != "a" || lines[0].Qty != 3 {
		t.Fatalf("expected a x3 first, got %+v", lines[0])
	}
	if lines[1].ProductID != "b" || lines[1].Qty != 2 {
		t.Fatalf("expected b x2 second, got %+v", lines[1])
	}
}

func TestAddOrIncrementKeepsFirstPriceSnapshot(t *testing.T) {
	var cart Cart
	cart.AddOrIncrement(product("a", "G-100", "Gold Ring", 100))
	cart.AddOrIncrement(product("a", "G-100", "Gold Ring (repriced)", 140))

	line := cart.Lines()[0]
	if line.UnitPrice != 100 || line.Name != "Gold Ring" || line.Qty != 2 {
		t.Fatalf("expected original snapshot with qty 2, got %+v", line)
	}
}

func TestTotalIsIndependentOfInsertionOrder(t *testing.T) {
	items := []domain.Product{
		product("a", "", "A", 100),
		product("b", "", "B", 50),
		product("c", "", "C", 0.25),
		product("a", "", "A", 100),
	}

	var forward, backward Cart
	for _, p := range items {
		forward.AddOrIncrement(p)
	}
	for i := len(items) - 1; i >= 0; i-- {
		backward.AddOrIncrement(items[i])
	}

	want := 2*100 + 50 + 0.25
	if forward.Total() != want {
		t.Fatalf("forward total %v, want %v", forward.Total(), want)
	}
	if backward.Total() != forward.Total() {
		t.Fatalf("backward total %v differs from forward %v", backward.Total(), forward.Total())
	}
}

func TestClearEmptiesCart(t *testing.T) {
	var cart Cart
	cart.AddOrIncrement(product("a", "", "A", 1))
	cart.Clear()
	if !cart.Empty() || cart.Total() != 0 {
		t.Fatalf("expected empty cart after clear")
	}
}

func TestLinesReturnsCopy(t *testing.T) {
	var cart Cart
	cart.AddOrIncrement(product("a", "", "A", 1))
	lines := cart.Lines()
	lines[0].Qty = 99
	if cart.Lines()[0].Qty != 1 {
		t.Fatalf("mutating returned lines changed the cart")
	}
}
