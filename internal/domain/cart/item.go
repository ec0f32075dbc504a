package cart

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/order-composer/internal/domain/catalog"
)

var hundred = decimal.NewFromInt(100)

// ErrNoProduct is returned when a line item is built without a selected
// product. Without a product there is no unit price, so the total is
// suppressed rather than computed as zero.
var ErrNoProduct = errors.New("product must be selected")

// InvalidQuantityError indicates a quantity below 1. Out-of-range input
// is rejected, never clamped.
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be at least 1, got %d", e.Quantity)
}

// InvalidDiscountError indicates a discount percentage outside [0,100].
type InvalidDiscountError struct {
	Discount decimal.Decimal
}

func (e *InvalidDiscountError) Error() string {
	return fmt.Sprintf("discount must be between 0 and 100, got %s", e.Discount)
}

// LineItem is one priced product entry in a cart. Items are frozen once
// built: any change produces a fresh item via NewLineItem, so Total can
// never drift from its inputs.
type LineItem struct {
	Product   catalog.Candidate
	UnitPrice decimal.Decimal
	Quantity  int
	Discount  decimal.Decimal
	Total     decimal.Decimal
}

// NewLineItem validates the inputs and builds a line item with its
// derived total. The product must be a selected candidate carrying a
// price; quantity must be >= 1; discount must be within [0,100].
func NewLineItem(product catalog.Candidate, quantity int, discount decimal.Decimal) (LineItem, error) {
	if !product.Selected() || !product.HasPrice {
		return LineItem{}, ErrNoProduct
	}
	if quantity < 1 {
		return LineItem{}, &InvalidQuantityError{Quantity: quantity}
	}
	if discount.IsNegative() || discount.GreaterThan(hundred) {
		return LineItem{}, &InvalidDiscountError{Discount: discount}
	}

	return LineItem{
		Product:   product,
		UnitPrice: product.Price,
		Quantity:  quantity,
		Discount:  discount,
		Total:     ComputeTotal(product.Price, quantity, discount),
	}, nil
}

// ComputeTotal derives a line total from unit price, quantity and
// discount percentage:
//
//	total = unitPrice * (1 - discount/100) * quantity
//
// rounded to 2 decimal places, half away from zero (2.675 -> 2.68).
// The result is monotonically non-increasing in discount and linear in
// quantity.
func ComputeTotal(unitPrice decimal.Decimal, quantity int, discount decimal.Decimal) decimal.Decimal {
	rate := hundred.Sub(discount).Div(hundred)
	qty := decimal.NewFromInt(int64(quantity))
	return unitPrice.Mul(rate).Mul(qty).Round(2)
}
