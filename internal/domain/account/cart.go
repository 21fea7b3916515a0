package account

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartItem is a value object embedded in Account.Cart. It has no canonical
// record of its own; its price is captured when the line is added.
type CartItem struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	ImageURL    string          `json:"image_url,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

func NewCartItem(productID uuid.UUID, productName, imageURL string, unitPrice decimal.Decimal, quantity int) CartItem {
	item := CartItem{
		ID:          uuid.New(),
		ProductID:   productID,
		ProductName: productName,
		ImageURL:    imageURL,
		UnitPrice:   unitPrice,
	}
	item.SetQuantity(quantity)
	return item
}

// SetQuantity keeps LineTotal == UnitPrice * Quantity.
func (c *CartItem) SetQuantity(q int) {
	c.Quantity = q
	c.LineTotal = c.UnitPrice.Mul(decimal.NewFromInt(int64(q)))
}

func (a *Account) FindCartItem(itemID uuid.UUID) (int, bool) {
	for i := range a.Cart {
		if a.Cart[i].ID == itemID {
			return i, true
		}
	}
	return -1, false
}

func (a *Account) AddCartItem(item CartItem) {
	a.Cart = append(a.Cart, item)
}

// RemoveCartItem drops the line at idx and returns it.
func (a *Account) RemoveCartItem(idx int) CartItem {
	item := a.Cart[idx]
	out := make([]CartItem, 0, len(a.Cart)-1)
	out = append(out, a.Cart[:idx]...)
	out = append(out, a.Cart[idx+1:]...)
	a.Cart = out
	return item
}

// CartTotal sums every line total.
func (a *Account) CartTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range a.Cart {
		total = total.Add(item.LineTotal)
	}
	return total
}
