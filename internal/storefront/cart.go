package storefront

import (
	"slices"
	"time"
)

// Cart is a buyer's cart. It holds at most one item per product.
type Cart struct {
	ID              string     `json:"id"`
	BuyerID         string     `json:"buyerId"`
	Items           []CartItem `json:"items"`
	PaymentIntentID string     `json:"paymentIntentId,omitempty"`
	ClientSecret    string     `json:"clientSecret,omitempty"`
	Version         int        `json:"version"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// CartItem is a cart line. The product fields are a snapshot taken when the
// line was first added; Quantity is always at least 1.
type CartItem struct {
	ProductID  int    `json:"productId"`
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	PictureURL string `json:"pictureUrl,omitempty"`
	Brand      string `json:"brand"`
	Type       string `json:"type"`
	Quantity   int    `json:"quantity"`
}

// AddItem consolidates quantity into the line for product, creating the
// line at quantity zero first if the cart has none. Non-positive
// quantities are ignored.
func (c *Cart) AddItem(product Product, quantity int) {
	if quantity < 1 {
		return
	}
	i := c.FindItemIndex(product.ID)
	if i < 0 {
		c.Items = append(c.Items, CartItem{
			ProductID:  product.ID,
			Name:       product.Name,
			Price:      product.Price,
			PictureURL: product.PictureURL,
			Brand:      product.Brand,
			Type:       product.Type,
		})
		i = len(c.Items) - 1
	}
	c.Items[i].Quantity += quantity
}

// RemoveItem decrements the line for productID and drops it once the
// quantity falls below 1. Unknown products are a no-op.
func (c *Cart) RemoveItem(productID, quantity int) {
	i := c.FindItemIndex(productID)
	if i < 0 {
		return
	}
	c.Items[i].Quantity -= quantity
	if c.Items[i].Quantity < 1 {
		c.Items = slices.Delete(c.Items, i, i+1)
	}
}

// FindItemIndex returns the index of the line for productID, or -1.
func (c *Cart) FindItemIndex(productID int) int {
	return slices.IndexFunc(c.Items, func(it CartItem) bool { return it.ProductID == productID })
}

// Item returns the line for productID.
func (c *Cart) Item(productID int) (CartItem, bool) {
	if i := c.FindItemIndex(productID); i >= 0 {
		return c.Items[i], true
	}
	return CartItem{}, false
}

// TotalAmount returns the cart total in minor units.
func (c *Cart) TotalAmount() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.Price * int64(item.Quantity)
	}
	return total
}

// ItemCount returns the number of units across all lines.
func (c *Cart) ItemCount() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// ClearPayment drops the payment-session fields.
func (c *Cart) ClearPayment() {
	c.PaymentIntentID = ""
	c.ClientSecret = ""
}

// Clone returns a copy of c that shares no item storage with it.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = slices.Clone(c.Items)
	return &out
}
