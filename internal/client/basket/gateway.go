// Package basket is the storefront's cart: a gateway to the cart API and a
// store that applies mutations locally before the server confirms them.
package basket

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/utafrali/storefront/internal/client/agent"
	"github.com/utafrali/storefront/internal/storefront"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Gateway is the cart API consumed by Store.
type Gateway interface {
	Get(ctx context.Context) (*storefront.Cart, error)
	AddItem(ctx context.Context, productID, quantity int) (*storefront.Cart, error)
	RemoveItem(ctx context.Context, productID, quantity int) error
	Clear(ctx context.Context) error
	CreatePaymentIntent(ctx context.Context) (*storefront.Cart, error)
}

// HTTPGateway implements Gateway over the cart REST endpoints.
type HTTPGateway struct {
	agent *agent.Agent
}

// NewHTTPGateway creates a gateway using a.
func NewHTTPGateway(a *agent.Agent) *HTTPGateway {
	return &HTTPGateway{agent: a}
}

func itemQuery(productID, quantity int) url.Values {
	return url.Values{
		"productId": {strconv.Itoa(productID)},
		"quantity":  {strconv.Itoa(quantity)},
	}
}

// Get fetches the buyer's cart. A buyer without a cart gets an empty one.
func (g *HTTPGateway) Get(ctx context.Context) (*storefront.Cart, error) {
	var c storefront.Cart
	if _, err := g.agent.Get(ctx, "cart", nil, &c); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return &storefront.Cart{Items: []storefront.CartItem{}}, nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return &c, nil
}

// AddItem adds quantity of productID and returns the updated cart.
func (g *HTTPGateway) AddItem(ctx context.Context, productID, quantity int) (*storefront.Cart, error) {
	var c storefront.Cart
	if err := g.agent.Post(ctx, "cart", itemQuery(productID, quantity), &c); err != nil {
		return nil, fmt.Errorf("add item %d: %w", productID, err)
	}
	return &c, nil
}

// RemoveItem removes quantity of productID.
func (g *HTTPGateway) RemoveItem(ctx context.Context, productID, quantity int) error {
	if err := g.agent.Delete(ctx, "cart", itemQuery(productID, quantity), nil); err != nil {
		return fmt.Errorf("remove item %d: %w", productID, err)
	}
	return nil
}

// Clear deletes the buyer's cart.
func (g *HTTPGateway) Clear(ctx context.Context) error {
	if err := g.agent.Delete(ctx, "cart/all", nil, nil); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// CreatePaymentIntent creates or refreshes the payment intent for the cart
// total and returns the cart carrying its id and client secret.
func (g *HTTPGateway) CreatePaymentIntent(ctx context.Context) (*storefront.Cart, error) {
	var c storefront.Cart
	if err := g.agent.Post(ctx, "payments", nil, &c); err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return &c, nil
}
