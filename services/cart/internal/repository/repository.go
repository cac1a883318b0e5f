package repository

import (
	"context"

	"github.com/utafrali/storefront/internal/storefront"
)

// CartRepository defines the interface for cart persistence operations.
type CartRepository interface {
	// Get retrieves a cart by its buyer ID. A missing cart is an
	// apperrors.ErrNotFound.
	Get(ctx context.Context, buyerID string) (*storefront.Cart, error)

	// SaveIfVersion stores cart only if the stored version still equals
	// expected (0 when no cart is stored). On success cart.Version is
	// advanced; ok is false when another writer won.
	SaveIfVersion(ctx context.Context, cart *storefront.Cart, expected int) (ok bool, err error)

	// Delete removes a cart from the store by the buyer ID.
	Delete(ctx context.Context, buyerID string) error
}
