package repository

import (
	"context"

	"github.com/utafrali/storefront/internal/storefront"
)

// ProductRepository defines the read access to the product catalog.
type ProductRepository interface {
	// List returns one page of products matching params and the total
	// number of matches across all pages.
	List(ctx context.Context, params storefront.ProductParams) ([]storefront.Product, int, error)
	GetByID(ctx context.Context, id int) (*storefront.Product, error)
	Filters(ctx context.Context) (*storefront.Filters, error)
}
