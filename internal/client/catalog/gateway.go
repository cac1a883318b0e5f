// Package catalog is the storefront's view of the product catalog: a
// gateway to the catalog API and the query state that drives it.
package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/utafrali/storefront/internal/client/agent"
	"github.com/utafrali/storefront/internal/storefront"
	"github.com/utafrali/storefront/pkg/pagination"
)

// Page is one page of products with its paging descriptor.
type Page struct {
	Items    []storefront.Product
	MetaData pagination.MetaData
}

// Gateway is the catalog API consumed by State.
type Gateway interface {
	List(ctx context.Context, params storefront.ProductParams) (*Page, error)
	Details(ctx context.Context, productID int) (*storefront.Product, error)
	Filters(ctx context.Context) (*storefront.Filters, error)
}

// HTTPGateway implements Gateway over the catalog REST endpoints.
type HTTPGateway struct {
	agent *agent.Agent
}

// NewHTTPGateway creates a gateway using a.
func NewHTTPGateway(a *agent.Agent) *HTTPGateway {
	return &HTTPGateway{agent: a}
}

// List fetches the page described by params.
func (g *HTTPGateway) List(ctx context.Context, params storefront.ProductParams) (*Page, error) {
	var items []storefront.Product
	meta, err := g.agent.Get(ctx, "products", params.Query(), &items)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if meta == nil {
		return nil, fmt.Errorf("list products: response has no %s header", pagination.HeaderName)
	}
	if items == nil {
		items = []storefront.Product{}
	}
	return &Page{Items: items, MetaData: *meta}, nil
}

// Details fetches a single product.
func (g *HTTPGateway) Details(ctx context.Context, productID int) (*storefront.Product, error) {
	var p storefront.Product
	if _, err := g.agent.Get(ctx, "products/"+strconv.Itoa(productID), nil, &p); err != nil {
		return nil, fmt.Errorf("get product %d: %w", productID, err)
	}
	return &p, nil
}

// Filters fetches the brand and type facets.
func (g *HTTPGateway) Filters(ctx context.Context) (*storefront.Filters, error) {
	var f storefront.Filters
	if _, err := g.agent.Get(ctx, "products/filters", nil, &f); err != nil {
		return nil, fmt.Errorf("get filters: %w", err)
	}
	return &f, nil
}
