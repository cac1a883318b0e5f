package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/storefront"
	"github.com/utafrali/storefront/pkg/pagination"
	"github.com/utafrali/storefront/pkg/validator"
	"github.com/utafrali/storefront/services/catalog/internal/repository"
)

// CatalogService implements the read side of the product catalog.
type CatalogService struct {
	repo   repository.ProductRepository
	logger *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(repo repository.ProductRepository, logger *slog.Logger) *CatalogService {
	return &CatalogService{repo: repo, logger: logger}
}

// ListProducts returns one page of products and its paging descriptor.
func (s *CatalogService) ListProducts(ctx context.Context, params storefront.ProductParams) ([]storefront.Product, pagination.MetaData, error) {
	if err := validator.Validate(params); err != nil {
		return nil, pagination.MetaData{}, err
	}

	products, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pagination.MetaData{}, fmt.Errorf("list products: %w", err)
	}

	meta := pagination.NewMetaData(total, params.Page())
	s.logger.DebugContext(ctx, "products listed",
		slog.Int("page", meta.CurrentPage),
		slog.Int("returned", len(products)),
		slog.Int("total", meta.TotalCount),
	)
	return products, meta, nil
}

// GetProduct retrieves a product by its ID.
func (s *CatalogService) GetProduct(ctx context.Context, id int) (*storefront.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return product, nil
}

// GetFilters returns the distinct brand and type facets.
func (s *CatalogService) GetFilters(ctx context.Context) (*storefront.Filters, error) {
	filters, err := s.repo.Filters(ctx)
	if err != nil {
		return nil, fmt.Errorf("get filters: %w", err)
	}
	return filters, nil
}
