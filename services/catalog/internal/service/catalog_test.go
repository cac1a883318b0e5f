package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/storefront"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/validator"
)

// --- Mock Repository ---

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) List(ctx context.Context, params storefront.ProductParams) ([]storefront.Product, int, error) {
	args := m.Called(ctx, params)
	return args.Get(0).([]storefront.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepository) GetByID(ctx context.Context, id int) (*storefront.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storefront.Product), args.Error(1)
}

func (m *mockProductRepository) Filters(ctx context.Context) (*storefront.Filters, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storefront.Filters), args.Error(1)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- Tests ---

func TestListProducts_Success(t *testing.T) {
	repo := new(mockProductRepository)
	svc := NewCatalogService(repo, newTestLogger())

	params := storefront.DefaultProductParams()
	params.PageNumber = 2
	products := []storefront.Product{{ID: 7, Name: "Blue Hat", Price: 1500}}
	repo.On("List", mock.Anything, params).Return(products, 13, nil)

	got, meta, err := svc.ListProducts(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, products, got)
	assert.Equal(t, 2, meta.CurrentPage)
	assert.Equal(t, 6, meta.PageSize)
	assert.Equal(t, 13, meta.TotalCount)
	assert.Equal(t, 3, meta.TotalPages)
	repo.AssertExpectations(t)
}

func TestListProducts_InvalidParams(t *testing.T) {
	repo := new(mockProductRepository)
	svc := NewCatalogService(repo, newTestLogger())

	params := storefront.DefaultProductParams()
	params.OrderBy = "rating"
	params.PageSize = 500

	_, _, err := svc.ListProducts(context.Background(), params)
	require.Error(t, err)

	var verr *validator.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields(), "orderBy")
	assert.Contains(t, verr.Fields(), "pageSize")
	repo.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestListProducts_RepoError(t *testing.T) {
	repo := new(mockProductRepository)
	svc := NewCatalogService(repo, newTestLogger())

	repo.On("List", mock.Anything, mock.Anything).Return([]storefront.Product(nil), 0, errors.New("db down"))

	_, _, err := svc.ListProducts(context.Background(), storefront.DefaultProductParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list products")
}

func TestGetProduct_Success(t *testing.T) {
	repo := new(mockProductRepository)
	svc := NewCatalogService(repo, newTestLogger())

	p := &storefront.Product{ID: 3, Name: "Core Purple Boots"}
	repo.On("GetByID", mock.Anything, 3).Return(p, nil)

	got, err := svc.GetProduct(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestGetProduct_NotFound(t *testing.T) {
	repo := new(mockProductRepository)
	svc := NewCatalogService(repo, newTestLogger())

	repo.On("GetByID", mock.Anything, 42).Return(nil, apperrors.NotFound("product", "42"))

	_, err := svc.GetProduct(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestGetFilters(t *testing.T) {
	repo := new(mockProductRepository)
	svc := NewCatalogService(repo, newTestLogger())

	filters := &storefront.Filters{Brands: []string{"Angular"}, Types: []string{"Boards"}}
	repo.On("Filters", mock.Anything).Return(filters, nil)

	got, err := svc.GetFilters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filters, got)
}

func TestGetFilters_Error(t *testing.T) {
	repo := new(mockProductRepository)
	svc := NewCatalogService(repo, newTestLogger())

	repo.On("Filters", mock.Anything).Return(nil, errors.New("timeout"))

	_, err := svc.GetFilters(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get filters")
}
