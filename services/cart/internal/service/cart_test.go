package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/storefront"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/validator"
	"github.com/utafrali/storefront/services/cart/internal/payment"
)

// --- Mocks ---

type mockCartRepository struct {
	mock.Mock
}

func (m *mockCartRepository) Get(ctx context.Context, buyerID string) (*storefront.Cart, error) {
	args := m.Called(ctx, buyerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// Hand out a copy so the service mutates its own cart, as with Redis.
	return args.Get(0).(*storefront.Cart).Clone(), args.Error(1)
}

func (m *mockCartRepository) SaveIfVersion(ctx context.Context, cart *storefront.Cart, expected int) (bool, error) {
	args := m.Called(ctx, cart, expected)
	if args.Bool(0) && args.Error(1) == nil {
		cart.Version = expected + 1
	}
	return args.Bool(0), args.Error(1)
}

func (m *mockCartRepository) Delete(ctx context.Context, buyerID string) error {
	return m.Called(ctx, buyerID).Error(0)
}

type mockProductLookup struct {
	mock.Mock
}

func (m *mockProductLookup) GetProduct(ctx context.Context, id int) (*storefront.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storefront.Product), args.Error(1)
}

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) PublishCartUpdated(ctx context.Context, cart *storefront.Cart) error {
	return m.Called(ctx, cart).Error(0)
}

func (m *mockEvents) PublishCartCleared(ctx context.Context, buyerID string) error {
	return m.Called(ctx, buyerID).Error(0)
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) CreateOrUpdate(ctx context.Context, intentID string, amount int64) (payment.Intent, error) {
	args := m.Called(ctx, intentID, amount)
	return args.Get(0).(payment.Intent), args.Error(1)
}

// --- Test Helpers ---

type fixture struct {
	repo     *mockCartRepository
	products *mockProductLookup
	events   *mockEvents
	svc      *CartService
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newFixture(provider payment.Provider) *fixture {
	f := &fixture{
		repo:     new(mockCartRepository),
		products: new(mockProductLookup),
		events:   new(mockEvents),
	}
	if provider == nil {
		provider = payment.NewMockProvider(newTestLogger())
	}
	f.svc = NewCartService(f.repo, f.products, provider, f.events, newTestLogger())
	return f
}

var blueHat = &storefront.Product{ID: 3, Name: "Blue Hat", Price: 1500, Brand: "NetCore", Type: "Hats"}

func cartWith(buyerID string, version int, items ...storefront.CartItem) *storefront.Cart {
	now := time.Now().UTC()
	return &storefront.Cart{
		ID:        "cart-123",
		BuyerID:   buyerID,
		Items:     items,
		Version:   version,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func hatLine(quantity int) storefront.CartItem {
	return storefront.CartItem{ProductID: 3, Name: "Blue Hat", Price: 1500, Brand: "NetCore", Type: "Hats", Quantity: quantity}
}

func notFound(buyerID string) error {
	return apperrors.NotFound("cart", buyerID)
}

// --- GetCart ---

func TestGetCart_Existing(t *testing.T) {
	f := newFixture(nil)
	f.repo.On("Get", mock.Anything, "buyer-1").Return(cartWith("buyer-1", 2, hatLine(1)), nil)

	cart, err := f.svc.GetCart(context.Background(), "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, 2, cart.Version)
	assert.Len(t, cart.Items, 1)
}

func TestGetCart_MissingReturnsEmptyUnsaved(t *testing.T) {
	f := newFixture(nil)
	f.repo.On("Get", mock.Anything, "buyer-1").Return(nil, notFound("buyer-1"))

	cart, err := f.svc.GetCart(context.Background(), "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, "buyer-1", cart.BuyerID)
	assert.Empty(t, cart.Items)
	assert.NotNil(t, cart.Items)
	assert.Zero(t, cart.Version)
	f.repo.AssertNotCalled(t, "SaveIfVersion", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetCart_NoBuyer(t *testing.T) {
	f := newFixture(nil)

	cart, err := f.svc.GetCart(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	f.repo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestGetCart_RepositoryError(t *testing.T) {
	f := newFixture(nil)
	f.repo.On("Get", mock.Anything, "buyer-1").Return(nil, errors.New("redis down"))

	_, err := f.svc.GetCart(context.Background(), "buyer-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get cart")
}

// --- AddItem ---

func TestAddItem_NewCart(t *testing.T) {
	f := newFixture(nil)
	f.products.On("GetProduct", mock.Anything, 3).Return(blueHat, nil)
	f.repo.On("Get", mock.Anything, "buyer-1").Return(nil, notFound("buyer-1"))
	f.repo.On("SaveIfVersion", mock.Anything, mock.AnythingOfType("*storefront.Cart"), 0).Return(true, nil)
	f.events.On("PublishCartUpdated", mock.Anything, mock.Anything).Return(nil)

	cart, err := f.svc.AddItem(context.Background(), "buyer-1", ItemParams{ProductID: 3, Quantity: 2})
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, hatLine(2), cart.Items[0])
	assert.Equal(t, 1, cart.Version)
	assert.Equal(t, "buyer-1", cart.BuyerID)
	f.events.AssertCalled(t, "PublishCartUpdated", mock.Anything, cart)
}

func TestAddItem_ConsolidatesExistingLine(t *testing.T) {
	f := newFixture(nil)
	f.products.On("GetProduct", mock.Anything, 3).Return(blueHat, nil)
	f.repo.On("Get", mock.Anything, "buyer-1").Return(cartWith("buyer-1", 4, hatLine(2)), nil)
	f.repo.On("SaveIfVersion", mock.Anything, mock.Anything, 4).Return(true, nil)
	f.events.On("PublishCartUpdated", mock.Anything, mock.Anything).Return(nil)

	cart, err := f.svc.AddItem(context.Background(), "buyer-1", ItemParams{ProductID: 3, Quantity: 3})
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, 5, cart.Version)
}

func TestAddItem_ValidationFailure(t *testing.T) {
	tests := []struct {
		name   string
		params ItemParams
		field  string
	}{
		{"missing product", ItemParams{Quantity: 1}, "productId"},
		{"zero quantity", ItemParams{ProductID: 3}, "quantity"},
		{"quantity too large", ItemParams{ProductID: 3, Quantity: 101}, "quantity"},
		{"negative product", ItemParams{ProductID: -1, Quantity: 1}, "productId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil)

			_, err := f.svc.AddItem(context.Background(), "buyer-1", tt.params)

			var verr *validator.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields(), tt.field)
			f.products.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything)
		})
	}
}

func TestAddItem_NoBuyer(t *testing.T) {
	f := newFixture(nil)

	_, err := f.svc.AddItem(context.Background(), "", ItemParams{ProductID: 3, Quantity: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestAddItem_UnknownProduct(t *testing.T) {
	f := newFixture(nil)
	f.products.On("GetProduct", mock.Anything, 99).Return(nil, apperrors.InvalidInput("product not found"))

	_, err := f.svc.AddItem(context.Background(), "buyer-1", ItemParams{ProductID: 99, Quantity: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	f.repo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestAddItem_CombinedQuantityLimit(t *testing.T) {
	f := newFixture(nil)
	f.products.On("GetProduct", mock.Anything, 3).Return(blueHat, nil)
	f.repo.On("Get", mock.Anything, "buyer-1").Return(cartWith("buyer-1", 1, hatLine(99)), nil)

	_, err := f.svc.AddItem(context.Background(), "buyer-1", ItemParams{ProductID: 3, Quantity: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "combined quantity must not exceed 100")
	f.repo.AssertNotCalled(t, "SaveIfVersion", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddItem_LineLimit(t *testing.T) {
	items := make([]storefront.CartItem, MaxItemsPerCart)
	for i := range items {
		items[i] = storefront.CartItem{ProductID: 100 + i, Quantity: 1}
	}

	f := newFixture(nil)
	f.products.On("GetProduct", mock.Anything, 3).Return(blueHat, nil)
	f.repo.On("Get", mock.Anything, "buyer-1").Return(cartWith("buyer-1", 1, items...), nil)

	_, err := f.svc.AddItem(context.Background(), "buyer-1", ItemParams{ProductID: 3, Quantity: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than 50 items")
}

func TestAddItem_RetriesAfterVersionConflict(t *testing.T) {
	f := newFixture(nil)
	f.products.On("GetProduct", mock.Anything, 3).Return(blueHat, nil)
	f.repo.On("Get", mock.Anything, "buyer-1").Return(cartWith("buyer-1", 1, hatLine(1)), nil).Once()
	f.repo.On("SaveIfVersion", mock.Anything, mock.Anything, 1).Return(false, nil).Once()
	f.repo.On("Get", mock.Anything, "buyer-1").Return(cartWith("buyer-1", 2, hatLine(4)), nil).Once()
	f.repo.On("SaveIfVersion", mock.Anything, mock.Anything, 2).Return(true, nil).Once()
	f.events.On("PublishCartUpdated", mock.Anything, mock.Anything).Return(nil)

	cart, err := f.svc.AddItem(context.Background(), "buyer-1", ItemParams{ProductID: 3, Quantity: 1})
	require.NoError(t, err)

	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, 3, cart.Version)
	f.repo.AssertExpectations(t)
}

func TestAddItem_ConflictAfterMaxAttempts(t *testing.T) {
	f := newFixture(nil)
	f.products.On("GetProduct", mock.Anything, 3).Return(blueHat, nil)
	f.repo.On("Get", mock.Anything, "buyer-1").Return(cartWith("buyer-1", 1), nil)
	f.repo.On("SaveIfVersion", mock.Anything, mock.Anything, 1).Return(false, nil)

	_, err := f.svc.AddItem(context.Background(), "buyer-1", ItemParams{ProductID: 3, Quantity: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	f.repo.AssertNumberOfCalls(t, "SaveIfVersion", maxSaveAttempts)
	f.events.AssertNotCalled(t, "PublishCartUpdated", mock.Anything, mock.Anything)
}

func TestAddItem_SaveError(t *testing.T) {
	f := newFixture(nil)
	f.products.On("GetProduct", mock.Anything, 3).Return(blueHat, nil)
	f.repo.On("Get", mock.Anything, "buyer-1").Return(nil, notFound("buyer-1"))
	f.repo.On("SaveIfVersion", mock.Anything, mock.Anything, 0).Return(false, errors.New("redis down"))

	_, err := f.svc.AddItem(context.Background(), "buyer-1", ItemParams{ProductID: 3, Quantity: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save cart")
}

func TestAddItem_PublishFailureDoesNotFail(t *testing.T) {
	f := newFixture(nil)
	f.products.On("GetProduct", mock.Anything, 3).Return(blueHat, nil)
	f.repo.On("Get", mock.Anything, "buyer-1").Return(nil, notFound("buyer-1"))
	f.repo.On("SaveIfVersion", mock.Anything, mock.Anything, 0).Return(true, nil)
	f.events.On("PublishCartUpdated", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	cart, err := f.svc.AddItem(context.Background(), "buyer-1", ItemParams{ProductID: 3, Quantity: 1})
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

// --- RemoveItem ---

func TestRemoveItem_Decrements(t *testing.T) {
	f := newFixture(nil)
	f.repo.On("Get", mock.Anything, "buyer-1").Return(cartWith("buyer-1", 2, hatLine(3)), nil)
	f.repo.On("SaveIfVersion", mock.Anything, mock.Anything, 2).Return(true, nil)
	f.events.On("PublishCartUpdated", mock.Anything, mock.Anything).Return(nil)

	cart, err := f.svc.RemoveItem(context.Background(), "buyer-1", ItemParams{ProductID: 3, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, cart.Items[0].Quantity)
}

func TestRemoveItem_DropsLineAtZero(t *testing.T) {
	f := newFixture(nil)
	f.repo.On("Get", mock.Anything, "buyer-1").Return(cartWith("buyer-1", 2, hatLine(2)), nil)
	f.repo.On("SaveIfVersion", mock.Anything, mock.Anything, 2).Return(true, nil)
	f.events.On("PublishCartUpdated", mock.Anything, mock.Anything).Return(nil)

	cart, err := f.svc.RemoveItem(context.Background(), "buyer-1", ItemParams{ProductID: 3, Quantity: 5})
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestRemoveItem_UnknownLineIsNoop(t *testing.T) {
	f := newFixture(nil)
	f.repo.On("Get", mock.Anything, "buyer-1").Return(cartWith("buyer-1", 2, hatLine(2)), nil)

	cart, err := f.svc.RemoveItem(context.Background(), "buyer-1", ItemParams{ProductID: 42, Quantity: 1})
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	f.repo.AssertNotCalled(t, "SaveIfVersion", mock.Anything, mock.Anything, mock.Anything)
	f.events.AssertNotCalled(t, "PublishCartUpdated", mock.Anything, mock.Anything)
}

func TestRemoveItem_MissingCart(t *testing.T) {
	f := newFixture(nil)
	f.repo.On("Get", mock.Anything, "buyer-1").Return(nil, notFound("buyer-1"))

	_, err := f.svc.RemoveItem(context.Background(), "buyer-1", ItemParams{ProductID: 3, Quantity: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRemoveItem_NoBuyer(t *testing.T) {
	f := newFixture(nil)

	_, err := f.svc.RemoveItem(context.Background(), "", ItemParams{ProductID: 3, Quantity: 1})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// --- ClearCart ---

func TestClearCart(t *testing.T) {
	f := newFixture(nil)
	f.repo.On("Delete", mock.Anything, "buyer-1").Return(nil)
	f.events.On("PublishCartCleared", mock.Anything, "buyer-1").Return(nil)

	require.NoError(t, f.svc.ClearCart(context.Background(), "buyer-1"))
	f.repo.AssertExpectations(t)
	f.events.AssertExpectations(t)
}

func TestClearCart_DeleteError(t *testing.T) {
	f := newFixture(nil)
	f.repo.On("Delete", mock.Anything, "buyer-1").Return(errors.New("redis down"))

	err := f.svc.ClearCart(context.Background(), "buyer-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete cart")
	f.events.AssertNotCalled(t, "PublishCartCleared", mock.Anything, mock.Anything)
}

func TestClearCart_NoBuyer(t *testing.T) {
	f := newFixture(nil)

	require.NoError(t, f.svc.ClearCart(context.Background(), ""))
	f.repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

// --- CreatePaymentIntent ---

func TestCreatePaymentIntent_New(t *testing.T) {
	f := newFixture(nil)
	f.repo.On("Get", mock.Anything, "buyer-1").Return(cartWith("buyer-1", 1, hatLine(2)), nil)
	f.repo.On("SaveIfVersion", mock.Anything, mock.Anything, 1).Return(true, nil)
	f.events.On("PublishCartUpdated", mock.Anything, mock.Anything).Return(nil)

	cart, err := f.svc.CreatePaymentIntent(context.Background(), "buyer-1")
	require.NoError(t, err)
	assert.True(t, len(cart.PaymentIntentID) > 3 && cart.PaymentIntentID[:3] == "pi_")
	assert.Contains(t, cart.ClientSecret, cart.PaymentIntentID+"_secret_")
	assert.Equal(t, 2, cart.Version)
}

func TestCreatePaymentIntent_UpdatesExistingIntent(t *testing.T) {
	provider := new(mockProvider)
	f := newFixture(provider)

	existing := cartWith("buyer-1", 3, hatLine(2))
	existing.PaymentIntentID = "pi_1"
	existing.ClientSecret = "pi_1_secret_a"
	f.repo.On("Get", mock.Anything, "buyer-1").Return(existing, nil)
	f.repo.On("SaveIfVersion", mock.Anything, mock.Anything, 3).Return(true, nil)
	f.events.On("PublishCartUpdated", mock.Anything, mock.Anything).Return(nil)
	provider.On("CreateOrUpdate", mock.Anything, "pi_1", int64(3000)).
		Return(payment.Intent{ID: "pi_1", ClientSecret: "pi_1_secret_a", Amount: 3000}, nil)

	cart, err := f.svc.CreatePaymentIntent(context.Background(), "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, "pi_1", cart.PaymentIntentID)
	provider.AssertExpectations(t)
}

func TestCreatePaymentIntent_UnknownIntentIsRecreated(t *testing.T) {
	provider := new(mockProvider)
	f := newFixture(provider)

	existing := cartWith("buyer-1", 1, hatLine(1))
	existing.PaymentIntentID = "pi_gone"
	f.repo.On("Get", mock.Anything, "buyer-1").Return(existing, nil)
	f.repo.On("SaveIfVersion", mock.Anything, mock.Anything, 1).Return(true, nil)
	f.events.On("PublishCartUpdated", mock.Anything, mock.Anything).Return(nil)
	provider.On("CreateOrUpdate", mock.Anything, "pi_gone", int64(1500)).
		Return(payment.Intent{}, apperrors.NotFound("payment intent", "pi_gone"))
	provider.On("CreateOrUpdate", mock.Anything, "", int64(1500)).
		Return(payment.Intent{ID: "pi_new", ClientSecret: "pi_new_secret_b", Amount: 1500}, nil)

	cart, err := f.svc.CreatePaymentIntent(context.Background(), "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, "pi_new", cart.PaymentIntentID)
	assert.Equal(t, "pi_new_secret_b", cart.ClientSecret)
}

func TestCreatePaymentIntent_RetryReusesCreatedIntent(t *testing.T) {
	provider := new(mockProvider)
	f := newFixture(provider)

	f.repo.On("Get", mock.Anything, "buyer-1").Return(cartWith("buyer-1", 1, hatLine(1)), nil).Once()
	f.repo.On("SaveIfVersion", mock.Anything, mock.Anything, 1).Return(false, nil).Once()
	f.repo.On("Get", mock.Anything, "buyer-1").Return(cartWith("buyer-1", 2, hatLine(2)), nil).Once()
	f.repo.On("SaveIfVersion", mock.Anything, mock.Anything, 2).Return(true, nil).Once()
	f.events.On("PublishCartUpdated", mock.Anything, mock.Anything).Return(nil)
	provider.On("CreateOrUpdate", mock.Anything, "", int64(1500)).
		Return(payment.Intent{ID: "pi_1", ClientSecret: "s1", Amount: 1500}, nil).Once()
	provider.On("CreateOrUpdate", mock.Anything, "pi_1", int64(3000)).
		Return(payment.Intent{ID: "pi_1", ClientSecret: "s1", Amount: 3000}, nil).Once()

	cart, err := f.svc.CreatePaymentIntent(context.Background(), "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, "pi_1", cart.PaymentIntentID)
	provider.AssertExpectations(t)
}

func TestCreatePaymentIntent_EmptyCart(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
		buyer string
	}{
		{"no buyer", func(*fixture) {}, ""},
		{"missing cart", func(f *fixture) {
			f.repo.On("Get", mock.Anything, "buyer-1").Return(nil, notFound("buyer-1"))
		}, "buyer-1"},
		{"no items", func(f *fixture) {
			f.repo.On("Get", mock.Anything, "buyer-1").Return(cartWith("buyer-1", 1), nil)
		}, "buyer-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil)
			tt.setup(f)

			_, err := f.svc.CreatePaymentIntent(context.Background(), tt.buyer)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Contains(t, err.Error(), "cart is empty")
		})
	}
}
