package basket

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/storefront"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// ============================================================================
// Mock Gateway
// ============================================================================

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Get(ctx context.Context) (*storefront.Cart, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storefront.Cart), args.Error(1)
}

func (m *mockGateway) AddItem(ctx context.Context, productID, quantity int) (*storefront.Cart, error) {
	args := m.Called(ctx, productID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storefront.Cart), args.Error(1)
}

func (m *mockGateway) RemoveItem(ctx context.Context, productID, quantity int) error {
	args := m.Called(ctx, productID, quantity)
	return args.Error(0)
}

func (m *mockGateway) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockGateway) CreatePaymentIntent(ctx context.Context) (*storefront.Cart, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storefront.Cart), args.Error(1)
}

var boots = storefront.Product{ID: 5, Name: "Boots", Price: 1000}

func serverCart(items ...storefront.CartItem) *storefront.Cart {
	return &storefront.Cart{ID: "cart-1", BuyerID: "buyer-1", Items: items}
}

// ============================================================================
// AddItem
// ============================================================================

func TestStore_AddItem_TentativeThenConfirmed(t *testing.T) {
	gw := new(mockGateway)
	s := NewStore(gw)

	confirmed := serverCart(storefront.CartItem{ProductID: 5, Name: "Boots", Price: 1000, Quantity: 2})
	gw.On("AddItem", mock.Anything, 5, 2).
		Run(func(mock.Arguments) {
			assert.Equal(t, Status("pending-add-item-5"), s.Status())
			tentative := s.Cart()
			require.NotNil(t, tentative)
			item, ok := tentative.Item(5)
			require.True(t, ok)
			assert.Equal(t, 2, item.Quantity)
		}).
		Return(confirmed, nil)

	got, err := s.AddItem(context.Background(), boots, 2)
	require.NoError(t, err)
	assert.Equal(t, "cart-1", got.ID)
	assert.Equal(t, "cart-1", s.Cart().ID)
	assert.Equal(t, StatusIdle, s.Status())
	gw.AssertExpectations(t)
}

func TestStore_AddItem_RollsBackOnFailure(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Get", mock.Anything).Return(serverCart(storefront.CartItem{ProductID: 5, Quantity: 1}), nil)
	gw.On("AddItem", mock.Anything, 5, 3).Return(nil, apperrors.Validation([]string{"quantity max 100"}))

	s := NewStore(gw)
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	_, err = s.AddItem(context.Background(), boots, 3)
	require.ErrorIs(t, err, apperrors.ErrValidation)

	item, ok := s.Cart().Item(5)
	require.True(t, ok)
	assert.Equal(t, 1, item.Quantity)
	assert.Equal(t, StatusIdle, s.Status())
}

func TestStore_AddItem_RollbackToNoCart(t *testing.T) {
	gw := new(mockGateway)
	gw.On("AddItem", mock.Anything, 5, 1).Return(nil, errors.New("connection refused"))

	s := NewStore(gw)
	_, err := s.AddItem(context.Background(), boots, 1)
	require.Error(t, err)
	assert.Nil(t, s.Cart())
}

// ============================================================================
// RemoveItem
// ============================================================================

func TestStore_RemoveItem_ConfirmsTentative(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Get", mock.Anything).Return(serverCart(
		storefront.CartItem{ProductID: 5, Quantity: 1},
		storefront.CartItem{ProductID: 6, Quantity: 4},
	), nil)
	gw.On("RemoveItem", mock.Anything, 5, 1).Return(nil)

	s := NewStore(gw)
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	got, err := s.RemoveItem(context.Background(), 5, 1)
	require.NoError(t, err)
	_, ok := got.Item(5)
	assert.False(t, ok)
	assert.Len(t, got.Items, 1)
	assert.Equal(t, StatusIdle, s.Status())
}

func TestStore_RemoveItem_RollsBackOnFailure(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Get", mock.Anything).Return(serverCart(storefront.CartItem{ProductID: 5, Quantity: 2}), nil)

	s := NewStore(gw)
	gw.On("RemoveItem", mock.Anything, 5, 1).
		Run(func(mock.Arguments) { assert.Equal(t, Status("pending-remove-item-5"), s.Status()) }).
		Return(apperrors.Server("storefront-api server error (500)"))

	_, err := s.Load(context.Background())
	require.NoError(t, err)

	_, err = s.RemoveItem(context.Background(), 5, 1)
	require.Error(t, err)

	item, ok := s.Cart().Item(5)
	require.True(t, ok)
	assert.Equal(t, 2, item.Quantity)
}

// ============================================================================
// Load / Clear / Checkout
// ============================================================================

func TestStore_CartIsACopy(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Get", mock.Anything).Return(serverCart(storefront.CartItem{ProductID: 5, Quantity: 2}), nil)

	s := NewStore(gw)
	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	loaded.Items[0].Quantity = 99

	assert.Equal(t, 2, s.Cart().Items[0].Quantity)
}

func TestStore_ClearAndCheckout(t *testing.T) {
	gw := new(mockGateway)
	withIntent := serverCart(storefront.CartItem{ProductID: 5, Quantity: 1})
	withIntent.PaymentIntentID = "pi_123"
	withIntent.ClientSecret = "pi_123_secret"
	gw.On("CreatePaymentIntent", mock.Anything).Return(withIntent, nil)
	gw.On("Clear", mock.Anything).Return(nil)

	s := NewStore(gw)
	got, err := s.Checkout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pi_123", got.PaymentIntentID)
	assert.Equal(t, "pi_123_secret", s.Cart().ClientSecret)

	require.NoError(t, s.Clear(context.Background()))
	assert.Nil(t, s.Cart())
}

func TestStore_LoadError(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Get", mock.Anything).Return(nil, apperrors.ErrUnauthorized)

	_, err := NewStore(gw).Load(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}
