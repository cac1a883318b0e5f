package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/storefront"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/money"
	"github.com/utafrali/storefront/pkg/validator"
	"github.com/utafrali/storefront/services/cart/internal/catalog"
	"github.com/utafrali/storefront/services/cart/internal/payment"
	"github.com/utafrali/storefront/services/cart/internal/repository"
)

// Per-cart limits.
const (
	// MaxQuantityPerItem is the maximum quantity allowed for a single cart line.
	MaxQuantityPerItem = 100
	// MaxItemsPerCart is the maximum number of distinct products allowed in a cart.
	MaxItemsPerCart = 50
)

// maxSaveAttempts bounds the optimistic save loop before reporting a conflict.
const maxSaveAttempts = 3

// ItemParams holds the query parameters of the cart item endpoints.
type ItemParams struct {
	ProductID int `query:"productId" validate:"required,min=1"`
	Quantity  int `query:"quantity" validate:"required,min=1,max=100"`
}

// EventPublisher publishes cart domain events.
type EventPublisher interface {
	PublishCartUpdated(ctx context.Context, cart *storefront.Cart) error
	PublishCartCleared(ctx context.Context, buyerID string) error
}

// CartService owns the buyer carts: item changes, clearing and the payment
// intent for checkout. Mutations of one buyer's cart are serialized.
type CartService struct {
	carts    repository.CartRepository
	products catalog.ProductLookup
	payments payment.Provider
	events   EventPublisher
	locks    *keyedMutex
	log      *slog.Logger
	now      func() time.Time
}

// NewCartService wires the service to its store and collaborators.
func NewCartService(
	carts repository.CartRepository,
	products catalog.ProductLookup,
	payments payment.Provider,
	events EventPublisher,
	log *slog.Logger,
) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		payments: payments,
		events:   events,
		locks:    newKeyedMutex(),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetCart retrieves the cart for a buyer. An unknown buyer or a missing cart
// yields an empty cart that is not stored.
func (s *CartService) GetCart(ctx context.Context, buyerID string) (*storefront.Cart, error) {
	if buyerID == "" {
		return s.newEmptyCart(""), nil
	}

	cart, err := s.carts.Get(ctx, buyerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return s.newEmptyCart(buyerID), nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	return cart, nil
}

// AddItem adds quantity units of a catalog product to the buyer's cart,
// consolidating into the existing line when there is one.
func (s *CartService) AddItem(ctx context.Context, buyerID string, params ItemParams) (cart *storefront.Cart, err error) {
	defer func() { observe("add_item", err) }()

	if buyerID == "" {
		return nil, apperrors.InvalidInput("buyer id is required")
	}
	if err := validator.Validate(params); err != nil {
		return nil, err
	}

	product, err := s.products.GetProduct(ctx, params.ProductID)
	if err != nil {
		return nil, fmt.Errorf("look up product %d: %w", params.ProductID, err)
	}

	unlock := s.locks.Lock(buyerID)
	defer unlock()

	cart, err = s.update(ctx, buyerID, true, func(c *storefront.Cart) (bool, error) {
		if item, ok := c.Item(product.ID); ok {
			if item.Quantity+params.Quantity > MaxQuantityPerItem {
				return false, apperrors.InvalidInput(fmt.Sprintf("combined quantity must not exceed %d", MaxQuantityPerItem))
			}
		} else if len(c.Items) >= MaxItemsPerCart {
			return false, apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d items", MaxItemsPerCart))
		}
		c.AddItem(*product, params.Quantity)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.publishUpdated(ctx, cart)

	s.log.InfoContext(ctx, "item added to cart",
		slog.String("buyer_id", buyerID),
		slog.Int("product_id", params.ProductID),
		slog.Int("quantity", params.Quantity),
	)

	return cart, nil
}

// RemoveItem removes quantity units of a product from the buyer's cart. A
// missing cart is NotFound; a product without a line is a no-op.
func (s *CartService) RemoveItem(ctx context.Context, buyerID string, params ItemParams) (cart *storefront.Cart, err error) {
	defer func() { observe("remove_item", err) }()

	if err := validator.Validate(params); err != nil {
		return nil, err
	}
	if buyerID == "" {
		return nil, apperrors.NotFound("cart", "anonymous")
	}

	unlock := s.locks.Lock(buyerID)
	defer unlock()

	changed := false
	cart, err = s.update(ctx, buyerID, false, func(c *storefront.Cart) (bool, error) {
		if c.FindItemIndex(params.ProductID) < 0 {
			return false, nil
		}
		c.RemoveItem(params.ProductID, params.Quantity)
		changed = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.publishUpdated(ctx, cart)
		s.log.InfoContext(ctx, "item removed from cart",
			slog.String("buyer_id", buyerID),
			slog.Int("product_id", params.ProductID),
			slog.Int("quantity", params.Quantity),
		)
	}

	return cart, nil
}

// ClearCart deletes the buyer's cart along with its payment session.
func (s *CartService) ClearCart(ctx context.Context, buyerID string) (err error) {
	defer func() { observe("clear", err) }()

	if buyerID == "" {
		return nil
	}

	unlock := s.locks.Lock(buyerID)
	defer unlock()

	if err := s.carts.Delete(ctx, buyerID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}

	if err := s.events.PublishCartCleared(ctx, buyerID); err != nil {
		s.log.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("buyer_id", buyerID),
			slog.String("error", err.Error()),
		)
	}

	s.log.InfoContext(ctx, "cart cleared",
		slog.String("buyer_id", buyerID),
	)

	return nil
}

// CreatePaymentIntent creates or updates the payment intent for the cart
// total and stores its id and client secret on the cart.
func (s *CartService) CreatePaymentIntent(ctx context.Context, buyerID string) (cart *storefront.Cart, err error) {
	defer func() { observe("payment_intent", err) }()

	if buyerID == "" {
		return nil, apperrors.InvalidInput("cart is empty")
	}

	unlock := s.locks.Lock(buyerID)
	defer unlock()

	var intent payment.Intent
	cart, err = s.update(ctx, buyerID, false, func(c *storefront.Cart) (bool, error) {
		if len(c.Items) == 0 {
			return false, apperrors.InvalidInput("cart is empty")
		}

		// A retried save keeps updating the intent created on the first pass.
		intentID := c.PaymentIntentID
		if intent.ID != "" {
			intentID = intent.ID
		}

		created, err := s.payments.CreateOrUpdate(ctx, intentID, c.TotalAmount())
		if errors.Is(err, apperrors.ErrNotFound) && intentID != "" {
			created, err = s.payments.CreateOrUpdate(ctx, "", c.TotalAmount())
		}
		if err != nil {
			return false, fmt.Errorf("create payment intent: %w", err)
		}

		intent = created
		c.PaymentIntentID = created.ID
		c.ClientSecret = created.ClientSecret
		return true, nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidInput("cart is empty")
		}
		return nil, err
	}

	s.publishUpdated(ctx, cart)

	s.log.InfoContext(ctx, "payment intent ready",
		slog.String("buyer_id", buyerID),
		slog.String("payment_intent_id", intent.ID),
		slog.String("amount", money.Format(intent.Amount)),
	)

	return cart, nil
}

// update loads the buyer's cart, applies mutate and saves it with an
// optimistic version check, reloading and reapplying when another writer
// won. With create set a missing cart starts out empty; otherwise it is
// NotFound. When mutate reports no change the loaded cart is returned as is.
func (s *CartService) update(ctx context.Context, buyerID string, create bool, mutate func(*storefront.Cart) (bool, error)) (*storefront.Cart, error) {
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		cart, err := s.carts.Get(ctx, buyerID)
		switch {
		case errors.Is(err, apperrors.ErrNotFound) && create:
			cart = s.newEmptyCart(buyerID)
		case err != nil:
			return nil, fmt.Errorf("get cart: %w", err)
		}

		expected := cart.Version
		changed, err := mutate(cart)
		if err != nil {
			return nil, err
		}
		if !changed {
			return cart, nil
		}
		cart.UpdatedAt = s.now()

		ok, err := s.carts.SaveIfVersion(ctx, cart, expected)
		if err != nil {
			return nil, fmt.Errorf("save cart: %w", err)
		}
		if ok {
			return cart, nil
		}

		cartSaveConflicts.Inc()
		s.log.WarnContext(ctx, "cart modified concurrently, retrying",
			slog.String("buyer_id", buyerID),
			slog.Int("attempt", attempt),
		)
	}

	return nil, apperrors.Conflict("cart was modified concurrently, please retry")
}

func (s *CartService) publishUpdated(ctx context.Context, cart *storefront.Cart) {
	if err := s.events.PublishCartUpdated(ctx, cart); err != nil {
		s.log.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("buyer_id", cart.BuyerID),
			slog.String("error", err.Error()),
		)
	}
}

// newEmptyCart creates a new empty cart for the given buyer.
func (s *CartService) newEmptyCart(buyerID string) *storefront.Cart {
	now := s.now()
	return &storefront.Cart{
		ID:        uuid.New().String(),
		BuyerID:   buyerID,
		Items:     []storefront.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
