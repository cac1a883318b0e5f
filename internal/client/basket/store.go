package basket

import (
	"context"
	"fmt"
	"sync"

	"github.com/utafrali/storefront/internal/storefront"
)

// Status tags the mutation Store is waiting on. Pending statuses name the
// product, e.g. "pending-add-item-5".
type Status string

// StatusIdle means no call is in flight.
const StatusIdle Status = "idle"

func pendingAdd(productID int) Status {
	return Status(fmt.Sprintf("pending-add-item-%d", productID))
}

func pendingRemove(productID int) Status {
	return Status(fmt.Sprintf("pending-remove-item-%d", productID))
}

// Store holds the client copy of the cart. Mutations are two-phase: the
// change is applied to the local cart first, then sent to the gateway. On
// success the change is confirmed; on failure the cart is restored to the
// snapshot taken before the change.
type Store struct {
	gateway Gateway

	mu     sync.Mutex
	cart   *storefront.Cart
	status Status
}

// NewStore creates an empty store.
func NewStore(g Gateway) *Store {
	return &Store{gateway: g, status: StatusIdle}
}

// Cart returns a copy of the current cart, nil before Load.
func (s *Store) Cart() *storefront.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// Status returns the current status tag.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Load replaces the local cart with the server's.
func (s *Store) Load(ctx context.Context) (*storefront.Cart, error) {
	c, err := s.gateway.Get(ctx)
	if err != nil {
		return nil, err
	}
	s.set(c)
	return c.Clone(), nil
}

// AddItem tentatively adds quantity of product, then confirms with the
// server. The server's cart is adopted on success.
func (s *Store) AddItem(ctx context.Context, product storefront.Product, quantity int) (*storefront.Cart, error) {
	snapshot := s.begin(pendingAdd(product.ID), func(c *storefront.Cart) {
		c.AddItem(product, quantity)
	})

	confirmed, err := s.gateway.AddItem(ctx, product.ID, quantity)
	if err != nil {
		s.rollback(snapshot)
		return nil, err
	}
	s.set(confirmed)
	return confirmed.Clone(), nil
}

// RemoveItem tentatively removes quantity of productID, then confirms with
// the server. The server returns no cart, so the tentative cart is kept.
func (s *Store) RemoveItem(ctx context.Context, productID, quantity int) (*storefront.Cart, error) {
	snapshot := s.begin(pendingRemove(productID), func(c *storefront.Cart) {
		c.RemoveItem(productID, quantity)
	})

	if err := s.gateway.RemoveItem(ctx, productID, quantity); err != nil {
		s.rollback(snapshot)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusIdle
	return s.cart.Clone(), nil
}

// Clear empties the cart on the server and locally.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.gateway.Clear(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = nil
	s.status = StatusIdle
	return nil
}

// Checkout asks the server for a payment intent and adopts the returned
// cart with its payment-session fields.
func (s *Store) Checkout(ctx context.Context) (*storefront.Cart, error) {
	c, err := s.gateway.CreatePaymentIntent(ctx)
	if err != nil {
		return nil, err
	}
	s.set(c)
	return c.Clone(), nil
}

// begin snapshots the cart, applies mutate to it and marks status.
func (s *Store) begin(status Status, mutate func(*storefront.Cart)) *storefront.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.cart.Clone()
	if s.cart == nil {
		s.cart = &storefront.Cart{Items: []storefront.CartItem{}}
	}
	mutate(s.cart)
	s.status = status
	return snapshot
}

func (s *Store) rollback(snapshot *storefront.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = snapshot
	s.status = StatusIdle
}

func (s *Store) set(c *storefront.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = c.Clone()
	s.status = StatusIdle
}
