package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/storefront"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const keyPrefix = "cart:"

// errVersionMismatch aborts a WATCH transaction whose precondition failed.
var errVersionMismatch = errors.New("cart version mismatch")

// CartRepository implements repository.CartRepository using Redis.
type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartRepository creates a new Redis-backed cart repository.
func NewCartRepository(client *redis.Client, ttl time.Duration) *CartRepository {
	return &CartRepository{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a cart by buyer ID from Redis.
func (r *CartRepository) Get(ctx context.Context, buyerID string) (_ *storefront.Cart, err error) {
	key := keyPrefix + buyerID

	ctx, end := database.TraceCommand(ctx, "redis", "GetCart", "GET "+keyPrefix+"{buyer}")
	defer func() { end(err) }()

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("cart", buyerID)
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var cart storefront.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}

	return &cart, nil
}

// SaveIfVersion persists cart with the configured TTL when the stored
// version equals expected. The read and the write run under WATCH so a
// concurrent writer makes the EXEC fail instead of being overwritten.
func (r *CartRepository) SaveIfVersion(ctx context.Context, cart *storefront.Cart, expected int) (ok bool, err error) {
	key := keyPrefix + cart.BuyerID

	ctx, end := database.TraceCommand(ctx, "redis", "SaveCart", "WATCH/GET/MULTI/SET/EXEC "+keyPrefix+"{buyer}")
	defer func() { end(err) }()

	next := *cart
	next.Version = expected + 1
	data, err := json.Marshal(&next)
	if err != nil {
		return false, fmt.Errorf("marshal cart: %w", err)
	}

	txf := func(tx *redis.Tx) error {
		current, err := storedVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if current != expected {
			return errVersionMismatch
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		})
		return err
	}

	switch err := r.client.Watch(ctx, txf, key); {
	case err == nil:
		cart.Version = next.Version
		return true, nil
	case errors.Is(err, errVersionMismatch), errors.Is(err, redis.TxFailedErr):
		return false, nil
	default:
		return false, fmt.Errorf("redis save cart: %w", err)
	}
}

// Delete removes a cart from Redis by buyer ID.
func (r *CartRepository) Delete(ctx context.Context, buyerID string) (err error) {
	key := keyPrefix + buyerID

	ctx, end := database.TraceCommand(ctx, "redis", "DeleteCart", "DEL "+keyPrefix+"{buyer}")
	defer func() { end(err) }()

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del cart: %w", err)
	}

	return nil
}

// storedVersion returns the version of the cart at key, or 0 if none.
func storedVersion(ctx context.Context, tx *redis.Tx, key string) (int, error) {
	data, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get cart version: %w", err)
	}
	var stored struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &stored); err != nil {
		return 0, fmt.Errorf("unmarshal stored cart: %w", err)
	}
	return stored.Version, nil
}
