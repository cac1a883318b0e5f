// Package catalog looks up products in the catalog service so cart lines can
// snapshot name, price and picture at the time they are added.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/singleflight"

	"github.com/utafrali/storefront/internal/storefront"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/logger"
)

const serviceName = "catalog-service"

// ProductLookup resolves a product id to its current catalog entry.
type ProductLookup interface {
	GetProduct(ctx context.Context, id int) (*storefront.Product, error)
}

// Client calls GET {base}/api/products/{id} through a circuit breaker.
// Concurrent lookups of the same id share one request.
type Client struct {
	base   string
	http   *httpclient.CircuitBreakerClient
	group  singleflight.Group
	logger *slog.Logger
}

// NewClient creates a catalog client for baseURL.
func NewClient(baseURL string, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("catalog url must be absolute: %q", baseURL)
	}

	cfg := httpclient.DefaultConfig()
	cfg.Timeout = 5 * time.Second
	cfg.MaxRetries = 2
	cfg.RetryWaitMin = 100 * time.Millisecond
	cfg.RetryWaitMax = time.Second

	return &Client{
		base:   strings.TrimRight(u.String(), "/"),
		http:   httpclient.NewCircuitBreakerClient(httpclient.New(cfg), httpclient.DefaultCircuitBreakerConfig(serviceName), logger),
		logger: logger,
	}, nil
}

// GetProduct returns the product with id. An unknown product is reported
// as a 400 since the caller asked to add something that does not exist.
func (c *Client) GetProduct(ctx context.Context, id int) (*storefront.Product, error) {
	key := strconv.Itoa(id)
	v, err, shared := c.group.Do(key, func() (any, error) {
		return c.fetch(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.DebugContext(ctx, "catalog lookup shared", slog.Int("product_id", id))
	}
	p := *v.(*storefront.Product)
	return &p, nil
}

func (c *Client) fetch(ctx context.Context, id int) (*storefront.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/products/"+strconv.Itoa(id), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		req.Header.Set("X-Correlation-ID", cid)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		if httpclient.Rejected(err) {
			return nil, apperrors.ServiceUnavailable("catalog service unavailable")
		}
		return nil, fmt.Errorf("get product %d: %w", id, httpclient.AsResponseError(err, serviceName))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.InvalidInput("product not found")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("get product %d: %w", id, httpclient.ParseResponseError(resp, serviceName))
	}

	var envelope struct {
		Data *storefront.Product `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode product %d: %w", id, err)
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("decode product %d: empty response", id)
	}
	return envelope.Data, nil
}

// Ping checks that the catalog service reports itself live.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.Get(ctx, c.base+"/health/live")
	if err != nil {
		return fmt.Errorf("ping catalog: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping catalog: status %d", resp.StatusCode)
	}
	return nil
}
