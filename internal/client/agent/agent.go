// Package agent is the HTTP transport shared by the storefront gateways. It
// attaches the bearer credential, keeps the buyer cookie, unwraps the
// response envelope and the Pagination header, and maps error statuses onto
// pkg/errors.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/pagination"
)

// ServiceName qualifies errors produced by the agent.
const ServiceName = "storefront-api"

// TokenSource returns the current bearer token, or "" for anonymous calls.
type TokenSource func() string

// StaticToken returns a TokenSource that always yields token.
func StaticToken(token string) TokenSource {
	return func() string { return token }
}

// Config configures an Agent.
type Config struct {
	// BaseURL is the API root, e.g. http://localhost:8080/api/.
	BaseURL string
	Token   TokenSource
	HTTP    httpclient.Config
	Breaker httpclient.CircuitBreakerConfig
}

// DefaultConfig returns a config for baseURL with short read retries.
func DefaultConfig(baseURL string) Config {
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = 10 * time.Second
	httpCfg.MaxRetries = 2
	httpCfg.RetryWaitMin = 200 * time.Millisecond
	httpCfg.RetryWaitMax = 2 * time.Second
	return Config{
		BaseURL: baseURL,
		HTTP:    httpCfg,
		Breaker: httpclient.DefaultCircuitBreakerConfig(ServiceName),
	}
}

// Agent performs API calls. Reads go through a retrying client; writes are
// sent once because adding an item is not idempotent. Both share one cookie
// jar so the buyer cookie issued on the first write is replayed on reads.
type Agent struct {
	base   *url.URL
	reads  *httpclient.CircuitBreakerClient
	writes *httpclient.CircuitBreakerClient
	token  TokenSource
	logger *slog.Logger
}

// New builds an Agent.
func New(cfg Config, log *slog.Logger) (*Agent, error) {
	if log == nil {
		log = slog.Default()
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %q", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	readCfg := cfg.HTTP
	readCfg.Jar = jar
	writeCfg := readCfg
	writeCfg.MaxRetries = 0

	readBreaker := cfg.Breaker
	readBreaker.Name += "-read"
	writeBreaker := cfg.Breaker
	writeBreaker.Name += "-write"

	token := cfg.Token
	if token == nil {
		token = StaticToken("")
	}

	return &Agent{
		base:   base,
		reads:  httpclient.NewCircuitBreakerClient(httpclient.New(readCfg), readBreaker, log),
		writes: httpclient.NewCircuitBreakerClient(httpclient.New(writeCfg), writeBreaker, log),
		token:  token,
		logger: log,
	}, nil
}

// Get fetches path and decodes the data envelope into out. The returned
// MetaData is nil when the response carries no Pagination header.
func (a *Agent) Get(ctx context.Context, path string, query url.Values, out any) (*pagination.MetaData, error) {
	return a.do(ctx, http.MethodGet, path, query, nil, out)
}

// Post sends an empty-bodied POST and decodes the data envelope into out.
func (a *Agent) Post(ctx context.Context, path string, query url.Values, out any) error {
	_, err := a.do(ctx, http.MethodPost, path, query, nil, out)
	return err
}

// PostJSON sends payload as the JSON request body and decodes the data
// envelope into out.
func (a *Agent) PostJSON(ctx context.Context, path string, payload, out any) error {
	_, err := a.do(ctx, http.MethodPost, path, nil, payload, out)
	return err
}

// Delete sends a DELETE; out may be nil when the response has no body.
func (a *Agent) Delete(ctx context.Context, path string, query url.Values, out any) error {
	_, err := a.do(ctx, http.MethodDelete, path, query, nil, out)
	return err
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

func (a *Agent) do(ctx context.Context, method, path string, query url.Values, payload, out any) (*pagination.MetaData, error) {
	ref := &url.URL{Path: strings.TrimPrefix(path, "/")}
	if len(query) > 0 {
		ref.RawQuery = query.Encode()
	}
	target := a.base.ResolveReference(ref)

	var body io.Reader = http.NoBody
	if method == http.MethodPost {
		raw := []byte("{}")
		if payload != nil {
			encoded, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("encode %s body: %w", target.Path, err)
			}
			raw = encoded
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := a.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}

	client := a.writes
	if method == http.MethodGet {
		client = a.reads
	}

	resp, err := client.Do(ctx, req)
	if err != nil {
		if httpclient.Rejected(err) {
			return nil, apperrors.ServiceUnavailable(ServiceName + ": circuit open")
		}
		var srvErr *httpclient.ServerError
		if errors.As(err, &srvErr) {
			mapped := httpclient.AsResponseError(err, ServiceName)
			a.logFailure(ctx, method, target, mapped)
			return nil, mapped
		}
		return nil, fmt.Errorf("%s %s: %w", method, target.Path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		mapped := httpclient.ParseResponseError(resp, ServiceName)
		a.logFailure(ctx, method, target, mapped)
		return nil, mapped
	}
	defer func() { _ = resp.Body.Close() }()

	meta, err := pagination.ParseHeader(resp.Header)
	if err != nil {
		return nil, err
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return meta, nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", target.Path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return meta, nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", target.Path, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return meta, nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return nil, fmt.Errorf("decode %s data: %w", target.Path, err)
	}
	return meta, nil
}

// logFailure records server errors. 401 is left to whatever owns the session
// and other client errors are returned without logging.
func (a *Agent) logFailure(ctx context.Context, method string, target *url.URL, err error) {
	if apperrors.HTTPStatus(err) < http.StatusInternalServerError {
		return
	}
	a.logger.ErrorContext(ctx, "api request failed",
		slog.String("method", method),
		slog.String("path", target.Path),
		slog.String("error", err.Error()),
	)
}
