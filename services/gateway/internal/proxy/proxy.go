package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	pkghttputil "github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
)

// TransportConfig tunes the shared upstream transport.
type TransportConfig struct {
	DialTimeout     time.Duration
	ResponseTimeout time.Duration
	IdleTimeout     time.Duration
	MaxIdleConns    int
}

// ServiceProxy manages reverse proxies to the backend services.
type ServiceProxy struct {
	routes  map[string]*httputil.ReverseProxy
	targets map[string]*url.URL
	logger  *slog.Logger
}

// NewServiceProxy creates a reverse proxy for each upstream, keyed by
// service name. Every upstream URL must be absolute.
func NewServiceProxy(upstreams map[string]string, tc TransportConfig, logger *slog.Logger) (*ServiceProxy, error) {
	sp := &ServiceProxy{
		routes:  make(map[string]*httputil.ReverseProxy, len(upstreams)),
		targets: make(map[string]*url.URL, len(upstreams)),
		logger:  logger,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: tc.DialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ResponseHeaderTimeout: tc.ResponseTimeout,
		IdleConnTimeout:       tc.IdleTimeout,
		MaxIdleConns:          tc.MaxIdleConns,
		MaxIdleConnsPerHost:   tc.MaxIdleConns,
	}

	names := make([]string, 0, len(upstreams))
	for name := range upstreams {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		raw := upstreams[name]
		target, err := url.Parse(raw)
		if err != nil || target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("invalid %s service URL %q", name, raw)
		}

		proxy := httputil.NewSingleHostReverseProxy(target)
		proxy.Director = propagate(proxy.Director)
		proxy.Transport = transport
		proxy.ModifyResponse = stripGatewayHeaders
		proxy.ErrorHandler = sp.errorHandler(name)
		sp.routes[name] = proxy
		sp.targets[name] = target

		logger.Info("registered service proxy",
			slog.String("service", name),
			slog.String("target", raw),
		)
	}

	return sp, nil
}

// Handler returns an http.Handler that proxies requests to the named backend service.
func (sp *ServiceProxy) Handler(serviceName string) http.Handler {
	proxy, ok := sp.routes[serviceName]
	if !ok {
		sp.logger.Error("no proxy registered for service", slog.String("service", serviceName))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pkghttputil.WriteJSON(w, http.StatusBadGateway, pkghttputil.Response{
				Error: &pkghttputil.ErrorResponse{Code: "SERVICE_UNAVAILABLE", Message: "service not configured"},
			})
		})
	}
	return proxy
}

// Target returns the base URL of the named upstream.
func (sp *ServiceProxy) Target(serviceName string) (*url.URL, bool) {
	u, ok := sp.targets[serviceName]
	return u, ok
}

// Services returns the registered service names, sorted.
func (sp *ServiceProxy) Services() []string {
	names := make([]string, 0, len(sp.routes))
	for name := range sp.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// propagate forwards the correlation id and trace context of the gateway
// request to the upstream.
func propagate(director func(*http.Request)) func(*http.Request) {
	return func(req *http.Request) {
		director(req)
		if id := logger.CorrelationIDFromContext(req.Context()); id != "" {
			req.Header.Set("X-Correlation-ID", id)
		}
		otel.GetTextMapPropagator().Inject(req.Context(), propagation.HeaderCarrier(req.Header))
	}
}

// stripGatewayHeaders drops upstream headers the gateway already wrote.
// ReverseProxy appends upstream values, and browsers reject a duplicated
// Access-Control-Allow-Origin.
func stripGatewayHeaders(resp *http.Response) error {
	for key := range resp.Header {
		if strings.HasPrefix(key, "Access-Control-") {
			resp.Header.Del(key)
		}
	}
	resp.Header.Del("X-Correlation-ID")
	return nil
}

// errorHandler logs upstream failures and answers in the standard envelope:
// 504 when the upstream timed out, 502 otherwise.
func (sp *ServiceProxy) errorHandler(serviceName string) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		sp.logger.ErrorContext(r.Context(), "proxy error",
			slog.String("service", serviceName),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)

		if isTimeout(err) {
			pkghttputil.WriteJSON(w, http.StatusGatewayTimeout, pkghttputil.Response{
				Error: &pkghttputil.ErrorResponse{Code: "GATEWAY_TIMEOUT", Message: "upstream service timed out"},
			})
			return
		}
		pkghttputil.WriteJSON(w, http.StatusBadGateway, pkghttputil.Response{
			Error: &pkghttputil.ErrorResponse{Code: "BAD_GATEWAY", Message: "upstream service unavailable"},
		})
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
