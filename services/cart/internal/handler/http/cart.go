package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/services/cart/internal/service"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service *service.CartService
	cookie  BuyerCookieConfig
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, cookie BuyerCookieConfig, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		cookie:  cookie,
		logger:  logger,
	}
}

// GetCart handles GET /api/cart.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.GetCart(r.Context(), buyerFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// AddItem handles POST /api/cart?productId=&quantity=. Anonymous buyers
// without a cookie are issued one.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	params, ok := parseItemParams(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	buyerID := buyerFromContext(ctx)
	if buyerID == "" {
		buyerID = newBuyerID()
		http.SetCookie(w, h.cookie.cookie(buyerID))
		ctx = withBuyer(ctx, buyerID)
		r = r.WithContext(ctx)
	}

	cart, err := h.service.AddItem(ctx, buyerID, params)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: cart})
}

// RemoveItem handles DELETE /api/cart?productId=&quantity=.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	params, ok := parseItemParams(w, r)
	if !ok {
		return
	}

	if _, err := h.service.RemoveItem(r.Context(), buyerFromContext(r.Context()), params); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// ClearCart handles DELETE /api/cart/all.
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearCart(r.Context(), buyerFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreatePaymentIntent handles POST /api/payments.
func (h *CartHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.CreatePaymentIntent(r.Context(), buyerFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// parseItemParams reads productId and quantity from the query string.
// quantity defaults to 1. Range checks are left to the service.
func parseItemParams(w http.ResponseWriter, r *http.Request) (service.ItemParams, bool) {
	q := r.URL.Query()
	params := service.ItemParams{Quantity: 1}

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"productId", &params.ProductID},
		{"quantity", &params.Quantity},
	} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{
					Code:    "INVALID_PARAMETER",
					Message: "invalid " + p.name + ": " + raw,
				},
			})
			return service.ItemParams{}, false
		}
		*p.dst = v
	}

	return params, true
}
