package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/client/account"
	"github.com/utafrali/storefront/internal/client/basket"
	"github.com/utafrali/storefront/internal/client/catalog"
	"github.com/utafrali/storefront/internal/storefront"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/pagination"
)

var testProducts = []storefront.Product{
	{ID: 1, Name: "Angular Speedster Board", Price: 20000, Brand: "Angular", Type: "Boards", QuantityInStock: 5},
	{ID: 2, Name: "Green Angular Board", Price: 15000, Brand: "Angular", Type: "Boards", QuantityInStock: 3},
	{ID: 3, Name: "Blue Hat", Price: 1500, Brand: "NetCore", Type: "Hats", QuantityInStock: 10},
}

type fakeCatalog struct {
	mu      sync.Mutex
	lists   []storefront.ProductParams
	listErr error
}

func (f *fakeCatalog) List(_ context.Context, params storefront.ProductParams) (*catalog.Page, error) {
	f.mu.Lock()
	f.lists = append(f.lists, params)
	f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &catalog.Page{
		Items:    testProducts,
		MetaData: pagination.NewMetaData(len(testProducts), params.Page()),
	}, nil
}

func (f *fakeCatalog) Details(_ context.Context, id int) (*storefront.Product, error) {
	for _, p := range testProducts {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, apperrors.NotFound("product", "x")
}

func (f *fakeCatalog) Filters(context.Context) (*storefront.Filters, error) {
	return &storefront.Filters{Brands: []string{"Angular", "NetCore"}, Types: []string{"Boards", "Hats"}}, nil
}

func (f *fakeCatalog) listCalls() []storefront.ProductParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storefront.ProductParams(nil), f.lists...)
}

type fakeBasket struct {
	cart    storefront.Cart
	addErr  error
	cleared bool
	gets    int
}

func (f *fakeBasket) Get(context.Context) (*storefront.Cart, error) {
	f.gets++
	return f.cart.Clone(), nil
}

func (f *fakeBasket) AddItem(_ context.Context, productID, quantity int) (*storefront.Cart, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	for _, p := range testProducts {
		if p.ID == productID {
			f.cart.AddItem(p, quantity)
		}
	}
	return f.cart.Clone(), nil
}

func (f *fakeBasket) RemoveItem(_ context.Context, productID, quantity int) error {
	f.cart.RemoveItem(productID, quantity)
	return nil
}

func (f *fakeBasket) Clear(context.Context) error {
	f.cleared = true
	f.cart = storefront.Cart{}
	return nil
}

func (f *fakeBasket) CreatePaymentIntent(context.Context) (*storefront.Cart, error) {
	c := f.cart.Clone()
	c.PaymentIntentID = "pi_123"
	c.ClientSecret = "pi_123_secret"
	return c, nil
}

type fakeAccounts struct {
	password string
}

func (f *fakeAccounts) session(email string) *account.Session {
	return &account.Session{
		Account: account.User{ID: "acc-1", Email: email, DisplayName: "Ada Lovelace"},
		Token:   "tok-" + email,
	}
}

func (f *fakeAccounts) Register(_ context.Context, email, password, displayName string) (*account.Session, error) {
	f.password = password
	s := f.session(email)
	s.Account.DisplayName = displayName
	return s, nil
}

func (f *fakeAccounts) Login(_ context.Context, email, password string) (*account.Session, error) {
	if password != f.password {
		return nil, apperrors.Unauthorized("invalid email or password")
	}
	return f.session(email), nil
}

func (f *fakeAccounts) Current(context.Context) (*account.Session, error) {
	return f.session("ada@example.com"), nil
}

type harness struct {
	repl    *REPL
	catalog *fakeCatalog
	basket  *fakeBasket
	session *account.Holder
	state   *catalog.State
	out     *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		catalog: &fakeCatalog{},
		basket:  &fakeBasket{cart: storefront.Cart{ID: "cart-1", BuyerID: "buyer-1"}},
		out:     &bytes.Buffer{},
	}
	h.state = catalog.NewState(h.catalog)
	h.session = account.NewHolder("")
	h.session.SetGateway(&fakeAccounts{password: "Secret123"})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.repl = NewREPL(h.state, basket.NewStore(h.basket), h.session, h.out, logger)
	return h
}

func (h *harness) run(t *testing.T, script string) string {
	t.Helper()
	require.NoError(t, h.repl.Run(context.Background(), strings.NewReader(script)))
	return h.out.String()
}

func TestBoot_LoadsProductsAndFilters(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.repl.Boot(context.Background()))

	assert.True(t, h.state.ProductsLoaded())
	assert.True(t, h.state.FiltersLoaded())
	assert.Len(t, h.catalog.listCalls(), 1)
	assert.Contains(t, h.out.String(), "Angular Speedster Board")
	assert.Contains(t, h.out.String(), "$200.00")
	assert.Contains(t, h.out.String(), "page 1 of 1")
}

func TestRun_ParamChangePullsProducts(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.repl.Boot(context.Background()))

	h.run(t, "sort priceDesc\nsearch hat\nlist\nquit\n")

	calls := h.catalog.listCalls()
	require.Len(t, calls, 3, "boot plus one fetch per parameter change, none for list")
	assert.Equal(t, storefront.OrderByPriceDesc, calls[1].OrderBy)
	assert.Equal(t, "hat", calls[2].SearchTerm)
	assert.Equal(t, storefront.OrderByPriceDesc, calls[2].OrderBy)
	assert.Equal(t, 1, calls[2].PageNumber)
}

func TestRun_ResetRestoresDefaults(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.repl.Boot(context.Background()))

	h.run(t, "brands Angular\nreset\n")

	calls := h.catalog.listCalls()
	require.Len(t, calls, 3)
	assert.Equal(t, []string{"Angular"}, calls[1].Brands)
	assert.Equal(t, storefront.DefaultProductParams(), calls[2])
}

func TestRun_PrevOnFirstPage(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.repl.Boot(context.Background()))

	out := h.run(t, "prev\nnext\n")

	assert.Contains(t, out, "already on the first page")
	assert.Contains(t, out, "already on the last page")
	assert.Len(t, h.catalog.listCalls(), 1)
}

func TestRun_StepUsesPageMetadata(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.repl.Boot(context.Background()))

	out := h.run(t, "page 4\nnext\nprev\n")

	assert.Contains(t, out, "already on the last page")
	calls := h.catalog.listCalls()
	require.Len(t, calls, 3, "boot, page 4, then prev to page 3")
	assert.Equal(t, 4, calls[1].PageNumber)
	assert.Equal(t, 3, calls[2].PageNumber)
}

func TestBoot_KeepsListFailure(t *testing.T) {
	h := newHarness(t)
	h.catalog.listErr = apperrors.Server("catalog server error (500)")

	err := h.repl.Boot(context.Background())

	require.Error(t, err)
	assert.ErrorContains(t, err, "load products")
	assert.True(t, h.state.FiltersLoaded())
	assert.False(t, h.state.ProductsLoaded())
	assert.ErrorIs(t, h.state.Err(), apperrors.ErrInternal)
	assert.Equal(t, catalog.StatusIdle, h.state.Status())
}

func TestRun_CartFlow(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.repl.Boot(context.Background()))

	out := h.run(t, "add 1 2\nadd 3\nremove 1\ncheckout\nclear\ncart\n")

	assert.Contains(t, out, "2 items, total $400.00")
	assert.Contains(t, out, "3 items, total $415.00")
	assert.Contains(t, out, "2 items, total $215.00")
	assert.Contains(t, out, "payment intent pi_123 for $215.00")
	assert.Contains(t, out, "cart cleared")
	assert.Contains(t, out, "cart is empty")
	assert.True(t, h.basket.cleared)
}

func TestRun_AddFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	h.basket.addErr = apperrors.Validation([]string{"quantity must be at most 100"})
	require.NoError(t, h.repl.Boot(context.Background()))

	out := h.run(t, "add 1 101\n")

	assert.Contains(t, out, "error: quantity must be at most 100")
	c := h.repl.cart.Cart()
	require.NotNil(t, c)
	assert.Empty(t, c.Items)
	assert.Equal(t, basket.StatusIdle, h.repl.cart.Status())
}

func TestRun_ShowUnknownProduct(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.repl.Boot(context.Background()))

	out := h.run(t, "show 99\n")

	assert.Contains(t, out, "error: product with id x not found")
}

func TestRun_FiltersAndParseErrors(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.repl.Boot(context.Background()))

	out := h.run(t, "filters\nbogus\n")

	assert.Contains(t, out, "brands: Angular, NetCore")
	assert.Contains(t, out, "types:  Boards, Hats")
	assert.Contains(t, out, `unknown command "bogus"`)
}

func TestBoot_ResumesConfiguredToken(t *testing.T) {
	h := newHarness(t)
	h.session = account.NewHolder("tok-configured")
	h.session.SetGateway(&fakeAccounts{})
	h.repl.session = h.session

	require.NoError(t, h.repl.Boot(context.Background()))

	assert.Contains(t, h.out.String(), "signed in as Ada Lovelace <ada@example.com>")
	assert.Equal(t, "tok-ada@example.com", h.session.Token())
}

func TestRun_LoginReloadsCart(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.repl.Boot(context.Background()))
	gets := h.basket.gets

	out := h.run(t, "login ada@example.com wrong\nlogin ada@example.com Secret123\nwhoami\nlogout\nwhoami\n")

	assert.Contains(t, out, "error: invalid email or password")
	assert.Contains(t, out, "signed in as Ada Lovelace <ada@example.com>")
	assert.Contains(t, out, "signed out")
	assert.Contains(t, out, "not signed in")
	assert.Equal(t, gets+2, h.basket.gets, "cart reloaded after login and logout only")
	assert.Empty(t, h.session.Token())
}

func TestRun_RegisterSignsIn(t *testing.T) {
	h := newHarness(t)

	out := h.run(t, "register grace@example.com Passw0rd Grace Hopper\nwhoami\n")

	assert.Contains(t, out, "signed in as Grace Hopper <grace@example.com>")
	assert.Equal(t, "tok-grace@example.com", h.session.Token())
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pr, pw := io.Pipe()
	defer pw.Close()
	require.NoError(t, h.repl.Run(ctx, pr))
}
