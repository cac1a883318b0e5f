package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/utafrali/storefront/internal/client/account"
	"github.com/utafrali/storefront/internal/client/basket"
	"github.com/utafrali/storefront/internal/client/catalog"
	"github.com/utafrali/storefront/internal/storefront"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/money"
)

const prompt = "> "

// REPL owns the client stores and is their only writer. Commands mutate
// state; after each one the REPL pulls the product list if the parameters
// no longer match it.
type REPL struct {
	catalog *catalog.State
	cart    *basket.Store
	session *account.Holder
	out     io.Writer
	logger  *slog.Logger
}

// NewREPL creates a REPL printing to out.
func NewREPL(c *catalog.State, cart *basket.Store, session *account.Holder, out io.Writer, logger *slog.Logger) *REPL {
	return &REPL{catalog: c, cart: cart, session: session, out: out, logger: logger}
}

// Boot resumes a configured session, then loads the catalog (facets, then
// the first page) and the cart concurrently. A failed load does not cancel
// the others; the failure is reported and the REPL stays usable.
func (r *REPL) Boot(ctx context.Context) error {
	if u, err := r.session.Resume(ctx); err != nil {
		r.logger.Warn("resume session", slog.String("error", err.Error()))
	} else if u != nil {
		fmt.Fprintf(r.out, "signed in as %s <%s>\n", u.DisplayName, u.Email)
	}

	var g errgroup.Group
	g.Go(func() error {
		// One catalog fetch at a time: the state keeps a single status and
		// error. The list goes last so Err reflects it.
		var errs []error
		if err := r.catalog.FetchFilters(ctx); err != nil {
			errs = append(errs, fmt.Errorf("load filters: %w", err))
		}
		if err := r.catalog.FetchProducts(ctx); err != nil {
			errs = append(errs, fmt.Errorf("load products: %w", err))
		}
		return errors.Join(errs...)
	})
	g.Go(func() error {
		if _, err := r.cart.Load(ctx); err != nil {
			return fmt.Errorf("load cart: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		r.logger.Warn("boot incomplete", slog.String("error", err.Error()))
		r.printErr(err)
		return err
	}
	r.printProducts()
	return nil
}

// Run reads commands from in until EOF, quit or ctx cancellation. Input is
// read on its own goroutine so cancellation does not wait for a line.
func (r *REPL) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		fmt.Fprint(r.out, prompt)
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.out)
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			line = l
		}

		cmd, err := ParseCommand(line)
		if err != nil {
			fmt.Fprintln(r.out, err)
			continue
		}
		if cmd.Verb == "" {
			continue
		}
		if cmd.Verb == VerbQuit {
			return nil
		}

		r.Execute(ctx, cmd)
		r.pull(ctx)
	}
}

// Execute applies one command.
func (r *REPL) Execute(ctx context.Context, cmd Command) {
	switch cmd.Verb {
	case VerbHelp:
		fmt.Fprintln(r.out, usage)
	case VerbList:
		if r.catalog.ProductsLoaded() {
			r.printProducts()
		}
	case VerbPage:
		r.catalog.SetPageNumber(cmd.N)
	case VerbNext:
		r.step(1)
	case VerbPrev:
		r.step(-1)
	case VerbSort:
		r.catalog.SetProductParams(catalog.ParamsPatch{OrderBy: &cmd.Text})
	case VerbSearch:
		r.catalog.SetProductParams(catalog.ParamsPatch{SearchTerm: &cmd.Text})
	case VerbBrands:
		r.catalog.SetProductParams(catalog.ParamsPatch{Brands: cmd.List})
	case VerbTypes:
		r.catalog.SetProductParams(catalog.ParamsPatch{Types: cmd.List})
	case VerbSize:
		r.catalog.SetProductParams(catalog.ParamsPatch{PageSize: &cmd.N})
	case VerbReset:
		r.catalog.ResetProductParams()
	case VerbShow:
		p, err := r.catalog.FetchProduct(ctx, cmd.ProductID)
		if err != nil {
			r.printErr(err)
			return
		}
		r.printProduct(p)
	case VerbFilters:
		r.showFilters(ctx)
	case VerbCart:
		c, err := r.cart.Load(ctx)
		if err != nil {
			r.printErr(err)
			return
		}
		r.printCart(c)
	case VerbAdd:
		r.addItem(ctx, cmd.ProductID, cmd.Quantity)
	case VerbRemove:
		c, err := r.cart.RemoveItem(ctx, cmd.ProductID, cmd.Quantity)
		if err != nil {
			r.printErr(err)
			return
		}
		r.printCart(c)
	case VerbClear:
		if err := r.cart.Clear(ctx); err != nil {
			r.printErr(err)
			return
		}
		fmt.Fprintln(r.out, "cart cleared")
	case VerbCheckout:
		c, err := r.cart.Checkout(ctx)
		if err != nil {
			r.printErr(err)
			return
		}
		fmt.Fprintf(r.out, "payment intent %s for %s\n", c.PaymentIntentID, money.Format(c.TotalAmount()))
	case VerbLogin:
		u, err := r.session.Login(ctx, cmd.Email, cmd.Password)
		r.signedIn(ctx, u, err)
	case VerbRegister:
		u, err := r.session.Register(ctx, cmd.Email, cmd.Password, cmd.Text)
		r.signedIn(ctx, u, err)
	case VerbLogout:
		r.session.Logout()
		fmt.Fprintln(r.out, "signed out")
		r.reloadCart(ctx)
	case VerbWhoami:
		if u := r.session.User(); u != nil {
			fmt.Fprintf(r.out, "signed in as %s <%s>\n", u.DisplayName, u.Email)
			return
		}
		fmt.Fprintln(r.out, "not signed in")
	}
}

// signedIn reports a login result. The cart belongs to the bearer, so it is
// reloaded under the new identity.
func (r *REPL) signedIn(ctx context.Context, u *account.User, err error) {
	if err != nil {
		r.printErr(err)
		return
	}
	fmt.Fprintf(r.out, "signed in as %s <%s>\n", u.DisplayName, u.Email)
	r.reloadCart(ctx)
}

func (r *REPL) reloadCart(ctx context.Context) {
	c, err := r.cart.Load(ctx)
	if err != nil {
		r.printErr(err)
		return
	}
	r.printCart(c)
}

// pull fetches the list when a command invalidated it.
func (r *REPL) pull(ctx context.Context) {
	if r.catalog.ProductsLoaded() {
		return
	}
	if err := r.catalog.FetchProducts(ctx); err != nil {
		r.printErr(err)
		return
	}
	r.printProducts()
}

func (r *REPL) step(delta int) {
	page := r.catalog.Params().PageNumber
	meta := r.catalog.MetaData()
	switch {
	case delta < 0 && (page+delta < 1 || meta != nil && !meta.HasPrev()):
		fmt.Fprintln(r.out, "already on the first page")
	case delta > 0 && meta != nil && !meta.HasNext():
		fmt.Fprintln(r.out, "already on the last page")
	default:
		r.catalog.SetPageNumber(page + delta)
	}
}

func (r *REPL) addItem(ctx context.Context, productID, quantity int) {
	product, ok := r.catalog.Product(productID)
	if !ok {
		p, err := r.catalog.FetchProduct(ctx, productID)
		if err != nil {
			r.printErr(err)
			return
		}
		product = p
	}
	c, err := r.cart.AddItem(ctx, product, quantity)
	if err != nil {
		r.printErr(err)
		return
	}
	r.printCart(c)
}

func (r *REPL) showFilters(ctx context.Context) {
	if !r.catalog.FiltersLoaded() {
		if err := r.catalog.FetchFilters(ctx); err != nil {
			r.printErr(err)
			return
		}
	}
	snap := r.catalog.Snapshot()
	fmt.Fprintf(r.out, "brands: %s\n", strings.Join(snap.Brands, ", "))
	fmt.Fprintf(r.out, "types:  %s\n", strings.Join(snap.Types, ", "))
}

func (r *REPL) printProducts() {
	snap := r.catalog.Snapshot()
	if len(snap.Products) == 0 {
		fmt.Fprintln(r.out, "no products match")
		return
	}
	for _, p := range snap.Products {
		fmt.Fprintf(r.out, "%4d  %-32s %10s  %s / %s\n", p.ID, p.Name, money.Format(p.Price), p.Brand, p.Type)
	}
	if m := snap.MetaData; m != nil {
		fmt.Fprintf(r.out, "page %d of %d (%d products, sorted by %s)\n",
			m.CurrentPage, m.TotalPages, m.TotalCount, snap.Params.OrderBy)
	}
}

func (r *REPL) printProduct(p storefront.Product) {
	fmt.Fprintf(r.out, "#%d %s\n", p.ID, p.Name)
	fmt.Fprintf(r.out, "  price:    %s\n", money.Format(p.Price))
	fmt.Fprintf(r.out, "  brand:    %s\n", p.Brand)
	fmt.Fprintf(r.out, "  type:     %s\n", p.Type)
	fmt.Fprintf(r.out, "  in stock: %d\n", p.QuantityInStock)
	if p.Description != "" {
		fmt.Fprintf(r.out, "  %s\n", p.Description)
	}
}

func (r *REPL) printCart(c *storefront.Cart) {
	if c == nil || len(c.Items) == 0 {
		fmt.Fprintln(r.out, "cart is empty")
		return
	}
	for _, it := range c.Items {
		fmt.Fprintf(r.out, "%4d  %-32s %3d x %10s = %10s\n", it.ProductID, it.Name, it.Quantity,
			money.Format(it.Price), money.Format(money.LineTotal(it.Price, it.Quantity)))
	}
	fmt.Fprintf(r.out, "%d items, total %s\n", c.ItemCount(), money.Format(c.TotalAmount()))
}

func (r *REPL) printErr(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	for _, msg := range apperrors.Messages(err) {
		fmt.Fprintf(r.out, "error: %s\n", msg)
	}
}
