package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/utafrali/storefront/internal/storefront"
)

// Verb names a REPL command.
type Verb string

const (
	VerbHelp     Verb = "help"
	VerbList     Verb = "list"
	VerbPage     Verb = "page"
	VerbNext     Verb = "next"
	VerbPrev     Verb = "prev"
	VerbSort     Verb = "sort"
	VerbSearch   Verb = "search"
	VerbBrands   Verb = "brands"
	VerbTypes    Verb = "types"
	VerbSize     Verb = "size"
	VerbReset    Verb = "reset"
	VerbShow     Verb = "show"
	VerbFilters  Verb = "filters"
	VerbCart     Verb = "cart"
	VerbAdd      Verb = "add"
	VerbRemove   Verb = "remove"
	VerbClear    Verb = "clear"
	VerbCheckout Verb = "checkout"
	VerbLogin    Verb = "login"
	VerbRegister Verb = "register"
	VerbLogout   Verb = "logout"
	VerbWhoami   Verb = "whoami"
	VerbQuit     Verb = "quit"
)

var aliases = map[string]Verb{
	"?":        VerbHelp,
	"ls":       VerbList,
	"products": VerbList,
	"n":        VerbNext,
	"p":        VerbPrev,
	"orderby":  VerbSort,
	"find":     VerbSearch,
	"brand":    VerbBrands,
	"type":     VerbTypes,
	"pagesize": VerbSize,
	"product":  VerbShow,
	"basket":   VerbCart,
	"rm":       VerbRemove,
	"pay":      VerbCheckout,
	"signin":   VerbLogin,
	"signup":   VerbRegister,
	"signout":  VerbLogout,
	"exit":     VerbQuit,
	"q":        VerbQuit,
}

// Command is one parsed input line.
type Command struct {
	Verb      Verb
	ProductID int
	Quantity  int
	N         int
	Text      string
	List      []string
	Email     string
	Password  string
}

const usage = `commands:
  list                     show the current page of products
  page <n> | next | prev   navigate pages
  sort name|price|priceDesc
  search [term]            filter by name; no term clears
  brands [a,b,...]         filter by brand; no value clears
  types [a,b,...]          filter by type; no value clears
  size <n>                 products per page
  reset                    restore default list parameters
  show <id>                product details
  filters                  available brands and types
  cart                     show the cart
  add <id> [qty]           add to cart (default 1)
  remove <id> [qty]        remove from cart (default 1)
  clear                    empty the cart
  checkout                 create a payment intent
  login <email> <password>
  register <email> <password> <name>
  logout | whoami          end or show the session
  quit`

// ParseCommand parses line. An empty line yields a zero Command and no error.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, nil
	}

	name := strings.ToLower(fields[0])
	verb, ok := aliases[name]
	if !ok {
		verb = Verb(name)
	}
	args := fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
	cmd := Command{Verb: verb}

	switch verb {
	case VerbHelp, VerbList, VerbNext, VerbPrev, VerbReset, VerbFilters,
		VerbCart, VerbClear, VerbCheckout, VerbLogout, VerbWhoami, VerbQuit:
		if len(args) > 0 {
			return Command{}, fmt.Errorf("%s takes no arguments", verb)
		}

	case VerbPage, VerbSize:
		if len(args) != 1 {
			return Command{}, fmt.Errorf("usage: %s <n>", verb)
		}
		n, err := positiveInt(args[0])
		if err != nil {
			return Command{}, fmt.Errorf("%s: %w", verb, err)
		}
		cmd.N = n

	case VerbSort:
		if len(args) != 1 {
			return Command{}, fmt.Errorf("usage: sort %s|%s|%s", storefront.OrderByName, storefront.OrderByPrice, storefront.OrderByPriceDesc)
		}
		order, err := parseOrder(args[0])
		if err != nil {
			return Command{}, err
		}
		cmd.Text = order

	case VerbSearch:
		cmd.Text = rest

	case VerbBrands, VerbTypes:
		cmd.List = splitList(rest)

	case VerbShow:
		if len(args) != 1 {
			return Command{}, fmt.Errorf("usage: show <id>")
		}
		id, err := positiveInt(args[0])
		if err != nil {
			return Command{}, fmt.Errorf("product id: %w", err)
		}
		cmd.ProductID = id

	case VerbAdd, VerbRemove:
		if len(args) < 1 || len(args) > 2 {
			return Command{}, fmt.Errorf("usage: %s <id> [qty]", verb)
		}
		id, err := positiveInt(args[0])
		if err != nil {
			return Command{}, fmt.Errorf("product id: %w", err)
		}
		cmd.ProductID = id
		cmd.Quantity = 1
		if len(args) == 2 {
			q, err := positiveInt(args[1])
			if err != nil {
				return Command{}, fmt.Errorf("quantity: %w", err)
			}
			cmd.Quantity = q
		}

	case VerbLogin:
		if len(args) != 2 {
			return Command{}, fmt.Errorf("usage: login <email> <password>")
		}
		cmd.Email, cmd.Password = args[0], args[1]

	case VerbRegister:
		if len(args) < 3 {
			return Command{}, fmt.Errorf("usage: register <email> <password> <name>")
		}
		cmd.Email, cmd.Password = args[0], args[1]
		cmd.Text = strings.Join(args[2:], " ")

	default:
		return Command{}, fmt.Errorf("unknown command %q, type help", fields[0])
	}
	return cmd, nil
}

func positiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("must be at least 1, got %d", n)
	}
	return n, nil
}

func parseOrder(s string) (string, error) {
	for _, o := range []string{storefront.OrderByName, storefront.OrderByPrice, storefront.OrderByPriceDesc} {
		if strings.EqualFold(s, o) {
			return o, nil
		}
	}
	return "", fmt.Errorf("unknown sort order %q", s)
}

func splitList(v string) []string {
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
