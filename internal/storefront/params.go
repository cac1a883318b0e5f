package storefront

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/utafrali/storefront/pkg/pagination"
)

// Sort orders accepted by the catalog.
const (
	OrderByName      = "name"
	OrderByPrice     = "price"
	OrderByPriceDesc = "priceDesc"
)

// Query string keys.
const (
	ParamPageNumber = "pageNumber"
	ParamPageSize   = "pageSize"
	ParamOrderBy    = "orderBy"
	ParamSearchTerm = "searchTerm"
	ParamBrands     = "brands"
	ParamTypes      = "types"
)

// ProductParams are the catalog list query parameters.
type ProductParams struct {
	OrderBy    string   `query:"orderBy" validate:"oneof=name price priceDesc"`
	PageNumber int      `query:"pageNumber" validate:"min=1,max=100000"`
	PageSize   int      `query:"pageSize" validate:"min=1,max=50"`
	SearchTerm string   `query:"searchTerm" validate:"max=100"`
	Brands     []string `query:"brands"`
	Types      []string `query:"types"`
}

// DefaultProductParams returns the parameters a new catalog session starts with.
func DefaultProductParams() ProductParams {
	return ProductParams{
		OrderBy:    OrderByName,
		PageNumber: 1,
		PageSize:   pagination.DefaultPageSize,
		Brands:     []string{},
		Types:      []string{},
	}
}

// Clone returns a deep copy of p.
func (p ProductParams) Clone() ProductParams {
	p.Brands = slices.Clone(p.Brands)
	p.Types = slices.Clone(p.Types)
	if p.Brands == nil {
		p.Brands = []string{}
	}
	if p.Types == nil {
		p.Types = []string{}
	}
	return p
}

// Page returns the paging part of p.
func (p ProductParams) Page() pagination.Params {
	return pagination.Params{PageNumber: p.PageNumber, PageSize: p.PageSize}
}

// Query encodes p. pageNumber, pageSize and orderBy are always present;
// searchTerm, brands and types are omitted when empty. Brands and types are
// comma joined.
func (p ProductParams) Query() url.Values {
	q := url.Values{}
	q.Set(ParamPageNumber, strconv.Itoa(p.PageNumber))
	q.Set(ParamPageSize, strconv.Itoa(p.PageSize))
	q.Set(ParamOrderBy, p.OrderBy)
	if p.SearchTerm != "" {
		q.Set(ParamSearchTerm, p.SearchTerm)
	}
	if len(p.Brands) > 0 {
		q.Set(ParamBrands, strings.Join(p.Brands, ","))
	}
	if len(p.Types) > 0 {
		q.Set(ParamTypes, strings.Join(p.Types, ","))
	}
	return q
}

// ParseProductParams decodes a query produced by Query. Missing keys take
// their default value; an empty orderBy means name.
func ParseProductParams(q url.Values) (ProductParams, error) {
	p := DefaultProductParams()

	if v := q.Get(ParamPageNumber); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("%s must be an integer: %q", ParamPageNumber, v)
		}
		p.PageNumber = n
	}
	if v := q.Get(ParamPageSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("%s must be an integer: %q", ParamPageSize, v)
		}
		p.PageSize = n
	}
	if v := q.Get(ParamOrderBy); v != "" {
		p.OrderBy = v
	}
	p.SearchTerm = strings.TrimSpace(q.Get(ParamSearchTerm))
	p.Brands = splitList(q.Get(ParamBrands))
	p.Types = splitList(q.Get(ParamTypes))
	return p, nil
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
