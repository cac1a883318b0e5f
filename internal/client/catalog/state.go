package catalog

import (
	"context"
	"slices"
	"sync"

	"github.com/utafrali/storefront/internal/storefront"
	"github.com/utafrali/storefront/pkg/pagination"
)

// Status tags what State is waiting for.
type Status string

const (
	StatusIdle           Status = "idle"
	StatusPendingList    Status = "pending-list-fetch"
	StatusPendingDetail  Status = "pending-detail-fetch"
	StatusPendingFilters Status = "pending-filter-fetch"
)

// ParamsPatch changes selected list parameters. Nil fields are left as they
// are; an empty non-nil Brands or Types clears that filter.
type ParamsPatch struct {
	OrderBy    *string
	PageSize   *int
	SearchTerm *string
	Brands     []string
	Types      []string
}

// Snapshot is a copy of every field of State.
type Snapshot struct {
	Status         Status
	Params         storefront.ProductParams
	MetaData       *pagination.MetaData
	ProductsLoaded bool
	FiltersLoaded  bool
	Products       []storefront.Product
	Brands         []string
	Types          []string
	Err            error
}

// State is the client-side catalog store: the products of the current page
// keyed by id, the list parameters and the facet lists.
//
// State never fetches on its own. Changing parameters clears ProductsLoaded
// and the caller pulls with FetchProducts when it observes that. Gateway calls
// run without holding the lock; when two fetches overlap the one completing
// last is applied.
type State struct {
	gateway Gateway

	mu             sync.Mutex
	ids            []int
	entities       map[int]storefront.Product
	params         storefront.ProductParams
	meta           *pagination.MetaData
	productsLoaded bool
	filtersLoaded  bool
	status         Status
	brands         []string
	types          []string
	err            error
}

// NewState creates an empty State reading from g.
func NewState(g Gateway) *State {
	s := &State{gateway: g}
	s.Reset()
	return s
}

// Reset returns the state to its initial values.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = nil
	s.entities = make(map[int]storefront.Product)
	s.params = storefront.DefaultProductParams()
	s.meta = nil
	s.productsLoaded = false
	s.filtersLoaded = false
	s.status = StatusIdle
	s.brands = []string{}
	s.types = []string{}
	s.err = nil
}

// SetProductParams merges patch into the parameters and restarts paging at
// page 1.
func (s *State) SetProductParams(patch ParamsPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if patch.OrderBy != nil {
		s.params.OrderBy = *patch.OrderBy
	}
	if patch.PageSize != nil {
		s.params.PageSize = *patch.PageSize
	}
	if patch.SearchTerm != nil {
		s.params.SearchTerm = *patch.SearchTerm
	}
	if patch.Brands != nil {
		s.params.Brands = slices.Clone(patch.Brands)
	}
	if patch.Types != nil {
		s.params.Types = slices.Clone(patch.Types)
	}
	s.params.PageNumber = 1
	s.productsLoaded = false
}

// SetPageNumber navigates to page n without touching the other parameters.
func (s *State) SetPageNumber(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params.PageNumber = n
	s.productsLoaded = false
}

// ResetProductParams restores the default parameters.
func (s *State) ResetProductParams() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = storefront.DefaultProductParams()
	s.productsLoaded = false
}

// SetMetaData records the paging descriptor of the last list fetch.
func (s *State) SetMetaData(m pagination.MetaData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta = &m
}

// FetchProducts loads the page for the current parameters. On success the
// product set is replaced by the page. On failure the status returns to idle,
// ProductsLoaded stays false and the error is kept in Err.
func (s *State) FetchProducts(ctx context.Context) error {
	s.mu.Lock()
	params := s.params.Clone()
	s.status = StatusPendingList
	s.err = nil
	s.mu.Unlock()

	page, err := s.gateway.List(ctx, params)
	if err != nil {
		s.fail(err)
		return err
	}

	s.SetMetaData(page.MetaData)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make([]int, 0, len(page.Items))
	s.entities = make(map[int]storefront.Product, len(page.Items))
	for _, p := range page.Items {
		if _, dup := s.entities[p.ID]; !dup {
			s.ids = append(s.ids, p.ID)
		}
		s.entities[p.ID] = p
	}
	s.productsLoaded = true
	s.status = StatusIdle
	return nil
}

// FetchProduct loads one product and upserts it, leaving other entries in
// place.
func (s *State) FetchProduct(ctx context.Context, id int) (storefront.Product, error) {
	s.mu.Lock()
	s.status = StatusPendingDetail
	s.err = nil
	s.mu.Unlock()

	p, err := s.gateway.Details(ctx, id)
	if err != nil {
		s.fail(err)
		return storefront.Product{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[p.ID]; !ok {
		s.ids = append(s.ids, p.ID)
	}
	s.entities[p.ID] = *p
	s.status = StatusIdle
	return *p, nil
}

// FetchFilters replaces the brand and type facets.
func (s *State) FetchFilters(ctx context.Context) error {
	s.mu.Lock()
	s.status = StatusPendingFilters
	s.err = nil
	s.mu.Unlock()

	f, err := s.gateway.Filters(ctx)
	if err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.brands = nonNil(slices.Clone(f.Brands))
	s.types = nonNil(slices.Clone(f.Types))
	s.filtersLoaded = true
	s.status = StatusIdle
	return nil
}

func (s *State) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusIdle
	s.err = err
}

// ProductsLoaded reports whether the product set matches the parameters.
func (s *State) ProductsLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.productsLoaded
}

// FiltersLoaded reports whether the facets have been fetched.
func (s *State) FiltersLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filtersLoaded
}

// Status returns the current status tag.
func (s *State) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Params returns a copy of the list parameters.
func (s *State) Params() storefront.ProductParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params.Clone()
}

// MetaData returns the last paging descriptor, or nil before the first list.
func (s *State) MetaData() *pagination.MetaData {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meta == nil {
		return nil
	}
	m := *s.meta
	return &m
}

// Products returns the stored products: the last page in server order
// followed by products upserted since.
func (s *State) Products() []storefront.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.productsLocked()
}

func (s *State) productsLocked() []storefront.Product {
	out := make([]storefront.Product, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.entities[id])
	}
	return out
}

// Product looks up a stored product by id.
func (s *State) Product(id int) (storefront.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.entities[id]
	return p, ok
}

// Err returns the error of the last failed fetch, cleared when the next
// fetch starts.
func (s *State) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Snapshot copies the whole state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Status:         s.status,
		Params:         s.params.Clone(),
		ProductsLoaded: s.productsLoaded,
		FiltersLoaded:  s.filtersLoaded,
		Products:       s.productsLocked(),
		Brands:         slices.Clone(s.brands),
		Types:          slices.Clone(s.types),
		Err:            s.err,
	}
	if s.meta != nil {
		m := *s.meta
		snap.MetaData = &m
	}
	return snap
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
