package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/internal/storefront"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const (
	productColumns = `id, name, description, price, picture_url, type, brand, quantity_in_stock`
	selectProduct  = `SELECT ` + productColumns + ` FROM products WHERE id = $1`
)

// sortOrders maps orderBy to SQL; id breaks ties so pages never overlap.
var sortOrders = map[string]string{
	storefront.OrderByName:      "name ASC, id ASC",
	storefront.OrderByPrice:     "price ASC, id ASC",
	storefront.OrderByPriceDesc: "price DESC, id ASC",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// productRow is a products row as scanned by column name. Total is only
// selected by List.
type productRow struct {
	ID              int    `db:"id"`
	Name            string `db:"name"`
	Description     string `db:"description"`
	Price           int64  `db:"price"`
	PictureURL      string `db:"picture_url"`
	Type            string `db:"type"`
	Brand           string `db:"brand"`
	QuantityInStock int    `db:"quantity_in_stock"`
	Total           int    `db:"total_count"`
}

func (r productRow) product() storefront.Product {
	return storefront.Product{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description,
		Price:           r.Price,
		PictureURL:      r.PictureURL,
		Type:            r.Type,
		Brand:           r.Brand,
		QuantityInStock: r.QuantityInStock,
	}
}

// ProductRepository reads the catalog from PostgreSQL.
type ProductRepository struct {
	db database.DBTX
}

func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetByID returns the product with id, or a NOT_FOUND error.
func (r *ProductRepository) GetByID(ctx context.Context, id int) (_ *storefront.Product, err error) {
	ctx, end := database.TraceQuery(ctx, "GetProduct", selectProduct)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, selectProduct, id)
	if err == nil {
		var row productRow
		row, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[productRow])
		if err == nil {
			p := row.product()
			return &p, nil
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("product", strconv.Itoa(id))
	}
	return nil, fmt.Errorf("get product %d: %w", id, err)
}

// whereClause collects filter conditions and their positional arguments.
type whereClause struct {
	conds []string
	args  []any
}

// add appends cond, whose single %d is replaced by arg's placeholder number.
func (w *whereClause) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ")
}

func productFilter(params storefront.ProductParams) *whereClause {
	w := &whereClause{}
	if params.SearchTerm != "" {
		w.add("name ILIKE $%d", "%"+likeEscaper.Replace(params.SearchTerm)+"%")
	}
	if len(params.Brands) > 0 {
		w.add("brand = ANY($%d)", params.Brands)
	}
	if len(params.Types) > 0 {
		w.add("type = ANY($%d)", params.Types)
	}
	return w
}

// List returns one page of products matching params with the total number
// of matches. The total rides along each row via count(*) OVER(); a page
// past the last match is counted separately.
func (r *ProductRepository) List(ctx context.Context, params storefront.ProductParams) (_ []storefront.Product, _ int, err error) {
	order, ok := sortOrders[params.OrderBy]
	if !ok {
		order = sortOrders[storefront.OrderByName]
	}
	where := productFilter(params)
	page := params.Page()
	n := len(where.args)
	args := append(where.args, page.PageSize, page.Offset())

	query := fmt.Sprintf(
		"SELECT %s, count(*) OVER() AS total_count FROM products %s ORDER BY %s LIMIT $%d OFFSET $%d",
		productColumns, where, order, n+1, n+2,
	)

	ctx, end := database.TraceQuery(ctx, "ListProducts", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowToStructByName[productRow])
	if err != nil {
		return nil, 0, fmt.Errorf("scan product rows: %w", err)
	}

	products := make([]storefront.Product, len(found))
	total := 0
	for i, row := range found {
		products[i] = row.product()
		total = row.Total
	}
	if len(found) == 0 && page.Offset() > 0 {
		// A page past the end has no rows to carry the window total.
		if total, err = r.count(ctx, where); err != nil {
			return nil, 0, err
		}
	}
	return products, total, nil
}

func (r *ProductRepository) count(ctx context.Context, where *whereClause) (n int, err error) {
	query := "SELECT count(*) FROM products " + where.String()

	ctx, end := database.TraceQuery(ctx, "CountProducts", query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query, where.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// Filters returns the distinct brands and types, each sorted.
func (r *ProductRepository) Filters(ctx context.Context) (*storefront.Filters, error) {
	brands, err := r.distinct(ctx, "brand")
	if err != nil {
		return nil, err
	}
	types, err := r.distinct(ctx, "type")
	if err != nil {
		return nil, err
	}
	return &storefront.Filters{Brands: brands, Types: types}, nil
}

// distinct lists the values of column; column is never caller input.
func (r *ProductRepository) distinct(ctx context.Context, column string) (_ []string, err error) {
	query := fmt.Sprintf(`SELECT DISTINCT %[1]s FROM products ORDER BY %[1]s`, column)

	ctx, end := database.TraceQuery(ctx, "ListDistinct_"+column, query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list distinct %s: %w", column, err)
	}
	values, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect distinct %s: %w", column, err)
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}
