// Package storefront holds the domain model shared by the storefront client
// and the catalog and cart services.
package storefront

// Product is a read-only catalog entity. Price is in minor currency units.
type Product struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	Price           int64  `json:"price"`
	PictureURL      string `json:"pictureUrl,omitempty"`
	Type            string `json:"type"`
	Brand           string `json:"brand"`
	QuantityInStock int    `json:"quantityInStock"`
}

// Filters lists the distinct facet values of the catalog.
type Filters struct {
	Brands []string `json:"brands"`
	Types  []string `json:"types"`
}
