package pagination

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// HeaderName is the response header carrying the JSON encoded MetaData of a
// paginated list. It travels out-of-band so the body stays a plain array.
const HeaderName = "Pagination"

// Paging limits for catalog style listings. MaxPageNumber keeps the row
// offset far from int overflow.
const (
	DefaultPageSize = 6
	MaxPageSize     = 50
	MaxPageNumber   = 100000
)

// Params holds pagination parameters extracted from query strings.
type Params struct {
	PageNumber int `json:"pageNumber"`
	PageSize   int `json:"pageSize"`
}

// Offset returns the number of rows to skip for the current page. Pages
// outside 1..MaxPageNumber skip nothing.
func (p Params) Offset() int {
	if p.PageNumber < 1 || p.PageNumber > MaxPageNumber || p.PageSize < 1 {
		return 0
	}
	return (p.PageNumber - 1) * p.PageSize
}

// MetaData describes one page of a larger result set.
type MetaData struct {
	CurrentPage int `json:"currentPage"`
	PageSize    int `json:"pageSize"`
	TotalCount  int `json:"totalCount"`
	TotalPages  int `json:"totalPages"`
}

// NewMetaData computes paging metadata for totalCount rows.
func NewMetaData(totalCount int, params Params) MetaData {
	totalPages := 0
	if params.PageSize > 0 {
		totalPages = totalCount / params.PageSize
		if totalCount%params.PageSize > 0 {
			totalPages++
		}
	}

	return MetaData{
		CurrentPage: params.PageNumber,
		PageSize:    params.PageSize,
		TotalCount:  totalCount,
		TotalPages:  totalPages,
	}
}

// HasNext reports whether a page follows the current one.
func (m MetaData) HasNext() bool {
	return m.CurrentPage < m.TotalPages
}

// HasPrev reports whether a page precedes the current one.
func (m MetaData) HasPrev() bool {
	return m.CurrentPage > 1
}

// WriteHeader stores m as JSON in the Pagination header of h.
func WriteHeader(h http.Header, m MetaData) {
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	h.Set(HeaderName, string(data))
}

// ParseHeader decodes the Pagination header from h. It returns nil and no
// error when the header is absent.
func ParseHeader(h http.Header) (*MetaData, error) {
	raw := h.Get(HeaderName)
	if raw == "" {
		return nil, nil
	}

	var m MetaData
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("decode %s header: %w", HeaderName, err)
	}
	return &m, nil
}
