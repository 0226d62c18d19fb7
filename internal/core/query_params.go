// internal/core/query_params.go
package core

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/Annany2002/cadastro-backend/internal/domain"
)

// Default and limit constants for pagination
const (
	DefaultPage  = 1
	DefaultLimit = 100
	MaxLimit     = 1000
	DefaultOrder = "asc"
)

// ListQueryOptions holds parsed query parameters for ListRecords
type ListQueryOptions struct {
	// Pagination
	Page  int
	Limit int

	// Free-text ILIKE over the table's text columns
	Search string

	// Sorting
	SortBy    string
	SortOrder string // "asc" or "desc"
}

// Offset is the row offset of the requested page.
func (o ListQueryOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// DefaultListQueryOptions returns the options used when nothing is supplied.
func DefaultListQueryOptions() ListQueryOptions {
	return ListQueryOptions{Page: DefaultPage, Limit: DefaultLimit, SortBy: "id", SortOrder: DefaultOrder}
}

// ParseListQueryOptions extracts pagination, search and sorting options from query parameters.
// The sort column is only checked for shape here; the service checks it
// against the table's fields.
func ParseListQueryOptions(queryParams url.Values) (ListQueryOptions, error) {
	opts := DefaultListQueryOptions()

	// Parse page
	if pageStr := queryParams.Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			return opts, domain.InvalidInput("page", "invalid 'page' parameter: must be an integer >= 1")
		}
		opts.Page = page
	}

	// Parse limit
	if limitStr := queryParams.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return opts, domain.InvalidInput("limit", "invalid 'limit' parameter: must be an integer")
		}
		if limit < 1 || limit > MaxLimit {
			return opts, domain.InvalidInput("limit", "invalid 'limit' parameter: must be between 1 and %d", MaxLimit)
		}
		opts.Limit = limit
	}

	opts.Search = strings.TrimSpace(queryParams.Get("search"))

	// Parse sort column
	if sortBy := queryParams.Get("sort_by"); sortBy != "" {
		if !IsValidIdentifier(sortBy) {
			return opts, domain.InvalidInput(sortBy, "invalid 'sort_by' parameter: not a valid column name")
		}
		opts.SortBy = sortBy
	}

	// Parse sort order
	if order := queryParams.Get("sort_order"); order != "" {
		lowerOrder := strings.ToLower(order)
		if lowerOrder != "asc" && lowerOrder != "desc" {
			return opts, domain.InvalidInput("sort_order", "invalid 'sort_order' parameter: must be 'asc' or 'desc'")
		}
		opts.SortOrder = lowerOrder
	}

	return opts, nil
}

// CheckSortColumn verifies that the sort column is id or one of the table's fields.
func (o ListQueryOptions) CheckSortColumn(table domain.DynamicTable) error {
	if o.SortBy == "" || o.SortBy == "id" {
		return nil
	}
	if _, ok := table.FieldByName(o.SortBy); !ok {
		return domain.InvalidInput(o.SortBy, "cannot sort by %s: column does not exist in %s", o.SortBy, table.InternalName)
	}
	return nil
}
