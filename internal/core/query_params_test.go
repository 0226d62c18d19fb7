package core

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Annany2002/cadastro-backend/internal/domain"
)

func TestParseListQueryOptions(t *testing.T) {
	testCases := []struct {
		name    string
		query   string
		want    ListQueryOptions
		wantErr bool
	}{
		{"defaults", "", ListQueryOptions{Page: 1, Limit: 100, SortBy: "id", SortOrder: "asc"}, false},
		{"all set", "page=3&limit=20&search=ana&sort_by=nome&sort_order=DESC",
			ListQueryOptions{Page: 3, Limit: 20, Search: "ana", SortBy: "nome", SortOrder: "desc"}, false},
		{"max limit", "limit=1000", ListQueryOptions{Page: 1, Limit: 1000, SortBy: "id", SortOrder: "asc"}, false},
		{"limit too big", "limit=1001", ListQueryOptions{}, true},
		{"limit zero", "limit=0", ListQueryOptions{}, true},
		{"page zero", "page=0", ListQueryOptions{}, true},
		{"page not a number", "page=x", ListQueryOptions{}, true},
		{"bad sort column", "sort_by=nome;drop", ListQueryOptions{}, true},
		{"bad order", "sort_order=up", ListQueryOptions{}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := url.ParseQuery(tc.query)
			require.NoError(t, err)
			got, err := ParseListQueryOptions(q)
			if tc.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestListQueryOptionsOffsetAndSort(t *testing.T) {
	opts := ListQueryOptions{Page: 3, Limit: 20, SortBy: "idade"}
	assert.Equal(t, 40, opts.Offset())
	assert.NoError(t, opts.CheckSortColumn(clientes()))

	opts.SortBy = "email"
	assert.ErrorIs(t, opts.CheckSortColumn(clientes()), domain.ErrInvalidInput)
}
