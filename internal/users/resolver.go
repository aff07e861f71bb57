package users

import (
	"context"
	"net/url"
	"slices"
	"strconv"

	"github.com/atlas-admin/atlas-admin/internal/tablequery"
)

// ListSpec is the table contract for the users list: which columns may be
// sorted and which extra filters are recognized.
var ListSpec = tablequery.Spec{
	SortColumns: []string{"id", "name", "email", "role", "created_at"},
	FilterKeys:  []string{"role"},
}

// ResultPage is one page of the filtered, sorted user set.
type ResultPage struct {
	Items []User
	Meta  tablequery.Meta
}

// FilterEcho restates the filters that were actually applied, after
// normalization, so the client can re-seed its query state from the
// response. An invalid sort column surfaces here as null, not as the raw
// input.
type FilterEcho struct {
	Search  string  `json:"search"`
	Sort    *string `json:"sort"`
	PerPage int     `json:"per_page"`
	Page    int     `json:"page"`
	Role    *string `json:"role,omitempty"`
}

// Redirect instructs the handler to send the client to the same query with
// the page rewritten, used when the requested page is past the end.
type Redirect struct {
	Query url.Values
}

// ListRepo is the slice of the repository the resolver needs.
type ListRepo interface {
	List(ctx context.Context, q tablequery.Query) ([]User, int, error)
}

// Resolver turns a raw list-endpoint query string into a result page and a
// normalized filter echo. Malformed input never errors; it degrades to
// defaults.
type Resolver struct {
	repo ListRepo
}

// NewResolver constructs a Resolver.
func NewResolver(repo ListRepo) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve parses and normalizes the raw query, loads the matching page, and
// either returns it with its echo or signals a page-clamp redirect. The
// redirect carries the raw query as received, with only page rewritten, so
// parameters this resolver does not recognize survive the round trip.
func (r *Resolver) Resolve(ctx context.Context, values url.Values) (*ResultPage, FilterEcho, *Redirect, error) {
	q := tablequery.Parse(values, ListSpec)

	items, total, err := r.repo.List(ctx, q)
	if err != nil {
		return nil, FilterEcho{}, nil, err
	}

	meta := tablequery.NewMeta(q.Page, q.PerPage, total)
	if target, clamped := meta.Clamp(); clamped {
		redirect := make(url.Values, len(values))
		for key, raw := range values {
			redirect[key] = slices.Clone(raw)
		}
		redirect.Set(tablequery.ParamPage, strconv.Itoa(target))
		return nil, FilterEcho{}, &Redirect{Query: redirect}, nil
	}

	return &ResultPage{Items: items, Meta: meta}, newFilterEcho(q, meta), nil, nil
}

func newFilterEcho(q tablequery.Query, meta tablequery.Meta) FilterEcho {
	echo := FilterEcho{
		Search:  q.Search,
		PerPage: meta.PerPage,
		Page:    meta.CurrentPage,
	}
	if q.Sort != nil {
		sort := q.Sort.String()
		echo.Sort = &sort
	}
	if role := q.Filters["role"]; role != "" {
		echo.Role = &role
	}
	return echo
}
