// Package tablequery implements the query-string contract shared by the
// list endpoint and the client table: a normalized query state parsed from
// untrusted URL parameters, pagination metadata with page clamping, and a
// controller that computes the next state for every table interaction.
package tablequery

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Reserved parameter names understood by every server table.
const (
	ParamPage    = "page"
	ParamPerPage = "per_page"
	ParamSearch  = "search"
	ParamSort    = "sort"
)

// DefaultPerPage is used when per_page is absent or not an allowed choice.
const DefaultPerPage = 10

// DefaultPerPageChoices is the allowed per_page set when a Spec does not
// override it.
var DefaultPerPageChoices = []int{10, 25, 50, 100}

// Sort is a validated (column, direction) pair.
type Sort struct {
	Column string
	Desc   bool
}

// String renders the wire form "column:asc|desc".
func (s Sort) String() string {
	dir := "asc"
	if s.Desc {
		dir = "desc"
	}
	return s.Column + ":" + dir
}

// Spec describes what a particular table accepts. Anything outside the
// allow-lists degrades silently, it never errors.
type Spec struct {
	SortColumns    []string
	FilterKeys     []string
	PerPageChoices []int
	DefaultPerPage int
}

func (s Spec) perPageChoices() []int {
	if len(s.PerPageChoices) > 0 {
		return s.PerPageChoices
	}
	return DefaultPerPageChoices
}

func (s Spec) defaultPerPage() int {
	if s.DefaultPerPage > 0 {
		return s.DefaultPerPage
	}
	return DefaultPerPage
}

// Query is the normalized state of a list view. It is constructed fresh from
// the request on every call and never mutated in place.
type Query struct {
	Page    int
	PerPage int
	Search  string
	Sort    *Sort
	Filters map[string]string
}

// Parse normalizes untrusted URL parameters against the spec. Missing or
// malformed values take documented defaults: page=1, per_page from the
// allowed set or the default, search trimmed, sort dropped unless the column
// is allow-listed, unknown filter keys ignored.
func Parse(values url.Values, spec Spec) Query {
	q := Query{
		Page:    1,
		PerPage: spec.defaultPerPage(),
		Search:  strings.TrimSpace(values.Get(ParamSearch)),
	}

	if page, err := strconv.Atoi(values.Get(ParamPage)); err == nil && page >= 1 {
		q.Page = page
	}
	if perPage, err := strconv.Atoi(values.Get(ParamPerPage)); err == nil {
		if slices.Contains(spec.perPageChoices(), perPage) {
			q.PerPage = perPage
		}
	}
	q.Sort = parseSort(values.Get(ParamSort), spec.SortColumns)

	for _, key := range spec.FilterKeys {
		if v := values.Get(key); v != "" {
			if q.Filters == nil {
				q.Filters = make(map[string]string)
			}
			q.Filters[key] = v
		}
	}
	return q
}

// parseSort splits "column:direction" on the first colon. The direction is
// descending only on an exact "desc" match; an unknown column yields nil.
func parseSort(raw string, allowed []string) *Sort {
	if raw == "" {
		return nil
	}
	column, direction, _ := strings.Cut(raw, ":")
	if !slices.Contains(allowed, column) {
		return nil
	}
	return &Sort{Column: column, Desc: direction == "desc"}
}

// SortString returns the normalized sort parameter, or "" when unsorted.
func (q Query) SortString() string {
	if q.Sort == nil {
		return ""
	}
	return q.Sort.String()
}

// Offset returns the row offset for the current page.
func (q Query) Offset() int {
	return (q.Page - 1) * q.PerPage
}

// Values encodes the query back into URL parameters. Empty values are
// omitted entirely rather than serialized as bare keys.
func (q Query) Values() url.Values {
	values := url.Values{}
	values.Set(ParamPage, strconv.Itoa(q.Page))
	values.Set(ParamPerPage, strconv.Itoa(q.PerPage))
	if q.Search != "" {
		values.Set(ParamSearch, q.Search)
	}
	if q.Sort != nil {
		values.Set(ParamSort, q.Sort.String())
	}
	for key, value := range q.Filters {
		if value != "" {
			values.Set(key, value)
		}
	}
	return values
}
