package tablequery

// Meta describes a page of results.
type Meta struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

// NewMeta computes pagination metadata. LastPage never drops below 1 so an
// empty result set still has a valid current page.
func NewMeta(page, perPage, total int) Meta {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page <= 0 {
		page = 1
	}
	lastPage := (total + perPage - 1) / perPage
	if lastPage < 1 {
		lastPage = 1
	}
	return Meta{CurrentPage: page, PerPage: perPage, Total: total, LastPage: lastPage}
}

// Clamp reports whether the requested page is beyond the last page and, if
// so, the page the client should be redirected to.
func (m Meta) Clamp() (int, bool) {
	if m.CurrentPage > m.LastPage && m.LastPage > 0 {
		return m.LastPage, true
	}
	return m.CurrentPage, false
}
