package tablequery

import (
	"net/url"
	"strconv"
)

// Navigation is a computed request for the navigation layer: the target URL
// plus the history and state-preservation semantics the caller asked for.
type Navigation struct {
	BaseURL        string
	Query          url.Values
	PreserveScroll bool
	PreserveState  bool
	Replace        bool
}

// URL renders the full target URL.
func (n Navigation) URL() string {
	if len(n.Query) == 0 {
		return n.BaseURL
	}
	return n.BaseURL + "?" + n.Query.Encode()
}

// Navigator performs a navigation. Implementations wrap whatever transport
// drives the page: a browser history shim, an HTTP client in tests, or
// nothing at all when the controller is only used to build links.
type Navigator interface {
	Visit(Navigation)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(Navigation)

// Visit implements Navigator.
func (f NavigatorFunc) Visit(n Navigation) { f(n) }

// Options configures a Controller.
type Options struct {
	// ResetPageOn lists the parameters whose change forces page back to 1.
	// Defaults to search, sort and per_page.
	ResetPageOn []string
	// Replace controls the default history semantics; repeated table
	// interactions replace the current entry instead of stacking.
	Replace *bool
	// BaseURL overrides the navigation target; defaults to the current
	// location's path.
	BaseURL string
}

// NavOptions tunes a single navigation. Nil fields fall back to the
// controller defaults (preserve scroll, preserve state, replace history).
type NavOptions struct {
	PreserveScroll *bool
	PreserveState  *bool
	Replace        *bool
}

var defaultResetPageOn = []string{ParamSearch, ParamSort, ParamPerPage}

// Controller owns the canonical query state of a server table. State is
// never stored: Current derives it fresh from the location source on every
// call, so server-side normalization echoed through the URL always wins.
type Controller struct {
	initial     map[string]string
	resetPageOn []string
	replace     bool
	baseURL     string
	location    func() *url.URL
	navigator   Navigator
}

// NewController builds a controller over a location source. initial supplies
// caller defaults that the current URL overrides field by field.
func NewController(initial map[string]string, opts Options, location func() *url.URL, navigator Navigator) *Controller {
	c := &Controller{
		initial:     initial,
		resetPageOn: opts.ResetPageOn,
		replace:     true,
		baseURL:     opts.BaseURL,
		location:    location,
		navigator:   navigator,
	}
	if len(c.resetPageOn) == 0 {
		c.resetPageOn = defaultResetPageOn
	}
	if opts.Replace != nil {
		c.replace = *opts.Replace
	}
	return c
}

// Current returns the effective query state: initial defaults overridden by
// whatever the current URL carries. A malformed query string contributes
// nothing; the defaults stand.
func (c *Controller) Current() map[string]string {
	current := make(map[string]string, len(c.initial))
	for key, value := range c.initial {
		current[key] = value
	}
	loc := c.locationURL()
	if loc == nil {
		return current
	}
	values, err := url.ParseQuery(loc.RawQuery)
	if err != nil {
		return current
	}
	for key := range values {
		current[key] = values.Get(key)
	}
	return current
}

// Go merges patch into the current state and navigates. If any reset-page
// parameter is present in the patch with a different value, the page is
// forced back to 1 regardless of an explicit page in the same patch. Empty
// values are stripped so "no filter" never appears in the URL. The computed
// Navigation is returned, and dispatched when a navigator is attached.
func (c *Controller) Go(patch map[string]string, opts NavOptions) Navigation {
	current := c.Current()

	next := make(map[string]string, len(current)+len(patch))
	for key, value := range current {
		next[key] = value
	}
	for key, value := range patch {
		next[key] = value
	}

	for _, key := range c.resetPageOn {
		if value, ok := patch[key]; ok && value != current[key] {
			next[ParamPage] = "1"
			break
		}
	}

	query := url.Values{}
	for key, value := range next {
		if value != "" {
			query.Set(key, value)
		}
	}

	nav := Navigation{
		BaseURL:        c.targetURL(),
		Query:          query,
		PreserveScroll: boolOr(opts.PreserveScroll, true),
		PreserveState:  boolOr(opts.PreserveState, true),
		Replace:        boolOr(opts.Replace, c.replace),
	}
	if c.navigator != nil {
		c.navigator.Visit(nav)
	}
	return nav
}

// SetPage navigates to another page, replacing history so paging does not
// pollute the back stack.
func (c *Controller) SetPage(page int) Navigation {
	replace := true
	return c.Go(map[string]string{ParamPage: strconv.Itoa(page)}, NavOptions{Replace: &replace})
}

// SetPerPage changes the page size; the reset rule sends the table back to
// page 1.
func (c *Controller) SetPerPage(perPage int) Navigation {
	return c.Go(map[string]string{ParamPerPage: strconv.Itoa(perPage)}, NavOptions{})
}

// SetSearch applies a search term; an empty term removes the parameter.
func (c *Controller) SetSearch(search string) Navigation {
	return c.Go(map[string]string{ParamSearch: search}, NavOptions{})
}

// SetSort applies a "column:direction" sort spec; an empty spec clears
// sorting entirely rather than encoding a null token.
func (c *Controller) SetSort(sort string) Navigation {
	return c.Go(map[string]string{ParamSort: sort}, NavOptions{})
}

// SetFilter applies an arbitrary named filter such as role.
func (c *Controller) SetFilter(key, value string) Navigation {
	return c.Go(map[string]string{key: value}, NavOptions{})
}

func (c *Controller) locationURL() *url.URL {
	if c.location == nil {
		return nil
	}
	return c.location()
}

func (c *Controller) targetURL() string {
	if c.baseURL != "" {
		return c.baseURL
	}
	if loc := c.locationURL(); loc != nil {
		return loc.Path
	}
	return "/"
}

func boolOr(v *bool, fallback bool) bool {
	if v != nil {
		return *v
	}
	return fallback
}
