package http

import (
	"net/http"
	"strconv"

	"github.com/tabeldata/oauth-sso/internal/sso/domain"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// parsePage reads offset/limit query params with sane bounds.
func parsePage(r *http.Request) domain.Page {
	page := domain.Page{Limit: defaultPageLimit}

	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		page.Offset = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		page.Limit = min(v, maxPageLimit)
	}
	return page
}

// parseSort reads the sort ordinal and direction. Absent or non-numeric sort
// yields nil, which leaves the listing in storage-defined order.
func parseSort(r *http.Request) *domain.Sort {
	raw := r.URL.Query().Get("sort")
	if raw == "" {
		return nil
	}
	ordinal, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &domain.Sort{
		Column:     ordinal,
		Descending: r.URL.Query().Get("dir") == "desc",
	}
}

// parseLogout reads the logout flag filter: "true"/"false" set it, anything
// else leaves it unset.
func parseLogout(r *http.Request) *bool {
	switch r.URL.Query().Get("logout") {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	default:
		return nil
	}
}
