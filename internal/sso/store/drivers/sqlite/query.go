package sqlite

import (
	"strings"

	"github.com/tabeldata/oauth-sso/internal/sso/domain"
)

// Sortable column lists per view. A query's sort ordinal indexes into one of
// these; anything out of range leaves the statement without an ORDER BY and
// the row order is storage-defined.
var (
	tokenSortColumns = []string{"user_name", "client_id", "ip_address", "login_at"}

	historySortColumns = []string{
		"user_name", "client_id", "ip_address", "login_at",
		"is_logout", "logout_at", "logout_by",
	}
)

// queryBuilder assembles the dynamic listing statements: a base select
// ending in "where 1 = 1", optional predicates, an optional single-column
// sort and a page window. Filter values are always bound as placeholders,
// never spliced into the statement text; only column names from the fixed
// per-view lists ever reach the SQL.
type queryBuilder struct {
	sb   strings.Builder
	args []any
}

func newQueryBuilder(base string) *queryBuilder {
	b := &queryBuilder{}
	b.sb.WriteString(base)
	return b
}

// andEq appends an exact-match predicate. Blank string values add no
// constraint.
func (b *queryBuilder) andEq(column string, value any) {
	if s, ok := value.(string); ok && s == "" {
		return
	}
	b.sb.WriteString(" and ")
	b.sb.WriteString(column)
	b.sb.WriteString(" = ?")
	b.args = append(b.args, value)
}

// andLike appends a substring predicate, wrapping the value in wildcards on
// both sides. Blank values add no constraint.
func (b *queryBuilder) andLike(column, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	b.sb.WriteString(" and ")
	b.sb.WriteString(column)
	b.sb.WriteString(" like ?")
	b.args = append(b.args, "%"+value+"%")
}

// orderBy appends the sort clause selected by s, resolving the ordinal
// against the view's column list. Nil sort or an out-of-range ordinal is
// ignored.
func (b *queryBuilder) orderBy(columns []string, s *domain.Sort) {
	if s == nil || s.Column < 0 || s.Column >= len(columns) {
		return
	}
	b.sb.WriteString(" order by ")
	b.sb.WriteString(columns[s.Column])
	if s.Descending {
		b.sb.WriteString(" desc")
	} else {
		b.sb.WriteString(" asc")
	}
}

// page appends the mandatory limit/offset window.
func (b *queryBuilder) page(p domain.Page) {
	b.sb.WriteString(" limit ? offset ?")
	b.args = append(b.args, p.Limit, p.Offset)
}

func (b *queryBuilder) query() (string, []any) {
	return b.sb.String(), b.args
}
