// Package query implements list-endpoint plumbing: the paginated response
// envelope and the allow-listed ordering filter.
package query

import (
	"strings"

	"gorm.io/gorm"

	dbutil "github.com/miky-rola/signals-backend/internal/db"
)

// ApplyOrdering applies the `ordering` query parameter to q. The parameter is
// a comma-separated list of field names, each optionally prefixed with `-`
// for descending order. Only fields present in allowed are used; everything
// else is dropped rather than interpolated into the query. NULL values sort
// last in both directions.
func ApplyOrdering(q *gorm.DB, ordering string, allowed map[string]bool) *gorm.DB {
	for _, field := range strings.Split(ordering, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		descending := strings.HasPrefix(field, "-")
		column := strings.TrimPrefix(field, "-")
		if !allowed[column] {
			continue
		}
		q = q.Order(dbutil.OrderNullsLastExpr(column, descending))
	}
	return q
}
