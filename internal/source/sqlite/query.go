package sqlite

import (
	"fmt"
	"strings"
)

// quoteIdent delimits a table or column identifier so reserved words and
// special characters survive.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral inlines a watermark value into the incremental filter.
// Numeric values stay unquoted; everything else is stringified with single
// quotes doubled.
func quoteLiteral(v any) string {
	switch n := v.(type) {
	case int:
		return fmt.Sprintf("%d", n)
	case int32:
		return fmt.Sprintf("%d", n)
	case int64:
		return fmt.Sprintf("%d", n)
	case float32:
		return fmt.Sprintf("%v", n)
	case float64:
		return fmt.Sprintf("%v", n)
	default:
		escaped := strings.ReplaceAll(fmt.Sprintf("%v", v), "'", "''")
		return "'" + escaped + "'"
	}
}

func buildFullTableQuery(table string) string {
	return "SELECT * FROM " + quoteIdent(table)
}

// buildIncrementalQuery builds the watermark-filtered query. A nil start
// value means no prior state, so the filter is omitted and the first sync
// reads the whole table, still ordered by the replication key.
func buildIncrementalQuery(table, key string, start any) string {
	q := "SELECT * FROM " + quoteIdent(table)
	if start != nil {
		q += " WHERE " + quoteIdent(key) + " > " + quoteLiteral(start)
	}
	q += " ORDER BY " + quoteIdent(key) + " ASC"
	return q
}
