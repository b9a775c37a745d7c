package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mehmetymw/tap-libsql/internal/types"
)

// Column is one row of PRAGMA table_info output.
type Column struct {
	ID       int
	Name     string
	DeclType string
	NotNull  bool
	Default  sql.NullString
	PKRank   int
}

// tableColumns runs the metadata query for one table. SQLite reports
// columns in ordinal order; PKRank is 0 for non-key columns and the
// 1-based position within a composite primary key otherwise.
func tableColumns(ctx context.Context, db *sql.DB, table string) ([]Column, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("%w: table_info %s: %v", types.ErrQuery, table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		var notNull int
		if err := rows.Scan(&c.ID, &c.Name, &c.DeclType, &notNull, &c.Default, &c.PKRank); err != nil {
			return nil, fmt.Errorf("%w: table_info %s: %v", types.ErrQuery, table, err)
		}
		c.NotNull = notNull != 0
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: table_info %s: %v", types.ErrQuery, table, err)
	}

	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: table %q not found in database", types.ErrSchema, table)
	}
	return cols, nil
}

// mapDeclaredType maps a declared SQLite column type to a portable type tag
// following SQLite's type affinity rules. Substring checks are evaluated in
// priority order; unrecognized declarations fall back to string.
func mapDeclaredType(decl string) types.PropertyType {
	d := strings.ToUpper(decl)

	if strings.Contains(d, "INT") {
		return types.TypeInteger
	}
	if containsAny(d, "CHAR", "CLOB", "TEXT") {
		if containsAny(d, "DATE", "TIME") {
			return types.TypeDatetime
		}
		return types.TypeString
	}
	if containsAny(d, "REAL", "FLOA", "DOUB", "NUMERIC", "DECIMAL") {
		return types.TypeNumber
	}
	// Blob payloads are base64-encoded at record construction time.
	if strings.Contains(d, "BLOB") {
		return types.TypeString
	}
	if strings.Contains(d, "BOOL") {
		return types.TypeBoolean
	}
	return types.TypeString
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// buildSchema derives the emitted schema from column descriptors. A column
// is required only when it is both NOT NULL and part of the primary key.
// The synthetic extraction timestamp is always appended.
func buildSchema(cols []Column) *types.Schema {
	s := &types.Schema{
		Columns:    make([]string, 0, len(cols)+1),
		Properties: make(map[string]types.Property, len(cols)+1),
	}
	for _, c := range cols {
		s.Columns = append(s.Columns, c.Name)
		s.Properties[c.Name] = types.Property{
			Type:     mapDeclaredType(c.DeclType),
			Required: c.NotNull && c.PKRank > 0,
		}
	}
	s.Columns = append(s.Columns, types.ExtractedAtColumn)
	s.Properties[types.ExtractedAtColumn] = types.Property{Type: types.TypeDatetime, Required: true}
	return s
}

// detectPrimaryKeys returns key columns in ascending rank order, or nil
// when the table has no declared primary key.
func detectPrimaryKeys(cols []Column) []string {
	var ranked []Column
	for _, c := range cols {
		if c.PKRank > 0 {
			ranked = append(ranked, c)
		}
	}
	if len(ranked) == 0 {
		return nil
	}
	keys := make([]string, len(ranked))
	for _, c := range ranked {
		keys[c.PKRank-1] = c.Name
	}
	return keys
}
