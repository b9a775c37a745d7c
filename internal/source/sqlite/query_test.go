package sqlite

import "testing"

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"users", `"users"`},
		{"order", `"order"`},
		{`we"ird`, `"we""ird"`},
	}
	for _, tc := range tests {
		if got := quoteIdent(tc.in); got != tc.want {
			t.Fatalf("quoteIdent(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestQuoteLiteral(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{int64(42), "42"},
		{42, "42"},
		{3.14, "3.14"},
		{"2025-01-02 11:00:00", "'2025-01-02 11:00:00'"},
		{"O'Brien", "'O''Brien'"},
	}
	for _, tc := range tests {
		if got := quoteLiteral(tc.in); got != tc.want {
			t.Fatalf("quoteLiteral(%v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestBuildFullTableQuery(t *testing.T) {
	if got := buildFullTableQuery("orders"); got != `SELECT * FROM "orders"` {
		t.Fatalf("got %s", got)
	}
}

func TestBuildIncrementalQuery(t *testing.T) {
	tests := []struct {
		name  string
		start any
		want  string
	}{
		{"no prior state", nil, `SELECT * FROM "users" ORDER BY "updated_at" ASC`},
		{"string watermark", "2025-01-02 11:00:00", `SELECT * FROM "users" WHERE "updated_at" > '2025-01-02 11:00:00' ORDER BY "updated_at" ASC`},
		{"numeric watermark", int64(7), `SELECT * FROM "users" WHERE "updated_at" > 7 ORDER BY "updated_at" ASC`},
		{"float watermark", 1.5, `SELECT * FROM "users" WHERE "updated_at" > 1.5 ORDER BY "updated_at" ASC`},
	}
	for _, tc := range tests {
		if got := buildIncrementalQuery("users", "updated_at", tc.start); got != tc.want {
			t.Fatalf("%s:\n got %s\nwant %s", tc.name, got, tc.want)
		}
	}
}
