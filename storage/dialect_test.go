package storage

import (
	"strings"
	"testing"
)

func TestConvertPlaceholders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"SELECT * FROM sales WHERE id = ?", "SELECT * FROM sales WHERE id = $1"},
		{"INSERT INTO t (a, b, c) VALUES (?, ?, ?)", "INSERT INTO t (a, b, c) VALUES ($1, $2, $3)"},
	}
	for _, tt := range tests {
		if got := ConvertPlaceholders(tt.in); got != tt.want {
			t.Errorf("ConvertPlaceholders(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDialects(t *testing.T) {
	t.Parallel()

	sqlite := &SQLiteDialect{}
	pg := &PostgresDialect{}

	if sqlite.Placeholder(3) != "?" || pg.Placeholder(3) != "$3" {
		t.Error("unexpected placeholders")
	}
	if sqlite.TimestampType() != "DATETIME" || pg.TimestampType() != "TIMESTAMPTZ" {
		t.Error("unexpected timestamp types")
	}
	if pg.AutoIncrement(true) != "BIGSERIAL PRIMARY KEY" || !strings.Contains(sqlite.AutoIncrement(true), "AUTOINCREMENT") {
		t.Error("unexpected auto increment types")
	}

	limits := []struct {
		limit, offset int
		want          string
	}{
		{0, 0, ""},
		{10, 0, "LIMIT 10"},
		{10, 20, "LIMIT 10 OFFSET 20"},
		{0, 5, "OFFSET 5"},
	}
	for _, l := range limits {
		if got := pg.LimitOffset(l.limit, l.offset); got != l.want {
			t.Errorf("LimitOffset(%d, %d) = %q, want %q", l.limit, l.offset, got, l.want)
		}
	}
}

func TestSchemaStatementsRenderPerDialect(t *testing.T) {
	t.Parallel()

	for _, stmt := range schemaStatements(&PostgresDialect{}) {
		if strings.Contains(stmt, "AUTOINCREMENT") || strings.Contains(stmt, "DATETIME") {
			t.Errorf("sqlite syntax in postgres schema: %s", stmt)
		}
	}
	for _, stmt := range schemaStatements(&SQLiteDialect{}) {
		if strings.Contains(stmt, "TIMESTAMPTZ") || strings.Contains(stmt, "SERIAL") {
			t.Errorf("postgres syntax in sqlite schema: %s", stmt)
		}
	}
}
