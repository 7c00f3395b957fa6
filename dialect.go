package zorm

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between supported databases.
type Dialect struct {
	DriverName string
	// SQLDriver is the database/sql driver name used by Open.
	SQLDriver string

	PlaceholderChar           string
	IncludeIndexInPlaceholder bool

	// HavingCanReferenceAlias is false when HAVING must repeat the aggregate
	// expression instead of its select alias.
	HavingCanReferenceAlias bool

	// IdentifierQuote wraps table, alias and column names.
	IdentifierQuote string

	QueryListTables  string
	QueryColumnNames string
}

// Rebind rewrites `?` placeholders into the dialect's style. Placeholders
// inside single-quoted literals are left untouched. A nil dialect keeps `?`.
func (d *Dialect) Rebind(query string) string {
	if d == nil || !d.IncludeIndexInPlaceholder {
		return query
	}
	return rebind(d.PlaceholderChar, query)
}

// Quote wraps ident in the dialect's identifier quote, doubling any quote it
// contains. "*" and a nil dialect are returned unchanged.
func (d *Dialect) Quote(ident string) string {
	if d == nil || d.IdentifierQuote == "" || ident == "*" {
		return ident
	}
	q := d.IdentifierQuote
	return q + strings.ReplaceAll(ident, q, q+q) + q
}

// QuoteColumn renders table.column with both parts quoted.
func (d *Dialect) QuoteColumn(table, column string) string {
	if table == "" {
		return d.Quote(column)
	}
	return d.Quote(table) + "." + d.Quote(column)
}

func rebind(placeholder, query string) string {
	var (
		sb      strings.Builder
		n       int
		inQuote bool
	)
	sb.Grow(len(query) + 8)

	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			inQuote = !inQuote
			sb.WriteByte(ch)
		case ch == '?' && !inQuote:
			n++
			sb.WriteString(placeholder)
			sb.WriteString(strconv.Itoa(n))
		default:
			sb.WriteByte(ch)
		}
	}

	return sb.String()
}

// listTables returns every table visible to db.
func (d *Dialect) listTables(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, d.QueryListTables)
	if err != nil {
		return nil, WrapQueryError("list tables", d.QueryListTables, nil, err)
	}
	defer rows.Close()

	tables := make(map[string]bool)
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return nil, err
		}
		tables[table] = true
	}

	return tables, rows.Err()
}

// columnNames returns the columns of table.
func (d *Dialect) columnNames(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, d.QueryColumnNames, table)
	if err != nil {
		return nil, WrapQueryError("list columns", d.QueryColumnNames, []any{table}, err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var column string
		if err := rows.Scan(&column); err != nil {
			return nil, err
		}
		columns[column] = true
	}

	return columns, rows.Err()
}

var Dialects = &struct {
	MySQL      *Dialect
	PostgreSQL *Dialect
	SQLite3    *Dialect
}{
	MySQL: &Dialect{
		DriverName:              "mysql",
		SQLDriver:               "mysql",
		PlaceholderChar:         "?",
		HavingCanReferenceAlias: true,
		IdentifierQuote:         "`",
		QueryListTables:         "SHOW TABLES",
		QueryColumnNames:        "SELECT column_name FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = ?",
	},

	PostgreSQL: &Dialect{
		DriverName:                "postgres",
		SQLDriver:                 "pgx",
		PlaceholderChar:           "$",
		IncludeIndexInPlaceholder: true,
		IdentifierQuote:           `"`,
		QueryListTables:           "SELECT tablename FROM pg_tables WHERE schemaname = 'public'",
		QueryColumnNames:          "SELECT column_name FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1",
	},

	SQLite3: &Dialect{
		DriverName:              "sqlite3",
		SQLDriver:               "sqlite3",
		PlaceholderChar:         "?",
		HavingCanReferenceAlias: true,
		IdentifierQuote:         `"`,
		QueryListTables:         "SELECT name FROM sqlite_schema WHERE type='table'",
		QueryColumnNames:        "SELECT name FROM pragma_table_info(?)",
	},
}

// DialectFor returns the dialect registered under a driver name. "pgx" and
// "postgresql" are accepted for PostgreSQL, "sqlite" for SQLite3.
func DialectFor(driver string) (*Dialect, error) {
	switch strings.ToLower(driver) {
	case "mysql":
		return Dialects.MySQL, nil
	case "postgres", "postgresql", "pgx":
		return Dialects.PostgreSQL, nil
	case "sqlite3", "sqlite":
		return Dialects.SQLite3, nil
	}
	return nil, fmt.Errorf("%w: unsupported driver %q", ErrInvalidConfig, driver)
}
