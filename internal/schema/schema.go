// Package schema introspects table schemas over gorm. Introspection queries
// the database catalog, so results are meant to sit behind a fetchcache.Cache.
package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/rshade/fetchcache/internal/fetcher"
	"github.com/rshade/fetchcache/internal/keys"
)

// ErrNoTable is returned for a table that does not exist.
var ErrNoTable = errors.New("schema: table does not exist")

// ErrMissingTable is returned when params carry no "table" string.
var ErrMissingTable = errors.New(`schema params must include a "table" string`)

// Column describes one table column.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primaryKey"`
}

// Table is the introspected schema of one table.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Column returns the column called name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// Params returns the fetch params for table.
func Params(table string) keys.Params {
	return keys.Params{"table": table}
}

// Fetcher returns a fetcher describing params["table"] in db.
func Fetcher(db *gorm.DB) fetcher.Fetcher[Table] {
	return fetcher.Func[Table](func(ctx context.Context, params keys.Params) (Table, error) {
		name, ok := params["table"].(string)
		if !ok || name == "" {
			return Table{}, fetcher.NewError(params, ErrMissingTable)
		}
		t, err := Describe(ctx, db, name)
		if err != nil {
			return Table{}, fetcher.NewError(params, err)
		}
		return t, nil
	})
}

// Describe reads the schema of table directly, without caching.
func Describe(ctx context.Context, db *gorm.DB, table string) (Table, error) {
	m := db.WithContext(ctx).Migrator()
	if !m.HasTable(table) {
		return Table{}, fmt.Errorf("%w: %s", ErrNoTable, table)
	}

	types, err := m.ColumnTypes(table)
	if err != nil {
		return Table{}, fmt.Errorf("reading columns of %s: %w", table, err)
	}

	t := Table{Name: table, Columns: make([]Column, 0, len(types))}
	for _, ct := range types {
		col := Column{
			Name: ct.Name(),
			Type: strings.ToLower(ct.DatabaseTypeName()),
		}
		if nullable, ok := ct.Nullable(); ok {
			col.Nullable = nullable
		}
		if pk, ok := ct.PrimaryKey(); ok {
			col.PrimaryKey = pk
		}
		t.Columns = append(t.Columns, col)
	}
	return t, nil
}

// AllParams returns fetch params for every table in db, for warming a cache.
func AllParams(ctx context.Context, db *gorm.DB) ([]keys.Params, error) {
	tables, err := db.WithContext(ctx).Migrator().GetTables()
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	out := make([]keys.Params, 0, len(tables))
	for _, name := range tables {
		out = append(out, Params(name))
	}
	return out, nil
}
