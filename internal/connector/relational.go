package connector

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Relational adapts a SQL database: each collection is a table read with
// LIMIT/OFFSET, ordered by rowid for a stable walk.
type Relational struct {
	id       string
	tenantID string
	system   string
	db       *sql.DB
	pag      Pagination
	colls    []Descriptor
}

// NewRelational opens the configured database and builds the adapter.
func NewRelational(cfg Config) (*Relational, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("connector %s: relational requires dsn", cfg.ID)
	}
	colls, err := descriptors(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connector %s: open source db: %w", cfg.ID, err)
	}
	return &Relational{
		id:       cfg.ID,
		tenantID: cfg.TenantID,
		system:   cfg.System,
		db:       db,
		pag:      cfg.Pagination,
		colls:    colls,
	}, nil
}

func (c *Relational) ID() string       { return c.id }
func (c *Relational) TenantID() string { return c.tenantID }
func (c *Relational) System() string   { return c.system }

// Close releases the source database handle.
func (c *Relational) Close() error { return c.db.Close() }

// Discover lists the configured tables.
func (c *Relational) Discover(context.Context) ([]Descriptor, error) {
	return c.colls, nil
}

// Fetch reads one page of the table. Table names come from config, never
// from input rows.
func (c *Relational) Fetch(ctx context.Context, d Descriptor, page PageRequest) (Page, error) {
	size := c.pag.pageSize()
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY rowid LIMIT ? OFFSET ?", d.Locator)

	rows, err := c.db.QueryContext(ctx, query, size, page.Offset)
	if err != nil {
		return Page{}, fmt.Errorf("fetch %s: %w", d.Locator, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Page{}, fmt.Errorf("fetch %s: columns: %w", d.Locator, err)
	}

	var result []RawRow
	for rows.Next() {
		values := make([]any, len(columns))
		scan := make([]any, len(columns))
		for i := range values {
			scan[i] = &values[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return Page{}, fmt.Errorf("fetch %s: scan: %w", d.Locator, err)
		}
		row := make(RawRow, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("fetch %s: %w", d.Locator, err)
	}

	return Page{Rows: result, HasMore: len(result) == size}, nil
}
