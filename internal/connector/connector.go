package connector

import (
	"context"
	"fmt"

	"github.com/roach88/strata/internal/canonical"
)

// Source kinds.
const (
	KindCRM        = "crm"
	KindDocument   = "document"
	KindRelational = "relational"
	KindFile       = "file"
	KindREST       = "rest"
)

// Pagination modes.
const (
	PageLimitOffset = "limit_offset"
	PageCursor      = "cursor"
)

// DefaultPageSize is the per-fetch row cap when config does not set one.
const DefaultPageSize = 100

// Pagination configures how an adapter walks a collection.
type Pagination struct {
	Mode     string `yaml:"mode"`
	PageSize int    `yaml:"page_size"`
}

func (p Pagination) pageSize() int {
	if p.PageSize > 0 {
		return p.PageSize
	}
	return DefaultPageSize
}

// Descriptor names one fetchable collection on a source: a table, a REST
// resource path, a document collection, or a file.
type Descriptor struct {
	// SourceTable is the mapping-scope table name rows are normalized under.
	SourceTable string
	// Entity is the canonical kind rows of this collection map to.
	Entity canonical.Kind
	// Locator is adapter-specific: URL path, SQL table, or file path.
	Locator string
	// System overrides the connector's source system for this collection.
	// Set by the file adapter, which derives the system from file names.
	System string
}

// RawRow is one source row as fetched, keyed by source field name.
type RawRow map[string]any

// PageRequest addresses one page of a collection.
type PageRequest struct {
	Offset int
	Cursor string
}

// Page is one fetched page of rows.
type Page struct {
	Rows       []RawRow
	NextCursor string
	HasMore    bool
}

// Connector is the shared adapter contract. Fetch returns one page;
// Drain walks the pages.
type Connector interface {
	ID() string
	TenantID() string
	System() string
	Discover(ctx context.Context) ([]Descriptor, error)
	Fetch(ctx context.Context, d Descriptor, page PageRequest) (Page, error)
}

// Drain fetches every page of a descriptor. Limit/offset sources report
// HasMore by returning full pages; cursor sources by a non-empty cursor.
// Rows fetched before an error are returned with it so the caller can
// still process them.
func Drain(ctx context.Context, c Connector, d Descriptor) ([]RawRow, error) {
	var rows []RawRow
	req := PageRequest{}
	for {
		page, err := c.Fetch(ctx, d, req)
		rows = append(rows, page.Rows...)
		if err != nil {
			return rows, fmt.Errorf("drain %s/%s: %w", c.ID(), d.SourceTable, err)
		}
		if !page.HasMore {
			return rows, nil
		}
		req.Offset += len(page.Rows)
		req.Cursor = page.NextCursor
	}
}
