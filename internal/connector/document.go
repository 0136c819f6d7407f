package connector

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Document adapts a document-store HTTP API: cursor pagination with the
// rows under a "documents" envelope. Nested documents are flattened one
// level with dotted keys so mappings address "address.city" style fields.
type Document struct {
	id       string
	tenantID string
	system   string
	http     *httpClient
	pag      Pagination
	colls    []Descriptor
}

// NewDocument builds a document-store adapter from config.
func NewDocument(cfg Config) (*Document, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("connector %s: document requires base_url", cfg.ID)
	}
	client, err := newHTTPClient(cfg.BaseURL, cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("connector %s: %w", cfg.ID, err)
	}
	colls, err := descriptors(cfg)
	if err != nil {
		return nil, err
	}
	return &Document{
		id:       cfg.ID,
		tenantID: cfg.TenantID,
		system:   cfg.System,
		http:     client,
		pag:      cfg.Pagination,
		colls:    colls,
	}, nil
}

func (c *Document) ID() string       { return c.id }
func (c *Document) TenantID() string { return c.tenantID }
func (c *Document) System() string   { return c.system }

// Discover lists the configured collections.
func (c *Document) Discover(context.Context) ([]Descriptor, error) {
	return c.colls, nil
}

// Fetch reads one page. An empty next cursor means the collection is
// exhausted.
func (c *Document) Fetch(ctx context.Context, d Descriptor, page PageRequest) (Page, error) {
	query := url.Values{
		"limit": {strconv.Itoa(c.pag.pageSize())},
	}
	if page.Cursor != "" {
		query.Set("cursor", page.Cursor)
	}

	var body struct {
		Documents  []RawRow `json:"documents"`
		NextCursor string   `json:"next_cursor"`
	}
	if err := c.http.getJSON(ctx, d.Locator, query, &body); err != nil {
		return Page{}, err
	}

	rows := make([]RawRow, len(body.Documents))
	for i, doc := range body.Documents {
		rows[i] = flattenRow(doc)
	}

	return Page{
		Rows:       rows,
		NextCursor: body.NextCursor,
		HasMore:    body.NextCursor != "",
	}, nil
}

// flattenRow lifts one level of nested objects into dotted keys. Deeper
// nesting stays as the nested value under its dotted prefix.
func flattenRow(row RawRow) RawRow {
	out := make(RawRow, len(row))
	for key, value := range row {
		nested, ok := value.(map[string]any)
		if !ok {
			out[key] = value
			continue
		}
		for nk, nv := range nested {
			out[key+"."+nk] = nv
		}
	}
	return out
}
