package connector

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// REST adapts a generic JSON REST endpoint. The response envelope key and
// pagination mode come from config, which is what separates it from the
// opinionated CRM and document adapters.
type REST struct {
	id       string
	tenantID string
	system   string
	http     *httpClient
	pag      Pagination
	dataKey  string
	colls    []Descriptor
}

// NewREST builds a generic REST adapter from config.
func NewREST(cfg Config) (*REST, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("connector %s: rest requires base_url", cfg.ID)
	}
	client, err := newHTTPClient(cfg.BaseURL, cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("connector %s: %w", cfg.ID, err)
	}
	colls, err := descriptors(cfg)
	if err != nil {
		return nil, err
	}
	dataKey := cfg.DataKey
	if dataKey == "" {
		dataKey = "data"
	}
	return &REST{
		id:       cfg.ID,
		tenantID: cfg.TenantID,
		system:   cfg.System,
		http:     client,
		pag:      cfg.Pagination,
		dataKey:  dataKey,
		colls:    colls,
	}, nil
}

func (c *REST) ID() string       { return c.id }
func (c *REST) TenantID() string { return c.tenantID }
func (c *REST) System() string   { return c.system }

// Discover lists the configured collections.
func (c *REST) Discover(context.Context) ([]Descriptor, error) {
	return c.colls, nil
}

// Fetch reads one page in the configured pagination mode.
func (c *REST) Fetch(ctx context.Context, d Descriptor, page PageRequest) (Page, error) {
	size := c.pag.pageSize()
	query := url.Values{"limit": {strconv.Itoa(size)}}

	cursorMode := c.pag.Mode == PageCursor
	if cursorMode {
		if page.Cursor != "" {
			query.Set("cursor", page.Cursor)
		}
	} else {
		query.Set("offset", strconv.Itoa(page.Offset))
	}

	var body map[string]any
	if err := c.http.getJSON(ctx, d.Locator, query, &body); err != nil {
		return Page{}, err
	}

	raw, ok := body[c.dataKey].([]any)
	if !ok {
		return Page{}, fmt.Errorf("fetch %s: response has no %q array", d.Locator, c.dataKey)
	}
	rows := make([]RawRow, 0, len(raw))
	for _, item := range raw {
		row, ok := item.(map[string]any)
		if !ok {
			return Page{}, fmt.Errorf("fetch %s: non-object row in %q", d.Locator, c.dataKey)
		}
		rows = append(rows, row)
	}

	if cursorMode {
		next, _ := body["next_cursor"].(string)
		return Page{Rows: rows, NextCursor: next, HasMore: next != ""}, nil
	}
	return Page{Rows: rows, HasMore: len(rows) == size}, nil
}
