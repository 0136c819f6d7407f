package connector

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// CRM adapts a CRM-style REST API: limit/offset pagination with the rows
// under a "records" envelope.
type CRM struct {
	id       string
	tenantID string
	system   string
	http     *httpClient
	pag      Pagination
	colls    []Descriptor
}

// NewCRM builds a CRM adapter from config.
func NewCRM(cfg Config) (*CRM, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("connector %s: crm requires base_url", cfg.ID)
	}
	client, err := newHTTPClient(cfg.BaseURL, cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("connector %s: %w", cfg.ID, err)
	}
	colls, err := descriptors(cfg)
	if err != nil {
		return nil, err
	}
	return &CRM{
		id:       cfg.ID,
		tenantID: cfg.TenantID,
		system:   cfg.System,
		http:     client,
		pag:      cfg.Pagination,
		colls:    colls,
	}, nil
}

func (c *CRM) ID() string       { return c.id }
func (c *CRM) TenantID() string { return c.tenantID }
func (c *CRM) System() string   { return c.system }

// Discover lists the configured collections.
func (c *CRM) Discover(context.Context) ([]Descriptor, error) {
	return c.colls, nil
}

// Fetch reads one page. A short page means the collection is exhausted.
func (c *CRM) Fetch(ctx context.Context, d Descriptor, page PageRequest) (Page, error) {
	size := c.pag.pageSize()
	query := url.Values{
		"limit":  {strconv.Itoa(size)},
		"offset": {strconv.Itoa(page.Offset)},
	}

	var body struct {
		Records []RawRow `json:"records"`
	}
	if err := c.http.getJSON(ctx, d.Locator, query, &body); err != nil {
		return Page{}, err
	}

	return Page{
		Rows:    body.Records,
		HasMore: len(body.Records) == size,
	}, nil
}
