package connector

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/strata/internal/canonical"
)

// File adapts a directory of CSV exports. File names carry the routing:
// {entity}_{system}.csv, e.g. opportunity_pipedrive.csv. The header row
// names the source fields.
type File struct {
	id       string
	tenantID string
	system   string
	dir      string
}

// NewFile builds a flat-file adapter from config.
func NewFile(cfg Config) (*File, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("connector %s: file requires dir", cfg.ID)
	}
	return &File{
		id:       cfg.ID,
		tenantID: cfg.TenantID,
		system:   cfg.System,
		dir:      cfg.Dir,
	}, nil
}

func (c *File) ID() string       { return c.id }
func (c *File) TenantID() string { return c.tenantID }
func (c *File) System() string   { return c.system }

// Discover globs the directory for CSV files and derives each file's
// entity kind and source system from its name. Files that do not follow
// the naming convention are skipped with a warning.
func (c *File) Discover(context.Context) ([]Descriptor, error) {
	paths, err := filepath.Glob(filepath.Join(c.dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("connector %s: glob: %w", c.id, err)
	}

	var out []Descriptor
	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".csv")
		kind, system, ok := parseFileName(name)
		if !ok {
			slog.Warn("skipping file without {entity}_{system} name",
				"connector", c.id, "file", filepath.Base(path))
			continue
		}
		out = append(out, Descriptor{
			SourceTable: name,
			Entity:      kind,
			Locator:     path,
			System:      system,
		})
	}
	return out, nil
}

// parseFileName splits {entity}_{system}. Entity kinds themselves contain
// underscores, so match against the known kinds rather than splitting on
// the first one.
func parseFileName(name string) (canonical.Kind, string, bool) {
	for _, kind := range canonical.Kinds {
		prefix := string(kind) + "_"
		if strings.HasPrefix(name, prefix) && len(name) > len(prefix) {
			return kind, name[len(prefix):], true
		}
	}
	return "", "", false
}

// Fetch reads the whole file as a single page. CSV exports are bounded;
// there is nothing to paginate.
func (c *File) Fetch(_ context.Context, d Descriptor, page PageRequest) (Page, error) {
	if page.Offset > 0 {
		return Page{}, nil
	}

	f, err := os.Open(d.Locator)
	if err != nil {
		return Page{}, fmt.Errorf("fetch %s: %w", d.SourceTable, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return Page{}, fmt.Errorf("fetch %s: parse csv: %w", d.SourceTable, err)
	}
	if len(records) == 0 {
		return Page{}, nil
	}

	header := records[0]
	rows := make([]RawRow, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(RawRow, len(header))
		for i, field := range header {
			if i < len(record) {
				row[strings.TrimSpace(field)] = record[i]
			}
		}
		rows = append(rows, row)
	}

	return Page{Rows: rows}, nil
}
