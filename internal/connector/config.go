package connector

import (
	"fmt"

	"github.com/roach88/strata/internal/canonical"
)

// Collection configures one fetchable collection on a source.
type Collection struct {
	SourceTable string `yaml:"source_table"`
	Entity      string `yaml:"entity"`
	Locator     string `yaml:"locator"`
}

// Config declares one connector instance. Kind selects the adapter; the
// remaining fields apply per kind (BaseURL/Auth for HTTP sources, DSN for
// relational, Dir for files).
type Config struct {
	ID          string       `yaml:"id"`
	Kind        string       `yaml:"kind"`
	TenantID    string       `yaml:"tenant_id"`
	System      string       `yaml:"system"`
	BaseURL     string       `yaml:"base_url"`
	Auth        AuthConfig   `yaml:"auth"`
	Pagination  Pagination   `yaml:"pagination"`
	Collections []Collection `yaml:"collections"`
	// DataKey is the response field generic REST payload rows live under.
	DataKey string `yaml:"data_key"`
	// DSN is the relational source's database connection string.
	DSN string `yaml:"dsn"`
	// Dir is the flat-file source's directory.
	Dir string `yaml:"dir"`
}

// New builds the adapter for a config.
func New(cfg Config) (Connector, error) {
	if cfg.ID == "" || cfg.TenantID == "" || cfg.System == "" {
		return nil, fmt.Errorf("connector config: id, tenant_id and system are required")
	}
	switch cfg.Kind {
	case KindCRM:
		return NewCRM(cfg)
	case KindDocument:
		return NewDocument(cfg)
	case KindRelational:
		return NewRelational(cfg)
	case KindFile:
		return NewFile(cfg)
	case KindREST:
		return NewREST(cfg)
	default:
		return nil, fmt.Errorf("connector config: unknown kind %q", cfg.Kind)
	}
}

// descriptors resolves the configured collections, validating entity tags.
func descriptors(cfg Config) ([]Descriptor, error) {
	out := make([]Descriptor, 0, len(cfg.Collections))
	for _, c := range cfg.Collections {
		kind, err := canonical.ParseKind(c.Entity)
		if err != nil {
			return nil, fmt.Errorf("connector %s: collection %s: %w", cfg.ID, c.SourceTable, err)
		}
		locator := c.Locator
		if locator == "" {
			locator = c.SourceTable
		}
		out = append(out, Descriptor{
			SourceTable: c.SourceTable,
			Entity:      kind,
			Locator:     locator,
		})
	}
	return out, nil
}
