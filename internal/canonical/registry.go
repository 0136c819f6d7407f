package canonical

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	_ "embed"
)

//go:embed schema.cue
var schemaCUE string

// definitionPaths maps entity kinds to their CUE definitions.
var definitionPaths = map[Kind]string{
	KindAccount:       "#Account",
	KindOpportunity:   "#Opportunity",
	KindContact:       "#Contact",
	KindCloudResource: "#CloudResource",
	KindCostRecord:    "#CostRecord",
}

// ValidationError reports a payload that failed schema validation.
// Fields names the offending payload fields when CUE can attribute the
// failure to specific paths.
type ValidationError struct {
	Kind   Kind
	Fields []string
	Detail string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("invalid %s payload (fields: %s): %s",
			e.Kind, strings.Join(e.Fields, ", "), e.Detail)
	}
	return fmt.Sprintf("invalid %s payload: %s", e.Kind, e.Detail)
}

// Registry validates canonical payloads against the embedded CUE schema.
// Construct once and share; Validate is safe for concurrent use because
// cue.Value is immutable.
type Registry struct {
	ctx  *cue.Context
	defs map[Kind]cue.Value
}

// NewRegistry compiles the embedded schema and resolves every entity
// definition. Fails fast on a schema that does not compile - that is a
// build defect, not a runtime condition.
func NewRegistry() (*Registry, error) {
	ctx := cuecontext.New()

	root := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile canonical schema: %w", err)
	}

	defs := make(map[Kind]cue.Value, len(definitionPaths))
	for kind, path := range definitionPaths {
		def := root.LookupPath(cue.ParsePath(path))
		if !def.Exists() {
			return nil, fmt.Errorf("canonical schema: missing definition %s", path)
		}
		defs[kind] = def
	}

	return &Registry{ctx: ctx, defs: defs}, nil
}

// Validate checks a payload against the declared shape for kind.
// Returns *ValidationError naming the offending fields on failure. The
// caller must not ingest any part of a payload that fails here.
func (r *Registry) Validate(kind Kind, payload map[string]any) error {
	def, ok := r.defs[kind]
	if !ok {
		return &ValidationError{Kind: kind, Detail: "unknown entity kind"}
	}

	data := r.ctx.Encode(payload)
	if err := data.Err(); err != nil {
		return &ValidationError{Kind: kind, Detail: fmt.Sprintf("encode payload: %v", err)}
	}

	merged := def.Unify(data)
	if err := merged.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{
			Kind:   kind,
			Fields: errorFields(err),
			Detail: cueerrors.Details(err, nil),
		}
	}

	return nil
}

// errorFields extracts the distinct leaf field names from a CUE error list.
func errorFields(err error) []string {
	seen := make(map[string]bool)
	var fields []string
	for _, e := range cueerrors.Errors(err) {
		path := e.Path()
		if len(path) == 0 {
			continue
		}
		field := path[len(path)-1]
		if field == "" || seen[field] {
			continue
		}
		seen[field] = true
		fields = append(fields, field)
	}
	return fields
}
