// Package schema compiles the four event schemas (decision/checkpoint x
// base/high-assurance) into a shared registry so the ha variants' $ref to
// their base counterpart resolves locally, then exposes a Validate that
// surfaces the first error ordered by JSON-pointer path.
package schema

import (
	"embed"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const (
	idDecisionBase   = "https://mdab.schemas.local/tel/decision_event.schema.json"
	idDecisionHA     = "https://mdab.schemas.local/tel/decision_event.ha.schema.json"
	idCheckpointBase = "https://mdab.schemas.local/tel/checkpoint_event.schema.json"
	idCheckpointHA   = "https://mdab.schemas.local/tel/checkpoint_event.ha.schema.json"
)

var schemaFiles = []struct {
	path string
	id   string
}{
	{"schemas/decision_event.schema.json", idDecisionBase},
	{"schemas/checkpoint_event.schema.json", idCheckpointBase},
	{"schemas/decision_event.ha.schema.json", idDecisionHA},
	{"schemas/checkpoint_event.ha.schema.json", idCheckpointHA},
}

// Registry holds the four compiled event schemas.
type Registry struct {
	decisionBase, decisionHA     *jsonschema.Schema
	checkpointBase, checkpointHA *jsonschema.Schema
}

// Load compiles the embedded schema set into a Registry. Cross-$ref
// resolution between a ha schema and its base counterpart works because
// all four documents are added as resources on the same compiler before
// any of them is compiled.
func Load() (*Registry, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	for _, sf := range schemaFiles {
		f, err := schemaFS.Open(sf.path)
		if err != nil {
			return nil, fmt.Errorf("schema: open %s: %w", sf.path, err)
		}
		defer f.Close()
		// jsonschema keys resources by the url passed to AddResource, not
		// by the document's $id, so register each resource under its $id
		// to let Compile and cross-document $ref resolution find it.
		if err := c.AddResource(sf.id, f); err != nil {
			return nil, fmt.Errorf("schema: load %s: %w", sf.path, err)
		}
	}

	compile := func(id string) (*jsonschema.Schema, error) {
		s, err := c.Compile(id)
		if err != nil {
			return nil, fmt.Errorf("schema: compile %s: %w", id, err)
		}
		return s, nil
	}

	var r Registry
	var err error
	if r.decisionBase, err = compile(idDecisionBase); err != nil {
		return nil, err
	}
	if r.checkpointBase, err = compile(idCheckpointBase); err != nil {
		return nil, err
	}
	if r.decisionHA, err = compile(idDecisionHA); err != nil {
		return nil, err
	}
	if r.checkpointHA, err = compile(idCheckpointHA); err != nil {
		return nil, err
	}
	return &r, nil
}

// Select returns the schema for the given profile and event_type, or nil
// if eventType is not one of DECISION/CHECKPOINT (the caller surfaces
// that as E_SCHEMA_INVALID — unknown event_type).
func (r *Registry) Select(profile, eventType string) *jsonschema.Schema {
	ha := profile == "ha"
	switch eventType {
	case "DECISION":
		if ha {
			return r.decisionHA
		}
		return r.decisionBase
	case "CHECKPOINT":
		if ha {
			return r.checkpointHA
		}
		return r.checkpointBase
	default:
		return nil
	}
}

// ValidationError carries the first schema violation, ordered by
// JSON-pointer instance path.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validate runs instance against s and returns the first error ordered by
// instance path, or nil if instance conforms.
func Validate(s *jsonschema.Schema, instance interface{}) *ValidationError {
	err := s.Validate(instance)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return &ValidationError{Message: err.Error()}
	}

	leaves := flattenLeaves(ve)
	if len(leaves) == 0 {
		return &ValidationError{Message: ve.Error()}
	}
	sort.Slice(leaves, func(i, j int) bool {
		return pathOf(leaves[i]) < pathOf(leaves[j])
	})
	first := leaves[0]
	return &ValidationError{Path: pathOf(first), Message: first.Message}
}

// flattenLeaves walks a jsonschema.ValidationError's Causes tree and
// returns every leaf node, the individual violations that Validate
// orders by instance path.
func flattenLeaves(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, c := range ve.Causes {
		out = append(out, flattenLeaves(c)...)
	}
	return out
}

func pathOf(e *jsonschema.ValidationError) string {
	if e.InstanceLocation == "" {
		return "/"
	}
	return e.InstanceLocation
}
