// Package queryfile parses declarative query documents (YAML or CUE) and
// compiles them into executable query plans. Documents name a source (a CSV
// file or a SQLite table), a selection shape, row constraints, and a step
// pipeline built from a registry of named operations - documents cannot carry
// Go closures, so every map/filter step refers to a registered op.
package queryfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is a parsed query file, not yet bound to a source.
type Document struct {
	Source SourceSpec  `yaml:"source"`
	Select SelectSpec  `yaml:"select"`
	Where  []WhereSpec `yaml:"where"`
	Steps  []StepSpec  `yaml:"steps"`
}

// SourceSpec names where the rows come from. Exactly one of CSV or SQLite
// must be set.
type SourceSpec struct {
	CSV    string      `yaml:"csv"`
	SQLite *SQLiteSpec `yaml:"sqlite"`
}

// SQLiteSpec points at a table in a SQLite database file.
type SQLiteSpec struct {
	Path  string `yaml:"path"`
	Table string `yaml:"table"`
}

// SelectSpec mirrors the selection descriptor shapes. Exactly one of List,
// Set, or Group must be set.
type SelectSpec struct {
	List  *FieldsSpec `yaml:"list"`
	Set   *FieldsSpec `yaml:"set"`
	Group *GroupSpec  `yaml:"group"`
}

// GroupSpec groups by one or more key fields, with a nested selection for
// the values under each key.
type GroupSpec struct {
	By   FieldsSpec  `yaml:"by"`
	Over *SelectSpec `yaml:"over"`
}

// FieldsSpec decodes either a single field name or a list of names.
type FieldsSpec struct {
	Names []string
}

func (f *FieldsSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var name string
		if err := node.Decode(&name); err != nil {
			return err
		}
		f.Names = []string{name}
		return nil
	case yaml.SequenceNode:
		return node.Decode(&f.Names)
	default:
		return fmt.Errorf("line %d: field selection must be a name or a list of names", node.Line)
	}
}

// WhereSpec is one row constraint: a field plus one or more allowed values.
type WhereSpec struct {
	Field  string     `yaml:"field"`
	Values ValuesSpec `yaml:"values"`
}

// ValuesSpec decodes either a single scalar or a list of scalars.
type ValuesSpec struct {
	Values []any
}

func (v *ValuesSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var raw any
		if err := node.Decode(&raw); err != nil {
			return err
		}
		v.Values = []any{raw}
		return nil
	case yaml.SequenceNode:
		return node.Decode(&v.Values)
	default:
		return fmt.Errorf("line %d: constraint values must be a scalar or a list of scalars", node.Line)
	}
}

// StepSpec is one pipeline step: a bare verb (`sum`, `distinct`, ...) or a
// single-key mapping binding a verb to a named op (`map: upper`).
type StepSpec struct {
	Name string
	Op   string
}

func (s *StepSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&s.Name)
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: step mapping must have exactly one key", node.Line)
		}
		if err := node.Content[0].Decode(&s.Name); err != nil {
			return err
		}
		return node.Content[1].Decode(&s.Op)
	default:
		return fmt.Errorf("line %d: step must be a verb or a single-key mapping", node.Line)
	}
}

// ParseYAML parses and validates a YAML query document.
func ParseYAML(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse query document: %w", err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Load parses a query document from a file, dispatching on extension:
// .yaml/.yml for YAML, .cue for CUE.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read query document: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".cue":
		return ParseCUE(data)
	default:
		return nil, fmt.Errorf("unsupported query document extension %q (want .yaml, .yml, or .cue)", filepath.Ext(path))
	}
}

func (d *Document) validate() error {
	if d.Source.CSV == "" && d.Source.SQLite == nil {
		return fmt.Errorf("document source: one of csv or sqlite is required")
	}
	if d.Source.CSV != "" && d.Source.SQLite != nil {
		return fmt.Errorf("document source: csv and sqlite are mutually exclusive")
	}
	if d.Source.SQLite != nil {
		if d.Source.SQLite.Path == "" || d.Source.SQLite.Table == "" {
			return fmt.Errorf("document source: sqlite needs both path and table")
		}
	}
	if err := validateSelect(&d.Select); err != nil {
		return err
	}
	for i, w := range d.Where {
		if w.Field == "" {
			return fmt.Errorf("where[%d]: field is required", i)
		}
		if len(w.Values.Values) == 0 {
			return fmt.Errorf("where[%d]: at least one value is required", i)
		}
	}
	for i, s := range d.Steps {
		if err := validateStep(s); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	return nil
}

func validateSelect(sel *SelectSpec) error {
	set := 0
	if sel.List != nil {
		set++
	}
	if sel.Set != nil {
		set++
	}
	if sel.Group != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("select: exactly one of list, set, or group is required")
	}
	if sel.List != nil && len(sel.List.Names) == 0 {
		return fmt.Errorf("select: list needs at least one field")
	}
	if sel.Set != nil && len(sel.Set.Names) == 0 {
		return fmt.Errorf("select: set needs at least one field")
	}
	if sel.Group != nil {
		if len(sel.Group.By.Names) == 0 {
			return fmt.Errorf("select: group needs at least one key field")
		}
		if sel.Group.Over == nil {
			return fmt.Errorf("select: group needs an over selection")
		}
		if err := validateSelect(sel.Group.Over); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(s StepSpec) error {
	switch s.Name {
	case "map":
		if _, ok := mapOps[s.Op]; !ok {
			return fmt.Errorf("unknown map op %q (have %s)", s.Op, strings.Join(opNames(mapOps), ", "))
		}
	case "filter":
		if _, ok := filterOps[s.Op]; !ok {
			return fmt.Errorf("unknown filter op %q (have %s)", s.Op, strings.Join(opNames(filterOps), ", "))
		}
	case "sum", "count", "avg", "min", "max", "distinct":
		if s.Op != "" {
			return fmt.Errorf("step %q takes no argument", s.Name)
		}
	case "":
		return fmt.Errorf("step verb is required")
	default:
		return fmt.Errorf("unknown step verb %q", s.Name)
	}
	return nil
}
