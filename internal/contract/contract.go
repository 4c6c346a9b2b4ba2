// Package contract models the caller-supplied schema contract: a declarative
// tree of field name, description, and type kind that shapes extraction
// output. Contracts are resolved at runtime so extraction and correction
// calls can be scoped to arbitrary field subsets without per-schema code.
package contract

import (
	"fmt"
	"strings"
)

// Kind is the type kind of a contract field.
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
)

// Source declares where a field's value comes from during aggregation.
// Most fields come from LLM extraction; a contract may declare sinks for the
// raw OCR text and for figure descriptions.
type Source string

const (
	SourceExtraction   Source = "extraction"
	SourceOCRText      Source = "ocr_text"
	SourceDescriptions Source = "image_descriptions"
)

// Field is one node in the contract tree.
type Field struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Kind        Kind    `yaml:"kind" json:"kind"`
	Optional    bool    `yaml:"optional,omitempty" json:"optional,omitempty"`
	Source      Source  `yaml:"source,omitempty" json:"source,omitempty"`
	Items       *Field  `yaml:"items,omitempty" json:"items,omitempty"`   // array element
	Fields      []Field `yaml:"fields,omitempty" json:"fields,omitempty"` // object children
}

// Contract is a caller-supplied declarative description of the target output.
// Read-only for the duration of a run.
type Contract struct {
	Name   string  `yaml:"name" json:"name"`
	Fields []Field `yaml:"fields" json:"fields"`
}

// Validate checks structural soundness: known kinds, unique sibling names,
// object/array nodes carrying children, leaves not carrying any.
func (c *Contract) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("contract name is required")
	}
	if len(c.Fields) == 0 {
		return fmt.Errorf("contract %q has no fields", c.Name)
	}
	return validateFields(c.Fields, "")
}

func validateFields(fields []Field, prefix string) error {
	seen := make(map[string]struct{}, len(fields))
	for i := range fields {
		f := &fields[i]
		path := joinPath(prefix, f.Name)
		if f.Name == "" {
			return fmt.Errorf("field at %q has no name", prefix)
		}
		if strings.Contains(f.Name, ".") {
			return fmt.Errorf("field name %q must not contain dots", path)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field name %q", path)
		}
		seen[f.Name] = struct{}{}

		switch f.Kind {
		case KindString, KindInteger, KindNumber, KindBoolean:
			if len(f.Fields) > 0 || f.Items != nil {
				return fmt.Errorf("scalar field %q must not have children", path)
			}
		case KindObject:
			if len(f.Fields) == 0 {
				return fmt.Errorf("object field %q has no fields", path)
			}
			if err := validateFields(f.Fields, path); err != nil {
				return err
			}
		case KindArray:
			if f.Items == nil {
				return fmt.Errorf("array field %q has no items", path)
			}
			if f.Items.Kind == KindObject {
				if len(f.Items.Fields) == 0 {
					return fmt.Errorf("array field %q has object items with no fields", path)
				}
				if err := validateFields(f.Items.Fields, path); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("field %q has unknown kind %q", path, f.Kind)
		}
	}
	return nil
}

// Resolve walks a dot-path (e.g. "me.name") through the contract tree and
// returns the referenced field. Paths traverse object fields and the object
// items of array fields.
func (c *Contract) Resolve(path string) (*Field, error) {
	segments := strings.Split(path, ".")
	fields := c.Fields
	var found *Field
	for i, seg := range segments {
		found = nil
		for j := range fields {
			if fields[j].Name == seg {
				found = &fields[j]
				break
			}
		}
		if found == nil {
			return nil, fmt.Errorf("field path %q not in contract: %q not found", path, seg)
		}
		if i < len(segments)-1 {
			switch found.Kind {
			case KindObject:
				fields = found.Fields
			case KindArray:
				if found.Items == nil || found.Items.Kind != KindObject {
					return nil, fmt.Errorf("field path %q descends into non-object array %q", path, seg)
				}
				fields = found.Items.Fields
			default:
				return nil, fmt.Errorf("field path %q descends into scalar %q", path, seg)
			}
		}
	}
	return found, nil
}

// Restrict returns a copy of the contract narrowed to the given field paths.
// A path keeps its whole subtree; a nested path keeps only the chain of
// ancestors down to it. Declaration order is preserved.
func (c *Contract) Restrict(paths []string) (*Contract, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("restrict requires at least one field path")
	}

	trie := make(pathTrie)
	for _, p := range paths {
		if _, err := c.Resolve(p); err != nil {
			return nil, err
		}
		trie.insert(strings.Split(p, "."))
	}

	return &Contract{
		Name:   c.Name,
		Fields: restrictFields(c.Fields, trie),
	}, nil
}

type pathTrie map[string]pathTrie

func (t pathTrie) insert(segments []string) {
	if len(segments) == 0 {
		return
	}
	child, ok := t[segments[0]]
	if !ok {
		child = make(pathTrie)
		t[segments[0]] = child
	}
	// A shorter path subsumes longer ones below it: mark as full subtree.
	if len(segments) == 1 {
		t[segments[0]] = make(pathTrie)
		return
	}
	if len(child) == 0 && ok {
		return // already a full subtree
	}
	child.insert(segments[1:])
}

func restrictFields(fields []Field, trie pathTrie) []Field {
	var out []Field
	for _, f := range fields {
		sub, ok := trie[f.Name]
		if !ok {
			continue
		}
		if len(sub) == 0 {
			out = append(out, f) // whole subtree
			continue
		}
		narrowed := f
		switch f.Kind {
		case KindObject:
			narrowed.Fields = restrictFields(f.Fields, sub)
		case KindArray:
			items := *f.Items
			items.Fields = restrictFields(f.Items.Fields, sub)
			narrowed.Items = &items
		}
		out = append(out, narrowed)
	}
	return out
}

// Paths returns all dot-paths declared by the contract, depth-first in
// declaration order.
func (c *Contract) Paths() []string {
	var out []string
	var walk func(fields []Field, prefix string)
	walk = func(fields []Field, prefix string) {
		for _, f := range fields {
			path := joinPath(prefix, f.Name)
			out = append(out, path)
			switch f.Kind {
			case KindObject:
				walk(f.Fields, path)
			case KindArray:
				if f.Items != nil && f.Items.Kind == KindObject {
					walk(f.Items.Fields, path)
				}
			}
		}
	}
	walk(c.Fields, "")
	return out
}

// FieldsWithSource returns the top-level fields carrying the given source
// annotation.
func (c *Contract) FieldsWithSource(src Source) []Field {
	var out []Field
	for _, f := range c.Fields {
		if f.Source == src {
			out = append(out, f)
		}
	}
	return out
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
