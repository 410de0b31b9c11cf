// Package fieldmap holds the canonical field mapping table and the field
// mapper that reads canonical attributes out of source-native candidates.
package fieldmap

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/listing-recon/internal/model"
)

// Attribute describes one canonical attribute.
type Attribute struct {
	Key    string          `yaml:"key" json:"key"`
	Label  string          `yaml:"label" json:"label"`
	Type   model.FieldType `yaml:"type" json:"type"`
	Weight float64         `yaml:"weight" json:"weight"` // importance 0-1
}

// Source is one configured source and its native field names.
type Source struct {
	Name         string            `yaml:"name" json:"name"`
	Label        string            `yaml:"label" json:"label"`
	Primary      bool              `yaml:"primary" json:"primary"`
	IDField      string            `yaml:"id_field" json:"id_field,omitempty"`
	AddressField string            `yaml:"address_field" json:"address_field,omitempty"`
	Fields       map[string]string `yaml:"fields" json:"fields,omitempty"` // canonical -> native
}

// Table is the static canonical field mapping table.
type Table struct {
	Currency   string      `yaml:"currency" json:"currency"`
	Attributes []Attribute `yaml:"attributes" json:"attributes"`
	Sources    []Source    `yaml:"sources" json:"sources"`
}

// LoadTable reads a mapping table from a YAML file with a top-level
// "fieldmap" key.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fieldmap: read table %s", path)
	}

	var wrapper struct {
		Fieldmap Table `yaml:"fieldmap"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "fieldmap: parse table")
	}

	t := &wrapper.Fieldmap
	if t.Currency == "" {
		t.Currency = "EUR"
	}
	for i := range t.Sources {
		if t.Sources[i].Label == "" {
			t.Sources[i].Label = t.Sources[i].Name
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the contract the comparison engine relies on: every
// attribute is a known canonical attribute with a valid type and weight,
// exactly one source is primary, and source fields only name declared
// attributes.
func (t *Table) Validate() error {
	if len(t.Attributes) == 0 {
		return eris.New("fieldmap: no attributes declared")
	}
	seen := make(map[string]bool, len(t.Attributes))
	for _, a := range t.Attributes {
		if !model.IsCanonicalAttribute(a.Key) {
			return eris.Errorf("fieldmap: unknown canonical attribute %q", a.Key)
		}
		if seen[a.Key] {
			return eris.Errorf("fieldmap: duplicate attribute %q", a.Key)
		}
		seen[a.Key] = true
		if !a.Type.Valid() {
			return eris.Errorf("fieldmap: attribute %q has invalid type %q", a.Key, a.Type)
		}
		if a.Weight < 0 || a.Weight > 1 {
			return eris.Errorf("fieldmap: attribute %q weight %.2f outside 0-1", a.Key, a.Weight)
		}
	}

	primaries := 0
	names := make(map[string]bool, len(t.Sources))
	for _, s := range t.Sources {
		if s.Name == "" {
			return eris.New("fieldmap: source without name")
		}
		if names[s.Name] {
			return eris.Errorf("fieldmap: duplicate source %q", s.Name)
		}
		names[s.Name] = true
		if s.Primary {
			primaries++
		}
		for attr := range s.Fields {
			if !seen[attr] {
				return eris.Errorf("fieldmap: source %q maps undeclared attribute %q", s.Name, attr)
			}
		}
	}
	if primaries != 1 {
		return eris.Errorf("fieldmap: expected exactly one primary source, got %d", primaries)
	}
	return nil
}

// Attribute returns the attribute with key, or nil.
func (t *Table) Attribute(key string) *Attribute {
	for i := range t.Attributes {
		if t.Attributes[i].Key == key {
			return &t.Attributes[i]
		}
	}
	return nil
}

// Source returns the source with name, or nil.
func (t *Table) Source(name string) *Source {
	for i := range t.Sources {
		if t.Sources[i].Name == name {
			return &t.Sources[i]
		}
	}
	return nil
}

// Primary returns the primary (anchor) source.
func (t *Table) Primary() *Source {
	for i := range t.Sources {
		if t.Sources[i].Primary {
			return &t.Sources[i]
		}
	}
	return nil
}

// SourceNames returns all source names in table order.
func (t *Table) SourceNames() []string {
	names := make([]string, len(t.Sources))
	for i, s := range t.Sources {
		names[i] = s.Name
	}
	return names
}

// NativeField returns the native field name a source uses for attr.
func (s *Source) NativeField(attr string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(s.Fields[attr])
}
