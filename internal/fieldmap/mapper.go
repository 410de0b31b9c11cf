package fieldmap

import (
	"strings"

	"github.com/sells-group/listing-recon/internal/model"
)

// Mapper extracts canonical attribute values from source-native candidates.
type Mapper struct {
	table *Table
}

// NewMapper creates a Mapper over the given table.
func NewMapper(t *Table) *Mapper {
	return &Mapper{table: t}
}

// Table returns the mapping table backing the mapper.
func (m *Mapper) Table() *Table {
	return m.table
}

// MapField returns the raw value a candidate from source holds for attr, or
// nil when the candidate is nil, the source or attribute is unmapped, or the
// field is absent or blank. No type coercion happens here.
func (m *Mapper) MapField(source string, c *model.Candidate, attr string) any {
	if c == nil || c.Fields == nil {
		return nil
	}
	native := m.table.Source(source).NativeField(attr)
	if native == "" {
		return nil
	}
	return lookup(c.Fields, native)
}

// Native returns the value at a native field name (or dotted path) of a
// candidate, applying the same absence rules as MapField.
func Native(c *model.Candidate, native string) any {
	if c == nil || c.Fields == nil || native == "" {
		return nil
	}
	return lookup(c.Fields, native)
}

// lookup resolves a field name, trying the literal key first and then a
// dotted path through nested objects.
func lookup(fields map[string]any, native string) any {
	if v, ok := fields[native]; ok {
		return present(v)
	}
	if !strings.Contains(native, ".") {
		return nil
	}

	var cur any = fields
	for _, part := range strings.Split(native, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = obj[part]
		if !ok {
			return nil
		}
	}
	return present(cur)
}

func present(v any) any {
	switch tv := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(tv) == "" {
			return nil
		}
	}
	return v
}
