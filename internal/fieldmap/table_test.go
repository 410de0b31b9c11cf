package fieldmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/listing-recon/internal/model"
)

func TestDefault_Validates(t *testing.T) {
	tbl := Default()
	require.NoError(t, tbl.Validate())
	assert.Equal(t, "crm", tbl.Primary().Name)
	assert.Equal(t, []string{"crm", "daft", "myhome", "propertypal"}, tbl.SourceNames())
	assert.InDelta(t, 0.3, tbl.Attribute(model.AttrPrice).Weight, 0.001)
	assert.Nil(t, tbl.Attribute("square_feet"))
}

func TestLoadTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fieldmap.yaml")
	yaml := `
fieldmap:
  attributes:
    - key: price
      label: Price
      type: currency
      weight: 0.4
    - key: bedrooms
      label: Bedrooms
      type: number
      weight: 0.2
  sources:
    - name: crm
      primary: true
    - name: acme
      label: Acme Listings
      id_field: ref
      fields:
        price: asking_price
        bedrooms: beds
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	tbl, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, "EUR", tbl.Currency)
	assert.Equal(t, "crm", tbl.Source("crm").Label)
	assert.Equal(t, "asking_price", tbl.Source("acme").NativeField(model.AttrPrice))
	assert.Len(t, tbl.Attributes, 2)
}

func TestLoadTable_MissingFile(t *testing.T) {
	_, err := LoadTable(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fieldmap: read table")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Table)
		wantErr string
	}{
		{
			name:    "unknown attribute",
			mutate:  func(tb *Table) { tb.Attributes = append(tb.Attributes, Attribute{Key: "pool", Type: model.FieldText}) },
			wantErr: "unknown canonical attribute",
		},
		{
			name:    "bad type",
			mutate:  func(tb *Table) { tb.Attributes[0].Type = "money" },
			wantErr: "invalid type",
		},
		{
			name:    "weight out of range",
			mutate:  func(tb *Table) { tb.Attributes[0].Weight = 1.5 },
			wantErr: "outside 0-1",
		},
		{
			name:    "two primaries",
			mutate:  func(tb *Table) { tb.Sources[1].Primary = true },
			wantErr: "exactly one primary",
		},
		{
			name:    "undeclared attribute in source",
			mutate:  func(tb *Table) { tb.Sources[1].Fields[model.AttrCity] = "town" },
			wantErr: "undeclared attribute",
		},
		{
			name:    "duplicate source",
			mutate:  func(tb *Table) { tb.Sources = append(tb.Sources, Source{Name: "daft"}) },
			wantErr: "duplicate source",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := Default()
			tt.mutate(tbl)
			err := tbl.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
