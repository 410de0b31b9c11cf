package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProperty_Attribute(t *testing.T) {
	updated := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := Property{
		Price:        350000,
		Bedrooms:     Int(3),
		PropertyType: "Semi-Detached",
		Address:      "  12 Main Street ",
		County:       "Dublin",
		BERRating:    "B2",
		UpdatedAt:    updated,
	}

	tests := []struct {
		key  string
		want any
	}{
		{AttrPrice, 350000.0},
		{AttrBedrooms, 3},
		{AttrBathrooms, nil},
		{AttrPropertyType, "Semi-Detached"},
		{AttrAddress, "12 Main Street"},
		{AttrCounty, "Dublin"},
		{AttrBERRating, "B2"},
		{AttrCity, nil},
		{AttrPostcode, nil},
		{AttrStatus, nil},
		{AttrUpdatedAt, updated},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := p.Attribute(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProperty_AttributeUnknown(t *testing.T) {
	_, err := Property{}.Attribute("garden_size")
	assert.Error(t, err)
	assert.False(t, IsCanonicalAttribute("garden_size"))
	assert.True(t, IsCanonicalAttribute(AttrBERRating))
}

func TestProperty_RoomCounts(t *testing.T) {
	studio := Property{Bedrooms: Int(0), Bathrooms: Int(1)}

	v, err := studio.Attribute(AttrBedrooms)
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	v, err = studio.Attribute(AttrBathrooms)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = Property{}.Attribute(AttrBedrooms)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestProperty_ZeroUpdatedAtIsAbsent(t *testing.T) {
	v, err := Property{}.Attribute(AttrUpdatedAt)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestProperty_FullAddress(t *testing.T) {
	tests := []struct {
		name string
		p    Property
		want string
	}{
		{"address only", Property{Address: "12 Main Street"}, "12 Main Street"},
		{"adds city and county", Property{Address: "12 Main Street", City: "Swords", County: "Dublin"}, "12 Main Street, Swords, Dublin"},
		{"skips parts already present", Property{Address: "4 Harbour Road, Cobh, Co. Cork", City: "Cobh", County: "cork"}, "4 Harbour Road, Cobh, Co. Cork"},
		{"blank extras", Property{Address: "1 Quay St", City: " "}, "1 Quay St"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.FullAddress())
		})
	}
}

func TestPropertyComparison_Lookups(t *testing.T) {
	pc := &PropertyComparison{
		Fields:  []ComparisonField{{Key: AttrPrice}, {Key: AttrBedrooms}},
		Sources: []SourceInfo{{Name: "crm"}, {Name: "daft"}},
	}

	require.NotNil(t, pc.Field(AttrBedrooms))
	pc.Field(AttrBedrooms).ConfidenceScore = 50
	assert.Equal(t, 50, pc.Fields[1].ConfidenceScore)
	assert.Nil(t, pc.Field(AttrCounty))

	require.NotNil(t, pc.Source("daft"))
	assert.Nil(t, pc.Source("myhome"))
}

func TestFieldType_Valid(t *testing.T) {
	for _, ft := range []FieldType{FieldText, FieldNumber, FieldCurrency, FieldDate, FieldRating} {
		assert.True(t, ft.Valid(), ft)
	}
	assert.False(t, FieldType("boolean").Valid())
}
