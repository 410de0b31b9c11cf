package fieldmap

import "github.com/sells-group/listing-recon/internal/model"

// Default returns the built-in mapping table for the CRM feed and the three
// listing platforms.
func Default() *Table {
	return &Table{
		Currency: "EUR",
		Attributes: []Attribute{
			{Key: model.AttrPrice, Label: "Price", Type: model.FieldCurrency, Weight: 0.3},
			{Key: model.AttrBedrooms, Label: "Bedrooms", Type: model.FieldNumber, Weight: 0.2},
			{Key: model.AttrBathrooms, Label: "Bathrooms", Type: model.FieldNumber, Weight: 0.15},
			{Key: model.AttrPropertyType, Label: "Property Type", Type: model.FieldText, Weight: 0.1},
			{Key: model.AttrAddress, Label: "Address", Type: model.FieldText, Weight: 0.4},
			{Key: model.AttrCounty, Label: "County", Type: model.FieldText, Weight: 0.05},
			{Key: model.AttrBERRating, Label: "BER Rating", Type: model.FieldRating, Weight: 0.1},
		},
		Sources: []Source{
			{
				Name:    "crm",
				Label:   "CRM Feed",
				Primary: true,
			},
			{
				Name:         "daft",
				Label:        "Daft.ie",
				IDField:      "id",
				AddressField: "title",
				Fields: map[string]string{
					model.AttrPrice:        "price",
					model.AttrBedrooms:     "numBedrooms",
					model.AttrBathrooms:    "numBathrooms",
					model.AttrPropertyType: "propertyType",
					model.AttrAddress:      "title",
					model.AttrCounty:       "county",
					model.AttrBERRating:    "ber.rating",
				},
			},
			{
				Name:         "myhome",
				Label:        "MyHome.ie",
				IDField:      "PropertyId",
				AddressField: "DisplayAddress",
				Fields: map[string]string{
					model.AttrPrice:        "Price",
					model.AttrBedrooms:     "NumberOfBeds",
					model.AttrBathrooms:    "NumberOfBathrooms",
					model.AttrPropertyType: "PropertyType",
					model.AttrAddress:      "DisplayAddress",
					model.AttrCounty:       "Region",
					model.AttrBERRating:    "BerRating",
				},
			},
			{
				Name:         "propertypal",
				Label:        "PropertyPal",
				IDField:      "listingId",
				AddressField: "displayAddress",
				Fields: map[string]string{
					model.AttrPrice:        "price",
					model.AttrBedrooms:     "bedrooms",
					model.AttrBathrooms:    "bathrooms",
					model.AttrPropertyType: "style",
					model.AttrAddress:      "displayAddress",
					model.AttrCounty:       "county",
					model.AttrBERRating:    "energyRating",
				},
			},
		},
	}
}
