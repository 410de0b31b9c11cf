package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Canonical attribute keys shared by every source mapping.
const (
	AttrPrice        = "price"
	AttrBedrooms     = "bedrooms"
	AttrBathrooms    = "bathrooms"
	AttrPropertyType = "property_type"
	AttrAddress      = "address"
	AttrCounty       = "county"
	AttrBERRating    = "ber_rating"
	AttrCity         = "city"
	AttrPostcode     = "postcode"
	AttrStatus       = "status"
	AttrUpdatedAt    = "updated_at"
)

// CanonicalAttributes lists every key Property.Attribute accepts.
var CanonicalAttributes = []string{
	AttrPrice, AttrBedrooms, AttrBathrooms, AttrPropertyType, AttrAddress,
	AttrCounty, AttrBERRating, AttrCity, AttrPostcode, AttrStatus, AttrUpdatedAt,
}

// Agency is an estate agency as published in the CRM feed.
type Agency struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Website   string    `json:"website,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Property is the reference listing owned by the primary CRM source.
type Property struct {
	ID           string            `json:"id"`
	AgencyID     string            `json:"agency_id,omitempty"`
	Price        float64           `json:"price"`
	Bedrooms     *int              `json:"bedrooms,omitempty"`
	Bathrooms    *int              `json:"bathrooms,omitempty"`
	PropertyType string            `json:"property_type,omitempty"`
	Address      string            `json:"address"`
	City         string            `json:"city,omitempty"`
	County       string            `json:"county,omitempty"`
	Postcode     string            `json:"postcode,omitempty"`
	BERRating    string            `json:"ber_rating,omitempty"`
	Description  string            `json:"description,omitempty"`
	Images       []string          `json:"images,omitempty"`
	AgentName    string            `json:"agent_name,omitempty"`
	AgentEmail   string            `json:"agent_email,omitempty"`
	AgentPhone   string            `json:"agent_phone,omitempty"`
	Status       string            `json:"status,omitempty"`
	ExternalIDs  map[string]string `json:"external_ids,omitempty"` // source name -> listing id on that source
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Attribute returns the reference value for a canonical attribute. Empty
// strings, a zero price and unset room counts are reported as nil so they
// count as absent data. A room count of 0 is a value.
func (p Property) Attribute(key string) (any, error) {
	switch key {
	case AttrPrice:
		return nonZeroFloat(p.Price), nil
	case AttrBedrooms:
		return count(p.Bedrooms), nil
	case AttrBathrooms:
		return count(p.Bathrooms), nil
	case AttrPropertyType:
		return nonBlank(p.PropertyType), nil
	case AttrAddress:
		return nonBlank(p.Address), nil
	case AttrCounty:
		return nonBlank(p.County), nil
	case AttrBERRating:
		return nonBlank(p.BERRating), nil
	case AttrCity:
		return nonBlank(p.City), nil
	case AttrPostcode:
		return nonBlank(p.Postcode), nil
	case AttrStatus:
		return nonBlank(p.Status), nil
	case AttrUpdatedAt:
		if p.UpdatedAt.IsZero() {
			return nil, nil
		}
		return p.UpdatedAt, nil
	default:
		return nil, eris.Errorf("model: unknown canonical attribute %q", key)
	}
}

// IsCanonicalAttribute reports whether key names an attribute a Property can supply.
func IsCanonicalAttribute(key string) bool {
	_, err := Property{}.Attribute(key)
	return err == nil
}

// FullAddress joins the address with city and county when they are not already part of it.
func (p Property) FullAddress() string {
	parts := []string{strings.TrimSpace(p.Address)}
	lower := strings.ToLower(p.Address)
	for _, extra := range []string{p.City, p.County} {
		extra = strings.TrimSpace(extra)
		if extra != "" && !strings.Contains(lower, strings.ToLower(extra)) {
			parts = append(parts, extra)
		}
	}
	return strings.Join(parts, ", ")
}

func nonZeroFloat(v float64) any {
	if v == 0 {
		return nil
	}
	return v
}

func count(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// Int returns a pointer to n, for room counts.
func Int(n int) *int { return &n }

func nonBlank(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

// Candidate is a raw record returned by one source adapter. Fields keeps the
// source-native shape and must only be read through the field mapper.
type Candidate struct {
	Source         string         `json:"source"`
	ID             string         `json:"id,omitempty"`
	DisplayAddress string         `json:"display_address,omitempty"`
	Fields         map[string]any `json:"fields"`
}
