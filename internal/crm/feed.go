// Package crm ingests the primary CRM's XML feed.
//
// The feed is a sequence of <agency> elements, each carrying its listings:
//
//	<feed>
//	  <agency id="A1">
//	    <name>Example Estates</name>
//	    <updated>2026-03-01T09:00:00Z</updated>
//	    <property id="P1" updated="2026-03-01T09:00:00Z">
//	      <price currency="EUR">350000</price>
//	      <bedrooms>3</bedrooms>
//	      <address>12 Main Street</address>
//	      <external source="daft">D-1234</external>
//	    </property>
//	  </agency>
//	</feed>
package crm

import (
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-recon/internal/fieldmap"
	"github.com/sells-group/listing-recon/internal/model"
)

type xmlAgency struct {
	ID         string        `xml:"id,attr"`
	Name       string        `xml:"name"`
	Address    string        `xml:"address"`
	Phone      string        `xml:"phone"`
	Email      string        `xml:"email"`
	Website    string        `xml:"website"`
	Updated    string        `xml:"updated"`
	Properties []xmlProperty `xml:"property"`
	// Some exports nest listings under <properties>.
	Nested []xmlProperty `xml:"properties>property"`
}

type xmlProperty struct {
	ID          string        `xml:"id,attr"`
	UpdatedAttr string        `xml:"updated,attr"`
	Updated     string        `xml:"updated"`
	Created     string        `xml:"created"`
	Price       string        `xml:"price"`
	Bedrooms    string        `xml:"bedrooms"`
	Bathrooms   string        `xml:"bathrooms"`
	Type        string        `xml:"type"`
	Address     string        `xml:"address"`
	City        string        `xml:"city"`
	County      string        `xml:"county"`
	Postcode    string        `xml:"postcode"`
	BER         string        `xml:"ber"`
	Description string        `xml:"description"`
	Status      string        `xml:"status"`
	Images      []string      `xml:"images>image"`
	Agent       xmlAgent      `xml:"agent"`
	External    []xmlExternal `xml:"external"`
}

type xmlAgent struct {
	Name  string `xml:"name"`
	Email string `xml:"email"`
	Phone string `xml:"phone"`
}

type xmlExternal struct {
	Source string `xml:"source,attr"`
	ID     string `xml:",chardata"`
}

func (a xmlAgency) toModel() (model.Agency, error) {
	id := strings.TrimSpace(a.ID)
	if id == "" {
		return model.Agency{}, eris.New("crm: agency without id")
	}
	updated, _ := fieldmap.Time(a.Updated)
	return model.Agency{
		ID:        id,
		Name:      strings.TrimSpace(a.Name),
		Address:   strings.TrimSpace(a.Address),
		Phone:     strings.TrimSpace(a.Phone),
		Email:     strings.TrimSpace(a.Email),
		Website:   strings.TrimSpace(a.Website),
		UpdatedAt: updated,
	}, nil
}

func (a xmlAgency) listings() []xmlProperty {
	return append(append([]xmlProperty{}, a.Properties...), a.Nested...)
}

// toModel maps one feed listing. Numeric tags tolerate currency symbols and
// separators; a listing without id or address is rejected.
func (p xmlProperty) toModel(agencyID string, fallback time.Time) (model.Property, error) {
	id := strings.TrimSpace(p.ID)
	if id == "" {
		return model.Property{}, eris.New("crm: property without id")
	}
	address := strings.Join(strings.Fields(p.Address), " ")
	if address == "" {
		return model.Property{}, eris.Errorf("crm: property %s has no address", id)
	}

	prop := model.Property{
		ID:           id,
		AgencyID:     agencyID,
		Price:        number(p.Price),
		Bedrooms:     rooms(p.Bedrooms),
		Bathrooms:    rooms(p.Bathrooms),
		PropertyType: strings.TrimSpace(p.Type),
		Address:      address,
		City:         strings.TrimSpace(p.City),
		County:       strings.TrimSpace(p.County),
		Postcode:     strings.ToUpper(strings.TrimSpace(p.Postcode)),
		BERRating:    strings.ToUpper(strings.TrimSpace(p.BER)),
		Description:  strings.TrimSpace(p.Description),
		AgentName:    strings.TrimSpace(p.Agent.Name),
		AgentEmail:   strings.TrimSpace(p.Agent.Email),
		AgentPhone:   strings.TrimSpace(p.Agent.Phone),
		Status:       strings.ToLower(strings.TrimSpace(p.Status)),
	}
	for _, img := range p.Images {
		if img = strings.TrimSpace(img); img != "" {
			prop.Images = append(prop.Images, img)
		}
	}
	for _, ext := range p.External {
		src := strings.ToLower(strings.TrimSpace(ext.Source))
		extID := strings.TrimSpace(ext.ID)
		if src == "" || extID == "" {
			continue
		}
		if prop.ExternalIDs == nil {
			prop.ExternalIDs = make(map[string]string)
		}
		prop.ExternalIDs[src] = extID
	}

	prop.UpdatedAt = fallback
	for _, raw := range []string{p.UpdatedAttr, p.Updated} {
		if t, ok := fieldmap.Time(raw); ok {
			prop.UpdatedAt = t
			break
		}
	}
	prop.CreatedAt, _ = fieldmap.Time(p.Created)
	return prop, nil
}

// rooms parses a room count. A missing or unparseable tag is nil; "0" is a
// studio.
func rooms(s string) *int {
	f, ok := fieldmap.Float(s)
	if !ok || f < 0 {
		return nil
	}
	return model.Int(int(math.Round(f)))
}

func number(s string) float64 {
	f, ok := fieldmap.Float(s)
	if !ok || f < 0 {
		return 0
	}
	return f
}
