package compare

import "github.com/sells-group/listing-recon/internal/model"

// Consistent is the recommendation given when sources agree.
const Consistent = "Consistent across all sources"

var recommendations = map[string][]string{
	model.AttrPrice: {
		"Verify the current market price with the agent",
		"Update every listing to the agreed asking price",
	},
	model.AttrBedrooms: {
		"Confirm the bedroom count against the floor plan",
		"Correct listings that show a different bedroom count",
	},
	model.AttrBathrooms: {
		"Confirm the bathroom count with the agent",
	},
	model.AttrPropertyType: {
		"Use the same property type on every platform",
	},
	model.AttrAddress: {
		"Standardise the address format across platforms",
		"Check the Eircode on each listing",
	},
	model.AttrCounty: {
		"Check the county is set consistently",
	},
	model.AttrBERRating: {
		"Verify the BER certificate and update every listing",
	},
	model.AttrStatus: {
		"Withdraw or update listings whose status is out of date",
	},
}

var fallbackRecommendation = []string{"Review this field and align it across sources"}

// Recommendations returns the action strings for a field.
func Recommendations(key string, hasDifferences bool) []string {
	if !hasDifferences {
		return []string{Consistent}
	}
	recs, ok := recommendations[key]
	if !ok {
		recs = fallbackRecommendation
	}
	return append([]string(nil), recs...)
}
