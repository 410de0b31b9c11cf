package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/listing-recon/internal/fieldmap"
	"github.com/sells-group/listing-recon/internal/model"
)

func newTestMatcher(opts ...Option) *Matcher {
	return NewMatcher(fieldmap.NewMapper(fieldmap.Default()), opts...)
}

func daftCandidate(id string, price float64, beds int, title string) model.Candidate {
	return model.Candidate{
		Source: "daft",
		ID:     id,
		Fields: map[string]any{
			"id":          id,
			"price":       price,
			"numBedrooms": float64(beds),
			"title":       title,
		},
	}
}

func reference() model.Property {
	return model.Property{
		ID:       "p-1",
		Price:    450000,
		Bedrooms: model.Int(3),
		Address:  "12 Orchard Lane, Ranelagh",
		County:   "Dublin",
	}
}

func TestFindBestMatch_Empty(t *testing.T) {
	m := newTestMatcher()
	got, score := m.FindBestMatch(reference(), "daft", nil)
	assert.Nil(t, got)
	assert.Zero(t, score)
}

func TestFindBestMatch_SingleCandidateShortcut(t *testing.T) {
	m := newTestMatcher()
	poor := daftCandidate("d-9", 90000, 0, "Unit 4 Industrial Estate, Cork")

	got, score := m.FindBestMatch(reference(), "daft", []model.Candidate{poor})
	require.NotNil(t, got)
	assert.Equal(t, "d-9", got.ID)
	assert.Less(t, score, DefaultThreshold)
}

func TestFindBestMatch_ThresholdRejection(t *testing.T) {
	m := newTestMatcher()
	ref := model.Property{Price: 500000, Bedrooms: model.Int(4), Address: "1 Harbour View Howth"}

	// 80% price gap, 3 bedrooms off, no shared address words.
	a := daftCandidate("a", 100000, 1, "Flat 2 Castle Street Sligo")
	b := daftCandidate("b", 100000, 1, "Apartment 9 Quay Road Galway")
	assert.Less(t, m.Score(ref, "daft", &a), 50.0)

	got, score := m.FindBestMatch(ref, "daft", []model.Candidate{a, b})
	assert.Nil(t, got)
	assert.InDelta(t, 13, score, 0.001)
}

func TestFindBestMatch_PicksHighestScore(t *testing.T) {
	m := newTestMatcher()
	far := daftCandidate("far", 300000, 2, "5 Beech Road, Rathmines, Dublin 6")
	near := daftCandidate("near", 455000, 3, "12 Orchard Lane, Ranelagh, Dublin 6")

	got, score := m.FindBestMatch(reference(), "daft", []model.Candidate{far, near})
	require.NotNil(t, got)
	assert.Equal(t, "near", got.ID)
	assert.Greater(t, score, DefaultThreshold)
}

func TestFindBestMatch_TieKeepsFirst(t *testing.T) {
	m := newTestMatcher()
	a := daftCandidate("first", 450000, 3, "12 Orchard Lane Ranelagh")
	b := daftCandidate("second", 450000, 3, "12 Orchard Lane Ranelagh")

	got, score := m.FindBestMatch(reference(), "daft", []model.Candidate{a, b})
	require.NotNil(t, got)
	assert.Equal(t, "first", got.ID)
	assert.InDelta(t, 100, score, 0.001)
}

func TestFindBestMatch_CustomThreshold(t *testing.T) {
	m := newTestMatcher(WithThreshold(95))
	a := daftCandidate("a", 455000, 3, "12 Orchard Lane, Ranelagh, Dublin 6")
	b := daftCandidate("b", 300000, 2, "Somewhere else entirely")

	got, _ := m.FindBestMatch(reference(), "daft", []model.Candidate{a, b})
	assert.Nil(t, got)
}

func TestScore_MissingFieldsContributeZero(t *testing.T) {
	m := newTestMatcher()
	c := model.Candidate{Source: "daft", ID: "x", DisplayAddress: "12 Orchard Lane, Ranelagh", Fields: map[string]any{}}

	// Only the address component scores, via DisplayAddress.
	assert.InDelta(t, 40, m.Score(reference(), "daft", &c), 0.001)

	c.Fields["price"] = "POA"
	assert.InDelta(t, 40, m.Score(reference(), "daft", &c), 0.001)
}

func TestScore_CustomWeights(t *testing.T) {
	m := newTestMatcher(WithWeights(Weights{Price: 1}))
	c := daftCandidate("x", 405000, 0, "")
	assert.InDelta(t, 90, m.Score(reference(), "daft", &c), 0.001)
}

func TestPriceSimilarity(t *testing.T) {
	assert.InDelta(t, 100, PriceSimilarity(450000, 450000), 0.001)
	assert.InDelta(t, 90, PriceSimilarity(100, 110), 0.001)
	assert.InDelta(t, 0, PriceSimilarity(100, 350), 0.001)
	assert.Zero(t, PriceSimilarity(0, 350))
}

func TestBedroomSimilarity(t *testing.T) {
	assert.InDelta(t, 100, BedroomSimilarity(3, 3), 0.001)
	assert.InDelta(t, 75, BedroomSimilarity(3, 2), 0.001)
	assert.InDelta(t, 25, BedroomSimilarity(1, 4), 0.001)
	assert.Zero(t, BedroomSimilarity(0, 6))
}

func TestScore_RoomCountPresence(t *testing.T) {
	m := newTestMatcher(WithWeights(Weights{Bedrooms: 1}))
	c := daftCandidate("x", 250000, 0, "")

	studio := model.Property{Bedrooms: model.Int(0)}
	assert.InDelta(t, 100, m.Score(studio, "daft", &c), 0.001)

	unknown := model.Property{}
	assert.Zero(t, m.Score(unknown, "daft", &c))
}
