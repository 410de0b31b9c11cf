// Package match selects which candidate returned by a listing source
// represents the reference property.
package match

import (
	"math"

	"github.com/sells-group/listing-recon/internal/fieldmap"
	"github.com/sells-group/listing-recon/internal/model"
)

// DefaultThreshold is the minimum score (exclusive) a winning candidate needs.
const DefaultThreshold = 50.0

// Weights controls how the three similarity components contribute to a score.
type Weights struct {
	Price    float64 `yaml:"price" mapstructure:"price"`
	Bedrooms float64 `yaml:"bedrooms" mapstructure:"bedrooms"`
	Address  float64 `yaml:"address" mapstructure:"address"`
}

// DefaultWeights returns the standard price/bedrooms/address weighting.
func DefaultWeights() Weights {
	return Weights{Price: 0.4, Bedrooms: 0.2, Address: 0.4}
}

// Matcher scores candidates against a reference property.
type Matcher struct {
	mapper    *fieldmap.Mapper
	weights   Weights
	threshold float64
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithWeights overrides the component weights.
func WithWeights(w Weights) Option {
	return func(m *Matcher) {
		m.weights = w
	}
}

// WithThreshold overrides the acceptance threshold.
func WithThreshold(t float64) Option {
	return func(m *Matcher) {
		m.threshold = t
	}
}

// NewMatcher creates a Matcher reading candidate fields through mapper.
func NewMatcher(mapper *fieldmap.Mapper, opts ...Option) *Matcher {
	m := &Matcher{
		mapper:    mapper,
		weights:   DefaultWeights(),
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FindBestMatch returns the candidate from source that best represents ref,
// with its score. An empty list yields nil. A single candidate is returned
// regardless of its score. With two or more, the highest scoring candidate
// wins (the first one on ties) and is only accepted when its score exceeds
// the threshold.
func (m *Matcher) FindBestMatch(ref model.Property, source string, candidates []model.Candidate) (*model.Candidate, float64) {
	switch len(candidates) {
	case 0:
		return nil, 0
	case 1:
		c := candidates[0]
		return &c, m.Score(ref, source, &c)
	}

	best := -1
	bestScore := math.Inf(-1)
	for i := range candidates {
		s := m.Score(ref, source, &candidates[i])
		if s > bestScore {
			best, bestScore = i, s
		}
	}

	if bestScore <= m.threshold {
		return nil, bestScore
	}
	c := candidates[best]
	return &c, bestScore
}

// Score computes the weighted 0-100 similarity of a candidate to ref.
func (m *Matcher) Score(ref model.Property, source string, c *model.Candidate) float64 {
	var price, beds float64
	if v, ok := fieldmap.Float(m.mapper.MapField(source, c, model.AttrPrice)); ok {
		price = PriceSimilarity(ref.Price, v)
	}
	if v, ok := fieldmap.Float(m.mapper.MapField(source, c, model.AttrBedrooms)); ok && ref.Bedrooms != nil {
		beds = BedroomSimilarity(*ref.Bedrooms, v)
	}

	addr, _ := fieldmap.String(m.mapper.MapField(source, c, model.AttrAddress))
	if addr == "" {
		addr = c.DisplayAddress
	}
	address := AddressSimilarity(ref.Address, addr)

	return price*m.weights.Price + beds*m.weights.Bedrooms + address*m.weights.Address
}

// PriceSimilarity is 100 minus the percentage difference from the reference
// price, floored at 0. A zero reference price contributes nothing.
func PriceSimilarity(ref, candidate float64) float64 {
	if ref <= 0 {
		return 0
	}
	return math.Max(0, 100-math.Abs(candidate-ref)/ref*100)
}

// BedroomSimilarity costs 25 points per bedroom of difference, floored at 0.
func BedroomSimilarity(ref int, candidate float64) float64 {
	return math.Max(0, 100-math.Abs(candidate-float64(ref))*25)
}
