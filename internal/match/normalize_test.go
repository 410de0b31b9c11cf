package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"123 Main Street, Dublin 4", "123 main street dublin 4"},
		{"  Apt. 2,   The Grange ", "apt 2 the grange"},
		{"Baile Átha Cliath", "baile atha cliath"},
		{"", ""},
		{" , ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeAddress(tt.in), tt.in)
	}
}

func TestAddressSimilarity(t *testing.T) {
	assert.InDelta(t, 100, AddressSimilarity("12 Orchard Lane", "12 ORCHARD LANE."), 0.001)
	assert.InDelta(t, 80, AddressSimilarity("12 Orchard Lane", "12 Orchard Lane, Ranelagh"), 0.001)
	assert.InDelta(t, 50, AddressSimilarity("1 High St Cork", "1 High Road Kerry"), 0.001)
	assert.Zero(t, AddressSimilarity("", "12 Orchard Lane"))
	assert.Zero(t, AddressSimilarity("Harbour View", "Castle Street"))
}

func TestAddressSimilarity_AbbreviatedStreet(t *testing.T) {
	score := AddressSimilarity("123 Main Street, Dublin 4", "123 main st dublin 4")
	assert.GreaterOrEqual(t, score, 80.0)
}

func TestAddressSimilarity_RepeatedWords(t *testing.T) {
	// {main, road} against {main, road, x}.
	assert.InDelta(t, 200.0/3, AddressSimilarity("main main main road", "main road x"), 0.001)
	assert.InDelta(t, 200.0/3, AddressSimilarity("main road x", "main main main road"), 0.001)
}
