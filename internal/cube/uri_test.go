package cube

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURI(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://statistics.gov.scot/data/council-tax", "http://statistics.gov.scot/data/council-tax"},
		{"http://statistics.gov.scot/data/council-tax", "http://statistics.gov.scot/data/council-tax"},
		{"urn:x-local:dataset", "urn:x-local:dataset"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeURI(tt.in), tt.in)
	}
}

func TestCleanLabel(t *testing.T) {
	assert.Equal(t, "CouncilTax2021", CleanLabel("Council Tax (2021)"))
	assert.Equal(t, "CouncilArea", CleanLabel("Council Area"))
	assert.Equal(t, "", CleanLabel("«()»"))
	assert.Equal(t, "Caf", CleanLabel("Café"))
}

func TestLocalName(t *testing.T) {
	assert.Equal(t, "refArea", LocalName("http://purl.org/linked-data/sdmx/2009/dimension#refArea"))
	assert.Equal(t, "pupil-attainment", LocalName("http://statistics.gov.scot/data/pupil-attainment/"))
	assert.Equal(t, "plain", LocalName("plain"))
}
