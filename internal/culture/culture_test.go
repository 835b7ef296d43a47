package culture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetIsIdempotent(t *testing.T) {
	first := Get(RegionSouthAsia)
	second := Get(RegionSouthAsia)
	assert.Equal(t, first, second)
}

func TestGetFallsBackToDefault(t *testing.T) {
	a := Get(Region("atlantis"))
	assert.Equal(t, DefaultRegion, a.Region)
	assert.NotEmpty(t, a.PreferredServices)
}

func TestSeasonalServices(t *testing.T) {
	svcs := SeasonalServices(RegionNorthAmerica, SeasonWinter)
	require.NotEmpty(t, svcs)
	assert.Contains(t, svcs, "accounting")

	// Unknown season is an empty list, not an error.
	assert.Empty(t, SeasonalServices(RegionNorthAmerica, "monsoon"))
}

func TestCompatibility(t *testing.T) {
	assert.Equal(t, 1.0, Compatibility(RegionEastAsia, RegionEastAsia))

	// north_america and oceania share the diy_culture practice.
	assert.Equal(t, 0.8, Compatibility(RegionNorthAmerica, RegionOceania))

	// east_asia and north_america share no practices.
	assert.Equal(t, 0.6, Compatibility(RegionEastAsia, RegionNorthAmerica))

	// Missing cultural data on either side is neutral.
	assert.Equal(t, 1.0, Compatibility("", RegionAfrica))
	assert.Equal(t, 1.0, Compatibility(RegionAfrica, ""))
	assert.Equal(t, 1.0, Compatibility(Region("atlantis"), RegionAfrica))
}

func TestCompatibilityRange(t *testing.T) {
	regions := Regions()
	require.Len(t, regions, 10)
	for _, a := range regions {
		for _, b := range regions {
			c := Compatibility(a, b)
			assert.Contains(t, []float64{0.6, 0.8, 1.0}, c)
		}
	}
}
