package culture

import "sort"

// Region identifies a broad cultural region used for adaptation lookups.
type Region string

const (
	RegionNorthAmerica  Region = "north_america"
	RegionLatinAmerica  Region = "latin_america"
	RegionWesternEurope Region = "western_europe"
	RegionEasternEurope Region = "eastern_europe"
	RegionMiddleEast    Region = "middle_east"
	RegionSouthAsia     Region = "south_asia"
	RegionEastAsia      Region = "east_asia"
	RegionSoutheastAsia Region = "southeast_asia"
	RegionAfrica        Region = "africa"
	RegionOceania       Region = "oceania"
)

// DefaultRegion is used whenever a requested region has no configured table.
const DefaultRegion = RegionNorthAmerica

// Season names accepted by SeasonalServices.
const (
	SeasonSpring = "spring"
	SeasonSummer = "summer"
	SeasonAutumn = "autumn"
	SeasonWinter = "winter"
)

// Adaptation describes a region's service preferences and practices.
type Adaptation struct {
	Region            Region              `json:"region"`
	PreferredServices []string            `json:"preferred_services"`
	SeasonalServices  map[string][]string `json:"seasonal_services"`
	CulturalPractices []string            `json:"cultural_practices"`
	Currency          string              `json:"currency"`
}

// adaptations is process-wide read-only configuration; it is never mutated
// after package init.
var adaptations = map[Region]Adaptation{
	RegionNorthAmerica: {
		Region:            RegionNorthAmerica,
		PreferredServices: []string{"home_repair", "fitness_training", "web_development", "childcare"},
		SeasonalServices: map[string][]string{
			SeasonSpring: {"gardening", "home_repair"},
			SeasonSummer: {"fitness_training", "photography"},
			SeasonAutumn: {"home_repair", "accounting"},
			SeasonWinter: {"accounting", "cooking"},
		},
		CulturalPractices: []string{"diy_culture", "volunteer_exchange", "holiday_gifting"},
		Currency:          "USD",
	},
	RegionLatinAmerica: {
		Region:            RegionLatinAmerica,
		PreferredServices: []string{"cooking", "music_lessons", "childcare", "home_repair"},
		SeasonalServices: map[string][]string{
			SeasonSpring: {"gardening", "cooking"},
			SeasonSummer: {"music_lessons", "photography"},
			SeasonAutumn: {"cooking", "home_repair"},
			SeasonWinter: {"music_lessons", "cooking"},
		},
		CulturalPractices: []string{"communal_meals", "extended_family_care", "holiday_gifting"},
		Currency:          "BRL",
	},
	RegionWesternEurope: {
		Region:            RegionWesternEurope,
		PreferredServices: []string{"language_tutoring", "graphic_design", "legal_advice", "cooking"},
		SeasonalServices: map[string][]string{
			SeasonSpring: {"gardening", "photography"},
			SeasonSummer: {"language_tutoring", "photography"},
			SeasonAutumn: {"legal_advice", "accounting"},
			SeasonWinter: {"cooking", "music_lessons"},
		},
		CulturalPractices: []string{"apprenticeship_tradition", "volunteer_exchange", "communal_meals"},
		Currency:          "EUR",
	},
	RegionEasternEurope: {
		Region:            RegionEasternEurope,
		PreferredServices: []string{"home_repair", "language_tutoring", "elder_care", "gardening"},
		SeasonalServices: map[string][]string{
			SeasonSpring: {"gardening", "home_repair"},
			SeasonSummer: {"gardening", "photography"},
			SeasonAutumn: {"home_repair", "cooking"},
			SeasonWinter: {"elder_care", "cooking"},
		},
		CulturalPractices: []string{"apprenticeship_tradition", "extended_family_care", "dacha_gardening"},
		Currency:          "PLN",
	},
	RegionMiddleEast: {
		Region:            RegionMiddleEast,
		PreferredServices: []string{"language_tutoring", "accounting", "cooking", "childcare"},
		SeasonalServices: map[string][]string{
			SeasonSpring: {"cooking", "photography"},
			SeasonSummer: {"language_tutoring", "accounting"},
			SeasonAutumn: {"cooking", "childcare"},
			SeasonWinter: {"accounting", "legal_advice"},
		},
		CulturalPractices: []string{"hospitality_exchange", "extended_family_care", "communal_meals"},
		Currency:          "AED",
	},
	RegionSouthAsia: {
		Region:            RegionSouthAsia,
		PreferredServices: []string{"yoga_instruction", "web_development", "language_tutoring", "cooking"},
		SeasonalServices: map[string][]string{
			SeasonSpring: {"yoga_instruction", "gardening"},
			SeasonSummer: {"web_development", "language_tutoring"},
			SeasonAutumn: {"yoga_instruction", "cooking"},
			SeasonWinter: {"cooking", "music_lessons"},
		},
		CulturalPractices: []string{"guru_shishya_tradition", "extended_family_care", "communal_meals"},
		Currency:          "INR",
	},
	RegionEastAsia: {
		Region:            RegionEastAsia,
		PreferredServices: []string{"language_tutoring", "music_lessons", "web_development", "elder_care"},
		SeasonalServices: map[string][]string{
			SeasonSpring: {"photography", "gardening"},
			SeasonSummer: {"language_tutoring", "web_development"},
			SeasonAutumn: {"music_lessons", "photography"},
			SeasonWinter: {"elder_care", "cooking"},
		},
		CulturalPractices: []string{"apprenticeship_tradition", "elder_respect", "gift_reciprocity"},
		Currency:          "JPY",
	},
	RegionSoutheastAsia: {
		Region:            RegionSoutheastAsia,
		PreferredServices: []string{"cooking", "web_development", "childcare", "yoga_instruction"},
		SeasonalServices: map[string][]string{
			SeasonSpring: {"cooking", "photography"},
			SeasonSummer: {"web_development", "yoga_instruction"},
			SeasonAutumn: {"cooking", "childcare"},
			SeasonWinter: {"cooking", "music_lessons"},
		},
		CulturalPractices: []string{"communal_meals", "extended_family_care", "gift_reciprocity"},
		Currency:          "THB",
	},
	RegionAfrica: {
		Region:            RegionAfrica,
		PreferredServices: []string{"home_repair", "childcare", "cooking", "gardening"},
		SeasonalServices: map[string][]string{
			SeasonSpring: {"gardening", "home_repair"},
			SeasonSummer: {"cooking", "photography"},
			SeasonAutumn: {"gardening", "childcare"},
			SeasonWinter: {"home_repair", "cooking"},
		},
		CulturalPractices: []string{"communal_labor", "extended_family_care", "hospitality_exchange"},
		Currency:          "KES",
	},
	RegionOceania: {
		Region:            RegionOceania,
		PreferredServices: []string{"fitness_training", "gardening", "photography", "home_repair"},
		SeasonalServices: map[string][]string{
			SeasonSpring: {"gardening", "fitness_training"},
			SeasonSummer: {"fitness_training", "photography"},
			SeasonAutumn: {"gardening", "home_repair"},
			SeasonWinter: {"home_repair", "cooking"},
		},
		CulturalPractices: []string{"diy_culture", "volunteer_exchange", "communal_labor"},
		Currency:          "AUD",
	},
}

// Valid reports whether the region is one of the configured regions.
func Valid(region Region) bool {
	_, ok := adaptations[region]
	return ok
}

// Regions returns the configured regions in stable order.
func Regions() []Region {
	out := make([]Region, 0, len(adaptations))
	for r := range adaptations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Get returns the adaptation table for the region, falling back to the
// default region when the requested one is unconfigured. It never fails.
func Get(region Region) Adaptation {
	if a, ok := adaptations[region]; ok {
		return a
	}
	return adaptations[DefaultRegion]
}

// SeasonalServices returns the recommended categories for a region and
// season. Unknown seasons yield an empty list, never an error.
func SeasonalServices(region Region, season string) []string {
	a := Get(region)
	if svcs, ok := a.SeasonalServices[season]; ok {
		return svcs
	}
	return []string{}
}

// Compatibility scores how well two regions pair up. Same region scores 1.0,
// different regions with overlapping practices 0.8, everything else 0.6.
// A side without cultural data is treated as neutral, not penalized.
func Compatibility(a, b Region) float64 {
	if a == "" || b == "" {
		return 1.0
	}
	aa, okA := adaptations[a]
	ab, okB := adaptations[b]
	if !okA || !okB {
		return 1.0
	}
	if a == b {
		return 1.0
	}
	for _, p := range aa.CulturalPractices {
		for _, q := range ab.CulturalPractices {
			if p == q {
				return 0.8
			}
		}
	}
	return 0.6
}
