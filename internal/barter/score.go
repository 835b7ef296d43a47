package barter

import "github.com/sudo-init-do/barterhub/internal/culture"

// Scoring weights. Each term contributes its full weight only when its
// condition holds and partially otherwise; the total caps at 1.0.
const (
	weightCategory     = 0.4
	weightSkill        = 0.2
	weightValueBalance = 0.2
	weightAvailability = 0.1
	weightVirtual      = 0.1

	// Partial credit when the request's category only appears among the
	// listing's preferred exchange categories.
	partialCategory = 0.3

	// Score decay per rank the listing exceeds the preferred skill level by.
	skillGapDecay = 0.1

	// MinScore is the floor below which candidates are discarded outright,
	// not merely sorted last.
	MinScore = 0.3
)

// ValueBalanceRatio relates the two sides' totals: min/max when both are
// positive, 0 otherwise. Always within [0, 1].
func ValueBalanceRatio(offered, requested float64) float64 {
	if offered <= 0 || requested <= 0 {
		return 0
	}
	if offered < requested {
		return offered / requested
	}
	return requested / offered
}

// Score computes the primary compatibility score between a listing and a
// request as a weighted sum of category, skill, value balance, availability
// and virtual/reach terms. The result is within [0, 1].
func Score(l *BarterListing, r *BarterRequest) float64 {
	score := 0.0

	if l.Category == r.Category {
		score += weightCategory
	} else {
		for _, c := range l.PreferredExchange {
			if c == r.Category {
				score += partialCategory
				break
			}
		}
	}

	if lr, pr := l.SkillLevel.Rank(), r.PreferredSkillLevel.Rank(); lr >= pr && pr >= 0 {
		gap := float64(lr - pr)
		if c := weightSkill * (1 - skillGapDecay*gap); c > 0 {
			score += c
		}
	}

	offered := r.Offered.ValuePerHour * r.Offered.TotalHours
	requested := l.BaseValuePerHour * r.RequiredTotalHours
	score += weightValueBalance * ValueBalanceRatio(offered, requested)

	if l.AvailableHoursPerWeek >= r.RequiredTotalHours {
		score += weightAvailability
	}

	if (r.VirtualAcceptable && l.VirtualAvailable) ||
		(!r.VirtualAcceptable && l.ServiceRadiusKm > 0) {
		score += weightVirtual
	}

	if score > 1 {
		score = 1
	}
	return score
}

// CulturalScore is the secondary compatibility score between the two sides'
// cultural regions. It is reported alongside the primary score, never
// folded into it.
func CulturalScore(l *BarterListing, r *BarterRequest) float64 {
	return culture.Compatibility(l.Location.CulturalRegion, r.PreferredLocation.CulturalRegion)
}
