package engine

import (
	"slices"
	"strings"
	"time"
)

// Match filters campaigns down to those deliverable to the viewer at the
// given date and orders them for rotation: global before country before
// city, ties keeping their original relative order.
//
// Pure function of its inputs; a nil or empty input yields an empty result.
func Match(campaigns []Campaign, today time.Time, viewer ViewerContext) []Campaign {
	viewer = viewer.Normalized()

	var out []Campaign
	for _, c := range campaigns {
		if !ScheduleEligible(c, today) {
			continue
		}
		if !locationEligible(c, viewer) {
			continue
		}
		out = append(out, c)
	}

	slices.SortStableFunc(out, func(a, b Campaign) int {
		return a.AdLevel.priority() - b.AdLevel.priority()
	})
	return out
}

// ScheduleEligible reports whether the campaign may be shown on the given
// calendar date. Schedule bounds are inclusive calendar dates, so the
// wall-clock part of today is discarded: a campaign ending today stays
// eligible until midnight. A missing start date or creative URL makes the
// record never eligible.
func ScheduleEligible(c Campaign, today time.Time) bool {
	if c.Status != StatusActive {
		return false
	}
	if c.CreativeURL == "" {
		return false
	}
	day := DateOnly(today)
	if c.StartDate.IsZero() || DateOnly(c.StartDate).After(day) {
		return false
	}
	if c.EndDate != nil && DateOnly(*c.EndDate).Before(day) {
		return false
	}
	return true
}

// DateOnly truncates a timestamp to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func locationEligible(c Campaign, viewer ViewerContext) bool {
	switch c.AdLevel {
	case LevelGlobal:
		return true
	case LevelCountry:
		if viewer.Country == UnknownLocation {
			return false
		}
		for _, cc := range c.TargetCountries {
			if strings.EqualFold(strings.TrimSpace(cc), viewer.Country) {
				return true
			}
		}
		return false
	case LevelCity:
		if viewer.City == UnknownLocation {
			return false
		}
		for _, tc := range c.TargetCities {
			if cityMatches(tc, viewer.City) {
				return true
			}
		}
		return false
	}
	return false
}

// cityMatches is a deliberately loose bidirectional substring match, so
// that "Mexico City" pairs with partial namings in either direction.
// Plain case-insensitive byte comparison, not locale-normalized.
func cityMatches(target, city string) bool {
	t := strings.ToLower(strings.TrimSpace(target))
	v := strings.ToLower(strings.TrimSpace(city))
	if t == "" || v == "" {
		return false
	}
	return strings.Contains(t, v) || strings.Contains(v, t)
}
