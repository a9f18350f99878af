package audit

import "math"

// Percent returns part/total as a percentage rounded to one decimal place.
// The result is always within [0, 100]; an empty total yields 0, and only
// part >= total yields 100.
func Percent(part, total int) float64 {
	if total <= 0 || part <= 0 {
		return 0
	}
	if part >= total {
		return 100
	}
	// Partial completion never rounds to either end of the scale.
	return min(max(round1(float64(part)/float64(total)*100), 0.1), 99.9)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Summarize tallies checks into a Summary.
func Summarize(checks []Check) Summary {
	s := Summary{Counts: map[Status]int{}}
	for _, status := range Statuses() {
		s.Counts[status] = 0
	}
	for _, c := range checks {
		s.Total++
		s.Counts[c.Status]++
		if c.Deliverable.Claimed() {
			s.Claimed++
		}
	}
	s.Verified = s.Counts[StatusPresent]
	s.Empty = s.Total == 0
	s.Percent = Percent(s.Verified, s.Total)
	s.ClaimedPercent = Percent(s.Claimed, s.Total)
	s.Drift = round1(s.ClaimedPercent - s.Percent)
	return s
}
