package normalize

import "time"

// FreshnessWindowDays is how far back a receipt date may lie and still be
// accepted on the automated path.
const FreshnessWindowDays = 7

// Freshness describes how a receipt date relates to "today".
type Freshness struct {
	WithinWindow bool
	AgeDays      *int // nil when the date is unparsable
	IsFuture     bool
}

// CheckFreshness evaluates an ISO receipt date against today. A receipt is
// fresh only when 0 <= age <= FreshnessWindowDays. Future-dated and
// unparsable dates are never fresh.
func CheckFreshness(isoDate string, today time.Time) Freshness {
	d, err := time.Parse("2006-01-02", isoDate)
	if err != nil {
		return Freshness{}
	}
	t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	age := int(t.Sub(d).Hours() / 24)
	f := Freshness{AgeDays: &age}
	if age < 0 {
		f.IsFuture = true
		return f
	}
	f.WithinWindow = age <= FreshnessWindowDays
	return f
}
