package valuation

import (
	"fmt"
	"math"
	"time"
)

// DepreciationRule maps the half-open age interval [MinAge, MaxAge) to a
// percentage. A nil MaxAge is unbounded.
type DepreciationRule struct {
	MinAge  float64
	MaxAge  *float64
	Percent float64
}

type DepreciationSchedule []DepreciationRule

func bound(v float64) *float64 { return &v }

// DefaultDepreciationSchedule is the bank's age-based building depreciation table.
func DefaultDepreciationSchedule() DepreciationSchedule {
	return DepreciationSchedule{
		{MinAge: 0, MaxAge: bound(1), Percent: 0},
		{MinAge: 1, MaxAge: bound(5), Percent: 5},
		{MinAge: 5, MaxAge: bound(10), Percent: 15},
		{MinAge: 10, MaxAge: bound(20), Percent: 25},
		{MinAge: 20, Percent: 50},
	}
}

// Validate checks that the rules are ordered, contiguous and cover [0, ∞).
func (s DepreciationSchedule) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("depreciation schedule is empty")
	}
	if s[0].MinAge != 0 {
		return fmt.Errorf("first rule must start at age 0, got %v", s[0].MinAge)
	}
	for i, rule := range s {
		if rule.Percent < 0 || rule.Percent > 100 {
			return fmt.Errorf("rule %d: percent %v outside 0-100", i, rule.Percent)
		}
		last := i == len(s)-1
		if last {
			if rule.MaxAge != nil {
				return fmt.Errorf("last rule must be unbounded")
			}
			continue
		}
		if rule.MaxAge == nil {
			return fmt.Errorf("rule %d: only the last rule may be unbounded", i)
		}
		if *rule.MaxAge <= rule.MinAge {
			return fmt.Errorf("rule %d: empty interval [%v, %v)", i, rule.MinAge, *rule.MaxAge)
		}
		if s[i+1].MinAge != *rule.MaxAge {
			return fmt.Errorf("rule %d: gap or overlap at age %v", i, *rule.MaxAge)
		}
	}
	return nil
}

// Resolve returns the depreciation percent for an age in years. Malformed and
// negative ages resolve to 0.
func (s DepreciationSchedule) Resolve(age float64) float64 {
	if math.IsNaN(age) || math.IsInf(age, 0) || age < 0 {
		return 0
	}
	for _, rule := range s {
		if age >= rule.MinAge && (rule.MaxAge == nil || age < *rule.MaxAge) {
			return rule.Percent
		}
	}
	return 0
}

// AgeAt is the building age in whole years at the reference date, never negative.
func AgeAt(yearBuilt int, reference time.Time) int {
	age := reference.Year() - yearBuilt
	if age < 0 {
		return 0
	}
	return age
}
