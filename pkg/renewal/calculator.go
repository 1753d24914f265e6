// Package renewal computes subscription renewal schedules. Evaluate is a
// pure function over a subscription and a reference date so the calendar
// edge cases are testable against literal dates.
package renewal

import (
	"fmt"
	"time"
)

// Cycle is how often a subscription renews.
type Cycle string

const (
	Weekly  Cycle = "weekly"
	Monthly Cycle = "monthly"
	Yearly  Cycle = "yearly"
)

// Subscription is a recurring renewal obligation.
//
// RenewalDay semantics depend on Cycle: 1-7 (Monday-Sunday, ISO) for
// weekly, day of month 1-31 for monthly and yearly. RenewalMonth is only
// meaningful for yearly subscriptions.
type Subscription struct {
	Name            string
	Cycle           Cycle
	RenewalDay      int
	RenewalMonth    int
	AlertDaysBefore int
	Amount          float64
	Currency        string
	LastRenewed     *time.Time
	Enabled         bool
}

// Outcome is the result of evaluating one subscription.
type Outcome struct {
	DaysUntilRenewal int       `json:"days_until_renewal"`
	NextRenewal      time.Time `json:"next_renewal"`
	NeedAlert        bool      `json:"need_alert"`
}

// Validate rejects impossible day/month/cycle combinations. Config is
// expected to call this at load time so Evaluate sees only valid input.
func (s Subscription) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("subscription name is required")
	}
	if s.AlertDaysBefore < 0 {
		return fmt.Errorf("subscription %q: alert_days_before must be >= 0", s.Name)
	}
	switch s.Cycle {
	case Weekly:
		if s.RenewalDay < 1 || s.RenewalDay > 7 {
			return fmt.Errorf("subscription %q: weekly renewal_day must be 1-7, got %d", s.Name, s.RenewalDay)
		}
	case Monthly:
		if s.RenewalDay < 1 || s.RenewalDay > 31 {
			return fmt.Errorf("subscription %q: monthly renewal_day must be 1-31, got %d", s.Name, s.RenewalDay)
		}
	case Yearly:
		if s.RenewalDay < 1 || s.RenewalDay > 31 {
			return fmt.Errorf("subscription %q: yearly renewal_day must be 1-31, got %d", s.Name, s.RenewalDay)
		}
		if s.RenewalMonth < 1 || s.RenewalMonth > 12 {
			return fmt.Errorf("subscription %q: yearly cycle requires renewal_month 1-12, got %d", s.Name, s.RenewalMonth)
		}
	default:
		return fmt.Errorf("subscription %q: unknown cycle_type %q", s.Name, s.Cycle)
	}
	return nil
}

// Evaluate computes the next renewal occurrence for the given reference
// date. If the subscription was last renewed on or after the computed
// occurrence (or, for weekly cycles, within the same week), the
// occurrence advances one full cycle.
func Evaluate(s Subscription, today time.Time) (Outcome, error) {
	if err := s.Validate(); err != nil {
		return Outcome{}, err
	}
	today = midnight(today)

	next := nextOccurrence(s, today)
	if s.LastRenewed != nil {
		renewed := midnight(*s.LastRenewed)
		covered := !renewed.Before(next)
		if s.Cycle == Weekly && !renewed.Before(next.AddDate(0, 0, -7)) {
			// A weekly renewal earlier in the same week also covers the
			// upcoming occurrence.
			covered = true
		}
		if covered {
			next = nextOccurrence(s, next.AddDate(0, 0, 1))
		}
	}

	days := int(next.Sub(today).Hours() / 24)
	return Outcome{
		DaysUntilRenewal: days,
		NextRenewal:      next,
		NeedAlert:        days <= s.AlertDaysBefore,
	}, nil
}

// MarkRenewed returns a copy with LastRenewed set. The caller owns
// persisting the change.
func MarkRenewed(s Subscription, date time.Time) Subscription {
	d := midnight(date)
	s.LastRenewed = &d
	return s
}

// nextOccurrence finds the first renewal date on or after today.
func nextOccurrence(s Subscription, today time.Time) time.Time {
	switch s.Cycle {
	case Weekly:
		// time.Weekday has Sunday=0; ISO numbering has Monday=1.
		current := int(today.Weekday())
		if current == 0 {
			current = 7
		}
		ahead := s.RenewalDay - current
		if ahead <= 0 {
			ahead += 7
		}
		return today.AddDate(0, 0, ahead)

	case Monthly:
		occurrence := clampedDate(today.Year(), today.Month(), s.RenewalDay)
		if occurrence.Before(today) {
			occurrence = clampedDate(today.Year(), today.Month()+1, s.RenewalDay)
		}
		return occurrence

	default: // Yearly
		occurrence := clampedDate(today.Year(), time.Month(s.RenewalMonth), s.RenewalDay)
		if occurrence.Before(today) {
			occurrence = clampedDate(today.Year()+1, time.Month(s.RenewalMonth), s.RenewalDay)
		}
		return occurrence
	}
}

// clampedDate builds a date, clamping day to the last day of the target
// month (renewal_day=31 in February resolves to Feb 28/29, not Mar 2/3).
func clampedDate(year int, month time.Month, day int) time.Time {
	// Normalize month overflow first (month 13 -> January next year).
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
