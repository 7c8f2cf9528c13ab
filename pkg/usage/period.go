package usage

import (
	"time"

	"github.com/paisakit/paisakit/pkg/feature"
)

// Span is a usage bucket's validity window. Nil bounds mean the bucket is
// lifetime-scoped and never resets.
type Span struct {
	StartsAt *time.Time
	EndsAt   *time.Time
}

// Bounded reports whether the span has a finite window.
func (s Span) Bounded() bool {
	return s.StartsAt != nil && s.EndsAt != nil
}

// CurrentAt reports whether the span covers the given instant. Lifetime spans
// always do. Buckets are "current" while period_ends_at is in the future;
// exact boundary equality is deliberately not required since boundaries come
// from wall-clock computation and must tolerate drift.
func (s Span) CurrentAt(now time.Time) bool {
	if !s.Bounded() {
		return true
	}
	return s.EndsAt.After(now)
}

// Window computes the bucket span containing now for a reset period.
// Daily spans cover [startOfDay, nextDay); weekly spans the ISO week starting
// Monday; monthly spans the calendar month. Yearly spans anchor to the given
// date (the earliest started_at among the organization's active plans) and
// advance by whole years, so yearly windows align to the original purchase
// date rather than the calendar year. A zero anchor falls back to January 1.
// Lifetime returns an unbounded span.
func Window(p feature.Period, now time.Time, anchor time.Time) Span {
	now = now.UTC()

	switch p {
	case feature.PeriodDaily:
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return boundedSpan(start, start.AddDate(0, 0, 1))

	case feature.PeriodWeekly:
		// time.Weekday counts Sunday as 0; shift so weeks start Monday.
		offset := (int(now.Weekday()) + 6) % 7
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -offset)
		return boundedSpan(start, start.AddDate(0, 0, 7))

	case feature.PeriodMonthly:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return boundedSpan(start, start.AddDate(0, 1, 0))

	case feature.PeriodYearly:
		if anchor.IsZero() {
			anchor = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		}
		// Advance the anchor by whole years until the window covers now.
		// A future anchor yields its own first window unchanged.
		start := anchor.UTC()
		for !start.AddDate(1, 0, 0).After(now) {
			start = start.AddDate(1, 0, 0)
		}
		return boundedSpan(start, start.AddDate(1, 0, 0))

	default: // lifetime
		return Span{}
	}
}

func boundedSpan(start, end time.Time) Span {
	return Span{StartsAt: &start, EndsAt: &end}
}
