package domain

import (
	"math"
	"time"
)

// Direction of a period-over-period comparison.
type Direction string

// Directions.
const (
	DirectionUp      Direction = "up"
	DirectionDown    Direction = "down"
	DirectionNeutral Direction = "neutral"
)

// monthLabelLayout formats bucket labels as YYYY-MM.
const monthLabelLayout = "2006-01"

// Trend compares a current period value with the previous one.
// Change is the rounded absolute percentage difference.
type Trend struct {
	Change    int
	Direction Direction
}

// ComputeTrend compares current with previous.
// When previous is 0 the change is 100 (up) unless current is also 0 (neutral).
func ComputeTrend(current, previous float64) Trend {
	current, previous = number(current), number(previous)

	if previous == 0 {
		if current == 0 {
			return Trend{Change: 0, Direction: DirectionNeutral}
		}

		return Trend{Change: 100, Direction: DirectionUp}
	}

	change := int(math.Round(math.Abs(current-previous) / math.Abs(previous) * 100))

	switch {
	case current > previous:
		return Trend{Change: change, Direction: DirectionUp}
	case current < previous:
		return Trend{Change: change, Direction: DirectionDown}
	default:
		return Trend{Change: change, Direction: DirectionNeutral}
	}
}

// MonthlyBucket aggregates the quotes created in one calendar month (UTC).
type MonthlyBucket struct {
	Label  string
	Start  time.Time
	Quoted float64
	Won    float64
	Count  int
}

// MonthStart returns the first instant of t's calendar month in UTC.
func MonthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthLabel formats t's UTC calendar month as YYYY-MM.
func MonthLabel(t time.Time) string {
	return t.UTC().Format(monthLabelLayout)
}

// ComputeMonthlyBuckets returns monthCount contiguous monthly buckets, oldest first,
// ending with the month containing anchor. Months without quotes yield zero buckets.
// Quotes created outside the window are ignored.
func ComputeMonthlyBuckets(quotes []Quote, monthCount int, anchor time.Time) []MonthlyBucket {
	if monthCount <= 0 {
		return []MonthlyBucket{}
	}

	first := MonthStart(anchor).AddDate(0, -(monthCount - 1), 0)

	buckets := make([]MonthlyBucket, monthCount)
	index := make(map[string]int, monthCount)

	for i := range buckets {
		start := first.AddDate(0, i, 0)
		buckets[i] = MonthlyBucket{Label: MonthLabel(start), Start: start}
		index[buckets[i].Label] = i
	}

	for i := range quotes {
		q := &quotes[i]

		pos, ok := index[MonthLabel(q.CreatedAt)]
		if !ok {
			continue
		}

		amount := number(q.TotalAmount)
		buckets[pos].Quoted += amount
		buckets[pos].Count++

		if q.Status == StatusWon {
			buckets[pos].Won += amount
		}
	}

	return buckets
}
