package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTrend(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		previous float64
		want     Trend
	}{
		{"growth from zero", 100, 0, Trend{Change: 100, Direction: DirectionUp}},
		{"both zero", 0, 0, Trend{Change: 0, Direction: DirectionNeutral}},
		{"halved", 50, 100, Trend{Change: 50, Direction: DirectionDown}},
		{"unchanged", 80, 80, Trend{Change: 0, Direction: DirectionNeutral}},
		{"rounds to nearest", 2, 3, Trend{Change: 33, Direction: DirectionDown}},
		{"more than doubled", 300, 100, Trend{Change: 200, Direction: DirectionUp}},
		{"drop to zero", 0, 40, Trend{Change: 100, Direction: DirectionDown}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeTrend(tt.current, tt.previous))
		})
	}
}

func TestComputeMonthlyBuckets_NoQuotes(t *testing.T) {
	anchor := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

	buckets := ComputeMonthlyBuckets(nil, 6, anchor)
	require.Len(t, buckets, 6)

	labels := make([]string, 0, len(buckets))
	for i, b := range buckets {
		labels = append(labels, b.Label)
		assert.Zero(t, b.Quoted)
		assert.Zero(t, b.Won)

		if i > 0 {
			assert.Equal(t, buckets[i-1].Start.AddDate(0, 1, 0), b.Start, "buckets must be contiguous")
			assert.Less(t, buckets[i-1].Label, b.Label)
		}
	}

	assert.Equal(t, []string{"2023-10", "2023-11", "2023-12", "2024-01", "2024-02", "2024-03"}, labels)
}

func TestComputeMonthlyBuckets_AssignsByUTCMonth(t *testing.T) {
	anchor := time.Date(2024, time.March, 31, 23, 0, 0, 0, time.UTC)
	plus3 := time.FixedZone("UTC+3", 3*60*60)

	quotes := []Quote{
		{TotalAmount: 100, Status: StatusWon, CreatedAt: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)},
		{TotalAmount: 50, Status: StatusDraft, CreatedAt: time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC)},
		// 2024-02-29 22:00 UTC, although local time is already March.
		{TotalAmount: 30, Status: StatusWon, CreatedAt: time.Date(2024, time.March, 1, 1, 0, 0, 0, plus3)},
		// Outside the window.
		{TotalAmount: 999, Status: StatusWon, CreatedAt: time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC)},
		{TotalAmount: 999, Status: StatusWon, CreatedAt: time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)},
	}

	buckets := ComputeMonthlyBuckets(quotes, 3, anchor)
	require.Len(t, buckets, 3)

	assert.Equal(t, MonthlyBucket{Label: "2024-01", Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}, buckets[0])

	assert.Equal(t, "2024-02", buckets[1].Label)
	assert.InDelta(t, 30, buckets[1].Quoted, 1e-9)
	assert.InDelta(t, 30, buckets[1].Won, 1e-9)

	assert.Equal(t, "2024-03", buckets[2].Label)
	assert.InDelta(t, 150, buckets[2].Quoted, 1e-9)
	assert.InDelta(t, 100, buckets[2].Won, 1e-9)
	assert.Equal(t, 2, buckets[2].Count)
}

func TestComputeMonthlyBuckets_CrossesYearAndHandlesEmptyWindow(t *testing.T) {
	anchor := time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)

	buckets := ComputeMonthlyBuckets(nil, 2, anchor)
	require.Len(t, buckets, 2)
	assert.Equal(t, "2024-12", buckets[0].Label)
	assert.Equal(t, "2025-01", buckets[1].Label)

	assert.Empty(t, ComputeMonthlyBuckets(nil, 0, anchor))
}
