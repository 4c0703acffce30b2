package domain

import (
	"testing"
	"time"

	"github.com/smallbiznis/opsdesk/internal/config"
	workdomain "github.com/smallbiznis/opsdesk/internal/work/domain"
	"github.com/stretchr/testify/assert"
)

func TestDaysOverdueRoundsPartialDaysUp(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		due  time.Time
		want int
	}{
		{"not yet due", now.Add(time.Hour), 0},
		{"due exactly now", now, 0},
		{"one millisecond late", now.Add(-time.Millisecond), 1},
		{"just under a day", now.Add(-23 * time.Hour), 1},
		{"exactly one day", now.Add(-24 * time.Hour), 1},
		{"a day and a second", now.Add(-24*time.Hour - time.Second), 2},
		{"ten days", now.Add(-10 * 24 * time.Hour), 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DaysOverdue(now, tc.due))
		})
	}
}

func TestBandForUsesConfiguredRanges(t *testing.T) {
	cfg := config.DefaultOverdueConfig()

	assert.Equal(t, "", BandFor(0, cfg))
	assert.Equal(t, "low", BandFor(1, cfg))
	assert.Equal(t, "low", BandFor(7, cfg))
	assert.Equal(t, "medium", BandFor(8, cfg))
	assert.Equal(t, "medium", BandFor(14, cfg))
	assert.Equal(t, "high", BandFor(15, cfg))
	assert.Equal(t, "high", BandFor(30, cfg))
	assert.Equal(t, "critical", BandFor(31, cfg))
	assert.Equal(t, "critical", BandFor(365, cfg))
}

func TestBandForOutsideAllBands(t *testing.T) {
	ten := 10
	cfg := config.OverdueConfig{
		Bands: []config.UrgencyBand{
			{Band: "only", MinDays: 5, MaxDays: &ten},
		},
	}

	assert.Equal(t, "", BandFor(4, cfg))
	assert.Equal(t, "only", BandFor(5, cfg))
	assert.Equal(t, "only", BandFor(10, cfg))
	assert.Equal(t, "", BandFor(11, cfg))
}

func TestSortByDaysDescIsStable(t *testing.T) {
	items := []OverdueItem{
		{Title: "a", DaysOverdue: 3},
		{Title: "b", DaysOverdue: 10},
		{Title: "c", DaysOverdue: 3},
		{Title: "d", DaysOverdue: 7},
	}

	SortByDaysDesc(items)

	titles := make([]string, 0, len(items))
	for _, item := range items {
		titles = append(titles, item.Title)
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, titles)
}

func TestSummarizeCountsKindsReasonsAndBands(t *testing.T) {
	reason := "waiting on client"
	empty := ""
	items := []OverdueItem{
		{Kind: KindWork, Band: "low", OverdueReason: &reason},
		{Kind: KindWork, Band: "critical"},
		{Kind: KindTask, Band: "low"},
		{Kind: KindTask, Band: ""},
		{Kind: KindWork, Band: "low", OverdueReason: &empty},
	}

	summary := Summarize(items)

	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 3, summary.WorkCount)
	assert.Equal(t, 2, summary.TaskCount)
	assert.Equal(t, 1, summary.WithReason)
	assert.Equal(t, map[string]int{"low": 3, "critical": 1}, summary.ByBand)
}

func TestFiltersKeepAllWhenEmpty(t *testing.T) {
	items := []OverdueItem{
		{Kind: KindWork, Priority: workdomain.PriorityHigh, CustomerName: "Acme"},
		{Kind: KindTask, Priority: workdomain.PriorityLow, CustomerName: "Globex"},
	}

	assert.Len(t, FilterByKind(items, ""), 2)
	assert.Len(t, FilterByPriority(items, ""), 2)
	assert.Len(t, FilterByCustomer(items, ""), 2)

	works := FilterByKind(items, KindWork)
	assert.Len(t, works, 1)
	assert.Equal(t, "Acme", works[0].CustomerName)

	high := FilterByPriority(items, workdomain.PriorityHigh)
	assert.Len(t, high, 1)

	globex := FilterByCustomer(items, "Globex")
	assert.Len(t, globex, 1)
	assert.Equal(t, KindTask, globex[0].Kind)
}
