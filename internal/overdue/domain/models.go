package domain

import (
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/opsdesk/internal/config"
	workdomain "github.com/smallbiznis/opsdesk/internal/work/domain"
)

// Kind distinguishes overdue works from overdue tasks. Tasks cover both
// period tasks of recurring works and ad-hoc tasks of non-recurring works.
type Kind string

const (
	KindWork Kind = "work"
	KindTask Kind = "task"
)

// UnknownName is shown when a related customer or service record could
// not be resolved for an overdue item.
const UnknownName = "Unknown"

// OverdueItem is a single row of the overdue report, normalized across
// the three sources it is assembled from.
type OverdueItem struct {
	ID              snowflake.ID        `json:"id"`
	Kind            Kind                `json:"kind"`
	Title           string              `json:"title"`
	CustomerName    string              `json:"customer_name"`
	ServiceName     string              `json:"service_name"`
	DueDate         time.Time           `json:"due_date"`
	DaysOverdue     int                 `json:"days_overdue"`
	Band            string              `json:"band"`
	Priority        workdomain.Priority `json:"priority"`
	Status          workdomain.Status   `json:"status"`
	AssigneeName    string              `json:"assignee_name,omitempty"`
	OverdueReason   *string             `json:"overdue_reason,omitempty"`
	OverdueMarkedAt *time.Time          `json:"overdue_marked_at,omitempty"`
	ParentWorkID    *snowflake.ID       `json:"parent_work_id,omitempty"`
}

// Summary aggregates the report items. WithReason counts items carrying
// an overdue reason; reasons are only ever set on works, so the ratio of
// WithReason to Total understates reason coverage when tasks dominate.
type Summary struct {
	Total      int            `json:"total"`
	WorkCount  int            `json:"work_count"`
	TaskCount  int            `json:"task_count"`
	WithReason int            `json:"with_reason"`
	ByBand     map[string]int `json:"by_band"`
}

// Report is the assembled overdue report for one organization.
type Report struct {
	Items       []OverdueItem `json:"items"`
	Summary     Summary       `json:"summary"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// DaysOverdue returns the whole days an item is past due, rounding any
// partial day up. A due date at or after now yields zero.
func DaysOverdue(now, due time.Time) int {
	diff := now.Sub(due)
	if diff <= 0 {
		return 0
	}
	const day = 24 * time.Hour
	days := int(diff / day)
	if diff%day != 0 {
		days++
	}
	return days
}

// BandFor maps a days-overdue count onto the configured urgency bands.
// Days outside every band map to the empty string.
func BandFor(days int, cfg config.OverdueConfig) string {
	for _, band := range cfg.Bands {
		if days < band.MinDays {
			continue
		}
		if band.MaxDays != nil && days > *band.MaxDays {
			continue
		}
		return band.Band
	}
	return ""
}

// SortByDaysDesc orders items most overdue first. The sort is stable so
// items with equal age keep their source order.
func SortByDaysDesc(items []OverdueItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DaysOverdue > items[j].DaysOverdue
	})
}

// Summarize computes report counters from a normalized item slice.
func Summarize(items []OverdueItem) Summary {
	summary := Summary{
		Total:  len(items),
		ByBand: make(map[string]int),
	}
	for _, item := range items {
		switch item.Kind {
		case KindWork:
			summary.WorkCount++
		case KindTask:
			summary.TaskCount++
		}
		if item.OverdueReason != nil && *item.OverdueReason != "" {
			summary.WithReason++
		}
		if item.Band != "" {
			summary.ByBand[item.Band]++
		}
	}
	return summary
}

// FilterByKind keeps items of the given kind. An empty kind keeps all.
func FilterByKind(items []OverdueItem, kind Kind) []OverdueItem {
	if kind == "" {
		return items
	}
	out := make([]OverdueItem, 0, len(items))
	for _, item := range items {
		if item.Kind == kind {
			out = append(out, item)
		}
	}
	return out
}

// FilterByPriority keeps items of the given priority. An empty priority
// keeps all.
func FilterByPriority(items []OverdueItem, priority workdomain.Priority) []OverdueItem {
	if priority == "" {
		return items
	}
	out := make([]OverdueItem, 0, len(items))
	for _, item := range items {
		if item.Priority == priority {
			out = append(out, item)
		}
	}
	return out
}

// FilterByCustomer keeps items whose customer name matches exactly. An
// empty name keeps all.
func FilterByCustomer(items []OverdueItem, customerName string) []OverdueItem {
	if customerName == "" {
		return items
	}
	out := make([]OverdueItem, 0, len(items))
	for _, item := range items {
		if item.CustomerName == customerName {
			out = append(out, item)
		}
	}
	return out
}
