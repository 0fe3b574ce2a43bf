// Package view filters, sorts and pages the merged dashboard list. Everything here is
// a pure function of its inputs; the current time is passed in.
package view

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"learner-dashboard/internal/domain"
)

const DefaultPageSize = 10

// DateStatus buckets an item by its date range relative to now.
type DateStatus string

const (
	DateUpcoming DateStatus = "Upcoming"
	DateOpen     DateStatus = "Open"
	DateEnded    DateStatus = "Ended"
)

// ParseDateStatus accepts the bucket names case-insensitively.
func ParseDateStatus(s string) (DateStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "upcoming":
		return DateUpcoming, true
	case "open":
		return DateOpen, true
	case "ended":
		return DateEnded, true
	}
	return "", false
}

// DateBucket is Upcoming when start is after now, Ended when end is before now,
// and Open otherwise (including when both are unknown).
func DateBucket(start, end *time.Time, now time.Time) DateStatus {
	if start != nil && start.After(now) {
		return DateUpcoming
	}
	if end != nil && end.Before(now) {
		return DateEnded
	}
	return DateOpen
}

const unknownRank = 999

func dateRank(d DateStatus) int {
	switch d {
	case DateUpcoming:
		return 1
	case DateOpen:
		return 2
	case DateEnded:
		return 3
	}
	return unknownRank
}

func statusRank(s domain.ProgressStatus) int {
	switch s {
	case domain.StatusNotStarted:
		return 1
	case domain.StatusInProgress:
		return 2
	case domain.StatusCompleted:
		return 3
	}
	return unknownRank
}

// Filters selects dashboard items. Zero values match everything.
type Filters struct {
	// Type is empty for all content types.
	Type         domain.ItemType
	Statuses     []domain.ProgressStatus
	DateStatuses []DateStatus
	Query        string
}

// ActiveCount is the number of selected filters shown on the filter button.
// The search query is not counted.
func (f Filters) ActiveCount() int {
	n := len(f.Statuses) + len(f.DateStatuses)
	if f.Type != "" {
		n++
	}
	return n
}

func (f Filters) match(item domain.DashboardItem, bucket DateStatus) bool {
	if f.Type != "" && item.Type != f.Type {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, item.Status()) {
		return false
	}
	if len(f.DateStatuses) > 0 && !slices.Contains(f.DateStatuses, bucket) {
		return false
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		if !strings.Contains(strings.ToLower(item.DisplayName()), strings.ToLower(q)) {
			return false
		}
	}
	return true
}

// Request is one composition request. Page is 1-based.
type Request struct {
	Filters  Filters
	Page     int
	PageSize int
	Now      time.Time
	// Locale orders names; the zero Tag means English.
	Locale language.Tag
}

// Page is one slice of the filtered, sorted list.
type Page struct {
	Items        []domain.DashboardItem `json:"items"`
	TotalCount   int                    `json:"totalCount"`
	PageCount    int                    `json:"pageCount"`
	ShowingCount int                    `json:"showingCount"`
	Page         int                    `json:"page"`
	PageSize     int                    `json:"pageSize"`
}

type ranked struct {
	item   domain.DashboardItem
	bucket DateStatus
	name   string
}

// ComposeView filters items, sorts them by date bucket, progress status and name,
// then returns the requested page. Items equal on all three keys keep their input
// order. A page past the end is empty.
func ComposeView(items []domain.DashboardItem, req Request) Page {
	size := req.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	tag := req.Locale
	if tag == language.Und {
		tag = language.English
	}
	col := collate.New(tag, collate.IgnoreCase)

	kept := make([]ranked, 0, len(items))
	for _, it := range items {
		start, end := it.Dates()
		bucket := DateBucket(start, end, now)
		if !req.Filters.match(it, bucket) {
			continue
		}
		kept = append(kept, ranked{item: it, bucket: bucket, name: strings.ToLower(it.DisplayName())})
	}

	slices.SortStableFunc(kept, func(a, b ranked) int {
		if d := dateRank(a.bucket) - dateRank(b.bucket); d != 0 {
			return d
		}
		if d := statusRank(a.item.Status()) - statusRank(b.item.Status()); d != 0 {
			return d
		}
		return col.CompareString(a.name, b.name)
	})

	total := len(kept)
	out := Page{
		Items:      []domain.DashboardItem{},
		TotalCount: total,
		PageCount:  (total + size - 1) / size,
		Page:       page,
		PageSize:   size,
	}
	lo := (page - 1) * size
	if lo >= total {
		return out
	}
	hi := min(lo+size, total)
	for _, r := range kept[lo:hi] {
		out.Items = append(out.Items, r.item)
	}
	out.ShowingCount = len(out.Items)
	return out
}
