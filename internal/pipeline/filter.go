package pipeline

import (
	"slices"
	"strings"

	"supportlog/internal"
	"supportlog/internal/util"
)

// Filter narrows a record set. Empty lists do not restrict; Search matches any
// field case-insensitively.
type Filter struct {
	Technicians []string
	Categories  []internal.Category
	Clients     []string
	Search      string
}

func (f Filter) Match(r internal.AttendanceRecord) bool {
	if len(f.Technicians) > 0 && !slices.Contains(f.Technicians, r.Technician) {
		return false
	}
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, r.Category) {
		return false
	}
	if len(f.Clients) > 0 && !slices.Contains(f.Clients, r.Client) {
		return false
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		for _, field := range recordRow(r) {
			if util.ContainsFold(field, q) {
				return true
			}
		}
		return false
	}
	return true
}

func FilterRecords(records []internal.AttendanceRecord, f Filter) []internal.AttendanceRecord {
	out := make([]internal.AttendanceRecord, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
