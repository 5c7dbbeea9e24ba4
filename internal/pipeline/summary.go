package pipeline

import (
	"sort"
	"time"

	"supportlog/internal"
)

// Summarize computes the aggregate metadata stored alongside a parsed batch.
func Summarize(source string, records []internal.AttendanceRecord, user string) internal.Analysis {
	techs := map[string]struct{}{}
	clients := map[string]struct{}{}
	orders := map[string]struct{}{}
	categories := map[internal.Category]int{}
	versions := map[string]int{}

	for _, r := range records {
		techs[r.Technician] = struct{}{}
		clients[r.Client] = struct{}{}
		orders[r.ServiceOrderID] = struct{}{}
		categories[r.Category]++
		versions[r.Version]++
	}

	return internal.Analysis{
		CreatedAt:           time.Now(),
		SourceName:          source,
		TotalRecords:        len(records),
		DistinctTechnicians: len(techs),
		DistinctClients:     len(clients),
		DistinctOrders:      len(orders),
		Categories:          categories,
		Versions:            versions,
		User:                user,
	}
}

// SummarizeByTechnician counts distinct orders, distinct clients and error
// attendances per technician, sorted by technician name.
func SummarizeByTechnician(records []internal.AttendanceRecord) []internal.TechnicianSummary {
	type acc struct {
		orders  map[string]struct{}
		clients map[string]struct{}
		errors  int
	}
	byTech := map[string]*acc{}
	for _, r := range records {
		a, ok := byTech[r.Technician]
		if !ok {
			a = &acc{orders: map[string]struct{}{}, clients: map[string]struct{}{}}
			byTech[r.Technician] = a
		}
		a.orders[r.ServiceOrderID] = struct{}{}
		a.clients[r.Client] = struct{}{}
		if r.Category == internal.CategoryError {
			a.errors++
		}
	}

	out := make([]internal.TechnicianSummary, 0, len(byTech))
	for name, a := range byTech {
		out = append(out, internal.TechnicianSummary{
			Technician:     name,
			DistinctOrders: len(a.orders),
			Clients:        len(a.clients),
			Errors:         a.errors,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Technician < out[j].Technician })
	return out
}
