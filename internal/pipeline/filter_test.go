package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"supportlog/internal"
)

func TestFilterRecords(t *testing.T) {
	records := fixtureRecords(t)

	cases := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"empty filter", Filter{}, 6},
		{"technician", Filter{Technicians: []string{"Ricardo"}}, 1},
		{"category", Filter{Categories: []internal.Category{internal.CategoryError, internal.CategoryTraining}}, 4},
		{"client", Filter{Clients: []string{"ACME CORP"}}, 1},
		{"search any field", Filter{Search: "nota fiscal"}, 2},
		{"search folds case", Filter{Search: "mercado"}, 2},
		{"search sees raw support", Filter{Categories: []internal.Category{internal.CategoryTraining}, Search: "roberto"}, 2},
		{"combined", Filter{Categories: []internal.Category{internal.CategoryTraining}, Technicians: []string{"Roberto Silva"}}, 1},
		{"no hit", Filter{Search: "inexistente"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Len(t, FilterRecords(records, tc.filter), tc.want)
		})
	}
}
