package pipeline

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"supportlog/internal"
)

// ImportXLSX reads back a workbook written by ExportXLSX, possibly edited by hand.
// Columns are located by header name. A blank technician becomes "Not Informed" and
// a category outside the known set is recomputed from the detail.
func ImportXLSX(r io.Reader) ([]internal.AttendanceRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := exportSheet
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	cols := map[string]int{}
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"service order", "technician"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}
	get := func(row []string, header string) string {
		i, ok := cols[strings.ToLower(header)]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]internal.AttendanceRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		rec := internal.AttendanceRecord{
			Date:           get(row, "Date"),
			ServiceOrderID: get(row, "Service Order"),
			Client:         get(row, "Client"),
			Technician:     get(row, "Technician"),
			Category:       internal.Category(get(row, "Category")),
			Version:        get(row, "Version"),
			Detail:         get(row, "Detail"),
			RawSupport:     get(row, "Original Support (Log)"),
		}
		if rec.Date == "" {
			rec.Date = internal.DateUnknown
		}
		if rec.Technician == "" {
			rec.Technician = internal.TechnicianNotInformed
		}
		if !rec.Category.Valid() {
			rec.Category = Classify(rec.Detail)
		}
		out = append(out, rec)
	}
	return out, nil
}
