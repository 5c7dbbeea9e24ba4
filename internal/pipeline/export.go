package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"supportlog/internal"
)

const exportSheet = "Data"

var exportHeaders = []string{
	"Date", "Service Order", "Client", "Technician", "Category", "Version", "Detail", "Original Support (Log)",
}

// maxColWidth is the widest column excelize accepts.
const maxColWidth = 255

func recordRow(r internal.AttendanceRecord) []string {
	return []string{r.Date, r.ServiceOrderID, r.Client, r.Technician, string(r.Category), r.Version, r.Detail, r.RawSupport}
}

func needsTechnicianHighlight(tech string) bool {
	return tech == internal.SupportUnknown || tech == internal.TechnicianNotInformed
}

// ExportXLSX writes records to a single "Data" sheet. Unidentified categories are
// filled red, missing technicians yellow.
func ExportXLSX(records []internal.AttendanceRecord, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return err
	}

	red, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFC7CE"}, Pattern: 1},
		Font: &excelize.Font{Color: "9C0006"},
	})
	if err != nil {
		return err
	}
	yellow, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFEB9C"}, Pattern: 1},
		Font: &excelize.Font{Color: "9C6500"},
	})
	if err != nil {
		return err
	}

	widths := make([]int, len(exportHeaders))
	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return err
		}
		widths[i] = utf8.RuneCountInString(h)
	}

	for i, rec := range records {
		r := i + 2
		for col, value := range recordRow(rec) {
			cell, _ := excelize.CoordinatesToCellName(col+1, r)
			if err := f.SetCellStr(exportSheet, cell, value); err != nil {
				return err
			}
			if n := utf8.RuneCountInString(value); n > widths[col] {
				widths[col] = n
			}
		}
		if rec.Category == internal.CategoryUnidentified {
			cell, _ := excelize.CoordinatesToCellName(5, r)
			if err := f.SetCellStyle(exportSheet, cell, cell, red); err != nil {
				return err
			}
		}
		if needsTechnicianHighlight(rec.Technician) {
			cell, _ := excelize.CoordinatesToCellName(4, r)
			if err := f.SetCellStyle(exportSheet, cell, cell, yellow); err != nil {
				return err
			}
		}
	}

	for i, width := range widths {
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(exportSheet, name, name, float64(min(width+2, maxColWidth))); err != nil {
			return err
		}
	}

	_, err = f.WriteTo(w)
	return err
}

func ExportCSV(records []internal.AttendanceRecord, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeaders); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(recordRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportJSON writes an indented array of records, keeping non-ASCII text as is.
func ExportJSON(records []internal.AttendanceRecord, w io.Writer) error {
	if records == nil {
		records = []internal.AttendanceRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// Export dispatches on format: xlsx, csv or json.
func Export(format string, records []internal.AttendanceRecord, w io.Writer) error {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "xlsx":
		return ExportXLSX(records, w)
	case "csv":
		return ExportCSV(records, w)
	case "json":
		return ExportJSON(records, w)
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}

// ExportFile writes records to path, choosing the format from its extension.
func ExportFile(path string, records []internal.AttendanceRecord) error {
	var buf bytes.Buffer
	if err := Export(filepath.Ext(path), records, &buf); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

type analysisExport struct {
	ID                  int64                       `json:"id"`
	CreatedAt           string                      `json:"createdAt"`
	SourceName          string                      `json:"sourceName"`
	TotalRecords        int                         `json:"totalRecords"`
	DistinctTechnicians int                         `json:"distinctTechnicians"`
	DistinctClients     int                         `json:"distinctClients"`
	DistinctOrders      int                         `json:"distinctOrders"`
	Categories          map[internal.Category]int   `json:"categories"`
	Versions            map[string]int              `json:"versions"`
	User                string                      `json:"user"`
	Notes               *string                     `json:"notes"`
	Records             []internal.AttendanceRecord `json:"records"`
}

// ExportAnalysisJSON renders a stored analysis together with its records.
func ExportAnalysisJSON(a internal.Analysis, records []internal.AttendanceRecord) ([]byte, error) {
	if records == nil {
		records = []internal.AttendanceRecord{}
	}
	payload := analysisExport{
		ID:                  a.ID,
		CreatedAt:           a.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		SourceName:          a.SourceName,
		TotalRecords:        a.TotalRecords,
		DistinctTechnicians: a.DistinctTechnicians,
		DistinctClients:     a.DistinctClients,
		DistinctOrders:      a.DistinctOrders,
		Categories:          a.Categories,
		Versions:            a.Versions,
		User:                a.User,
		Notes:               a.Notes,
		Records:             records,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
