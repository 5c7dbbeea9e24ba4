package pipeline

import (
	"supportlog/internal"
	"supportlog/internal/catalog"
)

// Parser turns support log text into attendance records. It only reads its
// catalog, so one Parser can serve concurrent documents.
type Parser struct {
	normalizer *Normalizer
}

func NewParser(cat internal.TechnicianCatalog) *Parser {
	return &Parser{normalizer: NewNormalizer(cat)}
}

// Parse emits one record per technician per block, in block order and then
// fragment order. Text without blocks yields an empty slice.
func (p *Parser) Parse(text string) []internal.AttendanceRecord {
	blocks := Segment(text)
	records := make([]internal.AttendanceRecord, 0, len(blocks))
	for _, block := range blocks {
		f := ExtractFields(block)
		category := Classify(f.Detail)
		for _, tech := range p.normalizer.Normalize(f.RawSupport) {
			records = append(records, internal.AttendanceRecord{
				Date:           f.Date,
				ServiceOrderID: f.ServiceOrderID,
				Client:         f.Client,
				Technician:     tech,
				Category:       category,
				Version:        f.Version,
				Detail:         f.Detail,
				RawSupport:     f.RawSupport,
			})
		}
	}
	return records
}

// Normalize exposes the parser's technician resolution.
func (p *Parser) Normalize(raw string) []string {
	return p.normalizer.Normalize(raw)
}

var defaultParser = NewParser(catalog.Default())

// Parse uses the built-in technician catalog.
func Parse(text string) []internal.AttendanceRecord {
	return defaultParser.Parse(text)
}
