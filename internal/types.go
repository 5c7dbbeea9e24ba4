package internal

import "time"

type Category string

const (
	CategoryTraining     Category = "Training"
	CategoryError        Category = "Error"
	CategoryRoutine      Category = "Routine"
	CategoryUnidentified Category = "Unidentified"
)

// Categories lists every category in classification priority order.
func Categories() []Category {
	return []Category{CategoryTraining, CategoryError, CategoryRoutine, CategoryUnidentified}
}

func (c Category) Valid() bool {
	switch c {
	case CategoryTraining, CategoryError, CategoryRoutine, CategoryUnidentified:
		return true
	default:
		return false
	}
}

const (
	DateUnknown           = "N/D"
	ClientUnknown         = "Client Not Identified"
	SupportUnknown        = "Nao Informado"
	TechnicianNotInformed = "Not Informed"
)

type DocumentSource string

const (
	SourceText  DocumentSource = "txt"
	SourcePDF   DocumentSource = "pdf"
	SourceHTML  DocumentSource = "html"
	SourceEmail DocumentSource = "eml"
)

// AttendanceRecord is one technician's share of one attendance block.
type AttendanceRecord struct {
	Date           string   `json:"date"`
	ServiceOrderID string   `json:"serviceOrderId"`
	Client         string   `json:"client"`
	Technician     string   `json:"technician"`
	Category       Category `json:"category"`
	Version        string   `json:"version"`
	Detail         string   `json:"detail"`
	RawSupport     string   `json:"rawSupport"`
}

type NormalizationRule struct {
	Key       string `json:"key" yaml:"key" validate:"required,lowercase,ascii"`
	Canonical string `json:"name" yaml:"name" validate:"required"`
}

type TechnicianCatalog struct {
	Rules    []NormalizationRule `json:"rules" yaml:"rules" validate:"required,min=1,dive"`
	Official []string            `json:"official" yaml:"official" validate:"dive,required"`
}

type LogDocument struct {
	Name   string
	Source DocumentSource
	Text   string
}

type Analysis struct {
	ID                  int64
	CreatedAt           time.Time
	SourceName          string
	TotalRecords        int
	DistinctTechnicians int
	DistinctClients     int
	DistinctOrders      int
	Categories          map[Category]int
	Versions            map[string]int
	User                string
	Notes               *string
	EmailID             *int
}

type GlobalStats struct {
	TotalAnalyses       int `json:"totalAnalyses"`
	TotalRecords        int `json:"totalRecords"`
	DistinctTechnicians int `json:"distinctTechnicians"`
	DistinctClients     int `json:"distinctClients"`
}

type TechnicianSummary struct {
	Technician     string
	DistinctOrders int
	Clients        int
	Errors         int
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}
