package pipeline

import (
	"regexp"
	"strings"

	"supportlog/internal"
)

var (
	reClient  = regexp.MustCompile(`(?i)\[SAMUEL\s+(.*?)(?:\n|$)`)
	reSupport = regexp.MustCompile(`(?i)Suporte[\s:.-]*([^\n\r]+)`)
	reDetail  = regexp.MustCompile(`(?is)Atendiment.*?\s+(.*?)(?:Internews:|$)`)
	reVersion = regexp.MustCompile(`(?i)Internews:\s*([\d.]+)`)
)

// BlockFields holds the raw fields of one block before technician resolution.
type BlockFields struct {
	Date           string
	ServiceOrderID string
	Client         string
	RawSupport     string
	Detail         string
	Version        string
}

// ExtractFields reads each field of a block independently. A missing field falls
// back to its sentinel; extraction never fails.
func ExtractFields(block string) BlockFields {
	f := BlockFields{
		Date:           internal.DateUnknown,
		ServiceOrderID: serviceOrderID(block),
		Client:         strings.ToUpper(internal.ClientUnknown),
		RawSupport:     internal.SupportUnknown,
	}

	if m := reDate.FindString(block); m != "" {
		f.Date = m
	}
	if m := reClient.FindStringSubmatch(block); m != nil {
		f.Client = strings.ToUpper(strings.TrimSpace(m[1]))
	}
	if m := reSupport.FindStringSubmatch(block); m != nil {
		f.RawSupport = m[1]
	}
	f.RawSupport = strings.Trim(f.RawSupport, " .")
	if m := reDetail.FindStringSubmatch(block); m != nil {
		f.Detail = strings.TrimSpace(m[1])
	}
	if m := reVersion.FindStringSubmatch(block); m != nil {
		f.Version = m[1]
	}
	return f
}

func serviceOrderID(block string) string {
	if len(block) < 6 {
		return block
	}
	return block[:6]
}
