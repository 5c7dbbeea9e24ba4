package pipeline

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	reBlockMarker = regexp.MustCompile(`\d{6}\s+\d{6}`)
	reDate        = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)
)

const (
	reasonEmpty    = "empty document"
	reasonNoMarker = "invalid format: service order marker (XXXXXX XXXXXX) not found"
	reasonNoDate   = "invalid format: date (DD/MM/YYYY) not found"
	reasonNoBlocks = "no attendance block found"
)

// ValidationError reports why a document was rejected before parsing.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "document rejected: " + e.Reason
}

// Validate checks the structural markers a support log needs before it can be parsed.
// It never fails; the message explains the verdict either way.
func Validate(text string) (bool, string) {
	if strings.TrimSpace(text) == "" {
		return false, reasonEmpty
	}
	if !reBlockMarker.MatchString(text) {
		return false, reasonNoMarker
	}
	if !reDate.MatchString(text) {
		return false, reasonNoDate
	}
	blocks := Segment(text)
	if len(blocks) == 0 {
		return false, reasonNoBlocks
	}
	return true, fmt.Sprintf("valid document: %d block(s) found", len(blocks))
}

// ValidateErr is Validate for callers that want an error. The error is a *ValidationError.
func ValidateErr(text string) error {
	ok, msg := Validate(text)
	if ok {
		return nil
	}
	return &ValidationError{Reason: msg}
}
