package pipeline

import (
	"strings"

	"supportlog/internal"
	"supportlog/internal/util"
)

var categoryKeywords = []struct {
	keyword  string
	category internal.Category
}{
	{"treinamento", internal.CategoryTraining},
	{"erro", internal.CategoryError},
	{"rotina", internal.CategoryRoutine},
}

// Classify maps a detail narrative to its category. Keywords are checked in
// priority order, so training wins over error and error over routine.
func Classify(detail string) internal.Category {
	text := util.NormalizeBase(detail)
	for _, kw := range categoryKeywords {
		if strings.Contains(text, kw.keyword) {
			return kw.category
		}
	}
	return internal.CategoryUnidentified
}
