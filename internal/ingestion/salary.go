package ingestion

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/nursmen/neuralhire/internal/repository"
)

// negotiableMarkers mark a salary given "by agreement".
var negotiableMarkers = []string{
	"по договорённости",
	"по договоренности",
	"договорная",
	"не указана",
	"negotiable",
	"договор",
}

var digitRun = regexp.MustCompile(`\d+`)

// ParseSalary converts a raw money cell into a monthly salary. Empty cells
// yield nil. Negotiable, unparsable and out-of-range values yield
// repository.SalaryNegotiable.
func ParseSalary(raw string) *int64 {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" || s == "nan" {
		return nil
	}

	negotiable := repository.SalaryNegotiable
	for _, marker := range negotiableMarkers {
		if strings.Contains(s, marker) {
			return &negotiable
		}
	}

	// Digit groups are separated by spaces, e.g. "150 000".
	compact := strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "").Replace(s)
	match := digitRun.FindString(compact)
	if match == "" {
		return &negotiable
	}
	v, err := strconv.ParseInt(match, 10, 64)
	if err != nil || v > math.MaxInt32 {
		return &negotiable
	}
	return &v
}
