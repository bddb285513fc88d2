package jobtext

import "strings"

// fieldSeparator joins composed fields.
const fieldSeparator = ". "

// Fields are the structured job fields that make up its text.
type Fields struct {
	Title     string
	Knowledge string
	City      string
	Company   string
	Additions string
}

// Compose builds the canonical text of a job: title, knowledge, city,
// company and additions in that order, each cleaned independently, empty
// fields skipped.
func Compose(f Fields) string {
	parts := make([]string, 0, 5)
	for _, field := range []string{
		f.Title,
		f.Knowledge,
		f.City,
		f.Company,
		strings.Join(SplitAdditions(f.Additions), ", "),
	} {
		if cleaned := strings.TrimRight(CleanField(field), ".;, "); cleaned != "" {
			parts = append(parts, cleaned)
		}
	}
	return strings.Join(parts, fieldSeparator)
}

// Tokens returns the set of lowercase words of the cleaned text, with edge
// punctuation trimmed.
func Tokens(s string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(Clean(s)))
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		word = strings.Trim(word, permittedPunct)
		if word != "" {
			set[word] = struct{}{}
		}
	}
	return set
}
