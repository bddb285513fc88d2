// Package jobtext composes and cleans the text of job postings.
//
// The composed text feeds document embedding, lexical scoring and the
// cross-encoder, so every function here is deterministic.
package jobtext

import (
	"regexp"
	"strings"
	"unicode"
)

// permittedPunct lists the non-alphanumeric characters that survive cleaning.
const permittedPunct = ".,;:!?()+#/&%@'\"-_"

// sentinels are placeholder values that carry no information.
var sentinels = map[string]struct{}{
	"unknown": {},
	"none":    {},
	"n/a":     {},
	"nan":     {},
	"null":    {},
	"-":       {},
}

var companyRating = regexp.MustCompile(`\s*\d+[.,]\d+\s*$`)

// Clean trims s, replaces characters outside the permitted set with spaces
// and collapses runs of whitespace.
func Clean(s string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case unicode.IsSpace(r):
			return ' '
		case strings.ContainsRune(permittedPunct, r):
			return r
		default:
			return ' '
		}
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

// CleanField cleans s and drops sentinel placeholders such as "Unknown" or "N/A".
func CleanField(s string) string {
	cleaned := Clean(s)
	if IsSentinel(cleaned) {
		return ""
	}
	return cleaned
}

// IsSentinel reports whether s is a placeholder value, ignoring case and surrounding space.
func IsSentinel(s string) bool {
	_, ok := sentinels[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// CleanCompany removes a trailing employer rating, e.g. "Яндекс4.5" -> "Яндекс".
func CleanCompany(s string) string {
	return strings.TrimSpace(companyRating.ReplaceAllString(s, ""))
}

// SplitAdditions splits a list-like tag blob such as "['a', 'b']" into tags.
func SplitAdditions(blob string) []string {
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', '\'', '"':
			return -1
		}
		return r
	}, blob)

	var tags []string
	for _, part := range strings.Split(stripped, ",") {
		if tag := strings.TrimSpace(part); tag != "" && !IsSentinel(tag) {
			tags = append(tags, tag)
		}
	}
	return tags
}
