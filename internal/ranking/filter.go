package ranking

import "strings"

// MatchesAnyTag reports whether additions contains at least one of tags as a
// case-sensitive substring. An empty tag list matches everything.
func MatchesAnyTag(additions string, tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, tag := range tags {
		if tag != "" && strings.Contains(additions, tag) {
			return true
		}
	}
	return false
}
