package validator

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Fallback reasons, also used as metric labels.
const (
	ReasonError      = "error"
	ReasonTimeout    = "timeout"
	ReasonEmpty      = "empty"
	ReasonMalformed  = "malformed"
	ReasonOutOfRange = "out_of_range"
)

// Order is the parsed outcome of an LLM ranking response.
type Order struct {
	// Indices is a permutation prefix of [0, n), at most topK long.
	Indices []int

	// Fallback is true when no usable index was found and Indices is the identity order.
	Fallback bool

	// Reason names the degradation, if any. A partial response with some
	// out-of-range indices keeps its valid indices and reports ReasonOutOfRange.
	Reason string
}

var numberRe = regexp.MustCompile(`-?\d+`)

// ParseOrder turns a model response into a ranking of n items. The response
// numbers items from 1. Out-of-range and repeated numbers are dropped (first
// mention wins); items the model did not mention follow in their original order.
func ParseOrder(response string, n, topK int) Order {
	if topK > n || topK < 0 {
		topK = n
	}

	response = strings.TrimSpace(response)
	if response == "" {
		return identity(n, topK, ReasonEmpty)
	}

	mentioned, ok := extractNumbers(response)
	if !ok {
		return identity(n, topK, ReasonMalformed)
	}

	seen := make([]bool, n)
	indices := make([]int, 0, n)
	outOfRange := false
	for _, num := range mentioned {
		idx := num - 1
		if idx < 0 || idx >= n {
			outOfRange = true
			continue
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true
		indices = append(indices, idx)
	}

	if len(indices) == 0 {
		reason := ReasonMalformed
		if outOfRange {
			reason = ReasonOutOfRange
		}
		return identity(n, topK, reason)
	}

	for i := range n {
		if !seen[i] {
			indices = append(indices, i)
		}
	}

	order := Order{Indices: indices[:topK]}
	if outOfRange {
		order.Reason = ReasonOutOfRange
	}
	return order
}

// extractNumbers prefers a JSON array of integers and falls back to every
// integer in the text.
func extractNumbers(response string) ([]int, bool) {
	if start, end := strings.Index(response, "["), strings.LastIndex(response, "]"); start != -1 && end > start {
		var arr []int
		if err := json.Unmarshal([]byte(response[start:end+1]), &arr); err == nil && len(arr) > 0 {
			return arr, true
		}
	}

	matches := numberRe.FindAllString(response, -1)
	if len(matches) == 0 {
		return nil, false
	}
	nums := make([]int, 0, len(matches))
	for _, m := range matches {
		v, err := strconv.Atoi(m)
		if err != nil {
			// Too large for int; certainly out of range.
			v = -1
		}
		nums = append(nums, v)
	}
	return nums, true
}

func identity(n, topK int, reason string) Order {
	indices := make([]int, topK)
	for i := range indices {
		indices[i] = i
	}
	return Order{Indices: indices, Fallback: true, Reason: reason}
}
