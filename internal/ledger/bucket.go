package ledger

import (
	"encoding/json"
	"strconv"
	"strings"
)

// MinuteBuckets maps bucket slots to token durations in minutes.
var MinuteBuckets = [NumSlots]int{15, 30, 45, 60}

// NumSlots is the number of duration slots per category.
const NumSlots = 4

// Bucket holds token counts for the four durations of one category.
// Counts are never negative.
type Bucket [NumSlots]int

// ParseCount converts a raw string to a token count using the lenient
// policy inherited from the legacy file format: unparsable input and
// negative values both become 0. Callers never see an error.
func ParseCount(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// CoerceCount applies the same lenient policy to a decoded JSON value:
// numbers are truncated to int, numeric strings are parsed, everything
// else (booleans, nulls, objects, negatives) becomes 0.
func CoerceCount(v interface{}) int {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0
		}
		return int(n)
	case int:
		if n < 0 {
			return 0
		}
		return n
	case json.Number:
		return ParseCount(n.String())
	case string:
		return ParseCount(n)
	default:
		return 0
	}
}

// CoerceSlices converts a freshly decoded JSON payload of category →
// values into the int slices FromSlices expects, coercing every element.
func CoerceSlices(raw map[string][]interface{}) map[string][]int {
	out := make(map[string][]int, len(raw))
	for key, vals := range raw {
		ints := make([]int, len(vals))
		for i, v := range vals {
			ints[i] = CoerceCount(v)
		}
		out[key] = ints
	}
	return out
}

// NormalizeBucket converts an arbitrary int slice into a valid Bucket:
// extra values are dropped, missing values become 0, negatives clamp to 0.
func NormalizeBucket(values []int) Bucket {
	var b Bucket
	for i := 0; i < NumSlots && i < len(values); i++ {
		if values[i] > 0 {
			b[i] = values[i]
		}
	}
	return b
}

// Slice returns the bucket as a fresh []int, convenient for JSON payloads.
func (b Bucket) Slice() []int {
	out := make([]int, NumSlots)
	copy(out, b[:])
	return out
}
