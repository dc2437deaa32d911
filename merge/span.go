package merge

import (
	"regexp"
	"strconv"

	"narrative-agent/state"
)

// Evidence spans cite line positions like "L23-L31"; the leading line number
// is the ordering key.
var spanPattern = regexp.MustCompile(`L(\d+)`)

// SpanRank extracts a coarse document position from an evidence span, smaller
// meaning earlier. Spans without a recognizable line marker rank as unknown
// and sort after any span that has one.
func SpanRank(span string) int64 {
	m := spanPattern.FindStringSubmatch(span)
	if m == nil {
		return state.UnknownRank
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return state.UnknownRank
	}
	return n
}
