package state

import (
	"strconv"
	"strings"
)

// UnknownRank is the sentinel for "position unknown, sorts last", shared by
// event ordering and evidence-span ranking.
const UnknownRank int64 = 1_000_000_000

// Confidence is an extraction confidence in [0, 1]. Oracle output is not
// trusted to be well typed: JSON numbers, numeric strings, null, and garbage
// all decode without error, with anything unparsable collapsing to 0.
type Confidence float64

func (c *Confidence) UnmarshalJSON(data []byte) error {
	*c = Confidence(lenientFloat(data, 0))
	return nil
}

// EventOrder is a document-relative sequencing hint, decoded with the same
// leniency as Confidence; unparsable values collapse to the unknown sentinel.
type EventOrder int64

func (o *EventOrder) UnmarshalJSON(data []byte) error {
	*o = EventOrder(lenientFloat(data, float64(UnknownRank)))
	return nil
}

// lenientFloat parses a raw JSON value as a number, accepting quoted numeric
// strings, and returns fallback for null or anything unparsable.
func lenientFloat(data []byte, fallback float64) float64 {
	s := strings.TrimSpace(string(data))
	s = strings.Trim(s, `"`)
	if s == "" || s == "null" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}
