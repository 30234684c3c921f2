package builder

import (
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/roach88/deskquery/internal/queryir"
)

// Range bounds used when a comparison leaves one side open.
const (
	minDay  = "19700101"
	maxDay  = "20991231"
	minTime = "000000"
	maxTime = "235959"
	minSize = "0"
	maxSize = "9223372036854775807"
)

// DateRange is the pair of value-slot ranges a date comparison folds into.
// Time is empty when the input had no time of day.
type DateRange struct {
	Day  string
	Time string
}

// DateRangeFor folds a date value and a selection kind into day and time
// ranges. Upper-bound comparisons run from the epoch to the date, lower-bound
// comparisons from the date to the end of the supported calendar, anything
// else covers the single day.
func DateRangeFor(value string, kind queryir.SelectionKind) (DateRange, bool) {
	t, hasTime, ok := queryir.ParseDate(value)
	if !ok {
		return DateRange{}, false
	}
	day := t.Format("20060102")
	clock := t.Format("150405")

	var r DateRange
	switch {
	case kind.IsComparison() && kind.IsUpperBound():
		r.Day = minDay + ".." + day
		if hasTime {
			r.Time = minTime + ".." + clock
		}
	case kind.IsComparison():
		r.Day = day + ".." + maxDay
		if hasTime {
			r.Time = clock + ".." + maxTime
		}
	default:
		r.Day = day + ".." + day
	}
	return r, true
}

// boundRange renders a half-open comparison as "lo..hi".
func boundRange(kind queryir.SelectionKind, value, lo, hi string) string {
	if kind.IsUpperBound() {
		return lo + ".." + value
	}
	return value + ".." + hi
}

// sizeRange turns a size comparison into a byte range. Sizes may be plain
// integers or humanized ("10MB", "1.5 GiB").
func sizeRange(kind queryir.SelectionKind, value string) (string, bool) {
	n, err := humanize.ParseBytes(strings.TrimSpace(value))
	if err != nil {
		return "", false
	}
	return boundRange(kind, strconv.FormatUint(n, 10), minSize, maxSize), true
}

// digitRange turns a comparison on a fixed-width digit slot into a range.
func digitRange(kind queryir.SelectionKind, value string, width int, lo, hi string) (string, bool) {
	value = strings.TrimSpace(value)
	if len(value) != width {
		return "", false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return boundRange(kind, value, lo, hi), true
}
