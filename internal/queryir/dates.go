package queryir

import (
	"strings"
	"time"
)

// dateLayouts are the accepted date forms, most specific first.
var dateLayouts = []struct {
	layout  string
	hasTime bool
}{
	{"2006-01-02T15:04:05-0700", true},
	{"2006-01-02T15:04:05Z07:00", true},
	{"2006-01-02T15:04:05", true},
	{"2006-01-02", false},
}

// ParseDate reads an ISO 8601 date value: YYYY-MM-DD, YYYY-MM-DDThh:mm:ss
// or YYYY-MM-DDThh:mm:ss with a zone. Times carrying a zone are converted
// to UTC. hasTime reports whether a time of day was present.
func ParseDate(value string) (t time.Time, hasTime bool, ok bool) {
	value = strings.TrimSpace(value)
	for _, l := range dateLayouts {
		parsed, err := time.Parse(l.layout, value)
		if err != nil {
			continue
		}
		return parsed.UTC(), l.hasTime, true
	}
	return time.Time{}, false, false
}
