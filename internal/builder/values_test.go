package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deskquery/internal/queryir"
)

func TestDateRangeFor(t *testing.T) {
	tests := []struct {
		name  string
		value string
		kind  queryir.SelectionKind
		want  DateRange
	}{
		{"less than day", "2009-05-01", queryir.LessThan, DateRange{Day: "19700101..20090501"}},
		{"less than equals day", "2009-05-01", queryir.LessThanEquals, DateRange{Day: "19700101..20090501"}},
		{"greater than day", "2009-05-01", queryir.GreaterThan, DateRange{Day: "20090501..20991231"}},
		{"less than with time", "2009-05-01T08:15:00", queryir.LessThan, DateRange{Day: "19700101..20090501", Time: "000000..081500"}},
		{"greater than with time", "2009-05-01T08:15:00", queryir.GreaterThanEquals, DateRange{Day: "20090501..20991231", Time: "081500..235959"}},
		{"equals covers the day", "2009-05-01T08:15:00", queryir.Equals, DateRange{Day: "20090501..20090501"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DateRangeFor(tt.value, tt.kind)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := DateRangeFor("not a date", queryir.LessThan)
	assert.False(t, ok)
}

func TestSizeRange(t *testing.T) {
	got, ok := sizeRange(queryir.LessThan, "1024")
	require.True(t, ok)
	assert.Equal(t, "0..1024", got)

	got, ok = sizeRange(queryir.GreaterThan, "10MB")
	require.True(t, ok)
	assert.Equal(t, "10000000..9223372036854775807", got)

	got, ok = sizeRange(queryir.GreaterThanEquals, "2 KiB")
	require.True(t, ok)
	assert.Equal(t, "2048..9223372036854775807", got)

	_, ok = sizeRange(queryir.LessThan, "huge")
	assert.False(t, ok)
}

func TestDigitRange(t *testing.T) {
	got, ok := digitRange(queryir.LessThan, "20090501", 8, minDay, maxDay)
	require.True(t, ok)
	assert.Equal(t, "19700101..20090501", got)

	_, ok = digitRange(queryir.LessThan, "2009050", 8, minDay, maxDay)
	assert.False(t, ok)

	_, ok = digitRange(queryir.LessThan, "2009-5-1", 8, minDay, maxDay)
	assert.False(t, ok)
}
