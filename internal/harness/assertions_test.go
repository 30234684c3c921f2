package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deskquery/internal/queryir"
	"github.com/roach88/deskquery/internal/testutil"
)

// sampleTrace records the events of "title:jazz -blues".
func sampleTrace() []testutil.Event {
	r := testutil.NewRecorder(nil)
	r.SetCollector(queryir.DefaultCollector())
	r.OnSelection(queryir.NewSelection(queryir.Equals, []string{"title"}, []string{"jazz"}, queryir.String, queryir.DefaultModifiers()))
	r.SetCollector(queryir.Collector{Kind: queryir.And})
	negated := queryir.DefaultModifiers()
	negated.Negate = true
	r.OnSelection(queryir.NewSelection(queryir.FullText, nil, []string{"blues"}, queryir.String, negated))
	return r.Events()
}

func TestAssertSelectionContains(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   bool
	}{
		{"kind only", Assertion{Kind: "fullText"}, false},
		{"fields and values", Assertion{Kind: "equals", Fields: []string{"Title"}, Values: []string{"jazz"}}, false},
		{"value type", Assertion{Kind: "equals", ValueType: "string"}, false},
		{"negated", Assertion{Kind: "fullText", Values: []string{"blues"}, Negate: boolPtr(true)}, false},
		{"wrong kind", Assertion{Kind: "contains"}, true},
		{"wrong field", Assertion{Kind: "equals", Fields: []string{"author"}}, true},
		{"wrong value", Assertion{Kind: "fullText", Values: []string{"jazz"}}, true},
		{"wrong value type", Assertion{Kind: "equals", ValueType: "phrase"}, true},
		{"wrong negation", Assertion{Kind: "equals", Negate: boolPtr(true)}, true},
	}

	trace := sampleTrace()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.assertion.Type = AssertSelectionContains
			err := assertSelectionContains(trace, tt.assertion)
			if tt.wantErr {
				require.Error(t, err)
				var ae *AssertionError
				require.ErrorAs(t, err, &ae)
				assert.Equal(t, AssertSelectionContains, ae.Type)
				assert.Equal(t, "not found in trace", ae.Actual)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAssertSelectionOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertSelectionOrder(trace, Assertion{Values: []string{"jazz", "blues"}}))

	err := assertSelectionOrder(trace, Assertion{Values: []string{"blues", "jazz"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"blues" (pos 2) should be before "jazz" (pos 1)`)

	err = assertSelectionOrder(trace, Assertion{Values: []string{"jazz", "rock"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing selection for "rock"`)
}

func TestAssertEventCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertEventCount(trace, Assertion{Event: testutil.EventSetCollector, Count: 2}))
	assert.NoError(t, assertEventCount(trace, Assertion{Event: testutil.EventOnQuery, Count: 0}))

	err := assertEventCount(trace, Assertion{Event: testutil.EventOnSelection, Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 occurrences of on_selection")
	assert.Contains(t, err.Error(), "2 occurrences")
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := assertEventCount(sampleTrace(), Assertion{Event: testutil.EventOnQuery, Count: 1})
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: event_count")
	assert.Contains(t, msg, "Full trace:")
	assert.Contains(t, msg, "[1] set_collector and negate=false")
	assert.Contains(t, msg, `[2] on_selection equals fields=[title] values=["jazz"] string negate=false`)
	assert.Contains(t, msg, `[4] on_selection fullText fields=[] values=["blues"] string negate=true`)
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Events = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertSelectionContains, Kind: "equals"},
		{Type: AssertEventCount, Event: testutil.EventOnSelection, Count: 2},
		{Type: AssertSelectionOrder, Values: []string{"blues", "jazz"}},
		{Type: "final_state"},
	})

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "selection_order")
	assert.Contains(t, errs[1], `unknown assertion type "final_state"`)
}
