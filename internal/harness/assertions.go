package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/deskquery/internal/queryir"
	"github.com/roach88/deskquery/internal/testutil"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string           // Assertion type for categorization
	Expected string           // Human-readable expected outcome
	Actual   string           // Human-readable actual outcome
	Trace    []testutil.Event // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, FormatEvent(event))
	}

	return buf.String()
}

// FormatEvent renders one event on a single line.
func FormatEvent(e testutil.Event) string {
	switch e.Type {
	case testutil.EventSetCollector:
		return fmt.Sprintf("set_collector %s negate=%t", e.Collector.Kind, e.Collector.Negate)
	case testutil.EventOnQuery:
		return fmt.Sprintf("on_query content=%q source=%q", e.Content, e.Source)
	case testutil.EventOnSelection:
		s := e.Selection
		return fmt.Sprintf("on_selection %s fields=%v values=%q %s negate=%t",
			s.Kind, s.FieldNames, s.FieldValues, s.ValueType, s.Modifiers.Negate)
	}
	return e.Type
}

// selections returns the recorded selections in order.
func selections(trace []testutil.Event) []queryir.Selection {
	var out []queryir.Selection
	for _, e := range trace {
		if e.Type == testutil.EventOnSelection {
			out = append(out, e.Selection)
		}
	}
	return out
}

// matchSelection checks a selection against the parts of the assertion
// that are set. Field names are compared after normalisation.
func matchSelection(sel queryir.Selection, a Assertion) bool {
	if sel.Kind.String() != a.Kind {
		return false
	}
	if a.Fields != nil && !slices.Equal(sel.FieldNames, queryir.NormalizeFieldNames(a.Fields)) {
		return false
	}
	if a.Values != nil && !slices.Equal(sel.FieldValues, a.Values) {
		return false
	}
	if a.ValueType != "" && sel.ValueType.String() != a.ValueType {
		return false
	}
	if a.Negate != nil && sel.Modifiers.Negate != *a.Negate {
		return false
	}
	return true
}

// assertSelectionContains checks that some selection matches the assertion.
func assertSelectionContains(trace []testutil.Event, assertion Assertion) error {
	for _, sel := range selections(trace) {
		if matchSelection(sel, assertion) {
			return nil
		}
	}

	expected := assertion.Kind
	if assertion.Fields != nil {
		expected += fmt.Sprintf(" fields=%v", assertion.Fields)
	}
	if assertion.Values != nil {
		expected += fmt.Sprintf(" values=%q", assertion.Values)
	}
	if assertion.ValueType != "" {
		expected += " " + assertion.ValueType
	}
	if assertion.Negate != nil {
		expected += fmt.Sprintf(" negate=%t", *assertion.Negate)
	}

	return &AssertionError{
		Type:     AssertSelectionContains,
		Expected: "selection " + expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertSelectionOrder checks that selections whose first value is listed
// appear in the listed order. Other selections may appear in between.
func assertSelectionOrder(trace []testutil.Event, assertion Assertion) error {
	positions := make(map[string]int)
	for i, sel := range selections(trace) {
		if len(sel.FieldValues) == 0 {
			continue
		}
		v := sel.FieldValues[0]
		if _, seen := positions[v]; !seen {
			positions[v] = i + 1 // 1-indexed for readability
		}
	}

	for _, v := range assertion.Values {
		if positions[v] == 0 {
			return &AssertionError{
				Type:     AssertSelectionOrder,
				Expected: fmt.Sprintf("selections for all values: %q", assertion.Values),
				Actual:   fmt.Sprintf("missing selection for %q", v),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Values); i++ {
		prev := assertion.Values[i-1]
		curr := assertion.Values[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertSelectionOrder,
				Expected: fmt.Sprintf("selections in order: %q", assertion.Values),
				Actual: fmt.Sprintf("%q (pos %d) should be before %q (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertEventCount checks that the event type appears exactly Count times.
func assertEventCount(trace []testutil.Event, assertion Assertion) error {
	count := 0
	for _, e := range trace {
		if e.Type == assertion.Event {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertSelectionContains:
			err = assertSelectionContains(result.Events, assertion)
		case AssertSelectionOrder:
			err = assertSelectionOrder(result.Events, assertion)
		case AssertEventCount:
			err = assertEventCount(result.Events, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
