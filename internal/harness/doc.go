// Package harness provides conformance testing for the query parsers.
//
// A scenario names a query in one of the two syntaxes, feeds it through a
// recording builder teed to the real builder, and checks the outcome: whether
// the parse was full, the structured error code, the backend query
// description, the recorded events and, when the scenario carries documents,
// which of them the query matches.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: negated_first_statement
//	description: "A leading minus negates the first statement"
//	syntax: compact
//	query: "-cat dog"
//	content: xesam:audio          # optional, compact only
//	documents:                    # optional
//	  - url: file:///a.mp3
//	    title: Dog days
//	    mimetype: audio/mpeg
//	expect:
//	  full: true
//	  description: "Query(((<alldocuments> AND_NOT cat) AND dog))"
//	  selections: 2
//	  matches: [file:///a.mp3]
//	assertions:
//	  - type: selection_contains
//	    kind: fullText
//	    values: [cat]
//	    negate: true
//
// # Assertion Types
//
//   - selection_contains: a selection with the given kind, fields, values,
//     value type and negation was emitted
//   - selection_order: selections whose first values are listed were
//     emitted in that order
//   - event_count: an event type was recorded exactly N times
//
// # Deterministic Testing
//
// Event sequence numbers come from the recorder's logical clock, documents
// are indexed into a fresh in-memory SQLite store per scenario, and search
// results are ordered by document id. Traces therefore compare byte for byte
// against golden files.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/negated_first.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
