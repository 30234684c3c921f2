// Package queryir defines the shared vocabulary of the query front end.
//
// Two parsers (structured markup and compact one-line syntax) translate a
// search request into the same event stream, and a query builder turns that
// stream into a backend query. This package holds the data shapes every
// stage agrees on and nothing else.
//
// ARCHITECTURE:
//
//	[structured XML] ─┐
//	                  ├─> QueryBuilder events ─> [builder] ─> backend.Query
//	[compact string] ─┘
//
// EVENTS:
//
//   - SetCollector(Collector): a scope opened or closed; Collector says how
//     the following selections combine (AND/OR, negate, boost)
//   - OnQuery(content, source): free text or content classes for the whole
//     request; resets the builder
//   - OnSelection(Selection): one typed predicate
//
// SELECTIONS:
//
// A Selection is (kind, field names, field values, value type, modifiers).
// Field names are a lower-cased set. Values share one ValueType; only InSet
// (and Proximity from the compact syntax) legitimately carry several.
//
// PERMISSIVE BUILDERS:
//
// Builders do not reject selections. Unsupported combinations (RegExp,
// comparison on text values, empty results) are no-ops. Validate reports
// which rule applies so callers can log it.
//
// Example:
//
//	sel := queryir.NewSelection(queryir.LessThan, []string{"date"},
//	    []string{"2009-05-01"}, queryir.Date, queryir.DefaultModifiers())
//	if res := queryir.Validate(sel); !res.IsSupported {
//	    log.Println(res.Warnings)
//	}
package queryir
