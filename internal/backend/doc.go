// Package backend is the search-engine side of the query front end.
//
// It provides the composable Query value that builders produce, a text
// query Parser in the style of desktop search engines (prefixes, phrases,
// +/- markers, boolean keywords, wildcards, value ranges) and a Describe
// function rendering queries for logs, tests and golden files.
//
// Queries are immutable values. And, Or, AndNot and Near drop empty
// operands, so callers can combine partial results without nil checks.
package backend
