// Package builder realises the query builder contract on top of the backend
// query package.
//
// Parsers drive a Builder through SetCollector, OnQuery and OnSelection.
// Each selection becomes a sub-query:
//
//   - text values go through the backend parser, targeting the index prefix
//     mapped to the selection's field
//   - dates fold into a day range and, when a time of day was given, a time
//     range
//   - size comparisons fold into a byte range
//   - proximity values form a single NEAR group
//   - category and type selections become class filters
//
// Selections that cannot contribute anything are dropped, logged at debug
// level and counted; they never fail the query.
package builder
