package queryir

import (
	"sort"
	"strings"
)

// CollectorKind is the boolean operator joining the selections of a scope.
type CollectorKind int

const (
	And CollectorKind = iota
	Or
)

// String returns the lower-case collector keyword.
func (k CollectorKind) String() string {
	if k == Or {
		return "or"
	}
	return "and"
}

// Collector describes how the selections inside one scope combine.
//
// A collector is pushed when a scope opens and popped when it closes; the
// enclosing collector becomes active again on pop. The zero value is the
// root default: AND, not negated, no boost.
//
// Example (structured syntax):
//
//	<or negate="false" boost="1.5">
//	  <fullText><string>jazz</string></fullText>
//	  <fullText><string>blues</string></fullText>
//	</or>
//
// produces
//
//	Collector{Kind: Or, Boost: 1.5}
type Collector struct {
	Kind   CollectorKind
	Negate bool
	Boost  float64
}

// DefaultCollector returns the collector active before any scope opens.
func DefaultCollector() Collector {
	return Collector{Kind: And}
}

// SelectionKind identifies the predicate a selection applies.
//
// The set is closed. None and RegExp are accepted by both parsers but are
// always ignored by query builders.
type SelectionKind int

const (
	None SelectionKind = iota
	Equals
	Contains
	LessThan
	LessThanEquals
	GreaterThan
	GreaterThanEquals
	StartsWith
	InSet
	FullText
	RegExp
	Proximity
	Category
	Type
)

var selectionKindNames = [...]string{
	None:              "none",
	Equals:            "equals",
	Contains:          "contains",
	LessThan:          "lessThan",
	LessThanEquals:    "lessThanEquals",
	GreaterThan:       "greaterThan",
	GreaterThanEquals: "greaterThanEquals",
	StartsWith:        "startsWith",
	InSet:             "inSet",
	FullText:          "fullText",
	RegExp:            "regExp",
	Proximity:         "proximity",
	Category:          "category",
	Type:              "type",
}

// String returns the structured-syntax tag for the kind.
func (k SelectionKind) String() string {
	if k < 0 || int(k) >= len(selectionKindNames) {
		return "unknown"
	}
	return selectionKindNames[k]
}

// ParseSelectionKind maps a structured-syntax tag to its kind.
// Tags are case-sensitive.
func ParseSelectionKind(tag string) (SelectionKind, bool) {
	for i, name := range selectionKindNames {
		if name == tag && SelectionKind(i) != None {
			return SelectionKind(i), true
		}
	}
	return None, false
}

// IsComparison reports whether the kind is one of the ordering comparisons.
// Comparisons are only meaningful on Integer and Date values.
func (k SelectionKind) IsComparison() bool {
	switch k {
	case LessThan, LessThanEquals, GreaterThan, GreaterThanEquals:
		return true
	}
	return false
}

// IsUpperBound reports whether a comparison bounds values from above.
func (k SelectionKind) IsUpperBound() bool {
	return k == LessThan || k == LessThanEquals
}

// ValueType tags the type shared by every value of a selection.
type ValueType int

const (
	String ValueType = iota
	Phrase
	Integer
	Date
	Boolean
	Float
)

var valueTypeNames = [...]string{
	String:  "string",
	Phrase:  "phrase",
	Integer: "integer",
	Date:    "date",
	Boolean: "boolean",
	Float:   "float",
}

// String returns the lower-case type name.
func (t ValueType) String() string {
	if t < 0 || int(t) >= len(valueTypeNames) {
		return "unknown"
	}
	return valueTypeNames[t]
}

// ParseValueType maps a value element tag to its type.
// The "phrase" name is accepted for symmetry with String().
func ParseValueType(tag string) (ValueType, bool) {
	for i, name := range valueTypeNames {
		if name == tag {
			return ValueType(i), true
		}
	}
	return String, false
}

// IsText reports whether values of this type go through text analysis.
func (t ValueType) IsText() bool {
	return t == String || t == Phrase
}

// Modifiers are the per-selection flags controlling how values match.
//
// Each field is set either by a single-character code after a quoted phrase
// (compact syntax) or by an attribute (structured syntax). Content and Source
// carry content-class names for Category selections.
type Modifiers struct {
	Phrase             bool
	CaseSensitive      bool
	DiacriticSensitive bool
	Slack              int
	Ordered            bool
	Stemming           bool
	Language           string
	Fuzzy              float64
	Distance           int
	Negate             bool
	Boost              float64
	Content            string
	Source             string
}

// DefaultModifiers returns the modifiers applied when nothing overrides them.
func DefaultModifiers() Modifiers {
	return Modifiers{
		Phrase:             true,
		CaseSensitive:      false,
		DiacriticSensitive: true,
		Stemming:           true,
	}
}

// Selection is one typed search predicate emitted to a QueryBuilder.
//
// FieldNames is a set: lower-cased, sorted and without duplicates. It is
// empty for an unqualified (whole-document) search. FieldValues keeps the
// order in which values were read.
type Selection struct {
	Kind        SelectionKind
	FieldNames  []string
	FieldValues []string
	ValueType   ValueType
	Modifiers   Modifiers
}

// NewSelection builds a Selection with normalised field names.
func NewSelection(kind SelectionKind, fieldNames []string, fieldValues []string, valueType ValueType, mods Modifiers) Selection {
	return Selection{
		Kind:        kind,
		FieldNames:  NormalizeFieldNames(fieldNames),
		FieldValues: append([]string(nil), fieldValues...),
		ValueType:   valueType,
		Modifiers:   mods,
	}
}

// NormalizeFieldNames lower-cases, trims, dedupes and sorts field names.
func NormalizeFieldNames(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// HasField reports whether the selection targets the named field.
func (s Selection) HasField(name string) bool {
	for _, n := range s.FieldNames {
		if n == name {
			return true
		}
	}
	return false
}

// QueryBuilder receives the events produced by a query parser.
//
// Both the structured and the compact parser drive the same interface, so a
// builder never knows which syntax the request used. Implementations are not
// expected to be thread-safe: one parse at a time drives a builder.
//
// Event order for one parse:
//
//	SetCollector (root scope)
//	OnQuery      (optional, before any selection)
//	SetCollector / OnSelection ... (interleaved as scopes open and close)
type QueryBuilder interface {
	// SetCollector makes c the active collector for subsequent selections.
	SetCollector(c Collector)

	// OnQuery resets accumulation and records the content-class filter.
	OnQuery(content, source string)

	// OnSelection delivers one completed selection.
	OnSelection(sel Selection)
}
