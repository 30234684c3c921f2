package backend

// Query is a composable boolean search query.
//
// This is a sealed interface - only types in this package implement it.
// A nil Query is the empty query: it matches nothing and disappears when
// combined with And, Or or Near.
//
// Query types:
//   - Term: one analysed word or one verbatim boolean filter value
//   - Phrase: words that must appear together
//   - Wildcard: words starting with a prefix
//   - Range: a value slot between two bounds
//   - MatchAll: every document
//   - Compound: an operator applied to subqueries
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Term matches one word. Field is empty for any text field. Form selects
// which normalisation of indexed words Text is compared with.
type Term struct {
	Field string
	Text  string
	Form  Form
}

func (Term) queryNode() {}

// Phrase matches words appearing in order.
//
// Window is the span (in words) the phrase may occupy; zero means the words
// must be adjacent.
type Phrase struct {
	Field  string
	Words  []string
	Window int
	Form   Form
}

func (Phrase) queryNode() {}

// Wildcard matches every word starting with Prefix.
type Wildcard struct {
	Field  string
	Prefix string
	Form   Form
}

func (Wildcard) queryNode() {}

// Range matches documents whose Slot value lies in [Lo, Hi].
// An empty bound is open.
//
// Slots:
//   - date: YYYYMMDD
//   - time: HHMMSS
//   - size: bytes
type Range struct {
	Slot string
	Lo   string
	Hi   string
}

func (Range) queryNode() {}

// MatchAll matches every document. It is the left side of a pure NOT.
type MatchAll struct{}

func (MatchAll) queryNode() {}

// Op is a Compound operator.
type Op int

const (
	OpAnd Op = iota
	OpOr
	OpAndNot
	OpNear
	OpPhrase
)

var opNames = [...]string{
	OpAnd:    "AND",
	OpOr:     "OR",
	OpAndNot: "AND_NOT",
	OpNear:   "NEAR",
	OpPhrase: "PHRASE",
}

// String returns the operator keyword used in descriptions.
func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return "UNKNOWN"
	}
	return opNames[o]
}

// Compound applies Op to Subqueries.
//
// AND_NOT takes exactly two subqueries (left minus right). NEAR and PHRASE
// require their subqueries within Window words of each other; PHRASE also
// requires them in order.
type Compound struct {
	Op         Op
	Subqueries []Query
	Window     int
}

func (Compound) queryNode() {}

// And conjoins queries. Nil operands are dropped and nested ANDs flattened.
func And(qs ...Query) Query {
	return combine(OpAnd, qs)
}

// Or disjoins queries. Nil operands are dropped and nested ORs flattened.
func Or(qs ...Query) Query {
	return combine(OpOr, qs)
}

// AndNot matches left but not right. A nil right leaves left unchanged;
// a nil left stays empty.
func AndNot(left, right Query) Query {
	if left == nil {
		return nil
	}
	if right == nil {
		return left
	}
	return Compound{Op: OpAndNot, Subqueries: []Query{left, right}}
}

// Near groups queries that must occur within window words of each other,
// in any order.
func Near(window int, qs ...Query) Query {
	return group(OpNear, window, qs)
}

// OrderedNear groups queries that must occur in order within window words.
func OrderedNear(window int, qs ...Query) Query {
	return group(OpPhrase, window, qs)
}

func combine(op Op, qs []Query) Query {
	var subs []Query
	for _, q := range qs {
		if q == nil {
			continue
		}
		if c, ok := q.(Compound); ok && c.Op == op {
			subs = append(subs, c.Subqueries...)
			continue
		}
		subs = append(subs, q)
	}
	switch len(subs) {
	case 0:
		return nil
	case 1:
		return subs[0]
	}
	return Compound{Op: op, Subqueries: subs}
}

func group(op Op, window int, qs []Query) Query {
	var subs []Query
	for _, q := range qs {
		if q != nil {
			subs = append(subs, q)
		}
	}
	switch len(subs) {
	case 0:
		return nil
	case 1:
		return subs[0]
	}
	return Compound{Op: op, Subqueries: subs, Window: window}
}

// IsEmpty reports whether q matches nothing by construction.
func IsEmpty(q Query) bool {
	return q == nil
}
