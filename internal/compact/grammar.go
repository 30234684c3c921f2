package compact

import (
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/roach88/deskquery/internal/queryir"
)

// Values taken by the f, b and p modifier codes.
const (
	fuzzyFactor       = 0.5
	boostFactor       = 2.0
	proximityDistance = 10
)

// parseContext holds the state of one ParseDetailed call.
type parseContext struct {
	input   string
	pos     int
	b       queryir.QueryBuilder
	emitted int
}

// field is one "name relation value" pair.
type field struct {
	name   string
	kind   queryir.SelectionKind
	value  string
	quoted bool
}

// phrase is the trailing text of a statement.
type phrase struct {
	text   string
	quoted bool
	codes  string
}

type statement struct {
	negate bool
	fields []field
	phrase *phrase
}

// parseRun parses statement (collector statement)* from the current
// position, emitting each statement as soon as it is complete. When resumed
// is set the run may open with a collector left over from a skipped segment.
// It reports whether at least one statement was parsed.
func (c *parseContext) parseRun(resumed bool) bool {
	progressed := false
	for {
		save := c.pos
		c.skipSpace()

		kind := queryir.And
		if progressed || resumed {
			if k, ok := c.collector(); ok {
				kind = k
			}
		}

		st, ok := c.statement()
		if !ok {
			c.pos = save
			return progressed
		}
		c.emit(st, kind)
		progressed = true
	}
}

func (c *parseContext) emit(st statement, kind queryir.CollectorKind) {
	if c.emitted > 0 {
		c.b.SetCollector(queryir.Collector{Kind: kind})
	}
	c.emitted++

	for _, f := range st.fields {
		mods := queryir.DefaultModifiers()
		mods.Negate = st.negate
		vt := queryir.String
		if f.quoted {
			vt = queryir.Phrase
		}
		if f.kind.IsComparison() {
			vt = inferType(f.value)
		}
		c.b.OnSelection(queryir.NewSelection(f.kind, []string{f.name}, []string{f.value}, vt, mods))
	}

	if st.phrase == nil || st.phrase.text == "" {
		return
	}
	phraseKind := queryir.FullText
	mods := queryir.DefaultModifiers()
	mods.Negate = st.negate
	applyCodes(st.phrase.codes, &phraseKind, &mods)
	vt := queryir.String
	if st.phrase.quoted {
		vt = queryir.Phrase
	}
	c.b.OnSelection(queryir.NewSelection(phraseKind, nil, []string{st.phrase.text}, vt, mods))
}

// statement := ('+'|'-')* selection* phrase
//
// The phrase may be missing when at least one selection was read.
func (c *parseContext) statement() (statement, bool) {
	start := c.pos
	var st statement

	for !c.eof() && (c.peek() == '+' || c.peek() == '-') {
		if c.peek() == '-' {
			st.negate = true
		}
		c.pos++
	}

	for {
		save := c.pos
		c.skipSpace()
		f, ok := c.selection()
		if !ok {
			c.pos = save
			break
		}
		st.fields = append(st.fields, f)
	}

	save := c.pos
	c.skipSpace()
	if ph, ok := c.phrase(); ok {
		st.phrase = &ph
	} else {
		c.pos = save
	}

	if st.phrase == nil && len(st.fields) == 0 {
		c.pos = start
		return statement{}, false
	}
	return st, true
}

// selection := field_name relation field_value, with no space between the
// three parts.
func (c *parseContext) selection() (field, bool) {
	start := c.pos
	for !c.eof() && isLetter(c.peek()) {
		c.pos++
	}
	name := c.input[start:c.pos]
	if name == "" {
		return field{}, false
	}

	kind, ok := c.relation()
	if !ok {
		c.pos = start
		return field{}, false
	}

	f := field{name: name, kind: kind}
	if !c.eof() && c.peek() == '"' {
		text, ok := c.quoted()
		if !ok {
			c.pos = start
			return field{}, false
		}
		f.value, f.quoted = text, true
		return f, true
	}

	f.value = c.bare()
	if f.value == "" {
		c.pos = start
		return field{}, false
	}
	return f, true
}

func (c *parseContext) relation() (queryir.SelectionKind, bool) {
	rest := c.input[c.pos:]
	switch {
	case strings.HasPrefix(rest, "<="):
		c.pos += 2
		return queryir.LessThanEquals, true
	case strings.HasPrefix(rest, ">="):
		c.pos += 2
		return queryir.GreaterThanEquals, true
	case strings.HasPrefix(rest, "<"):
		c.pos++
		return queryir.LessThan, true
	case strings.HasPrefix(rest, ">"):
		c.pos++
		return queryir.GreaterThan, true
	case strings.HasPrefix(rest, ":"), strings.HasPrefix(rest, "="):
		c.pos++
		return queryir.Equals, true
	}
	return queryir.None, false
}

// phrase := '"' text '"' codes | bare run
//
// A bare run may not open with a sign or spell a collector keyword; either
// belongs to the next statement.
func (c *parseContext) phrase() (phrase, bool) {
	start := c.pos
	if !c.eof() && c.peek() == '"' {
		text, ok := c.quoted()
		if !ok {
			c.pos = start
			return phrase{}, false
		}
		return phrase{text: text, quoted: true, codes: c.bare()}, true
	}

	if !c.eof() && (c.peek() == '+' || c.peek() == '-') {
		return phrase{}, false
	}
	text := c.bare()
	if text == "" || isCollectorWord(text) {
		c.pos = start
		return phrase{}, false
	}
	return phrase{text: text}, true
}

// collector := "and" | "&&" | "or" | "||", keywords case-insensitive.
func (c *parseContext) collector() (queryir.CollectorKind, bool) {
	rest := c.input[c.pos:]
	switch {
	case strings.HasPrefix(rest, "&&"):
		c.pos += 2
		return queryir.And, true
	case strings.HasPrefix(rest, "||"):
		c.pos += 2
		return queryir.Or, true
	}

	end := 0
	for end < len(rest) && isLetter(rest[end]) {
		end++
	}
	if end < len(rest) && !isSpace(rest[end]) && rest[end] != '"' && rest[end] != '+' && rest[end] != '-' {
		return queryir.And, false
	}
	switch strings.ToLower(rest[:end]) {
	case "and":
		c.pos += end
		return queryir.And, true
	case "or":
		c.pos += end
		return queryir.Or, true
	}
	return queryir.And, false
}

// quoted reads "..." starting at the opening quote. Quoted text does not
// span lines.
func (c *parseContext) quoted() (string, bool) {
	start := c.pos + 1
	for i := start; i < len(c.input); i++ {
		switch c.input[i] {
		case '"':
			c.pos = i + 1
			return c.input[start:i], true
		case '\n':
			return "", false
		}
	}
	return "", false
}

// bare reads a run of characters up to whitespace or a quote.
func (c *parseContext) bare() string {
	start := c.pos
	for !c.eof() && !isSpace(c.peek()) && c.peek() != '"' {
		c.pos++
	}
	return c.input[start:c.pos]
}

// skipSpace skips whitespace and # comments running to the end of the line.
func (c *parseContext) skipSpace() {
	for !c.eof() {
		switch ch := c.peek(); {
		case isSpace(ch):
			c.pos++
		case ch == '#':
			nl := strings.IndexByte(c.input[c.pos:], '\n')
			if nl < 0 {
				c.pos = len(c.input)
			} else {
				c.pos += nl + 1
			}
		default:
			return
		}
	}
}

// skipToken drops the whitespace-delimited token at the current position.
func (c *parseContext) skipToken() Span {
	start := c.pos
	for !c.eof() && !isSpace(c.peek()) {
		c.pos++
	}
	return Span{Offset: start, Text: c.input[start:c.pos]}
}

func (c *parseContext) eof() bool { return c.pos >= len(c.input) }

func (c *parseContext) peek() byte { return c.input[c.pos] }

func isLetter(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z')
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isCollectorWord(s string) bool {
	switch strings.ToLower(s) {
	case "and", "or", "&&", "||":
		return true
	}
	return false
}

// applyCodes applies the modifier codes following a quoted phrase.
// Unknown codes are ignored; when codes conflict the last one wins.
func applyCodes(codes string, kind *queryir.SelectionKind, m *queryir.Modifiers) {
	for _, code := range codes {
		switch code {
		case 'c':
			m.CaseSensitive = true
		case 'C':
			m.CaseSensitive = false
		case 'd':
			m.DiacriticSensitive = true
		case 'D':
			m.DiacriticSensitive = false
		case 'l':
			m.Stemming = false
		case 'L':
			m.Stemming = true
		case 'e':
			m.CaseSensitive = true
			m.DiacriticSensitive = true
			m.Stemming = false
		case 'f':
			m.Fuzzy = fuzzyFactor
		case 'b':
			m.Boost = boostFactor
		case 'p':
			*kind = queryir.Proximity
			m.Distance = proximityDistance
		case 's':
			m.Slack = 1
		case 'w':
			*kind = queryir.Contains
		case 'o':
			m.Ordered = true
		case 'r':
			*kind = queryir.RegExp
		}
	}
}

// inferType picks the value type of a comparison: ISO dates become Date,
// integers and humanized sizes ("10MB") become Integer.
func inferType(value string) queryir.ValueType {
	if _, _, ok := queryir.ParseDate(value); ok {
		return queryir.Date
	}
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return queryir.Integer
	}
	if value != "" && value[0] >= '0' && value[0] <= '9' {
		if _, err := humanize.ParseBytes(value); err == nil {
			return queryir.Integer
		}
	}
	return queryir.String
}
