package backend

import (
	"fmt"
	"strings"
)

// Flag enables optional query text syntax.
type Flag uint

const (
	// FlagBoolean enables AND, OR, NOT and parentheses.
	FlagBoolean Flag = 1 << iota
	// FlagPhrase enables "quoted phrases".
	FlagPhrase
	// FlagLoveHate enables +required and -excluded terms.
	FlagLoveHate
	// FlagBooleanAnyCase accepts boolean keywords in any case.
	FlagBooleanAnyCase
	// FlagWildcard enables trailing * prefix matching.
	FlagWildcard
	// FlagPureNot allows a query made only of excluded terms.
	FlagPureNot
)

// DefaultFlags enables every syntax feature.
const DefaultFlags = FlagBoolean | FlagPhrase | FlagLoveHate | FlagBooleanAnyCase | FlagWildcard | FlagPureNot

// filterFlags is the syntax accepted by ParseFilter.
const filterFlags = FlagBoolean | FlagPhrase | FlagBooleanAnyCase | FlagPureNot

// SyntaxError reports query text the parser could not make sense of.
type SyntaxError struct {
	Pos     int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("query syntax error at %d: %s", e.Pos, e.Message)
}

// Parser turns query text into a Query.
//
// Prefixes route "name:value" text to index fields:
//   - free-text prefixes analyse the value like any other text
//   - boolean prefixes keep the value verbatim (media types, class names)
//   - range prefixes read "lo..hi" into a Range on a value slot
//
// A bare "YYYYMMDD..YYYYMMDD" is a date range. Parser configuration is not
// safe to change while parses are running; parsing itself is.
type Parser struct {
	// DefaultOp joins adjacent terms; OpAnd or OpOr.
	DefaultOp Op
	// Analyzer normalises free text.
	Analyzer Analyzer

	prefixes        map[string]string
	booleanPrefixes map[string]string
	rangePrefixes   map[string]string
}

// NewParser creates a parser with the standard range prefixes date, time
// and size.
func NewParser() *Parser {
	p := &Parser{
		DefaultOp:       OpAnd,
		Analyzer:        DefaultAnalyzer(),
		prefixes:        make(map[string]string),
		booleanPrefixes: make(map[string]string),
		rangePrefixes:   make(map[string]string),
	}
	p.AddRangePrefix("date", "date")
	p.AddRangePrefix("time", "time")
	p.AddRangePrefix("size", "size")
	return p
}

// AddPrefix routes free text written as name:value to field.
func (p *Parser) AddPrefix(name, field string) {
	p.prefixes[strings.ToLower(name)] = field
}

// AddBooleanPrefix routes name:value to field without text analysis.
func (p *Parser) AddBooleanPrefix(name, field string) {
	p.booleanPrefixes[strings.ToLower(name)] = field
}

// AddRangePrefix routes name:lo..hi to a value slot.
func (p *Parser) AddRangePrefix(name, slot string) {
	p.rangePrefixes[strings.ToLower(name)] = slot
}

// WithAnalyzer returns a parser sharing p's prefixes but analysing text
// with a.
func (p *Parser) WithAnalyzer(a Analyzer) *Parser {
	cp := *p
	cp.Analyzer = a
	return &cp
}

// ParseQuery parses free query text. Unprefixed words target defaultField
// (empty for every text field). Empty text yields the empty query.
func (p *Parser) ParseQuery(text string, flags Flag, defaultField string) (Query, error) {
	s := &parseState{
		p:            p,
		toks:         lex(text, flags),
		flags:        flags,
		defaultField: defaultField,
	}
	return s.parse()
}

// ParseFilter parses a boolean filter expression such as
// "class:audio OR class:video". Values are taken verbatim; no text analysis
// is applied and adjacent terms are ANDed.
func (p *Parser) ParseFilter(expr string) (Query, error) {
	s := &parseState{
		p:      p,
		toks:   lex(expr, filterFlags),
		flags:  filterFlags,
		filter: true,
	}
	return s.parse()
}

// parseState walks the token stream of one parse.
type parseState struct {
	p            *Parser
	toks         []Token
	pos          int
	flags        Flag
	defaultField string
	filter       bool
}

func (s *parseState) parse() (Query, error) {
	if s.peek().Kind == TokEOF {
		return nil, nil
	}
	q, err := s.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := s.peek(); tok.Kind != TokEOF {
		return nil, &SyntaxError{Pos: tok.Pos, Message: fmt.Sprintf("unexpected %s", tok.Kind)}
	}
	return q, nil
}

func (s *parseState) peek() Token {
	return s.toks[s.pos]
}

func (s *parseState) advance() Token {
	tok := s.toks[s.pos]
	if tok.Kind != TokEOF {
		s.pos++
	}
	return tok
}

// parseOr: and ( OR and )*
func (s *parseState) parseOr() (Query, error) {
	left, err := s.parseAnd()
	if err != nil {
		return nil, err
	}
	for s.peek().Kind == TokOr {
		s.advance()
		right, err := s.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or(left, right)
	}
	return left, nil
}

// parseAnd: group ( AND [NOT] group | NOT group )*
func (s *parseState) parseAnd() (Query, error) {
	left, err := s.parseGroup()
	if err != nil {
		return nil, err
	}
	for {
		switch s.peek().Kind {
		case TokAnd:
			s.advance()
			negate := false
			if s.peek().Kind == TokNot {
				s.advance()
				negate = true
			}
			right, err := s.parseGroup()
			if err != nil {
				return nil, err
			}
			if negate {
				left = AndNot(left, right)
			} else {
				left = And(left, right)
			}
		case TokNot:
			s.advance()
			right, err := s.parseGroup()
			if err != nil {
				return nil, err
			}
			left = AndNot(left, right)
		default:
			return left, nil
		}
	}
}

// parseGroup reads adjacent terms and joins them with the default operator,
// applying +required and -excluded markers.
func (s *parseState) parseGroup() (Query, error) {
	if tok := s.peek(); tok.Kind == TokNot {
		if s.flags&FlagPureNot == 0 {
			return nil, &SyntaxError{Pos: tok.Pos, Message: "NOT without a left operand"}
		}
		s.advance()
		inner, err := s.parseGroup()
		if err != nil {
			return nil, err
		}
		return AndNot(MatchAll{}, inner), nil
	}

	var required, optional, excluded []Query
	units := 0
loop:
	for {
		tok := s.peek()
		switch tok.Kind {
		case TokEOF, TokRParen, TokAnd, TokOr, TokNot:
			break loop
		case TokLove, TokHate:
			s.advance()
			q, err := s.parseUnit()
			if err != nil {
				return nil, err
			}
			if tok.Kind == TokLove {
				required = append(required, q)
			} else {
				excluded = append(excluded, q)
			}
		default:
			q, err := s.parseUnit()
			if err != nil {
				return nil, err
			}
			optional = append(optional, q)
		}
		units++
	}
	if units == 0 {
		tok := s.peek()
		return nil, &SyntaxError{Pos: tok.Pos, Message: fmt.Sprintf("expected a term, found %s", tok.Kind)}
	}

	op := s.p.DefaultOp
	if s.filter {
		op = OpAnd
	}
	var base Query
	switch {
	case len(required) > 0 && op == OpOr:
		// Optional terms only affect ranking next to required ones.
		base = And(required...)
	case op == OpOr:
		base = Or(optional...)
	default:
		base = And(append(required, optional...)...)
	}
	if len(excluded) > 0 {
		if base == nil {
			if s.flags&FlagPureNot == 0 {
				return nil, &SyntaxError{Pos: s.peek().Pos, Message: "query only excludes terms"}
			}
			base = MatchAll{}
		}
		base = AndNot(base, Or(excluded...))
	}
	return base, nil
}

func (s *parseState) parseUnit() (Query, error) {
	tok := s.advance()
	switch tok.Kind {
	case TokLParen:
		q, err := s.parseOr()
		if err != nil {
			return nil, err
		}
		if s.peek().Kind != TokRParen {
			return nil, &SyntaxError{Pos: s.peek().Pos, Message: "missing )"}
		}
		s.advance()
		return q, nil
	case TokPhrase:
		return s.phraseToken(tok), nil
	case TokWord:
		return s.wordQuery(tok.Value), nil
	}
	return nil, &SyntaxError{Pos: tok.Pos, Message: fmt.Sprintf("unexpected %s", tok.Kind)}
}

func (s *parseState) phraseToken(tok Token) Query {
	name := strings.ToLower(tok.Field)
	if s.filter {
		if name == "" {
			return verbatim("", tok.Value)
		}
		return verbatim(s.booleanField(name), tok.Value)
	}
	if name == "" {
		return s.phraseQuery(s.defaultField, s.p.Analyzer.Tokenize(tok.Value))
	}
	if field, ok := s.p.booleanPrefixes[name]; ok {
		return verbatim(field, tok.Value)
	}
	if field, ok := s.p.prefixes[name]; ok {
		return s.phraseQuery(field, s.p.Analyzer.Tokenize(tok.Value))
	}
	return s.phraseQuery(s.defaultField, s.p.Analyzer.Tokenize(tok.Field+" "+tok.Value))
}

func (s *parseState) wordQuery(raw string) Query {
	if name, value, ok := strings.Cut(raw, ":"); ok && name != "" {
		lname := strings.ToLower(name)
		if slot, ok := s.p.rangePrefixes[lname]; ok && strings.Contains(value, "..") {
			return rangeQuery(slot, value)
		}
		if field, ok := s.p.booleanPrefixes[lname]; ok {
			return verbatim(field, value)
		}
		if !s.filter {
			if field, ok := s.p.prefixes[lname]; ok {
				return s.textQuery(field, value)
			}
		} else {
			return verbatim(s.booleanField(lname), value)
		}
	}
	if lo, hi, ok := strings.Cut(raw, ".."); ok && isDateBound(lo) && isDateBound(hi) {
		return rangeQuery("date", raw)
	}
	if s.filter {
		return verbatim("", raw)
	}
	return s.textQuery(s.defaultField, raw)
}

func (s *parseState) booleanField(name string) string {
	if field, ok := s.p.booleanPrefixes[name]; ok {
		return field
	}
	return name
}

func (s *parseState) textQuery(field, raw string) Query {
	if s.flags&FlagWildcard != 0 && len(raw) > 1 && strings.HasSuffix(raw, "*") {
		words := s.p.Analyzer.Tokenize(strings.TrimSuffix(raw, "*"))
		if len(words) == 0 {
			return nil
		}
		last := Wildcard{Field: field, Prefix: words[len(words)-1], Form: s.p.Analyzer.Form()}
		if len(words) == 1 {
			return last
		}
		return And(s.phraseQuery(field, words[:len(words)-1]), last)
	}
	return s.phraseQuery(field, s.p.Analyzer.Tokenize(raw))
}

// phraseQuery builds a phrase from analysed words, degrading to a term for
// one word and to an AND of terms when phrases are disabled.
func (s *parseState) phraseQuery(field string, words []string) Query {
	form := s.p.Analyzer.Form()
	switch len(words) {
	case 0:
		return nil
	case 1:
		return Term{Field: field, Text: words[0], Form: form}
	}
	if s.flags&FlagPhrase == 0 {
		terms := make([]Query, len(words))
		for i, w := range words {
			terms[i] = Term{Field: field, Text: w, Form: form}
		}
		return And(terms...)
	}
	return Phrase{Field: field, Words: words, Form: form}
}

func verbatim(field, value string) Query {
	if value == "" {
		return nil
	}
	return Term{Field: field, Text: value}
}

func rangeQuery(slot, value string) Query {
	lo, hi, _ := strings.Cut(value, "..")
	if lo == "" && hi == "" {
		return nil
	}
	return Range{Slot: slot, Lo: lo, Hi: hi}
}

// isDateBound accepts an empty bound or eight digits.
func isDateBound(s string) bool {
	if s == "" {
		return true
	}
	if len(s) != 8 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
