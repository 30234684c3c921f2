// Package structured parses the nested XML query syntax:
//
//	<request>
//	  <userQuery>free text</userQuery>
//	  <query content="xesam:audio">
//	    <and>
//	      <fullText><string>jazz</string></fullText>
//	      <or negate="false">
//	        <equals><property name="author"/><string>coltrane</string></equals>
//	        <inSet><property name="title"/><string>giant</string><string>steps</string></inSet>
//	      </or>
//	    </and>
//	  </query>
//	</request>
//
// The document is streamed; the parser calls the builder as elements close.
package structured

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/roach88/deskquery/internal/metrics"
	"github.com/roach88/deskquery/internal/queryir"
)

const syntaxName = "structured"

// Parser reads structured queries. It holds no per-parse state and is safe
// for concurrent use.
type Parser struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the parser logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics records parse outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Parser) {
		p.metrics = m
	}
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse reads one request document from r and drives b.
func (p *Parser) Parse(r io.Reader, b queryir.QueryBuilder) error {
	s := &parseState{
		dec:    xml.NewDecoder(r),
		b:      b,
		logger: p.logger,
	}
	err := s.run()
	p.metrics.RecordParse(syntaxName, err == nil)
	if err != nil {
		p.logger.Debug("structured query rejected", "error", err)
		return err
	}
	p.logger.Debug("structured query parsed", "selections", s.selections)
	return nil
}

// ParseString parses a request held in memory.
func (p *Parser) ParseString(doc string, b queryir.QueryBuilder) error {
	return p.Parse(strings.NewReader(doc), b)
}

// ParseFile parses the request stored at path.
func (p *Parser) ParseFile(path string, b queryir.QueryBuilder) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open query file: %w", err)
	}
	defer f.Close()
	return p.Parse(f, b)
}

// selectionPhase tracks what a selection element accepts next.
type selectionPhase int

const (
	awaitingField selectionPhase = iota
	awaitingValues
	closed
)

// scope is an open collector element.
type scope struct {
	depth     int
	collector queryir.Collector
}

// selectionState accumulates one selection element.
type selectionState struct {
	depth     int
	kind      queryir.SelectionKind
	phase     selectionPhase
	fields    []string
	values    []string
	valueType queryir.ValueType
	typed     bool
	mods      queryir.Modifiers
}

// valueState is an open value element inside a selection.
type valueState struct {
	depth int
	text  strings.Builder
}

type parseState struct {
	dec    *xml.Decoder
	b      queryir.QueryBuilder
	logger *slog.Logger

	depth      int
	sawRoot    bool
	queryDepth int
	started    bool
	scopes     []scope
	sel        *selectionState
	value      *valueState
	skipDepth  int

	userDepth int
	userText  strings.Builder
	userQuery string
	hasUser   bool

	selections int
}

func (s *parseState) run() error {
	for {
		tok, err := s.dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return &ParseError{Code: ErrCodeMalformed, Offset: s.dec.InputOffset(), Message: err.Error(), Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			s.depth++
			if err := s.start(t); err != nil {
				return err
			}
		case xml.EndElement:
			s.end(t)
			s.depth--
		case xml.CharData:
			s.text(t)
		}
	}

	if !s.sawRoot {
		return &ParseError{Code: ErrCodeMalformed, Offset: s.dec.InputOffset(), Message: "document has no root element"}
	}
	// A request holding only free text still produces a query.
	s.beginQuery("", "")
	return nil
}

func (s *parseState) errorf(code, element, format string, args ...any) error {
	return &ParseError{
		Code:    code,
		Element: element,
		Offset:  s.dec.InputOffset(),
		Message: fmt.Sprintf(format, args...),
	}
}

func (s *parseState) start(el xml.StartElement) error {
	name := el.Name.Local

	switch {
	case s.skipDepth > 0, s.value != nil, s.userDepth > 0:
		// Content nested in ignored elements, values or free text.
		return nil
	case s.depth == 1:
		if name != "request" {
			return s.errorf(ErrCodeUnexpectedRoot, name, "expected <request>")
		}
		s.sawRoot = true
		s.b.SetCollector(queryir.DefaultCollector())
		return nil
	case s.sel != nil:
		return s.startInSelection(el)
	case isValueTag(name) || name == "property":
		return s.errorf(ErrCodeTypeMismatch, name, "value outside a selection")
	case s.queryDepth == 0:
		switch name {
		case "userQuery":
			s.userDepth = s.depth
			s.userText.Reset()
			return nil
		case "query":
			s.queryDepth = s.depth
			content := attr(el, "content")
			if content == "" {
				content = attr(el, "type")
			}
			s.beginQuery(content, attr(el, "source"))
			return nil
		}
		return s.errorf(ErrCodeUnknownElement, name, "expected <userQuery> or <query>")
	}

	if name == "and" || name == "or" {
		c := collectorFrom(el)
		s.scopes = append(s.scopes, scope{depth: s.depth, collector: c})
		s.b.SetCollector(c)
		return nil
	}
	if kind, ok := queryir.ParseSelectionKind(name); ok {
		s.sel = &selectionState{
			depth: s.depth,
			kind:  kind,
			phase: awaitingField,
			mods:  modifiersFrom(el, queryir.DefaultModifiers()),
		}
		if kind == queryir.Category {
			s.sel.mods.Content = attr(el, "content")
			s.sel.mods.Source = attr(el, "source")
		}
		return nil
	}
	return s.errorf(ErrCodeUnknownElement, name, "expected a collector or a selection")
}

func (s *parseState) startInSelection(el xml.StartElement) error {
	name := el.Name.Local
	sel := s.sel

	switch {
	case name == "property":
		if sel.phase != awaitingField {
			return s.errorf(ErrCodeTypeMismatch, name, "a %s selection takes one property before its values", sel.kind)
		}
		sel.fields = append(sel.fields, attr(el, "name"))
		sel.phase = awaitingValues
		return nil

	case isValueTag(name):
		vt := valueTypeFrom(el)
		if sel.typed && !sameFamily(sel.valueType, vt) {
			return s.errorf(ErrCodeTypeMismatch, name, "%s value in a selection of %s values", vt, sel.valueType)
		}
		if len(sel.values) > 0 && !multiValued(sel.kind) {
			return s.errorf(ErrCodeTypeMismatch, name, "%s selection takes a single value", sel.kind)
		}
		if !sel.typed {
			sel.valueType = vt
			sel.typed = true
		}
		if name == "string" {
			sel.mods = modifiersFrom(el, sel.mods)
		}
		sel.phase = awaitingValues
		s.value = &valueState{depth: s.depth}
		return nil

	case name == "and" || name == "or":
		return s.errorf(ErrCodeUnknownElement, name, "collector inside a %s selection", sel.kind)
	}
	if _, ok := queryir.ParseSelectionKind(name); ok {
		return s.errorf(ErrCodeUnknownElement, name, "selection inside a %s selection", sel.kind)
	}

	s.skipDepth = s.depth
	return nil
}

func (s *parseState) end(el xml.EndElement) {
	switch {
	case s.skipDepth > 0:
		if s.depth == s.skipDepth {
			s.skipDepth = 0
		}
	case s.userDepth > 0:
		if s.depth == s.userDepth {
			s.userDepth = 0
			s.userQuery = strings.TrimSpace(s.userText.String())
			s.hasUser = true
			if s.started {
				s.emitUserQuery()
			}
		}
	case s.value != nil:
		if s.depth == s.value.depth {
			s.sel.values = append(s.sel.values, strings.TrimSpace(s.value.text.String()))
			s.value = nil
		}
	case s.sel != nil:
		if s.depth == s.sel.depth {
			s.emitSelection()
		}
	case len(s.scopes) > 0 && s.scopes[len(s.scopes)-1].depth == s.depth:
		s.scopes = s.scopes[:len(s.scopes)-1]
		if len(s.scopes) > 0 {
			s.b.SetCollector(s.scopes[len(s.scopes)-1].collector)
		}
	case s.queryDepth > 0 && s.depth == s.queryDepth:
		s.queryDepth = 0
	}
}

func (s *parseState) text(data xml.CharData) {
	switch {
	case s.skipDepth > 0:
	case s.value != nil:
		s.value.text.Write(data)
	case s.userDepth > 0:
		s.userText.Write(data)
	}
}

// beginQuery delivers OnQuery once per document, followed by any free text
// read so far.
func (s *parseState) beginQuery(content, source string) {
	if s.started {
		return
	}
	s.started = true
	s.b.OnQuery(content, source)
	if s.hasUser {
		s.emitUserQuery()
	}
}

// emitUserQuery delivers the free text as an unqualified full text search.
func (s *parseState) emitUserQuery() {
	s.hasUser = false
	if s.userQuery == "" {
		return
	}
	s.b.OnSelection(queryir.NewSelection(queryir.FullText, nil, []string{s.userQuery}, queryir.String, queryir.DefaultModifiers()))
	s.selections++
}

func (s *parseState) emitSelection() {
	sel := s.sel
	sel.phase = closed
	s.b.OnSelection(queryir.NewSelection(sel.kind, sel.fields, sel.values, sel.valueType, sel.mods))
	s.selections++
	s.sel = nil
}

func isValueTag(name string) bool {
	switch name {
	case "string", "integer", "date", "boolean", "float":
		return true
	}
	return false
}

// multiValued reports whether a selection may carry several values.
func multiValued(kind queryir.SelectionKind) bool {
	return kind == queryir.InSet || kind == queryir.Type
}

// sameFamily treats plain strings and phrases as one type.
func sameFamily(a, b queryir.ValueType) bool {
	return a == b || (a.IsText() && b.IsText())
}

func valueTypeFrom(el xml.StartElement) queryir.ValueType {
	switch el.Name.Local {
	case "integer":
		return queryir.Integer
	case "date":
		return queryir.Date
	case "boolean":
		return queryir.Boolean
	case "float":
		return queryir.Float
	}
	if v, ok := boolAttr(el, "phrase"); ok && v {
		return queryir.Phrase
	}
	return queryir.String
}

func collectorFrom(el xml.StartElement) queryir.Collector {
	c := queryir.Collector{Kind: queryir.And}
	if el.Name.Local == "or" {
		c.Kind = queryir.Or
	}
	if v, ok := boolAttr(el, "negate"); ok {
		c.Negate = v
	}
	if v, ok := floatAttr(el, "boost"); ok {
		c.Boost = v
	}
	return c
}

// modifiersFrom overlays modifier attributes of el on m. Unknown attributes
// and unparseable values are ignored.
func modifiersFrom(el xml.StartElement, m queryir.Modifiers) queryir.Modifiers {
	if v, ok := boolAttr(el, "phrase"); ok {
		m.Phrase = v
	}
	if v, ok := boolAttr(el, "caseSensitive"); ok {
		m.CaseSensitive = v
	}
	if v, ok := boolAttr(el, "diacriticSensitive"); ok {
		m.DiacriticSensitive = v
	}
	if v, ok := intAttr(el, "slack"); ok {
		m.Slack = v
	}
	if v, ok := boolAttr(el, "ordered"); ok {
		m.Ordered = v
	}
	if v, ok := boolAttr(el, "enableStemming"); ok {
		m.Stemming = v
	}
	if v := attr(el, "language"); v != "" {
		m.Language = v
	}
	if v, ok := floatAttr(el, "fuzzy"); ok {
		m.Fuzzy = v
	}
	if v, ok := floatAttr(el, "boost"); ok {
		m.Boost = v
	}
	if v, ok := boolAttr(el, "negate"); ok {
		m.Negate = v
	}
	if v, ok := intAttr(el, "distance"); ok {
		m.Distance = v
	}
	return m
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

func boolAttr(el xml.StartElement, name string) (bool, bool) {
	v, err := strconv.ParseBool(attr(el, name))
	return v, err == nil
}

func intAttr(el xml.StartElement, name string) (int, bool) {
	v, err := strconv.Atoi(attr(el, name))
	return v, err == nil
}

func floatAttr(el xml.StartElement, name string) (float64, bool) {
	v, err := strconv.ParseFloat(attr(el, name), 64)
	return v, err == nil
}
