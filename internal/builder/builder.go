package builder

import (
	"log/slog"
	"strings"

	"github.com/roach88/deskquery/internal/backend"
	"github.com/roach88/deskquery/internal/config"
	"github.com/roach88/deskquery/internal/metrics"
	"github.com/roach88/deskquery/internal/queryir"
)

// Builder accumulates parser events into one backend query.
//
// The first selection after OnQuery becomes the query; later selections are
// combined with it through the active collector. A class filter recorded by
// OnQuery is applied by GetQuery, after every selection has been combined.
//
// Builder is not safe for concurrent use.
type Builder struct {
	cfg     *config.Config
	parser  *backend.Parser
	logger  *slog.Logger
	metrics *metrics.Metrics

	collector queryir.Collector
	query     backend.Query
	started   bool
	filter    string
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger for dropped selections and parse fallbacks.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMetrics records applied and dropped selections.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) {
		b.metrics = m
	}
}

// New creates a builder using cfg for field, size and class mappings.
// A nil cfg uses config.Default().
func New(cfg *config.Config, opts ...Option) *Builder {
	if cfg == nil {
		cfg = config.Default()
	}
	b := &Builder{
		cfg:       cfg,
		parser:    NewQueryParser(cfg),
		logger:    slog.Default(),
		collector: queryir.DefaultCollector(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewQueryParser creates a backend text parser with the prefixes from cfg.
func NewQueryParser(cfg *config.Config) *backend.Parser {
	p := backend.NewParser()
	if strings.EqualFold(cfg.Parser.DefaultOperator, "or") {
		p.DefaultOp = backend.OpOr
	}
	for name, prefix := range cfg.Fields {
		p.AddPrefix(name, prefix)
	}
	for name, prefix := range cfg.BooleanFields {
		p.AddBooleanPrefix(name, prefix)
	}
	for _, name := range cfg.SizeFields {
		p.AddRangePrefix(name, "size")
	}
	return p
}

// SetCollector makes c the collector for following selections.
func (b *Builder) SetCollector(c queryir.Collector) {
	b.collector = c
}

// OnQuery starts a new query. content is a comma separated list of class
// names ("xesam:audio, email") narrowing the results; source is accepted
// for symmetry with the structured syntax and otherwise unused.
func (b *Builder) OnQuery(content, source string) {
	b.query = nil
	b.started = false
	b.filter = ""

	if content != "" {
		b.filter = b.classFilter(content)
	}
	b.logger.Debug("query started", "content", content, "source", source, "filter", b.filter)
}

// OnSelection turns sel into a sub-query and combines it with the query
// accumulated so far. Selections that cannot contribute are dropped.
func (b *Builder) OnSelection(sel queryir.Selection) {
	res := queryir.Validate(sel)
	if !res.IsSupported {
		b.drop(sel, res.Warnings[len(res.Warnings)-1])
		return
	}
	if len(res.Warnings) > 0 {
		b.logger.Debug("selection narrowed", "kind", sel.Kind.String(), "warnings", res.Warnings)
	}

	sub := b.selectionQuery(sel)
	if sub == nil {
		b.drop(sel, "no sub-query could be built")
		return
	}
	b.metrics.RecordSelection(sel.Kind.String(), true)
	b.combine(sub, sel.Modifiers.Negate)
}

// GetQuery returns the accumulated query, first ANDing in any pending class
// filter. Calling it again returns the same query.
func (b *Builder) GetQuery() backend.Query {
	if b.filter != "" {
		f, err := b.parser.ParseFilter(b.filter)
		if err != nil {
			b.logger.Warn("class filter rejected", "filter", b.filter, "error", err)
		} else {
			b.query = backend.And(b.query, f)
		}
		b.filter = ""
	}
	return b.query
}

func (b *Builder) drop(sel queryir.Selection, reason string) {
	b.logger.Debug("selection dropped",
		"kind", sel.Kind.String(),
		"value_type", sel.ValueType.String(),
		"reason", reason)
	b.metrics.RecordSelection(sel.Kind.String(), false)
}

func (b *Builder) combine(sub backend.Query, negate bool) {
	negate = negate || b.collector.Negate

	if !b.started {
		b.started = true
		if negate {
			sub = backend.AndNot(backend.MatchAll{}, sub)
		}
		b.query = sub
		return
	}

	switch {
	case b.collector.Kind == queryir.Or:
		if negate {
			sub = backend.AndNot(backend.MatchAll{}, sub)
		}
		b.query = backend.Or(b.query, sub)
	case negate:
		b.query = backend.AndNot(b.query, sub)
	default:
		b.query = backend.And(b.query, sub)
	}
}

func (b *Builder) selectionQuery(sel queryir.Selection) backend.Query {
	switch sel.Kind {
	case queryir.Category:
		expr := b.classFilter(sel.Modifiers.Content + "," + sel.Modifiers.Source)
		return b.filterQuery(expr)
	case queryir.Type:
		return b.typeQuery(sel)
	case queryir.Proximity:
		return b.proximityQuery(sel)
	}

	var subs []backend.Query
	for _, value := range sel.FieldValues {
		subs = append(subs, b.valueQuery(sel, value))
	}
	return backend.Or(subs...)
}

// valueQuery builds the sub-query for one value of a selection.
func (b *Builder) valueQuery(sel queryir.Selection, value string) backend.Query {
	if sel.ValueType == queryir.Date {
		return b.dateQuery(sel.Kind, value)
	}
	if sel.Kind.IsComparison() {
		if q := b.rangeQuery(sel, value); q != nil {
			return q
		}
	}

	text := value
	switch {
	case sel.Kind == queryir.StartsWith:
		if !strings.HasSuffix(text, "*") {
			text += "*"
		}
	case sel.ValueType == queryir.Phrase && sel.Modifiers.Phrase:
		text = quote(value)
	}

	p := b.parserFor(sel.Modifiers)
	var subs []backend.Query
	for _, name := range sel.FieldNames {
		switch {
		case name == "mime":
			// Media types go through the boolean type prefix so they stay
			// one term.
			subs = append(subs, b.parse(p, "type:"+quote(value), ""))
		case b.isBooleanField(name):
			subs = append(subs, b.parse(p, name+":"+quote(value), ""))
		default:
			if prefix, ok := b.cfg.FieldPrefix(name); ok {
				subs = append(subs, b.parse(p, text, prefix))
			}
		}
	}
	q := backend.Or(subs...)
	if q == nil {
		q = b.parse(p, text, "")
	}
	return withSlack(q, sel.Modifiers.Slack)
}

// dateQuery folds a date into a day range and, when the value had a time of
// day, a time range ANDed with it. Field names are not consulted: dates
// always target the document date.
func (b *Builder) dateQuery(kind queryir.SelectionKind, value string) backend.Query {
	r, ok := DateRangeFor(value, kind)
	if !ok {
		b.logger.Debug("unparseable date", "value", value)
		return nil
	}
	q := b.parse(b.parser, r.Day, "")
	if r.Time != "" {
		q = backend.And(q, b.parse(b.parser, "time:"+r.Time, ""))
	}
	return q
}

// rangeQuery handles an integer comparison on a field backed by a value
// slot: size fields, fields whose name contains "date" (YYYYMMDD) and the
// time field (HHMMSS). It returns nil when no field has a slot; the value is
// then matched like any other field value.
func (b *Builder) rangeQuery(sel queryir.Selection, value string) backend.Query {
	for _, name := range sel.FieldNames {
		var (
			expr string
			ok   bool
		)
		switch {
		case b.cfg.IsSizeField(name):
			expr, ok = sizeRange(sel.Kind, value)
			expr = "size:" + expr
		case strings.Contains(name, "date"):
			expr, ok = digitRange(sel.Kind, value, 8, minDay, maxDay)
			expr = "date:" + expr
		case name == "time":
			expr, ok = digitRange(sel.Kind, value, 6, minTime, maxTime)
			expr = "time:" + expr
		}
		if ok {
			return b.parse(b.parser, expr, "")
		}
	}
	b.logger.Debug("comparison without a value slot, matching as text", "fields", sel.FieldNames, "value", value)
	return nil
}

// proximityQuery puts every word of every value into one NEAR group.
func (b *Builder) proximityQuery(sel queryir.Selection) backend.Query {
	p := b.parserFor(sel.Modifiers)
	field := ""
	for _, name := range sel.FieldNames {
		if prefix, ok := b.cfg.FieldPrefix(name); ok {
			field = prefix
			break
		}
	}

	form := p.Analyzer.Form()
	var terms []backend.Query
	for _, value := range sel.FieldValues {
		for _, word := range p.Analyzer.Tokenize(value) {
			terms = append(terms, backend.Term{Field: field, Text: word, Form: form})
		}
	}

	window := sel.Modifiers.Distance
	if window <= 0 {
		window = b.cfg.Parser.ProximityWindow
	}
	if sel.Modifiers.Ordered {
		return backend.OrderedNear(window, terms...)
	}
	return backend.Near(window, terms...)
}

// typeQuery maps class names, or media types containing a slash, to filters.
func (b *Builder) typeQuery(sel queryir.Selection) backend.Query {
	var subs []backend.Query
	for _, value := range sel.FieldValues {
		if strings.Contains(value, "/") {
			subs = append(subs, b.parse(b.parser, "type:"+quote(value), ""))
			continue
		}
		subs = append(subs, b.filterQuery(b.classFilter(value)))
	}
	return backend.Or(subs...)
}

// classFilter converts a comma separated class list to a filter expression.
// Unknown classes are skipped.
func (b *Builder) classFilter(list string) string {
	var filters []string
	seen := make(map[string]bool)
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		f, ok := b.cfg.ClassFilter(name)
		if !ok {
			b.logger.Debug("unknown content class", "class", name)
			continue
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		if strings.ContainsAny(f, " \t") {
			f = "(" + f + ")"
		}
		filters = append(filters, f)
	}
	return strings.Join(filters, " OR ")
}

func (b *Builder) filterQuery(expr string) backend.Query {
	if expr == "" {
		return nil
	}
	q, err := b.parser.ParseFilter(expr)
	if err != nil {
		b.logger.Debug("filter rejected", "filter", expr, "error", err)
		return nil
	}
	return q
}

// parse runs the backend parser with every syntax feature, falling back to
// plain words when the text is not valid query syntax.
func (b *Builder) parse(p *backend.Parser, text, field string) backend.Query {
	q, err := p.ParseQuery(text, backend.DefaultFlags, field)
	if err == nil {
		return q
	}
	b.logger.Debug("query text rejected, retrying as plain words", "text", text, "error", err)
	q, err = p.ParseQuery(text, 0, field)
	if err != nil {
		return nil
	}
	return q
}

func (b *Builder) parserFor(m queryir.Modifiers) *backend.Parser {
	a := backend.Analyzer{CaseSensitive: m.CaseSensitive, DiacriticSensitive: m.DiacriticSensitive}
	if a == b.parser.Analyzer {
		return b.parser
	}
	return b.parser.WithAnalyzer(a)
}

func (b *Builder) isBooleanField(name string) bool {
	_, ok := b.cfg.BooleanFields[name]
	return ok
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, " ") + `"`
}

// withSlack widens every phrase in q by slack words.
func withSlack(q backend.Query, slack int) backend.Query {
	if slack <= 0 || q == nil {
		return q
	}
	switch n := q.(type) {
	case backend.Phrase:
		n.Window = len(n.Words) + slack
		return n
	case backend.Compound:
		subs := make([]backend.Query, len(n.Subqueries))
		for i, sub := range n.Subqueries {
			subs[i] = withSlack(sub, slack)
		}
		n.Subqueries = subs
		return n
	}
	return q
}
