// Package compact parses the one-line query syntax:
//
//	-cat dog
//	title:jazz OR author:"john coltrane"
//	size>10MB date<2009-05-01 "blue train"c
//
// A query is a run of statements separated by collectors (and, &&, or, ||,
// or plain whitespace for AND). A statement is optional +/- signs, any number
// of field:value selections and a trailing phrase. Quoted phrases may carry
// single-character modifier codes right after the closing quote.
//
// Parsing is best effort: when the grammar stops short of the end of the
// input, the parser skips ahead and carries on with the same builder.
package compact

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/roach88/deskquery/internal/metrics"
	"github.com/roach88/deskquery/internal/queryir"
)

const syntaxName = "compact"

// Span is a piece of input dropped while recovering from a syntax error.
type Span struct {
	Offset int
	Text   string
}

// Result describes one compact parse.
type Result struct {
	// Full is true when the whole input parsed without recovery.
	Full bool
	// Skipped lists the tokens dropped by recovery, in input order.
	Skipped []Span
}

// Parser reads compact queries. Overlapping calls on one Parser are
// serialised.
type Parser struct {
	mu      sync.Mutex
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

// WithMetrics records parse outcomes and recoveries.
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

// Parse drives b with the selections in query. It reports whether the whole
// query parsed without recovery.
func (p *Parser) Parse(query string, b queryir.QueryBuilder) bool {
	return p.ParseDetailed(query, b).Full
}

// ParseFile parses the contents of the file at path.
func (p *Parser) ParseFile(path string, b queryir.QueryBuilder) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read compact query: %w", err)
	}
	return p.ParseDetailed(string(data), b), nil
}

// ParseDetailed is Parse with the recovery details.
func (p *Parser) ParseDetailed(query string, b queryir.QueryBuilder) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := &parseContext{input: query, b: b}
	b.SetCollector(queryir.DefaultCollector())

	res := Result{Full: true}
	resumed := false
	for {
		progressed := c.parseRun(resumed)
		c.skipSpace()
		if c.eof() {
			break
		}
		res.Full = false
		resumed = true
		if progressed {
			continue
		}

		span := c.skipToken()
		res.Skipped = append(res.Skipped, span)
		p.metrics.RecordRetry(syntaxName)
		p.logger.Debug("compact query token skipped", "offset", span.Offset, "text", span.Text)
	}

	p.metrics.RecordParse(syntaxName, res.Full)
	return res
}
