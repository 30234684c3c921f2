package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/deskquery/internal/backend"
	"github.com/roach88/deskquery/internal/builder"
	"github.com/roach88/deskquery/internal/compact"
	"github.com/roach88/deskquery/internal/config"
	"github.com/roach88/deskquery/internal/document"
	"github.com/roach88/deskquery/internal/metrics"
	"github.com/roach88/deskquery/internal/store"
	"github.com/roach88/deskquery/internal/structured"
	"github.com/roach88/deskquery/internal/testutil"
)

// Harness is the test execution engine.
type Harness struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Harness.
type Option func(*Harness)

// WithConfig sets the field and class tables used by the builder.
func WithConfig(cfg *config.Config) Option {
	return func(h *Harness) {
		if cfg != nil {
			h.cfg = cfg
		}
	}
}

// WithLogger sets the logger handed to parsers, builder and store.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMetrics records parse and selection outcomes of every scenario.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Harness) {
		h.metrics = m
	}
}

// New creates a Harness with the default configuration. Logs are discarded
// unless a logger is given.
func New(opts ...Option) *Harness {
	h := &Harness{
		cfg:    config.Default(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with a default Harness.
func Run(scenario *Scenario) (*Result, error) {
	return New().Run(scenario)
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
// 1. Tee a recorder to a fresh builder
// 2. Parse the query with the scenario's syntax
// 3. Search the scenario documents, if any, in a fresh in-memory store
// 4. Check the expect clause and assertions
//
// The returned error reports a scenario that could not be executed; failed
// expectations are reported through Result.Errors.
func (h *Harness) Run(scenario *Scenario) (*Result, error) {
	b := builder.New(h.cfg, builder.WithLogger(h.logger), builder.WithMetrics(h.metrics))
	rec := testutil.NewRecorder(b)
	result := NewResult()

	switch scenario.Syntax {
	case SyntaxCompact:
		if scenario.Content != "" || scenario.Source != "" {
			rec.OnQuery(scenario.Content, scenario.Source)
		}
		p := compact.New(compact.WithLogger(h.logger), compact.WithMetrics(h.metrics))
		res := p.ParseDetailed(scenario.Query, rec)
		result.Full = res.Full
		for _, span := range res.Skipped {
			result.Skipped = append(result.Skipped, span.Text)
		}
	case SyntaxStructured:
		p := structured.New(structured.WithLogger(h.logger), structured.WithMetrics(h.metrics))
		err := p.ParseString(scenario.Query, rec)
		result.Full = err == nil
		if err != nil {
			var pe *structured.ParseError
			if !errors.As(err, &pe) {
				return nil, fmt.Errorf("structured parse: %w", err)
			}
			result.ErrorCode = pe.Code
		}
	default:
		return nil, fmt.Errorf("unknown syntax %q", scenario.Syntax)
	}
	result.Events = rec.Events()

	// A failed structured parse leaves a partial query that callers discard.
	if result.ErrorCode == "" {
		q := b.GetQuery()
		result.Description = backend.Describe(q)

		if len(scenario.Documents) > 0 {
			matches, err := h.search(scenario.Documents, q)
			if err != nil {
				return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
			}
			result.Matches = matches
		}
	}

	for _, msg := range checkExpect(result, scenario.Expect) {
		result.AddError(msg)
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// search indexes docs into a fresh in-memory store and returns the URLs
// matching q.
func (h *Harness) search(docs []document.Metadata, q backend.Query) ([]string, error) {
	ctx := context.Background()

	st, err := store.Open(ctx, config.StoreConfig{Driver: "sqlite", DSN: ":memory:"},
		store.WithLogger(h.logger), store.WithMetrics(h.metrics))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	for i, m := range docs {
		d, err := document.FromMetadata(m, h.cfg)
		if err != nil {
			return nil, fmt.Errorf("documents[%d]: %w", i, err)
		}
		if _, err := st.Put(ctx, d); err != nil {
			return nil, fmt.Errorf("documents[%d]: %w", i, err)
		}
	}

	recs, err := st.Search(ctx, q, 0)
	if err != nil {
		return nil, err
	}
	matches := []string{}
	for _, r := range recs {
		matches = append(matches, r.URL)
	}
	return matches, nil
}

// checkExpect compares the result with the expect clause.
func checkExpect(result *Result, expect ExpectClause) []string {
	var errs []string

	if expect.Full != nil && *expect.Full != result.Full {
		errs = append(errs, fmt.Sprintf("expect.full: want %t, got %t", *expect.Full, result.Full))
	}
	if expect.Error != result.ErrorCode {
		errs = append(errs, fmt.Sprintf("expect.error: want %q, got %q", expect.Error, result.ErrorCode))
	}
	if expect.Description != "" && expect.Description != result.Description {
		errs = append(errs, fmt.Sprintf("expect.description: want %q, got %q", expect.Description, result.Description))
	}
	if expect.Selections != nil && *expect.Selections != result.Selections() {
		errs = append(errs, fmt.Sprintf("expect.selections: want %d, got %d", *expect.Selections, result.Selections()))
	}
	if expect.Skipped != nil && !slices.Equal(expect.Skipped, result.Skipped) {
		errs = append(errs, fmt.Sprintf("expect.skipped: want %q, got %q", expect.Skipped, result.Skipped))
	}
	if expect.Matches != nil && !slices.Equal(expect.Matches, result.Matches) {
		errs = append(errs, fmt.Sprintf("expect.matches: want %q, got %q", expect.Matches, result.Matches))
	}

	return errs
}
