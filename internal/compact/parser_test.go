package compact

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deskquery/internal/backend"
	"github.com/roach88/deskquery/internal/builder"
	"github.com/roach88/deskquery/internal/metrics"
	"github.com/roach88/deskquery/internal/queryir"
	"github.com/roach88/deskquery/internal/testutil"
)

func newTestParser(opts ...Option) *Parser {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(opts...)
}

func negated() queryir.Modifiers {
	m := queryir.DefaultModifiers()
	m.Negate = true
	return m
}

func TestParseNegatedThenDefaultAnd(t *testing.T) {
	r := testutil.NewRecorder(nil)
	require.True(t, newTestParser().Parse("-cat dog", r))

	events := r.Events()
	require.Len(t, events, 4)
	assert.Equal(t, testutil.EventSetCollector, events[0].Type)
	assert.Equal(t, queryir.DefaultCollector(), events[0].Collector)

	assert.Equal(t, testutil.EventOnSelection, events[1].Type)
	assert.Equal(t, queryir.FullText, events[1].Selection.Kind)
	assert.Equal(t, []string{"cat"}, events[1].Selection.FieldValues)
	assert.Nil(t, events[1].Selection.FieldNames)
	assert.Equal(t, negated(), events[1].Selection.Modifiers)

	assert.Equal(t, testutil.EventSetCollector, events[2].Type)
	assert.Equal(t, queryir.Collector{Kind: queryir.And}, events[2].Collector)

	assert.Equal(t, []string{"dog"}, events[3].Selection.FieldValues)
	assert.Equal(t, queryir.DefaultModifiers(), events[3].Selection.Modifiers)
}

func TestParseNegatedThenDefaultAndBuildsPureNot(t *testing.T) {
	b := builder.New(nil, builder.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.True(t, newTestParser().Parse("-cat dog", b))
	assert.Equal(t, "Query(((<alldocuments> AND_NOT cat) AND dog))", backend.Describe(b.GetQuery()))
}

func TestParseRecoversFromUnterminatedQuote(t *testing.T) {
	r := testutil.NewRecorder(nil)
	res := newTestParser().ParseDetailed(`"unterminated AND valid:term`, r)

	assert.False(t, res.Full)
	assert.Equal(t, []Span{{Offset: 0, Text: `"unterminated`}}, res.Skipped)

	sels := r.Selections()
	require.Len(t, sels, 1)
	assert.Equal(t, queryir.Equals, sels[0].Kind)
	assert.Equal(t, []string{"valid"}, sels[0].FieldNames)
	assert.Equal(t, []string{"term"}, sels[0].FieldValues)
	assert.Equal(t, queryir.String, sels[0].ValueType)
}

func TestParseCollectors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []queryir.CollectorKind
	}{
		{"implicit", "a b c", []queryir.CollectorKind{queryir.And, queryir.And}},
		{"and keyword", "a AND b", []queryir.CollectorKind{queryir.And}},
		{"or keyword", "a or b", []queryir.CollectorKind{queryir.Or}},
		{"mixed case", "a Or b", []queryir.CollectorKind{queryir.Or}},
		{"symbols", "a || b && c", []queryir.CollectorKind{queryir.Or, queryir.And}},
		{"after selection", "title:jazz OR blues", []queryir.CollectorKind{queryir.Or}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testutil.NewRecorder(nil)
			require.True(t, newTestParser().Parse(tt.query, r))

			var got []queryir.CollectorKind
			for _, e := range r.Events()[1:] {
				if e.Type == testutil.EventSetCollector {
					got = append(got, e.Collector.Kind)
				}
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want)+1, r.Count(testutil.EventOnSelection))
		})
	}
}

func TestParseSelections(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		kind      queryir.SelectionKind
		fields    []string
		values    []string
		valueType queryir.ValueType
	}{
		{"colon", "title:jazz", queryir.Equals, []string{"title"}, []string{"jazz"}, queryir.String},
		{"equals sign", "Author=coltrane", queryir.Equals, []string{"author"}, []string{"coltrane"}, queryir.String},
		{"quoted value", `title:"giant steps"`, queryir.Equals, []string{"title"}, []string{"giant steps"}, queryir.Phrase},
		{"less than date", "date<2009-05-01", queryir.LessThan, []string{"date"}, []string{"2009-05-01"}, queryir.Date},
		{"less equal integer", "size<=1024", queryir.LessThanEquals, []string{"size"}, []string{"1024"}, queryir.Integer},
		{"greater than humanized", "size>10MB", queryir.GreaterThan, []string{"size"}, []string{"10MB"}, queryir.Integer},
		{"greater equal text", "author>=m", queryir.GreaterThanEquals, []string{"author"}, []string{"m"}, queryir.String},
		{"timestamp", `date>="2009-05-01T10:30:00"`, queryir.GreaterThanEquals, []string{"date"}, []string{"2009-05-01T10:30:00"}, queryir.Date},
		{"bare word", "jazz", queryir.FullText, nil, []string{"jazz"}, queryir.String},
		{"quoted phrase", `"blue train"`, queryir.FullText, nil, []string{"blue train"}, queryir.Phrase},
		{"no field name", ":jazz", queryir.FullText, nil, []string{":jazz"}, queryir.String},
		{"empty value", "title:", queryir.FullText, nil, []string{"title:"}, queryir.String},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testutil.NewRecorder(nil)
			require.True(t, newTestParser().Parse(tt.query, r))

			sels := r.Selections()
			require.Len(t, sels, 1)
			assert.Equal(t, tt.kind, sels[0].Kind)
			assert.Equal(t, tt.fields, sels[0].FieldNames)
			assert.Equal(t, tt.values, sels[0].FieldValues)
			assert.Equal(t, tt.valueType, sels[0].ValueType)
		})
	}
}

func TestParseStatementWithSeveralSelections(t *testing.T) {
	r := testutil.NewRecorder(nil)
	require.True(t, newTestParser().Parse(`-title:jazz author:"john coltrane" "blue train"`, r))

	sels := r.Selections()
	require.Len(t, sels, 3)
	for _, sel := range sels {
		assert.True(t, sel.Modifiers.Negate)
	}
	assert.Equal(t, []string{"title"}, sels[0].FieldNames)
	assert.Equal(t, []string{"author"}, sels[1].FieldNames)
	assert.Equal(t, queryir.FullText, sels[2].Kind)
	assert.Equal(t, []string{"blue train"}, sels[2].FieldValues)

	// One statement, so no collector boundary after the root.
	assert.Equal(t, 1, r.Count(testutil.EventSetCollector))
}

func TestParseSignStartsNewStatement(t *testing.T) {
	r := testutil.NewRecorder(nil)
	require.True(t, newTestParser().Parse("title:jazz -blues", r))

	sels := r.Selections()
	require.Len(t, sels, 2)
	assert.False(t, sels[0].Modifiers.Negate)
	assert.Equal(t, []string{"blues"}, sels[1].FieldValues)
	assert.True(t, sels[1].Modifiers.Negate)
	assert.Equal(t, 2, r.Count(testutil.EventSetCollector))
}

func TestParseEmptyTrailingPhrase(t *testing.T) {
	r := testutil.NewRecorder(nil)
	require.True(t, newTestParser().Parse(`title:jazz ""`, r))

	sels := r.Selections()
	require.Len(t, sels, 1)
	assert.Equal(t, queryir.Equals, sels[0].Kind)
}

func TestParseModifierCodes(t *testing.T) {
	tests := []struct {
		name  string
		query string
		kind  queryir.SelectionKind
		mods  func(*queryir.Modifiers)
	}{
		{"none", `"a b"`, queryir.FullText, func(*queryir.Modifiers) {}},
		{"case sensitive", `"a b"c`, queryir.FullText, func(m *queryir.Modifiers) { m.CaseSensitive = true }},
		{"case insensitive wins", `"a b"cC`, queryir.FullText, func(*queryir.Modifiers) {}},
		{"diacritic insensitive", `"a b"D`, queryir.FullText, func(m *queryir.Modifiers) { m.DiacriticSensitive = false }},
		{"no stemming", `"a b"l`, queryir.FullText, func(m *queryir.Modifiers) { m.Stemming = false }},
		{"exact", `"a b"e`, queryir.FullText, func(m *queryir.Modifiers) {
			m.CaseSensitive = true
			m.DiacriticSensitive = true
			m.Stemming = false
		}},
		{"fuzzy and boost", `"a b"fb`, queryir.FullText, func(m *queryir.Modifiers) {
			m.Fuzzy = 0.5
			m.Boost = 2
		}},
		{"proximity", `"a b"p`, queryir.Proximity, func(m *queryir.Modifiers) { m.Distance = 10 }},
		{"ordered proximity", `"a b"po`, queryir.Proximity, func(m *queryir.Modifiers) {
			m.Distance = 10
			m.Ordered = true
		}},
		{"sloppy", `"a b"s`, queryir.FullText, func(m *queryir.Modifiers) { m.Slack = 1 }},
		{"word boundary", `"a b"w`, queryir.Contains, func(*queryir.Modifiers) {}},
		{"regexp", `"a.*b"r`, queryir.RegExp, func(*queryir.Modifiers) {}},
		{"unknown codes", `"a b"xyz`, queryir.FullText, func(*queryir.Modifiers) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testutil.NewRecorder(nil)
			require.True(t, newTestParser().Parse(tt.query, r))

			sels := r.Selections()
			require.Len(t, sels, 1)
			want := queryir.DefaultModifiers()
			tt.mods(&want)
			assert.Equal(t, tt.kind, sels[0].Kind)
			assert.Equal(t, want, sels[0].Modifiers)
			assert.Equal(t, queryir.Phrase, sels[0].ValueType)
		})
	}
}

func TestParseComments(t *testing.T) {
	r := testutil.NewRecorder(nil)
	require.True(t, newTestParser().Parse("# saved search\njazz # genre\n  blues\n# done", r))

	sels := r.Selections()
	require.Len(t, sels, 2)
	assert.Equal(t, []string{"jazz"}, sels[0].FieldValues)
	assert.Equal(t, []string{"blues"}, sels[1].FieldValues)
}

func TestParseRecovery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		skipped []Span
		values  []string
	}{
		{"dangling collector", "jazz and", []Span{{Offset: 5, Text: "and"}}, []string{"jazz"}},
		{"leading collector", "OR jazz", []Span{{Offset: 0, Text: "OR"}}, []string{"jazz"}},
		{"quote after value", `a:b"c d`, []Span{{Offset: 3, Text: `"c`}}, []string{"b", "d"}},
		{"broken quote midway", `jazz "blue train`, []Span{{Offset: 5, Text: `"blue`}}, []string{"jazz", "train"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testutil.NewRecorder(nil)
			res := newTestParser().ParseDetailed(tt.query, r)

			assert.False(t, res.Full)
			assert.Equal(t, tt.skipped, res.Skipped)
			var values []string
			for _, sel := range r.Selections() {
				values = append(values, sel.FieldValues...)
			}
			assert.Equal(t, tt.values, values)
		})
	}
}

func TestParseEmptyInput(t *testing.T) {
	for _, q := range []string{"", "   ", "# only a comment"} {
		r := testutil.NewRecorder(nil)
		assert.True(t, newTestParser().Parse(q, r), "query %q", q)
		assert.Equal(t, 0, r.Count(testutil.EventOnSelection))
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.txt")
	require.NoError(t, os.WriteFile(path, []byte("title:jazz OR author:coltrane\n"), 0o644))

	b := builder.New(nil, builder.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	res, err := newTestParser().ParseFile(path, b)
	require.NoError(t, err)
	assert.True(t, res.Full)
	assert.Equal(t, "Query((title:jazz OR author:coltrane))", backend.Describe(b.GetQuery()))

	_, err = newTestParser().ParseFile(filepath.Join(t.TempDir(), "missing.txt"), b)
	assert.Error(t, err)
}

func TestParseRecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	p := newTestParser(WithMetrics(m))

	p.Parse("jazz", testutil.NewRecorder(nil))
	p.Parse(`"broken jazz and`, testutil.NewRecorder(nil))

	assert.Equal(t, 1.0, promtest.ToFloat64(m.ParsesTotal.WithLabelValues("compact", "ok")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.ParsesTotal.WithLabelValues("compact", "error")))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.ParseRetriesTotal.WithLabelValues("compact")))
}

func TestParseConcurrent(t *testing.T) {
	p := newTestParser()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := testutil.NewRecorder(nil)
			res := p.ParseDetailed(`title:jazz -"smooth jazz"c OR size>1MB broken"`, r)
			assert.False(t, res.Full)
			assert.Equal(t, 4, r.Count(testutil.EventOnSelection))
		}()
	}
	wg.Wait()
}
