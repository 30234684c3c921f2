package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *Parser {
	p := NewParser()
	p.AddPrefix("title", "title")
	p.AddPrefix("author", "author")
	p.AddBooleanPrefix("type", "type")
	p.AddBooleanPrefix("class", "class")
	return p
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"single word", "jazz", "Query(jazz)"},
		{"default and", "jazz blues", "Query((jazz AND blues))"},
		{"explicit or", "jazz OR blues", "Query((jazz OR blues))"},
		{"any case keywords", "jazz or blues", "Query((jazz OR blues))"},
		{"and binds tighter", "a OR b AND c", "Query((a OR (b AND c)))"},
		{"parentheses", "(a OR b) AND c", "Query(((a OR b) AND c))"},
		{"and not", "a AND NOT b", "Query((a AND_NOT b))"},
		{"infix not", "a NOT b", "Query((a AND_NOT b))"},
		{"pure not", "NOT cat", "Query((<alldocuments> AND_NOT cat))"},
		{"love hate", "+a b -c", "Query(((a AND b) AND_NOT c))"},
		{"hate only", "-cat", "Query((<alldocuments> AND_NOT cat))"},
		{"phrase", `"hello world"`, "Query((hello PHRASE 2 world))"},
		{"prefixed word", "title:Jazz", "Query(title:jazz)"},
		{"prefixed phrase", `title:"kind of blue"`, "Query((title:kind PHRASE 3 title:of PHRASE 3 title:blue))"},
		{"boolean prefix verbatim", "type:application/pdf", "Query(type:application/pdf)"},
		{"unknown prefix is text", "foo:bar", "Query((foo PHRASE 2 bar))"},
		{"wildcard", "jaz*", "Query(WILDCARD jaz*)"},
		{"date range", "19700101..20090501", "Query(date:19700101..20090501)"},
		{"open date range", "20090501..", "Query(date:20090501..)"},
		{"size range", "size:0..1024", "Query(size:0..1024)"},
		{"time range", "time:000000..103000", "Query(time:000000..103000)"},
		{"hyphenated word", "e-mail", "Query((e PHRASE 2 mail))"},
		{"empty", "", "Query()"},
		{"punctuation only", "...", "Query()"},
	}

	p := newTestParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := p.ParseQuery(tt.input, DefaultFlags, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, Describe(q))
		})
	}
}

func TestParseQuery_DefaultField(t *testing.T) {
	p := newTestParser()

	q, err := p.ParseQuery("kind blue", DefaultFlags, "title")
	require.NoError(t, err)
	assert.Equal(t, "Query((title:kind AND title:blue))", Describe(q))
}

func TestParseQuery_DefaultOpOr(t *testing.T) {
	p := newTestParser()
	p.DefaultOp = OpOr

	q, err := p.ParseQuery("jazz blues", DefaultFlags, "")
	require.NoError(t, err)
	assert.Equal(t, "Query((jazz OR blues))", Describe(q))

	q, err = p.ParseQuery("+jazz blues", DefaultFlags, "")
	require.NoError(t, err)
	assert.Equal(t, "Query(jazz)", Describe(q), "optional terms beside required ones do not filter")
}

func TestParseQuery_FlagsDisabled(t *testing.T) {
	p := newTestParser()

	q, err := p.ParseQuery("a AND b", FlagPhrase, "")
	require.NoError(t, err)
	assert.Equal(t, "Query((a AND and AND b))", Describe(q), "keywords are words without FlagBoolean")

	q, err = p.ParseQuery(`"a b"`, 0, "")
	require.NoError(t, err)
	assert.Equal(t, "Query((a AND b))", Describe(q), "phrases degrade to terms without FlagPhrase")

	q, err = p.ParseQuery("jaz*", FlagBoolean, "")
	require.NoError(t, err)
	assert.Equal(t, "Query(jaz)", Describe(q))
}

func TestParseQuery_SyntaxErrors(t *testing.T) {
	p := newTestParser()

	for _, input := range []string{"(a OR b", "a OR", "a )", "AND a"} {
		t.Run(input, func(t *testing.T) {
			_, err := p.ParseQuery(input, DefaultFlags, "")
			require.Error(t, err)
			var se *SyntaxError
			assert.ErrorAs(t, err, &se)
		})
	}
}

func TestParseQuery_PureNotDisabled(t *testing.T) {
	p := newTestParser()

	_, err := p.ParseQuery("NOT cat", DefaultFlags&^FlagPureNot, "")
	assert.Error(t, err)

	_, err = p.ParseQuery("-cat", DefaultFlags&^FlagPureNot, "")
	assert.Error(t, err)
}

func TestParseQuery_Analyzer(t *testing.T) {
	p := newTestParser().WithAnalyzer(Analyzer{})

	q, err := p.ParseQuery("Crème", DefaultFlags, "")
	require.NoError(t, err)
	assert.Equal(t, "Query(creme)", Describe(q))
	assert.Equal(t, Term{Text: "creme", Form: Bare}, q)

	cased := newTestParser().WithAnalyzer(Analyzer{CaseSensitive: true, DiacriticSensitive: true})
	q, err = cased.ParseQuery(`Bri* "Blue Train"`, DefaultFlags, "")
	require.NoError(t, err)
	assert.Equal(t, And(
		Wildcard{Prefix: "Bri", Form: Cased},
		Phrase{Words: []string{"Blue", "Train"}, Form: Cased},
	), q)

	q, err = cased.ParseQuery("type:Audio", DefaultFlags, "")
	require.NoError(t, err)
	assert.Equal(t, Folded, q.(Term).Form, "verbatim values match every form")
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"single", "class:audio", "Query(class:audio)"},
		{"or", "class:audio OR class:email", "Query((class:audio OR class:email))"},
		{"adjacent terms are anded", "class:audio type:audio/mpeg", "Query((class:audio AND type:audio/mpeg))"},
		{"values verbatim", "type:Application/PDF", "Query(type:Application/PDF)"},
		{"unregistered prefix kept", "dir:/home/me", "Query(dir:/home/me)"},
		{"quoted value", `type:"x-directory/normal"`, "Query(type:x-directory/normal)"},
		{"grouping", "(class:audio OR class:video) AND NOT type:video/ogg", "Query(((class:audio OR class:video) AND_NOT type:video/ogg))"},
		{"empty", "   ", "Query()"},
	}

	p := newTestParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := p.ParseFilter(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Describe(q))
		})
	}
}

func TestLex(t *testing.T) {
	toks := lex(`+a -b title:"x y" (c) OR`, DefaultFlags)

	kinds := make([]TokenKind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
	}
	assert.Equal(t, []TokenKind{
		TokLove, TokWord, TokHate, TokWord, TokPhrase, TokLParen, TokWord, TokRParen, TokOr, TokEOF,
	}, kinds)
	assert.Equal(t, "title", toks[4].Field)
	assert.Equal(t, "x y", toks[4].Value)
}

func TestLex_UnterminatedPhrase(t *testing.T) {
	toks := lex(`"open ended`, DefaultFlags)

	require.Len(t, toks, 2)
	assert.Equal(t, TokPhrase, toks[0].Kind)
	assert.Equal(t, "open ended", toks[0].Value)
}
