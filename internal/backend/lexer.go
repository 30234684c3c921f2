package backend

import (
	"strings"
	"unicode"
)

// TokenKind is the type of a query text token.
type TokenKind int

const (
	TokWord TokenKind = iota
	TokPhrase
	TokLParen
	TokRParen
	TokAnd
	TokOr
	TokNot
	TokLove
	TokHate
	TokEOF
)

func (k TokenKind) String() string {
	switch k {
	case TokWord:
		return "Word"
	case TokPhrase:
		return "Phrase"
	case TokLParen:
		return "LParen"
	case TokRParen:
		return "RParen"
	case TokAnd:
		return "And"
	case TokOr:
		return "Or"
	case TokNot:
		return "Not"
	case TokLove:
		return "Love"
	case TokHate:
		return "Hate"
	case TokEOF:
		return "EOF"
	default:
		return "Unknown"
	}
}

// Token is one lexical unit of query text.
//
// Field is set on a phrase written as name:"words". Pos is the rune offset
// of the token in the input.
type Token struct {
	Kind  TokenKind
	Value string
	Field string
	Pos   int
}

// lexer tokenizes query text according to the parser flags.
type lexer struct {
	input []rune
	pos   int
	flags Flag
}

func newLexer(input string, flags Flag) *lexer {
	return &lexer{input: []rune(input), flags: flags}
}

// lex tokenizes the entire input. It never fails: an unterminated phrase
// runs to the end of the input.
func lex(input string, flags Flag) []Token {
	l := newLexer(input, flags)
	var tokens []Token
	for {
		tok := l.next()
		tokens = append(tokens, tok)
		if tok.Kind == TokEOF {
			return tokens
		}
	}
}

func (l *lexer) next() Token {
	l.skipWhitespace()
	start := l.pos
	if l.pos >= len(l.input) {
		return Token{Kind: TokEOF, Pos: start}
	}

	ch := l.input[l.pos]
	switch {
	case ch == '(' && l.flags&FlagBoolean != 0:
		l.pos++
		return Token{Kind: TokLParen, Pos: start}
	case ch == ')' && l.flags&FlagBoolean != 0:
		l.pos++
		return Token{Kind: TokRParen, Pos: start}
	case ch == '"' && l.flags&FlagPhrase != 0:
		l.pos++
		return Token{Kind: TokPhrase, Value: l.readPhrase(), Pos: start}
	case (ch == '+' || ch == '-') && l.flags&FlagLoveHate != 0 && l.startsTerm(l.pos+1):
		l.pos++
		if ch == '+' {
			return Token{Kind: TokLove, Pos: start}
		}
		return Token{Kind: TokHate, Pos: start}
	}

	word := l.readWord()
	if strings.HasSuffix(word, ":") && len(word) > 1 && l.flags&FlagPhrase != 0 &&
		l.pos < len(l.input) && l.input[l.pos] == '"' {
		l.pos++
		return Token{Kind: TokPhrase, Field: strings.TrimSuffix(word, ":"), Value: l.readPhrase(), Pos: start}
	}
	if kind, ok := l.keyword(word); ok {
		return Token{Kind: kind, Value: word, Pos: start}
	}
	return Token{Kind: TokWord, Value: word, Pos: start}
}

func (l *lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(l.input[l.pos]) {
		l.pos++
	}
}

// startsTerm reports whether a term begins at i (for love/hate signs).
func (l *lexer) startsTerm(i int) bool {
	if i >= len(l.input) {
		return false
	}
	r := l.input[i]
	return !unicode.IsSpace(r) && r != '+' && r != '-' && r != ')'
}

// readPhrase consumes up to and including the closing quote.
func (l *lexer) readPhrase() string {
	start := l.pos
	for l.pos < len(l.input) && l.input[l.pos] != '"' {
		l.pos++
	}
	value := string(l.input[start:l.pos])
	if l.pos < len(l.input) {
		l.pos++
	}
	return value
}

// readWord consumes a run of characters up to whitespace, a parenthesis or
// a quote.
func (l *lexer) readWord() string {
	start := l.pos
	for l.pos < len(l.input) {
		r := l.input[l.pos]
		if unicode.IsSpace(r) {
			break
		}
		if (r == '(' || r == ')') && l.flags&FlagBoolean != 0 {
			break
		}
		if r == '"' && l.flags&FlagPhrase != 0 && l.pos > start {
			break
		}
		l.pos++
	}
	if l.pos == start {
		l.pos++
	}
	return string(l.input[start:l.pos])
}

func (l *lexer) keyword(word string) (TokenKind, bool) {
	if l.flags&FlagBoolean == 0 {
		return TokWord, false
	}
	w := word
	if l.flags&FlagBooleanAnyCase != 0 {
		w = strings.ToUpper(word)
	}
	switch w {
	case "AND":
		return TokAnd, true
	case "OR":
		return TokOr, true
	case "NOT":
		return TokNot, true
	}
	return TokWord, false
}
