// Package querysql compiles backend queries to parameterized SQL over the
// document store schema.
//
// Every query node becomes one common table expression yielding doc_id
// rows. Boolean operators map to INTERSECT, UNION and EXCEPT between those
// expressions; phrase and proximity groups self-join the postings table on
// word positions. The outer SELECT reads matching documents in id order.
package querysql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/roach88/deskquery/internal/backend"
)

// ErrUnsupported is returned for query shapes with no SQL rendering.
var ErrUnsupported = errors.New("unsupported query")

// Dialect selects placeholder and collation syntax.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// String returns the dialect name.
func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// ParseDialect maps a dialect or database/sql driver name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	}
	return SQLite, fmt.Errorf("unknown SQL dialect %q", name)
}

// ResultColumns are the document columns returned by Compile, in order.
var ResultColumns = []string{"id", "url", "ipath", "title", "mimetype", "date_day", "date_time", "size_bytes"}

// slotColumns maps range slots to document columns.
var slotColumns = map[string]string{
	"date": "date_day",
	"time": "date_time",
	"size": "size_bytes",
}

// termColumns maps word forms to postings columns.
var termColumns = [backend.NumForms]string{
	backend.Folded:    "term",
	backend.Cased:     "term_cased",
	backend.Bare:      "term_bare",
	backend.CasedBare: "term_cased_bare",
}

// TermColumn returns the postings column holding words in form f.
func TermColumn(f backend.Form) string {
	if f < 0 || int(f) >= len(termColumns) {
		return termColumns[backend.Folded]
	}
	return termColumns[f]
}

// SQLCompiler compiles backend queries to SQL.
//
// All values are parameterized, never interpolated. Every row query is
// ordered by document id so results are deterministic.
type SQLCompiler struct {
	Dialect Dialect
	// Limit caps the rows returned by Compile. Zero means no limit.
	Limit int
}

// NewSQLCompiler creates a compiler for d.
func NewSQLCompiler(d Dialect) *SQLCompiler {
	return &SQLCompiler{Dialect: d}
}

// Compile converts q to a query returning ResultColumns for every matching
// document. Returns (sql, params, error).
func (c *SQLCompiler) Compile(q backend.Query) (string, []any, error) {
	b, root, err := c.compileTree(q)
	if err != nil {
		return "", nil, err
	}

	cols := make([]string, len(ResultColumns))
	for i, col := range ResultColumns {
		cols[i] = "d." + col
	}
	sql := fmt.Sprintf("%sSELECT %s FROM documents d WHERE d.id IN (SELECT doc_id FROM %s) ORDER BY %s",
		b.with(), strings.Join(cols, ", "), root, c.stableOrderKey())

	args := b.args
	if c.Limit > 0 {
		sql += " LIMIT ?"
		args = append(args, c.Limit)
	}
	return Rebind(c.Dialect, sql), args, nil
}

// CompileCount converts q to a query returning the number of matching
// documents.
func (c *SQLCompiler) CompileCount(q backend.Query) (string, []any, error) {
	b, root, err := c.compileTree(q)
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf("%sSELECT COUNT(*) FROM documents d WHERE d.id IN (SELECT doc_id FROM %s)", b.with(), root)
	return Rebind(c.Dialect, sql), b.args, nil
}

func (c *SQLCompiler) compileTree(q backend.Query) (*cteBuilder, string, error) {
	if q == nil {
		return nil, "", fmt.Errorf("cannot compile nil query")
	}
	b := &cteBuilder{}
	root, err := b.compile(q)
	if err != nil {
		return nil, "", err
	}
	return b, root, nil
}

// stableOrderKey returns the ORDER BY clause. Text ids compare bytewise in
// both dialects.
func (c *SQLCompiler) stableOrderKey() string {
	if c.Dialect == Postgres {
		return `d.id COLLATE "C" ASC`
	}
	return "d.id COLLATE BINARY ASC"
}

// Rebind rewrites ? placeholders to $n for Postgres. sql must not contain
// string literals holding a question mark.
func Rebind(d Dialect, sql string) string {
	if d != Postgres {
		return sql
	}
	var sb strings.Builder
	n := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteByte(sql[i])
	}
	return sb.String()
}

// cteBuilder collects one common table expression per query node, children
// before parents, so params line up with placeholders in reading order.
type cteBuilder struct {
	ctes []string
	args []any
}

func (b *cteBuilder) add(body string, args ...any) string {
	name := "q" + strconv.Itoa(len(b.ctes)+1)
	b.ctes = append(b.ctes, name+" AS ("+body+")")
	b.args = append(b.args, args...)
	return name
}

func (b *cteBuilder) with() string {
	return "WITH\n" + strings.Join(b.ctes, ",\n") + "\n"
}

func (b *cteBuilder) compile(q backend.Query) (string, error) {
	switch n := q.(type) {
	case backend.Term:
		return b.term(n), nil
	case backend.Wildcard:
		col := TermColumn(n.Form)
		return b.add("SELECT doc_id FROM postings WHERE field = ? AND substr("+col+", 1, ?) = ?",
			n.Field, utf8.RuneCountInString(n.Prefix), n.Prefix), nil
	case backend.Range:
		return b.compileRange(n)
	case backend.MatchAll:
		return b.add("SELECT id AS doc_id FROM documents"), nil
	case backend.Phrase:
		terms := make([]backend.Term, len(n.Words))
		for i, w := range n.Words {
			terms[i] = backend.Term{Field: n.Field, Text: w, Form: n.Form}
		}
		return b.positional(terms, n.Window, true), nil
	case backend.Compound:
		return b.compileCompound(n)
	case nil:
		return "", fmt.Errorf("%w: empty subquery", ErrUnsupported)
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupported, q)
}

func (b *cteBuilder) term(t backend.Term) string {
	return b.add("SELECT doc_id FROM postings WHERE field = ? AND "+TermColumn(t.Form)+" = ?", t.Field, t.Text)
}

func (b *cteBuilder) compileRange(r backend.Range) (string, error) {
	col, ok := slotColumns[r.Slot]
	if !ok {
		return "", fmt.Errorf("%w: value slot %q", ErrUnsupported, r.Slot)
	}

	var conds []string
	var args []any
	for _, bound := range []struct {
		value string
		op    string
	}{{r.Lo, ">="}, {r.Hi, "<="}} {
		if bound.value == "" {
			continue
		}
		var arg any = bound.value
		if r.Slot == "size" {
			n, err := strconv.ParseInt(bound.value, 10, 64)
			if err != nil {
				return "", fmt.Errorf("size bound %q: %w", bound.value, err)
			}
			arg = n
		}
		conds = append(conds, col+" "+bound.op+" ?")
		args = append(args, arg)
	}

	body := "SELECT id AS doc_id FROM documents"
	if len(conds) > 0 {
		body += " WHERE " + strings.Join(conds, " AND ")
	}
	return b.add(body, args...), nil
}

func (b *cteBuilder) compileCompound(c backend.Compound) (string, error) {
	switch c.Op {
	case backend.OpNear, backend.OpPhrase:
		terms := make([]backend.Term, 0, len(c.Subqueries))
		for _, sub := range c.Subqueries {
			t, ok := sub.(backend.Term)
			if !ok {
				return "", fmt.Errorf("%w: %s over %T", ErrUnsupported, c.Op, sub)
			}
			terms = append(terms, t)
		}
		return b.positional(terms, c.Window, c.Op == backend.OpPhrase), nil
	}

	var setOp string
	switch c.Op {
	case backend.OpAnd:
		setOp = " INTERSECT "
	case backend.OpOr:
		setOp = " UNION "
	case backend.OpAndNot:
		if len(c.Subqueries) != 2 {
			return "", fmt.Errorf("%w: AND_NOT with %d subqueries", ErrUnsupported, len(c.Subqueries))
		}
		setOp = " EXCEPT "
	default:
		return "", fmt.Errorf("%w: operator %s", ErrUnsupported, c.Op)
	}

	parts := make([]string, 0, len(c.Subqueries))
	for _, sub := range c.Subqueries {
		name, err := b.compile(sub)
		if err != nil {
			return "", err
		}
		parts = append(parts, "SELECT doc_id FROM "+name)
	}
	return b.add(strings.Join(parts, setOp)), nil
}

// positional matches terms whose postings fall within window positions of
// each other. Ordered groups also require increasing positions.
func (b *cteBuilder) positional(terms []backend.Term, window int, ordered bool) string {
	if len(terms) == 1 {
		return b.term(terms[0])
	}

	if window < len(terms) {
		window = len(terms)
	}

	var sb strings.Builder
	sb.WriteString("SELECT p0.doc_id FROM postings p0")
	for i := 1; i < len(terms); i++ {
		fmt.Fprintf(&sb, " JOIN postings p%d ON p%d.doc_id = p0.doc_id", i, i)
	}

	var conds []string
	var args []any
	for i, t := range terms {
		conds = append(conds, fmt.Sprintf("p%d.field = ? AND p%d.%s = ?", i, i, TermColumn(t.Form)))
		args = append(args, t.Field, t.Text)
	}
	last := len(terms) - 1
	if ordered {
		for i := 1; i < len(terms); i++ {
			conds = append(conds, fmt.Sprintf("p%d.position > p%d.position", i, i-1))
		}
		conds = append(conds, fmt.Sprintf("p%d.position - p0.position < ?", last))
		args = append(args, window)
	} else {
		for i := 0; i < len(terms); i++ {
			for j := i + 1; j < len(terms); j++ {
				conds = append(conds, fmt.Sprintf("abs(p%d.position - p%d.position) BETWEEN 1 AND ?", i, j))
				args = append(args, window-1)
			}
		}
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(conds, " AND "))
	return b.add(sb.String(), args...)
}
