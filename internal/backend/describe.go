package backend

import (
	"strconv"
	"strings"
)

// Describe renders q the way search engines print query objects:
//
//	Query((jazz AND class:audio))
//	Query((title:hello PHRASE 2 title:world))
//	Query(date:19700101..20090501)
//
// The empty query renders as "Query()".
func Describe(q Query) string {
	if q == nil {
		return "Query()"
	}
	var sb strings.Builder
	sb.WriteString("Query(")
	describe(&sb, q)
	sb.WriteString(")")
	return sb.String()
}

func describe(sb *strings.Builder, q Query) {
	switch n := q.(type) {
	case Term:
		writeField(sb, n.Field)
		sb.WriteString(n.Text)
	case Phrase:
		sb.WriteString("(")
		for i, w := range n.Words {
			if i > 0 {
				sb.WriteString(" PHRASE ")
				sb.WriteString(strconv.Itoa(phraseWindow(n)))
				sb.WriteString(" ")
			}
			writeField(sb, n.Field)
			sb.WriteString(w)
		}
		sb.WriteString(")")
	case Wildcard:
		sb.WriteString("WILDCARD ")
		writeField(sb, n.Field)
		sb.WriteString(n.Prefix)
		sb.WriteString("*")
	case Range:
		sb.WriteString(n.Slot)
		sb.WriteString(":")
		sb.WriteString(n.Lo)
		sb.WriteString("..")
		sb.WriteString(n.Hi)
	case MatchAll:
		sb.WriteString("<alldocuments>")
	case Compound:
		sb.WriteString("(")
		for i, sub := range n.Subqueries {
			if i > 0 {
				sb.WriteString(" ")
				sb.WriteString(n.Op.String())
				if n.Op == OpNear || n.Op == OpPhrase {
					sb.WriteString(" ")
					sb.WriteString(strconv.Itoa(n.Window))
				}
				sb.WriteString(" ")
			}
			describe(sb, sub)
		}
		sb.WriteString(")")
	}
}

func writeField(sb *strings.Builder, field string) {
	if field != "" {
		sb.WriteString(field)
		sb.WriteString(":")
	}
}

// phraseWindow returns the effective window of a phrase.
func phraseWindow(p Phrase) int {
	if p.Window > 0 {
		return p.Window
	}
	return len(p.Words)
}

// Terms lists the leaf texts of q in depth-first order.
// Phrases contribute their words joined by a space, wildcards their prefix
// followed by "*", ranges "lo..hi".
func Terms(q Query) []string {
	var out []string
	collectTerms(q, &out)
	return out
}

func collectTerms(q Query, out *[]string) {
	switch n := q.(type) {
	case Term:
		*out = append(*out, n.Text)
	case Phrase:
		*out = append(*out, strings.Join(n.Words, " "))
	case Wildcard:
		*out = append(*out, n.Prefix+"*")
	case Range:
		*out = append(*out, n.Lo+".."+n.Hi)
	case Compound:
		for _, sub := range n.Subqueries {
			collectTerms(sub, out)
		}
	}
}
