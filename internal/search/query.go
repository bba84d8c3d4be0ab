package search

import (
	"strings"
	"unicode"
)

// Op is the kind of comparison a query term performs against a field.
type Op int

const (
	OpFuzzy   Op = iota // word
	OpEqual             // =word
	OpInclude           // 'word
	OpPrefix            // ^word
	OpSuffix            // word$
)

func (o Op) String() string {
	switch o {
	case OpEqual:
		return "equal"
	case OpInclude:
		return "include"
	case OpPrefix:
		return "prefix"
	case OpSuffix:
		return "suffix"
	default:
		return "fuzzy"
	}
}

// Term is one token of a query.
type Term struct {
	Op      Op
	Negate  bool
	Pattern string
}

// Group is a conjunction of terms.
type Group []Term

// Query is a disjunction of groups. A field matches a query when it matches
// every term of at least one group.
type Query []Group

// IsEmpty reports whether the query has no terms.
func (q Query) IsEmpty() bool {
	for _, g := range q {
		if len(g) > 0 {
			return false
		}
	}
	return true
}

// ParseQuery parses a search term. With extended set, the term follows the
// extended grammar:
//
//	word      fuzzy match
//	=word     field equals word
//	'word     field contains word
//	!word     field does not contain word
//	^word     field starts with word
//	!^word    field does not start with word
//	word$     field ends with word
//	!word$    field does not end with word
//
// Whitespace separates AND terms, " | " separates OR groups and double quotes
// keep spaces inside a term. Without extended, the trimmed term is one fuzzy
// pattern.
func ParseQuery(term string, extended bool) Query {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}
	if !extended {
		return Query{Group{{Op: OpFuzzy, Pattern: term}}}
	}

	var q Query
	for _, part := range splitGroups(term) {
		var g Group
		for _, tok := range tokenize(part) {
			if t, ok := parseTerm(tok); ok {
				g = append(g, t)
			}
		}
		if len(g) > 0 {
			q = append(q, g)
		}
	}
	return q
}

// splitGroups splits on a '|' that stands alone between spaces and is not
// inside quotes.
func splitGroups(s string) []string {
	var parts []string
	runes := []rune(s)
	inQuote := false
	start := 0
	for i, r := range runes {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == '|' && !inQuote:
			before := i == 0 || unicode.IsSpace(runes[i-1])
			after := i == len(runes)-1 || unicode.IsSpace(runes[i+1])
			if before && after {
				parts = append(parts, string(runes[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, string(runes[start:]))
}

// tokenize splits on whitespace outside double quotes. Quote characters are
// kept so parseTerm can tell `="a b"` from `=a`.
func tokenize(s string) []string {
	var toks []string
	var cur strings.Builder
	inQuote := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case unicode.IsSpace(r) && !inQuote:
			if cur.Len() > 0 {
				toks = append(toks, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		toks = append(toks, cur.String())
	}
	return toks
}

func parseTerm(tok string) (Term, bool) {
	var t Term
	switch {
	case strings.HasPrefix(tok, "!^"):
		t.Negate, t.Op, tok = true, OpPrefix, tok[2:]
	case strings.HasPrefix(tok, "!"):
		t.Negate, tok = true, tok[1:]
		if strings.HasSuffix(tok, "$") && len(tok) > 1 {
			t.Op, tok = OpSuffix, strings.TrimSuffix(tok, "$")
		} else {
			t.Op = OpInclude
		}
	case strings.HasPrefix(tok, "="):
		t.Op, tok = OpEqual, tok[1:]
	case strings.HasPrefix(tok, "'"):
		t.Op, tok = OpInclude, tok[1:]
	case strings.HasPrefix(tok, "^"):
		t.Op, tok = OpPrefix, tok[1:]
	case strings.HasSuffix(tok, "$") && len(tok) > 1:
		t.Op, tok = OpSuffix, strings.TrimSuffix(tok, "$")
	default:
		t.Op = OpFuzzy
	}
	t.Pattern = unquote(tok)
	return t, t.Pattern != ""
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return strings.ReplaceAll(s, `"`, "")
}
