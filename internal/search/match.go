package search

import (
	"unicode"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"
)

// runeSpan is an inclusive rune interval.
type runeSpan struct{ start, end int }

type termMatch struct {
	ok    bool
	score float64
	spans []runeSpan
}

// compiledTerm caches the case-folded pattern.
type compiledTerm struct {
	Term
	folded []rune
}

func compile(q Query) [][]compiledTerm {
	out := make([][]compiledTerm, 0, len(q))
	for _, g := range q {
		cg := make([]compiledTerm, 0, len(g))
		for _, t := range g {
			cg = append(cg, compiledTerm{Term: t, folded: fold(t.Pattern)})
		}
		out = append(out, cg)
	}
	return out
}

// fold lowercases rune by rune so offsets in the folded form equal offsets
// in the raw string.
func fold(s string) []rune {
	runes := []rune(s)
	for i, r := range runes {
		runes[i] = unicode.ToLower(r)
	}
	return runes
}

// maxErrors returns the edit budget for a pattern of m runes.
func maxErrors(threshold float64, m int) int {
	if threshold <= 0 {
		return 0
	}
	if threshold >= 1 {
		return m
	}
	return int(threshold * float64(m))
}

// approximate finds the substrings of text closest to pattern by edit
// distance (Sellers' algorithm: Levenshtein with a free starting point).
// It returns the fewest errors found and every non-overlapping occurrence at
// that distance, or ok=false when no substring is within maxErr edits.
func approximate(pattern, text []rune, maxErr int) (errs int, spans []runeSpan, ok bool) {
	m := len(pattern)
	if m == 0 {
		return 0, nil, false
	}

	type candidate struct{ errs, start, end int }
	var cands []candidate

	prevD, prevS := make([]int, m+1), make([]int, m+1)
	curD, curS := make([]int, m+1), make([]int, m+1)
	for i := range prevD {
		prevD[i] = i
	}
	for j, c := range text {
		curD[0], curS[0] = 0, j+1
		for i := 1; i <= m; i++ {
			cost := 1
			if pattern[i-1] == c {
				cost = 0
			}
			d, s := prevD[i-1]+cost, prevS[i-1]
			if v := curD[i-1] + 1; v < d {
				d, s = v, curS[i-1]
			}
			if v := prevD[i] + 1; v < d {
				d, s = v, prevS[i]
			}
			curD[i], curS[i] = d, s
		}
		if curD[m] <= maxErr {
			cands = append(cands, candidate{curD[m], curS[m], j})
		}
		prevD, curD = curD, prevD
		prevS, curS = curS, prevS
	}
	// deleting the whole pattern always fits a budget of m
	if len(cands) == 0 && maxErr >= m {
		return m, nil, true
	}
	if len(cands) == 0 {
		return 0, nil, false
	}

	best := cands[0].errs
	for _, c := range cands[1:] {
		if c.errs < best {
			best = c.errs
		}
	}
	// candidates arrive by end; at one start the longest alignment wins
	for _, c := range cands {
		if c.errs != best || c.start > c.end {
			continue
		}
		if n := len(spans); n > 0 {
			if c.start == spans[n-1].start {
				spans[n-1].end = c.end
				continue
			}
			if c.start <= spans[n-1].end {
				continue
			}
		}
		spans = append(spans, runeSpan{c.start, c.end})
	}
	return best, spans, true
}

func hasPrefixRunes(s, p []rune) bool {
	if len(p) > len(s) {
		return false
	}
	for i := range p {
		if s[i] != p[i] {
			return false
		}
	}
	return true
}

// occurrences returns every non-overlapping exact occurrence of p in s.
func occurrences(s, p []rune) []runeSpan {
	var out []runeSpan
	if len(p) == 0 {
		return nil
	}
	for i := 0; i+len(p) <= len(s); {
		if hasPrefixRunes(s[i:], p) {
			out = append(out, runeSpan{i, i + len(p) - 1})
			i += len(p)
			continue
		}
		i++
	}
	return out
}

func matchExact(t compiledTerm, text []rune) (bool, []runeSpan) {
	p := t.folded
	n, m := len(text), len(p)
	switch t.Op {
	case OpEqual:
		if n == m && hasPrefixRunes(text, p) {
			return true, []runeSpan{{0, n - 1}}
		}
	case OpInclude:
		if occ := occurrences(text, p); len(occ) > 0 {
			return true, occ
		}
	case OpPrefix:
		if hasPrefixRunes(text, p) {
			return true, []runeSpan{{0, m - 1}}
		}
	case OpSuffix:
		if m <= n && hasPrefixRunes(text[n-m:], p) {
			return true, []runeSpan{{n - m, n - 1}}
		}
	}
	return false, nil
}

// matchTerm evaluates one term against a field. Negated terms succeed with a
// perfect score and no spans.
func matchTerm(t compiledTerm, f *field, asPath bool, threshold float64) termMatch {
	if t.Op != OpFuzzy {
		ok, spans := matchExact(t, f.folded)
		if t.Negate {
			return termMatch{ok: !ok}
		}
		return termMatch{ok: ok, spans: spans}
	}

	m := len(t.folded)
	errs, spans, ok := approximate(t.folded, f.folded, maxErrors(threshold, m))
	res := termMatch{ok: ok, spans: spans}
	if ok {
		res.score = float64(errs) / float64(m)
	}
	if asPath {
		if pm, found := matchPath(t.Pattern, f.value, threshold); found && (!res.ok || pm.score < res.score) {
			res = pm
		}
	}
	return res
}

// matchPath matches pattern as an in-order subsequence of a path. The gap
// ratio 1 - m/spanLen must stay within threshold.
func matchPath(pattern, value string, threshold float64) (termMatch, bool) {
	matches := fuzzy.Find(pattern, []string{value})
	if len(matches) == 0 || len(matches[0].MatchedIndexes) == 0 {
		return termMatch{}, false
	}

	runeAt := make([]int, len(value)+1)
	ri := 0
	for b := range value {
		runeAt[b] = ri
		ri++
	}
	idx := make([]int, 0, len(matches[0].MatchedIndexes))
	for _, b := range matches[0].MatchedIndexes {
		if b >= 0 && b < len(value) {
			idx = append(idx, runeAt[b])
		}
	}
	if len(idx) == 0 {
		return termMatch{}, false
	}

	m := utf8.RuneCountInString(pattern)
	spanLen := idx[len(idx)-1] - idx[0] + 1
	gap := 1 - float64(m)/float64(spanLen)
	if gap < 0 {
		gap = 0
	}
	if gap > threshold {
		return termMatch{}, false
	}

	var spans []runeSpan
	for _, i := range idx {
		if n := len(spans); n > 0 && spans[n-1].end+1 == i {
			spans[n-1].end = i
			continue
		}
		spans = append(spans, runeSpan{i, i})
	}
	return termMatch{ok: true, score: gap, spans: spans}, true
}
