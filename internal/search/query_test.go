package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseQueryExtended(t *testing.T) {
	tests := []struct {
		in   string
		want Query
	}{
		{"", nil},
		{"   ", nil},
		{"hello", Query{{{Op: OpFuzzy, Pattern: "hello"}}}},
		{"=exact", Query{{{Op: OpEqual, Pattern: "exact"}}}},
		{"'incl", Query{{{Op: OpInclude, Pattern: "incl"}}}},
		{"!not", Query{{{Op: OpInclude, Negate: true, Pattern: "not"}}}},
		{"^pre", Query{{{Op: OpPrefix, Pattern: "pre"}}}},
		{"!^pre", Query{{{Op: OpPrefix, Negate: true, Pattern: "pre"}}}},
		{"suf$", Query{{{Op: OpSuffix, Pattern: "suf"}}}},
		{"!suf$", Query{{{Op: OpSuffix, Negate: true, Pattern: "suf"}}}},
		{"a 'b", Query{{{Op: OpFuzzy, Pattern: "a"}, {Op: OpInclude, Pattern: "b"}}}},
		{"a | b", Query{{{Op: OpFuzzy, Pattern: "a"}}, {{Op: OpFuzzy, Pattern: "b"}}}},
		{"a|b", Query{{{Op: OpFuzzy, Pattern: "a|b"}}}},
		{`'"two words" x`, Query{{{Op: OpInclude, Pattern: "two words"}, {Op: OpFuzzy, Pattern: "x"}}}},
		{`"a | b"`, Query{{{Op: OpFuzzy, Pattern: "a | b"}}}},
		{"$", Query{{{Op: OpFuzzy, Pattern: "$"}}}},
		{"! ^", nil},
		// operator-only queries carry no terms and select the whole working set
		{"|", nil},
		{"!^", nil},
		{`! | ^ | = | ' | ""`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseQuery(tt.in, true))
		})
	}
}

func TestParseQueryPlain(t *testing.T) {
	q := ParseQuery("  'not | extended$ ", false)
	assert.Equal(t, Query{{{Op: OpFuzzy, Pattern: "'not | extended$"}}}, q)
	assert.True(t, ParseQuery(" ", false).IsEmpty())
}
