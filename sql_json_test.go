package filter

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

func TestJSONFragments(t *testing.T) {
	doc := Col(`data`)

	cases := []struct {
		name string
		frag Fragment
	}{
		{`extract`, JSONExtract{Doc: doc, Path: `a.b`}},
		{`value`, JSONValue{Doc: doc, Path: `a.b`}},
		{`unquote`, JSONUnquote{Expr: JSONExtract{Doc: doc, Path: `a`}}},
		{`length`, JSONLength{Doc: doc, Path: `tags`}},
		{`length_root`, JSONLength{Doc: doc}},
		{`contains`, JSONContains{Doc: doc, Path: `tags`, Value: `x`}},
		{`contains_null`, JSONContains{Doc: doc, Path: `tags`}},
		{`not_overlaps`, JSONOverlaps{Doc: doc, Path: `tags`, Values: []any{`x`, int64(2)}, Not: true}},
		{`elem_match`, JSONElemMatch{
			Doc:   doc,
			Path:  `scores`,
			Where: Comparison{Left: JSONElem{}, Sign: Greater, Value: int64(3)},
		}},
		{`search`, JSONSearch{Doc: doc, Mode: SearchAll, Pattern: `%ali%`}},
		{`search_path`, JSONSearch{Doc: doc, Pattern: `%a%`, Path: `names`, Not: true}},
	}

	var buf bytes.Buffer
	for _, dialect := range []Dialect{SQLite, Postgres, MySQL} {
		for _, tc := range cases {
			text, args := render(tc.frag, dialect)
			fmt.Fprintf(&buf, "%v %v: %v %v\n", dialect, tc.name, text, args)
		}
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(`testdata/golden`),
		goldie.WithNameSuffix(`.golden`),
	)
	g.Assert(t, `json_fragments`, buf.Bytes())
}

func TestJSONPathValidation(t *testing.T) {
	assert.Panics(t, func() {
		render(JSONExtract{Doc: Col(`data`), Path: `a'); DROP TABLE x; --`}, SQLite)
	})
}

func TestJSONInversion(t *testing.T) {
	cond := JSONContains{Doc: Col(`tags`), Value: `x`}

	text, _ := render(Invert(cond), SQLite)
	assert.Equal(t, `NOT EXISTS (SELECT 1 FROM json_each("tags", '$') WHERE json_each.value COLLATE NOCASE = ?)`, text)

	text, _ = render(Invert(cond), MySQL)
	assert.Equal(t, "NOT JSON_CONTAINS(`tags`, JSON_ARRAY(?), '$')", text)
}
