package filter

import (
	"fmt"
	"strings"
)

/*
Appends a JSON path literal for the current dialect. An empty path addresses
the document root. Paths are validated rather than escaped: anything other
than dot-separated word characters is a programming error.
*/
func appendJSONPath(buf *Buffer, path string) { appendJSONPathSuffix(buf, path, ``) }

func appendJSONPathSuffix(buf *Buffer, path string, suffix string) {
	if path != `` && !isDottedPath(path) {
		panic(fmt.Errorf(`[filter] invalid JSON path %q`, path))
	}

	if buf.Options.Dialect == Postgres {
		buf.Str(`'{`)
		buf.Str(strings.ReplaceAll(path, `.`, `,`))
		buf.Str(`}'`)
		return
	}

	buf.Str(`'$`)
	if path != `` {
		buf.Str(`.`)
		buf.Str(path)
	}
	buf.Str(suffix)
	buf.Str(`'`)
}

/*
Extracts the JSON value at the path. The result is JSON in MySQL and Postgres
(jsonb), and an SQL value in SQLite, where `json_extract` already unquotes
scalars.
*/
type JSONExtract struct {
	Doc  Fragment
	Path string
}

func (self JSONExtract) AppendTo(buf *Buffer) {
	if buf.Options.Dialect == Postgres {
		buf.Str(`(`)
		buf.Frag(self.Doc)
		buf.Str(` #> `)
		appendJSONPath(buf, self.Path)
		buf.Str(`)`)
		return
	}

	buf.Str(`json_extract(`)
	buf.Frag(self.Doc)
	buf.Str(`, `)
	appendJSONPath(buf, self.Path)
	buf.Str(`)`)
}

// Converts an extracted JSON scalar into SQL text.
type JSONUnquote struct{ Expr Fragment }

func (self JSONUnquote) AppendTo(buf *Buffer) {
	switch buf.Options.Dialect {
	case SQLite:
		buf.Frag(self.Expr)
	case MySQL:
		buf.Str(`JSON_UNQUOTE(`)
		buf.Frag(self.Expr)
		buf.Str(`)`)
	default:
		buf.Str(`(`)
		buf.Frag(self.Expr)
		buf.Str(` #>> '{}')`)
	}
}

/*
Scalar at the path as an SQL value, with JSON null mapped to SQL NULL. This is
the counterpart of resolving a nested field in memory.
*/
type JSONValue struct {
	Doc  Fragment
	Path string
}

func (self JSONValue) AppendTo(buf *Buffer) {
	switch buf.Options.Dialect {
	case SQLite:
		JSONExtract(self).AppendTo(buf)
	case MySQL:
		buf.Str(`JSON_VALUE(`)
		buf.Frag(self.Doc)
		buf.Str(`, `)
		appendJSONPath(buf, self.Path)
		buf.Str(`)`)
	default:
		buf.Str(`(`)
		buf.Frag(self.Doc)
		buf.Str(` #>> `)
		appendJSONPath(buf, self.Path)
		buf.Str(`)`)
	}
}

/*
Length of the JSON array at the path. The counterpart of `$length` on lists.
*/
type JSONLength struct {
	Doc  Fragment
	Path string
}

func (self JSONLength) AppendTo(buf *Buffer) {
	switch buf.Options.Dialect {
	case SQLite:
		buf.Str(`json_array_length(`)
	case MySQL:
		buf.Str(`JSON_LENGTH(`)
	default:
		buf.Str(`jsonb_array_length(`)
		buf.Frag(self.Doc)
		buf.Str(` #> `)
		appendJSONPath(buf, self.Path)
		buf.Str(`)`)
		return
	}
	buf.Frag(self.Doc)
	if self.Path != `` {
		buf.Str(`, `)
		appendJSONPath(buf, self.Path)
	}
	buf.Str(`)`)
}

/*
True when the JSON array at the path contains an element equal to the value.
The counterpart of `$eq` on multi-valued fields. SQLite and Postgres compare
strings case-insensitively; MySQL uses `JSON_CONTAINS`, which compares JSON
strings exactly.
*/
type JSONContains struct {
	Doc   Fragment
	Path  string
	Value any
	Not   bool
}

func (self JSONContains) NeedsParens() bool { return false }

func (self JSONContains) Inverted() Condition {
	self.Not = !self.Not
	return self
}

func (self JSONContains) AppendTo(buf *Buffer) {
	if buf.Options.Dialect == MySQL {
		if self.Not {
			buf.Str(`NOT `)
		}
		buf.Str(`JSON_CONTAINS(`)
		buf.Frag(self.Doc)
		buf.Str(`, JSON_ARRAY(`)
		buf.Val(self.Value)
		buf.Str(`), `)
		appendJSONPath(buf, self.Path)
		buf.Str(`)`)
		return
	}

	appendJSONElems(buf, self.Doc, self.Path, self.Not, func(elem Fragment) {
		if self.Value == nil {
			buf.Frag(elem)
			buf.Str(` IS NULL`)
			return
		}
		fold := isString(self.Value)
		appendFolded(buf, elem, fold)
		buf.Str(` = `)
		appendFoldedVal(buf, self.Value, fold)
	})
}

/*
True when the JSON array at the path shares at least one element with the
given values. The counterpart of `$in` on multi-valued fields.
*/
type JSONOverlaps struct {
	Doc    Fragment
	Path   string
	Values []any
	Not    bool
}

func (self JSONOverlaps) NeedsParens() bool { return false }

func (self JSONOverlaps) Inverted() Condition {
	self.Not = !self.Not
	return self
}

func (self JSONOverlaps) AppendTo(buf *Buffer) {
	if buf.Options.Dialect == MySQL {
		if self.Not {
			buf.Str(`NOT `)
		}
		buf.Str(`JSON_OVERLAPS(`)
		JSONExtract{self.Doc, self.Path}.AppendTo(buf)
		buf.Str(`, JSON_ARRAY(`)
		for i, val := range self.Values {
			if i > 0 {
				buf.Str(`, `)
			}
			buf.Val(val)
		}
		buf.Str(`))`)
		return
	}

	appendJSONElems(buf, self.Doc, self.Path, self.Not, func(elem Fragment) {
		Comparison{Left: elem, Sign: Equal, Value: self.Values}.AppendTo(buf)
	})
}

/*
Current element inside `JSONElemMatch` and the array conditions above. Renders
as the value column of the element table for the dialect.
*/
type JSONElem struct{}

func (JSONElem) AppendTo(buf *Buffer) {
	if buf.Options.Dialect == Postgres {
		buf.Str(`elem`)
	} else {
		buf.Str(`json_each.value`)
	}
}

/*
True when some element of the JSON array at the path satisfies `.Where`, which
refers to the element via `JSONElem`. The counterpart of `$elemMatch` on
multi-valued fields.
*/
type JSONElemMatch struct {
	Doc   Fragment
	Path  string
	Where Condition
	Not   bool
}

func (self JSONElemMatch) NeedsParens() bool { return false }

func (self JSONElemMatch) Inverted() Condition {
	self.Not = !self.Not
	return self
}

func (self JSONElemMatch) AppendTo(buf *Buffer) {
	appendJSONElems(buf, self.Doc, self.Path, self.Not, func(elem Fragment) {
		buf.Frag(self.Where)
	})
}

/*
Renders "[NOT] EXISTS (SELECT 1 FROM <elements of the array> WHERE ...)".
SQLite uses `json_each`, MySQL an equivalent `JSON_TABLE`, Postgres
`jsonb_array_elements_text`. Over a scalar, SQLite's `json_each` yields that
scalar as its only element, which mirrors in-memory comparison of non-list
values.
*/
func appendJSONElems(buf *Buffer, doc Fragment, path string, not bool, where func(Fragment)) {
	if not {
		buf.Str(`NOT `)
	}
	buf.Str(`EXISTS (SELECT 1 FROM `)

	switch buf.Options.Dialect {
	case SQLite:
		buf.Str(`json_each(`)
		buf.Frag(doc)
		buf.Str(`, `)
		appendJSONPath(buf, path)
		buf.Str(`)`)
	case MySQL:
		buf.Str(`JSON_TABLE(`)
		buf.Frag(doc)
		buf.Str(`, `)
		appendJSONPathSuffix(buf, path, `[*]`)
		buf.Str(` COLUMNS (value LONGTEXT PATH '$')) AS json_each`)
	default:
		buf.Str(`jsonb_array_elements_text(`)
		buf.Frag(doc)
		buf.Str(` #> `)
		appendJSONPath(buf, path)
		buf.Str(`) AS elem`)
	}

	buf.Str(` WHERE `)
	where(JSONElem{})
	buf.Str(`)`)
}

// Match mode of `JSONSearch`.
type SearchMode string

const (
	SearchOne SearchMode = `one`
	SearchAll SearchMode = `all`
)

/*
True when some string inside the document, optionally scoped to a sub-path,
matches the LIKE pattern. `.Mode` only matters for MySQL's `JSON_SEARCH`,
where it selects between stopping at the first match and collecting every
match; existence is the same for both.
*/
type JSONSearch struct {
	Doc     Fragment
	Mode    SearchMode
	Pattern string
	Path    string
	Not     bool
}

func (self JSONSearch) NeedsParens() bool { return false }

func (self JSONSearch) Inverted() Condition {
	self.Not = !self.Not
	return self
}

func (self JSONSearch) AppendTo(buf *Buffer) {
	switch buf.Options.Dialect {
	case MySQL:
		mode := self.Mode
		if mode != SearchAll {
			mode = SearchOne
		}
		buf.Str(`JSON_SEARCH(`)
		buf.Frag(self.Doc)
		buf.Str(`, '` + string(mode) + `', `)
		buf.Arg(self.Pattern)
		if self.Path != `` {
			buf.Str(`, NULL, `)
			appendJSONPath(buf, self.Path)
		}
		buf.Str(`)`)
		if self.Not {
			buf.Str(` IS NULL`)
		} else {
			buf.Str(` IS NOT NULL`)
		}

	case SQLite:
		if self.Not {
			buf.Str(`NOT `)
		}
		buf.Str(`EXISTS (SELECT 1 FROM json_tree(`)
		buf.Frag(self.Doc)
		buf.Str(`, `)
		appendJSONPath(buf, self.Path)
		buf.Str(`) WHERE json_tree.type = 'text' AND `)
		appendLikeOperand(buf, Raw(`json_tree.value`))
		buf.Str(` LIKE `)
		appendLikeOperand(buf, Param{self.Pattern})
		buf.Str(` ` + buf.Options.Dialect.likeEscape() + `)`)

	default:
		if self.Not {
			buf.Str(`NOT `)
		}
		buf.Str(`EXISTS (SELECT 1 FROM jsonb_path_query(`)
		buf.Frag(self.Doc)
		buf.Str(` #> `)
		appendJSONPath(buf, self.Path)
		buf.Str(`, 'lax $.**') AS node WHERE jsonb_typeof(node) = 'string' AND (node #>> '{}') ILIKE `)
		buf.Arg(self.Pattern)
		buf.Str(` ` + buf.Options.Dialect.likeEscape() + `)`)
	}
}
