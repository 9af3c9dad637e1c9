package filter

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

/*
Short for "orderings". Sorts records by filter field paths, in memory or via
SQL, with the same null placement: null is the greatest value, so it comes
last in ascending order and first in descending order.

Usage for parsing:

	var ords Ords
	err := ords.UnmarshalJSON([]byte(`["lastName asc", "address.city desc"]`))

The result is equivalent to:

	OrdsFrom(OrdAsc(`lastName`), OrdDesc(`address.city`))

Usage in memory:

	SortRecords(ords, records)

Usage for SQL, see `SQLCompiler.OrderBy`:

	frag, err := compiler.OrderBy(ords)
	text, args := Render(frag, RenderOptions{Dialect: SQLite})
*/
type Ords struct {
	Items []Ord
}

// Shortcut for creating `Ords`.
func OrdsFrom(items ...Ord) Ords { return Ords{Items: items} }

// Implement decoding from a JSON list of strings such as "name asc".
func (self *Ords) UnmarshalJSON(input []byte) error {
	var vals []string
	err := json.Unmarshal(input, &vals)
	if err != nil {
		return fmt.Errorf(`[filter] failed to decode orderings: %w`, err)
	}
	return self.ParseSlice(vals)
}

/*
Convenience method for parsing string slices, which may come from URL queries,
form-encoded data, and so on.
*/
func (self *Ords) ParseSlice(vals []string) error {
	self.Items = make([]Ord, 0, len(vals))

	for _, val := range vals {
		ord, err := ParseOrd(val)
		if err != nil {
			return err
		}
		self.Items = append(self.Items, ord)
	}
	return nil
}

// True if there are no orderings.
func (self Ords) IsEmpty() bool { return len(self.Items) == 0 }

// Convenience method for appending orderings.
func (self *Ords) Append(items ...Ord) {
	self.Items = append(self.Items, items...)
}

// If empty, replaces items with the provided fallback. Otherwise does nothing.
func (self *Ords) Or(items ...Ord) {
	if self.IsEmpty() {
		self.Items = items
	}
}

/*
Orders two records: negative when `a` sorts first, positive when `b` does.
Strings compare case-insensitively. Values of different kinds, which filters
never order, are grouped by kind to keep the order total: numbers before
strings before other values, as SQLite sorts storage classes, and null last.
*/
func (self Ords) Compare(a, b any) int {
	for _, ord := range self.Items {
		cmp := compareTotal(Normalize(Resolve(a, ord.Path)), Normalize(Resolve(b, ord.Path)))
		if ord.Desc {
			cmp = -cmp
		}
		if cmp != 0 {
			return cmp
		}
	}
	return 0
}

func compareTotal(a, b Norm) int {
	out, ok := a.Compare(b)
	if ok {
		return out
	}
	return cmp.Compare(kindRank(a.Kind), kindRank(b.Kind))
}

func kindRank(kind Kind) int {
	switch kind {
	case KindNumber:
		return 0
	case KindString:
		return 1
	case KindNull:
		return 3
	default:
		return 2
	}
}

// Sorts records in place. The sort is stable.
func SortRecords[A any](ords Ords, records []A) {
	if ords.IsEmpty() {
		return
	}
	slices.SortStableFunc(records, func(a, b A) int { return ords.Compare(a, b) })
}

// Shortcut for an ascending `Ord`.
func OrdAsc(path string) Ord { return Ord{Path: path} }

// Shortcut for a descending `Ord`.
func OrdDesc(path string) Ord { return Ord{Path: path, Desc: true} }

/*
Short for "ordering". `.Path` is a dotted filter field path. The zero value of
`.Desc` means ascending, as in SQL.
*/
type Ord struct {
	Path string
	Desc bool
}

/*
Parses "<path> [asc|desc]". The direction is case-insensitive and defaults to
ascending.
*/
func ParseOrd(str string) (Ord, error) {
	match := ordReg.FindStringSubmatch(strings.TrimSpace(str))
	if match == nil {
		return Ord{}, fmt.Errorf(`[filter] %q is not a valid ordering string; expected format: "<path> asc|desc"`, str)
	}
	return Ord{Path: match[1], Desc: strings.EqualFold(match[2], `desc`)}, nil
}

// Inverse of `ParseOrd`.
func (self Ord) String() string {
	if self.Desc {
		return self.Path + ` desc`
	}
	return self.Path + ` asc`
}

/*
Resolves orderings through the compiler's fields. Only scalar fields can be
ordered by; arrays and relations fail with `ErrInvalidFilterTarget`.
*/
func (self SQLCompiler) OrderBy(ords Ords) (OrderBy, error) {
	scope := self.scope()
	out := make(OrderBy, 0, len(ords.Items))

	for _, ord := range ords.Items {
		target, err := scope.resolveField(ord.Path)
		if err != nil {
			return nil, err
		}
		if target.Kind != TargetScalar {
			return nil, errorf(ErrInvalidFilterTarget, ord.Path, `only scalar fields can be ordered by`)
		}
		out = append(out, OrderTerm{Expr: target.Expr, Desc: ord.Desc})
	}
	return out, nil
}

/*
"ORDER BY" clause. Empty renders nothing. Nulls are placed like in memory:
SQLite and Postgres use "NULLS LAST" and "NULLS FIRST", MySQL sorts on an
"IS NULL" term first.
*/
type OrderBy []OrderTerm

func (self OrderBy) AppendTo(buf *Buffer) {
	for i, term := range self {
		if i == 0 {
			buf.Str(`ORDER BY `)
		} else {
			buf.Str(`, `)
		}
		term.AppendTo(buf)
	}
}

// Single term of `OrderBy`.
type OrderTerm struct {
	Expr Fragment
	Desc bool
}

func (self OrderTerm) AppendTo(buf *Buffer) {
	dir := ` ASC`
	if self.Desc {
		dir = ` DESC`
	}

	switch buf.Options.Dialect {
	case MySQL:
		buf.Frag(self.Expr)
		buf.Str(` IS NULL` + dir + `, `)
		buf.Frag(self.Expr)
		buf.Str(dir)

	case SQLite:
		appendFolded(buf, self.Expr, true)
		buf.Str(dir)
		appendNulls(buf, self.Desc)

	default:
		buf.Frag(self.Expr)
		buf.Str(dir)
		appendNulls(buf, self.Desc)
	}
}

func appendNulls(buf *Buffer, desc bool) {
	if desc {
		buf.Str(` NULLS FIRST`)
	} else {
		buf.Str(` NULLS LAST`)
	}
}
