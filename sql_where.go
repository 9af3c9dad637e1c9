package filter

import "time"

/*
Boolean SQL expression. `NeedsParens` reports whether the condition must be
parenthesized when embedded into a larger conjunction or disjunction.
*/
type Condition interface {
	Fragment
	NeedsParens() bool
}

/*
Implemented by conditions that can express their own negation without
wrapping in `Not`.
*/
type Invertible interface {
	Condition
	Inverted() Condition
}

/*
Negates a condition. Comparisons flip their sign, `Like` and `Exists` toggle
their flag, constants flip, and double negation unwraps. Compound conditions
are wrapped in `Not`.
*/
func Invert(cond Condition) Condition {
	if inv, ok := cond.(Invertible); ok {
		return inv.Inverted()
	}
	return Not{Cond: cond}
}

// Comparison operator.
type Sign string

const (
	Equal        Sign = `=`
	NotEqual     Sign = `!=`
	Greater      Sign = `>`
	GreaterEqual Sign = `>=`
	Less         Sign = `<`
	LessEqual    Sign = `<=`
)

var signInverses = map[Sign]Sign{
	Equal:        NotEqual,
	NotEqual:     Equal,
	Greater:      LessEqual,
	LessEqual:    Greater,
	Less:         GreaterEqual,
	GreaterEqual: Less,
}

// Sign whose result is the exact complement of this one.
func (self Sign) Inverse() Sign { return signInverses[self] }

func (self Sign) valid() bool { _, ok := signInverses[self]; return ok }

/*
Rows where the left side is NULL sort after every value, so they satisfy
"!=", ">" and ">=" against any non-null value. Only matters for nullable
operands.
*/
func (self Sign) acceptsNull() bool {
	return self == NotEqual || self == Greater || self == GreaterEqual
}

/*
Comparison between an expression and a value. The value may be:

	* nil: only "=" and "!=", rendered as "IS [NOT] NULL"
	* `List` or `[]any`: only "=" and "!=", rendered as "[NOT] IN (...)"
	* a `Fragment`, such as a `Deferred` sentinel or another column
	* any scalar accepted by `Guard`, bound as an argument

`.Nullable` declares that the left side may be NULL. Such rows are then
included where the engine's null ordering includes them, which keeps
`Invert` exactly complementary. Use `Compare` to construct a validated
comparison.

SQLite orders values of different storage classes and converts them through
column affinity, while filters never order values of different kinds. In
SQLite, "<", "<=", ">" and ">=" against a bound scalar are therefore limited
to operands of the value's kind via `typeof`. `.OtherKinds` is set by
`Inverted` and accepts operands of every other non-null kind instead.
*/
type Comparison struct {
	Left       Fragment
	Sign       Sign
	Value      any
	Nullable   bool
	OtherKinds bool
}

/*
Validates and builds a comparison. Fails with `ErrUnsupportedComparison`
when the sign can't be used with the value, and with `ErrInvalidCompareValue`
when the value isn't a supported scalar.
*/
func Compare(left Fragment, sign Sign, value any) (Comparison, error) {
	if !sign.valid() {
		return Comparison{}, errorf(ErrUnsupportedComparison, string(sign), `unknown sign`)
	}

	switch val := value.(type) {
	case Fragment:
		return Comparison{Left: left, Sign: sign, Value: val}, nil

	case List, []any:
		if sign != Equal && sign != NotEqual {
			return Comparison{}, errorf(ErrUnsupportedComparison, string(sign), `lists only support %q and %q`, Equal, NotEqual)
		}
		list, _ := asList(val)
		out := make([]any, len(list))
		for i, elem := range list {
			scalar, err := Guard(elem)
			if err != nil {
				return Comparison{}, err
			}
			out[i] = scalar
		}
		return Comparison{Left: left, Sign: sign, Value: out}, nil
	}

	scalar, err := Guard(value)
	if err != nil {
		return Comparison{}, err
	}
	if scalar == nil && sign != Equal && sign != NotEqual {
		return Comparison{}, errorf(ErrUnsupportedComparison, string(sign), `null only supports %q and %q`, Equal, NotEqual)
	}
	return Comparison{Left: left, Sign: sign, Value: scalar}, nil
}

func (self Comparison) NeedsParens() bool { return false }

func (self Comparison) Inverted() Condition {
	self.Sign = self.Sign.Inverse()
	self.OtherKinds = !self.OtherKinds
	return self
}

func (self Comparison) AppendTo(buf *Buffer) {
	switch val := self.Value.(type) {
	case nil:
		buf.Frag(self.Left)
		if self.Sign == NotEqual {
			buf.Str(` IS NOT NULL`)
		} else {
			buf.Str(` IS NULL`)
		}

	case []any:
		self.appendList(buf, val)

	case List:
		list, _ := asList(val)
		self.appendList(buf, list)

	default:
		orNull := self.Nullable && self.Sign.acceptsNull()
		types := self.storageTypes(buf.Options.Dialect)
		if orNull || types != `` {
			buf.Str(`(`)
		}
		fold := isString(val)
		appendFolded(buf, self.Left, fold)
		buf.Str(` ` + string(self.Sign) + ` `)
		appendFoldedVal(buf, val, fold)
		if types != `` {
			if self.OtherKinds {
				buf.Str(` OR typeof(`)
				buf.Frag(self.Left)
				buf.Str(`) NOT IN (` + types + `, 'null')`)
			} else {
				buf.Str(` AND typeof(`)
				buf.Frag(self.Left)
				buf.Str(`) IN (` + types + `)`)
			}
		}
		if orNull {
			buf.Str(` OR `)
			buf.Frag(self.Left)
			buf.Str(` IS NULL`)
		}
		if orNull || types != `` {
			buf.Str(`)`)
		}
	}
}

/*
SQLite storage classes of the value's kind, for guarding ordering signs.
Empty when no guard applies. Time values are bound as integers.
*/
func (self Comparison) storageTypes(dialect Dialect) string {
	if dialect != SQLite {
		return ``
	}
	switch self.Sign {
	case Less, LessEqual, Greater, GreaterEqual:
	default:
		return ``
	}
	switch self.Value.(type) {
	case string:
		return `'text'`
	case bool, int64, float64, time.Time:
		return `'integer', 'real'`
	}
	return ``
}

func (self Comparison) appendList(buf *Buffer, list []any) {
	negated := self.Sign == NotEqual

	if len(list) == 0 {
		Bool(negated).AppendTo(buf)
		return
	}

	orNull := self.Nullable && negated
	if orNull {
		buf.Str(`(`)
	}

	fold := false
	for _, val := range list {
		fold = fold || isString(val)
	}

	appendFolded(buf, self.Left, fold)
	if negated {
		buf.Str(` NOT IN (`)
	} else {
		buf.Str(` IN (`)
	}
	for i, val := range list {
		if i > 0 {
			buf.Str(`, `)
		}
		appendFoldedVal(buf, val, fold)
	}
	buf.Str(`)`)

	if orNull {
		buf.Str(` OR `)
		buf.Frag(self.Left)
		buf.Str(` IS NULL)`)
	}
}

func isString(val any) bool {
	_, ok := val.(string)
	return ok
}

/*
Case-insensitive string comparisons: SQLite uses the NOCASE collation (or
`FoldCollation`) on the left operand, Postgres lower-cases both sides, MySQL
relies on the column's case-insensitive collation.
*/
func appendFolded(buf *Buffer, frag Fragment, fold bool) {
	if !fold {
		buf.Frag(frag)
		return
	}
	switch buf.Options.Dialect {
	case SQLite:
		buf.Frag(frag)
		if buf.Options.unicodeFold() {
			buf.Str(` COLLATE ` + FoldCollation)
		} else {
			buf.Str(` COLLATE NOCASE`)
		}
	case Postgres:
		buf.Str(`lower(`)
		buf.Frag(frag)
		buf.Str(`)`)
	default:
		buf.Frag(frag)
	}
}

func appendFoldedVal(buf *Buffer, val any, fold bool) {
	if fold && buf.Options.Dialect == Postgres && isString(val) {
		buf.Str(`lower(`)
		buf.Val(val)
		buf.Str(`)`)
		return
	}
	buf.Val(val)
}

/*
Pattern match. `.Pattern` is bound as an argument; literal wildcards must be
escaped by the caller, see `EscapeLike`. Matching is case-insensitive: SQLite
and MySQL LIKE already are, Postgres uses ILIKE. With
`RenderOptions.UnicodeFold`, SQLite lower-cases both sides with `FoldFunction`.
*/
type Like struct {
	Left     Fragment
	Pattern  string
	Not      bool
	Nullable bool
}

func (self Like) NeedsParens() bool { return false }

func (self Like) Inverted() Condition {
	self.Not = !self.Not
	return self
}

func (self Like) AppendTo(buf *Buffer) {
	orNull := self.Nullable && self.Not
	if orNull {
		buf.Str(`(`)
	}

	appendLikeOperand(buf, self.Left)
	if self.Not {
		buf.Str(` NOT`)
	}
	if buf.Options.Dialect == Postgres {
		buf.Str(` ILIKE `)
	} else {
		buf.Str(` LIKE `)
	}
	appendLikeOperand(buf, Param{self.Pattern})
	buf.Str(` ` + buf.Options.Dialect.likeEscape())

	if orNull {
		buf.Str(` OR `)
		buf.Frag(self.Left)
		buf.Str(` IS NULL)`)
	}
}

func appendLikeOperand(buf *Buffer, frag Fragment) {
	if !buf.Options.unicodeFold() {
		buf.Frag(frag)
		return
	}
	buf.Str(FoldFunction + `(`)
	buf.Frag(frag)
	buf.Str(`)`)
}

// Escapes LIKE wildcards with backslashes.
func EscapeLike(str string) string {
	out := make([]byte, 0, len(str))
	for i := 0; i < len(str); i++ {
		switch str[i] {
		case '\\', '%', '_':
			out = append(out, '\\')
		}
		out = append(out, str[i])
	}
	return string(out)
}

// Conjunction. Empty renders as a true constant.
type And []Condition

func (self And) NeedsParens() bool { return needsParens(self) }

func (self And) AppendTo(buf *Buffer) { appendJoined(buf, self, ` AND `, true) }

// Disjunction. Empty renders as a false constant.
type Or []Condition

func (self Or) NeedsParens() bool { return needsParens(self) }

func (self Or) AppendTo(buf *Buffer) { appendJoined(buf, self, ` OR `, false) }

func needsParens(conds []Condition) bool {
	if len(conds) == 1 {
		return conds[0].NeedsParens()
	}
	return len(conds) > 1
}

func appendJoined(buf *Buffer, conds []Condition, sep string, empty bool) {
	if len(conds) == 0 {
		Bool(empty).AppendTo(buf)
		return
	}
	if len(conds) == 1 {
		buf.Frag(conds[0])
		return
	}

	for i, cond := range conds {
		if i > 0 {
			buf.Str(sep)
		}
		if cond.NeedsParens() {
			buf.Str(`(`)
			buf.Frag(cond)
			buf.Str(`)`)
		} else {
			buf.Frag(cond)
		}
	}
}

/*
Textual negation, see `Invert`. The operand is coalesced to false first: a
comparison against NULL is unknown in SQL, and NOT of unknown would drop the
row, while a null operand simply fails the comparison in memory.
*/
type Not struct{ Cond Condition }

func (self Not) NeedsParens() bool { return false }

func (self Not) Inverted() Condition { return self.Cond }

func (self Not) AppendTo(buf *Buffer) {
	buf.Str(`NOT COALESCE(`)
	buf.Frag(self.Cond)
	buf.Str(`, FALSE)`)
}

// Existence of rows in a sub-query.
type Exists struct {
	Query Fragment
	Not   bool
}

func (self Exists) NeedsParens() bool { return false }

func (self Exists) Inverted() Condition {
	self.Not = !self.Not
	return self
}

func (self Exists) AppendTo(buf *Buffer) {
	if self.Not {
		buf.Str(`NOT `)
	}
	buf.Str(`EXISTS (`)
	buf.Frag(self.Query)
	buf.Str(`)`)
}

// Constant condition, rendered as "1 = 1" or "1 = 0".
type Bool bool

func (self Bool) NeedsParens() bool { return false }

func (self Bool) Inverted() Condition { return !self }

func (self Bool) AppendTo(buf *Buffer) {
	if self {
		buf.Str(`1 = 1`)
	} else {
		buf.Str(`1 = 0`)
	}
}
