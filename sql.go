package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mitranim/sqlb"
)

/*
SQL dialect. Decides identifier quoting, placeholder syntax, case folding and
the spelling of JSON functions. The zero value is `Postgres`, which is also
the dialect expected by `sqlb`.
*/
type Dialect byte

const (
	Postgres Dialect = iota
	SQLite
	MySQL
)

var dialectNames = map[Dialect]string{
	Postgres: `postgres`,
	SQLite:   `sqlite`,
	MySQL:    `mysql`,
}

func (self Dialect) String() string {
	name, ok := dialectNames[self]
	if ok {
		return name
	}
	return `dialect(` + strconv.Itoa(int(self)) + `)`
}

// Parses a dialect name as produced by `Dialect.String`.
func ParseDialect(str string) (Dialect, error) {
	for dialect, name := range dialectNames {
		if strings.EqualFold(str, name) {
			return dialect, nil
		}
	}
	return 0, fmt.Errorf(`[filter] unknown SQL dialect %q`, str)
}

// Implement `encoding.TextUnmarshaler`, for config files and flags.
func (self *Dialect) UnmarshalText(input []byte) error {
	dialect, err := ParseDialect(string(input))
	if err != nil {
		return err
	}
	*self = dialect
	return nil
}

func (self Dialect) quote(ident string) string {
	if self == MySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

/*
Current time, in the same representation that `bind` uses for `time.Time`:
epoch milliseconds for SQLite, native timestamps elsewhere.
*/
func (self Dialect) now() string {
	switch self {
	case SQLite:
		return `CAST((julianday('now') - 2440587.5) * 86400000 AS INTEGER)`
	case MySQL:
		return `NOW(3)`
	}
	return `now()`
}

func (self Dialect) bind(val any) any {
	if self == SQLite {
		if inst, ok := val.(time.Time); ok {
			return inst.UnixMilli()
		}
	}
	return val
}

func (self Dialect) likeEscape() string {
	if self == MySQL {
		return `ESCAPE '\\'`
	}
	return `ESCAPE '\'`
}

func (self Dialect) charLength() string {
	switch self {
	case SQLite:
		return `length`
	case MySQL:
		return `CHAR_LENGTH`
	}
	return `char_length`
}

/*
Options for rendering fragments. `.Namespace` is the default table alias used
to qualify columns that don't specify their own.

`.UnicodeFold` only affects SQLite. The built-in NOCASE collation and LIKE
fold ASCII letters only, so "ÉCOLE" differs from "école" in SQL while the
in-memory compiler treats them as equal. With this option, case-insensitive
comparisons use the `FoldCollation` collation and LIKE operands are wrapped in
`FoldFunction`, both of which must be registered on the connection. For the
modernc driver, importing the "sqlitefold" sub-package does that.
*/
type RenderOptions struct {
	Dialect     Dialect
	Namespace   string
	UnicodeFold bool
}

// Names of the SQLite collation and function used by `RenderOptions.UnicodeFold`.
const (
	FoldCollation = `filter_nocase`
	FoldFunction  = `filter_lower`
)

func (self RenderOptions) unicodeFold() bool {
	return self.UnicodeFold && self.Dialect == SQLite
}

/*
Composable unit of SQL. Implementations append text and arguments to the
buffer. Runtime values are always appended via `Buffer.Arg`, never as text.
*/
type Fragment interface {
	AppendTo(*Buffer)
}

/*
Accumulates SQL text and arguments on top of `sqlb.Bui`. Placeholders are
numbered from the builder's argument count, so fragments compose with each
other and with `sqlb` expressions without renumbering. Text is appended
verbatim, without the automatic spacing of `sqlb.Bui.Str`.
*/
type Buffer struct {
	sqlb.Bui
	Options RenderOptions
}

// Appends trusted text as-is.
func (self *Buffer) Str(str string) { appendStr(&self.Text, str) }

// Appends a quoted identifier.
func (self *Buffer) Ident(ident string) { self.Str(self.Options.Dialect.quote(ident)) }

/*
Appends a placeholder for the given value and stores the value. Postgres gets
the ordinal `$N` returned by `sqlb.Bui.Arg`, other dialects get "?".
*/
func (self *Buffer) Arg(val any) {
	param := self.Bui.Arg(self.Options.Dialect.bind(val))
	if self.Options.Dialect == Postgres {
		self.Text = param.Append(self.Text)
	} else {
		self.Str(`?`)
	}
}

// Appends a nested fragment. Nil is ignored.
func (self *Buffer) Frag(frag Fragment) {
	if frag != nil {
		frag.AppendTo(self)
	}
}

/*
Appends a value: inline if it's a fragment or a `sqlb.Expr`, as an argument
otherwise. `sqlb` expressions always use "$N" placeholders, so they only mix
with the Postgres dialect.
*/
func (self *Buffer) Val(val any) {
	switch val := val.(type) {
	case Fragment:
		self.Frag(val)
	case sqlb.Expr:
		self.Set(val.AppendExpr(self.Get()))
	default:
		self.Arg(val)
	}
}

/*
Appends a fragment rendered under another default namespace, restoring the
previous one afterwards.
*/
func (self *Buffer) FragIn(namespace string, frag Fragment) {
	prev := self.Options.Namespace
	self.Options.Namespace = namespace
	self.Frag(frag)
	self.Options.Namespace = prev
}

// Renders a fragment into SQL text and bound arguments.
func Render(frag Fragment, opts RenderOptions) (string, []any) {
	buf := Buffer{Options: opts}
	buf.Frag(frag)
	return string(buf.Text), buf.Args
}

/*
Fragment bound to render options. Implements `sqlb.Expr`, which makes any
fragment usable inside `sqlb.StrQ`, `sqlb.Reify` and other `sqlb` builders:

	cond, err := compiler.Compile(filter)
	text, args := sqlb.Reify(sqlb.StrQ{
		`select * from persons where :cond`,
		sqlb.Dict{`cond`: SQLExpr{Frag: cond}},
	})

Placeholders continue the numbering of the enclosing expression. Use the
Postgres dialect (the zero value), like `sqlb` itself.
*/
type SQLExpr struct {
	Frag    Fragment
	Options RenderOptions
}

var _ = sqlb.Expr(SQLExpr{})

// Implement `sqlb.Expr`.
func (self SQLExpr) AppendExpr(text []byte, args []any) ([]byte, []any) {
	buf := Buffer{Bui: sqlb.Bui{Text: text, Args: args}, Options: self.Options}
	buf.Space()
	buf.Frag(self.Frag)
	return buf.Get()
}

// Implement `sqlb.Appender`.
func (self SQLExpr) Append(text []byte) []byte {
	text, _ = self.AppendExpr(text, nil)
	return text
}

// Implement `fmt.Stringer` for debug purposes.
func (self SQLExpr) String() string { return string(self.Append(nil)) }

// Trusted SQL text, appended verbatim. Never build it from user input.
type Raw string

func (self Raw) AppendTo(buf *Buffer) { buf.Str(string(self)) }

/*
Column reference. Without `.Namespace`, the column is qualified with
`RenderOptions.Namespace`, if any.
*/
type Column struct {
	Namespace string
	Name      string
}

// Shortcut for an unqualified `Column`.
func Col(name string) Column { return Column{Name: name} }

func (self Column) AppendTo(buf *Buffer) {
	namespace := self.Namespace
	if namespace == `` {
		namespace = buf.Options.Namespace
	}
	if namespace != `` {
		buf.Ident(namespace)
		buf.Str(`.`)
	}
	buf.Ident(self.Name)
}

// Bound argument.
type Param struct{ Value any }

func (self Param) AppendTo(buf *Buffer) { buf.Arg(self.Value) }

// Character length of a string expression.
type CharLength struct{ Expr Fragment }

func (self CharLength) AppendTo(buf *Buffer) {
	buf.Str(buf.Options.Dialect.charLength())
	buf.Str(`(`)
	buf.Frag(self.Expr)
	buf.Str(`)`)
}
