package filter

import (
	"github.com/mitranim/sqlb"
)

/*
Shortcut for a `Where` whose fields are derived from the given struct value via
`FieldsFor`. The input is used only as a type carrier.
*/
func WhereFor(val any) Where {
	return Where{Compiler: SQLCompiler{Fields: FieldsFor(val)}}
}

/*
Filter compiled for `sqlb`. Implements `sqlb.Expr`, so it can be used as an
argument of `sqlb.StrQ` and is interpolated with renumbered placeholders:

	where := WhereFor(Person{})
	err := json.Unmarshal([]byte(`{"age": {"$gte": 18}}`), &where)

	text, args := sqlb.Reify(sqlb.StrQ{
		`select * from persons where :where`,
		sqlb.Dict{`where`: where},
	})

Always renders with the Postgres dialect, like `sqlb` itself. An undecoded
`Where` renders as a true constant, so the caller can always expect some
expression.
*/
type Where struct {
	Compiler  SQLCompiler
	Namespace string
	Cond      Condition
}

var _ = sqlb.Expr(Where{})

// Compiles the filter with `.Compiler` and stores the result in `.Cond`.
func (self *Where) Parse(filter any) error {
	cond, err := self.Compiler.Compile(filter)
	if err != nil {
		return err
	}
	self.Cond = cond
	return nil
}

/*
Support decoding from text, which must be valid JSON. This is provided for cases
like decoding from URL queries or other sources that don't originate in JSON.
*/
func (self *Where) UnmarshalText(input []byte) error { return self.decode(input) }

// Support decoding from JSON.
func (self *Where) UnmarshalJSON(input []byte) error { return self.decode(input) }

func (self *Where) decode(input []byte) error {
	expr, err := DecodeJSON(input)
	if err != nil {
		return err
	}
	return self.Parse(expr)
}

// Implement `sqlb.Expr`.
func (self Where) AppendExpr(text []byte, args []any) ([]byte, []any) {
	return self.expr(Postgres).AppendExpr(text, args)
}

// Implement `sqlb.Appender`.
func (self Where) Append(text []byte) []byte { return self.expr(Postgres).Append(text) }

// Implement `fmt.Stringer` for debug purposes.
func (self Where) String() string { return self.expr(Postgres).String() }

// Renders the condition in the given dialect.
func (self Where) Render(dialect Dialect) (string, []any) {
	expr := self.expr(dialect)
	return Render(expr.Frag, expr.Options)
}

func (self Where) expr(dialect Dialect) SQLExpr {
	var cond Condition = Bool(true)
	if self.Cond != nil {
		cond = self.Cond
	}
	return SQLExpr{cond, RenderOptions{Dialect: dialect, Namespace: self.Namespace}}
}

/*
Shortcut for an `Order` whose fields are derived from the given struct value
via `FieldsFor`.
*/
func OrderFor(val any) Order {
	return Order{Compiler: SQLCompiler{Fields: FieldsFor(val)}}
}

/*
Orderings validated against the compiler's fields. Implements `sqlb.Expr`;
empty orderings render nothing:

	order := OrderFor(Person{})
	err := json.Unmarshal([]byte(`["lastName asc", "age desc"]`), &order)

	text, args := sqlb.Reify(sqlb.StrQ{`select * from persons :order`, sqlb.Dict{`order`: order}})
*/
type Order struct {
	Compiler  SQLCompiler
	Namespace string
	Ords      Ords
	terms     OrderBy
}

var _ = sqlb.Expr(Order{})

// Validates and stores the orderings.
func (self *Order) Parse(ords Ords) error {
	terms, err := self.Compiler.OrderBy(ords)
	if err != nil {
		return err
	}
	self.Ords = ords
	self.terms = terms
	return nil
}

// Support decoding from JSON: a list of strings such as "name asc".
func (self *Order) UnmarshalJSON(input []byte) error {
	var ords Ords
	err := ords.UnmarshalJSON(input)
	if err != nil {
		return err
	}
	return self.Parse(ords)
}

// Implement `sqlb.Expr`.
func (self Order) AppendExpr(text []byte, args []any) ([]byte, []any) {
	if len(self.terms) == 0 {
		return text, args
	}
	return SQLExpr{self.terms, RenderOptions{Namespace: self.Namespace}}.AppendExpr(text, args)
}

// Implement `sqlb.Appender`.
func (self Order) Append(text []byte) []byte {
	text, _ = self.AppendExpr(text, nil)
	return text
}

// Implement `fmt.Stringer` for debug purposes.
func (self Order) String() string { return string(self.Append(nil)) }
