package filter

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

var celEnv = sync.OnceValues(func() (*cel.Env, error) { return cel.NewEnv() })

/*
Parses a CEL expression into a filter, for people who'd rather type

	age >= 18 && (city == "Gent" || !name.contains("ali"))

than the equivalent JSON. Only the filter-shaped subset of CEL is accepted:

	a && b, a || b, !a
	path == v, path != v, path < v, path <= v, path > v, path >= v
	path in [v, ...]
	v in path                  (membership in a multi-valued field)
	path.contains("str")       (substring)
	size(path) < v             (any comparison on a length)
	path                       (same as path == true)
	true, false

Values are literals, lists of literals, `timestamp("<RFC 3339>")` and `now()`.
The expression is parsed but not type-checked: fields are not declared, the
compilers validate them later.
*/
func ParseCEL(src string) (out Expr, err error) {
	env, err := celEnv()
	if err != nil {
		return nil, fmt.Errorf(`[filter] failed to create CEL environment: %w`, err)
	}

	ast, issues := env.Parse(src)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf(`[filter] invalid CEL filter: %w`, issues.Err())
	}

	defer rec(&err)
	return celCond(ast.Expr()), nil
}

var celSigns = map[string]string{
	`_==_`: `$eq`,
	`_!=_`: `$neq`,
	`_<_`:  `$lt`,
	`_<=_`: `$lte`,
	`_>_`:  `$gt`,
	`_>=_`: `$gte`,
}

// Operator to use when the operands are swapped, as in `5 < age`.
var celMirrored = map[string]string{
	`$eq`:  `$eq`,
	`$neq`: `$neq`,
	`$lt`:  `$gt`,
	`$lte`: `$gte`,
	`$gt`:  `$lt`,
	`$gte`: `$lte`,
}

func celCond(expr *exprpb.Expr) Expr {
	if val := expr.GetConstExpr(); val != nil {
		truth, ok := val.GetConstantKind().(*exprpb.Constant_BoolValue)
		if !ok {
			panic(celErr(expr, `expected a condition, got a constant`))
		}
		if truth.BoolValue {
			return Object{}
		}
		return Object{{Key: `$or`, Value: List{}}}
	}

	if path, ok := celPath(expr); ok {
		return Object{{Key: path, Value: Object{{Key: `$eq`, Value: true}}}}
	}

	call := expr.GetCallExpr()
	if call == nil {
		panic(celErr(expr, `unsupported expression`))
	}

	switch call.GetFunction() {
	case `_&&_`:
		return Object{{Key: `$and`, Value: celConds(call.GetArgs())}}
	case `_||_`:
		return Object{{Key: `$or`, Value: celConds(call.GetArgs())}}
	case `!_`:
		return Object{{Key: `$not`, Value: celCond(call.GetArgs()[0])}}
	case `@in`:
		return celIn(expr, call)
	case `contains`:
		path, ok := celPath(call.GetTarget())
		if !ok || len(call.GetArgs()) != 1 {
			panic(celErr(expr, `expected "<path>.contains(<string>)"`))
		}
		return Object{{Key: path, Value: Object{{Key: `$contains`, Value: celValue(call.GetArgs()[0])}}}}
	}

	op, ok := celSigns[call.GetFunction()]
	if !ok {
		panic(celErr(expr, fmt.Sprintf(`unsupported function %q`, call.GetFunction())))
	}
	return celComparison(expr, op, call.GetArgs()[0], call.GetArgs()[1])
}

func celConds(args []*exprpb.Expr) List {
	out := make(List, len(args))
	for i, arg := range args {
		out[i] = celCond(arg)
	}
	return out
}

func celComparison(expr *exprpb.Expr, op string, left, right *exprpb.Expr) Expr {
	if !celIsOperand(left) && celIsOperand(right) {
		left, right = right, left
		op = celMirrored[op]
	}

	val := celValue(right)

	if inner, ok := celSize(left); ok {
		return Object{{Key: inner, Value: Object{{Key: `$length`, Value: Object{{Key: op, Value: val}}}}}}
	}
	if path, ok := celPath(left); ok {
		return Object{{Key: path, Value: Object{{Key: op, Value: val}}}}
	}
	panic(celErr(expr, `comparison needs a field path on one side`))
}

func celIn(expr *exprpb.Expr, call *exprpb.Expr_Call) Expr {
	left, right := call.GetArgs()[0], call.GetArgs()[1]

	if path, ok := celPath(left); ok {
		return Object{{Key: path, Value: Object{{Key: `$in`, Value: celValue(right)}}}}
	}
	if path, ok := celPath(right); ok {
		return Object{{Key: path, Value: Object{{Key: `$eq`, Value: celValue(left)}}}}
	}
	panic(celErr(expr, `"in" needs a field path on one side`))
}

func celIsOperand(expr *exprpb.Expr) bool {
	if _, ok := celPath(expr); ok {
		return true
	}
	_, ok := celSize(expr)
	return ok
}

// Dotted path from identifiers and field selections, such as `address.city`.
func celPath(expr *exprpb.Expr) (string, bool) {
	if ident := expr.GetIdentExpr(); ident != nil {
		return ident.GetName(), true
	}
	if sel := expr.GetSelectExpr(); sel != nil && !sel.GetTestOnly() {
		prefix, ok := celPath(sel.GetOperand())
		if ok {
			return prefix + `.` + sel.GetField(), true
		}
	}
	return ``, false
}

// Both `size(path)` and `path.size()`.
func celSize(expr *exprpb.Expr) (string, bool) {
	call := expr.GetCallExpr()
	if call == nil || call.GetFunction() != `size` {
		return ``, false
	}
	if call.GetTarget() != nil && len(call.GetArgs()) == 0 {
		return celPath(call.GetTarget())
	}
	if call.GetTarget() == nil && len(call.GetArgs()) == 1 {
		return celPath(call.GetArgs()[0])
	}
	return ``, false
}

func celValue(expr *exprpb.Expr) Expr {
	if val := expr.GetConstExpr(); val != nil {
		return celConst(expr, val)
	}

	if list := expr.GetListExpr(); list != nil {
		out := make(List, len(list.GetElements()))
		for i, elem := range list.GetElements() {
			out[i] = celValue(elem)
		}
		return out
	}

	call := expr.GetCallExpr()
	if call != nil && call.GetTarget() == nil {
		switch {
		case call.GetFunction() == `now` && len(call.GetArgs()) == 0:
			return Now{}

		case call.GetFunction() == `timestamp` && len(call.GetArgs()) == 1:
			inst, err := timeOf(celValue(call.GetArgs()[0]))
			must(err)
			return inst

		case call.GetFunction() == `-_` && len(call.GetArgs()) == 1:
			switch val := celValue(call.GetArgs()[0]).(type) {
			case int64:
				return -val
			case float64:
				return -val
			}
		}
	}

	panic(celErr(expr, `expected a literal value`))
}

func celConst(expr *exprpb.Expr, val *exprpb.Constant) Expr {
	switch val := val.GetConstantKind().(type) {
	case *exprpb.Constant_NullValue:
		return nil
	case *exprpb.Constant_BoolValue:
		return val.BoolValue
	case *exprpb.Constant_Int64Value:
		return val.Int64Value
	case *exprpb.Constant_Uint64Value:
		if val.Uint64Value > math.MaxInt64 {
			return float64(val.Uint64Value)
		}
		return int64(val.Uint64Value)
	case *exprpb.Constant_DoubleValue:
		return val.DoubleValue
	case *exprpb.Constant_StringValue:
		return val.StringValue
	}
	panic(celErr(expr, `unsupported literal`))
}

func celErr(expr *exprpb.Expr, msg string) *Error {
	return errorf(ErrInvalidFilterShape, celDescribe(expr), `%v`, msg)
}

func celDescribe(expr *exprpb.Expr) string {
	if path, ok := celPath(expr); ok {
		return path
	}
	if call := expr.GetCallExpr(); call != nil {
		return strings.Trim(call.GetFunction(), `_`)
	}
	return ``
}
