package filter

import (
	"reflect"
	"sort"
	"time"
)

// Default limit on filter nesting, see `MemoryCompiler.MaxDepth`.
const DefaultMaxDepth = 64

/*
Filter expression. After `ExprOf`, an `Expr` is exactly one of:

	* a scalar: nil, string, int64, float64, bool, `time.Time`, or a `Deferred`
	* `List`: implicit conjunction of its items
	* `Object`: ordered entries; each key is an operator such as "$eq" or a
	  field path such as "address.city"
*/
type Expr any

// Implicit conjunction of filter expressions.
type List []Expr

// Ordered keyed filter structure. Order only affects SQL text, not results.
type Object []Entry

// Single key of an `Object`.
type Entry struct {
	Key   string
	Value Expr
}

/*
Returns the value for the given key, and whether it was found. Convenience
for custom operators.
*/
func (self Object) Get(key string) (Expr, bool) {
	for _, entry := range self {
		if entry.Key == key {
			return entry.Value, true
		}
	}
	return nil, false
}

/*
Converts an arbitrary Go value into a canonical `Expr`. This is the single
normalization pass shared by both compilers: maps with string keys become
key-sorted `Object`s, slices become `List`s, scalars are validated by `Guard`,
and wire markers are decoded:

	{"$": "$date", "value": 1700000000000}  ->  time.Time
	{"$": "$now"}                           ->  Now{}

Already-canonical input is returned as an equivalent copy.
*/
func ExprOf(val any) (out Expr, err error) {
	defer rec(&err)
	return exprOf(val, 0), nil
}

func exprOf(val any, depth int) Expr {
	if depth > DefaultMaxDepth {
		panic(errorf(ErrInvalidFilterShape, ``, `filter nesting exceeds %v levels`, DefaultMaxDepth))
	}

	switch val := val.(type) {
	case Object:
		out := make(Object, len(val))
		for i, entry := range val {
			out[i] = Entry{Key: entry.Key, Value: exprOf(entry.Value, depth+1)}
		}
		return out
	case List:
		return exprList(val, depth)
	case []any:
		return exprList(val, depth)
	case map[string]any:
		return exprMap(val, depth)
	}

	scalar, ok := canonicalScalar(val)
	if ok {
		return scalar
	}

	rval := derefValue(reflect.ValueOf(val))
	switch rval.Kind() {
	case reflect.Slice, reflect.Array:
		if rval.Type().Elem().Kind() != reflect.Uint8 {
			list, _ := asList(rval.Interface())
			return exprList(list, depth)
		}
	case reflect.Map:
		if rval.Type().Key().Kind() == reflect.String {
			dict := make(map[string]any, rval.Len())
			iter := rval.MapRange()
			for iter.Next() {
				dict[iter.Key().String()] = iter.Value().Interface()
			}
			return exprMap(dict, depth)
		}
	}

	panic(errorf(ErrInvalidCompareValue, ``, `unsupported value of type %v`, typeName(val)))
}

func exprList[A any](val []A, depth int) List {
	out := make(List, len(val))
	for i, elem := range val {
		out[i] = exprOf(elem, depth+1)
	}
	return out
}

func exprMap(val map[string]any, depth int) Expr {
	if marker, ok := val[`$`]; ok {
		return exprMarker(marker, val)
	}

	keys := make([]string, 0, len(val))
	for key := range val {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make(Object, len(keys))
	for i, key := range keys {
		out[i] = Entry{Key: key, Value: exprOf(val[key], depth+1)}
	}
	return out
}

func exprMarker(marker any, val map[string]any) Expr {
	name, _ := marker.(string)

	switch name {
	case `$now`:
		return Now{}
	case `$date`:
		inst, err := timeOf(val[`value`])
		must(err)
		return inst
	}
	panic(errorf(ErrInvalidCompareValue, `$`, `unknown value marker %q`, marker))
}

// Epoch milliseconds or an RFC 3339 string.
func timeOf(val any) (time.Time, error) {
	switch val := val.(type) {
	case string:
		inst, err := time.Parse(time.RFC3339Nano, val)
		if err != nil {
			return time.Time{}, errorf(ErrInvalidCompareValue, `$date`, `%v`, err)
		}
		return inst, nil
	case time.Time:
		return val, nil
	}

	norm := Normalize(val)
	if norm.Kind != KindNumber {
		return time.Time{}, errorf(ErrInvalidCompareValue, `$date`, `expected epoch milliseconds, got %v`, typeName(val))
	}
	return time.UnixMilli(int64(norm.Num)).UTC(), nil
}

/*
Expands an expression into the entries of its implicit conjunction. This is
the shared outer grammar of both compilers:

	* `Object` yields its entries
	* `List` yields the concatenated clauses of its items
	* a scalar yields `{"$eq": scalar}`
*/
func Clauses(expr Expr) []Entry {
	switch expr := expr.(type) {
	case Object:
		return expr
	case List:
		var out []Entry
		for _, item := range expr {
			out = append(out, Clauses(item)...)
		}
		return out
	}
	return []Entry{{Key: `$eq`, Value: expr}}
}

/*
Returns the operands of a variadic boolean operator. A `List` yields its items,
an `Object` yields one single-entry `Object` per key, so `{"$or": {"a": 1,
"b": 2}}` means "a or b". A scalar is a single operand.
*/
func Items(expr Expr) List {
	switch expr := expr.(type) {
	case List:
		return expr
	case Object:
		out := make(List, len(expr))
		for i, entry := range expr {
			out[i] = Object{entry}
		}
		return out
	}
	return List{expr}
}

func isOperator(key string) bool { return len(key) > 0 && key[0] == '$' }
